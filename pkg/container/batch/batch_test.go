// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package batch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBatch(t *testing.T) {
	require.Equal(t, 0, New(nil).RowCount())
	require.True(t, New(nil).IsEmpty())

	var nilBatch *Batch
	require.Equal(t, 0, nilBatch.RowCount())
	require.Nil(t, nilBatch.Rows())

	bat := New([]Row{{int64(1), "a"}, {nil, "b"}})
	require.Equal(t, 2, bat.RowCount())
	require.Equal(t, "b", bat.GetRow(1).Get(1))
	require.Equal(t, "[NULL, b]", bat.GetRow(1).String())
	require.Equal(t, "batch(2) [1, a] [NULL, b]", bat.String())
}
