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

package process

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProcess(t *testing.T) {
	qs := NewQueryState("q1", "member-a", []any{int64(1)})
	proc := New(context.Background(), qs, "member-b", 1, 2, Limitation{BatchRows: 8}, zap.NewNop())
	require.Equal(t, "q1", proc.QueryId())
	require.Equal(t, []any{int64(1)}, proc.Arguments())
	require.NotNil(t, proc.Context())

	// no rescheduler yet
	proc.Reschedule()
	calls := 0
	proc.SetRescheduler(func() { calls++ })
	proc.Rescheduler()()
	require.Equal(t, 1, calls)

	require.False(t, proc.IsCancelled())
	require.True(t, qs.Cancel())
	require.False(t, qs.Cancel())
	require.True(t, proc.IsCancelled())
}
