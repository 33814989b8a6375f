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

package engine

import (
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/stretchr/testify/require"
)

func TestAssignPartitions(t *testing.T) {
	owned := AssignPartitions([]string{"c", "a", "b"}, 8)
	require.Equal(t, []uint32{0, 3, 6}, owned["a"].ToArray())
	require.Equal(t, []uint32{1, 4, 7}, owned["b"].ToArray())
	require.Equal(t, []uint32{2, 5}, owned["c"].ToArray())

	total := roaring.New()
	for _, bm := range owned {
		require.False(t, total.Intersects(bm))
		total.Or(bm)
	}
	require.Equal(t, uint64(8), total.GetCardinality())
}

func TestStripePartitions(t *testing.T) {
	owned := roaring.BitmapOf(2, 5, 9, 11, 40)
	require.Equal(t, []uint32{2, 9, 40}, StripePartitions(owned, 0, 2).ToArray())
	require.Equal(t, []uint32{5, 11}, StripePartitions(owned, 1, 2).ToArray())

	// more stripes than partitions leaves some stripes empty
	require.True(t, StripePartitions(roaring.BitmapOf(7), 1, 3).IsEmpty())
	require.True(t, StripePartitions(nil, 0, 1).IsEmpty())

	// the split is stable across calls
	for i := 0; i < 10; i++ {
		require.Equal(t, []uint32{5, 11}, StripePartitions(owned, 1, 2).ToArray())
	}
}

func TestPartitionOf(t *testing.T) {
	for _, k := range []any{int64(1), "key", nil} {
		p := PartitionOf(k, 7)
		require.Less(t, p, uint32(7))
		require.Equal(t, p, PartitionOf(k, 7))
	}
}
