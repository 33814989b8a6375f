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
	"github.com/RoaringBitmap/roaring"
	"golang.org/x/exp/slices"

	"github.com/matrixorigin/distsql/pkg/container/batch"
)

// PartitionOf maps a key to its partition.
func PartitionOf(key any, partitionCount int) uint32 {
	return uint32(batch.HashValue(key) % uint64(partitionCount))
}

// AssignPartitions spreads partitions over members round robin in member
// order.
func AssignPartitions(members []string, partitionCount int) map[string]*roaring.Bitmap {
	sorted := slices.Clone(members)
	slices.Sort(sorted)
	owned := make(map[string]*roaring.Bitmap, len(sorted))
	for _, m := range sorted {
		owned[m] = roaring.New()
	}
	if len(sorted) == 0 {
		return owned
	}
	for p := 0; p < partitionCount; p++ {
		owned[sorted[p%len(sorted)]].Add(uint32(p))
	}
	return owned
}

// StripePartitions returns the partitions of owned that belong to stripe:
// the i-th owned partition in ascending order goes to stripe i mod
// stripeCount.
func StripePartitions(owned *roaring.Bitmap, stripe, stripeCount int) *roaring.Bitmap {
	parts := roaring.New()
	if owned == nil {
		return parts
	}
	i := 0
	it := owned.Iterator()
	for it.HasNext() {
		p := it.Next()
		if i%stripeCount == stripe {
			parts.Add(p)
		}
		i++
	}
	return parts
}
