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

package plan

import (
	"context"

	"github.com/RoaringBitmap/roaring"
	"github.com/matrixorigin/distsql/pkg/container/types"
)

type testEvalContext struct {
	args []any
}

func (c testEvalContext) Context() context.Context {
	return context.Background()
}

func (c testEvalContext) Arguments() []any {
	return c.args
}

var testMembers = []string{"member-a", "member-b", "member-c"}

// ordersScan is partitioned by its key column.
func ordersScan() *MapScanRel {
	return &MapScanRel{
		MapName: "orders",
		Fields: []Field{
			{Name: "__key", Type: types.T_int64},
			{Name: "customer", Type: types.T_varchar},
			{Name: "amount", Type: types.T_decimal},
			{Name: "qty", Type: types.T_int64},
		},
		Dist: PartitionedBy(0),
	}
}

func testPartitionMap() map[string]*roaring.Bitmap {
	m := make(map[string]*roaring.Bitmap, len(testMembers))
	for i, member := range testMembers {
		bm := roaring.New()
		for p := uint32(i); p < 12; p += uint32(len(testMembers)) {
			bm.Add(p)
		}
		m[member] = bm
	}
	return m
}
