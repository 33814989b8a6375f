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

package colexec

import (
	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/container/types"
	"github.com/matrixorigin/distsql/pkg/sql/plan"
)

// EvalKeys evaluates exprs against row.
func EvalKeys(ectx plan.EvalContext, row plan.Row, exprs []plan.Expr) ([]any, error) {
	keys := make([]any, len(exprs))
	for i, e := range exprs {
		v, err := e.Eval(ectx, row)
		if err != nil {
			return nil, err
		}
		keys[i] = v
	}
	return keys, nil
}

// Project builds the output row of exprs.
func Project(ectx plan.EvalContext, row plan.Row, exprs []plan.Expr) (batch.Row, error) {
	vs, err := EvalKeys(ectx, row, exprs)
	if err != nil {
		return nil, err
	}
	return batch.Row(vs), nil
}

// CompareKeys orders two key tuples column by column. A false asc flips
// the order of that column. NULL is the smallest value.
func CompareKeys(a, b []any, ascs []bool) int {
	for i := range a {
		c := types.Compare(a[i], b[i])
		if c == 0 {
			continue
		}
		if !ascs[i] {
			return -c
		}
		return c
	}
	return 0
}
