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

package restrict

import (
	"bytes"
	"fmt"

	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/sql/plan"
	"github.com/matrixorigin/distsql/pkg/vm"
	"github.com/matrixorigin/distsql/pkg/vm/process"
)

func (arg *Argument) String(buf *bytes.Buffer) {
	buf.WriteString(fmt.Sprintf("%s(%s)", argName, arg.Condition))
}

func (arg *Argument) Prepare(_ *process.Process) error {
	return nil
}

// Call keeps the rows for which the condition holds. The status of the
// child passes through unchanged.
func (arg *Argument) Call(proc *process.Process) (vm.CallResult, error) {
	res, err := arg.GetChildren(0).Call(proc)
	if err != nil || res.Status == vm.ExecWait {
		return res, err
	}
	bat := res.Batch
	var rows []batch.Row
	for i := 0; i < bat.RowCount(); i++ {
		row := bat.GetRow(i)
		ok, err := plan.EvalPredicate(proc, row, arg.Condition)
		if err != nil {
			return vm.CallResult{}, err
		}
		if ok {
			rows = append(rows, row)
		}
	}
	if len(rows) < bat.RowCount() {
		res.Batch = batch.New(rows)
	}
	return res, nil
}
