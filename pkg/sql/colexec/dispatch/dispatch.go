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

package dispatch

import (
	"bytes"
	"fmt"

	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/sql/colexec"
	"github.com/matrixorigin/distsql/pkg/vm"
	"github.com/matrixorigin/distsql/pkg/vm/process"
)

func (arg *Argument) String(buf *bytes.Buffer) {
	buf.WriteString(fmt.Sprintf("%s(edge=%d, targets=%d", argName, arg.Edge, len(arg.Outboxes)))
	if len(arg.PartitionKeys) > 0 {
		buf.WriteString(fmt.Sprintf(", keys=%v", arg.PartitionKeys))
	}
	buf.WriteString(")")
}

func (arg *Argument) Prepare(_ *process.Process) error {
	ctr := &container{
		bat:       batch.EmptyBatch,
		positions: make([]int, len(arg.Outboxes)),
		keyCols:   make([]int, len(arg.PartitionKeys)),
	}
	for i := range ctr.keyCols {
		ctr.keyCols[i] = i
	}
	arg.ctr = ctr
	return nil
}

// Call pushes the current batch into the outboxes. It returns ExecWait while
// some outbox has no credit for its rows, and pulls the next batch only
// after every outbox took all of its rows.
func (arg *Argument) Call(proc *process.Process) (vm.CallResult, error) {
	ctr := arg.ctr
	if ctr.end {
		return vm.FetchedResult(batch.EmptyBatch, true), nil
	}
	if err := vm.CancelCheck(proc); err != nil {
		return vm.CallResult{}, err
	}
	if ctr.drained(arg) {
		res, err := arg.GetChildren(0).Call(proc)
		if err != nil {
			return vm.CallResult{}, err
		}
		if res.Status == vm.ExecWait {
			return vm.WaitResult, nil
		}
		if err := ctr.load(arg, proc, res.Batch, res.Status == vm.ExecFetchedDone); err != nil {
			return vm.CallResult{}, err
		}
	}

	rowCount := ctr.bat.RowCount()
	for i, ob := range arg.Outboxes {
		if ctr.positions[i] == rowCount && !(ctr.last && !ob.IsDone()) {
			continue
		}
		target := i
		pos, err := ob.OnRowBatch(proc.Ctx, ctr.bat, ctr.last, ctr.positions[i], func(p int) bool {
			return ctr.routes[p] == target
		})
		if err != nil {
			return vm.CallResult{}, err
		}
		ctr.positions[i] = pos
	}
	if !ctr.drained(arg) {
		return vm.WaitResult, nil
	}
	if ctr.last {
		ctr.end = true
		return vm.FetchedResult(batch.EmptyBatch, true), nil
	}
	return vm.FetchedResult(batch.EmptyBatch, false), nil
}

func (ctr *container) load(arg *Argument, proc *process.Process, bat *batch.Batch, last bool) error {
	if bat == nil {
		bat = batch.EmptyBatch
	}
	ctr.bat = bat
	ctr.last = last
	for i := range ctr.positions {
		ctr.positions[i] = 0
	}
	n := len(arg.Outboxes)
	ctr.routes = ctr.routes[:0]
	for _, row := range bat.Rows() {
		h := constantHash
		if len(arg.PartitionKeys) > 0 {
			keys, err := colexec.EvalKeys(proc, row, arg.PartitionKeys)
			if err != nil {
				return err
			}
			h = batch.HashColumns(batch.Row(keys), ctr.keyCols)
		}
		ctr.routes = append(ctr.routes, int(h%uint64(n)))
	}
	return nil
}

// drained reports that every outbox consumed the current batch.
func (ctr *container) drained(arg *Argument) bool {
	rowCount := ctr.bat.RowCount()
	for i, ob := range arg.Outboxes {
		if ctr.positions[i] < rowCount {
			return false
		}
		if ctr.last && !ob.IsDone() {
			return false
		}
	}
	return true
}
