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

package order

import (
	"bytes"
	"fmt"

	"github.com/google/btree"

	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/sql/colexec"
	"github.com/matrixorigin/distsql/pkg/vm"
	"github.com/matrixorigin/distsql/pkg/vm/process"
)

const degree = 16

func (arg *Argument) String(buf *bytes.Buffer) {
	buf.WriteString(argName + "([")
	for i, e := range arg.Exprs {
		if i > 0 {
			buf.WriteString(", ")
		}
		dir := "ASC"
		if !arg.Ascs[i] {
			dir = "DESC"
		}
		buf.WriteString(fmt.Sprintf("%s %s", e, dir))
	}
	buf.WriteString("])")
}

func (arg *Argument) Prepare(_ *process.Process) error {
	arg.ctr = &container{tree: btree.New(degree)}
	return nil
}

func (arg *Argument) Call(proc *process.Process) (vm.CallResult, error) {
	ctr := arg.ctr
	for {
		switch ctr.state {
		case build:
			res, err := arg.GetChildren(0).Call(proc)
			if err != nil {
				return vm.CallResult{}, err
			}
			if res.Status == vm.ExecWait {
				return vm.WaitResult, nil
			}
			if err := ctr.insert(arg, proc, res.Batch); err != nil {
				return vm.CallResult{}, err
			}
			if res.Status == vm.ExecFetchedDone {
				ctr.sorted = make([]batch.Row, 0, ctr.tree.Len())
				ctr.tree.Ascend(func(i btree.Item) bool {
					ctr.sorted = append(ctr.sorted, i.(*item).row)
					return true
				})
				ctr.tree = nil
				ctr.state = eval
			}
		case eval:
			n := len(ctr.sorted) - ctr.pos
			if n > proc.Lim.BatchRows {
				n = proc.Lim.BatchRows
			}
			bat := batch.New(ctr.sorted[ctr.pos : ctr.pos+n])
			ctr.pos += n
			if ctr.pos < len(ctr.sorted) {
				return vm.FetchedResult(bat, false), nil
			}
			ctr.sorted = nil
			ctr.state = end
			return vm.FetchedResult(bat, true), nil
		default:
			return vm.FetchedResult(batch.EmptyBatch, true), nil
		}
	}
}

func (ctr *container) insert(arg *Argument, proc *process.Process, bat *batch.Batch) error {
	for _, row := range bat.Rows() {
		keys, err := colexec.EvalKeys(proc, row, arg.Exprs)
		if err != nil {
			return err
		}
		ctr.tree.ReplaceOrInsert(&item{keys: keys, seq: ctr.seq, row: row, ascs: arg.Ascs})
		ctr.seq++
	}
	return nil
}

func (a *item) Less(than btree.Item) bool {
	b := than.(*item)
	if c := colexec.CompareKeys(a.keys, b.keys, a.ascs); c != 0 {
		return c < 0
	}
	return a.seq < b.seq
}
