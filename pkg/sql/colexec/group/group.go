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

package group

import (
	"bytes"
	"fmt"

	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/container/types"
	"github.com/matrixorigin/distsql/pkg/sql/plan"
	"github.com/matrixorigin/distsql/pkg/vm"
	"github.com/matrixorigin/distsql/pkg/vm/process"
)

func (arg *Argument) String(buf *bytes.Buffer) {
	buf.WriteString(fmt.Sprintf("%s(keys=%d", argName, arg.GroupKeySize))
	for _, agg := range arg.Aggregates {
		buf.WriteString(", ")
		buf.WriteString(agg.String())
	}
	if arg.Sorted {
		buf.WriteString(", sorted")
	}
	buf.WriteString(")")
}

func (arg *Argument) Prepare(_ *process.Process) error {
	ctr := &container{
		keyCols: make([]int, arg.GroupKeySize),
		buckets: make(map[uint64][]*group),
	}
	for i := range ctr.keyCols {
		ctr.keyCols[i] = i
	}
	// a global aggregate emits one row even for empty input
	if arg.GroupKeySize == 0 {
		g := arg.newGroup(nil)
		ctr.current = g
		ctr.groups = append(ctr.groups, g)
		ctr.buckets[batch.HashColumns(nil, ctr.keyCols)] = []*group{g}
	}
	arg.ctr = ctr
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
			done := res.Status == vm.ExecFetchedDone
			if arg.Sorted {
				out, err := arg.consumeSorted(proc, res.Batch, done)
				if err != nil {
					return vm.CallResult{}, err
				}
				if done {
					ctr.state = end
					return vm.FetchedResult(out, true), nil
				}
				if !out.IsEmpty() {
					return vm.FetchedResult(out, false), nil
				}
				continue
			}
			if err := arg.consumeHashed(proc, res.Batch); err != nil {
				return vm.CallResult{}, err
			}
			if done {
				ctr.result = make([]batch.Row, len(ctr.groups))
				for i, g := range ctr.groups {
					ctr.result[i] = g.reduce()
				}
				ctr.groups = nil
				ctr.buckets = nil
				ctr.state = eval
			}
		case eval:
			n := len(ctr.result) - ctr.pos
			if n > proc.Lim.BatchRows {
				n = proc.Lim.BatchRows
			}
			bat := batch.New(ctr.result[ctr.pos : ctr.pos+n])
			ctr.pos += n
			if ctr.pos < len(ctr.result) {
				return vm.FetchedResult(bat, false), nil
			}
			ctr.result = nil
			ctr.state = end
			return vm.FetchedResult(bat, true), nil
		default:
			return vm.FetchedResult(batch.EmptyBatch, true), nil
		}
	}
}

func (arg *Argument) consumeHashed(proc *process.Process, bat *batch.Batch) error {
	ctr := arg.ctr
	for _, row := range bat.Rows() {
		h := batch.HashColumns(row, ctr.keyCols)
		var g *group
		for _, cand := range ctr.buckets[h] {
			if sameKeys(cand.keys, row) {
				g = cand
				break
			}
		}
		if g == nil {
			g = arg.newGroup(row)
			ctr.buckets[h] = append(ctr.buckets[h], g)
			ctr.groups = append(ctr.groups, g)
		}
		if err := arg.collect(proc, g, row); err != nil {
			return err
		}
	}
	return nil
}

func (arg *Argument) consumeSorted(proc *process.Process, bat *batch.Batch, done bool) (*batch.Batch, error) {
	ctr := arg.ctr
	var out []batch.Row
	for _, row := range bat.Rows() {
		if ctr.current != nil && !sameKeys(ctr.current.keys, row) {
			out = append(out, ctr.current.reduce())
			ctr.current = nil
		}
		if ctr.current == nil {
			ctr.current = arg.newGroup(row)
		}
		if err := arg.collect(proc, ctr.current, row); err != nil {
			return nil, err
		}
	}
	if done && ctr.current != nil {
		out = append(out, ctr.current.reduce())
		ctr.current = nil
	}
	return batch.New(out), nil
}

func (arg *Argument) newGroup(row batch.Row) *group {
	g := &group{
		keys: make([]any, arg.GroupKeySize),
		accs: make([]plan.Accumulator, len(arg.Aggregates)),
	}
	copy(g.keys, row)
	for i, agg := range arg.Aggregates {
		g.accs[i] = agg.NewAccumulator()
	}
	return g
}

func (arg *Argument) collect(proc *process.Process, g *group, row batch.Row) error {
	for i, agg := range arg.Aggregates {
		var v any
		if agg.Arg != nil {
			v = row.Get(agg.Arg.Index)
		}
		if err := g.accs[i].Collect(proc.Ctx, v); err != nil {
			return err
		}
	}
	return nil
}

func (g *group) reduce() batch.Row {
	row := make(batch.Row, 0, len(g.keys)+len(g.accs))
	row = append(row, g.keys...)
	for _, acc := range g.accs {
		row = append(row, acc.Reduce())
	}
	return row
}

func sameKeys(keys []any, row batch.Row) bool {
	for i, k := range keys {
		if types.Compare(k, row[i]) != 0 {
			return false
		}
	}
	return true
}
