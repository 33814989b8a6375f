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

package mapscan

import (
	"bytes"
	"fmt"

	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/sql/plan"
	"github.com/matrixorigin/distsql/pkg/vm"
	"github.com/matrixorigin/distsql/pkg/vm/process"
)

func (arg *Argument) String(buf *bytes.Buffer) {
	buf.WriteString(fmt.Sprintf("%s(%s, partitions=%d)", argName, arg.MapName, arg.Partitions.GetCardinality()))
}

func (arg *Argument) Prepare(proc *process.Process) error {
	m, err := arg.Engine.Map(proc.Ctx, arg.MapName)
	if err != nil {
		return err
	}
	arg.ctr = &container{
		m:     m,
		parts: arg.Partitions.ToArray(),
		row:   plan.KeyValueRow{Fields: arg.Fields},
	}
	return nil
}

// Call emits up to BatchRows matching entries. The cancel flag is checked
// once per batch.
func (arg *Argument) Call(proc *process.Process) (vm.CallResult, error) {
	if err := vm.CancelCheck(proc); err != nil {
		return vm.CallResult{}, err
	}
	ctr := arg.ctr
	rows := make([]batch.Row, 0, proc.Lim.BatchRows)
	for len(rows) < proc.Lim.BatchRows {
		if ctr.itr == nil {
			if ctr.idx >= len(ctr.parts) {
				return vm.FetchedResult(batch.New(rows), true), nil
			}
			itr, err := ctr.m.NewIterator(proc.Ctx, ctr.parts[ctr.idx])
			if err != nil {
				return vm.CallResult{}, err
			}
			ctr.itr = itr
			ctr.idx++
		}
		if !ctr.itr.Next() {
			err := ctr.itr.Err()
			if cerr := ctr.itr.Close(); err == nil {
				err = cerr
			}
			ctr.itr = nil
			if err != nil {
				return vm.CallResult{}, err
			}
			continue
		}
		ctr.row.Key, ctr.row.Value = ctr.itr.Key(), ctr.itr.Value()
		if arg.Filter != nil {
			ok, err := plan.EvalPredicate(proc, &ctr.row, arg.Filter)
			if err != nil {
				return vm.CallResult{}, err
			}
			if !ok {
				continue
			}
		}
		row := make(batch.Row, len(arg.Projects))
		for i, e := range arg.Projects {
			v, err := e.Eval(proc, &ctr.row)
			if err != nil {
				return vm.CallResult{}, err
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return vm.FetchedResult(batch.New(rows), false), nil
}
