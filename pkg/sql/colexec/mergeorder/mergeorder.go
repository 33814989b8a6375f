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

package mergeorder

import (
	"bytes"
	"fmt"

	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/sql/colexec"
	"github.com/matrixorigin/distsql/pkg/vm"
	"github.com/matrixorigin/distsql/pkg/vm/process"
)

func (arg *Argument) String(buf *bytes.Buffer) {
	buf.WriteString(fmt.Sprintf("%s(edge=%d, [", argName, arg.Edge))
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
	ctr := &container{sources: make([]*source, arg.Inbox.Stripes())}
	for i := range ctr.sources {
		ctr.sources[i] = &source{bat: batch.EmptyBatch}
	}
	arg.ctr = ctr
	return nil
}

func (arg *Argument) Call(proc *process.Process) (vm.CallResult, error) {
	ctr := arg.ctr
	if ctr.end {
		return vm.FetchedResult(batch.EmptyBatch, true), nil
	}
	if err := vm.CancelCheck(proc); err != nil {
		return vm.CallResult{}, err
	}
	var out []batch.Row
	for {
		blocked, err := arg.fill(proc)
		if err != nil {
			return vm.CallResult{}, err
		}
		if blocked {
			if len(out) > 0 {
				return vm.FetchedResult(batch.New(out), false), nil
			}
			return vm.WaitResult, nil
		}
		pick := -1
		for i, s := range ctr.sources {
			if s.finished {
				continue
			}
			if pick < 0 || colexec.CompareKeys(s.keys, ctr.sources[pick].keys, arg.Ascs) < 0 {
				pick = i
			}
		}
		if pick < 0 {
			ctr.end = true
			return vm.FetchedResult(batch.New(out), true), nil
		}
		s := ctr.sources[pick]
		out = append(out, s.bat.GetRow(s.pos))
		s.pos++
		s.keys = nil
		if len(out) >= proc.Lim.BatchRows {
			return vm.FetchedResult(batch.New(out), false), nil
		}
	}
}

// fill makes sure every unfinished source has a head row with its keys. It
// reports whether some source has nothing delivered yet.
func (arg *Argument) fill(proc *process.Process) (bool, error) {
	blocked := false
	for i, s := range arg.ctr.sources {
		if s.finished {
			continue
		}
		for !s.hasRow() {
			msg, err := arg.Inbox.Poll(proc.Ctx, i)
			if err != nil {
				return false, err
			}
			if msg == nil {
				break
			}
			s.bat, s.pos = msg.Batch, 0
		}
		if !s.hasRow() {
			if arg.Inbox.Done(i) {
				s.finished = true
			} else {
				blocked = true
			}
			continue
		}
		if s.keys == nil {
			keys, err := colexec.EvalKeys(proc, s.bat.GetRow(s.pos), arg.Exprs)
			if err != nil {
				return false, err
			}
			s.keys = keys
		}
	}
	return blocked, nil
}
