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

package output

import (
	"bytes"

	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/vm"
	"github.com/matrixorigin/distsql/pkg/vm/process"
)

func (arg *Argument) String(buf *bytes.Buffer) {
	buf.WriteString(argName)
}

func (arg *Argument) Prepare(proc *process.Process) error {
	arg.ctr = &container{up: vm.NewUpstream(arg.GetChildren(0))}
	arg.Consumer.Setup(proc.Rescheduler())
	return nil
}

// Call moves rows from the child to the consumer. The child is not called
// again once it reported ExecFetchedDone.
func (arg *Argument) Call(proc *process.Process) (vm.CallResult, error) {
	ctr := arg.ctr
	if ctr.done {
		return vm.FetchedResult(batch.EmptyBatch, true), nil
	}
	for {
		ok, err := ctr.up.Advance(proc)
		if err != nil {
			return vm.CallResult{}, err
		}
		if !ok {
			return vm.WaitResult, nil
		}
		if ctr.up.HasNext() {
			if !arg.Consumer.Consume(ctr.up) {
				return vm.WaitResult, nil
			}
		}
		if ctr.up.Exhausted() {
			ctr.done = true
			arg.Consumer.Done()
			return vm.FetchedResult(batch.EmptyBatch, true), nil
		}
		if !ctr.up.HasNext() && ctr.up.Batch().RowCount() > 0 {
			return vm.FetchedResult(batch.EmptyBatch, false), nil
		}
	}
}
