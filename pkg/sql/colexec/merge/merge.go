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

package merge

import (
	"bytes"
	"fmt"

	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/vm"
	"github.com/matrixorigin/distsql/pkg/vm/process"
)

func (arg *Argument) String(buf *bytes.Buffer) {
	buf.WriteString(fmt.Sprintf("%s(edge=%d)", argName, arg.Edge))
}

func (arg *Argument) Prepare(_ *process.Process) error {
	arg.end = false
	return nil
}

func (arg *Argument) Call(proc *process.Process) (vm.CallResult, error) {
	if arg.end {
		return vm.FetchedResult(batch.EmptyBatch, true), nil
	}
	if err := vm.CancelCheck(proc); err != nil {
		return vm.CallResult{}, err
	}
	for {
		msg, err := arg.Inbox.Poll(proc.Ctx)
		if err != nil {
			return vm.CallResult{}, err
		}
		if msg == nil {
			if arg.Inbox.Done() {
				arg.end = true
				return vm.FetchedResult(batch.EmptyBatch, true), nil
			}
			return vm.WaitResult, nil
		}
		if arg.Inbox.Done() {
			arg.end = true
			return vm.FetchedResult(msg.Batch, true), nil
		}
		if !msg.Batch.IsEmpty() {
			return vm.FetchedResult(msg.Batch, false), nil
		}
	}
}
