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

package emptyscan

import (
	"bytes"

	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/vm"
	"github.com/matrixorigin/distsql/pkg/vm/process"
)

const argName = "empty_scan"

var _ vm.Operator = new(Argument)

// Argument stands in for a scan with nothing to read on this stripe.
type Argument struct {
	vm.OperatorBase
}

func NewArgument() *Argument {
	return &Argument{}
}

func (arg *Argument) GetOperatorBase() *vm.OperatorBase {
	return &arg.OperatorBase
}

func (arg Argument) TypeName() string {
	return argName
}

func (arg *Argument) OpType() vm.OpType {
	return vm.EmptyScan
}

func (arg *Argument) String(buf *bytes.Buffer) {
	buf.WriteString(argName)
}

func (arg *Argument) Prepare(_ *process.Process) error {
	return nil
}

func (arg *Argument) Call(_ *process.Process) (vm.CallResult, error) {
	return vm.FetchedResult(batch.EmptyBatch, true), nil
}

func (arg *Argument) Free(_ *process.Process, _ bool, _ error) {
}
