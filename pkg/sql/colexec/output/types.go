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
	"github.com/matrixorigin/distsql/pkg/vm"
	"github.com/matrixorigin/distsql/pkg/vm/process"
)

const argName = "output"

var _ vm.Operator = new(Argument)

// Consumer receives the result rows of a query on the coordinator.
type Consumer interface {
	// Setup hands over the callback that resumes the root once the
	// consumer can take rows again.
	Setup(reschedule func())
	// Consume takes rows from u. It returns false when it could not take
	// all of them.
	Consume(u *vm.Upstream) bool
	// Done is called once after the last row was consumed.
	Done()
	// Fail ends the result with err.
	Fail(err error)
}

type container struct {
	up   *vm.Upstream
	done bool
}

// Argument is the root of the coordinator's fragment. It pushes rows into
// the consumer.
type Argument struct {
	ctr *container

	Consumer Consumer

	vm.OperatorBase
}

func NewArgument() *Argument {
	return &Argument{}
}

func (arg *Argument) WithConsumer(c Consumer) *Argument {
	arg.Consumer = c
	return arg
}

func (arg *Argument) GetOperatorBase() *vm.OperatorBase {
	return &arg.OperatorBase
}

func (arg Argument) TypeName() string {
	return argName
}

func (arg *Argument) OpType() vm.OpType {
	return vm.Output
}

func (arg *Argument) Free(_ *process.Process, pipelineFailed bool, err error) {
	if pipelineFailed && arg.ctr != nil && !arg.ctr.done && arg.Consumer != nil {
		arg.Consumer.Fail(err)
	}
	arg.ctr = nil
}
