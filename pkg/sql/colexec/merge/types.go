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
	"github.com/matrixorigin/distsql/pkg/sql/exchange"
	"github.com/matrixorigin/distsql/pkg/vm"
	"github.com/matrixorigin/distsql/pkg/vm/process"
)

const argName = "merge"

var _ vm.Operator = new(Argument)

// Argument reads the batches of every sender stripe of an edge from one
// inbox, in arrival order.
type Argument struct {
	end bool

	Edge  int32
	Inbox *exchange.SingleInbox

	vm.OperatorBase
}

func NewArgument() *Argument {
	return &Argument{}
}

func (arg *Argument) WithInbox(edge int32, ib *exchange.SingleInbox) *Argument {
	arg.Edge = edge
	arg.Inbox = ib
	return arg
}

func (arg *Argument) GetOperatorBase() *vm.OperatorBase {
	return &arg.OperatorBase
}

func (arg Argument) TypeName() string {
	return argName
}

func (arg *Argument) OpType() vm.OpType {
	return vm.Merge
}

func (arg *Argument) Free(_ *process.Process, _ bool, _ error) {
	if arg.Inbox != nil {
		arg.Inbox.Close()
	}
}
