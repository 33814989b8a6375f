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
	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/sql/exchange"
	"github.com/matrixorigin/distsql/pkg/sql/plan"
	"github.com/matrixorigin/distsql/pkg/vm"
	"github.com/matrixorigin/distsql/pkg/vm/process"
)

const argName = "dispatch"

// rows without partition keys all go to the same target
const constantHash uint64 = 1

var _ vm.Operator = new(Argument)

type container struct {
	bat  *batch.Batch
	last bool
	// positions[i] is the next row of bat for Outboxes[i]
	positions []int
	routes    []int
	keyCols   []int
	end       bool
}

// Argument sends every input row to one of the outboxes of an edge. The
// target is the hash of the partition keys modulo the number of outboxes.
type Argument struct {
	ctr *container

	Edge          int32
	Outboxes      []*exchange.Outbox
	PartitionKeys []plan.Expr

	vm.OperatorBase
}

func NewArgument() *Argument {
	return &Argument{}
}

func (arg *Argument) WithOutboxes(edge int32, outboxes []*exchange.Outbox, keys []plan.Expr) *Argument {
	arg.Edge = edge
	arg.Outboxes = outboxes
	arg.PartitionKeys = keys
	return arg
}

func (arg *Argument) GetOperatorBase() *vm.OperatorBase {
	return &arg.OperatorBase
}

func (arg Argument) TypeName() string {
	return argName
}

func (arg *Argument) OpType() vm.OpType {
	return vm.Dispatch
}

func (arg *Argument) Free(_ *process.Process, _ bool, _ error) {
	for _, ob := range arg.Outboxes {
		ob.Close()
	}
	arg.ctr = nil
}
