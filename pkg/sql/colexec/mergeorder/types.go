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
	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/sql/exchange"
	"github.com/matrixorigin/distsql/pkg/sql/plan"
	"github.com/matrixorigin/distsql/pkg/vm"
	"github.com/matrixorigin/distsql/pkg/vm/process"
)

const argName = "merge_order"

var _ vm.Operator = new(Argument)

// source is the head of one sender stripe's queue.
type source struct {
	bat      *batch.Batch
	pos      int
	keys     []any
	finished bool
}

func (s *source) hasRow() bool {
	return s.pos < s.bat.RowCount()
}

type container struct {
	sources []*source
	end     bool
}

// Argument merges the sorted streams of every sender stripe of an edge. A
// row is emitted only once each unfinished stream has a head row to
// compare it with.
type Argument struct {
	ctr *container

	Edge  int32
	Inbox *exchange.StripedInbox
	Exprs []plan.Expr
	Ascs  []bool

	vm.OperatorBase
}

func NewArgument() *Argument {
	return &Argument{}
}

func (arg *Argument) WithInbox(edge int32, ib *exchange.StripedInbox, exprs []plan.Expr, ascs []bool) *Argument {
	arg.Edge = edge
	arg.Inbox = ib
	arg.Exprs = exprs
	arg.Ascs = ascs
	return arg
}

func (arg *Argument) GetOperatorBase() *vm.OperatorBase {
	return &arg.OperatorBase
}

func (arg Argument) TypeName() string {
	return argName
}

func (arg *Argument) OpType() vm.OpType {
	return vm.MergeOrder
}

func (arg *Argument) Free(_ *process.Process, _ bool, _ error) {
	if arg.Inbox != nil {
		arg.Inbox.Close()
	}
	arg.ctr = nil
}
