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

package order

import (
	"github.com/google/btree"

	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/sql/plan"
	"github.com/matrixorigin/distsql/pkg/vm"
	"github.com/matrixorigin/distsql/pkg/vm/process"
)

const argName = "order"

const (
	build = iota
	eval
	end
)

var _ vm.Operator = new(Argument)

type item struct {
	keys []any
	// arrival order, keeps the sort stable
	seq  int
	row  batch.Row
	ascs []bool
}

type container struct {
	state  int
	tree   *btree.BTree
	seq    int
	sorted []batch.Row
	pos    int
}

// Argument sorts its whole input.
type Argument struct {
	ctr *container

	Exprs []plan.Expr
	Ascs  []bool

	vm.OperatorBase
}

func NewArgument() *Argument {
	return &Argument{}
}

func (arg *Argument) WithOrder(exprs []plan.Expr, ascs []bool) *Argument {
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
	return vm.Order
}

func (arg *Argument) Free(_ *process.Process, _ bool, _ error) {
	if arg.ctr != nil {
		arg.ctr.tree = nil
		arg.ctr.sorted = nil
		arg.ctr = nil
	}
}
