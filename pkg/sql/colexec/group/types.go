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

package group

import (
	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/sql/plan"
	"github.com/matrixorigin/distsql/pkg/vm"
	"github.com/matrixorigin/distsql/pkg/vm/process"
)

const argName = "group"

const (
	build = iota
	eval
	end
)

var _ vm.Operator = new(Argument)

type group struct {
	keys []any
	accs []plan.Accumulator
}

type container struct {
	state int

	keyCols []int
	// hash mode
	buckets map[uint64][]*group
	groups  []*group
	// sorted mode
	current *group

	result []batch.Row
	pos    int
}

// Argument aggregates rows whose first GroupKeySize columns are equal. The
// output row is the group key followed by one value per aggregate.
type Argument struct {
	ctr *container

	GroupKeySize int
	Aggregates   []*plan.Aggregate
	// Sorted input lets groups stream out as soon as the key changes.
	Sorted bool

	vm.OperatorBase
}

func NewArgument() *Argument {
	return &Argument{}
}

func (arg *Argument) WithAggregates(groupKeySize int, aggs []*plan.Aggregate, sorted bool) *Argument {
	arg.GroupKeySize = groupKeySize
	arg.Aggregates = aggs
	arg.Sorted = sorted
	return arg
}

func (arg *Argument) GetOperatorBase() *vm.OperatorBase {
	return &arg.OperatorBase
}

func (arg Argument) TypeName() string {
	return argName
}

func (arg *Argument) OpType() vm.OpType {
	return vm.Group
}

func (arg *Argument) Free(_ *process.Process, _ bool, _ error) {
	if arg.ctr != nil {
		arg.ctr.buckets = nil
		arg.ctr.groups = nil
		arg.ctr.result = nil
		arg.ctr = nil
	}
}
