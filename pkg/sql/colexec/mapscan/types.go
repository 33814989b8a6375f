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

package mapscan

import (
	"github.com/RoaringBitmap/roaring"
	"go.uber.org/zap"

	"github.com/matrixorigin/distsql/pkg/sql/plan"
	"github.com/matrixorigin/distsql/pkg/vm"
	"github.com/matrixorigin/distsql/pkg/vm/engine"
	"github.com/matrixorigin/distsql/pkg/vm/process"
)

const argName = "map_scan"

var _ vm.Operator = new(Argument)

type container struct {
	m     engine.Map
	parts []uint32
	// next partition to open
	idx int
	itr engine.Iterator
	row plan.KeyValueRow
}

// Argument scans a set of partitions of a map. Entries are filtered and
// projected through a KeyValueRow over Fields.
type Argument struct {
	ctr *container

	Engine     engine.Engine
	MapName    string
	Fields     []string
	Projects   []plan.Expr
	Filter     plan.Expr
	Partitions *roaring.Bitmap

	vm.OperatorBase
}

func (arg *Argument) GetOperatorBase() *vm.OperatorBase {
	return &arg.OperatorBase
}

func (arg Argument) TypeName() string {
	return argName
}

func (arg *Argument) OpType() vm.OpType {
	return vm.MapScan
}

func NewArgument() *Argument {
	return &Argument{}
}

func (arg *Argument) Free(proc *process.Process, pipelineFailed bool, err error) {
	if ctr := arg.ctr; ctr != nil {
		if ctr.itr != nil {
			if cerr := ctr.itr.Close(); cerr != nil {
				proc.Warn("failed to close map iterator", zap.Error(cerr))
			}
			ctr.itr = nil
		}
		arg.ctr = nil
	}
}
