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

package projection

import (
	"bytes"
	"strings"

	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/sql/colexec"
	"github.com/matrixorigin/distsql/pkg/sql/plan"
	"github.com/matrixorigin/distsql/pkg/vm"
	"github.com/matrixorigin/distsql/pkg/vm/process"
)

const argName = "projection"

var _ vm.Operator = new(Argument)

type Argument struct {
	Projects []plan.Expr

	vm.OperatorBase
}

func NewArgument() *Argument {
	return &Argument{}
}

func (arg *Argument) WithProjects(projects []plan.Expr) *Argument {
	arg.Projects = projects
	return arg
}

func (arg *Argument) GetOperatorBase() *vm.OperatorBase {
	return &arg.OperatorBase
}

func (arg Argument) TypeName() string {
	return argName
}

func (arg *Argument) OpType() vm.OpType {
	return vm.Projection
}

func (arg *Argument) Free(_ *process.Process, _ bool, _ error) {
}

func (arg *Argument) String(buf *bytes.Buffer) {
	exprs := make([]string, len(arg.Projects))
	for i, e := range arg.Projects {
		exprs[i] = e.String()
	}
	buf.WriteString(argName + "(" + strings.Join(exprs, ", ") + ")")
}

func (arg *Argument) Prepare(_ *process.Process) error {
	return nil
}

func (arg *Argument) Call(proc *process.Process) (vm.CallResult, error) {
	res, err := arg.GetChildren(0).Call(proc)
	if err != nil || res.Status == vm.ExecWait {
		return res, err
	}
	bat := res.Batch
	rows := make([]batch.Row, bat.RowCount())
	for i := range rows {
		if rows[i], err = colexec.Project(proc, bat.GetRow(i), arg.Projects); err != nil {
			return vm.CallResult{}, err
		}
	}
	res.Batch = batch.New(rows)
	return res, nil
}
