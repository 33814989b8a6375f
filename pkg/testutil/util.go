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

package testutil

import (
	"bytes"
	"context"

	"go.uber.org/zap"

	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/vm"
	"github.com/matrixorigin/distsql/pkg/vm/process"
)

// NewProcess returns a process of stripe 0 of fragment 0 of a fresh query.
func NewProcess() *process.Process {
	return NewProcessWithArgs(nil)
}

func NewProcessWithArgs(args []any) *process.Process {
	qs := process.NewQueryState("test-query", "member-0", args)
	return process.New(context.Background(), qs, "member-0", 0, 0,
		process.Limitation{BatchRows: 4, RowWidth: 100}, zap.NewNop())
}

// NewBatch builds a batch of rows given as value lists.
func NewBatch(rows ...[]any) *batch.Batch {
	bat := make([]batch.Row, len(rows))
	for i, r := range rows {
		bat[i] = batch.Row(r)
	}
	return batch.New(bat)
}

// Int64Batch builds a single column batch.
func Int64Batch(vs ...int64) *batch.Batch {
	rows := make([]batch.Row, len(vs))
	for i, v := range vs {
		rows[i] = batch.Row{v}
	}
	return batch.New(rows)
}

// MockOperator replays scripted results. Calls after the script ends
// return the last result again, which lets tests catch calls made after
// ExecFetchedDone.
type MockOperator struct {
	vm.OperatorBase
	Results []vm.CallResult
	Err     error
	Calls   int
	Freed   bool
}

var _ vm.Operator = new(MockOperator)

func NewMockOperator(results ...vm.CallResult) *MockOperator {
	return &MockOperator{Results: results}
}

func (op *MockOperator) Free(_ *process.Process, _ bool, _ error) {
	op.Freed = true
}

func (op *MockOperator) String(buf *bytes.Buffer) {
	buf.WriteString("mock")
}

func (op *MockOperator) Prepare(_ *process.Process) error {
	return nil
}

func (op *MockOperator) Call(_ *process.Process) (vm.CallResult, error) {
	op.Calls++
	if op.Err != nil {
		return vm.CallResult{}, op.Err
	}
	if len(op.Results) == 0 {
		return vm.FetchedResult(batch.EmptyBatch, true), nil
	}
	if op.Calls > len(op.Results) {
		return op.Results[len(op.Results)-1], nil
	}
	return op.Results[op.Calls-1], nil
}

func (op *MockOperator) OpType() vm.OpType {
	return vm.MapScan
}

func (op *MockOperator) GetOperatorBase() *vm.OperatorBase {
	return &op.OperatorBase
}

// Drain calls op until it reports ExecFetchedDone and returns every row.
// It gives up after maxWaits consecutive ExecWait results.
func Drain(op vm.Operator, proc *process.Process, maxWaits int) ([]batch.Row, error) {
	var rows []batch.Row
	waits := 0
	for {
		res, err := op.Call(proc)
		if err != nil {
			return rows, err
		}
		if res.Status == vm.ExecWait {
			if waits++; waits > maxWaits {
				return rows, context.DeadlineExceeded
			}
			continue
		}
		waits = 0
		rows = append(rows, res.Batch.Rows()...)
		if res.Status == vm.ExecFetchedDone {
			return rows, nil
		}
	}
}
