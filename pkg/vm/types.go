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

package vm

import (
	"bytes"

	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/vm/process"
)

type OpType int

const (
	MapScan OpType = iota
	EmptyScan
	Restrict
	Projection
	Order
	Group
	Dispatch
	Merge
	MergeOrder
	Output
)

var opNames = [...]string{
	MapScan:    "map_scan",
	EmptyScan:  "empty_scan",
	Restrict:   "restrict",
	Projection: "projection",
	Order:      "order",
	Group:      "group",
	Dispatch:   "dispatch",
	Merge:      "merge",
	MergeOrder: "merge_order",
	Output:     "output",
}

func (t OpType) String() string {
	return opNames[t]
}

// Operator is a non-blocking state machine pulled by its parent. Call never
// waits for data: when nothing is available it returns ExecWait and the
// stripe is rescheduled once something arrives. After ExecFetchedDone the
// operator is not called again.
type Operator interface {
	// Free releases what the operator holds. pipelineFailed marks a
	// stripe that did not finish normally.
	Free(proc *process.Process, pipelineFailed bool, err error)

	// String returns the string representation of an operator.
	String(buf *bytes.Buffer)

	//Prepare prepares an operator for execution.
	Prepare(proc *process.Process) error

	//Call advances the operator.
	Call(proc *process.Process) (CallResult, error)

	OpType() OpType

	// OperatorBase methods
	SetInfo(info *OperatorInfo)
	AppendChild(child Operator)

	GetOperatorBase() *OperatorBase
}

type OperatorBase struct {
	OperatorInfo
	Children []Operator
}

func (o *OperatorBase) SetInfo(info *OperatorInfo) {
	o.OperatorInfo = *info
}

func (o *OperatorBase) NumChildren() int {
	return len(o.Children)
}

func (o *OperatorBase) AppendChild(child Operator) {
	o.Children = append(o.Children, child)
}

func (o *OperatorBase) GetChildren(idx int) Operator {
	return o.Children[idx]
}

func (o *OperatorBase) GetIdx() int {
	return o.Idx
}

func (o *OperatorBase) GetStripe() int {
	return o.Stripe
}

type OperatorInfo struct {
	Idx      int
	Fragment int
	Stripe   int
}

type ExecStatus int

const (
	// ExecWait means no data now; the batch is not valid.
	ExecWait ExecStatus = iota
	// ExecFetched carries a batch and more will follow.
	ExecFetched
	// ExecFetchedDone carries the last batch, which may be empty.
	ExecFetchedDone
)

var statusNames = [...]string{
	ExecWait:        "WAIT",
	ExecFetched:     "FETCHED",
	ExecFetchedDone: "FETCHED_DONE",
}

func (s ExecStatus) String() string {
	return statusNames[s]
}

type CallResult struct {
	Status ExecStatus
	Batch  *batch.Batch
}

var WaitResult = CallResult{Status: ExecWait}

func FetchedResult(bat *batch.Batch, done bool) CallResult {
	if done {
		return CallResult{Status: ExecFetchedDone, Batch: bat}
	}
	return CallResult{Status: ExecFetched, Batch: bat}
}
