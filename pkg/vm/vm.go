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

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/vm/process"
)

// CancelCheck returns the stopped error once the query was cancelled.
func CancelCheck(proc *process.Process) error {
	if proc.IsCancelled() {
		return moerr.NewQueryStopped(proc.Ctx, proc.QueryId())
	}
	select {
	case <-proc.Ctx.Done():
		return moerr.NewQueryStopped(proc.Ctx, proc.QueryId())
	default:
		return nil
	}
}

// String renders an operator tree, root first.
func String(op Operator, buf *bytes.Buffer) {
	op.String(buf)
	for _, c := range op.GetOperatorBase().Children {
		buf.WriteString(" <- ")
		String(c, buf)
	}
}

// Prepare prepares the operator tree bottom up.
func Prepare(op Operator, proc *process.Process) error {
	for _, c := range op.GetOperatorBase().Children {
		if err := Prepare(c, proc); err != nil {
			return err
		}
	}
	return op.Prepare(proc)
}

// Free releases the tree top down.
func Free(op Operator, proc *process.Process, pipelineFailed bool, err error) {
	op.Free(proc, pipelineFailed, err)
	for _, c := range op.GetOperatorBase().Children {
		Free(c, proc, pipelineFailed, err)
	}
}

// Upstream is a row cursor over a child operator. It pulls a new batch only
// once every row of the current one was consumed, and never pulls after
// the child reported ExecFetchedDone.
type Upstream struct {
	op    Operator
	batch *batch.Batch
	pos   int
	done  bool
}

func NewUpstream(op Operator) *Upstream {
	return &Upstream{op: op, batch: batch.EmptyBatch}
}

// Advance makes rows available. It returns false when the child has none
// right now.
func (u *Upstream) Advance(proc *process.Process) (bool, error) {
	if u.done || u.pos < u.batch.RowCount() {
		return true, nil
	}
	res, err := u.op.Call(proc)
	if err != nil {
		return false, err
	}
	switch res.Status {
	case ExecWait:
		return false, nil
	case ExecFetchedDone:
		u.done = true
	}
	u.batch = res.Batch
	if u.batch == nil {
		u.batch = batch.EmptyBatch
	}
	u.pos = 0
	return true, nil
}

// IsDone reports that the child finished. Rows of its last batch may still
// be pending.
func (u *Upstream) IsDone() bool {
	return u.done
}

// Exhausted reports that the child finished and every row was consumed.
func (u *Upstream) Exhausted() bool {
	return u.done && u.pos >= u.batch.RowCount()
}

func (u *Upstream) HasNext() bool {
	return u.pos < u.batch.RowCount()
}

func (u *Upstream) Next() batch.Row {
	row := u.batch.GetRow(u.pos)
	u.pos++
	return row
}

// Batch is the current batch; Position is the next row to consume.
func (u *Upstream) Batch() *batch.Batch {
	return u.batch
}

func (u *Upstream) Position() int {
	return u.pos
}

func (u *Upstream) SetPosition(pos int) {
	u.pos = pos
}

// TakeBatch returns the unconsumed rows of the current batch and consumes
// them.
func (u *Upstream) TakeBatch() *batch.Batch {
	bat := u.batch
	if u.pos > 0 {
		bat = batch.New(bat.Rows()[u.pos:])
	}
	u.pos = u.batch.RowCount()
	return bat
}
