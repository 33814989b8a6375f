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

package output

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/testutil"
	"github.com/matrixorigin/distsql/pkg/vm"
)

// limitedConsumer takes at most capacity rows until it is drained.
type limitedConsumer struct {
	capacity   int
	rows       []batch.Row
	reschedule func()
	done       int
	err        error
}

func (c *limitedConsumer) Setup(reschedule func()) {
	c.reschedule = reschedule
}

func (c *limitedConsumer) Consume(u *vm.Upstream) bool {
	for u.HasNext() {
		if len(c.rows) >= c.capacity {
			return false
		}
		c.rows = append(c.rows, u.Next())
	}
	return true
}

func (c *limitedConsumer) Done() {
	c.done++
}

func (c *limitedConsumer) Fail(err error) {
	c.err = err
}

func TestOutput(t *testing.T) {
	proc := testutil.NewProcess()
	rescheduled := 0
	proc.SetRescheduler(func() { rescheduled++ })
	child := testutil.NewMockOperator(
		vm.FetchedResult(testutil.Int64Batch(1, 2, 3), false),
		vm.WaitResult,
		vm.FetchedResult(batch.EmptyBatch, false),
		vm.FetchedResult(testutil.Int64Batch(4), true),
	)
	c := &limitedConsumer{capacity: 2}
	arg := NewArgument().WithConsumer(c)
	arg.AppendChild(child)
	require.NoError(t, vm.Prepare(arg, proc))
	require.NotNil(t, c.reschedule)
	c.reschedule()
	require.Equal(t, 1, rescheduled)

	// the consumer is full after two rows
	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, vm.ExecWait, res.Status)
	require.Len(t, c.rows, 2)

	c.capacity = 10
	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, vm.ExecFetched, res.Status)
	require.Len(t, c.rows, 3)

	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, vm.ExecWait, res.Status)

	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, vm.ExecFetchedDone, res.Status)
	require.Equal(t, []batch.Row{{int64(1)}, {int64(2)}, {int64(3)}, {int64(4)}}, c.rows)
	require.Equal(t, 1, c.done)
	require.Equal(t, 4, child.Calls)

	// never pulls the child after it finished
	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, vm.ExecFetchedDone, res.Status)
	require.Equal(t, 4, child.Calls)
	require.Equal(t, 1, c.done)

	arg.Free(proc, false, nil)
	require.NoError(t, c.err)
}

func TestOutputFailure(t *testing.T) {
	proc := testutil.NewProcess()
	child := testutil.NewMockOperator()
	child.Err = moerr.NewEvalTypeMismatch(context.Background(), "boom")
	c := &limitedConsumer{capacity: 10}
	arg := NewArgument().WithConsumer(c)
	arg.AppendChild(child)
	require.NoError(t, vm.Prepare(arg, proc))

	_, err := arg.Call(proc)
	require.Error(t, err)
	arg.Free(proc, true, err)
	require.Equal(t, err, c.err)
	require.Equal(t, 0, c.done)
}
