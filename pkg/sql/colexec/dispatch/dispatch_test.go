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
	"bytes"
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/sql/exchange"
	"github.com/matrixorigin/distsql/pkg/sql/exchange/mock_exchange"
	"github.com/matrixorigin/distsql/pkg/sql/plan"
	"github.com/matrixorigin/distsql/pkg/testutil"
	"github.com/matrixorigin/distsql/pkg/vm"
)

type sink struct {
	msgs map[int][]*exchange.BatchMessage
}

func newSink(t *testing.T, fail error) (*mock_exchange.MockTransport, *sink) {
	ctrl := gomock.NewController(t)
	tr := mock_exchange.NewMockTransport(ctrl)
	s := &sink{msgs: make(map[int][]*exchange.BatchMessage)}
	tr.EXPECT().Send(gomock.Any(), "member-0", "b", gomock.Any()).DoAndReturn(
		func(_ context.Context, _, _ string, msg exchange.Message) error {
			if fail != nil {
				return fail
			}
			bm := msg.(*exchange.BatchMessage)
			s.msgs[bm.TargetStripe] = append(s.msgs[bm.TargetStripe], bm)
			return nil
		}).AnyTimes()
	return tr, s
}

func (s *sink) rows(stripe int) []batch.Row {
	var rows []batch.Row
	for _, m := range s.msgs[stripe] {
		rows = append(rows, m.Batch.Rows()...)
	}
	return rows
}

func (s *sink) finished(stripe int) bool {
	msgs := s.msgs[stripe]
	return len(msgs) > 0 && msgs[len(msgs)-1].Last
}

func newOutboxes(tr exchange.Transport, n int, cfg exchange.Config) []*exchange.Outbox {
	obs := make([]*exchange.Outbox, n)
	for i := range obs {
		key := exchange.OutboxKey{QueryId: "test-query", Edge: 0, Target: "b", TargetStripe: i}
		obs[i] = exchange.NewOutbox(key, "member-0", tr, cfg, nil, zap.NewNop())
	}
	return obs
}

func TestDispatchPartitioned(t *testing.T) {
	proc := testutil.NewProcess()
	tr, s := newSink(t, nil)
	obs := newOutboxes(tr, 2, exchange.Config{BatchSize: 1024, InitialCredit: 1 << 20, RowWidth: 100})
	child := testutil.NewMockOperator(
		vm.FetchedResult(testutil.NewBatch(
			[]any{"a", int64(1)}, []any{"b", int64(2)}, []any{"c", int64(3)}), false),
		vm.WaitResult,
		vm.FetchedResult(testutil.NewBatch(
			[]any{"a", int64(4)}, []any{"b", int64(5)}, []any{"c", int64(6)}), true),
	)
	arg := NewArgument().WithOutboxes(0, obs, []plan.Expr{plan.NewColumn(0)})
	arg.AppendChild(child)
	require.NoError(t, vm.Prepare(arg, proc))

	buf := new(bytes.Buffer)
	arg.String(buf)
	require.Equal(t, "dispatch(edge=0, targets=2, keys=[$0])", buf.String())

	_, err := testutil.Drain(arg, proc, 1)
	require.NoError(t, err)
	require.Equal(t, 3, child.Calls)
	require.True(t, s.finished(0))
	require.True(t, s.finished(1))

	// each key lands on exactly one stripe, in arrival order
	seen := make(map[any]int)
	total := 0
	for stripe := 0; stripe < 2; stripe++ {
		var last int64
		for _, row := range s.rows(stripe) {
			if prev, ok := seen[row[0]]; ok {
				require.Equal(t, prev, stripe)
			}
			seen[row[0]] = stripe
			require.Greater(t, row[1].(int64), last)
			last = row[1].(int64)
			total++
		}
	}
	require.Equal(t, 6, total)
	arg.Free(proc, false, nil)
}

func TestDispatchWithoutKeys(t *testing.T) {
	proc := testutil.NewProcess()
	tr, s := newSink(t, nil)
	obs := newOutboxes(tr, 1, exchange.Config{BatchSize: 1024, InitialCredit: 1 << 20, RowWidth: 100})
	arg := NewArgument().WithOutboxes(3, obs, nil)
	arg.AppendChild(testutil.NewMockOperator(vm.FetchedResult(testutil.Int64Batch(1, 2, 3), true)))
	require.NoError(t, vm.Prepare(arg, proc))

	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, vm.ExecFetchedDone, res.Status)
	require.Equal(t, []batch.Row{{int64(1)}, {int64(2)}, {int64(3)}}, s.rows(0))
	require.True(t, s.finished(0))
}

func TestDispatchWaitsForCredit(t *testing.T) {
	proc := testutil.NewProcess()
	tr, s := newSink(t, nil)
	obs := newOutboxes(tr, 1, exchange.Config{BatchSize: 1024, InitialCredit: 200, RowWidth: 100})
	child := testutil.NewMockOperator(vm.FetchedResult(testutil.Int64Batch(1, 2, 3, 4, 5), true))
	arg := NewArgument().WithOutboxes(0, obs, nil)
	arg.AppendChild(child)
	require.NoError(t, vm.Prepare(arg, proc))

	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, vm.ExecWait, res.Status)
	require.Len(t, s.rows(0), 2)
	require.False(t, s.finished(0))

	// no credit, no progress, and the child is not pulled again
	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, vm.ExecWait, res.Status)
	require.Equal(t, 1, child.Calls)

	obs[0].OnFlowControl(1000)
	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, vm.ExecFetchedDone, res.Status)
	require.Len(t, s.rows(0), 5)
	require.True(t, s.finished(0))
	require.Equal(t, 1, child.Calls)
}

func TestDispatchMemberLeft(t *testing.T) {
	proc := testutil.NewProcess()
	tr, _ := newSink(t, moerr.NewBackendClosed(context.Background(), "b"))
	obs := newOutboxes(tr, 1, exchange.Config{BatchSize: 1024, InitialCredit: 1 << 20, RowWidth: 100})
	arg := NewArgument().WithOutboxes(0, obs, nil)
	arg.AppendChild(testutil.NewMockOperator(vm.FetchedResult(testutil.Int64Batch(1), true)))
	require.NoError(t, vm.Prepare(arg, proc))

	_, err := arg.Call(proc)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrMemberLeft))
}

func TestDispatchEvalError(t *testing.T) {
	proc := testutil.NewProcess()
	tr, _ := newSink(t, nil)
	obs := newOutboxes(tr, 2, exchange.Config{BatchSize: 1024, InitialCredit: 1 << 20, RowWidth: 100})
	key := plan.NewArith(plan.Plus, plan.NewColumn(0), plan.NewConstant(int64(1)))
	arg := NewArgument().WithOutboxes(0, obs, []plan.Expr{key})
	arg.AppendChild(testutil.NewMockOperator(vm.FetchedResult(testutil.NewBatch([]any{true}), true)))
	require.NoError(t, vm.Prepare(arg, proc))

	_, err := arg.Call(proc)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrEvalTypeMismatch))
}
