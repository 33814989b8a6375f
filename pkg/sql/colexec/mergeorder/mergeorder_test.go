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
	"bytes"
	"math/rand"
	"sort"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/sql/exchange"
	"github.com/matrixorigin/distsql/pkg/sql/exchange/mock_exchange"
	"github.com/matrixorigin/distsql/pkg/sql/plan"
	"github.com/matrixorigin/distsql/pkg/testutil"
	"github.com/matrixorigin/distsql/pkg/vm"
)

var senders = []string{"a", "b"}

const parallelism = 2

func newInbox(t *testing.T) *exchange.StripedInbox {
	ctrl := gomock.NewController(t)
	tr := mock_exchange.NewMockTransport(ctrl)
	tr.EXPECT().Send(gomock.Any(), "member-0", gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	key := exchange.InboxKey{QueryId: "test-query", Edge: 0}
	cfg := exchange.Config{BatchSize: 1024, InitialCredit: 1 << 20, RowWidth: 100}
	return exchange.NewStripedInbox(key, "member-0", tr, cfg, senders, parallelism, nil, zap.NewNop())
}

type stream struct {
	member string
	stripe int
	msgs   []*exchange.BatchMessage
}

// sortedStreams splits sorted random rows of every sender stripe into
// batches of up to three rows, ending with an empty last batch.
func sortedStreams(r *rand.Rand, ascending bool) ([]*stream, int) {
	var streams []*stream
	total := 0
	for _, m := range senders {
		for stripe := 0; stripe < parallelism; stripe++ {
			n := r.Intn(10)
			vs := make([]int64, n)
			for i := range vs {
				vs[i] = r.Int63n(50)
			}
			sort.Slice(vs, func(i, j int) bool {
				if ascending {
					return vs[i] < vs[j]
				}
				return vs[i] > vs[j]
			})
			s := &stream{member: m, stripe: stripe}
			for len(vs) > 0 {
				k := 1 + r.Intn(3)
				if k > len(vs) {
					k = len(vs)
				}
				s.msgs = append(s.msgs, message(m, stripe, false, vs[:k]))
				vs = vs[k:]
			}
			s.msgs = append(s.msgs, message(m, stripe, true, nil))
			streams = append(streams, s)
			total += n
		}
	}
	return streams, total
}

func message(member string, stripe int, last bool, vs []int64) *exchange.BatchMessage {
	rows := make([]batch.Row, len(vs))
	for i, v := range vs {
		rows[i] = batch.Row{"x", v}
	}
	return &exchange.BatchMessage{
		QueryId:      "test-query",
		Sender:       member,
		SenderStripe: stripe,
		Batch:        batch.New(rows),
		Last:         last,
	}
}

// runShuffled delivers the batches of every stream in a random
// interleaving, calling the operator in between.
func runShuffled(t *testing.T, seed int64, ascending bool) ([]batch.Row, int) {
	r := rand.New(rand.NewSource(seed))
	proc := testutil.NewProcess()
	ib := newInbox(t)
	arg := NewArgument().WithInbox(0, ib, []plan.Expr{plan.NewColumn(1)}, []bool{ascending})
	require.NoError(t, vm.Prepare(arg, proc))

	streams, total := sortedStreams(r, ascending)
	var out []batch.Row
	done := false
	call := func() {
		res, err := arg.Call(proc)
		require.NoError(t, err)
		if res.Status == vm.ExecWait {
			return
		}
		require.False(t, done)
		out = append(out, res.Batch.Rows()...)
		done = res.Status == vm.ExecFetchedDone
	}
	for len(streams) > 0 {
		i := r.Intn(len(streams))
		s := streams[i]
		ib.OnBatch(s.msgs[0])
		if s.msgs = s.msgs[1:]; len(s.msgs) == 0 {
			streams = append(streams[:i], streams[i+1:]...)
		}
		if r.Intn(2) == 0 {
			call()
		}
	}
	for i := 0; i < 100 && !done; i++ {
		call()
	}
	require.True(t, done)
	return out, total
}

func TestMergeOrderMonotonic(t *testing.T) {
	convey.Convey("merged output is ordered for any arrival order", t, func() {
		for seed := int64(0); seed < 50; seed++ {
			for _, asc := range []bool{true, false} {
				out, total := runShuffled(t, seed, asc)
				convey.So(out, convey.ShouldHaveLength, total)
				for i := 1; i < len(out); i++ {
					prev, cur := out[i-1][1].(int64), out[i][1].(int64)
					if asc {
						convey.So(prev, convey.ShouldBeLessThanOrEqualTo, cur)
					} else {
						convey.So(prev, convey.ShouldBeGreaterThanOrEqualTo, cur)
					}
				}
			}
		}
	})
}

func TestMergeOrderBlocksOnEmptySource(t *testing.T) {
	proc := testutil.NewProcess()
	ib := newInbox(t)
	arg := NewArgument().WithInbox(0, ib, []plan.Expr{plan.NewColumn(1)}, []bool{true})
	require.NoError(t, vm.Prepare(arg, proc))

	buf := new(bytes.Buffer)
	arg.String(buf)
	require.Equal(t, "merge_order(edge=0, [$1 ASC])", buf.String())

	// member b's rows arrive first but cannot pass a's silent streams
	ib.OnBatch(message("b", 0, true, []int64{1, 5}))
	ib.OnBatch(message("b", 1, true, nil))
	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, vm.ExecWait, res.Status)

	ib.OnBatch(message("a", 0, true, []int64{2}))
	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, vm.ExecWait, res.Status)

	ib.OnBatch(message("a", 1, false, []int64{3}))
	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, vm.ExecFetched, res.Status)
	require.Equal(t, []batch.Row{{"x", int64(1)}, {"x", int64(2)}, {"x", int64(3)}}, res.Batch.Rows())

	ib.OnBatch(message("a", 1, true, nil))
	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, vm.ExecFetchedDone, res.Status)
	require.Equal(t, []batch.Row{{"x", int64(5)}}, res.Batch.Rows())
}
