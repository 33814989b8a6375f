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

package compile

import (
	"bytes"
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/config"
	"github.com/matrixorigin/distsql/pkg/frontend"
	"github.com/matrixorigin/distsql/pkg/sql/exchange"
	"github.com/matrixorigin/distsql/pkg/sql/plan"
	"github.com/matrixorigin/distsql/pkg/vm"
	"github.com/matrixorigin/distsql/pkg/vm/engine/memEngine"
	"github.com/matrixorigin/distsql/pkg/vm/process"
)

func newTestBuilder(t *testing.T, qp *plan.QueryPlan, fragment int, member string, stripe int) *Builder {
	qs := process.NewQueryState("q1", qp.Coordinator, nil)
	proc := process.New(context.Background(), qs, member, fragment, stripe,
		process.Limitation{BatchRows: 8, RowWidth: 100}, zap.NewNop())
	return &Builder{
		queryId:   "q1",
		member:    member,
		plan:      qp,
		fragment:  qp.Fragments[fragment],
		fragIdx:   fragment,
		stripe:    stripe,
		engine:    memEngine.New(),
		transport: exchange.NewLocalTransport(config.CodecNone),
		cfg:       exchange.Config{BatchSize: 1024, InitialCredit: 1 << 20, RowWidth: 100},
		proc:      proc,
		logger:    zap.NewNop(),
	}
}

func testPlan(t *testing.T, rel plan.Rel, partitionMap map[string]*roaring.Bitmap) *plan.QueryPlan {
	opt, err := plan.NewOptimizer(context.Background(), config.OptimizerDefault, "member-a")
	require.NoError(t, err)
	qp, err := plan.Prepare(context.Background(), opt, rel, partitionMap, 4, "member-a", 2)
	require.NoError(t, err)
	return qp
}

func TestBuildSendFragment(t *testing.T) {
	qp := testPlan(t, &plan.RootRel{Input: ordersScan()}, map[string]*roaring.Bitmap{
		"member-a": roaring.BitmapOf(0, 1),
		"member-b": roaring.BitmapOf(2, 3),
	})
	require.Len(t, qp.Fragments, 2)

	b := newTestBuilder(t, qp, 0, "member-b", 1)
	root, err := b.Build()
	require.NoError(t, err)
	var buf bytes.Buffer
	vm.String(root, &buf)
	require.Contains(t, buf.String(), "dispatch")
	require.Contains(t, buf.String(), "map_scan(orders, partitions=1)")
	// one outbox per receiving stripe of the root fragment
	require.Len(t, b.outboxes, 1)
	require.Empty(t, b.inboxes)
	require.Equal(t, 2, b.opIdx)
}

func TestBuildStripeWithoutPartitions(t *testing.T) {
	qp := testPlan(t, &plan.RootRel{Input: ordersScan()}, map[string]*roaring.Bitmap{
		"member-a": roaring.BitmapOf(0, 1, 2),
		"member-b": roaring.BitmapOf(3),
	})
	b := newTestBuilder(t, qp, 0, "member-b", 1)
	root, err := b.Build()
	require.NoError(t, err)
	var buf bytes.Buffer
	vm.String(root, &buf)
	require.Contains(t, buf.String(), "empty_scan")
}

func TestBuildRootFragment(t *testing.T) {
	qp := testPlan(t, &plan.RootRel{Input: ordersScan()}, map[string]*roaring.Bitmap{
		"member-a": roaring.BitmapOf(0, 1, 2, 3),
	})
	root := len(qp.Fragments) - 1

	b := newTestBuilder(t, qp, root, "member-a", 0)
	_, err := b.Build()
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrPlanDefect), "%v", err)

	b = newTestBuilder(t, qp, root, "member-a", 0)
	b.consumer = frontend.NewPagedConsumer(0)
	op, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, vm.Output, op.OpType())
	require.Len(t, b.inboxes, 1)
	require.Equal(t, exchange.InboxKey{QueryId: "q1", Edge: 0, Stripe: 0}, b.inboxes[0].key)
	require.Contains(t, b.String(), "fragment=1")
}
