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
	"context"
	"testing"
	"time"

	"github.com/lni/goutils/leaktest"
	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/config"
	"github.com/matrixorigin/distsql/pkg/container/types"
	"github.com/matrixorigin/distsql/pkg/frontend"
	"github.com/matrixorigin/distsql/pkg/sql/exchange"
	"github.com/matrixorigin/distsql/pkg/sql/plan"
	"github.com/matrixorigin/distsql/pkg/vm/engine"
	"github.com/matrixorigin/distsql/pkg/vm/engine/memEngine"
)

func TestScanFilter(t *testing.T) {
	defer leaktest.AfterTest(t)()
	c := newTestCluster(t, nil)
	defer c.Close()
	loadOrders(t, c, 200)

	ctx := context.Background()
	rel := &plan.RootRel{Input: &plan.FilterRel{
		Input:     ordersScan(),
		Condition: plan.NewCompare(plan.GE, plan.NewColumn(3), plan.NewConstant(int64(5))),
	}}
	rows, err := c.Query(ctx, rel)
	require.NoError(t, err)

	var expected []int64
	for i := int64(0); i < 200; i++ {
		if i%7 >= 5 {
			expected = append(expected, i)
		}
	}
	require.Len(t, rows, len(expected))
	sortRows(rows)
	for i, row := range rows {
		require.Len(t, row, 4)
		require.Equal(t, expected[i], row[0])
		require.Equal(t, expected[i]%7, row[3])
	}
	requireReleased(t, c)
}

func TestQueryArguments(t *testing.T) {
	defer leaktest.AfterTest(t)()
	for _, codec := range []string{config.CodecBinary, config.CodecLZ4} {
		t.Run(codec, func(t *testing.T) {
			c := newTestCluster(t, func(p *config.Parameters) {
				p.Exchange.Codec = codec
			})
			defer c.Close()
			loadOrders(t, c, 100)

			rel := &plan.RootRel{Input: &plan.FilterRel{
				Input:     ordersScan(),
				Condition: plan.NewCompare(plan.EQ, plan.NewColumn(1), &plan.ParameterExpr{Index: 0}),
			}}
			rows, err := c.Query(context.Background(), rel, "c3")
			require.NoError(t, err)
			require.Len(t, rows, 20)
			sortRows(rows)
			for i, row := range rows {
				require.Equal(t, int64(5*i+3), row[0])
				require.Equal(t, "c3", row[1])
				require.Equal(t, 0, types.Compare(types.DecimalFromInt64(int64(5*i+3)), row[2]))
			}
			requireReleased(t, c)
		})
	}
}

func TestGlobalSort(t *testing.T) {
	defer leaktest.AfterTest(t)()
	c := newTestCluster(t, nil)
	defer c.Close()
	loadOrders(t, c, 300)

	rel := &plan.RootRel{Input: &plan.SortRel{
		Input: ordersScan(),
		Collation: []plan.FieldCollation{
			{Index: 3, Direction: plan.Descending},
			{Index: 0, Direction: plan.Ascending},
		},
	}}
	rows, err := c.Query(context.Background(), rel)
	require.NoError(t, err)
	require.Len(t, rows, 300)
	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]
		q := types.Compare(prev[3], cur[3])
		require.True(t, q > 0 || (q == 0 && types.Compare(prev[0], cur[0]) < 0),
			"row %d %v after %v", i, cur, prev)
	}
	requireReleased(t, c)
}

func TestGlobalAggregateOverEmptyInput(t *testing.T) {
	defer leaktest.AfterTest(t)()
	c := newTestCluster(t, nil)
	defer c.Close()
	loadOrders(t, c, 50)

	rel := &plan.RootRel{Input: &plan.AggregateRel{
		Input: &plan.FilterRel{
			Input:     ordersScan(),
			Condition: plan.NewCompare(plan.GT, plan.NewColumn(3), plan.NewConstant(int64(100))),
		},
		Calls: []plan.AggregateCall{
			{Kind: plan.AggSum, Arg: 2, Name: "total"},
			{Kind: plan.AggCount, Arg: -1, Name: "cnt"},
		},
	}}
	rows, err := c.Query(context.Background(), rel)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	total, ok := rows[0][0].(types.Decimal)
	require.True(t, ok, "%T", rows[0][0])
	require.True(t, total.IsZero())
	require.Equal(t, int64(0), rows[0][1])
	requireReleased(t, c)
}

func TestCollocatedAggregate(t *testing.T) {
	defer leaktest.AfterTest(t)()
	c := newTestCluster(t, nil)
	defer c.Close()
	loadOrders(t, c, 60)

	// grouping by the partitioning column needs no repartitioning
	rel := &plan.RootRel{Input: &plan.AggregateRel{
		Input:    ordersScan(),
		GroupSet: []int{0},
		Calls:    []plan.AggregateCall{{Kind: plan.AggSum, Arg: 3, Name: "qty"}},
	}}
	qp, err := c.Prepare(context.Background(), rel)
	require.NoError(t, err)
	require.Len(t, qp.Fragments, 2)

	rows, err := c.Query(context.Background(), rel)
	require.NoError(t, err)
	require.Len(t, rows, 60)
	sortRows(rows)
	for i, row := range rows {
		require.Equal(t, int64(i), row[0])
		require.Equal(t, int64(i%7), row[1])
	}
	requireReleased(t, c)
}

func TestPartitionedAggregate(t *testing.T) {
	defer leaktest.AfterTest(t)()
	c := newTestCluster(t, nil)
	defer c.Close()
	loadOrders(t, c, 100)

	rel := &plan.RootRel{Input: &plan.AggregateRel{
		Input:    ordersScan(),
		GroupSet: []int{1},
		Calls: []plan.AggregateCall{
			{Kind: plan.AggCount, Arg: -1, Name: "cnt"},
			{Kind: plan.AggSum, Arg: 0, Name: "keys"},
			{Kind: plan.AggCount, Arg: 3, Distinct: true, Name: "qtys"},
		},
	}}
	qp, err := c.Prepare(context.Background(), rel)
	require.NoError(t, err)
	require.Len(t, qp.Fragments, 3)

	rows, err := c.Query(context.Background(), rel)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	sortRows(rows)
	for g, row := range rows {
		var sum int64
		for i := int64(g); i < 100; i += 5 {
			sum += i
		}
		require.Equal(t, "c"+string(rune('0'+g)), row[0])
		require.Equal(t, int64(20), row[1])
		require.Equal(t, sum, row[2])
		require.Equal(t, int64(7), row[3])
	}
	requireReleased(t, c)
}

func TestReplicatedMapScan(t *testing.T) {
	defer leaktest.AfterTest(t)()
	for _, seed := range []uint64{0, 1, 2} {
		stubs := gostub.Stub(&replicaSeed, func(string) uint64 { return seed })
		c := newTestCluster(t, nil)
		ctx := context.Background()
		require.NoError(t, c.CreateMap(ctx, "regions", true))
		for i := 0; i < 10; i++ {
			require.NoError(t, c.Put(ctx, "regions", int64(i), map[string]any{"name": "r"}))
		}
		rel := &plan.RootRel{Input: &plan.ReplicatedMapScanRel{
			MapName: "regions",
			Fields: []plan.Field{
				{Name: "__key", Type: types.T_int64},
				{Name: "name", Type: types.T_varchar},
			},
		}}
		rows, err := c.Query(ctx, rel)
		require.NoError(t, err)
		require.Len(t, rows, 10, "seed %d", seed)
		requireReleased(t, c)
		require.NoError(t, c.Close())
		stubs.Reset()
	}
}

func TestCancelQuery(t *testing.T) {
	defer leaktest.AfterTest(t)()
	c := newTestCluster(t, nil)
	defer c.Close()
	loadOrders(t, c, 1000)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	qp, err := c.Prepare(ctx, &plan.RootRel{Input: ordersScan()})
	require.NoError(t, err)
	consumer := frontend.NewPagedConsumer(1)
	coord := c.Coordinator()
	id, err := coord.Execute(ctx, qp, nil, consumer)
	require.NoError(t, err)

	page, err := consumer.Next(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, page)

	require.True(t, coord.Cancel(id))
	_, err = consumer.ReadAll(ctx)
	require.True(t, moerr.IsStopped(err), "%v", err)
	requireReleased(t, c)
	require.False(t, coord.Cancel(id))
}

func TestCancelByContext(t *testing.T) {
	defer leaktest.AfterTest(t)()
	c := newTestCluster(t, nil)
	defer c.Close()
	loadOrders(t, c, 1000)

	qp, err := c.Prepare(context.Background(), &plan.RootRel{Input: ordersScan()})
	require.NoError(t, err)
	consumer := frontend.NewPagedConsumer(1)
	ctx, cancel := context.WithCancel(context.Background())
	_, err = c.Coordinator().Execute(ctx, qp, nil, consumer)
	require.NoError(t, err)
	cancel()

	readCtx, readCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer readCancel()
	_, err = consumer.ReadAll(readCtx)
	require.True(t, moerr.IsStopped(err), "%v", err)
	requireReleased(t, c)
}

func TestMemberLeftBeforeExecute(t *testing.T) {
	defer leaktest.AfterTest(t)()
	c := newTestCluster(t, nil)
	defer c.Close()
	loadOrders(t, c, 50)

	qp, err := c.Prepare(context.Background(), &plan.RootRel{Input: ordersScan()})
	require.NoError(t, err)
	c.Leave("member-c")

	consumer := frontend.NewPagedConsumer(0)
	_, err = c.Coordinator().Execute(context.Background(), qp, nil, consumer)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrMemberLeft), "%v", err)
	_, err = consumer.ReadAll(context.Background())
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrMemberLeft), "%v", err)
	requireReleased(t, c, "member-a", "member-b")
}

func TestMemberLeftWhileRunning(t *testing.T) {
	defer leaktest.AfterTest(t)()
	c := newTestCluster(t, func(p *config.Parameters) {
		p.Exchange.InitialCredit = 200
		p.Exchange.RowWidth = 100
		p.Exchange.BatchSize = 100
		p.Scan.BatchRows = 4
	})
	defer c.Close()
	loadOrders(t, c, 600)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	qp, err := c.Prepare(ctx, &plan.RootRel{Input: ordersScan()})
	require.NoError(t, err)
	consumer := frontend.NewPagedConsumer(1)
	_, err = c.Coordinator().Execute(ctx, qp, nil, consumer)
	require.NoError(t, err)

	// member-c cannot finish without more credit from the coordinator
	c.Leave("member-c")
	_, err = consumer.ReadAll(ctx)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrMemberLeft), "%v", err)
	requireReleased(t, c, "member-a", "member-b")
}

func TestRemoteFailure(t *testing.T) {
	defer leaktest.AfterTest(t)()
	c := newTestCluster(t, nil)
	defer c.Close()
	loadOrders(t, c, 100)

	rel := &plan.RootRel{Input: &plan.ProjectRel{
		Input:    ordersScan(),
		Projects: []plan.Expr{plan.NewArith(plan.Plus, plan.NewColumn(1), plan.NewColumn(3))},
		Fields:   []plan.Field{{Name: "bad", Type: types.T_int64}},
	}}
	_, err := c.Query(context.Background(), rel)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrEvalTypeMismatch), "%v", err)
	requireReleased(t, c)
}

func TestSQLNotEnabled(t *testing.T) {
	defer leaktest.AfterTest(t)()
	c := newTestCluster(t, func(p *config.Parameters) {
		p.SQL.Optimizer = config.OptimizerNoop
	})
	defer c.Close()

	_, err := c.Prepare(context.Background(), &plan.RootRel{Input: ordersScan()})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrSQLNotEnabled), "%v", err)
}

func TestExecuteOnWrongMember(t *testing.T) {
	defer leaktest.AfterTest(t)()
	c := newTestCluster(t, nil)
	defer c.Close()

	qp, err := c.Prepare(context.Background(), &plan.RootRel{Input: ordersScan()})
	require.NoError(t, err)
	_, err = c.Service("member-b").Execute(context.Background(), qp, nil, frontend.NewPagedConsumer(0))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput), "%v", err)
}

func TestRejectInvalidParameters(t *testing.T) {
	defer leaktest.AfterTest(t)()
	params := newTestParameters()
	params.Exchange.InitialCredit = 50
	params.Exchange.RowWidth = 100

	_, err := NewCluster(context.Background(), params, func(string) (engine.Engine, error) {
		return memEngine.New(), nil
	})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig), "%v", err)

	_, err = NewService("member-a", params, memEngine.New(), exchange.NewLocalTransport(config.CodecNone))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig), "%v", err)
}
