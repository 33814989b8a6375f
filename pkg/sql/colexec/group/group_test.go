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

package group

import (
	"bytes"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/container/types"
	"github.com/matrixorigin/distsql/pkg/sql/plan"
	"github.com/matrixorigin/distsql/pkg/testutil"
	"github.com/matrixorigin/distsql/pkg/vm"
)

func sumOf(col int, typ types.T) *plan.Aggregate {
	return &plan.Aggregate{Kind: plan.AggSum, Arg: plan.NewColumn(col), Type: typ}
}

func countStar() *plan.Aggregate {
	return &plan.Aggregate{Kind: plan.AggCount, Type: types.T_int64}
}

func run(t *testing.T, arg *Argument, results ...vm.CallResult) []batch.Row {
	proc := testutil.NewProcess()
	arg.AppendChild(testutil.NewMockOperator(results...))
	require.NoError(t, vm.Prepare(arg, proc))
	rows, err := testutil.Drain(arg, proc, 10)
	require.NoError(t, err)
	arg.Free(proc, false, nil)
	return rows
}

func TestHashGroup(t *testing.T) {
	arg := NewArgument().WithAggregates(1, []*plan.Aggregate{sumOf(1, types.T_int64), countStar()}, false)
	rows := run(t, arg,
		vm.FetchedResult(testutil.NewBatch(
			[]any{"a", int64(1)}, []any{"b", int64(2)}, []any{"a", int64(3)}), false),
		vm.WaitResult,
		vm.FetchedResult(testutil.NewBatch(
			[]any{nil, int64(4)}, []any{"b", nil}, []any{nil, int64(5)}), true),
	)
	require.Equal(t, []batch.Row{
		{"a", int64(4), int64(2)},
		{"b", int64(2), int64(2)},
		{nil, int64(9), int64(2)},
	}, rows)
}

func TestSortedGroup(t *testing.T) {
	proc := testutil.NewProcess()
	arg := NewArgument().WithAggregates(1, []*plan.Aggregate{countStar()}, true)
	arg.AppendChild(testutil.NewMockOperator(
		vm.FetchedResult(testutil.NewBatch([]any{int64(1)}, []any{int64(1)}, []any{int64(2)}), false),
		vm.FetchedResult(testutil.NewBatch([]any{int64(2)}, []any{int64(3)}), true),
	))
	require.NoError(t, vm.Prepare(arg, proc))

	buf := new(bytes.Buffer)
	arg.String(buf)
	require.Equal(t, "group(keys=1, COUNT(*), sorted)", buf.String())

	// the first group is complete as soon as key 2 shows up
	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, vm.ExecFetched, res.Status)
	require.Equal(t, []batch.Row{{int64(1), int64(2)}}, res.Batch.Rows())

	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, vm.ExecFetchedDone, res.Status)
	require.Equal(t, []batch.Row{{int64(2), int64(2)}, {int64(3), int64(1)}}, res.Batch.Rows())
}

func TestGroupDistinct(t *testing.T) {
	agg := &plan.Aggregate{Kind: plan.AggCount, Arg: plan.NewColumn(0), Distinct: true, Type: types.T_int64}
	rows := run(t, NewArgument().WithAggregates(0, []*plan.Aggregate{agg}, false),
		vm.FetchedResult(testutil.Int64Batch(1, 2, 2, 3, 1), true))
	require.Equal(t, []batch.Row{{int64(3)}}, rows)
}

func TestGroupTypeMismatch(t *testing.T) {
	proc := testutil.NewProcess()
	arg := NewArgument().WithAggregates(0, []*plan.Aggregate{sumOf(0, types.T_int64)}, false)
	arg.AppendChild(testutil.NewMockOperator(
		vm.FetchedResult(testutil.NewBatch([]any{"x"}), true)))
	require.NoError(t, vm.Prepare(arg, proc))
	_, err := arg.Call(proc)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrEvalTypeMismatch))
}

func TestEmptyGlobalSum(t *testing.T) {
	convey.Convey("SUM over empty input is a typed zero", t, func() {
		for _, sorted := range []bool{false, true} {
			aggs := []*plan.Aggregate{
				sumOf(0, types.T_int64),
				sumOf(1, types.T_decimal),
				sumOf(2, types.T_float64),
				countStar(),
			}
			rows := run(t, NewArgument().WithAggregates(0, aggs, sorted),
				vm.FetchedResult(batch.EmptyBatch, true))
			convey.So(rows, convey.ShouldHaveLength, 1)
			convey.So(rows[0][0], convey.ShouldEqual, int64(0))
			d, ok := rows[0][1].(types.Decimal)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(d.IsZero(), convey.ShouldBeTrue)
			convey.So(rows[0][2], convey.ShouldEqual, float64(0))
			convey.So(rows[0][3], convey.ShouldEqual, int64(0))
		}
	})

	convey.Convey("grouped aggregate over empty input emits nothing", t, func() {
		rows := run(t, NewArgument().WithAggregates(1, []*plan.Aggregate{sumOf(1, types.T_int64)}, false),
			vm.FetchedResult(batch.EmptyBatch, true))
		convey.So(rows, convey.ShouldBeEmpty)
	})
}
