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

package mapscan

import (
	"bytes"
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/sql/plan"
	"github.com/matrixorigin/distsql/pkg/testutil"
	"github.com/matrixorigin/distsql/pkg/vm/engine"
	"github.com/matrixorigin/distsql/pkg/vm/engine/memEngine"
)

func newEngine(t *testing.T) engine.Engine {
	ctx := context.Background()
	e := memEngine.New()
	m, err := e.CreateMap(ctx, "orders", false)
	require.NoError(t, err)
	for i := int64(0); i < 10; i++ {
		value := map[string]any{"qty": i, "customer": "c"}
		require.NoError(t, m.Put(ctx, uint32(i%3), i, value))
	}
	return e
}

func newArgument(e engine.Engine, parts ...uint32) *Argument {
	arg := NewArgument()
	arg.Engine = e
	arg.MapName = "orders"
	arg.Fields = []string{plan.KeyAttribute, "qty"}
	arg.Projects = []plan.Expr{plan.NewColumn(0), plan.NewColumn(1)}
	arg.Partitions = roaring.BitmapOf(parts...)
	return arg
}

func TestMapScan(t *testing.T) {
	proc := testutil.NewProcess()
	arg := newArgument(newEngine(t), 0, 2)
	arg.Filter = plan.NewCompare(plan.GE, plan.NewColumn(1), plan.NewConstant(int64(2)))
	require.NoError(t, arg.Prepare(proc))

	buf := new(bytes.Buffer)
	arg.String(buf)
	require.Equal(t, "map_scan(orders, partitions=2)", buf.String())

	rows, err := testutil.Drain(arg, proc, 0)
	require.NoError(t, err)
	// partition 0 holds 0 3 6 9, partition 2 holds 2 5 8
	require.Equal(t, []batch.Row{
		{int64(3), int64(3)}, {int64(6), int64(6)}, {int64(9), int64(9)},
		{int64(2), int64(2)}, {int64(5), int64(5)}, {int64(8), int64(8)},
	}, rows)
	arg.Free(proc, false, nil)
}

func TestMapScanBatches(t *testing.T) {
	proc := testutil.NewProcess()
	arg := newArgument(newEngine(t), 0, 1, 2)
	require.NoError(t, arg.Prepare(proc))

	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, proc.Lim.BatchRows, res.Batch.RowCount())

	rows, err := testutil.Drain(arg, proc, 0)
	require.NoError(t, err)
	require.Len(t, rows, 10-proc.Lim.BatchRows)
}

func TestMapScanNoSuchMap(t *testing.T) {
	proc := testutil.NewProcess()
	arg := newArgument(newEngine(t), 0)
	arg.MapName = "missing"
	err := arg.Prepare(proc)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNoSuchMap))
}

func TestMapScanCancelled(t *testing.T) {
	proc := testutil.NewProcess()
	arg := newArgument(newEngine(t), 0)
	require.NoError(t, arg.Prepare(proc))
	proc.Query.Cancel()
	_, err := arg.Call(proc)
	require.True(t, moerr.IsStopped(err))
}

func TestMapScanEvalError(t *testing.T) {
	proc := testutil.NewProcess()
	arg := newArgument(newEngine(t), 1)
	arg.Filter = plan.NewColumn(1)
	require.NoError(t, arg.Prepare(proc))
	_, err := arg.Call(proc)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrEvalTypeMismatch))
}
