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

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/matrixorigin/distsql/pkg/config"
	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/container/types"
	"github.com/matrixorigin/distsql/pkg/frontend"
	"github.com/matrixorigin/distsql/pkg/logutil"
	"github.com/matrixorigin/distsql/pkg/sql/compile"
	"github.com/matrixorigin/distsql/pkg/sql/plan"
	"github.com/matrixorigin/distsql/pkg/vm/engine"
)

var customers = []string{"alice", "bob", "carol", "dave", "erin"}

type demoQuery struct {
	title string
	rel   plan.Rel
	args  []any
}

func ordersScan() *plan.MapScanRel {
	return &plan.MapScanRel{
		MapName: "orders",
		Fields: []plan.Field{
			{Name: "__key", Type: types.T_int64},
			{Name: "customer", Type: types.T_varchar},
			{Name: "amount", Type: types.T_decimal},
			{Name: "qty", Type: types.T_int64},
		},
		Dist: plan.PartitionedBy(0),
	}
}

func demoQueries() []demoQuery {
	return []demoQuery{
		{
			title: "orders of one customer with a large quantity",
			rel: &plan.RootRel{Input: &plan.FilterRel{
				Input: ordersScan(),
				Condition: plan.NewAnd(
					plan.NewCompare(plan.EQ, plan.NewColumn(1), &plan.ParameterExpr{Index: 0}),
					plan.NewCompare(plan.GE, plan.NewColumn(3), plan.NewConstant(int64(7))),
				),
			}},
			args: []any{"carol"},
		},
		{
			title: "ten largest orders",
			rel: &plan.RootRel{Input: &plan.FilterRel{
				Input: &plan.SortRel{
					Input: ordersScan(),
					Collation: []plan.FieldCollation{
						{Index: 2, Direction: plan.Descending},
						{Index: 0, Direction: plan.Ascending},
					},
				},
				Condition: plan.NewCompare(plan.GE, plan.NewColumn(2), &plan.ParameterExpr{Index: 0}),
			}},
			args: []any{types.DecimalFromInt64(990)},
		},
		{
			title: "revenue per customer",
			rel: &plan.RootRel{Input: &plan.AggregateRel{
				Input:    ordersScan(),
				GroupSet: []int{1},
				Calls: []plan.AggregateCall{
					{Kind: plan.AggSum, Arg: 2, Name: "revenue"},
					{Kind: plan.AggCount, Arg: -1, Name: "orders"},
					{Kind: plan.AggCount, Arg: 3, Distinct: true, Name: "quantities"},
				},
			}},
		},
		{
			title: "total quantity",
			rel: &plan.RootRel{Input: &plan.AggregateRel{
				Input: ordersScan(),
				Calls: []plan.AggregateCall{{Kind: plan.AggSum, Arg: 3, Name: "qty"}},
			}},
		},
	}
}

func runDemo(ctx context.Context, params *config.Parameters, orders int, w io.Writer) error {
	c, err := compile.NewCluster(ctx, params, func(member string) (engine.Engine, error) {
		return compile.OpenEngine(params, member)
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logutil.Warn("failed to close cluster", zap.Error(err))
		}
	}()
	if err = loadOrders(ctx, c, orders); err != nil {
		return err
	}
	for _, q := range demoQueries() {
		if err = runQuery(ctx, c, params.Scan.BatchRows, q, w); err != nil {
			return err
		}
	}
	return nil
}

func loadOrders(ctx context.Context, c *compile.Cluster, n int) error {
	if err := c.CreateMap(ctx, "orders", false); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		err := c.Put(ctx, "orders", int64(i), map[string]any{
			"customer": customers[i%len(customers)],
			"amount":   types.DecimalFromInt64(int64(i % 1000)),
			"qty":      int64(i % 10),
		})
		if err != nil {
			return err
		}
	}
	logutil.Info("sample data loaded", zap.Int("orders", n))
	return nil
}

func runQuery(ctx context.Context, c *compile.Cluster, pageSize int, q demoQuery, w io.Writer) error {
	qp, err := c.Prepare(ctx, q.rel)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "-- %s\n%s\n", q.title, plan.Explain(qp))

	consumer := frontend.NewPagedConsumer(pageSize)
	if _, err = c.Coordinator().Execute(ctx, qp, q.args, consumer); err != nil {
		return err
	}
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(qp.Columns)
	rows := 0
	for {
		page, err := consumer.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		for _, row := range page {
			table.Append(formatRow(row))
		}
		rows += len(page)
	}
	table.SetFooter(footer(len(qp.Columns), rows))
	table.Render()
	fmt.Fprintln(w)
	return nil
}

func formatRow(row batch.Row) []string {
	out := make([]string, len(row))
	for i, v := range row {
		if v == nil {
			out[i] = "NULL"
			continue
		}
		out[i] = fmt.Sprint(v)
	}
	return out
}

func footer(columns, rows int) []string {
	if columns == 0 {
		return nil
	}
	f := make([]string, columns)
	f[columns-1] = fmt.Sprintf("%d rows", rows)
	return f
}
