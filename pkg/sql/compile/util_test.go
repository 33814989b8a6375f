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
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/distsql/pkg/config"
	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/container/types"
	"github.com/matrixorigin/distsql/pkg/sql/plan"
	"github.com/matrixorigin/distsql/pkg/vm/engine"
	"github.com/matrixorigin/distsql/pkg/vm/engine/memEngine"
)

var testMembers = []string{"member-a", "member-b", "member-c"}

func newTestParameters() *config.Parameters {
	params := config.NewDefaultParameters()
	params.Cluster.Members = testMembers
	params.SQL.ThreadCount = 2
	params.SQL.FragmentParallelism = 2
	params.SQL.MaxIterationsPerRun = 8
	params.Scan.BatchRows = 16
	params.Storage.PartitionCount = 12
	return params
}

func newTestCluster(t *testing.T, adjust func(*config.Parameters)) *Cluster {
	params := newTestParameters()
	if adjust != nil {
		adjust(params)
	}
	c, err := NewCluster(context.Background(), params, func(string) (engine.Engine, error) {
		return memEngine.New(), nil
	})
	require.NoError(t, err)
	return c
}

// loadOrders stores orders 0..n-1. Order i belongs to customer c(i%5),
// costs i and has quantity i%7.
func loadOrders(t *testing.T, c *Cluster, n int) {
	ctx := context.Background()
	require.NoError(t, c.CreateMap(ctx, "orders", false))
	for i := 0; i < n; i++ {
		require.NoError(t, c.Put(ctx, "orders", int64(i), map[string]any{
			"customer": fmt.Sprintf("c%d", i%5),
			"amount":   types.DecimalFromInt64(int64(i)),
			"qty":      int64(i % 7),
		}))
	}
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

func sortRows(rows []batch.Row) {
	sort.Slice(rows, func(i, j int) bool {
		return types.Compare(rows[i][0], rows[j][0]) < 0
	})
}

// requireReleased waits until no member holds state of any query.
func requireReleased(t *testing.T, c *Cluster, members ...string) {
	if len(members) == 0 {
		members = c.Members()
	}
	require.Eventually(t, func() bool {
		for _, m := range members {
			svc := c.Service(m)
			if svc.Queries() != 0 || svc.Mailboxes() != 0 {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)
}
