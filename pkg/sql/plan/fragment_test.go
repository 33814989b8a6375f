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

package plan

import (
	"context"
	"testing"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/require"
)

func TestSingletonExchangeFragments(t *testing.T) {
	convey.Convey("partitioned scan, filter and singleton exchange under root", t, func() {
		ctx := context.Background()
		rel := &RootRel{Input: &ExchangeRel{
			Kind: SingletonExchange,
			Input: &FilterRel{
				Input:     ordersScan(),
				Condition: NewCompare(GT, NewColumn(3), NewConstant(int64(10))),
			},
		}}
		fragments, err := CreatePlan(ctx, rel, []string{"member-c", "member-a", "member-b"}, "member-a", 1)
		convey.So(err, convey.ShouldBeNil)
		convey.So(fragments, convey.ShouldHaveLength, 2)

		first := fragments[0]
		convey.So(first.OutboundEdge, convey.ShouldEqual, int32(0))
		convey.So(first.InboundEdges, convey.ShouldBeEmpty)
		convey.So(first.MemberIds, convey.ShouldResemble, testMembers)
		send, ok := first.Node.(*SendNode)
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(send.PartitionKeys, convey.ShouldBeEmpty)
		filter, ok := send.Upstream.(*FilterNode)
		convey.So(ok, convey.ShouldBeTrue)
		scan, ok := filter.Upstream.(*MapScanNode)
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(scan.Projects, convey.ShouldHaveLength, 4)
		convey.So(scan.Projects[1].String(), convey.ShouldEqual, "customer")

		last := fragments[1]
		convey.So(last.HasOutboundEdge(), convey.ShouldBeFalse)
		convey.So(last.InboundEdges, convey.ShouldResemble, []int32{0})
		convey.So(last.MemberIds, convey.ShouldResemble, []string{"member-a"})
		convey.So(last.Parallelism, convey.ShouldEqual, 1)
		root, ok := last.Node.(*RootNode)
		convey.So(ok, convey.ShouldBeTrue)
		recv, ok := root.Upstream.(*ReceiveNode)
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(recv.Edge, convey.ShouldEqual, int32(0))
	})
}

func TestEdgesPerExchange(t *testing.T) {
	ctx := context.Background()
	// scan -> partitioned exchange -> aggregate -> sort-merge exchange -> root
	agg := &AggregateRel{
		Input: &ExchangeRel{
			Kind:  PartitionedExchange,
			Keys:  []int{0},
			Input: &ProjectRel{Input: ordersScan(), Projects: []Expr{NewColumn(1), NewColumn(2)}, Fields: ordersScan().Fields[1:3]},
		},
		GroupSet: []int{0},
		Calls:    []AggregateCall{{Kind: AggSum, Arg: 1, Name: "total"}},
	}
	rel := &RootRel{Input: &ExchangeRel{
		Kind:      SortMergeExchange,
		Input:     &SortRel{Input: agg, Collation: []FieldCollation{{Index: 1, Direction: Descending}}},
		Collation: []FieldCollation{{Index: 1, Direction: Descending}},
	}}
	fragments, err := CreatePlan(ctx, rel, testMembers, "member-a", 4)
	require.NoError(t, err)
	require.Len(t, fragments, 3)

	senders := map[int32]int{}
	receivers := map[int32]int{}
	for i, f := range fragments {
		if f.HasOutboundEdge() {
			senders[f.OutboundEdge] = i
		}
		for _, e := range f.InboundEdges {
			receivers[e] = i
		}
	}
	require.Equal(t, map[int32]int{0: 0, 1: 1}, senders)
	require.Equal(t, map[int32]int{0: 1, 1: 2}, receivers)
	require.Equal(t, 4, fragments[0].Parallelism)
	require.Equal(t, 4, fragments[1].Parallelism)
	require.Equal(t, 1, fragments[2].Parallelism)

	send := fragments[0].Node.(*SendNode)
	require.Len(t, send.PartitionKeys, 1)

	merge := fragments[2].Node.(*RootNode).Upstream.(*ReceiveSortMergeNode)
	require.Equal(t, []bool{false}, merge.Ascs)
	require.Equal(t, "$1", merge.Exprs[0].String())

	aggNode := fragments[1].Node.(*SendNode).Upstream.(*SortNode).Upstream.(*CollocatedAggregateNode)
	require.Equal(t, 1, aggNode.GroupKeySize)
	require.Equal(t, "SUM($1)", aggNode.Aggregates[0].String())
	_, ok := aggNode.Upstream.(*ReceiveNode)
	require.True(t, ok)

	plan, err := NewQueryPlan(ctx, fragments, testPartitionMap(), 12, "member-a", []string{"customer", "total"})
	require.NoError(t, err)
	require.Equal(t, []string{"member-b", "member-c"}, plan.RemoteMembers)
	require.Same(t, fragments[0], plan.SendFragment(0))
	require.Same(t, fragments[1], plan.ReceiveFragment(0))
	member, ok := plan.MemberOf(4)
	require.True(t, ok)
	require.Equal(t, "member-b", member)
}

func TestUnsupportedAggregateFailsAtPlanTime(t *testing.T) {
	rel := &RootRel{Input: &ExchangeRel{
		Kind: SingletonExchange,
		Input: &AggregateRel{
			Input:    ordersScan(),
			GroupSet: []int{0},
			Calls:    []AggregateCall{{Kind: AggMax, Arg: 3}},
		},
	}}
	_, err := CreatePlan(context.Background(), rel, testMembers, "member-a", 1)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrUnsupportedAggregate))
}

func TestPlanDefects(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		rel  Rel
	}{
		{name: "no root", rel: &FilterRel{Input: ordersScan(), Condition: NewConstant(true)}},
		{name: "sort-merge without sort", rel: &RootRel{Input: &ExchangeRel{Kind: SortMergeExchange, Input: ordersScan()}}},
		{name: "group key not a prefix", rel: &RootRel{Input: &AggregateRel{
			Input:    ordersScan(),
			GroupSet: []int{1},
			Calls:    []AggregateCall{{Kind: AggCount, Arg: -1}},
		}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := CreatePlan(ctx, c.rel, testMembers, "member-a", 1)
			require.True(t, moerr.IsMoErrCode(err, moerr.ErrPlanDefect), "got %v", err)
		})
	}
}
