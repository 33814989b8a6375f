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
	"sort"

	"golang.org/x/exp/slices"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
)

// NoEdge marks the root fragment, which sends nowhere.
const NoEdge int32 = -1

// QueryFragment is a part of a plan that runs with the same member set and
// parallelism. Every fragment but the root sends to exactly one edge.
type QueryFragment struct {
	Node         PhysicalNode
	OutboundEdge int32
	InboundEdges []int32
	// MemberIds is sorted.
	MemberIds   []string
	Parallelism int
}

func (f *QueryFragment) HasOutboundEdge() bool {
	return f.OutboundEdge != NoEdge
}

func (f *QueryFragment) HasMember(id string) bool {
	i := sort.SearchStrings(f.MemberIds, id)
	return i < len(f.MemberIds) && f.MemberIds[i] == id
}

// planState is threaded through the fold over the rel tree.
type planState struct {
	fragments []*QueryFragment
	upstream  []PhysicalNode
	nextEdge  int32
	outbound  int32
	inbound   []int32
}

type fragmentPlanner struct {
	ctx         context.Context
	partMembers []string
	localMember string
	parallelism int
}

// CreatePlan splits an optimized rel tree into fragments. Fragments come
// out in the order they close, so the root fragment is last. Every exchange
// adds one fragment and one edge; edge ids start at 0.
func CreatePlan(ctx context.Context, rel Rel, partMembers []string, localMember string, parallelism int) ([]*QueryFragment, error) {
	if parallelism <= 0 {
		parallelism = 1
	}
	members := slices.Clone(partMembers)
	slices.Sort(members)
	p := &fragmentPlanner{
		ctx:         ctx,
		partMembers: members,
		localMember: localMember,
		parallelism: parallelism,
	}
	st, err := p.fold(rel, planState{outbound: NoEdge})
	if err != nil {
		return nil, err
	}
	if len(st.upstream) != 0 {
		return nil, moerr.NewPlanDefect(ctx, "%d nodes left after the root", len(st.upstream))
	}
	if n := len(st.fragments); n == 0 || st.fragments[n-1].HasOutboundEdge() {
		return nil, moerr.NewPlanDefect(ctx, "plan has no root fragment")
	}
	return st.fragments, nil
}

func (p *fragmentPlanner) fold(rel Rel, st planState) (planState, error) {
	var err error
	for _, in := range rel.Inputs() {
		if st, err = p.fold(in, st); err != nil {
			return st, err
		}
	}
	switch r := rel.(type) {
	case *RootRel:
		var up PhysicalNode
		if up, st, err = p.pollSingleUpstream(st); err != nil {
			return st, err
		}
		return p.addFragment(st, &RootNode{Upstream: up}, []string{p.localMember}, 1)

	case *MapScanRel:
		names := fieldNames(r.Fields)
		return pushUpstream(st, &MapScanNode{
			MapName:  r.MapName,
			Fields:   names,
			Projects: extractors(names),
		}), nil

	case *ReplicatedMapScanRel:
		names := fieldNames(r.Fields)
		return pushUpstream(st, &ReplicatedMapScanNode{
			MapName:  r.MapName,
			Fields:   names,
			Projects: extractors(names),
		}), nil

	case *ProjectRel:
		var up PhysicalNode
		if up, st, err = p.pollSingleUpstream(st); err != nil {
			return st, err
		}
		return pushUpstream(st, &ProjectNode{Upstream: up, Projects: r.Projects}), nil

	case *FilterRel:
		var up PhysicalNode
		if up, st, err = p.pollSingleUpstream(st); err != nil {
			return st, err
		}
		return pushUpstream(st, &FilterNode{Upstream: up, Condition: r.Condition}), nil

	case *SortRel:
		var up PhysicalNode
		if up, st, err = p.pollSingleUpstream(st); err != nil {
			return st, err
		}
		exprs, ascs := sortKeys(r.Collation)
		return pushUpstream(st, &SortNode{Upstream: up, Exprs: exprs, Ascs: ascs}), nil

	case *AggregateRel:
		var up PhysicalNode
		if up, st, err = p.pollSingleUpstream(st); err != nil {
			return st, err
		}
		for i, g := range r.GroupSet {
			if g != i {
				return st, moerr.NewPlanDefect(p.ctx, "group key %v is not a prefix of the input", r.GroupSet)
			}
		}
		input := r.Input.RowType()
		aggs := make([]*Aggregate, len(r.Calls))
		for i, call := range r.Calls {
			if aggs[i], err = ConvertAggregateCall(p.ctx, call, input); err != nil {
				return st, err
			}
		}
		return pushUpstream(st, &CollocatedAggregateNode{
			Upstream:     up,
			GroupKeySize: len(r.GroupSet),
			Aggregates:   aggs,
			Sorted:       r.Sorted,
		}), nil

	case *ExchangeRel:
		return p.onExchange(r, st)

	default:
		return st, moerr.NewPlanDefect(p.ctx, "unexpected rel %T", rel)
	}
}

func (p *fragmentPlanner) onExchange(r *ExchangeRel, st planState) (planState, error) {
	up, st, err := p.pollSingleUpstream(st)
	if err != nil {
		return st, err
	}
	edge := st.nextEdge
	st.nextEdge++
	if st.outbound != NoEdge {
		return st, moerr.NewPlanDefect(p.ctx, "fragment already sends to edge %d", st.outbound)
	}
	st.outbound = edge

	send := &SendNode{Edge: edge, Upstream: up}
	var recv PhysicalNode
	switch r.Kind {
	case SingletonExchange:
		recv = &ReceiveNode{Edge: edge}
	case PartitionedExchange:
		send.PartitionKeys = make([]Expr, len(r.Keys))
		for i, k := range r.Keys {
			send.PartitionKeys[i] = NewColumn(k)
		}
		recv = &ReceiveNode{Edge: edge}
	case SortMergeExchange:
		sortNode, ok := up.(*SortNode)
		if !ok {
			return st, moerr.NewPlanDefect(p.ctx, "sort-merge exchange over %T", up)
		}
		recv = &ReceiveSortMergeNode{Edge: edge, Exprs: sortNode.Exprs, Ascs: sortNode.Ascs}
	default:
		return st, moerr.NewPlanDefect(p.ctx, "unknown exchange kind %d", r.Kind)
	}
	if st, err = p.addFragment(st, send, p.partMembers, p.parallelism); err != nil {
		return st, err
	}
	st.inbound = append(st.inbound, edge)
	return pushUpstream(st, recv), nil
}

func (p *fragmentPlanner) addFragment(st planState, node PhysicalNode, members []string, parallelism int) (planState, error) {
	if len(st.upstream) != 0 {
		return st, moerr.NewPlanDefect(p.ctx, "%d nodes left when closing a fragment", len(st.upstream))
	}
	st.fragments = append(st.fragments, &QueryFragment{
		Node:         node,
		OutboundEdge: st.outbound,
		InboundEdges: st.inbound,
		MemberIds:    members,
		Parallelism:  parallelism,
	})
	st.outbound = NoEdge
	st.inbound = nil
	return st, nil
}

func (p *fragmentPlanner) pollSingleUpstream(st planState) (PhysicalNode, planState, error) {
	if len(st.upstream) != 1 {
		return nil, st, moerr.NewPlanDefect(p.ctx, "expected one upstream node, got %d", len(st.upstream))
	}
	up := st.upstream[0]
	st.upstream = nil
	return up, st, nil
}

func pushUpstream(st planState, node PhysicalNode) planState {
	st.upstream = append(st.upstream[:len(st.upstream):len(st.upstream)], node)
	return st
}

func extractors(names []string) []Expr {
	exprs := make([]Expr, len(names))
	for i, name := range names {
		exprs[i] = &ExtractorExpr{Path: name}
	}
	return exprs
}

func sortKeys(collation []FieldCollation) ([]Expr, []bool) {
	exprs := make([]Expr, len(collation))
	ascs := make([]bool, len(collation))
	for i, c := range collation {
		exprs[i] = NewColumn(c.Index)
		ascs[i] = !c.Direction.IsDescending()
	}
	return exprs, ascs
}
