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

	"github.com/RoaringBitmap/roaring"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
)

// QueryPlan is built once per prepared statement and reused by every
// execution of it. It is never modified after NewQueryPlan.
type QueryPlan struct {
	Fragments []*QueryFragment
	// PartitionMap holds the partitions each data member owns.
	PartitionMap   map[string]*roaring.Bitmap
	PartitionCount int
	Coordinator    string
	// RemoteMembers are the participants other than the coordinator.
	RemoteMembers []string
	Columns       []string

	sendFragments    map[int32]*QueryFragment
	receiveFragments map[int32]*QueryFragment
	dataMembers      []string
}

func NewQueryPlan(
	ctx context.Context,
	fragments []*QueryFragment,
	partitionMap map[string]*roaring.Bitmap,
	partitionCount int,
	coordinator string,
	columns []string,
) (*QueryPlan, error) {
	p := &QueryPlan{
		Fragments:        fragments,
		PartitionMap:     partitionMap,
		PartitionCount:   partitionCount,
		Coordinator:      coordinator,
		Columns:          columns,
		sendFragments:    make(map[int32]*QueryFragment),
		receiveFragments: make(map[int32]*QueryFragment),
	}
	remote := make(map[string]struct{})
	for _, f := range fragments {
		if f.HasOutboundEdge() {
			if _, ok := p.sendFragments[f.OutboundEdge]; ok {
				return nil, moerr.NewPlanDefect(ctx, "edge %d has two senders", f.OutboundEdge)
			}
			p.sendFragments[f.OutboundEdge] = f
		}
		for _, e := range f.InboundEdges {
			if _, ok := p.receiveFragments[e]; ok {
				return nil, moerr.NewPlanDefect(ctx, "edge %d has two receivers", e)
			}
			p.receiveFragments[e] = f
		}
		for _, m := range f.MemberIds {
			if m != coordinator {
				remote[m] = struct{}{}
			}
		}
	}
	for e := range p.sendFragments {
		if _, ok := p.receiveFragments[e]; !ok {
			return nil, moerr.NewPlanDefect(ctx, "edge %d has no receiver", e)
		}
	}
	for e := range p.receiveFragments {
		if _, ok := p.sendFragments[e]; !ok {
			return nil, moerr.NewPlanDefect(ctx, "edge %d has no sender", e)
		}
	}
	p.RemoteMembers = maps.Keys(remote)
	slices.Sort(p.RemoteMembers)
	p.dataMembers = maps.Keys(partitionMap)
	slices.Sort(p.dataMembers)
	return p, nil
}

func (p *QueryPlan) SendFragment(edge int32) *QueryFragment {
	return p.sendFragments[edge]
}

func (p *QueryPlan) ReceiveFragment(edge int32) *QueryFragment {
	return p.receiveFragments[edge]
}

// Participants returns every member running a fragment, coordinator first.
func (p *QueryPlan) Participants() []string {
	return append([]string{p.Coordinator}, p.RemoteMembers...)
}

// DataMembers are the members owning partitions, sorted.
func (p *QueryPlan) DataMembers() []string {
	return p.dataMembers
}

func (p *QueryPlan) OwnedPartitions(member string) *roaring.Bitmap {
	return p.PartitionMap[member]
}

func (p *QueryPlan) MemberOf(partition uint32) (string, bool) {
	for _, m := range p.dataMembers {
		if p.PartitionMap[m].Contains(partition) {
			return m, true
		}
	}
	return "", false
}

// Prepare optimizes a logical tree and splits it into a plan for the given
// partition layout.
func Prepare(
	ctx context.Context,
	opt Optimizer,
	rel Rel,
	partitionMap map[string]*roaring.Bitmap,
	partitionCount int,
	coordinator string,
	parallelism int,
) (*QueryPlan, error) {
	physical, err := opt.Optimize(ctx, rel)
	if err != nil {
		return nil, err
	}
	fragments, err := CreatePlan(ctx, physical, maps.Keys(partitionMap), coordinator, parallelism)
	if err != nil {
		return nil, err
	}
	return NewQueryPlan(ctx, fragments, partitionMap, partitionCount, coordinator, fieldNames(physical.RowType()))
}
