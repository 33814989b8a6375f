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

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/config"
)

// Optimizer turns a logical rel tree into a physical one where every
// change of distribution is an explicit exchange.
type Optimizer interface {
	Optimize(ctx context.Context, rel Rel) (Rel, error)
}

// NewOptimizer returns the optimizer configured by kind.
func NewOptimizer(ctx context.Context, kind string, member string) (Optimizer, error) {
	switch kind {
	case config.OptimizerDefault, "":
		return &ruleOptimizer{}, nil
	case config.OptimizerNoop:
		return &noopOptimizer{member: member}, nil
	default:
		return nil, moerr.NewBadConfig(ctx, "unknown optimizer %q", kind)
	}
}

// noopOptimizer is installed on members that cannot plan SQL.
type noopOptimizer struct {
	member string
}

func (o *noopOptimizer) Optimize(ctx context.Context, _ Rel) (Rel, error) {
	return nil, moerr.NewSQLNotEnabled(ctx, o.member)
}

type ruleOptimizer struct{}

func (o *ruleOptimizer) Optimize(ctx context.Context, rel Rel) (Rel, error) {
	if _, ok := rel.(*RootRel); !ok {
		return nil, moerr.NewInvalidInput(ctx, "statement tree must start with a root, got %T", rel)
	}
	return o.convert(ctx, rel)
}

func (o *ruleOptimizer) convert(ctx context.Context, rel Rel) (Rel, error) {
	switch r := rel.(type) {
	case *RootRel:
		in, err := o.convert(ctx, r.Input)
		if err != nil {
			return nil, err
		}
		return &RootRel{Input: toSingleton(in)}, nil

	case *MapScanRel, *ReplicatedMapScanRel:
		return rel, nil

	case *ProjectRel:
		in, err := o.convert(ctx, r.Input)
		if err != nil {
			return nil, err
		}
		return &ProjectRel{Input: in, Projects: r.Projects, Fields: r.Fields}, nil

	case *FilterRel:
		in, err := o.convert(ctx, r.Input)
		if err != nil {
			return nil, err
		}
		return &FilterRel{Input: in, Condition: r.Condition}, nil

	case *SortRel:
		in, err := o.convert(ctx, r.Input)
		if err != nil {
			return nil, err
		}
		local := &SortRel{Input: in, Collation: r.Collation}
		if in.Distribution().Type == DistributionSingleton {
			return local, nil
		}
		return &ExchangeRel{Input: local, Kind: SortMergeExchange, Collation: r.Collation}, nil

	case *AggregateRel:
		in, err := o.convert(ctx, r.Input)
		if err != nil {
			return nil, err
		}
		return o.convertAggregate(r, in), nil

	case *ExchangeRel:
		in, err := o.convert(ctx, r.Input)
		if err != nil {
			return nil, err
		}
		return &ExchangeRel{Input: in, Kind: r.Kind, Keys: r.Keys, Collation: r.Collation}, nil

	default:
		return nil, moerr.NewNotSupported(ctx, "rel %T", rel)
	}
}

// convertAggregate moves the group columns to the front of the input and
// repartitions it by them unless matching rows already share a member.
func (o *ruleOptimizer) convertAggregate(r *AggregateRel, in Rel) Rel {
	sorted := collationCovers(collationOf(in), r.GroupSet)
	calls := r.Calls
	groupSet := r.GroupSet
	if !isPrefix(groupSet) {
		in, calls = reorderGroupColumns(in, groupSet, calls)
		groupSet = prefix(len(groupSet))
	}
	dist := in.Distribution()
	switch {
	case dist.Type == DistributionSingleton:
	case len(groupSet) == 0:
		// a global aggregate must see every row in one place
		in = &ExchangeRel{Input: in, Kind: SingletonExchange}
		sorted = false
	case dist.Type == DistributionReplicated:
	case dist.Type == DistributionPartitioned && len(dist.Fields) > 0 && IsCollocatedPartitioned(groupSet, dist.Fields):
	default:
		in = &ExchangeRel{Input: in, Kind: PartitionedExchange, Keys: groupSet}
		sorted = false
	}
	return &AggregateRel{Input: in, GroupSet: groupSet, Calls: calls, Sorted: sorted}
}

func reorderGroupColumns(in Rel, groupSet []int, calls []AggregateCall) (Rel, []AggregateCall) {
	fields := in.RowType()
	pos := make([]int, len(fields))
	isGroup := make([]bool, len(fields))
	projects := make([]Expr, 0, len(fields))
	out := make([]Field, 0, len(fields))
	for _, g := range groupSet {
		isGroup[g] = true
		pos[g] = len(projects)
		projects = append(projects, NewColumn(g))
		out = append(out, fields[g])
	}
	for i := range fields {
		if !isGroup[i] {
			pos[i] = len(projects)
			projects = append(projects, NewColumn(i))
			out = append(out, fields[i])
		}
	}
	remapped := make([]AggregateCall, len(calls))
	for i, c := range calls {
		remapped[i] = c
		if c.Arg >= 0 && c.Arg < len(pos) {
			remapped[i].Arg = pos[c.Arg]
		}
	}
	return &ProjectRel{Input: in, Projects: projects, Fields: out}, remapped
}

func toSingleton(in Rel) Rel {
	if in.Distribution().Type == DistributionSingleton {
		return in
	}
	return &ExchangeRel{Input: in, Kind: SingletonExchange}
}

func collationOf(rel Rel) []FieldCollation {
	switch r := rel.(type) {
	case *SortRel:
		return r.Collation
	case *ExchangeRel:
		if r.Kind == SortMergeExchange {
			return r.Collation
		}
	case *FilterRel:
		return collationOf(r.Input)
	}
	return nil
}

// collationCovers reports whether rows ordered by collation arrive with
// equal group keys next to each other.
func collationCovers(collation []FieldCollation, groupSet []int) bool {
	if len(groupSet) == 0 || len(collation) < len(groupSet) {
		return false
	}
	seen := make(map[int]bool, len(groupSet))
	for _, c := range collation[:len(groupSet)] {
		seen[c.Index] = true
	}
	for _, g := range groupSet {
		if !seen[g] {
			return false
		}
	}
	return true
}

func isPrefix(groupSet []int) bool {
	for i, g := range groupSet {
		if g != i {
			return false
		}
	}
	return true
}

func prefix(n int) []int {
	cols := make([]int, n)
	for i := range cols {
		cols[i] = i
	}
	return cols
}
