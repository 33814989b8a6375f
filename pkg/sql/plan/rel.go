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
	"github.com/matrixorigin/distsql/pkg/container/types"
)

type DistributionType int

const (
	// DistributionAny means nothing is known about where rows live.
	DistributionAny DistributionType = iota
	DistributionPartitioned
	DistributionReplicated
	DistributionSingleton
)

var distributionNames = [...]string{
	DistributionAny:         "ANY",
	DistributionPartitioned: "PARTITIONED",
	DistributionReplicated:  "REPLICATED",
	DistributionSingleton:   "SINGLETON",
}

func (t DistributionType) String() string {
	return distributionNames[t]
}

// DistributionField is an output column rows are partitioned by. Nested is
// set when only a field inside the column drives partitioning.
type DistributionField struct {
	Index  int
	Nested string
}

type Distribution struct {
	Type   DistributionType
	Fields []DistributionField
}

var (
	AnyDistribution        = Distribution{Type: DistributionAny}
	SingletonDistribution  = Distribution{Type: DistributionSingleton}
	ReplicatedDistribution = Distribution{Type: DistributionReplicated}
)

func PartitionedBy(cols ...int) Distribution {
	fields := make([]DistributionField, len(cols))
	for i, c := range cols {
		fields[i] = DistributionField{Index: c}
	}
	return Distribution{Type: DistributionPartitioned, Fields: fields}
}

// Field is one output column of a rel.
type Field struct {
	Name string
	Type types.T
}

type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) IsDescending() bool {
	return d == Descending
}

type FieldCollation struct {
	Index     int
	Direction Direction
}

type ExchangeKind int

const (
	SingletonExchange ExchangeKind = iota
	SortMergeExchange
	PartitionedExchange
)

var exchangeNames = [...]string{
	SingletonExchange:   "Singleton",
	SortMergeExchange:   "SortMerge",
	PartitionedExchange: "Partitioned",
}

func (k ExchangeKind) String() string {
	return exchangeNames[k]
}

// Rel is a node of the optimizer's operator tree. A logical tree has no
// exchanges; after optimization every distribution change is explicit.
type Rel interface {
	Inputs() []Rel
	RowType() []Field
	Distribution() Distribution
	rel()
}

type RootRel struct {
	Input Rel
}

type MapScanRel struct {
	MapName string
	Fields  []Field
	// Dist is the partitioning of the map, usually by the __key column.
	Dist Distribution
}

type ReplicatedMapScanRel struct {
	MapName string
	Fields  []Field
}

type ProjectRel struct {
	Input    Rel
	Projects []Expr
	Fields   []Field
}

type FilterRel struct {
	Input     Rel
	Condition Expr
}

type SortRel struct {
	Input     Rel
	Collation []FieldCollation
}

type AggregateRel struct {
	Input    Rel
	GroupSet []int
	Calls    []AggregateCall
	// Sorted is set when the input is ordered by the group key.
	Sorted bool
}

type ExchangeRel struct {
	Input Rel
	Kind  ExchangeKind
	// Keys are the hashed columns of a partitioned exchange.
	Keys []int
	// Collation is carried by a sort-merge exchange.
	Collation []FieldCollation
}

func (r *RootRel) Inputs() []Rel              { return []Rel{r.Input} }
func (r *RootRel) RowType() []Field           { return r.Input.RowType() }
func (r *RootRel) Distribution() Distribution { return SingletonDistribution }

func (r *MapScanRel) Inputs() []Rel              { return nil }
func (r *MapScanRel) RowType() []Field           { return r.Fields }
func (r *MapScanRel) Distribution() Distribution { return r.Dist }

func (r *ReplicatedMapScanRel) Inputs() []Rel              { return nil }
func (r *ReplicatedMapScanRel) RowType() []Field           { return r.Fields }
func (r *ReplicatedMapScanRel) Distribution() Distribution { return ReplicatedDistribution }

func (r *ProjectRel) Inputs() []Rel    { return []Rel{r.Input} }
func (r *ProjectRel) RowType() []Field { return r.Fields }

// Distribution keeps the input's partitioning when every distribution
// column survives the projection as a plain column reference.
func (r *ProjectRel) Distribution() Distribution {
	in := r.Input.Distribution()
	if in.Type != DistributionPartitioned {
		return in
	}
	fields := make([]DistributionField, 0, len(in.Fields))
	for _, f := range in.Fields {
		found := false
		for i, p := range r.Projects {
			if c, ok := p.(*ColumnExpr); ok && c.Index == f.Index {
				fields = append(fields, DistributionField{Index: i, Nested: f.Nested})
				found = true
				break
			}
		}
		if !found {
			return Distribution{Type: DistributionPartitioned}
		}
	}
	return Distribution{Type: DistributionPartitioned, Fields: fields}
}

func (r *FilterRel) Inputs() []Rel              { return []Rel{r.Input} }
func (r *FilterRel) RowType() []Field           { return r.Input.RowType() }
func (r *FilterRel) Distribution() Distribution { return r.Input.Distribution() }

func (r *SortRel) Inputs() []Rel              { return []Rel{r.Input} }
func (r *SortRel) RowType() []Field           { return r.Input.RowType() }
func (r *SortRel) Distribution() Distribution { return r.Input.Distribution() }

func (r *AggregateRel) Inputs() []Rel { return []Rel{r.Input} }

func (r *AggregateRel) RowType() []Field {
	in := r.Input.RowType()
	fields := make([]Field, 0, len(r.GroupSet)+len(r.Calls))
	for _, g := range r.GroupSet {
		fields = append(fields, in[g])
	}
	for _, c := range r.Calls {
		fields = append(fields, Field{Name: c.Name, Type: c.ResultType(in)})
	}
	return fields
}

func (r *AggregateRel) Distribution() Distribution {
	in := r.Input.Distribution()
	if in.Type != DistributionPartitioned {
		return in
	}
	cols := make([]int, len(in.Fields))
	for i := range in.Fields {
		cols[i] = i
	}
	return PartitionedBy(cols...)
}

func (r *ExchangeRel) Inputs() []Rel    { return []Rel{r.Input} }
func (r *ExchangeRel) RowType() []Field { return r.Input.RowType() }

func (r *ExchangeRel) Distribution() Distribution {
	if r.Kind == PartitionedExchange {
		return PartitionedBy(r.Keys...)
	}
	return SingletonDistribution
}

func (r *RootRel) rel()              {}
func (r *MapScanRel) rel()           {}
func (r *ReplicatedMapScanRel) rel() {}
func (r *ProjectRel) rel()           {}
func (r *FilterRel) rel()            {}
func (r *SortRel) rel()              {}
func (r *AggregateRel) rel()         {}
func (r *ExchangeRel) rel()          {}

func fieldNames(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}
