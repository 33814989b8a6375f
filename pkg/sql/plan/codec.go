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
	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/container/codec"
	"github.com/matrixorigin/distsql/pkg/container/types"
)

const (
	nodeRoot uint64 = iota + 1
	nodeMapScan
	nodeReplicatedMapScan
	nodeProject
	nodeFilter
	nodeSort
	nodeCollocatedAggregate
	nodeSend
	nodeReceive
	nodeReceiveSortMerge
)

const (
	exprNone uint64 = iota
	exprColumn
	exprConstant
	exprParameter
	exprExtractor
	exprCompare
	exprLogic
	exprIsNull
	exprArith
)

// MarshalPlan encodes a plan so that it can be shipped to other members.
func MarshalPlan(p *QueryPlan) ([]byte, error) {
	enc := codec.NewEncoder()
	enc.WriteInt(int64(p.PartitionCount))
	enc.WriteString(p.Coordinator)
	enc.WriteStrings(p.Columns)
	enc.WriteUvarint(uint64(len(p.dataMembers)))
	for _, m := range p.dataMembers {
		data, err := p.PartitionMap[m].ToBytes()
		if err != nil {
			return nil, moerr.ConvertGoError(context.Background(), err)
		}
		enc.WriteString(m)
		enc.WriteBytes(data)
	}
	enc.WriteUvarint(uint64(len(p.Fragments)))
	for _, f := range p.Fragments {
		enc.WriteInt(int64(f.OutboundEdge))
		enc.WriteUvarint(uint64(len(f.InboundEdges)))
		for _, e := range f.InboundEdges {
			enc.WriteInt(int64(e))
		}
		enc.WriteStrings(f.MemberIds)
		enc.WriteInt(int64(f.Parallelism))
		if err := writeNode(enc, f.Node); err != nil {
			return nil, err
		}
	}
	return enc.Bytes(), nil
}

// UnmarshalPlan decodes what MarshalPlan produced.
func UnmarshalPlan(ctx context.Context, data []byte) (*QueryPlan, error) {
	dec := codec.NewDecoder(data)
	partitionCount, err := dec.ReadInt()
	if err != nil {
		return nil, err
	}
	coordinator, err := dec.ReadString()
	if err != nil {
		return nil, err
	}
	columns, err := dec.ReadStrings()
	if err != nil {
		return nil, err
	}
	n, err := dec.ReadLen()
	if err != nil {
		return nil, err
	}
	partitionMap := make(map[string]*roaring.Bitmap, n)
	for i := 0; i < n; i++ {
		m, err := dec.ReadString()
		if err != nil {
			return nil, err
		}
		data, err := dec.ReadBytes()
		if err != nil {
			return nil, err
		}
		bm := roaring.New()
		if err := bm.UnmarshalBinary(data); err != nil {
			return nil, moerr.NewInvalidInput(ctx, "bad partition set of %s: %v", m, err)
		}
		partitionMap[m] = bm
	}
	if n, err = dec.ReadLen(); err != nil {
		return nil, err
	}
	fragments := make([]*QueryFragment, n)
	for i := range fragments {
		f := &QueryFragment{}
		out, err := dec.ReadInt()
		if err != nil {
			return nil, err
		}
		f.OutboundEdge = int32(out)
		cnt, err := dec.ReadLen()
		if err != nil {
			return nil, err
		}
		for j := 0; j < cnt; j++ {
			e, err := dec.ReadInt()
			if err != nil {
				return nil, err
			}
			f.InboundEdges = append(f.InboundEdges, int32(e))
		}
		if f.MemberIds, err = dec.ReadStrings(); err != nil {
			return nil, err
		}
		parallelism, err := dec.ReadInt()
		if err != nil {
			return nil, err
		}
		f.Parallelism = int(parallelism)
		if f.Node, err = readNode(ctx, dec); err != nil {
			return nil, err
		}
		fragments[i] = f
	}
	return NewQueryPlan(ctx, fragments, partitionMap, int(partitionCount), coordinator, columns)
}

func writeNode(enc *codec.Encoder, node PhysicalNode) error {
	switch n := node.(type) {
	case *RootNode:
		enc.WriteUvarint(nodeRoot)
		return writeNode(enc, n.Upstream)
	case *MapScanNode:
		enc.WriteUvarint(nodeMapScan)
		return writeScan(enc, n.MapName, n.Fields, n.Projects, n.Filter)
	case *ReplicatedMapScanNode:
		enc.WriteUvarint(nodeReplicatedMapScan)
		return writeScan(enc, n.MapName, n.Fields, n.Projects, n.Filter)
	case *ProjectNode:
		enc.WriteUvarint(nodeProject)
		if err := writeExprs(enc, n.Projects); err != nil {
			return err
		}
		return writeNode(enc, n.Upstream)
	case *FilterNode:
		enc.WriteUvarint(nodeFilter)
		if err := writeExpr(enc, n.Condition); err != nil {
			return err
		}
		return writeNode(enc, n.Upstream)
	case *SortNode:
		enc.WriteUvarint(nodeSort)
		if err := writeSortKeys(enc, n.Exprs, n.Ascs); err != nil {
			return err
		}
		return writeNode(enc, n.Upstream)
	case *CollocatedAggregateNode:
		enc.WriteUvarint(nodeCollocatedAggregate)
		enc.WriteInt(int64(n.GroupKeySize))
		enc.WriteBool(n.Sorted)
		enc.WriteUvarint(uint64(len(n.Aggregates)))
		for _, a := range n.Aggregates {
			enc.WriteUvarint(uint64(a.Kind))
			arg := int64(-1)
			if a.Arg != nil {
				arg = int64(a.Arg.Index)
			}
			enc.WriteInt(arg)
			enc.WriteBool(a.Distinct)
			enc.WriteUvarint(uint64(a.Type))
		}
		return writeNode(enc, n.Upstream)
	case *SendNode:
		enc.WriteUvarint(nodeSend)
		enc.WriteInt(int64(n.Edge))
		if err := writeExprs(enc, n.PartitionKeys); err != nil {
			return err
		}
		return writeNode(enc, n.Upstream)
	case *ReceiveNode:
		enc.WriteUvarint(nodeReceive)
		enc.WriteInt(int64(n.Edge))
		return nil
	case *ReceiveSortMergeNode:
		enc.WriteUvarint(nodeReceiveSortMerge)
		enc.WriteInt(int64(n.Edge))
		return writeSortKeys(enc, n.Exprs, n.Ascs)
	default:
		return moerr.NewPlanDefect(context.Background(), "cannot encode node %T", node)
	}
}

func writeScan(enc *codec.Encoder, mapName string, fields []string, projects []Expr, filter Expr) error {
	enc.WriteString(mapName)
	enc.WriteStrings(fields)
	if err := writeExprs(enc, projects); err != nil {
		return err
	}
	return writeExpr(enc, filter)
}

func writeSortKeys(enc *codec.Encoder, exprs []Expr, ascs []bool) error {
	if err := writeExprs(enc, exprs); err != nil {
		return err
	}
	for _, asc := range ascs {
		enc.WriteBool(asc)
	}
	return nil
}

func writeExprs(enc *codec.Encoder, exprs []Expr) error {
	enc.WriteUvarint(uint64(len(exprs)))
	for _, e := range exprs {
		if err := writeExpr(enc, e); err != nil {
			return err
		}
	}
	return nil
}

func writeExpr(enc *codec.Encoder, expr Expr) error {
	switch e := expr.(type) {
	case nil:
		enc.WriteUvarint(exprNone)
	case *ColumnExpr:
		enc.WriteUvarint(exprColumn)
		enc.WriteInt(int64(e.Index))
	case *ConstantExpr:
		enc.WriteUvarint(exprConstant)
		return enc.WriteValue(e.Value)
	case *ParameterExpr:
		enc.WriteUvarint(exprParameter)
		enc.WriteInt(int64(e.Index))
	case *ExtractorExpr:
		enc.WriteUvarint(exprExtractor)
		enc.WriteString(e.Path)
	case *CompareExpr:
		enc.WriteUvarint(exprCompare)
		enc.WriteUvarint(uint64(e.Op))
		return writeExprs(enc, []Expr{e.Left, e.Right})
	case *LogicExpr:
		enc.WriteUvarint(exprLogic)
		enc.WriteUvarint(uint64(e.Op))
		return writeExprs(enc, e.Args)
	case *IsNullExpr:
		enc.WriteUvarint(exprIsNull)
		return writeExpr(enc, e.Arg)
	case *ArithExpr:
		enc.WriteUvarint(exprArith)
		enc.WriteUvarint(uint64(e.Op))
		return writeExprs(enc, []Expr{e.Left, e.Right})
	default:
		return moerr.NewNotSupported(context.Background(), "cannot encode expression %T", expr)
	}
	return nil
}

func readNode(ctx context.Context, dec *codec.Decoder) (PhysicalNode, error) {
	tag, err := dec.ReadUvarint()
	if err != nil {
		return nil, err
	}
	switch tag {
	case nodeRoot:
		up, err := readNode(ctx, dec)
		if err != nil {
			return nil, err
		}
		return &RootNode{Upstream: up}, nil
	case nodeMapScan, nodeReplicatedMapScan:
		mapName, err := dec.ReadString()
		if err != nil {
			return nil, err
		}
		fields, err := dec.ReadStrings()
		if err != nil {
			return nil, err
		}
		projects, err := readExprs(ctx, dec)
		if err != nil {
			return nil, err
		}
		filter, err := readExpr(ctx, dec)
		if err != nil {
			return nil, err
		}
		if tag == nodeMapScan {
			return &MapScanNode{MapName: mapName, Fields: fields, Projects: projects, Filter: filter}, nil
		}
		return &ReplicatedMapScanNode{MapName: mapName, Fields: fields, Projects: projects, Filter: filter}, nil
	case nodeProject:
		projects, err := readExprs(ctx, dec)
		if err != nil {
			return nil, err
		}
		up, err := readNode(ctx, dec)
		if err != nil {
			return nil, err
		}
		return &ProjectNode{Upstream: up, Projects: projects}, nil
	case nodeFilter:
		cond, err := readExpr(ctx, dec)
		if err != nil {
			return nil, err
		}
		up, err := readNode(ctx, dec)
		if err != nil {
			return nil, err
		}
		return &FilterNode{Upstream: up, Condition: cond}, nil
	case nodeSort:
		exprs, ascs, err := readSortKeys(ctx, dec)
		if err != nil {
			return nil, err
		}
		up, err := readNode(ctx, dec)
		if err != nil {
			return nil, err
		}
		return &SortNode{Upstream: up, Exprs: exprs, Ascs: ascs}, nil
	case nodeCollocatedAggregate:
		return readAggregate(ctx, dec)
	case nodeSend:
		edge, err := dec.ReadInt()
		if err != nil {
			return nil, err
		}
		keys, err := readExprs(ctx, dec)
		if err != nil {
			return nil, err
		}
		up, err := readNode(ctx, dec)
		if err != nil {
			return nil, err
		}
		return &SendNode{Edge: int32(edge), Upstream: up, PartitionKeys: keys}, nil
	case nodeReceive:
		edge, err := dec.ReadInt()
		if err != nil {
			return nil, err
		}
		return &ReceiveNode{Edge: int32(edge)}, nil
	case nodeReceiveSortMerge:
		edge, err := dec.ReadInt()
		if err != nil {
			return nil, err
		}
		exprs, ascs, err := readSortKeys(ctx, dec)
		if err != nil {
			return nil, err
		}
		return &ReceiveSortMergeNode{Edge: int32(edge), Exprs: exprs, Ascs: ascs}, nil
	default:
		return nil, moerr.NewInvalidInput(ctx, "unknown node tag %d", tag)
	}
}

func readAggregate(ctx context.Context, dec *codec.Decoder) (PhysicalNode, error) {
	size, err := dec.ReadInt()
	if err != nil {
		return nil, err
	}
	sorted, err := dec.ReadBool()
	if err != nil {
		return nil, err
	}
	n, err := dec.ReadLen()
	if err != nil {
		return nil, err
	}
	aggs := make([]*Aggregate, n)
	for i := range aggs {
		kind, err := dec.ReadUvarint()
		if err != nil {
			return nil, err
		}
		arg, err := dec.ReadInt()
		if err != nil {
			return nil, err
		}
		distinct, err := dec.ReadBool()
		if err != nil {
			return nil, err
		}
		typ, err := dec.ReadUvarint()
		if err != nil {
			return nil, err
		}
		aggs[i] = &Aggregate{Kind: AggregateKind(kind), Distinct: distinct, Type: types.T(typ)}
		if arg >= 0 {
			aggs[i].Arg = NewColumn(int(arg))
		}
	}
	up, err := readNode(ctx, dec)
	if err != nil {
		return nil, err
	}
	return &CollocatedAggregateNode{Upstream: up, GroupKeySize: int(size), Aggregates: aggs, Sorted: sorted}, nil
}

func readSortKeys(ctx context.Context, dec *codec.Decoder) ([]Expr, []bool, error) {
	exprs, err := readExprs(ctx, dec)
	if err != nil {
		return nil, nil, err
	}
	ascs := make([]bool, len(exprs))
	for i := range ascs {
		if ascs[i], err = dec.ReadBool(); err != nil {
			return nil, nil, err
		}
	}
	return exprs, ascs, nil
}

func readExprs(ctx context.Context, dec *codec.Decoder) ([]Expr, error) {
	n, err := dec.ReadLen()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	exprs := make([]Expr, n)
	for i := range exprs {
		if exprs[i], err = readExpr(ctx, dec); err != nil {
			return nil, err
		}
	}
	return exprs, nil
}

func readExpr(ctx context.Context, dec *codec.Decoder) (Expr, error) {
	tag, err := dec.ReadUvarint()
	if err != nil {
		return nil, err
	}
	switch tag {
	case exprNone:
		return nil, nil
	case exprColumn:
		idx, err := dec.ReadInt()
		return NewColumn(int(idx)), err
	case exprConstant:
		v, err := dec.ReadValue()
		return NewConstant(v), err
	case exprParameter:
		idx, err := dec.ReadInt()
		return &ParameterExpr{Index: int(idx)}, err
	case exprExtractor:
		path, err := dec.ReadString()
		return &ExtractorExpr{Path: path}, err
	case exprCompare, exprArith:
		op, err := dec.ReadUvarint()
		if err != nil {
			return nil, err
		}
		args, err := readExprs(ctx, dec)
		if err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, moerr.NewInvalidInput(ctx, "binary expression with %d arguments", len(args))
		}
		if tag == exprCompare {
			return NewCompare(CompareOp(op), args[0], args[1]), nil
		}
		return NewArith(ArithOp(op), args[0], args[1]), nil
	case exprLogic:
		op, err := dec.ReadUvarint()
		if err != nil {
			return nil, err
		}
		args, err := readExprs(ctx, dec)
		if err != nil {
			return nil, err
		}
		return &LogicExpr{Op: LogicOp(op), Args: args}, nil
	case exprIsNull:
		arg, err := readExpr(ctx, dec)
		if err != nil {
			return nil, err
		}
		return &IsNullExpr{Arg: arg}, nil
	default:
		return nil, moerr.NewInvalidInput(ctx, "unknown expression tag %d", tag)
	}
}
