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
	"bytes"
	"fmt"
	"strings"
)

// Explain renders the fragments of a plan and their node trees.
func Explain(p *QueryPlan) string {
	var buf bytes.Buffer
	for i, f := range p.Fragments {
		fmt.Fprintf(&buf, "Fragment %d [members: %s, parallelism: %d", i, strings.Join(f.MemberIds, ", "), f.Parallelism)
		if len(f.InboundEdges) > 0 {
			fmt.Fprintf(&buf, ", inbound: %v", f.InboundEdges)
		}
		if f.HasOutboundEdge() {
			fmt.Fprintf(&buf, ", outbound: %d", f.OutboundEdge)
		}
		buf.WriteString("]\n")
		explainNode(&buf, f.Node, 1)
	}
	return buf.String()
}

func explainNode(buf *bytes.Buffer, node PhysicalNode, depth int) {
	buf.WriteString(strings.Repeat("  ", depth))
	buf.WriteString(NodeString(node))
	buf.WriteByte('\n')
	for _, c := range node.Children() {
		explainNode(buf, c, depth+1)
	}
}

// NodeString describes a single node without its children.
func NodeString(node PhysicalNode) string {
	switch n := node.(type) {
	case *RootNode:
		return "Root"
	case *MapScanNode:
		return fmt.Sprintf("MapScan(map=%s, projects=%s%s)", n.MapName, exprList(n.Projects), filterSuffix(n.Filter))
	case *ReplicatedMapScanNode:
		return fmt.Sprintf("ReplicatedMapScan(map=%s, projects=%s%s)", n.MapName, exprList(n.Projects), filterSuffix(n.Filter))
	case *ProjectNode:
		return fmt.Sprintf("Project(%s)", exprList(n.Projects))
	case *FilterNode:
		return fmt.Sprintf("Filter(%s)", n.Condition)
	case *SortNode:
		return fmt.Sprintf("Sort(%s)", sortList(n.Exprs, n.Ascs))
	case *CollocatedAggregateNode:
		aggs := make([]string, len(n.Aggregates))
		for i, a := range n.Aggregates {
			aggs[i] = a.String()
		}
		return fmt.Sprintf("CollocatedAggregate(groupKeySize=%d, aggs=[%s], sorted=%v)", n.GroupKeySize, strings.Join(aggs, ", "), n.Sorted)
	case *SendNode:
		if len(n.PartitionKeys) == 0 {
			return fmt.Sprintf("Send(edge=%d)", n.Edge)
		}
		return fmt.Sprintf("Send(edge=%d, hash=%s)", n.Edge, exprList(n.PartitionKeys))
	case *ReceiveNode:
		return fmt.Sprintf("Receive(edge=%d)", n.Edge)
	case *ReceiveSortMergeNode:
		return fmt.Sprintf("ReceiveSortMerge(edge=%d, keys=%s)", n.Edge, sortList(n.Exprs, n.Ascs))
	default:
		return fmt.Sprintf("%T", node)
	}
}

func exprList(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func sortList(exprs []Expr, ascs []bool) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		dir := "ASC"
		if !ascs[i] {
			dir = "DESC"
		}
		parts[i] = e.String() + " " + dir
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func filterSuffix(filter Expr) string {
	if filter == nil {
		return ""
	}
	return ", filter=" + filter.String()
}
