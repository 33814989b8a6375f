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

// PhysicalNode is one node of a fragment tree. The set of node kinds is
// closed; code walking a tree switches over the concrete types and treats
// anything else as a defect.
type PhysicalNode interface {
	// Children in execution order, upstream first.
	Children() []PhysicalNode
	physicalNode()
}

type RootNode struct {
	Upstream PhysicalNode
}

// MapScanNode reads the entries of the partitions a stripe owns. Projects
// and Filter are evaluated against a KeyValueRow over Fields.
type MapScanNode struct {
	MapName  string
	Fields   []string
	Projects []Expr
	Filter   Expr
}

type ReplicatedMapScanNode struct {
	MapName  string
	Fields   []string
	Projects []Expr
	Filter   Expr
}

type ProjectNode struct {
	Upstream PhysicalNode
	Projects []Expr
}

type FilterNode struct {
	Upstream  PhysicalNode
	Condition Expr
}

type SortNode struct {
	Upstream PhysicalNode
	Exprs    []Expr
	Ascs     []bool
}

type CollocatedAggregateNode struct {
	Upstream PhysicalNode
	// GroupKeySize leading input columns form the group key.
	GroupKeySize int
	Aggregates   []*Aggregate
	Sorted       bool
}

// SendNode routes rows of its fragment to the receivers of Edge. Rows are
// hashed on PartitionKeys; without keys every row hashes to the same
// constant.
type SendNode struct {
	Edge          int32
	Upstream      PhysicalNode
	PartitionKeys []Expr
}

type ReceiveNode struct {
	Edge int32
}

type ReceiveSortMergeNode struct {
	Edge  int32
	Exprs []Expr
	Ascs  []bool
}

func (n *RootNode) Children() []PhysicalNode                { return []PhysicalNode{n.Upstream} }
func (n *MapScanNode) Children() []PhysicalNode             { return nil }
func (n *ReplicatedMapScanNode) Children() []PhysicalNode   { return nil }
func (n *ProjectNode) Children() []PhysicalNode             { return []PhysicalNode{n.Upstream} }
func (n *FilterNode) Children() []PhysicalNode              { return []PhysicalNode{n.Upstream} }
func (n *SortNode) Children() []PhysicalNode                { return []PhysicalNode{n.Upstream} }
func (n *CollocatedAggregateNode) Children() []PhysicalNode { return []PhysicalNode{n.Upstream} }
func (n *SendNode) Children() []PhysicalNode                { return []PhysicalNode{n.Upstream} }
func (n *ReceiveNode) Children() []PhysicalNode             { return nil }
func (n *ReceiveSortMergeNode) Children() []PhysicalNode    { return nil }

func (n *RootNode) physicalNode()                {}
func (n *MapScanNode) physicalNode()             {}
func (n *ReplicatedMapScanNode) physicalNode()   {}
func (n *ProjectNode) physicalNode()             {}
func (n *FilterNode) physicalNode()              {}
func (n *SortNode) physicalNode()                {}
func (n *CollocatedAggregateNode) physicalNode() {}
func (n *SendNode) physicalNode()                {}
func (n *ReceiveNode) physicalNode()             {}
func (n *ReceiveSortMergeNode) physicalNode()    {}

// Walk visits node and its subtree in post order, upstream first, the
// order fragment builders consume nodes in.
func Walk(node PhysicalNode, fn func(PhysicalNode) error) error {
	for _, c := range node.Children() {
		if err := Walk(c, fn); err != nil {
			return err
		}
	}
	return fn(node)
}
