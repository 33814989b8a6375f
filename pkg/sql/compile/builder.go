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
	"fmt"

	"github.com/RoaringBitmap/roaring"
	"go.uber.org/zap"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/sql/colexec/dispatch"
	"github.com/matrixorigin/distsql/pkg/sql/colexec/emptyscan"
	"github.com/matrixorigin/distsql/pkg/sql/colexec/group"
	"github.com/matrixorigin/distsql/pkg/sql/colexec/mapscan"
	"github.com/matrixorigin/distsql/pkg/sql/colexec/merge"
	"github.com/matrixorigin/distsql/pkg/sql/colexec/mergeorder"
	"github.com/matrixorigin/distsql/pkg/sql/colexec/order"
	"github.com/matrixorigin/distsql/pkg/sql/colexec/output"
	"github.com/matrixorigin/distsql/pkg/sql/colexec/projection"
	"github.com/matrixorigin/distsql/pkg/sql/colexec/restrict"
	"github.com/matrixorigin/distsql/pkg/sql/exchange"
	"github.com/matrixorigin/distsql/pkg/sql/plan"
	"github.com/matrixorigin/distsql/pkg/vm"
	"github.com/matrixorigin/distsql/pkg/vm/engine"
	"github.com/matrixorigin/distsql/pkg/vm/process"
)

// replicatedPartition is where replicated maps keep their entries.
const replicatedPartition uint32 = 0

// mailbox is an inbox together with the key it is registered under.
type mailbox struct {
	key exchange.InboxKey
	ib  exchange.Inbox
}

// Builder turns the node tree of one fragment into the operator tree of one
// stripe. The inboxes and outboxes it creates are registered by the caller
// before any stripe of the query runs.
type Builder struct {
	queryId   string
	member    string
	plan      *plan.QueryPlan
	fragment  *plan.QueryFragment
	fragIdx   int
	stripe    int
	seed      uint64
	engine    engine.Engine
	transport exchange.Transport
	cfg       exchange.Config
	consumer  output.Consumer
	proc      *process.Process
	logger    *zap.Logger

	opIdx    int
	inboxes  []mailbox
	outboxes []*exchange.Outbox
}

// Build returns the root operator of the stripe.
func (b *Builder) Build() (vm.Operator, error) {
	return b.build(b.fragment.Node)
}

func (b *Builder) build(node plan.PhysicalNode) (vm.Operator, error) {
	switch n := node.(type) {
	case *plan.RootNode:
		if b.consumer == nil {
			return nil, moerr.NewPlanDefect(b.proc.Ctx, "root fragment on %s has no consumer", b.member)
		}
		return b.wrap(n.Upstream, output.NewArgument().WithConsumer(b.consumer))

	case *plan.MapScanNode:
		parts := engine.StripePartitions(b.plan.OwnedPartitions(b.member), b.stripe, b.fragment.Parallelism)
		if parts.IsEmpty() {
			return b.leaf(emptyscan.NewArgument()), nil
		}
		return b.mapScan(n.MapName, n.Fields, n.Projects, n.Filter, parts), nil

	case *plan.ReplicatedMapScanNode:
		// every member holds the whole map, only one stripe may read it
		members := b.plan.DataMembers()
		if len(members) == 0 || b.stripe != 0 || members[b.seed%uint64(len(members))] != b.member {
			return b.leaf(emptyscan.NewArgument()), nil
		}
		return b.mapScan(n.MapName, n.Fields, n.Projects, n.Filter, roaring.BitmapOf(replicatedPartition)), nil

	case *plan.ProjectNode:
		return b.wrap(n.Upstream, projection.NewArgument().WithProjects(n.Projects))

	case *plan.FilterNode:
		return b.wrap(n.Upstream, restrict.NewArgument().WithCondition(n.Condition))

	case *plan.SortNode:
		return b.wrap(n.Upstream, order.NewArgument().WithOrder(n.Exprs, n.Ascs))

	case *plan.CollocatedAggregateNode:
		return b.wrap(n.Upstream, group.NewArgument().WithAggregates(n.GroupKeySize, n.Aggregates, n.Sorted))

	case *plan.SendNode:
		recv := b.plan.ReceiveFragment(n.Edge)
		if recv == nil {
			return nil, moerr.NewPlanDefect(b.proc.Ctx, "edge %d has no receiver", n.Edge)
		}
		outboxes := make([]*exchange.Outbox, 0, len(recv.MemberIds)*recv.Parallelism)
		for _, m := range recv.MemberIds {
			for s := 0; s < recv.Parallelism; s++ {
				key := exchange.OutboxKey{
					QueryId:      b.queryId,
					Edge:         n.Edge,
					SenderStripe: b.stripe,
					Target:       m,
					TargetStripe: s,
				}
				ob := exchange.NewOutbox(key, b.member, b.transport, b.cfg, b.proc.Rescheduler(), b.logger)
				outboxes = append(outboxes, ob)
			}
		}
		b.outboxes = append(b.outboxes, outboxes...)
		return b.wrap(n.Upstream, dispatch.NewArgument().WithOutboxes(n.Edge, outboxes, n.PartitionKeys))

	case *plan.ReceiveNode:
		send := b.plan.SendFragment(n.Edge)
		if send == nil {
			return nil, moerr.NewPlanDefect(b.proc.Ctx, "edge %d has no sender", n.Edge)
		}
		key := exchange.InboxKey{QueryId: b.queryId, Edge: n.Edge, Stripe: b.stripe}
		senders := len(send.MemberIds) * send.Parallelism
		ib := exchange.NewSingleInbox(key, b.member, b.transport, b.cfg, senders, b.proc.Rescheduler(), b.logger)
		b.inboxes = append(b.inboxes, mailbox{key: key, ib: ib})
		return b.leaf(merge.NewArgument().WithInbox(n.Edge, ib)), nil

	case *plan.ReceiveSortMergeNode:
		send := b.plan.SendFragment(n.Edge)
		if send == nil {
			return nil, moerr.NewPlanDefect(b.proc.Ctx, "edge %d has no sender", n.Edge)
		}
		key := exchange.InboxKey{QueryId: b.queryId, Edge: n.Edge, Stripe: b.stripe}
		ib := exchange.NewStripedInbox(key, b.member, b.transport, b.cfg,
			send.MemberIds, send.Parallelism, b.proc.Rescheduler(), b.logger)
		b.inboxes = append(b.inboxes, mailbox{key: key, ib: ib})
		return b.leaf(mergeorder.NewArgument().WithInbox(n.Edge, ib, n.Exprs, n.Ascs)), nil

	default:
		return nil, moerr.NewPlanDefect(b.proc.Ctx, "unexpected node %T", node)
	}
}

func (b *Builder) mapScan(name string, fields []string, projects []plan.Expr, filter plan.Expr, parts *roaring.Bitmap) vm.Operator {
	arg := mapscan.NewArgument()
	arg.Engine = b.engine
	arg.MapName = name
	arg.Fields = fields
	arg.Projects = projects
	arg.Filter = filter
	arg.Partitions = parts
	return b.leaf(arg)
}

// wrap builds upstream and makes it the only child of op.
func (b *Builder) wrap(upstream plan.PhysicalNode, op vm.Operator) (vm.Operator, error) {
	child, err := b.build(upstream)
	if err != nil {
		return nil, err
	}
	b.setInfo(op)
	op.AppendChild(child)
	return op, nil
}

func (b *Builder) leaf(op vm.Operator) vm.Operator {
	b.setInfo(op)
	return op
}

func (b *Builder) setInfo(op vm.Operator) {
	op.SetInfo(&vm.OperatorInfo{Idx: b.opIdx, Fragment: b.fragIdx, Stripe: b.stripe})
	b.opIdx++
}

func (b *Builder) String() string {
	return fmt.Sprintf("Builder{query=%s, member=%s, fragment=%d, stripe=%d}", b.queryId, b.member, b.fragIdx, b.stripe)
}
