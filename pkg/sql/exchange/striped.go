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

package exchange

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	v2 "github.com/matrixorigin/distsql/pkg/util/metric/v2"
)

// StripedInbox keeps one queue per sender stripe. Queue i belongs to
// the sender member at position i / parallelism in the sorted member
// list, stripe i % parallelism. It never merges queues.
type StripedInbox struct {
	inbox

	memberBase  map[string]int
	parallelism int

	mu     sync.Mutex
	queues [][]*BatchMessage
	queued []int64
	done   []bool
	closed bool
}

var _ Inbox = new(StripedInbox)

func NewStripedInbox(
	key InboxKey,
	member string,
	transport Transport,
	cfg Config,
	senderMembers []string,
	senderParallelism int,
	reschedule func(),
	logger *zap.Logger,
) *StripedInbox {
	members := slices.Clone(senderMembers)
	slices.Sort(members)
	base := make(map[string]int, len(members))
	for i, m := range members {
		base[m] = i * senderParallelism
	}
	n := len(members) * senderParallelism
	return &StripedInbox{
		inbox: inbox{
			key:        key,
			member:     member,
			transport:  transport,
			cfg:        cfg,
			logger:     logger,
			kind:       v2.KindStriped,
			reschedule: reschedule,
		},
		memberBase:  base,
		parallelism: senderParallelism,
		queues:      make([][]*BatchMessage, n),
		queued:      make([]int64, n),
		done:        make([]bool, n),
	}
}

func (ib *StripedInbox) Key() InboxKey {
	return ib.key
}

// Stripes is the number of queues.
func (ib *StripedInbox) Stripes() int {
	return len(ib.queues)
}

// Index returns the queue of a sender stripe, or -1 for an unknown sender.
func (ib *StripedInbox) Index(member string, stripe int) int {
	base, ok := ib.memberBase[member]
	if !ok || stripe < 0 || stripe >= ib.parallelism {
		return -1
	}
	return base + stripe
}

func (ib *StripedInbox) OnBatch(msg *BatchMessage) {
	idx := ib.Index(msg.Sender, msg.SenderStripe)
	if idx < 0 {
		ib.logger.Warn("batch from unexpected sender",
			zap.String("query-id", ib.key.QueryId),
			zap.Int32("edge", ib.key.Edge),
			zap.String("sender", msg.Sender),
			zap.Int("stripe", msg.SenderStripe))
		return
	}
	ib.mu.Lock()
	if ib.closed {
		ib.mu.Unlock()
		return
	}
	ib.queues[idx] = append(ib.queues[idx], msg)
	ib.queued[idx] += ib.received(msg)
	ib.mu.Unlock()
	ib.wakeup()
}

// Poll takes the oldest batch of queue i, or nil if it is empty.
func (ib *StripedInbox) Poll(ctx context.Context, i int) (*BatchMessage, error) {
	ib.mu.Lock()
	q := ib.queues[i]
	if len(q) == 0 {
		ib.mu.Unlock()
		return nil, nil
	}
	if ib.done[i] {
		ib.mu.Unlock()
		return nil, moerr.NewFragmentStateCorrupt(ctx, ib.key.Edge, ib.key.Stripe,
			"batch on queue %d after its last one", i)
	}
	msg := q[0]
	q[0] = nil
	ib.queues[i] = q[1:]
	ib.queued[i] -= int64(msg.Batch.RowCount()) * ib.cfg.RowWidth
	queued := ib.queued[i]
	if msg.Last {
		ib.done[i] = true
	}
	ib.mu.Unlock()
	return msg, ib.grant(ctx, msg, queued)
}

// Done reports that queue i received its last batch and was drained.
func (ib *StripedInbox) Done(i int) bool {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	return ib.done[i] && len(ib.queues[i]) == 0
}

func (ib *StripedInbox) Close() {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	ib.closed = true
	for i := range ib.queues {
		ib.queues[i] = nil
	}
}
