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

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	v2 "github.com/matrixorigin/distsql/pkg/util/metric/v2"
)

type senderKey struct {
	member string
	stripe int
}

// inbox holds what both inbox kinds share: identity, credit policy and the
// wake up callback.
type inbox struct {
	key       InboxKey
	member    string
	transport Transport
	cfg       Config
	logger    *zap.Logger
	kind      string

	reschedule func()
}

// grant tells a sender how much it may have in flight now.
func (ib *inbox) grant(ctx context.Context, msg *BatchMessage, queued int64) error {
	if msg.Last {
		return nil
	}
	fc := &FlowControlMessage{
		QueryId:        ib.key.QueryId,
		Edge:           ib.key.Edge,
		Receiver:       ib.member,
		ReceiverStripe: ib.key.Stripe,
		SenderStripe:   msg.SenderStripe,
		Credit:         ib.cfg.InitialCredit - queued,
	}
	if err := ib.transport.Send(ctx, ib.member, msg.Sender, fc); err != nil {
		ib.logger.Error("failed to grant credit",
			zap.String("query-id", ib.key.QueryId),
			zap.Int32("edge", ib.key.Edge),
			zap.String("sender", msg.Sender),
			zap.Error(err))
		return sendError(ctx, msg.Sender, err)
	}
	v2.FlowControlGrantCounter.Inc()
	return nil
}

func (ib *inbox) received(msg *BatchMessage) int64 {
	rows := int64(msg.Batch.RowCount())
	v2.ReceivedBatchCounter(ib.kind).Inc()
	v2.ReceivedRowsCounter(ib.kind).Add(float64(rows))
	v2.ReceivedBytesCounter(ib.kind).Add(float64(rows * ib.cfg.RowWidth))
	return rows * ib.cfg.RowWidth
}

func (ib *inbox) wakeup() {
	if ib.reschedule != nil {
		ib.reschedule()
	}
}

// SingleInbox merges the streams of every sender stripe of an edge into
// one queue. Arrival order is kept per sender stripe only.
type SingleInbox struct {
	inbox

	mu        sync.Mutex
	queue     []*BatchMessage
	queued    map[senderKey]int64
	remaining int
	closed    bool
}

var _ Inbox = new(SingleInbox)

// NewSingleInbox creates an inbox expecting a last batch from each of
// senders stripes.
func NewSingleInbox(
	key InboxKey,
	member string,
	transport Transport,
	cfg Config,
	senders int,
	reschedule func(),
	logger *zap.Logger,
) *SingleInbox {
	return &SingleInbox{
		inbox: inbox{
			key:        key,
			member:     member,
			transport:  transport,
			cfg:        cfg,
			logger:     logger,
			kind:       v2.KindSingle,
			reschedule: reschedule,
		},
		queued:    make(map[senderKey]int64),
		remaining: senders,
	}
}

func (ib *SingleInbox) Key() InboxKey {
	return ib.key
}

func (ib *SingleInbox) OnBatch(msg *BatchMessage) {
	ib.mu.Lock()
	if ib.closed {
		ib.mu.Unlock()
		return
	}
	ib.queue = append(ib.queue, msg)
	ib.queued[senderKey{msg.Sender, msg.SenderStripe}] += ib.received(msg)
	ib.mu.Unlock()
	ib.wakeup()
}

// Poll returns the oldest batch, or nil if none arrived. Taking a batch
// grants its sender new credit.
func (ib *SingleInbox) Poll(ctx context.Context) (*BatchMessage, error) {
	ib.mu.Lock()
	if len(ib.queue) == 0 {
		ib.mu.Unlock()
		return nil, nil
	}
	msg := ib.queue[0]
	ib.queue[0] = nil
	ib.queue = ib.queue[1:]
	sk := senderKey{msg.Sender, msg.SenderStripe}
	ib.queued[sk] -= int64(msg.Batch.RowCount()) * ib.cfg.RowWidth
	queued := ib.queued[sk]
	if msg.Last {
		if ib.remaining == 0 {
			ib.mu.Unlock()
			return nil, moerr.NewFragmentStateCorrupt(ctx, ib.key.Edge, ib.key.Stripe,
				"last batch from %s/%d after every sender finished", msg.Sender, msg.SenderStripe)
		}
		ib.remaining--
		delete(ib.queued, sk)
	}
	ib.mu.Unlock()
	return msg, ib.grant(ctx, msg, queued)
}

// Done reports that every sender finished and every batch was polled.
func (ib *SingleInbox) Done() bool {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	return ib.remaining == 0 && len(ib.queue) == 0
}

// Remaining is the number of senders that have not finished yet.
func (ib *SingleInbox) Remaining() int {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	return ib.remaining
}

func (ib *SingleInbox) Close() {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	ib.closed = true
	ib.queue = nil
}
