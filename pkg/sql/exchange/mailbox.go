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

// Config sizes mailboxes. All values are bytes.
type Config struct {
	BatchSize     int64
	InitialCredit int64
	RowWidth      int64
}

// InboxKey identifies a receiving mailbox on its member.
type InboxKey struct {
	QueryId string
	Edge    int32
	Stripe  int
}

// OutboxKey identifies a sending mailbox on its member.
type OutboxKey struct {
	QueryId      string
	Edge         int32
	SenderStripe int
	Target       string
	TargetStripe int
}

// Inbox is the network end of a receiving mailbox. The receive operator
// holds the other end, the concrete SingleInbox or StripedInbox.
type Inbox interface {
	OnBatch(msg *BatchMessage)
	Close()
}

// Registry routes batches and credit grants arriving at a member to the
// mailboxes of running queries.
type Registry struct {
	sync.RWMutex
	member   string
	logger   *zap.Logger
	inboxes  map[InboxKey]Inbox
	outboxes map[OutboxKey]*Outbox
}

func NewRegistry(member string, logger *zap.Logger) *Registry {
	return &Registry{
		member:   member,
		logger:   logger,
		inboxes:  make(map[InboxKey]Inbox),
		outboxes: make(map[OutboxKey]*Outbox),
	}
}

func (r *Registry) RegisterInbox(key InboxKey, ib Inbox) {
	r.Lock()
	defer r.Unlock()
	r.inboxes[key] = ib
}

func (r *Registry) RegisterOutbox(ob *Outbox) {
	r.Lock()
	defer r.Unlock()
	r.outboxes[ob.key] = ob
}

// Unregister closes and forgets every mailbox of a query. It returns the
// number of mailboxes removed.
func (r *Registry) Unregister(queryId string) int {
	r.Lock()
	var inboxes []Inbox
	var outboxes []*Outbox
	for k, ib := range r.inboxes {
		if k.QueryId == queryId {
			inboxes = append(inboxes, ib)
			delete(r.inboxes, k)
		}
	}
	for k, ob := range r.outboxes {
		if k.QueryId == queryId {
			outboxes = append(outboxes, ob)
			delete(r.outboxes, k)
		}
	}
	r.Unlock()

	for _, ib := range inboxes {
		ib.Close()
	}
	for _, ob := range outboxes {
		ob.Close()
	}
	return len(inboxes) + len(outboxes)
}

// Len is the number of registered mailboxes.
func (r *Registry) Len() int {
	r.RLock()
	defer r.RUnlock()
	return len(r.inboxes) + len(r.outboxes)
}

// Deliver hands batch and flow control messages to their mailbox. It
// reports false for other message types. Messages for unknown mailboxes
// are dropped: the query finished or never started here.
func (r *Registry) Deliver(ctx context.Context, from string, msg Message) bool {
	switch m := msg.(type) {
	case *BatchMessage:
		key := InboxKey{QueryId: m.QueryId, Edge: m.Edge, Stripe: m.TargetStripe}
		r.RLock()
		ib, ok := r.inboxes[key]
		r.RUnlock()
		if !ok {
			r.drop(ctx, from, msg, m.Edge)
			return true
		}
		ib.OnBatch(m)
		return true
	case *FlowControlMessage:
		key := OutboxKey{
			QueryId:      m.QueryId,
			Edge:         m.Edge,
			SenderStripe: m.SenderStripe,
			Target:       m.Receiver,
			TargetStripe: m.ReceiverStripe,
		}
		r.RLock()
		ob, ok := r.outboxes[key]
		r.RUnlock()
		if !ok {
			r.drop(ctx, from, msg, m.Edge)
			return true
		}
		ob.OnFlowControl(m.Credit)
		return true
	}
	return false
}

func (r *Registry) drop(ctx context.Context, from string, msg Message, edge int32) {
	v2.DroppedMessageCounter.Inc()
	r.logger.Debug("drop message",
		zap.String("type", msg.Type().String()),
		zap.String("from", from),
		zap.Error(moerr.NewMailboxNotFound(ctx, "query %s edge %d on %s", msg.QueryID(), edge, r.member)))
}
