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
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/matrixorigin/distsql/pkg/container/batch"
	v2 "github.com/matrixorigin/distsql/pkg/util/metric/v2"
)

// Outbox buffers rows for one receiver stripe. Buffered bytes never exceed
// the credit the receiver granted last. Only the sending stripe calls
// OnRowBatch; OnFlowControl may come from any goroutine.
type Outbox struct {
	key       OutboxKey
	member    string
	transport Transport
	batchSize int64
	rowWidth  int64
	logger    *zap.Logger

	credit     atomic.Int64
	closed     atomic.Bool
	reschedule func()

	rows []batch.Row
	done bool
}

func NewOutbox(
	key OutboxKey,
	member string,
	transport Transport,
	cfg Config,
	reschedule func(),
	logger *zap.Logger,
) *Outbox {
	ob := &Outbox{
		key:        key,
		member:     member,
		transport:  transport,
		batchSize:  cfg.BatchSize,
		rowWidth:   cfg.RowWidth,
		reschedule: reschedule,
		logger:     logger,
	}
	ob.credit.Store(cfg.InitialCredit)
	return ob
}

func (ob *Outbox) Key() OutboxKey {
	return ob.key
}

func (ob *Outbox) Credit() int64 {
	return ob.credit.Load()
}

// Pending is the number of buffered rows.
func (ob *Outbox) Pending() int {
	return len(ob.rows)
}

// IsDone reports that the last batch was transmitted.
func (ob *Outbox) IsDone() bool {
	return ob.done
}

// OnRowBatch buffers the rows of bat from position on that qualifier
// accepts, as many as the credit allows, and returns the position reached.
// The caller resumes from there once more credit arrives. Rows are
// transmitted when the buffer reaches the batch size, when the credit
// cannot take another row, or when last is set and every row was taken.
func (ob *Outbox) OnRowBatch(ctx context.Context, bat *batch.Batch, last bool, position int, qualifier func(pos int) bool) (int, error) {
	if ob.done {
		return bat.RowCount(), nil
	}
	maxAccepted := ob.credit.Load() / ob.rowWidth
	accepted := int64(0)
	pos := position
	for ; pos < bat.RowCount(); pos++ {
		if qualifier != nil && !qualifier(pos) {
			continue
		}
		if accepted == maxAccepted {
			break
		}
		ob.rows = append(ob.rows, bat.GetRow(pos))
		accepted++
	}
	remaining := ob.credit.Sub(accepted * ob.rowWidth)

	full := int64(len(ob.rows))*ob.rowWidth >= ob.batchSize || remaining < ob.rowWidth
	lastTransmit := last && pos == bat.RowCount()
	if lastTransmit || (full && len(ob.rows) > 0) {
		if err := ob.send(ctx, lastTransmit); err != nil {
			return pos, err
		}
	}
	if pos < bat.RowCount() {
		v2.CreditStallCounter.Inc()
	}
	return pos, nil
}

// OnFlowControl replaces the credit and wakes the sending stripe.
func (ob *Outbox) OnFlowControl(credit int64) {
	if ob.closed.Load() {
		return
	}
	ob.credit.Store(credit)
	if ob.reschedule != nil {
		ob.reschedule()
	}
}

// Close stops credit updates from waking the sender.
func (ob *Outbox) Close() {
	ob.closed.Store(true)
}

func (ob *Outbox) send(ctx context.Context, last bool) error {
	msg := &BatchMessage{
		QueryId:      ob.key.QueryId,
		Edge:         ob.key.Edge,
		Sender:       ob.member,
		SenderStripe: ob.key.SenderStripe,
		TargetStripe: ob.key.TargetStripe,
		Batch:        batch.New(ob.rows),
		Last:         last,
	}
	if err := ob.transport.Send(ctx, ob.member, ob.key.Target, msg); err != nil {
		ob.logger.Error("failed to send batch",
			zap.String("query-id", ob.key.QueryId),
			zap.Int32("edge", ob.key.Edge),
			zap.String("target", ob.key.Target),
			zap.Error(err))
		return sendError(ctx, ob.key.Target, err)
	}
	rows := len(ob.rows)
	v2.SentBatchCounter(v2.KindOutbox).Inc()
	v2.SentRowsCounter(v2.KindOutbox).Add(float64(rows))
	v2.SentBytesCounter(v2.KindOutbox).Add(float64(int64(rows) * ob.rowWidth))
	ob.rows = nil
	ob.done = last
	return nil
}

func (ob *Outbox) String() string {
	return fmt.Sprintf("Outbox{query=%s, edge=%d, stripe=%d, target=%s/%d}",
		ob.key.QueryId, ob.key.Edge, ob.key.SenderStripe, ob.key.Target, ob.key.TargetStripe)
}
