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
	"context"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/sql/colexec/output"
	"github.com/matrixorigin/distsql/pkg/sql/exchange"
	"github.com/matrixorigin/distsql/pkg/sql/plan"
	v2 "github.com/matrixorigin/distsql/pkg/util/metric/v2"
)

// Execute runs a plan coordinated by this member and streams its rows into
// consumer. It returns once every participant started; the outcome is
// reported to the consumer. Cancelling ctx stops the query.
func (s *Service) Execute(ctx context.Context, qp *plan.QueryPlan, args []any, consumer output.Consumer) (string, error) {
	if qp.Coordinator != s.member {
		return "", moerr.NewInvalidInput(ctx, "plan is coordinated by %s, not %s", qp.Coordinator, s.member)
	}
	if consumer == nil {
		return "", moerr.NewInvalidInput(ctx, "query without a consumer")
	}
	id := uuid.NewString()
	span := opentracing.StartSpan("distsql.execute", opentracing.Tag{Key: "query-id", Value: id})
	spanCtx := opentracing.ContextWithSpan(ctx, span)
	v2.QueryStartedCounter.Inc()

	e, err := s.prepare(spanCtx, id, s.member, qp, args, consumer, span)
	if err != nil {
		consumer.Fail(err)
		return id, err
	}

	if len(qp.RemoteMembers) > 0 {
		data, err := plan.MarshalPlan(qp)
		if err != nil {
			s.failQuery(e, err, s.member)
			return id, err
		}
		msg := &exchange.ExecuteMessage{
			QueryId:     id,
			Coordinator: s.member,
			Plan:        data,
			Args:        args,
		}
		for _, m := range qp.RemoteMembers {
			if err := s.transport.Send(spanCtx, s.member, m, msg); err != nil {
				s.failQuery(e, err, s.member)
				return id, err
			}
		}
	}

	e.start()
	start := &exchange.StartMessage{QueryId: id}
	for _, m := range qp.RemoteMembers {
		if err := s.transport.Send(spanCtx, s.member, m, start); err != nil {
			s.failQuery(e, err, s.member)
			return id, err
		}
	}
	e.logger.Debug("query started", zap.Strings("participants", qp.Participants()))

	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				s.Cancel(id)
			case <-e.ctx.Done():
			}
		}()
	}
	return id, nil
}

// Cancel stops a query coordinated by this member. It reports false when
// the query is unknown or already finished.
func (s *Service) Cancel(queryId string) bool {
	e := s.lookup(queryId)
	if e == nil || !e.isCoordinator() {
		return false
	}
	s.failQuery(e, moerr.NewQueryStopped(e.ctx, queryId), s.member)
	return true
}

// failQuery ends a query on its coordinator. Only the first error is
// reported to the consumer and to the participants, except origin which
// already knows.
func (s *Service) failQuery(e *execution, err error, origin string) {
	if !e.recordError(err) {
		return
	}
	if moerr.IsStopped(err) {
		e.logger.Info("query stopped", zap.String("origin", origin))
	} else {
		e.logger.Warn("query failed", zap.String("origin", origin), zap.Error(err))
	}
	if e.consumer != nil {
		e.consumer.Fail(err)
	}
	e.stop()
	msg := &exchange.CancelMessage{
		QueryId: e.id,
		Origin:  origin,
		Err:     moerr.DowncastError(err),
	}
	for _, m := range e.plan.RemoteMembers {
		if m == origin {
			continue
		}
		if serr := s.transport.Send(context.Background(), s.member, m, msg); serr != nil {
			e.logger.Debug("failed to cancel query on member",
				zap.String("target", m),
				zap.Error(serr))
		}
	}
}
