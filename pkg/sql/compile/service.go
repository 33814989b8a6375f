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
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/sql/colexec/output"
	"github.com/matrixorigin/distsql/pkg/sql/exchange"
	"github.com/matrixorigin/distsql/pkg/sql/plan"
	v2 "github.com/matrixorigin/distsql/pkg/util/metric/v2"
	"github.com/matrixorigin/distsql/pkg/vm"
	"github.com/matrixorigin/distsql/pkg/vm/process"
)

// replicaSeed picks the member that scans a replicated map for a query.
var replicaSeed = func(queryId string) uint64 {
	return batch.HashValue(queryId)
}

// Handle is called by the transport for every message addressed to this
// member. It never blocks on query progress: batches and credits go to
// their mailbox, control messages only build or wake tasks.
func (s *Service) Handle(ctx context.Context, from string, msg exchange.Message) error {
	if s.registry.Deliver(ctx, from, msg) {
		return nil
	}
	switch m := msg.(type) {
	case *exchange.ExecuteMessage:
		qp, err := plan.UnmarshalPlan(ctx, m.Plan)
		if err != nil {
			return err
		}
		_, err = s.prepare(ctx, m.QueryId, m.Coordinator, qp, m.Args, nil, nil)
		return err

	case *exchange.StartMessage:
		e := s.lookup(m.QueryId)
		if e == nil {
			s.logger.Debug("start for unknown query", zap.String("query-id", m.QueryId))
			return nil
		}
		e.start()
		return nil

	case *exchange.CancelMessage:
		e := s.lookup(m.QueryId)
		if e == nil {
			s.logger.Debug("cancel for unknown query",
				zap.String("query-id", m.QueryId),
				zap.String("origin", m.Origin))
			return nil
		}
		var err error = moerr.NewQueryStopped(ctx, m.QueryId)
		if m.Err != nil {
			err = m.Err
		}
		if e.isCoordinator() {
			s.failQuery(e, err, m.Origin)
			return nil
		}
		e.recordError(err)
		e.stop()
		return nil

	default:
		return moerr.NewNotSupported(ctx, "message %s from %s", msg.Type(), from)
	}
}

// prepare builds every stripe this member runs for a query and registers
// their mailboxes. The stripes stay idle until start.
func (s *Service) prepare(
	ctx context.Context,
	id string,
	coordinator string,
	qp *plan.QueryPlan,
	args []any,
	consumer output.Consumer,
	span opentracing.Span,
) (*execution, error) {
	buildSpan, ctx := opentracing.StartSpanFromContext(ctx, "distsql.build")
	buildSpan.SetTag("member", s.member)
	defer buildSpan.Finish()

	if s.lookup(id) != nil {
		return nil, moerr.NewInvalidState(ctx, "query %s is already running on %s", id, s.member)
	}
	e := s.newExecution(id, coordinator, qp, args, consumer, span)
	for fi, f := range qp.Fragments {
		if !f.HasMember(s.member) {
			continue
		}
		for stripe := 0; stripe < f.Parallelism; stripe++ {
			if err := e.addStripe(fi, f, stripe); err != nil {
				e.recordError(err)
				e.release()
				return nil, err
			}
		}
	}
	e.running.Store(int32(len(e.tasks)))

	s.mu.Lock()
	s.mu.queries[id] = e
	s.mu.Unlock()

	s.logger.Debug("query prepared",
		zap.String("query-id", id),
		zap.String("coordinator", coordinator),
		zap.Int("stripes", len(e.tasks)))
	return e, nil
}

func (s *Service) newExecution(
	id string,
	coordinator string,
	qp *plan.QueryPlan,
	args []any,
	consumer output.Consumer,
	span opentracing.Span,
) *execution {
	ctx, cancel := context.WithCancel(context.Background())
	return &execution{
		svc:         s,
		id:          id,
		coordinator: coordinator,
		plan:        qp,
		qs:          process.NewQueryState(id, coordinator, args),
		seed:        replicaSeed(id),
		ctx:         ctx,
		cancel:      cancel,
		logger:      s.logger.With(zap.String("query-id", id)),
		consumer:    consumer,
		span:        span,
		startTime:   time.Now(),
	}
}

// addStripe builds one stripe of fragment fi.
func (e *execution) addStripe(fi int, f *plan.QueryFragment, stripe int) error {
	s := e.svc
	proc := process.New(e.ctx, e.qs, s.member, fi, stripe, s.lim, e.logger)
	ft := &fragmentTask{
		exec:     e,
		fragment: fi,
		stripe:   stripe,
		proc:     proc,
	}
	ft.task = s.pool.NewTask(fmt.Sprintf("%s/%d/%d", e.id, fi, stripe), -1, ft)
	proc.SetRescheduler(ft.task.Schedule)

	b := &Builder{
		queryId:   e.id,
		member:    s.member,
		plan:      e.plan,
		fragment:  f,
		fragIdx:   fi,
		stripe:    stripe,
		seed:      e.seed,
		engine:    s.engine,
		transport: s.transport,
		cfg:       s.cfg,
		consumer:  e.consumer,
		proc:      proc,
		logger:    e.logger,
	}
	root, err := b.Build()
	if err != nil {
		return err
	}
	if err = vm.Prepare(root, proc); err != nil {
		vm.Free(root, proc, true, err)
		return err
	}
	ft.root = root
	for _, mb := range b.inboxes {
		s.registry.RegisterInbox(mb.key, mb.ib)
	}
	for _, ob := range b.outboxes {
		s.registry.RegisterOutbox(ob)
	}
	e.tasks = append(e.tasks, ft)
	if ce := e.logger.Check(zap.DebugLevel, "stripe built"); ce != nil {
		var buf bytes.Buffer
		vm.String(root, &buf)
		ce.Write(zap.Int("fragment", fi),
			zap.Int("stripe", stripe),
			zap.String("operators", buf.String()))
	}
	return nil
}

// queryEnded records the outcome of a query on its coordinator.
func (s *Service) queryEnded(e *execution) {
	if !e.isCoordinator() {
		return
	}
	err := e.error()
	switch {
	case err == nil:
		v2.QueryFinishedCounter.Inc()
	case moerr.IsStopped(err):
		v2.QueryStoppedCounter.Inc()
	default:
		v2.QueryFailedCounter.Inc()
	}
	d := time.Since(e.startTime)
	v2.QueryDurationHistogram.Observe(d.Seconds())
	if e.span != nil {
		if err != nil {
			e.span.SetTag("error", true)
			e.span.LogKV("error", err.Error())
		}
		e.span.Finish()
	}
	e.logger.Info("query finished", zap.Duration("duration", d), zap.Error(err))
}
