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
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/sql/colexec/output"
	"github.com/matrixorigin/distsql/pkg/sql/exchange"
	"github.com/matrixorigin/distsql/pkg/sql/plan"
	"github.com/matrixorigin/distsql/pkg/vm"
	"github.com/matrixorigin/distsql/pkg/vm/process"
	"github.com/matrixorigin/distsql/pkg/vm/sched"
)

// execution is the part of one query that runs on one member: a task per
// fragment stripe the member hosts.
type execution struct {
	svc         *Service
	id          string
	coordinator string
	plan        *plan.QueryPlan
	qs          *process.QueryState
	seed        uint64
	ctx         context.Context
	cancel      context.CancelFunc
	logger      *zap.Logger

	tasks   []*fragmentTask
	running atomic.Int32
	started atomic.Bool

	mu struct {
		sync.Mutex
		stopped  bool
		released bool
		err      error
	}

	// coordinator only
	consumer  output.Consumer
	span      opentracing.Span
	startTime time.Time
}

func (e *execution) isCoordinator() bool {
	return e.coordinator == e.svc.member
}

// start lets the tasks run. Nothing runs before every participant built
// its mailboxes.
func (e *execution) start() {
	e.mu.Lock()
	if e.started.Load() || e.mu.stopped {
		e.mu.Unlock()
		return
	}
	e.started.Store(true)
	e.mu.Unlock()
	if len(e.tasks) == 0 {
		e.release()
		return
	}
	for _, t := range e.tasks {
		t.task.Schedule()
	}
}

// stop raises the cancel flag and wakes every task so it notices.
func (e *execution) stop() {
	e.qs.Cancel()
	e.mu.Lock()
	e.mu.stopped = true
	started := e.started.Load()
	e.mu.Unlock()
	if !started {
		e.release()
		return
	}
	for _, t := range e.tasks {
		t.task.Schedule()
	}
}

// recordError keeps the first failure. It reports whether err was the
// first one.
func (e *execution) recordError(err error) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mu.err != nil {
		return false
	}
	e.mu.err = err
	return true
}

func (e *execution) error() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mu.err
}

func (e *execution) fragmentDone(ft *fragmentTask, err error) {
	switch {
	case err == nil:
		e.logger.Debug("fragment finished",
			zap.Int("fragment", ft.fragment),
			zap.Int("stripe", ft.stripe))
	case moerr.IsStopped(err):
		e.logger.Debug("fragment stopped",
			zap.Int("fragment", ft.fragment),
			zap.Int("stripe", ft.stripe))
	default:
		e.logger.Warn("fragment failed",
			zap.Int("fragment", ft.fragment),
			zap.Int("stripe", ft.stripe),
			zap.Error(err))
		e.fail(err)
	}
	if e.running.Dec() == 0 {
		e.release()
	}
}

// fail reports a local failure. A participant tells the coordinator, which
// fails the query everywhere.
func (e *execution) fail(err error) {
	if e.isCoordinator() {
		e.svc.failQuery(e, err, e.svc.member)
		return
	}
	e.recordError(err)
	msg := &exchange.CancelMessage{
		QueryId: e.id,
		Origin:  e.svc.member,
		Err:     moerr.DowncastError(err),
	}
	if serr := e.svc.transport.Send(context.Background(), e.svc.member, e.coordinator, msg); serr != nil {
		e.logger.Warn("failed to report failure to coordinator",
			zap.String("coordinator", e.coordinator),
			zap.Error(serr))
	}
	e.stop()
}

// release tears the execution down once no task can run anymore.
func (e *execution) release() {
	e.mu.Lock()
	if e.mu.released {
		e.mu.Unlock()
		return
	}
	e.mu.released = true
	e.mu.Unlock()

	cause := e.error()
	if cause == nil {
		cause = moerr.NewQueryStopped(e.ctx, e.id)
	}
	for _, t := range e.tasks {
		if !t.done.Swap(true) {
			t.task.Finish()
			vm.Free(t.root, t.proc, true, cause)
		}
	}
	n := e.svc.registry.Unregister(e.id)
	e.svc.remove(e)
	e.cancel()
	e.logger.Debug("query released", zap.Int("mailboxes", n))
	e.svc.queryEnded(e)
}

// fragmentTask runs one stripe of one fragment on its pinned worker.
type fragmentTask struct {
	exec     *execution
	fragment int
	stripe   int
	proc     *process.Process
	root     vm.Operator
	task     *sched.Task
	done     atomic.Bool
}

var _ sched.Runnable = new(fragmentTask)

// Run calls the root until it waits, finishes or used up budget. It
// reports whether the stripe should run again right away.
func (ft *fragmentTask) Run(budget int) bool {
	if ft.done.Load() || !ft.exec.started.Load() {
		return false
	}
	for i := 0; i < budget; i++ {
		res, err := ft.call()
		if err != nil {
			ft.finish(err)
			return false
		}
		switch res.Status {
		case vm.ExecWait:
			return false
		case vm.ExecFetchedDone:
			ft.finish(nil)
			return false
		}
	}
	return true
}

func (ft *fragmentTask) call() (res vm.CallResult, err error) {
	defer func() {
		if e := recover(); e != nil {
			err = moerr.ConvertPanicError(ft.proc.Ctx, e)
			ft.proc.Warn("fragment panicked", zap.Error(err))
		}
	}()
	if err = vm.CancelCheck(ft.proc); err != nil {
		return
	}
	return ft.root.Call(ft.proc)
}

func (ft *fragmentTask) finish(err error) {
	if ft.done.Swap(true) {
		return
	}
	ft.task.Finish()
	vm.Free(ft.root, ft.proc, err != nil, err)
	ft.exec.fragmentDone(ft, err)
}
