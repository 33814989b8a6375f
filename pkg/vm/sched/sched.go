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

package sched

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	v2 "github.com/matrixorigin/distsql/pkg/util/metric/v2"
)

// Runnable is the work of a task. Run advances it by at most budget
// iterations and reports whether it wants to run again right away.
type Runnable interface {
	Run(budget int) (yield bool)
}

type RunnableFunc func(budget int) bool

func (f RunnableFunc) Run(budget int) bool {
	return f(budget)
}

// Task is pinned to one worker for its whole life. Schedule may be called
// from any goroutine, any number of times: a task is queued at most once,
// and a Schedule that arrives while the task runs queues it again.
type Task struct {
	name      string
	worker    *worker
	runnable  Runnable
	scheduled atomic.Bool
	finished  atomic.Bool
}

func (t *Task) Name() string {
	return t.name
}

func (t *Task) Schedule() {
	if t.finished.Load() {
		return
	}
	if t.scheduled.CAS(false, true) {
		t.worker.push(t)
	}
}

// Finish stops the task from being queued again.
func (t *Task) Finish() {
	t.finished.Store(true)
}

type worker struct {
	id int
	// queue never blocks the caller of push
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*Task
	closed bool
}

func newWorker(id int) *worker {
	w := &worker{id: id}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *worker) push(t *Task) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.queue = append(w.queue, t)
	w.cond.Signal()
}

func (w *worker) pop() (*Task, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for len(w.queue) == 0 && !w.closed {
		w.cond.Wait()
	}
	if w.closed {
		return nil, false
	}
	t := w.queue[0]
	w.queue[0] = nil
	w.queue = w.queue[1:]
	return t, true
}

func (w *worker) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.queue = nil
	w.cond.Broadcast()
}

// Pool is a fixed set of workers. Each worker runs its tasks one at a time
// in the order they were scheduled.
type Pool struct {
	logger  *zap.Logger
	budget  int
	pool    *ants.Pool
	workers []*worker
	wg      sync.WaitGroup
	next    atomic.Uint64
}

func NewPool(size, maxIterationsPerRun int, logger *zap.Logger) (*Pool, error) {
	if size <= 0 {
		return nil, moerr.NewInvalidInput(context.Background(), "worker count %d", size)
	}
	if maxIterationsPerRun <= 0 {
		maxIterationsPerRun = 1
	}
	p := &Pool{
		logger:  logger,
		budget:  maxIterationsPerRun,
		workers: make([]*worker, size),
	}
	// workers never go idle, so there is nothing to purge
	pool, err := ants.NewPool(size,
		ants.WithDisablePurge(true),
		ants.WithPanicHandler(func(v interface{}) {
			logger.Error("worker panicked", zap.Any("panic", v))
		}))
	if err != nil {
		return nil, err
	}
	p.pool = pool
	for i := range p.workers {
		w := newWorker(i)
		p.workers[i] = w
		p.wg.Add(1)
		if err := pool.Submit(func() {
			defer p.wg.Done()
			p.loop(w)
		}); err != nil {
			p.wg.Done()
			p.Close()
			return nil, err
		}
	}
	return p, nil
}

// Size is the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// NewTask pins r to a worker. A negative affinity picks workers round
// robin.
func (p *Pool) NewTask(name string, affinity int, r Runnable) *Task {
	if affinity < 0 {
		affinity = int(p.next.Inc() - 1)
	}
	return &Task{
		name:     name,
		worker:   p.workers[affinity%len(p.workers)],
		runnable: r,
	}
}

func (p *Pool) loop(w *worker) {
	for {
		t, ok := w.pop()
		if !ok {
			return
		}
		if t.finished.Load() {
			t.scheduled.Store(false)
			continue
		}
		t.scheduled.Store(false)
		v2.TaskRunCounter.Inc()
		if t.runnable.Run(p.budget) {
			v2.TaskYieldCounter.Inc()
			t.Schedule()
		}
	}
}

// Close stops every worker once its current task returns. Queued tasks
// are dropped.
func (p *Pool) Close() {
	for _, w := range p.workers {
		if w != nil {
			w.close()
		}
	}
	p.wg.Wait()
	p.pool.Release()
}
