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
	"sync"

	"go.uber.org/zap"

	"github.com/matrixorigin/distsql/pkg/config"
	"github.com/matrixorigin/distsql/pkg/logutil"
	"github.com/matrixorigin/distsql/pkg/sql/exchange"
	"github.com/matrixorigin/distsql/pkg/vm/engine"
	"github.com/matrixorigin/distsql/pkg/vm/process"
	"github.com/matrixorigin/distsql/pkg/vm/sched"
)

type Option func(*Service)

// WithLogger sets the logger of the service.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithPool makes the service run fragments on an existing pool. The
// service does not close it.
func WithPool(pool *sched.Pool) Option {
	return func(s *Service) {
		s.pool = pool
		s.ownPool = false
	}
}

// Service runs the fragments of distributed queries on one member and
// coordinates the queries submitted to it.
type Service struct {
	member    string
	engine    engine.Engine
	transport exchange.Transport
	registry  *exchange.Registry
	pool      *sched.Pool
	ownPool   bool
	cfg       exchange.Config
	lim       process.Limitation
	logger    *zap.Logger

	mu struct {
		sync.Mutex
		queries map[string]*execution
	}
}

var _ exchange.Handler = new(Service)

func NewService(
	member string,
	params *config.Parameters,
	eng engine.Engine,
	transport exchange.Transport,
	opts ...Option,
) (*Service, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		member:    member,
		engine:    eng,
		transport: transport,
		ownPool:   true,
		cfg: exchange.Config{
			BatchSize:     params.Exchange.BatchSize,
			InitialCredit: params.Exchange.InitialCredit,
			RowWidth:      params.Exchange.RowWidth,
		},
		lim: process.Limitation{
			BatchRows: params.Scan.BatchRows,
			RowWidth:  params.Exchange.RowWidth,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logutil.GetGlobalLogger().Named("compile")
	}
	s.logger = s.logger.With(zap.String("member", member))
	if s.pool == nil {
		pool, err := sched.NewPool(params.SQL.ThreadCount, params.SQL.MaxIterationsPerRun, s.logger)
		if err != nil {
			return nil, err
		}
		s.pool = pool
	}
	s.registry = exchange.NewRegistry(member, s.logger)
	s.mu.queries = make(map[string]*execution)
	return s, nil
}

func (s *Service) Member() string {
	return s.member
}

func (s *Service) Engine() engine.Engine {
	return s.engine
}

// Queries is the number of queries with fragments on this member.
func (s *Service) Queries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mu.queries)
}

// Mailboxes is the number of registered inboxes and outboxes.
func (s *Service) Mailboxes() int {
	return s.registry.Len()
}

// Close stops every running query and the workers.
func (s *Service) Close() {
	s.mu.Lock()
	executions := make([]*execution, 0, len(s.mu.queries))
	for _, e := range s.mu.queries {
		executions = append(executions, e)
	}
	s.mu.Unlock()
	for _, e := range executions {
		e.stop()
	}
	if s.ownPool {
		s.pool.Close()
		// stripes that never got to observe the stop
		for _, e := range executions {
			e.release()
		}
	}
}

func (s *Service) lookup(queryId string) *execution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mu.queries[queryId]
}

func (s *Service) remove(e *execution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mu.queries[e.id] == e {
		delete(s.mu.queries, e.id)
	}
}
