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

package process

import (
	"context"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// QueryState is shared by every fragment stripe of one query execution on
// a member.
type QueryState struct {
	Id          string
	Coordinator string
	// Args are the bound parameters of this execution.
	Args []any

	cancelled atomic.Bool
}

func NewQueryState(id, coordinator string, args []any) *QueryState {
	return &QueryState{Id: id, Coordinator: coordinator, Args: args}
}

// Cancel raises the flag operators poll between batches. It reports
// whether this call raised it.
func (qs *QueryState) Cancel() bool {
	return qs.cancelled.CAS(false, true)
}

func (qs *QueryState) IsCancelled() bool {
	return qs.cancelled.Load()
}

// Limitation bounds batch sizes inside a fragment.
type Limitation struct {
	// BatchRows is the number of rows a scan emits per batch.
	BatchRows int
	// RowWidth is the estimated size of a row in bytes.
	RowWidth int64
}

// Process is the execution context of one fragment stripe. It is only
// touched by the worker the stripe is pinned to, except for Reschedule.
type Process struct {
	Ctx   context.Context
	Query *QueryState

	Member   string
	Fragment int
	Stripe   int
	Lim      Limitation

	reschedule func()
	logger     *zap.Logger
}

func New(ctx context.Context, query *QueryState, member string, fragment, stripe int, lim Limitation, logger *zap.Logger) *Process {
	return &Process{
		Ctx:      ctx,
		Query:    query,
		Member:   member,
		Fragment: fragment,
		Stripe:   stripe,
		Lim:      lim,
		logger: logger.With(
			zap.String("query-id", query.Id),
			zap.Int("fragment", fragment),
			zap.Int("stripe", stripe),
		),
	}
}
