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

	"go.uber.org/zap"
)

func (proc *Process) QueryId() string {
	return proc.Query.Id
}

// Context and Arguments make a Process usable as an expression context.
func (proc *Process) Context() context.Context {
	return proc.Ctx
}

func (proc *Process) Arguments() []any {
	return proc.Query.Args
}

func (proc *Process) IsCancelled() bool {
	return proc.Query.IsCancelled()
}

// SetRescheduler installs the callback that puts the stripe back on its
// worker.
func (proc *Process) SetRescheduler(fn func()) {
	proc.reschedule = fn
}

// Reschedule may be called from any goroutine.
func (proc *Process) Reschedule() {
	if proc.reschedule != nil {
		proc.reschedule()
	}
}

func (proc *Process) Rescheduler() func() {
	return proc.Reschedule
}

func (proc *Process) Logger() *zap.Logger {
	return proc.logger
}

func (proc *Process) Debug(msg string, fields ...zap.Field) {
	proc.logger.Debug(msg, fields...)
}

func (proc *Process) Info(msg string, fields ...zap.Field) {
	proc.logger.Info(msg, fields...)
}

func (proc *Process) Warn(msg string, fields ...zap.Field) {
	proc.logger.Warn(msg, fields...)
}
