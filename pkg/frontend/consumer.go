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

package frontend

import (
	"context"
	"io"
	"sync"

	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/sql/colexec/output"
	"github.com/matrixorigin/distsql/pkg/vm"
)

const defaultPageSize = 1024

var _ output.Consumer = new(PagedConsumer)

// PagedConsumer buffers at most pageSize result rows. The query root parks
// while the buffer is full and resumes once a reader took the page.
type PagedConsumer struct {
	pageSize int

	mu         sync.Mutex
	rows       []batch.Row
	done       bool
	err        error
	reschedule func()
	notify     chan struct{}
}

func NewPagedConsumer(pageSize int) *PagedConsumer {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &PagedConsumer{
		pageSize: pageSize,
		notify:   make(chan struct{}, 1),
	}
}

func (c *PagedConsumer) Setup(reschedule func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reschedule = reschedule
}

func (c *PagedConsumer) Consume(u *vm.Upstream) bool {
	c.mu.Lock()
	full := false
	taken := 0
	for u.HasNext() {
		if len(c.rows) >= c.pageSize {
			full = true
			break
		}
		c.rows = append(c.rows, u.Next())
		taken++
	}
	c.mu.Unlock()
	if taken > 0 {
		c.wakeup()
	}
	return !full
}

func (c *PagedConsumer) Done() {
	c.mu.Lock()
	c.done = true
	c.mu.Unlock()
	c.wakeup()
}

// Fail keeps the first error only.
func (c *PagedConsumer) Fail(err error) {
	c.mu.Lock()
	if c.err == nil && !c.done {
		c.err = err
	}
	c.mu.Unlock()
	c.wakeup()
}

// Next waits for result rows and returns the buffered page. It returns
// io.EOF after the last page and the query error if the query failed;
// a failed query returns no further rows.
func (c *PagedConsumer) Next(ctx context.Context) ([]batch.Row, error) {
	for {
		c.mu.Lock()
		if c.err != nil {
			err := c.err
			c.mu.Unlock()
			return nil, err
		}
		if len(c.rows) > 0 {
			page := c.rows
			c.rows = nil
			reschedule := c.reschedule
			c.mu.Unlock()
			if reschedule != nil {
				reschedule()
			}
			return page, nil
		}
		if c.done {
			c.mu.Unlock()
			return nil, io.EOF
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.notify:
		}
	}
}

// ReadAll reads pages until the end of the result.
func (c *PagedConsumer) ReadAll(ctx context.Context) ([]batch.Row, error) {
	var rows []batch.Row
	for {
		page, err := c.Next(ctx)
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, page...)
	}
}

func (c *PagedConsumer) wakeup() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}
