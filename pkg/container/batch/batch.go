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

package batch

import (
	"bytes"
	"fmt"
)

// Row is an ordered tuple of normalized values.
type Row []any

func (r Row) Get(i int) any {
	return r[i]
}

func (r Row) Len() int {
	return len(r)
}

func (r Row) String() string {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range r {
		if i > 0 {
			buf.WriteString(", ")
		}
		if v == nil {
			buf.WriteString("NULL")
		} else {
			fmt.Fprintf(&buf, "%v", v)
		}
	}
	buf.WriteByte(']')
	return buf.String()
}

// Batch is an ordered finite sequence of rows moved as a unit. A batch is
// never modified once handed to another operator.
type Batch struct {
	rows []Row
}

// EmptyBatch has no rows. It is shared.
var EmptyBatch = &Batch{}

func New(rows []Row) *Batch {
	if len(rows) == 0 {
		return EmptyBatch
	}
	return &Batch{rows: rows}
}

func (b *Batch) RowCount() int {
	if b == nil {
		return 0
	}
	return len(b.rows)
}

func (b *Batch) GetRow(i int) Row {
	return b.rows[i]
}

func (b *Batch) Rows() []Row {
	if b == nil {
		return nil
	}
	return b.rows
}

func (b *Batch) IsEmpty() bool {
	return b.RowCount() == 0
}

func (b *Batch) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "batch(%d)", b.RowCount())
	for i := 0; i < b.RowCount() && i < 8; i++ {
		buf.WriteString(" ")
		buf.WriteString(b.rows[i].String())
	}
	if b.RowCount() > 8 {
		buf.WriteString(" ...")
	}
	return buf.String()
}
