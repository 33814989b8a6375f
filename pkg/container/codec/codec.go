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

package codec

import (
	"context"
	"math"

	"github.com/gogo/protobuf/proto"
	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/container/types"
)

// Encoder appends values to a growing buffer. Integers are zigzag varints,
// floats are fixed64 and strings are length prefixed.
type Encoder struct {
	buf *proto.Buffer
}

func NewEncoder() *Encoder {
	return &Encoder{buf: proto.NewBuffer(nil)}
}

func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

func (e *Encoder) Reset() {
	e.buf.Reset()
}

func (e *Encoder) WriteUvarint(v uint64) {
	_ = e.buf.EncodeVarint(v)
}

func (e *Encoder) WriteInt(v int64) {
	_ = e.buf.EncodeZigzag64(uint64(v))
}

func (e *Encoder) WriteBool(v bool) {
	if v {
		e.WriteUvarint(1)
	} else {
		e.WriteUvarint(0)
	}
}

func (e *Encoder) WriteFloat(v float64) {
	_ = e.buf.EncodeFixed64(math.Float64bits(v))
}

func (e *Encoder) WriteString(s string) {
	_ = e.buf.EncodeStringBytes(s)
}

func (e *Encoder) WriteBytes(b []byte) {
	_ = e.buf.EncodeRawBytes(b)
}

func (e *Encoder) WriteInts(vs []int) {
	e.WriteUvarint(uint64(len(vs)))
	for _, v := range vs {
		e.WriteInt(int64(v))
	}
}

func (e *Encoder) WriteStrings(ss []string) {
	e.WriteUvarint(uint64(len(ss)))
	for _, s := range ss {
		e.WriteString(s)
	}
}

// WriteValue writes a type tag followed by the payload.
func (e *Encoder) WriteValue(v any) error {
	t := types.TypeOf(v)
	if t == types.T_any && v != nil {
		return moerr.NewEvalTypeMismatch(context.Background(), "cannot encode value of type %T", v)
	}
	e.WriteUvarint(uint64(t))
	switch x := v.(type) {
	case nil:
	case bool:
		e.WriteBool(x)
	case int64:
		e.WriteInt(x)
	case float64:
		e.WriteFloat(x)
	case types.Decimal:
		e.WriteString(x.String())
	case string:
		e.WriteString(x)
	case map[string]any:
		e.WriteUvarint(uint64(len(x)))
		for _, k := range types.SortedKeys(x) {
			e.WriteString(k)
			if err := e.WriteValue(x[k]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Encoder) WriteRow(row batch.Row) error {
	e.WriteUvarint(uint64(len(row)))
	for _, v := range row {
		if err := e.WriteValue(v); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) WriteBatch(bat *batch.Batch) error {
	e.WriteUvarint(uint64(bat.RowCount()))
	for _, row := range bat.Rows() {
		if err := e.WriteRow(row); err != nil {
			return err
		}
	}
	return nil
}

// Decoder reads what an Encoder wrote, in the same order.
type Decoder struct {
	buf *proto.Buffer
}

func NewDecoder(data []byte) *Decoder {
	return &Decoder{buf: proto.NewBuffer(data)}
}

func (d *Decoder) ReadUvarint() (uint64, error) {
	v, err := d.buf.DecodeVarint()
	if err != nil {
		return 0, convertError(err)
	}
	return v, nil
}

func (d *Decoder) ReadInt() (int64, error) {
	v, err := d.buf.DecodeZigzag64()
	if err != nil {
		return 0, convertError(err)
	}
	return int64(v), nil
}

func (d *Decoder) ReadBool() (bool, error) {
	v, err := d.ReadUvarint()
	return v != 0, err
}

func (d *Decoder) ReadFloat() (float64, error) {
	v, err := d.buf.DecodeFixed64()
	if err != nil {
		return 0, convertError(err)
	}
	return math.Float64frombits(v), nil
}

func (d *Decoder) ReadString() (string, error) {
	s, err := d.buf.DecodeStringBytes()
	if err != nil {
		return "", convertError(err)
	}
	return s, nil
}

func (d *Decoder) ReadBytes() ([]byte, error) {
	b, err := d.buf.DecodeRawBytes(true)
	if err != nil {
		return nil, convertError(err)
	}
	return b, nil
}

func (d *Decoder) ReadLen() (int, error) {
	n, err := d.ReadUvarint()
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt32 {
		return 0, moerr.NewInvalidInput(context.Background(), "length %d out of range", n)
	}
	return int(n), nil
}

func (d *Decoder) ReadInts() ([]int, error) {
	n, err := d.ReadLen()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	vs := make([]int, n)
	for i := range vs {
		v, err := d.ReadInt()
		if err != nil {
			return nil, err
		}
		vs[i] = int(v)
	}
	return vs, nil
}

func (d *Decoder) ReadStrings() ([]string, error) {
	n, err := d.ReadLen()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	ss := make([]string, n)
	for i := range ss {
		if ss[i], err = d.ReadString(); err != nil {
			return nil, err
		}
	}
	return ss, nil
}

func (d *Decoder) ReadValue() (any, error) {
	tag, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	switch types.T(tag) {
	case types.T_any:
		return nil, nil
	case types.T_bool:
		return d.ReadBool()
	case types.T_int64:
		return d.ReadInt()
	case types.T_float64:
		return d.ReadFloat()
	case types.T_decimal:
		s, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		return types.ParseDecimal(s)
	case types.T_varchar:
		return d.ReadString()
	case types.T_object:
		n, err := d.ReadLen()
		if err != nil {
			return nil, err
		}
		m := make(map[string]any, n)
		for i := 0; i < n; i++ {
			k, err := d.ReadString()
			if err != nil {
				return nil, err
			}
			if m[k], err = d.ReadValue(); err != nil {
				return nil, err
			}
		}
		return m, nil
	default:
		return nil, moerr.NewInvalidInput(context.Background(), "unknown value tag %d", tag)
	}
}

func (d *Decoder) ReadRow() (batch.Row, error) {
	n, err := d.ReadLen()
	if err != nil {
		return nil, err
	}
	row := make(batch.Row, n)
	for i := range row {
		if row[i], err = d.ReadValue(); err != nil {
			return nil, err
		}
	}
	return row, nil
}

func (d *Decoder) ReadBatch() (*batch.Batch, error) {
	n, err := d.ReadLen()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return batch.EmptyBatch, nil
	}
	rows := make([]batch.Row, n)
	for i := range rows {
		if rows[i], err = d.ReadRow(); err != nil {
			return nil, err
		}
	}
	return batch.New(rows), nil
}

func convertError(err error) error {
	return moerr.NewUnexpectedEOF(context.Background(), err.Error())
}
