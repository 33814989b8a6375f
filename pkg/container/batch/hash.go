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
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/matrixorigin/distsql/pkg/container/types"
)

const (
	nullWidth   = 1
	fixedWidth  = 9
	objectWidth = 64
)

// HashColumns hashes the values at cols. Rows that compare equal on cols
// hash equal as long as their values are normalized.
func HashColumns(row Row, cols []int) uint64 {
	d := xxhash.New()
	var scratch [9]byte
	for _, c := range cols {
		writeHashValue(d, row[c], scratch[:])
	}
	return d.Sum64()
}

// HashValue hashes a single value, e.g. a map key for partition lookup.
func HashValue(v any) uint64 {
	d := xxhash.New()
	var scratch [9]byte
	writeHashValue(d, v, scratch[:])
	return d.Sum64()
}

func writeHashValue(d *xxhash.Digest, v any, scratch []byte) {
	switch x := v.(type) {
	case nil:
		scratch[0] = byte(types.T_any)
		_, _ = d.Write(scratch[:1])
	case bool:
		scratch[0] = byte(types.T_bool)
		scratch[1] = 0
		if x {
			scratch[1] = 1
		}
		_, _ = d.Write(scratch[:2])
	case int64:
		scratch[0] = byte(types.T_int64)
		binary.LittleEndian.PutUint64(scratch[1:], uint64(x))
		_, _ = d.Write(scratch[:9])
	case float64:
		scratch[0] = byte(types.T_float64)
		binary.LittleEndian.PutUint64(scratch[1:], math.Float64bits(x))
		_, _ = d.Write(scratch[:9])
	case types.Decimal:
		scratch[0] = byte(types.T_decimal)
		_, _ = d.Write(scratch[:1])
		_, _ = d.WriteString(x.String())
	case string:
		scratch[0] = byte(types.T_varchar)
		_, _ = d.Write(scratch[:1])
		_, _ = d.WriteString(x)
	case map[string]any:
		scratch[0] = byte(types.T_object)
		_, _ = d.Write(scratch[:1])
		for _, k := range types.SortedKeys(x) {
			_, _ = d.WriteString(k)
			writeHashValue(d, x[k], scratch)
		}
	default:
		_, _ = d.WriteString(types.TypeOf(v).String())
	}
}

// EstimateWidth approximates the serialized size of a row in bytes.
func EstimateWidth(row Row) int64 {
	var n int64
	for _, v := range row {
		n += estimateValue(v)
	}
	return n
}

func estimateValue(v any) int64 {
	switch x := v.(type) {
	case nil:
		return nullWidth
	case bool, int64, float64:
		return fixedWidth
	case types.Decimal:
		return int64(len(x.String())) + 2
	case string:
		return int64(len(x)) + 2
	case map[string]any:
		n := int64(2)
		for k, e := range x {
			n += int64(len(k)) + 2 + estimateValue(e)
		}
		return n
	default:
		return objectWidth
	}
}
