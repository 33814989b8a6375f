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

package types

import (
	"context"
	"fmt"
	"sort"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
)

// T is the id of a scalar type carried by rows.
type T uint8

const (
	T_any T = iota
	T_bool
	T_int64
	T_float64
	T_decimal
	T_varchar
	T_object
)

var oidNames = [...]string{
	T_any:     "ANY",
	T_bool:    "BOOLEAN",
	T_int64:   "BIGINT",
	T_float64: "DOUBLE",
	T_decimal: "DECIMAL",
	T_varchar: "VARCHAR",
	T_object:  "OBJECT",
}

// Type describes a column.
type Type struct {
	Oid T
}

func (t T) ToType() Type {
	return Type{Oid: t}
}

func (t T) String() string {
	if int(t) < len(oidNames) {
		return oidNames[t]
	}
	return fmt.Sprintf("T(%d)", uint8(t))
}

func (t T) OidString() string {
	return "T_" + t.String()
}

func (t Type) String() string {
	return t.Oid.String()
}

func (t T) IsNumeric() bool {
	return t == T_int64 || t == T_float64 || t == T_decimal
}

// TypeOf returns the type id of a normalized value. nil is T_any.
func TypeOf(v any) T {
	switch v.(type) {
	case nil:
		return T_any
	case bool:
		return T_bool
	case int64:
		return T_int64
	case float64:
		return T_float64
	case Decimal:
		return T_decimal
	case string:
		return T_varchar
	case map[string]any:
		return T_object
	default:
		return T_any
	}
}

// Normalize widens go scalars to the value set rows carry: nil, bool,
// int64, float64, Decimal, string and map[string]any.
func Normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, int64, float64, Decimal, string:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case []byte:
		return string(x), nil
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			ne, err := Normalize(e)
			if err != nil {
				return nil, err
			}
			m[k] = ne
		}
		return m, nil
	default:
		return nil, moerr.NewEvalTypeMismatch(context.Background(), "unsupported value %v of type %T", v, v)
	}
}

// SortedKeys returns the field names of an object value in ascending order.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
