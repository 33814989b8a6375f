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
	"math"
	"strings"
)

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int64, float64, Decimal:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}

// Compare orders two normalized values. NULL sorts first, numbers of
// different types are compared by value.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch x := a.(type) {
	case nil:
		return 0
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case string:
		return strings.Compare(x, b.(string))
	case int64:
		switch y := b.(type) {
		case int64:
			return compareInt64(x, y)
		case float64:
			return compareFloat64(float64(x), y)
		case Decimal:
			return DecimalFromInt64(x).Cmp(y)
		}
	case float64:
		switch y := b.(type) {
		case int64:
			return compareFloat64(x, float64(y))
		case float64:
			return compareFloat64(x, y)
		case Decimal:
			return compareFloatDecimal(x, y)
		}
	case Decimal:
		switch y := b.(type) {
		case int64:
			return x.Cmp(DecimalFromInt64(y))
		case float64:
			return -compareFloatDecimal(y, x)
		case Decimal:
			return x.Cmp(y)
		}
	}
	return 0
}

func compareInt64(x, y int64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func compareFloat64(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	case x == y:
		return 0
	}
	// NaN sorts before every number.
	xn, yn := math.IsNaN(x), math.IsNaN(y)
	switch {
	case xn && yn:
		return 0
	case xn:
		return -1
	default:
		return 1
	}
}

func compareFloatDecimal(x float64, y Decimal) int {
	d, err := DecimalFromFloat64(x)
	if err != nil {
		f, _ := y.Float64()
		return compareFloat64(x, f)
	}
	return d.Cmp(y)
}
