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

package plan

import (
	"context"
	"math"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/container/types"
)

// arith applies op to two non-NULL numbers. int64 op int64 stays int64,
// anything with a float64 is float64, otherwise the result is DECIMAL.
func arith(ctx context.Context, op ArithOp, l, r any) (any, error) {
	lt, rt := types.TypeOf(l), types.TypeOf(r)
	if !lt.IsNumeric() || !rt.IsNumeric() {
		return nil, moerr.NewEvalTypeMismatch(ctx, "operator %s is not defined for %s and %s", op, lt, rt)
	}
	switch {
	case lt == types.T_int64 && rt == types.T_int64:
		return arithInt64(ctx, op, l.(int64), r.(int64))
	case lt == types.T_float64 || rt == types.T_float64:
		x, err := toFloat64(l)
		if err != nil {
			return nil, err
		}
		y, err := toFloat64(r)
		if err != nil {
			return nil, err
		}
		return arithFloat64(ctx, op, x, y)
	default:
		return arithDecimal(ctx, op, toDecimal(l), toDecimal(r))
	}
}

func arithInt64(ctx context.Context, op ArithOp, x, y int64) (int64, error) {
	switch op {
	case Plus:
		s := x + y
		if (x > 0 && y > 0 && s < 0) || (x < 0 && y < 0 && s >= 0) {
			return 0, moerr.NewOutOfRange(ctx, "bigint", "%d + %d", x, y)
		}
		return s, nil
	case Minus:
		s := x - y
		if (x >= 0 && y < 0 && s < 0) || (x < 0 && y > 0 && s >= 0) {
			return 0, moerr.NewOutOfRange(ctx, "bigint", "%d - %d", x, y)
		}
		return s, nil
	case Multiply:
		if x == 0 || y == 0 {
			return 0, nil
		}
		p := x * y
		if p/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
			return 0, moerr.NewOutOfRange(ctx, "bigint", "%d * %d", x, y)
		}
		return p, nil
	default:
		if y == 0 {
			return 0, moerr.NewDivByZero(ctx)
		}
		if x == math.MinInt64 && y == -1 {
			return 0, moerr.NewOutOfRange(ctx, "bigint", "%d / %d", x, y)
		}
		return x / y, nil
	}
}

func arithFloat64(ctx context.Context, op ArithOp, x, y float64) (float64, error) {
	switch op {
	case Plus:
		return x + y, nil
	case Minus:
		return x - y, nil
	case Multiply:
		return x * y, nil
	default:
		if y == 0 {
			return 0, moerr.NewDivByZero(ctx)
		}
		return x / y, nil
	}
}

func arithDecimal(_ context.Context, op ArithOp, x, y types.Decimal) (types.Decimal, error) {
	switch op {
	case Plus:
		return x.Add(y)
	case Minus:
		return x.Sub(y)
	case Multiply:
		return x.Mul(y)
	default:
		return x.Quo(y)
	}
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case int64:
		return float64(x), nil
	case float64:
		return x, nil
	default:
		return v.(types.Decimal).Float64()
	}
}

func toDecimal(v any) types.Decimal {
	if x, ok := v.(int64); ok {
		return types.DecimalFromInt64(x)
	}
	return v.(types.Decimal)
}
