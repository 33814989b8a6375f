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

	"github.com/cockroachdb/apd/v3"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
)

// Decimal is an arbitrary precision decimal value. It is passed by value;
// the arithmetic helpers never mutate their operands.
type Decimal struct {
	d apd.Decimal
}

// DecimalContext is used by all decimal arithmetic.
var DecimalContext = apd.BaseContext.WithPrecision(38)

func DecimalZero() Decimal {
	return Decimal{}
}

func DecimalFromInt64(v int64) Decimal {
	var r Decimal
	r.d.SetInt64(v)
	return r
}

func DecimalFromFloat64(v float64) (Decimal, error) {
	var r Decimal
	if _, err := r.d.SetFloat64(v); err != nil {
		return r, moerr.NewInvalidArg(context.Background(), "decimal", v)
	}
	return r, nil
}

func ParseDecimal(s string) (Decimal, error) {
	var r Decimal
	if _, _, err := r.d.SetString(s); err != nil {
		return r, moerr.NewInvalidArg(context.Background(), "decimal", s)
	}
	return r, nil
}

func MustParseDecimal(s string) Decimal {
	r, err := ParseDecimal(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (x Decimal) String() string {
	return x.d.String()
}

func (x Decimal) IsZero() bool {
	return x.d.IsZero()
}

func (x Decimal) Float64() (float64, error) {
	return x.d.Float64()
}

func (x Decimal) Cmp(y Decimal) int {
	return x.d.Cmp(&y.d)
}

func (x Decimal) Add(y Decimal) (Decimal, error) {
	var r Decimal
	_, err := DecimalContext.Add(&r.d, &x.d, &y.d)
	return r, convertDecimalError(err)
}

func (x Decimal) Sub(y Decimal) (Decimal, error) {
	var r Decimal
	_, err := DecimalContext.Sub(&r.d, &x.d, &y.d)
	return r, convertDecimalError(err)
}

func (x Decimal) Mul(y Decimal) (Decimal, error) {
	var r Decimal
	_, err := DecimalContext.Mul(&r.d, &x.d, &y.d)
	return r, convertDecimalError(err)
}

func (x Decimal) Quo(y Decimal) (Decimal, error) {
	if y.IsZero() {
		return Decimal{}, moerr.NewDivByZero(context.Background())
	}
	var r Decimal
	_, err := DecimalContext.Quo(&r.d, &x.d, &y.d)
	return r, convertDecimalError(err)
}

func (x Decimal) Neg() Decimal {
	var r Decimal
	r.d.Neg(&x.d)
	return r
}

func convertDecimalError(err error) error {
	if err == nil {
		return nil
	}
	return moerr.NewOutOfRange(context.Background(), "decimal", "%v", err)
}
