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
	"fmt"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/container/types"
)

type AggregateKind int

const (
	AggSum AggregateKind = iota
	AggCount
	AggMin
	AggMax
	AggAvg
)

var aggregateNames = [...]string{
	AggSum:   "SUM",
	AggCount: "COUNT",
	AggMin:   "MIN",
	AggMax:   "MAX",
	AggAvg:   "AVG",
}

func (k AggregateKind) String() string {
	if int(k) < len(aggregateNames) {
		return aggregateNames[k]
	}
	return fmt.Sprintf("AGG(%d)", int(k))
}

// AggregateCall is an aggregate as the optimizer describes it. Arg is the
// input column, or -1 for COUNT(*).
type AggregateCall struct {
	Kind     AggregateKind
	Arg      int
	Distinct bool
	Name     string
}

func (c AggregateCall) ResultType(input []Field) types.T {
	switch c.Kind {
	case AggCount:
		return types.T_int64
	default:
		if c.Arg < 0 || c.Arg >= len(input) {
			return types.T_any
		}
		return sumType(input[c.Arg].Type)
	}
}

func sumType(in types.T) types.T {
	switch in {
	case types.T_float64:
		return types.T_float64
	case types.T_decimal:
		return types.T_decimal
	default:
		return types.T_int64
	}
}

// Aggregate is a resolved aggregate call attached to a CollocatedAggregate
// node. It creates one accumulator per group.
type Aggregate struct {
	Kind     AggregateKind
	Arg      *ColumnExpr
	Distinct bool
	// Type is the result type of SUM.
	Type types.T
}

// ConvertAggregateCall resolves an aggregate call. Only SUM and COUNT can
// run; anything else fails while the plan is created.
func ConvertAggregateCall(ctx context.Context, call AggregateCall, input []Field) (*Aggregate, error) {
	agg := &Aggregate{Kind: call.Kind, Distinct: call.Distinct}
	if call.Arg >= 0 {
		if call.Arg >= len(input) {
			return nil, moerr.NewInvalidInput(ctx, "aggregate argument $%d out of range", call.Arg)
		}
		agg.Arg = NewColumn(call.Arg)
	}
	switch call.Kind {
	case AggSum:
		if agg.Arg == nil {
			return nil, moerr.NewInvalidInput(ctx, "SUM needs an argument")
		}
		t := input[call.Arg].Type
		if t != types.T_any && !t.IsNumeric() {
			return nil, moerr.NewNotSupported(ctx, "SUM over %s", t)
		}
		agg.Type = sumType(t)
	case AggCount:
		agg.Type = types.T_int64
	default:
		return nil, moerr.NewUnsupportedAggregate(ctx, call.Kind.String())
	}
	return agg, nil
}

func (a *Aggregate) String() string {
	arg := "*"
	if a.Arg != nil {
		arg = a.Arg.String()
	}
	if a.Distinct {
		arg = "DISTINCT " + arg
	}
	return fmt.Sprintf("%s(%s)", a.Kind, arg)
}

// NewAccumulator returns a reset accumulator.
func (a *Aggregate) NewAccumulator() Accumulator {
	var acc Accumulator
	switch a.Kind {
	case AggSum:
		acc = &sumAccumulator{typ: a.Type}
	default:
		acc = &countAccumulator{star: a.Arg == nil}
	}
	if a.Distinct {
		acc = &distinctAccumulator{inner: acc}
	}
	acc.Reset()
	return acc
}

// Accumulator folds the values of one group.
type Accumulator interface {
	Collect(ctx context.Context, v any) error
	Reduce() any
	Reset()
}

// sumAccumulator never reduces to NULL: an empty group sums to the zero
// of the result type.
type sumAccumulator struct {
	typ types.T
	i   int64
	f   float64
	d   types.Decimal
}

func (s *sumAccumulator) Reset() {
	s.i, s.f, s.d = 0, 0, types.DecimalZero()
}

func (s *sumAccumulator) Collect(ctx context.Context, v any) error {
	if v == nil {
		return nil
	}
	var err error
	switch s.typ {
	case types.T_int64:
		x, ok := v.(int64)
		if !ok {
			return moerr.NewEvalTypeMismatch(ctx, "SUM(BIGINT) got %s", types.TypeOf(v))
		}
		s.i, err = arithInt64(ctx, Plus, s.i, x)
	case types.T_float64:
		if !types.TypeOf(v).IsNumeric() {
			return moerr.NewEvalTypeMismatch(ctx, "SUM(DOUBLE) got %s", types.TypeOf(v))
		}
		var x float64
		if x, err = toFloat64(v); err == nil {
			s.f += x
		}
	default:
		switch x := v.(type) {
		case int64:
			s.d, err = s.d.Add(types.DecimalFromInt64(x))
		case types.Decimal:
			s.d, err = s.d.Add(x)
		default:
			return moerr.NewEvalTypeMismatch(ctx, "SUM(DECIMAL) got %s", types.TypeOf(v))
		}
	}
	return err
}

func (s *sumAccumulator) Reduce() any {
	switch s.typ {
	case types.T_int64:
		return s.i
	case types.T_float64:
		return s.f
	default:
		return s.d
	}
}

type countAccumulator struct {
	star bool
	n    int64
}

func (c *countAccumulator) Reset() {
	c.n = 0
}

func (c *countAccumulator) Collect(_ context.Context, v any) error {
	if v != nil || c.star {
		c.n++
	}
	return nil
}

func (c *countAccumulator) Reduce() any {
	return c.n
}

// distinctAccumulator forwards each distinct value once.
type distinctAccumulator struct {
	inner Accumulator
	seen  map[uint64][]any
}

func (d *distinctAccumulator) Reset() {
	d.inner.Reset()
	d.seen = make(map[uint64][]any)
}

func (d *distinctAccumulator) Collect(ctx context.Context, v any) error {
	if v == nil {
		return d.inner.Collect(ctx, v)
	}
	h := batch.HashValue(v)
	for _, s := range d.seen[h] {
		if types.Compare(s, v) == 0 {
			return nil
		}
	}
	d.seen[h] = append(d.seen[h], v)
	return d.inner.Collect(ctx, v)
}

func (d *distinctAccumulator) Reduce() any {
	return d.inner.Reduce()
}
