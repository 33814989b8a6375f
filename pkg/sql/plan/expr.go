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
	"strings"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/container/types"
)

// EvalContext is what an expression needs from the running fragment.
type EvalContext interface {
	Context() context.Context
	Arguments() []any
}

// Row is the input of an expression.
type Row interface {
	Get(i int) any
}

type Expr interface {
	Eval(ectx EvalContext, row Row) (any, error)
	String() string
}

const (
	KeyAttribute  = "__key"
	ThisAttribute = "this"
)

// KeyValueRow exposes a map entry to expressions. Column i is the field
// named Fields[i].
type KeyValueRow struct {
	Fields []string
	Key    any
	Value  any
}

func (r *KeyValueRow) Get(i int) any {
	return r.Extract(r.Fields[i])
}

// Extract resolves a field path against the entry. Missing fields and
// paths into scalar values read as NULL.
func (r *KeyValueRow) Extract(path string) any {
	switch {
	case path == KeyAttribute:
		return r.Key
	case path == ThisAttribute:
		return r.Value
	case strings.HasPrefix(path, KeyAttribute+"."):
		return extractPath(r.Key, path[len(KeyAttribute)+1:])
	default:
		return extractPath(r.Value, path)
	}
}

func extractPath(target any, path string) any {
	for _, name := range strings.Split(path, ".") {
		m, ok := target.(map[string]any)
		if !ok {
			return nil
		}
		if target, ok = m[name]; !ok {
			return nil
		}
	}
	return target
}

type ColumnExpr struct {
	Index int
}

func NewColumn(idx int) *ColumnExpr {
	return &ColumnExpr{Index: idx}
}

func (e *ColumnExpr) Eval(_ EvalContext, row Row) (any, error) {
	return row.Get(e.Index), nil
}

func (e *ColumnExpr) String() string {
	return fmt.Sprintf("$%d", e.Index)
}

type ConstantExpr struct {
	Value any
}

func NewConstant(v any) *ConstantExpr {
	return &ConstantExpr{Value: v}
}

func (e *ConstantExpr) Eval(_ EvalContext, _ Row) (any, error) {
	return e.Value, nil
}

func (e *ConstantExpr) String() string {
	return formatValue(e.Value)
}

// ParameterExpr reads a bound argument of the current execution.
type ParameterExpr struct {
	Index int
}

func (e *ParameterExpr) Eval(ectx EvalContext, _ Row) (any, error) {
	args := ectx.Arguments()
	if e.Index < 0 || e.Index >= len(args) {
		return nil, moerr.NewArgumentNotFound(ectx.Context(), e.Index)
	}
	return args[e.Index], nil
}

func (e *ParameterExpr) String() string {
	return fmt.Sprintf("?%d", e.Index)
}

// ExtractorExpr reads a field of the map entry being scanned.
type ExtractorExpr struct {
	Path string
}

func (e *ExtractorExpr) Eval(ectx EvalContext, row Row) (any, error) {
	kv, ok := row.(*KeyValueRow)
	if !ok {
		return nil, moerr.NewEvalTypeMismatch(ectx.Context(), "field %s can only be read from a map entry", e.Path)
	}
	return kv.Extract(e.Path), nil
}

func (e *ExtractorExpr) String() string {
	return e.Path
}

type CompareOp int

const (
	EQ CompareOp = iota
	NE
	LT
	LE
	GT
	GE
)

var compareOpNames = [...]string{EQ: "=", NE: "<>", LT: "<", LE: "<=", GT: ">", GE: ">="}

func (op CompareOp) String() string {
	return compareOpNames[op]
}

type CompareExpr struct {
	Op    CompareOp
	Left  Expr
	Right Expr
}

func NewCompare(op CompareOp, l, r Expr) *CompareExpr {
	return &CompareExpr{Op: op, Left: l, Right: r}
}

func (e *CompareExpr) Eval(ectx EvalContext, row Row) (any, error) {
	l, r, err := evalPair(ectx, row, e.Left, e.Right)
	if err != nil || l == nil || r == nil {
		return nil, err
	}
	lt, rt := types.TypeOf(l), types.TypeOf(r)
	if lt != rt && !(lt.IsNumeric() && rt.IsNumeric()) {
		return nil, moerr.NewEvalTypeMismatch(ectx.Context(), "cannot compare %s with %s", lt, rt)
	}
	c := types.Compare(l, r)
	switch e.Op {
	case EQ:
		return c == 0, nil
	case NE:
		return c != 0, nil
	case LT:
		return c < 0, nil
	case LE:
		return c <= 0, nil
	case GT:
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

func (e *CompareExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}

type LogicOp int

const (
	AND LogicOp = iota
	OR
	NOT
)

var logicOpNames = [...]string{AND: "AND", OR: "OR", NOT: "NOT"}

func (op LogicOp) String() string {
	return logicOpNames[op]
}

// LogicExpr follows three-valued logic: NULL is unknown.
type LogicExpr struct {
	Op   LogicOp
	Args []Expr
}

func NewAnd(args ...Expr) *LogicExpr {
	return &LogicExpr{Op: AND, Args: args}
}

func NewOr(args ...Expr) *LogicExpr {
	return &LogicExpr{Op: OR, Args: args}
}

func NewNot(arg Expr) *LogicExpr {
	return &LogicExpr{Op: NOT, Args: []Expr{arg}}
}

func (e *LogicExpr) Eval(ectx EvalContext, row Row) (any, error) {
	if e.Op == NOT {
		v, err := evalBool(ectx, row, e.Args[0])
		if err != nil || v == nil {
			return nil, err
		}
		return !v.(bool), nil
	}
	// AND stops at false, OR stops at true.
	stop := e.Op == OR
	unknown := false
	for _, arg := range e.Args {
		v, err := evalBool(ectx, row, arg)
		if err != nil {
			return nil, err
		}
		if v == nil {
			unknown = true
			continue
		}
		if v.(bool) == stop {
			return stop, nil
		}
	}
	if unknown {
		return nil, nil
	}
	return !stop, nil
}

func (e *LogicExpr) String() string {
	if e.Op == NOT {
		return fmt.Sprintf("NOT %s", e.Args[0])
	}
	parts := make([]string, len(e.Args))
	for i, arg := range e.Args {
		parts[i] = arg.String()
	}
	return "(" + strings.Join(parts, " "+e.Op.String()+" ") + ")"
}

type IsNullExpr struct {
	Arg Expr
}

func (e *IsNullExpr) Eval(ectx EvalContext, row Row) (any, error) {
	v, err := e.Arg.Eval(ectx, row)
	if err != nil {
		return nil, err
	}
	return v == nil, nil
}

func (e *IsNullExpr) String() string {
	return fmt.Sprintf("%s IS NULL", e.Arg)
}

type ArithOp int

const (
	Plus ArithOp = iota
	Minus
	Multiply
	Divide
)

var arithOpNames = [...]string{Plus: "+", Minus: "-", Multiply: "*", Divide: "/"}

func (op ArithOp) String() string {
	return arithOpNames[op]
}

type ArithExpr struct {
	Op    ArithOp
	Left  Expr
	Right Expr
}

func NewArith(op ArithOp, l, r Expr) *ArithExpr {
	return &ArithExpr{Op: op, Left: l, Right: r}
}

func (e *ArithExpr) Eval(ectx EvalContext, row Row) (any, error) {
	l, r, err := evalPair(ectx, row, e.Left, e.Right)
	if err != nil || l == nil || r == nil {
		return nil, err
	}
	return arith(ectx.Context(), e.Op, l, r)
}

func (e *ArithExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}

// EvalPredicate reports whether cond holds for row. NULL does not hold.
func EvalPredicate(ectx EvalContext, row Row, cond Expr) (bool, error) {
	v, err := evalBool(ectx, row, cond)
	if err != nil || v == nil {
		return false, err
	}
	return v.(bool), nil
}

func evalBool(ectx EvalContext, row Row, e Expr) (any, error) {
	v, err := e.Eval(ectx, row)
	if err != nil || v == nil {
		return nil, err
	}
	if _, ok := v.(bool); !ok {
		return nil, moerr.NewEvalTypeMismatch(ectx.Context(), "%s is %s, not BOOLEAN", e, types.TypeOf(v))
	}
	return v, nil
}

func evalPair(ectx EvalContext, row Row, le, re Expr) (any, any, error) {
	l, err := le.Eval(ectx, row)
	if err != nil {
		return nil, nil, err
	}
	r, err := re.Eval(ectx, row)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + x + "'"
	default:
		return fmt.Sprintf("%v", x)
	}
}
