package exec

import (
	"github.com/kasuganosora/cynos/planner"
	"github.com/kasuganosora/cynos/value"
)

// Eval evaluates a scalar expression against a combined row, resolving
// every Column by its PositionHint. A malformed or
// out-of-range expression evaluates to Null rather than panicking, so a
// stale plan degrades to "no match" instead of crashing the runner.
func Eval(e *planner.Expr, row *value.Row) value.Value {
	if e == nil {
		return value.Null()
	}
	switch e.Kind {
	case planner.ExprColumn:
		if e.PositionHint < 0 || e.PositionHint >= len(row.Values) {
			return value.Null()
		}
		return row.Get(e.PositionHint)
	case planner.ExprLiteral:
		return e.Literal
	case planner.ExprUnaryOp:
		return evalUnary(e, row)
	case planner.ExprBinaryOp:
		return evalBinary(e, row)
	case planner.ExprAggFunc:
		// Aggregate expressions are only meaningful as the output
		// column list of an Aggregate operator, never evaluated
		// directly against a row.
		return value.Null()
	}
	return value.Null()
}

func evalUnary(e *planner.Expr, row *value.Row) value.Value {
	v := Eval(e.Operand, row)
	switch e.UnaryOp {
	case planner.OpNot:
		if v.IsNull() {
			return value.Null()
		}
		return value.Bool(!v.AsBool())
	case planner.OpNeg:
		switch v.DataType() {
		case value.TypeInt32:
			return value.Int32(-v.AsInt32())
		case value.TypeInt64:
			return value.Int64(-v.AsInt64())
		case value.TypeFloat64:
			return value.Float64(-v.AsFloat64())
		}
	}
	return value.Null()
}

func evalBinary(e *planner.Expr, row *value.Row) value.Value {
	switch e.Op {
	case planner.OpAnd:
		l, r := Eval(e.Left, row), Eval(e.Right, row)
		return logicalAnd(l, r)
	case planner.OpOr:
		l, r := Eval(e.Left, row), Eval(e.Right, row)
		return logicalOr(l, r)
	}
	l, r := Eval(e.Left, row), Eval(e.Right, row)
	switch e.Op {
	case planner.OpEq:
		return compareBool(l, r, func(c int) bool { return c == 0 })
	case planner.OpNe:
		return compareBool(l, r, func(c int) bool { return c != 0 })
	case planner.OpLt:
		return compareBool(l, r, func(c int) bool { return c < 0 })
	case planner.OpLe:
		return compareBool(l, r, func(c int) bool { return c <= 0 })
	case planner.OpGt:
		return compareBool(l, r, func(c int) bool { return c > 0 })
	case planner.OpGe:
		return compareBool(l, r, func(c int) bool { return c >= 0 })
	case planner.OpAdd, planner.OpSub, planner.OpMul, planner.OpDiv:
		return arith(e.Op, l, r)
	case planner.OpJsonContains:
		return value.Bool(jsonContains(l, r))
	}
	return value.Null()
}

// logicalAnd/logicalOr implement SQL three-valued logic: Null propagates
// unless short-circuited by a deciding operand (false for AND, true for
// OR).
func logicalAnd(l, r value.Value) value.Value {
	if !l.IsNull() && !l.AsBool() {
		return value.Bool(false)
	}
	if !r.IsNull() && !r.AsBool() {
		return value.Bool(false)
	}
	if l.IsNull() || r.IsNull() {
		return value.Null()
	}
	return value.Bool(true)
}

func logicalOr(l, r value.Value) value.Value {
	if !l.IsNull() && l.AsBool() {
		return value.Bool(true)
	}
	if !r.IsNull() && r.AsBool() {
		return value.Bool(true)
	}
	if l.IsNull() || r.IsNull() {
		return value.Null()
	}
	return value.Bool(false)
}

func compareBool(l, r value.Value, pred func(int) bool) value.Value {
	if l.IsNull() || r.IsNull() {
		return value.Null()
	}
	return value.Bool(pred(value.Compare(l, r)))
}

func arith(op planner.BinOp, l, r value.Value) value.Value {
	if l.IsNull() || r.IsNull() {
		return value.Null()
	}
	lf, rf := numericOf(l), numericOf(r)
	var out float64
	switch op {
	case planner.OpAdd:
		out = lf + rf
	case planner.OpSub:
		out = lf - rf
	case planner.OpMul:
		out = lf * rf
	case planner.OpDiv:
		if rf == 0 {
			return value.Null()
		}
		out = lf / rf
	}
	if op != planner.OpDiv && l.DataType() == value.TypeInt64 && r.DataType() == value.TypeInt64 {
		return value.Int64(int64(out))
	}
	return value.Float64(out)
}

func numericOf(v value.Value) float64 {
	switch v.DataType() {
	case value.TypeInt32:
		return float64(v.AsInt32())
	case value.TypeInt64, value.TypeDateTime:
		return float64(v.AsInt64())
	case value.TypeFloat64:
		return v.AsFloat64()
	}
	return 0
}

// jsonContains reports whether container (a Jsonb value) structurally
// contains probe. Delegated to the jsonb package's Value tree via the
// value wrapper's byte encoding.
func jsonContains(container, probe value.Value) bool {
	cv, err1 := jsonbFromValue(container)
	pv, err2 := jsonbFromValue(probe)
	if err1 != nil || err2 != nil {
		return false
	}
	return jsonbContains(cv, pv)
}
