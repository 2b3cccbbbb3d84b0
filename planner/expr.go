// Package planner builds and optimizes LogicalPlan trees over table
// scans, filters, joins, and aggregates. The executor reads column
// references by position (PositionHint), not by name; no planner pass
// converts a column name into a position. The plan-node
// shapes are rebuilt against this engine's Expr/LogicalPlan types rather
// than a parsed SQL AST, since plans here are constructed programmatically.
package planner

import "github.com/kasuganosora/cynos/value"

// ExprKind tags an Expr variant.
type ExprKind int

const (
	ExprColumn ExprKind = iota
	ExprLiteral
	ExprBinaryOp
	ExprUnaryOp
	ExprAggFunc
)

// BinOp enumerates the binary operators BinaryOp expressions support.
type BinOp int

const (
	OpAnd BinOp = iota
	OpOr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpJsonContains // a @> b, for JSONB containment predicates
)

// UnOp enumerates the unary operators UnaryOp expressions support.
type UnOp int

const (
	OpNot UnOp = iota
	OpNeg
)

// AggFunc mirrors dataflow.AggFunc for logical-plan aggregate
// expressions, kept as its own enum so planner has no dataflow import.
type AggFunc int

const (
	AggCount AggFunc = iota
	AggSum
	AggAvg
	AggMin
	AggMax
)

// Expr is a node in a scalar expression tree. Column references carry
// a table hint, a name and a PositionHint; the executor reads only
// PositionHint. Column sets it to -1 and ColumnAt sets it directly. No
// planner pass fills it in from the name, so a Column reference left at
// -1 evaluates to Null; index selection matches columns by Name.
type Expr struct {
	Kind ExprKind

	// ExprColumn
	Table        string
	Name         string
	PositionHint int

	// ExprLiteral
	Literal value.Value

	// ExprBinaryOp / ExprUnaryOp
	Op          BinOp
	UnaryOp     UnOp
	Left, Right *Expr
	Operand     *Expr

	// ExprAggFunc
	Agg    AggFunc
	Arg    *Expr // nil for Count(*)
}

func Column(table, name string) *Expr {
	return &Expr{Kind: ExprColumn, Table: table, Name: name, PositionHint: -1}
}

func ColumnAt(pos int) *Expr {
	return &Expr{Kind: ExprColumn, PositionHint: pos}
}

func Literal(v value.Value) *Expr {
	return &Expr{Kind: ExprLiteral, Literal: v}
}

func Binary(op BinOp, left, right *Expr) *Expr {
	return &Expr{Kind: ExprBinaryOp, Op: op, Left: left, Right: right}
}

func Unary(op UnOp, operand *Expr) *Expr {
	return &Expr{Kind: ExprUnaryOp, UnaryOp: op, Operand: operand}
}

func AggFuncExpr(fn AggFunc, arg *Expr) *Expr {
	return &Expr{Kind: ExprAggFunc, Agg: fn, Arg: arg}
}

// splitAnd flattens a tree of OpAnd binary expressions, nested on
// either side, into its conjuncts, for the AND-predicate-splitting pass.
func splitAnd(e *Expr) []*Expr {
	if e.Kind == ExprBinaryOp && e.Op == OpAnd {
		return append(splitAnd(e.Left), splitAnd(e.Right)...)
	}
	return []*Expr{e}
}

// joinAnd is splitAnd's inverse, used to re-combine the residual
// conjuncts an index-selection pass could not consume.
func joinAnd(exprs []*Expr) *Expr {
	if len(exprs) == 0 {
		return nil
	}
	out := exprs[0]
	for _, e := range exprs[1:] {
		out = Binary(OpAnd, out, e)
	}
	return out
}

// columnEqCross reports whether e is an equality between a column of
// the left input (position < leftWidth) and a column of the right input
// (in either order), returning the left-side position and the
// right-side position relative to the right input.
func columnEqCross(e *Expr, leftWidth int) (leftPos, rightPos int, ok bool) {
	if e.Kind != ExprBinaryOp || e.Op != OpEq {
		return 0, 0, false
	}
	if e.Left.Kind != ExprColumn || e.Right.Kind != ExprColumn {
		return 0, 0, false
	}
	lp, rp := e.Left.PositionHint, e.Right.PositionHint
	if lp < leftWidth && rp >= leftWidth {
		return lp, rp - leftWidth, true
	}
	if rp < leftWidth && lp >= leftWidth {
		return rp, lp - leftWidth, true
	}
	return 0, 0, false
}
