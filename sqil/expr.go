package sqil

import "github.com/sqilrun/sqil/value"

// ExprKind discriminates the variants of Expr.
type ExprKind uint8

const (
	ExprAttribute ExprKind = iota
	ExprConstant
	ExprParameter
	ExprUnaryOp
	ExprBinaryOp
	ExprCast
	ExprFunctionCall
	ExprAggregateCall
)

type UnaryOpType uint8

const (
	LogicalNot UnaryOpType = iota
	Negate
	BitwiseNot
	IsNull
	IsNotNull
)

type BinaryOpType uint8

const (
	Add BinaryOpType = iota
	Subtract
	Multiply
	Divide
	Modulo
	Exponent
	LogicalAnd
	LogicalOr
	BitwiseAnd
	BitwiseOr
	BitwiseXor
	ShiftLeft
	ShiftRight
	Concat
	Regexp
	Equal
	NullSafeEqual
	NotEqual
	Gt
	Ge
	Lt
	Le
	JsonExtract
)

type FunctionKind uint8

const (
	FuncLength FunctionKind = iota
	FuncAbs
	FuncUppercase
	FuncLowercase
	FuncSubstring
	FuncUuid
	FuncCoalesce
)

type AggregateKind uint8

const (
	AggSum AggregateKind = iota
	AggCount
	AggCountDistinct
	AggMax
	AggMin
	AggAverage
	AggStringAgg
)

// FunctionCall is the payload of Expr{Kind: ExprFunctionCall}. Fields are
// populated according to Func: Substring uses String/Start/Length,
// Coalesce uses Args, everything else uses String (or no argument, for
// Uuid()).
type FunctionCall struct {
	Func   FunctionKind
	String *Expr
	Start  *Expr
	Length *Expr
	Args   []Expr
}

// AggregateCall is the payload of Expr{Kind: ExprAggregateCall}.
// StringAgg additionally uses Separator.
type AggregateCall struct {
	Agg       AggregateKind
	Arg       Expr
	Separator *Expr
}

// Expr is the SQIL expression sum. Exactly the fields relevant to Kind
// are populated; helper constructors below enforce that discipline.
type Expr struct {
	Kind ExprKind

	Attribute AttributeId
	Constant  value.Value

	ParamId   uint32
	ParamType value.Type

	UnaryOp  UnaryOpType
	Operand  *Expr

	BinaryOp BinaryOpType
	Left     *Expr
	Right    *Expr

	CastType value.Type
	CastExpr *Expr

	Function  *FunctionCall
	Aggregate *AggregateCall
}

func AttributeExpr(attr AttributeId) Expr { return Expr{Kind: ExprAttribute, Attribute: attr} }
func ConstantExpr(v value.Value) Expr     { return Expr{Kind: ExprConstant, Constant: v} }
func ParameterExpr(id uint32, t value.Type) Expr {
	return Expr{Kind: ExprParameter, ParamId: id, ParamType: t}
}
func UnaryExpr(op UnaryOpType, operand Expr) Expr {
	return Expr{Kind: ExprUnaryOp, UnaryOp: op, Operand: &operand}
}
func BinaryExpr(left Expr, op BinaryOpType, right Expr) Expr {
	return Expr{Kind: ExprBinaryOp, BinaryOp: op, Left: &left, Right: &right}
}
func CastExpr(t value.Type, e Expr) Expr {
	return Expr{Kind: ExprCast, CastType: t, CastExpr: &e}
}
func FunctionCallExpr(f FunctionCall) Expr { return Expr{Kind: ExprFunctionCall, Function: &f} }
func AggregateCallExpr(a AggregateCall) Expr {
	return Expr{Kind: ExprAggregateCall, Aggregate: &a}
}

func SubstringCall(s, start, length Expr) FunctionCall {
	return FunctionCall{Func: FuncSubstring, String: &s, Start: &start, Length: &length}
}

func CoalesceCall(args ...Expr) FunctionCall {
	return FunctionCall{Func: FuncCoalesce, Args: args}
}

func UnaryFunctionCall(kind FunctionKind, s Expr) FunctionCall {
	return FunctionCall{Func: kind, String: &s}
}

func StringAggCall(arg, separator Expr) AggregateCall {
	return AggregateCall{Agg: AggStringAgg, Arg: arg, Separator: &separator}
}

func SimpleAggregateCall(kind AggregateKind, arg Expr) AggregateCall {
	return AggregateCall{Agg: kind, Arg: arg}
}

// Children returns the immediate sub-expressions of e, in evaluation
// order, for use by Walk.
func (e Expr) Children() []Expr {
	switch e.Kind {
	case ExprUnaryOp:
		return []Expr{*e.Operand}
	case ExprBinaryOp:
		return []Expr{*e.Left, *e.Right}
	case ExprCast:
		return []Expr{*e.CastExpr}
	case ExprFunctionCall:
		f := e.Function
		switch f.Func {
		case FuncSubstring:
			return []Expr{*f.String, *f.Start, *f.Length}
		case FuncCoalesce:
			return f.Args
		case FuncUuid:
			return nil
		default:
			if f.String != nil {
				return []Expr{*f.String}
			}
			return nil
		}
	case ExprAggregateCall:
		a := e.Aggregate
		if a.Separator != nil {
			return []Expr{a.Arg, *a.Separator}
		}
		return []Expr{a.Arg}
	default:
		return nil
	}
}
