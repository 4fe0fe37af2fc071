// Package planner implements the pushdown planner (spec.md §4.7): the side
// that decides, clause by clause, whether a fragment of an incoming host
// query can be offered to a connector over the C6 protocol or must be
// evaluated locally.
//
// The host side of a real pushdown planner (PostgreSQL's FDW planner
// hooks, in the system this spec was distilled from) speaks in terms of
// that host's own expression tree (PostgreSQL's Expr/OpExpr/FuncExpr
// nodes, see ansilo-pgx/src/fdw/scan/funcs.rs). That tree is inseparable
// from the host's C API and storage layout, so rather than reach for a
// foreign-to-Go grounding this package defines its own minimal host-side
// IR, HostExpr, that plays the same role: something convert() translates
// into sqil.Expr one node at a time, failing wherever the target dialect
// (here, the protocol-package connector) has no way to represent the
// construct.
package planner

import (
	"fmt"

	"github.com/sqilrun/sqil/sqil"
	"github.com/sqilrun/sqil/value"
)

// HostExprKind discriminates the variants of HostExpr.
type HostExprKind uint8

const (
	HostVar HostExprKind = iota
	HostConst
	HostParam
	HostUnaryOp
	HostBinaryOp
	HostCast
	HostFuncCall
	HostAggCall
)

// HostExpr is the host query's own expression tree, one node of which
// convert() attempts to translate into a sqil.Expr. Exactly the fields
// relevant to Kind are populated, the same discipline sqil.Expr itself
// uses.
type HostExpr struct {
	Kind HostExprKind

	// HostVar: a column reference, named by the host's own relation id
	// (not yet resolved to a query alias) and attribute name.
	Relid string
	Attr  string

	// HostConst: a literal value, already in SQIL's value universe.
	Const value.Value

	// HostParam: a reference to a value the host will supply later,
	// identified by a key stable across replans of the same statement
	// (e.g. a prepared-statement parameter number, or a correlated
	// outer-query column). See ConvertContext.BindParam.
	ParamKey  string
	ParamType value.Type

	UnaryOp sqil.UnaryOpType
	Operand *HostExpr

	BinaryOp    sqil.BinaryOpType
	Left, Right *HostExpr

	CastType value.Type
	CastExpr *HostExpr

	// HostFuncCall: args are positional per Func, matching sqil's own
	// FunctionCall layout (Substring: string/start/length; Coalesce:
	// variadic; everything else: zero or one argument).
	Func     sqil.FunctionKind
	FuncArgs []HostExpr

	// HostAggCall: StringAgg additionally uses AggSeparator.
	Agg          sqil.AggregateKind
	AggArg       *HostExpr
	AggSeparator *HostExpr
}

func HostVarExpr(relid, attr string) HostExpr { return HostExpr{Kind: HostVar, Relid: relid, Attr: attr} }
func HostConstExpr(v value.Value) HostExpr    { return HostExpr{Kind: HostConst, Const: v} }
func HostParamExpr(key string, t value.Type) HostExpr {
	return HostExpr{Kind: HostParam, ParamKey: key, ParamType: t}
}
func HostUnaryExpr(op sqil.UnaryOpType, operand HostExpr) HostExpr {
	return HostExpr{Kind: HostUnaryOp, UnaryOp: op, Operand: &operand}
}
func HostBinaryExpr(left HostExpr, op sqil.BinaryOpType, right HostExpr) HostExpr {
	return HostExpr{Kind: HostBinaryOp, BinaryOp: op, Left: &left, Right: &right}
}
func HostCastExpr(t value.Type, e HostExpr) HostExpr {
	return HostExpr{Kind: HostCast, CastType: t, CastExpr: &e}
}
func HostFuncExpr(f sqil.FunctionKind, args ...HostExpr) HostExpr {
	return HostExpr{Kind: HostFuncCall, Func: f, FuncArgs: args}
}
func HostAggExpr(agg sqil.AggregateKind, arg HostExpr, separator *HostExpr) HostExpr {
	return HostExpr{Kind: HostAggCall, Agg: agg, AggArg: &arg, AggSeparator: separator}
}

// ConvertError reports that a HostExpr has no SQIL representation. It is
// not a system failure: every pushdown guard rule in this package treats
// it as the signal to fall back to local evaluation (or, for the handful
// of places the spec calls out as fatal -- output columns, aggregate
// inputs, row-identity expressions -- to abort the whole plan).
type ConvertError struct {
	Reason string
}

func (e *ConvertError) Error() string { return fmt.Sprintf("planner: %s", e.Reason) }

// ConvertContext carries the per-statement state convert needs: the
// mapping from the host's relation ids to the query aliases SQIL
// AttributeIds use, and the table of host parameters discovered so far,
// assigned ids in first-occurrence order exactly as refexec/protocol
// assign wire parameter ids.
type ConvertContext struct {
	aliases map[string]string

	paramIds   map[string]uint32
	paramTypes map[uint32]value.Type
	paramKeys  []string // index i holds the key for param id uint32(i)
	evaluators map[string]ParamEvaluator
}

// ParamEvaluator produces a host parameter's current value; it is
// re-invoked on every execute/rescan (spec.md §4.7 rule 10), never
// memoized, since the same prepared plan may run with different
// parameter values each time.
type ParamEvaluator func() (value.Value, error)

// NewConvertContext builds a context where aliases maps a host relation
// id to the SQIL alias it was given in this query (sqil.EntitySource.Alias).
func NewConvertContext(aliases map[string]string) *ConvertContext {
	return &ConvertContext{
		aliases:    aliases,
		paramIds:   make(map[string]uint32),
		paramTypes: make(map[uint32]value.Type),
		evaluators: make(map[string]ParamEvaluator),
	}
}

// BindParam registers how to evaluate the host parameter named key. A
// HostParamExpr referencing key may be converted before or after the
// binding is registered; only WriteParams time requires it to be present.
func (c *ConvertContext) BindParam(key string, eval ParamEvaluator) {
	c.evaluators[key] = eval
}

// Evaluator looks up the evaluator bound to key.
func (c *ConvertContext) Evaluator(key string) (ParamEvaluator, bool) {
	e, ok := c.evaluators[key]
	return e, ok
}

// paramId assigns key a stable sqil parameter id, reusing one already
// assigned to the same key.
func (c *ConvertContext) paramId(key string, t value.Type) uint32 {
	if id, ok := c.paramIds[key]; ok {
		return id
	}
	id := uint32(len(c.paramKeys))
	c.paramIds[key] = id
	c.paramTypes[id] = t
	c.paramKeys = append(c.paramKeys, key)
	return id
}

// KeyForId reverses paramId, used when serializing WriteParams in the
// order Prepare declared (protocol.QueryInputStructure.Params).
func (c *ConvertContext) KeyForId(id uint32) (string, bool) {
	if int(id) >= len(c.paramKeys) {
		return "", false
	}
	return c.paramKeys[id], true
}

// convert translates one HostExpr node into its sqil.Expr equivalent,
// failing with *ConvertError the moment it hits a construct the target
// has no representation for (an unmapped relation, in this reference
// planner -- a real dialect would also fail here for operators/functions
// its SQL compiler doesn't implement, see compiler/dialect).
func convert(h HostExpr, ctx *ConvertContext) (sqil.Expr, error) {
	switch h.Kind {
	case HostVar:
		alias, ok := ctx.aliases[h.Relid]
		if !ok {
			return sqil.Expr{}, &ConvertError{Reason: fmt.Sprintf("relation %q is not part of this query", h.Relid)}
		}
		return sqil.AttributeExpr(sqil.AttributeId{EntityAlias: alias, AttributeId: h.Attr}), nil

	case HostConst:
		return sqil.ConstantExpr(h.Const), nil

	case HostParam:
		return sqil.ParameterExpr(ctx.paramId(h.ParamKey, h.ParamType), h.ParamType), nil

	case HostUnaryOp:
		operand, err := convert(*h.Operand, ctx)
		if err != nil {
			return sqil.Expr{}, err
		}
		return sqil.UnaryExpr(h.UnaryOp, operand), nil

	case HostBinaryOp:
		left, err := convert(*h.Left, ctx)
		if err != nil {
			return sqil.Expr{}, err
		}
		right, err := convert(*h.Right, ctx)
		if err != nil {
			return sqil.Expr{}, err
		}
		return sqil.BinaryExpr(left, h.BinaryOp, right), nil

	case HostCast:
		inner, err := convert(*h.CastExpr, ctx)
		if err != nil {
			return sqil.Expr{}, err
		}
		return sqil.CastExpr(h.CastType, inner), nil

	case HostFuncCall:
		return convertFuncCall(h, ctx)

	case HostAggCall:
		arg, err := convert(*h.AggArg, ctx)
		if err != nil {
			return sqil.Expr{}, err
		}
		if h.AggSeparator != nil {
			sep, err := convert(*h.AggSeparator, ctx)
			if err != nil {
				return sqil.Expr{}, err
			}
			return sqil.AggregateCallExpr(sqil.AggregateCall{Agg: h.Agg, Arg: arg, Separator: &sep}), nil
		}
		return sqil.AggregateCallExpr(sqil.AggregateCall{Agg: h.Agg, Arg: arg}), nil

	default:
		return sqil.Expr{}, &ConvertError{Reason: fmt.Sprintf("unknown host expression kind %d", h.Kind)}
	}
}

func convertFuncCall(h HostExpr, ctx *ConvertContext) (sqil.Expr, error) {
	switch h.Func {
	case sqil.FuncSubstring:
		if len(h.FuncArgs) != 3 {
			return sqil.Expr{}, &ConvertError{Reason: "substring requires exactly 3 arguments"}
		}
		s, err := convert(h.FuncArgs[0], ctx)
		if err != nil {
			return sqil.Expr{}, err
		}
		start, err := convert(h.FuncArgs[1], ctx)
		if err != nil {
			return sqil.Expr{}, err
		}
		length, err := convert(h.FuncArgs[2], ctx)
		if err != nil {
			return sqil.Expr{}, err
		}
		return sqil.FunctionCallExpr(sqil.SubstringCall(s, start, length)), nil

	case sqil.FuncCoalesce:
		args := make([]sqil.Expr, len(h.FuncArgs))
		for i, a := range h.FuncArgs {
			e, err := convert(a, ctx)
			if err != nil {
				return sqil.Expr{}, err
			}
			args[i] = e
		}
		return sqil.FunctionCallExpr(sqil.CoalesceCall(args...)), nil

	case sqil.FuncUuid:
		return sqil.FunctionCallExpr(sqil.FunctionCall{Func: sqil.FuncUuid}), nil

	default:
		if len(h.FuncArgs) != 1 {
			return sqil.Expr{}, &ConvertError{Reason: "function requires exactly 1 argument"}
		}
		s, err := convert(h.FuncArgs[0], ctx)
		if err != nil {
			return sqil.Expr{}, err
		}
		return sqil.FunctionCallExpr(sqil.UnaryFunctionCall(h.Func, s)), nil
	}
}

// containsParam reports whether h references any host parameter
// anywhere in its tree -- used by grouping pushdown, which the spec
// requires to be parameter-free (spec.md §4.7 rule 6).
func containsParam(h HostExpr) bool {
	switch h.Kind {
	case HostParam:
		return true
	case HostUnaryOp:
		return containsParam(*h.Operand)
	case HostBinaryOp:
		return containsParam(*h.Left) || containsParam(*h.Right)
	case HostCast:
		return containsParam(*h.CastExpr)
	case HostFuncCall:
		for _, a := range h.FuncArgs {
			if containsParam(a) {
				return true
			}
		}
		return false
	case HostAggCall:
		if containsParam(*h.AggArg) {
			return true
		}
		return h.AggSeparator != nil && containsParam(*h.AggSeparator)
	default:
		return false
	}
}
