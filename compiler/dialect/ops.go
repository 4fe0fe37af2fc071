package dialect

import "github.com/sqilrun/sqil/sqil"

// StandardBinaryOp renders the SQL fragment shared by every dialect for
// a BinaryOpType, excluding Exponent (handled centrally in builder.go)
// and NullSafeEqual (dialect-specific syntax: every dialect that supports
// it renders true null-safe equality -- "<=>" for MySQL,
// SYS_OP_MAP_NONNULL for Oracle, "IS NOT DISTINCT FROM" for PostgreSQL
// and MSSQL; Teradata rejects it).
func StandardBinaryOp(op sqil.BinaryOpType) (string, bool) {
	switch op {
	case sqil.Add:
		return "+", true
	case sqil.Subtract:
		return "-", true
	case sqil.Multiply:
		return "*", true
	case sqil.Divide:
		return "/", true
	case sqil.Modulo:
		return "%", true
	case sqil.LogicalAnd:
		return "AND", true
	case sqil.LogicalOr:
		return "OR", true
	case sqil.BitwiseAnd:
		return "&", true
	case sqil.BitwiseOr:
		return "|", true
	case sqil.BitwiseXor:
		return "^", true
	case sqil.ShiftLeft:
		return "<<", true
	case sqil.ShiftRight:
		return ">>", true
	case sqil.Concat:
		return "||", true
	case sqil.Equal:
		return "=", true
	case sqil.NotEqual:
		return "<>", true
	case sqil.Gt:
		return ">", true
	case sqil.Ge:
		return ">=", true
	case sqil.Lt:
		return "<", true
	case sqil.Le:
		return "<=", true
	default:
		return "", false
	}
}
