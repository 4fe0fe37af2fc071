// Package oracle implements the Oracle dialect compiler: positional "?"
// placeholders (translated by the driver to bind variables),
// double-quoted identifiers, SYS_OP_MAP_NONNULL-based null-safe equality,
// trailing FOR UPDATE, and OFFSET/FETCH FIRST paging. Grounded on
// ansilo-connectors/jdbc-oracle/src/query_compiler.rs.
package oracle

import (
	"fmt"

	"github.com/sqilrun/sqil/compiler/dialect"
	"github.com/sqilrun/sqil/sqil"
)

func New() *dialect.Compiler {
	return dialect.NewCompiler(dialect.Dialect{
		Name:       "oracle",
		ParamStyle: dialect.ParamPositional,
		Paging:     dialect.PagingOracle,
		RowLock:    dialect.RowLockTrailingForUpdate,
		QuoteIdent: quoteIdent,
		BinaryOp:   binaryOp,
		Function:   function,
		Count:      "count(*)",
		Exponent:   "POWER",
		StringAgg: func(expr, sep string) string {
			return fmt.Sprintf("LISTAGG(%s, %s) WITHIN GROUP (ORDER BY NULL)", expr, sep)
		},
		SupportsMultiRowValues: true,
		SupportsDateTimeWithTZ: true,
		AliasAs:                "", // Oracle: bare "table alias", no AS keyword
	})
}

func quoteIdent(name string) (string, error) {
	for _, r := range name {
		if r == '"' || r == 0 {
			return "", &dialect.InvalidIdentifierError{Name: name}
		}
	}
	return `"` + name + `"`, nil
}

// binaryOp renders NullSafeEqual as Oracle's true null-safe equality:
// SYS_OP_MAP_NONNULL maps both operands (NULL included) onto a
// non-null-preserving encoding before comparing, the same polarity as
// the PostgreSQL/MSSQL "IS NOT DISTINCT FROM" rendering (see DESIGN.md).
func binaryOp(op sqil.BinaryOpType) (string, error) {
	if op == sqil.NullSafeEqual {
		return "SYS_OP_MAP_NONNULL(%s) = SYS_OP_MAP_NONNULL(%s)", nil
	}
	if op == sqil.Regexp {
		return "", &dialect.UnsupportedError{Dialect: "oracle", What: "Regexp (use REGEXP_LIKE via FunctionCall instead)"}
	}
	if op == sqil.JsonExtract {
		return "", &dialect.UnsupportedError{Dialect: "oracle", What: "JsonExtract"}
	}
	if sym, ok := dialect.StandardBinaryOp(op); ok {
		return sym, nil
	}
	return "", &dialect.UnsupportedError{Dialect: "oracle", What: "binary operator"}
}

func function(f sqil.FunctionKind) (string, error) {
	switch f {
	case sqil.FuncLength:
		return "LENGTH", nil
	case sqil.FuncAbs:
		return "ABS", nil
	case sqil.FuncUppercase:
		return "UPPER", nil
	case sqil.FuncLowercase:
		return "LOWER", nil
	case sqil.FuncUuid:
		return "SYS_GUID", nil
	default:
		return "", &dialect.UnsupportedError{Dialect: "oracle", What: "function"}
	}
}
