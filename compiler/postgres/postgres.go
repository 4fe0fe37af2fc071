// Package postgres implements the PostgreSQL dialect compiler: numbered
// "$N" placeholders, double-quoted identifiers with doubled-double-quote
// escaping, "IS NOT DISTINCT FROM" for NullSafeEqual, and standard
// LIMIT/OFFSET paging.
package postgres

import (
	"fmt"

	"github.com/sqilrun/sqil/compiler/dialect"
	"github.com/sqilrun/sqil/sqil"
)

func New() *dialect.Compiler {
	return dialect.NewCompiler(dialect.Dialect{
		Name:                   "postgres",
		ParamStyle:             dialect.ParamNumbered,
		Paging:                 dialect.PagingLimitOffset,
		RowLock:                dialect.RowLockTrailingForUpdate,
		QuoteIdent:             quoteIdent,
		BinaryOp:               binaryOp,
		Function:               function,
		Count:                  "count(*)",
		Exponent:               "pow",
		StringAgg:              func(expr, sep string) string { return fmt.Sprintf("string_agg(%s, %s)", expr, sep) },
		SupportsMultiRowValues: true,
		SupportsDateTimeWithTZ: true,
		AliasAs:                "AS",
	})
}

func quoteIdent(name string) (string, error) {
	for _, r := range name {
		if r == 0 {
			return "", &dialect.InvalidIdentifierError{Name: name}
		}
	}
	escaped := ""
	for _, r := range name {
		if r == '"' {
			escaped += `""`
		} else {
			escaped += string(r)
		}
	}
	return `"` + escaped + `"`, nil
}

func binaryOp(op sqil.BinaryOpType) (string, error) {
	if op == sqil.NullSafeEqual {
		return "%s IS NOT DISTINCT FROM %s", nil
	}
	if op == sqil.Regexp {
		return "~", nil
	}
	if op == sqil.JsonExtract {
		return "->", nil
	}
	if sym, ok := dialect.StandardBinaryOp(op); ok {
		return sym, nil
	}
	return "", &dialect.UnsupportedError{Dialect: "postgres", What: "binary operator"}
}

func function(f sqil.FunctionKind) (string, error) {
	switch f {
	case sqil.FuncLength:
		return "length", nil
	case sqil.FuncAbs:
		return "abs", nil
	case sqil.FuncUppercase:
		return "upper", nil
	case sqil.FuncLowercase:
		return "lower", nil
	case sqil.FuncUuid:
		return "gen_random_uuid", nil
	default:
		return "", &dialect.UnsupportedError{Dialect: "postgres", What: "function"}
	}
}
