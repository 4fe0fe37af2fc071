// Package mssql implements the SQL Server dialect compiler: positional
// "?" placeholders, bracket-quoted identifiers, "IS NOT DISTINCT FROM"
// for NullSafeEqual, WITH (UPDLOCK) row locking, and OFFSET/FETCH paging
// (which requires an ORDER BY -- the compiler synthesizes
// "ORDER BY (SELECT NULL)" when the query has none).
package mssql

import (
	"fmt"

	"github.com/sqilrun/sqil/compiler/dialect"
	"github.com/sqilrun/sqil/sqil"
)

func New() *dialect.Compiler {
	return dialect.NewCompiler(dialect.Dialect{
		Name:                   "mssql",
		ParamStyle:             dialect.ParamPositional,
		Paging:                 dialect.PagingMSSQL,
		RowLock:                dialect.RowLockUpdlockHint,
		QuoteIdent:             quoteIdent,
		BinaryOp:               binaryOp,
		Function:               function,
		Count:                  "COUNT_BIG(*)",
		Exponent:               "POWER",
		StringAgg:              func(expr, sep string) string { return fmt.Sprintf("STRING_AGG(%s, %s)", expr, sep) },
		SupportsMultiRowValues: true,
		SupportsDateTimeWithTZ: true,
		AliasAs:                "AS",
	})
}

func quoteIdent(name string) (string, error) {
	for _, r := range name {
		if r == '[' || r == ']' {
			return "", &dialect.InvalidIdentifierError{Name: name}
		}
	}
	return "[" + name + "]", nil
}

func binaryOp(op sqil.BinaryOpType) (string, error) {
	if op == sqil.NullSafeEqual {
		return "%s IS NOT DISTINCT FROM %s", nil
	}
	if op == sqil.Concat {
		// MSSQL has no "||" operator.
		return "CONCAT(%s, %s)", nil
	}
	if op == sqil.Regexp {
		return "", &dialect.UnsupportedError{Dialect: "mssql", What: "Regexp"}
	}
	if op == sqil.JsonExtract {
		return "", &dialect.UnsupportedError{Dialect: "mssql", What: "JsonExtract"}
	}
	if sym, ok := dialect.StandardBinaryOp(op); ok {
		return sym, nil
	}
	return "", &dialect.UnsupportedError{Dialect: "mssql", What: "binary operator"}
}

func function(f sqil.FunctionKind) (string, error) {
	switch f {
	case sqil.FuncLength:
		return "LEN", nil
	case sqil.FuncAbs:
		return "ABS", nil
	case sqil.FuncUppercase:
		return "UPPER", nil
	case sqil.FuncLowercase:
		return "LOWER", nil
	case sqil.FuncUuid:
		return "NEWID", nil
	default:
		return "", &dialect.UnsupportedError{Dialect: "mssql", What: "function"}
	}
}
