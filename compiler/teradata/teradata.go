// Package teradata implements the Teradata dialect compiler: positional
// "?" placeholders, double-quoted identifiers, a leading
// "LOCKING ROW FOR WRITE" row-lock prefix, "SELECT TOP m" paging with no
// OFFSET support, single-row-only INSERT (BulkInsert compiles to a
// semicolon-separated batch), and no StringAgg.
package teradata

import (
	"github.com/sqilrun/sqil/compiler/dialect"
	"github.com/sqilrun/sqil/sqil"
)

func New() *dialect.Compiler {
	return dialect.NewCompiler(dialect.Dialect{
		Name:                   "teradata",
		ParamStyle:             dialect.ParamPositional,
		Paging:                 dialect.PagingTeradataTop,
		RowLock:                dialect.RowLockLeadingPrefix,
		QuoteIdent:             quoteIdent,
		BinaryOp:               binaryOp,
		Function:               function,
		Count:                  "count(*)",
		Exponent:               "POWER",
		StringAgg:              nil,
		SupportsMultiRowValues: false,
		SupportsDateTimeWithTZ: true,
		AliasAs:                "AS",
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

func binaryOp(op sqil.BinaryOpType) (string, error) {
	if op == sqil.NullSafeEqual {
		return "", &dialect.UnsupportedError{Dialect: "teradata", What: "NullSafeEqual"}
	}
	if op == sqil.Regexp {
		return "", &dialect.UnsupportedError{Dialect: "teradata", What: "Regexp"}
	}
	if op == sqil.JsonExtract {
		return "", &dialect.UnsupportedError{Dialect: "teradata", What: "JsonExtract"}
	}
	if sym, ok := dialect.StandardBinaryOp(op); ok {
		return sym, nil
	}
	return "", &dialect.UnsupportedError{Dialect: "teradata", What: "binary operator"}
}

func function(f sqil.FunctionKind) (string, error) {
	switch f {
	case sqil.FuncLength:
		return "CHARACTER_LENGTH", nil
	case sqil.FuncAbs:
		return "ABS", nil
	case sqil.FuncUppercase:
		return "UPPER", nil
	case sqil.FuncLowercase:
		return "LOWER", nil
	default:
		return "", &dialect.UnsupportedError{Dialect: "teradata", What: "function"}
	}
}
