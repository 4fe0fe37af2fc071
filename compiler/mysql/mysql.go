// Package mysql implements the MySQL dialect compiler: positional "?"
// placeholders, backtick-quoted identifiers, the native "<=>" null-safe
// equality operator, and LIMIT/OFFSET paging. DateTimeWithTZ has no
// native MySQL representation and is rejected.
package mysql

import (
	"fmt"

	"github.com/sqilrun/sqil/compiler/dialect"
	"github.com/sqilrun/sqil/sqil"
)

func New() *dialect.Compiler {
	return dialect.NewCompiler(dialect.Dialect{
		Name:                   "mysql",
		ParamStyle:             dialect.ParamPositional,
		Paging:                 dialect.PagingMySQL,
		RowLock:                dialect.RowLockTrailingForUpdate,
		QuoteIdent:             quoteIdent,
		BinaryOp:               binaryOp,
		Function:               function,
		Count:                  "count(*)",
		Exponent:               "POW",
		StringAgg:              func(expr, sep string) string { return fmt.Sprintf("GROUP_CONCAT(%s SEPARATOR %s)", expr, sep) },
		SupportsMultiRowValues: true,
		SupportsDateTimeWithTZ: false,
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
		if r == '`' {
			escaped += "``"
		} else {
			escaped += string(r)
		}
	}
	return "`" + escaped + "`", nil
}

func binaryOp(op sqil.BinaryOpType) (string, error) {
	if op == sqil.NullSafeEqual {
		return "%s <=> %s", nil
	}
	if op == sqil.Concat {
		// MySQL's "||" means logical OR, not concatenation.
		return "CONCAT(%s, %s)", nil
	}
	if op == sqil.Regexp {
		return "REGEXP", nil
	}
	if op == sqil.JsonExtract {
		return "->", nil
	}
	if sym, ok := dialect.StandardBinaryOp(op); ok {
		return sym, nil
	}
	return "", &dialect.UnsupportedError{Dialect: "mysql", What: "binary operator"}
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
		return "UUID", nil
	default:
		return "", &dialect.UnsupportedError{Dialect: "mysql", What: "function"}
	}
}
