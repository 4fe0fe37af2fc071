// Package dialect implements the compiler contract shared by every
// per-database package under compiler/ (oracle, mssql, mysql, postgres,
// teradata): a Dialect value describes the quoting rules, placeholder
// scheme, clause ordering quirks, and operator/function/cast mappings
// for one database, and Compiler.Compile lowers a sqil.Query against it.
//
// Grounded on the per-database generator split in sqldef (one small
// dialect-specific file deferring to shared traversal) and on the
// operator/clause tables in spec.md §4.4, themselves distilled from the
// ansilo jdbc-* query_compiler.rs family.
package dialect

import (
	"fmt"

	"github.com/sqilrun/sqil/sqil"
	"github.com/sqilrun/sqil/value"
)

// ParamStyle selects how bound parameters are rendered in emitted SQL
// text.
type ParamStyle uint8

const (
	// ParamPositional emits "?" for every parameter, in textual order of
	// occurrence (MySQL, MSSQL, Oracle, Teradata).
	ParamPositional ParamStyle = iota
	// ParamNumbered emits "$N", N = 1..len(params) (PostgreSQL).
	ParamNumbered
)

// PagingStyle selects how LIMIT/OFFSET/row-lock is rendered.
type PagingStyle uint8

const (
	PagingLimitOffset    PagingStyle = iota // PostgreSQL: LIMIT m OFFSET n
	PagingMySQL                             // LIMIT m OFFSET n, OFFSET-only permitted
	PagingOracle                            // OFFSET n ROWS FETCH FIRST m ROWS ONLY
	PagingMSSQL                             // OFFSET n ROWS FETCH NEXT m ROWS ONLY, requires ORDER BY
	PagingTeradataTop                       // SELECT TOP m, no OFFSET
)

// RowLockStyle selects where/how FOR UPDATE-equivalent locking is
// rendered.
type RowLockStyle uint8

const (
	RowLockTrailingForUpdate RowLockStyle = iota // Oracle/MySQL/PostgreSQL: "FOR UPDATE" at the end
	RowLockUpdlockHint                           // MSSQL: "WITH (UPDLOCK)" after FROM
	RowLockLeadingPrefix                         // Teradata: "LOCKING ROW FOR WRITE" before SELECT
)

// UnsupportedError reports a SQIL construct the dialect cannot express.
type UnsupportedError struct {
	Dialect string
	What    string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: unsupported %s", e.Dialect, e.What)
}

// UnknownEntityError reports a Query referencing an EntityId the catalog
// doesn't recognize.
type UnknownEntityError struct {
	EntityId sqil.EntityId
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("unknown entity %q", e.EntityId)
}

// InvalidIdentifierError reports a name the dialect's quoting rules
// reject outright (it contains the quote character itself, or NUL).
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid identifier %q", e.Name)
}

// Param is one entry of a compiled query's ordered parameter list. A
// Constant expression lowers to a Param carrying its bound Value
// directly; a Parameter expression (spec invariant 2: the only way
// end-user runtime values enter query text) lowers to a Param that only
// names the id/type the planner must supply a value for at WriteParams
// time -- Value is unset until then.
type Param struct {
	IsReference bool
	Value       value.Value
	RefId       uint32
	RefType     value.Type
}

// Catalog resolves EntityId to its EntityConfig; compilers never invent
// table/column names, they only ever resolve them through this.
type Catalog interface {
	Lookup(id sqil.EntityId) (sqil.EntityConfig, bool)
}

type MapCatalog map[sqil.EntityId]sqil.EntityConfig

func (m MapCatalog) Lookup(id sqil.EntityId) (sqil.EntityConfig, bool) {
	c, ok := m[id]
	return c, ok
}

// Dialect is the full set of per-database rendering rules a Compiler
// needs. Each compiler/<name> package constructs exactly one of these.
type Dialect struct {
	Name string

	ParamStyle ParamStyle
	Paging     PagingStyle
	RowLock    RowLockStyle

	QuoteIdent func(name string) (string, error)

	BinaryOp func(op sqil.BinaryOpType) (string, error)
	Function func(f sqil.FunctionKind) (string, error)
	Count    string // "COUNT_BIG(*)" (MSSQL) or "count(*)" elsewhere

	// Exponent names the function used to render BinaryOpType::Exponent:
	// "POW" (MySQL), "POWER" (Oracle/MSSQL/Teradata), "pow" (PostgreSQL).
	Exponent string

	// StringAgg renders an AggStringAgg call; nil means unsupported
	// (Teradata).
	StringAgg func(exprSQL, sepSQL string) string

	// SupportsMultiRowValues is false only for Teradata: BulkInsert then
	// compiles to a semicolon-separated batch of single-row INSERTs.
	SupportsMultiRowValues bool

	// SupportsDateTimeWithTZ is false only for MySQL: renderCast and
	// constant binding reject value.KindDateTimeTZ outright rather than
	// emit a type MySQL has no native representation for.
	SupportsDateTimeWithTZ bool

	// AliasAs is the keyword tableRef inserts between a table source and
	// its alias ("AS", every dialect but Oracle) or "" (Oracle: bare
	// "table alias", no AS).
	AliasAs string
}
