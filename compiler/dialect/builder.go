package dialect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sqilrun/sqil/sqil"
	"github.com/sqilrun/sqil/value"
)

// Compiler lowers a sqil.Query to dialect SQL text plus its ordered
// parameter list, per the rules in Dialect.
type Compiler struct {
	D Dialect
}

func NewCompiler(d Dialect) *Compiler { return &Compiler{D: d} }

// build carries one compilation's state; its qualify map decides, per
// spec.md §4.4 "Attribute identifier rendering", what qualifies a
// column reference: the query alias for
// SELECT, the physical table name for single-table INSERT/UPDATE/DELETE.
type build struct {
	d       Dialect
	cat     Catalog
	params  []Param
	qualify map[string]string // alias -> qualifier text to emit before "."
	colMap  map[string]sqil.EntitySourceConfig
	sb      strings.Builder
}

func (c *Compiler) Compile(q sqil.Query, cat Catalog) (string, []Param, error) {
	sources := q.GetEntitySources()
	qualify := make(map[string]string, len(sources))
	colMap := make(map[string]sqil.EntitySourceConfig, len(sources))

	for i, src := range sources {
		cfg, ok := cat.Lookup(src.EntityId)
		if !ok {
			return "", nil, &UnknownEntityError{EntityId: src.EntityId}
		}
		colMap[src.Alias] = cfg.Source
		if q.Kind == sqil.QuerySelect {
			quoted, err := c.D.QuoteIdent(src.Alias)
			if err != nil {
				return "", nil, err
			}
			qualify[src.Alias] = quoted
		} else if i == 0 {
			// single-table modification: qualify with the base table,
			// not the alias
			table := cfg.Source.Table
			quoted, err := c.D.QuoteIdent(table)
			if err != nil {
				return "", nil, err
			}
			qualify[src.Alias] = quoted
		}
	}

	b := &build{d: c.D, cat: cat, qualify: qualify, colMap: colMap}

	var err error
	switch q.Kind {
	case sqil.QuerySelect:
		err = b.compileSelect(q.SelectQ)
	case sqil.QueryInsert:
		err = b.compileInsert(q.InsertQ)
	case sqil.QueryBulkInsert:
		err = b.compileBulkInsert(q.BulkInsertQ)
	case sqil.QueryUpdate:
		err = b.compileUpdate(q.UpdateQ)
	case sqil.QueryDelete:
		err = b.compileDelete(q.DeleteQ)
	default:
		err = fmt.Errorf("%s: unknown query kind", b.d.Name)
	}
	if err != nil {
		return "", nil, err
	}
	return b.sb.String(), b.params, nil
}

func (b *build) write(s string) { b.sb.WriteString(s) }

func (b *build) tableRef(src sqil.EntitySource) (string, error) {
	cfg, ok := b.cat.Lookup(src.EntityId)
	if !ok {
		return "", &UnknownEntityError{EntityId: src.EntityId}
	}
	table, err := b.qualifiedTable(cfg.Source)
	if err != nil {
		return "", err
	}
	alias, err := b.d.QuoteIdent(src.Alias)
	if err != nil {
		return "", err
	}
	if b.d.AliasAs == "" {
		return fmt.Sprintf("%s %s", table, alias), nil
	}
	return fmt.Sprintf("%s %s %s", table, b.d.AliasAs, alias), nil
}

// qualifiedTable renders a source's physical table, schema-qualified
// when EntitySourceConfig.Schema is set (spec.md §8 scenarios 3/4:
// "[db].[table]" / "\"db\".\"table\"").
func (b *build) qualifiedTable(src sqil.EntitySourceConfig) (string, error) {
	table, err := b.d.QuoteIdent(src.Table)
	if err != nil {
		return "", err
	}
	if src.Schema == "" {
		return table, nil
	}
	schema, err := b.d.QuoteIdent(src.Schema)
	if err != nil {
		return "", err
	}
	return schema + "." + table, nil
}

func (b *build) column(attr sqil.AttributeId) (string, error) {
	cfg, ok := b.colMap[attr.EntityAlias]
	if !ok {
		return "", fmt.Errorf("%s: attribute %q references unknown source alias %q", b.d.Name, attr.AttributeId, attr.EntityAlias)
	}
	col := cfg.ColumnFor(attr.AttributeId)
	quotedCol, err := b.d.QuoteIdent(col)
	if err != nil {
		return "", err
	}
	qualifier, ok := b.qualify[attr.EntityAlias]
	if !ok {
		return "", fmt.Errorf("%s: no qualifier resolved for alias %q", b.d.Name, attr.EntityAlias)
	}
	return fmt.Sprintf("%s.%s", qualifier, quotedCol), nil
}

// bindParam appends p to the parameter list and returns the placeholder
// text for its position, honoring the dialect's ParamStyle.
func (b *build) bindParam(p Param) string {
	b.params = append(b.params, p)
	if b.d.ParamStyle == ParamNumbered {
		return "$" + strconv.Itoa(len(b.params))
	}
	return "?"
}

func (b *build) renderExpr(e sqil.Expr) (string, error) {
	switch e.Kind {
	case sqil.ExprAttribute:
		return b.column(e.Attribute)
	case sqil.ExprConstant:
		if !b.d.SupportsDateTimeWithTZ && e.Constant.Kind == value.KindDateTimeTZ {
			return "", &UnsupportedError{Dialect: b.d.Name, What: "DateTimeWithTZ constant"}
		}
		return b.bindParam(Param{Value: e.Constant}), nil
	case sqil.ExprParameter:
		if !b.d.SupportsDateTimeWithTZ && e.ParamType.Kind == value.KindDateTimeTZ {
			return "", &UnsupportedError{Dialect: b.d.Name, What: "DateTimeWithTZ parameter"}
		}
		return b.bindParam(Param{IsReference: true, RefId: e.ParamId, RefType: e.ParamType}), nil
	case sqil.ExprUnaryOp:
		return b.renderUnary(e)
	case sqil.ExprBinaryOp:
		return b.renderBinary(e)
	case sqil.ExprCast:
		return b.renderCast(e)
	case sqil.ExprFunctionCall:
		return b.renderFunction(e.Function)
	case sqil.ExprAggregateCall:
		return b.renderAggregate(e.Aggregate)
	default:
		return "", fmt.Errorf("%s: unknown expression kind", b.d.Name)
	}
}

func (b *build) renderUnary(e sqil.Expr) (string, error) {
	operand, err := b.renderExpr(*e.Operand)
	if err != nil {
		return "", err
	}
	switch e.UnaryOp {
	case sqil.LogicalNot:
		return fmt.Sprintf("NOT (%s)", operand), nil
	case sqil.Negate:
		return fmt.Sprintf("(-%s)", operand), nil
	case sqil.BitwiseNot:
		return fmt.Sprintf("(~%s)", operand), nil
	case sqil.IsNull:
		return fmt.Sprintf("(%s IS NULL)", operand), nil
	case sqil.IsNotNull:
		return fmt.Sprintf("(%s IS NOT NULL)", operand), nil
	default:
		return "", &UnsupportedError{Dialect: b.d.Name, What: "unary operator"}
	}
}

func (b *build) renderBinary(e sqil.Expr) (string, error) {
	left, err := b.renderExpr(*e.Left)
	if err != nil {
		return "", err
	}
	right, err := b.renderExpr(*e.Right)
	if err != nil {
		return "", err
	}

	if e.BinaryOp == sqil.Exponent {
		return fmt.Sprintf("%s(%s, %s)", b.d.Exponent, left, right), nil
	}

	op, err := b.d.BinaryOp(e.BinaryOp)
	if err != nil {
		return "", err
	}
	if strings.Contains(op, "%s") {
		// op is a whole-expression template (NullSafeEqual's "a <=> b"
		// shape, or MySQL/MSSQL's "CONCAT(a, b)" for Concat); see each
		// dialect's BinaryOp for the exact fragment.
		return fmt.Sprintf(op, left, right), nil
	}
	return fmt.Sprintf("(%s %s %s)", left, op, right), nil
}

func (b *build) renderCast(e sqil.Expr) (string, error) {
	if !b.d.SupportsDateTimeWithTZ && e.CastType.Kind == value.KindDateTimeTZ {
		return "", &UnsupportedError{Dialect: b.d.Name, What: "cast to DateTimeWithTZ"}
	}
	inner, err := b.renderExpr(*e.CastExpr)
	if err != nil {
		return "", err
	}
	if e.CastType.Kind == value.KindNull {
		return fmt.Sprintf("CAST(%s AS NULL)", inner), nil
	}
	return fmt.Sprintf("CAST(%s AS %s)", inner, sqlTypeName(e.CastType)), nil
}

func (b *build) renderFunction(f *sqil.FunctionCall) (string, error) {
	switch f.Func {
	case sqil.FuncSubstring:
		s, err := b.renderExpr(*f.String)
		if err != nil {
			return "", err
		}
		start, err := b.renderExpr(*f.Start)
		if err != nil {
			return "", err
		}
		length, err := b.renderExpr(*f.Length)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("SUBSTRING(%s, %s, %s)", s, start, length), nil
	case sqil.FuncCoalesce:
		parts := make([]string, len(f.Args))
		for i, a := range f.Args {
			rendered, err := b.renderExpr(a)
			if err != nil {
				return "", err
			}
			parts[i] = rendered
		}
		return fmt.Sprintf("COALESCE(%s)", strings.Join(parts, ", ")), nil
	case sqil.FuncUuid:
		name, err := b.d.Function(f.Func)
		if err != nil {
			return "", err
		}
		return name + "()", nil
	default:
		name, err := b.d.Function(f.Func)
		if err != nil {
			return "", err
		}
		arg, err := b.renderExpr(*f.String)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s(%s)", name, arg), nil
	}
}

func (b *build) renderAggregate(a *sqil.AggregateCall) (string, error) {
	arg, err := b.renderExpr(a.Arg)
	if err != nil {
		return "", err
	}
	switch a.Agg {
	case sqil.AggCount:
		return b.d.Count, nil
	case sqil.AggCountDistinct:
		return fmt.Sprintf("COUNT(DISTINCT %s)", arg), nil
	case sqil.AggSum:
		return fmt.Sprintf("SUM(%s)", arg), nil
	case sqil.AggMax:
		return fmt.Sprintf("MAX(%s)", arg), nil
	case sqil.AggMin:
		return fmt.Sprintf("MIN(%s)", arg), nil
	case sqil.AggAverage:
		return fmt.Sprintf("AVG(%s)", arg), nil
	case sqil.AggStringAgg:
		if b.d.StringAgg == nil {
			return "", &UnsupportedError{Dialect: b.d.Name, What: "StringAgg"}
		}
		sep, err := b.renderExpr(*a.Separator)
		if err != nil {
			return "", err
		}
		return b.d.StringAgg(arg, sep), nil
	default:
		return "", &UnsupportedError{Dialect: b.d.Name, What: "aggregate"}
	}
}

func sqlTypeName(t value.Type) string {
	switch t.Kind {
	case value.KindUtf8String:
		return "VARCHAR"
	case value.KindBinary:
		return "VARBINARY"
	case value.KindBoolean:
		return "BOOLEAN"
	case value.KindInt8, value.KindUInt8, value.KindInt16, value.KindUInt16:
		return "SMALLINT"
	case value.KindInt32, value.KindUInt32:
		return "INTEGER"
	case value.KindInt64, value.KindUInt64:
		return "BIGINT"
	case value.KindFloat32:
		return "REAL"
	case value.KindFloat64:
		return "DOUBLE PRECISION"
	case value.KindDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Decimal.Precision, t.Decimal.Scale)
	case value.KindJSON:
		return "JSON"
	case value.KindDate:
		return "DATE"
	case value.KindTime:
		return "TIME"
	case value.KindDateTime:
		return "TIMESTAMP"
	case value.KindDateTimeTZ:
		return "TIMESTAMP WITH TIME ZONE"
	case value.KindUuid:
		return "UUID"
	default:
		return "VARCHAR"
	}
}
