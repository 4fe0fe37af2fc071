package dialect

import (
	"fmt"
	"strings"

	"github.com/sqilrun/sqil/sqil"
)

func (b *build) compileSelect(s *sqil.Select) error {
	if b.d.RowLock == RowLockLeadingPrefix && s.RowLock == sqil.RowLockForUpdate {
		b.write("LOCKING ROW FOR WRITE ")
	}

	b.write("SELECT ")
	if b.d.Paging == PagingTeradataTop && s.RowLimit != nil {
		b.write(fmt.Sprintf("TOP %d ", *s.RowLimit))
	}

	if err := b.writeSelectCols(s.Cols); err != nil {
		return err
	}

	fromRef, err := b.tableRef(s.From)
	if err != nil {
		return err
	}
	b.write(" FROM ")
	b.write(fromRef)
	if b.d.RowLock == RowLockUpdlockHint && s.RowLock == sqil.RowLockForUpdate {
		b.write(" WITH (UPDLOCK)")
	}

	for _, j := range s.Joins {
		if err := b.writeJoin(j); err != nil {
			return err
		}
	}

	if len(s.Where) > 0 {
		clause, err := b.renderConjunction(s.Where)
		if err != nil {
			return err
		}
		b.write(" WHERE ")
		b.write(clause)
	}

	if len(s.GroupBys) > 0 {
		b.write(" GROUP BY ")
		if err := b.writeExprList(s.GroupBys); err != nil {
			return err
		}
	}

	orderBys := s.OrderBys
	needsOrderBy := b.d.Paging == PagingMSSQL && (s.RowLimit != nil || s.RowSkip > 0)
	if needsOrderBy && len(orderBys) == 0 {
		b.write(" ORDER BY (SELECT NULL)")
	} else if len(orderBys) > 0 {
		b.write(" ORDER BY ")
		if err := b.writeOrderBys(orderBys); err != nil {
			return err
		}
	}

	if err := b.writePaging(s); err != nil {
		return err
	}

	if b.d.RowLock == RowLockTrailingForUpdate && s.RowLock == sqil.RowLockForUpdate {
		b.write(" FOR UPDATE")
	}

	return nil
}

func (b *build) writeSelectCols(cols []sqil.SelectCol) error {
	parts := make([]string, len(cols))
	for i, c := range cols {
		expr, err := b.renderExpr(c.Expr)
		if err != nil {
			return err
		}
		alias, err := b.d.QuoteIdent(c.Alias)
		if err != nil {
			return err
		}
		parts[i] = fmt.Sprintf("%s AS %s", expr, alias)
	}
	b.write(strings.Join(parts, ", "))
	return nil
}

func (b *build) writeJoin(j sqil.Join) error {
	var kw string
	switch j.Type {
	case sqil.JoinInner:
		kw = "INNER JOIN"
	case sqil.JoinLeft:
		kw = "LEFT JOIN"
	case sqil.JoinRight:
		kw = "RIGHT JOIN"
	case sqil.JoinFull:
		kw = "FULL JOIN"
	default:
		return &UnsupportedError{Dialect: b.d.Name, What: "join type"}
	}

	ref, err := b.tableRef(j.Target)
	if err != nil {
		return err
	}
	b.write(fmt.Sprintf(" %s %s", kw, ref))

	if len(j.Conds) > 0 {
		cond, err := b.renderConjunction(j.Conds)
		if err != nil {
			return err
		}
		b.write(" ON ")
		b.write(cond)
	} else {
		b.write(" ON 1=1")
	}
	return nil
}

func (b *build) renderConjunction(exprs []sqil.Expr) (string, error) {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		rendered, err := b.renderExpr(e)
		if err != nil {
			return "", err
		}
		parts[i] = rendered
	}
	return strings.Join(parts, " AND "), nil
}

func (b *build) writeExprList(exprs []sqil.Expr) error {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		rendered, err := b.renderExpr(e)
		if err != nil {
			return err
		}
		parts[i] = rendered
	}
	b.write(strings.Join(parts, ", "))
	return nil
}

func (b *build) writeOrderBys(obs []sqil.Ordering) error {
	parts := make([]string, len(obs))
	for i, o := range obs {
		expr, err := b.renderExpr(o.Expr)
		if err != nil {
			return err
		}
		dir := "ASC"
		if o.Type == sqil.Desc {
			dir = "DESC"
		}
		parts[i] = fmt.Sprintf("%s %s", expr, dir)
	}
	b.write(strings.Join(parts, ", "))
	return nil
}

func (b *build) writePaging(s *sqil.Select) error {
	switch b.d.Paging {
	case PagingLimitOffset, PagingMySQL:
		if s.RowLimit != nil {
			b.write(fmt.Sprintf(" LIMIT %d", *s.RowLimit))
		}
		if s.RowSkip > 0 {
			b.write(fmt.Sprintf(" OFFSET %d", s.RowSkip))
		}
	case PagingOracle:
		if s.RowSkip > 0 {
			b.write(fmt.Sprintf(" OFFSET %d ROWS", s.RowSkip))
		}
		if s.RowLimit != nil {
			b.write(fmt.Sprintf(" FETCH FIRST %d ROWS ONLY", *s.RowLimit))
		}
	case PagingMSSQL:
		if s.RowLimit != nil || s.RowSkip > 0 {
			b.write(fmt.Sprintf(" OFFSET %d ROWS", s.RowSkip))
			if s.RowLimit != nil {
				b.write(fmt.Sprintf(" FETCH NEXT %d ROWS ONLY", *s.RowLimit))
			}
		}
	case PagingTeradataTop:
		if s.RowSkip > 0 {
			return &UnsupportedError{Dialect: b.d.Name, What: "OFFSET (row_skip)"}
		}
		// TOP m already emitted in the SELECT clause itself.
	}
	return nil
}

func (b *build) compileInsert(ins *sqil.Insert) error {
	table, err := b.tableRef(ins.Target)
	if err != nil {
		return err
	}
	table = strings.SplitN(table, " ", 2)[0] // INSERT INTO doesn't take an alias

	cols := make([]string, len(ins.Cols))
	vals := make([]string, len(ins.Cols))
	for i, c := range ins.Cols {
		quoted, err := b.d.QuoteIdent(b.colMap[ins.Target.Alias].ColumnFor(c.Attribute))
		if err != nil {
			return err
		}
		cols[i] = quoted
		rendered, err := b.renderExpr(c.Expr)
		if err != nil {
			return err
		}
		vals[i] = rendered
	}

	b.write(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(vals, ", ")))
	return nil
}

func (b *build) compileBulkInsert(bi *sqil.BulkInsert) error {
	table, err := b.tableRef(bi.Target)
	if err != nil {
		return err
	}
	table = strings.SplitN(table, " ", 2)[0]

	cols := make([]string, len(bi.Cols))
	for i, c := range bi.Cols {
		quoted, err := b.d.QuoteIdent(b.colMap[bi.Target.Alias].ColumnFor(c))
		if err != nil {
			return err
		}
		cols[i] = quoted
	}
	colList := strings.Join(cols, ", ")

	rows := bi.Rows()
	rowSQL := make([]string, len(rows))
	for i, row := range rows {
		vals := make([]string, len(row))
		for j, e := range row {
			rendered, err := b.renderExpr(e)
			if err != nil {
				return err
			}
			vals[j] = rendered
		}
		rowSQL[i] = "(" + strings.Join(vals, ", ") + ")"
	}

	if b.d.SupportsMultiRowValues {
		b.write(fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, colList, strings.Join(rowSQL, ", ")))
		return nil
	}

	stmts := make([]string, len(rowSQL))
	for i, row := range rowSQL {
		stmts[i] = fmt.Sprintf("INSERT INTO %s (%s) VALUES %s;", table, colList, row)
	}
	b.write(strings.Join(stmts, "\n"))
	return nil
}

func (b *build) compileUpdate(u *sqil.Update) error {
	table, err := b.tableRef(u.Target)
	if err != nil {
		return err
	}
	table = strings.SplitN(table, " ", 2)[0]

	sets := make([]string, len(u.Cols))
	for i, c := range u.Cols {
		quoted, err := b.d.QuoteIdent(b.colMap[u.Target.Alias].ColumnFor(c.Attribute))
		if err != nil {
			return err
		}
		rendered, err := b.renderExpr(c.Expr)
		if err != nil {
			return err
		}
		sets[i] = fmt.Sprintf("%s = %s", quoted, rendered)
	}

	b.write(fmt.Sprintf("UPDATE %s SET %s", table, strings.Join(sets, ", ")))

	if len(u.Where) > 0 {
		clause, err := b.renderConjunction(u.Where)
		if err != nil {
			return err
		}
		b.write(" WHERE ")
		b.write(clause)
	}
	return nil
}

func (b *build) compileDelete(d *sqil.Delete) error {
	table, err := b.tableRef(d.Target)
	if err != nil {
		return err
	}
	table = strings.SplitN(table, " ", 2)[0]

	b.write(fmt.Sprintf("DELETE FROM %s", table))

	if len(d.Where) > 0 {
		clause, err := b.renderConjunction(d.Where)
		if err != nil {
			return err
		}
		b.write(" WHERE ")
		b.write(clause)
	}
	return nil
}
