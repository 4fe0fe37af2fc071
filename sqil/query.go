package sqil

import "fmt"

type QueryKind uint8

const (
	QuerySelect QueryKind = iota
	QueryInsert
	QueryBulkInsert
	QueryUpdate
	QueryDelete
)

type JoinType uint8

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
	JoinFull
)

type OrderDirection uint8

const (
	Asc OrderDirection = iota
	Desc
)

type RowLockMode uint8

const (
	RowLockNone RowLockMode = iota
	RowLockForUpdate
)

// Join targets an additional EntitySource joined against the query's
// existing rows; an empty Conds slice means an unrestricted (cross)
// join.
type Join struct {
	Type   JoinType
	Target EntitySource
	Conds  []Expr
}

// Ordering is one key of an ORDER BY clause.
type Ordering struct {
	Type OrderDirection
	Expr Expr
}

// SelectCol is one projected (alias, expression) pair.
type SelectCol struct {
	Alias string
	Expr  Expr
}

type Select struct {
	From      EntitySource
	Cols      []SelectCol
	Joins     []Join
	Where     []Expr
	GroupBys  []Expr
	OrderBys  []Ordering
	RowSkip   uint64
	RowLimit  *uint64
	RowLock   RowLockMode
}

// InsertCol is one (attribute, expression) assignment.
type InsertCol struct {
	Attribute string
	Expr      Expr
}

type Insert struct {
	Target EntitySource
	Cols   []InsertCol
}

// BulkInsert carries a flat list of values, cols.len() columns wide per
// row; Rows() reconstitutes the row grouping.
type BulkInsert struct {
	Target EntitySource
	Cols   []string
	Values []Expr
}

// Rows chunks Values into cols.len()-wide row groups. len(Values) must be
// an integer multiple of len(Cols) (spec invariant 7); a violation is a
// construction bug, not a runtime condition, so Rows panics rather than
// erroring.
func (b BulkInsert) Rows() [][]Expr {
	n := len(b.Cols)
	if n == 0 {
		if len(b.Values) != 0 {
			panic("sqil: BulkInsert with no columns but non-empty values")
		}
		return nil
	}
	if len(b.Values)%n != 0 {
		panic(fmt.Sprintf("sqil: BulkInsert.Values length %d is not a multiple of %d columns", len(b.Values), n))
	}
	rows := make([][]Expr, 0, len(b.Values)/n)
	for i := 0; i < len(b.Values); i += n {
		rows = append(rows, b.Values[i:i+n])
	}
	return rows
}

type Update struct {
	Target EntitySource
	Cols   []InsertCol
	Where  []Expr
}

type Delete struct {
	Target EntitySource
	Where  []Expr
}

// Query is the sum of the five query shapes. Exactly one of Select /
// Insert / BulkInsert / Update / Delete is populated, selected by Kind.
type Query struct {
	Kind QueryKind

	SelectQ     *Select
	InsertQ     *Insert
	BulkInsertQ *BulkInsert
	UpdateQ     *Update
	DeleteQ     *Delete
}

func NewSelect(s Select) Query         { return Query{Kind: QuerySelect, SelectQ: &s} }
func NewInsert(i Insert) Query         { return Query{Kind: QueryInsert, InsertQ: &i} }
func NewBulkInsert(b BulkInsert) Query { return Query{Kind: QueryBulkInsert, BulkInsertQ: &b} }
func NewUpdate(u Update) Query         { return Query{Kind: QueryUpdate, UpdateQ: &u} }
func NewDelete(d Delete) Query         { return Query{Kind: QueryDelete, DeleteQ: &d} }

func (q Query) AsSelect() (*Select, bool)         { return q.SelectQ, q.Kind == QuerySelect }
func (q Query) AsInsert() (*Insert, bool)         { return q.InsertQ, q.Kind == QueryInsert }
func (q Query) AsBulkInsert() (*BulkInsert, bool) { return q.BulkInsertQ, q.Kind == QueryBulkInsert }
func (q Query) AsUpdate() (*Update, bool)         { return q.UpdateQ, q.Kind == QueryUpdate }
func (q Query) AsDelete() (*Delete, bool)         { return q.DeleteQ, q.Kind == QueryDelete }

// Where abstracts over the query kinds that carry a filter (Select,
// Update, Delete); Insert and BulkInsert have none.
func (q Query) Where() []Expr {
	switch q.Kind {
	case QuerySelect:
		return q.SelectQ.Where
	case QueryUpdate:
		return q.UpdateQ.Where
	case QueryDelete:
		return q.DeleteQ.Where
	default:
		return nil
	}
}

// GetEntitySource resolves alias to the EntitySource it names, searching
// the query's From/Target and any Joins.
func (q Query) GetEntitySource(alias string) (EntitySource, bool) {
	for _, s := range q.GetEntitySources() {
		if s.Alias == alias {
			return s, true
		}
	}
	return EntitySource{}, false
}

// GetEntitySources returns every EntitySource referenced by the query, in
// declaration order: From/Target first, then Joins in order.
func (q Query) GetEntitySources() []EntitySource {
	switch q.Kind {
	case QuerySelect:
		s := q.SelectQ
		out := make([]EntitySource, 0, 1+len(s.Joins))
		out = append(out, s.From)
		for _, j := range s.Joins {
			out = append(out, j.Target)
		}
		return out
	case QueryInsert:
		return []EntitySource{q.InsertQ.Target}
	case QueryBulkInsert:
		return []EntitySource{q.BulkInsertQ.Target}
	case QueryUpdate:
		return []EntitySource{q.UpdateQ.Target}
	case QueryDelete:
		return []EntitySource{q.DeleteQ.Target}
	default:
		return nil
	}
}
