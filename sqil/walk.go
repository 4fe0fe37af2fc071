package sqil

// WalkExpr visits e and every sub-expression of e, depth-first,
// pre-order, calling visit on each. It is the building block AnyExpr and
// the compilers' own column-reference collectors are built on.
func WalkExpr(e Expr, visit func(Expr)) {
	visit(e)
	for _, child := range e.Children() {
		WalkExpr(child, visit)
	}
}

// AnyExpr reports whether pred matches e or any sub-expression of e,
// short-circuiting on the first match.
func AnyExpr(e Expr, pred func(Expr) bool) bool {
	if pred(e) {
		return true
	}
	for _, child := range e.Children() {
		if AnyExpr(child, pred) {
			return true
		}
	}
	return false
}

// QueryExprs returns every top-level Expr carried directly by q (not
// recursing into sub-expressions); callers combine this with WalkExpr or
// AnyExpr to reach the full tree.
func QueryExprs(q Query) []Expr {
	var out []Expr
	switch q.Kind {
	case QuerySelect:
		s := q.SelectQ
		for _, c := range s.Cols {
			out = append(out, c.Expr)
		}
		for _, j := range s.Joins {
			out = append(out, j.Conds...)
		}
		out = append(out, s.Where...)
		out = append(out, s.GroupBys...)
		for _, o := range s.OrderBys {
			out = append(out, o.Expr)
		}
	case QueryInsert:
		for _, c := range q.InsertQ.Cols {
			out = append(out, c.Expr)
		}
	case QueryBulkInsert:
		out = append(out, q.BulkInsertQ.Values...)
	case QueryUpdate:
		for _, c := range q.UpdateQ.Cols {
			out = append(out, c.Expr)
		}
		out = append(out, q.UpdateQ.Where...)
	case QueryDelete:
		out = append(out, q.DeleteQ.Where...)
	}
	return out
}

// WalkQuery visits every expression reachable from q, including nested
// sub-expressions.
func WalkQuery(q Query, visit func(Expr)) {
	for _, e := range QueryExprs(q) {
		WalkExpr(e, visit)
	}
}

// AnyQueryExpr reports whether pred matches any expression reachable from
// q, short-circuiting on the first match.
func AnyQueryExpr(q Query, pred func(Expr) bool) bool {
	for _, e := range QueryExprs(q) {
		if AnyExpr(e, pred) {
			return true
		}
	}
	return false
}

// AttributeRefs collects the distinct AttributeIds referenced anywhere in
// q, in first-occurrence order.
func AttributeRefs(q Query) []AttributeId {
	seen := make(map[AttributeId]bool)
	var out []AttributeId
	WalkQuery(q, func(e Expr) {
		if e.Kind == ExprAttribute && !seen[e.Attribute] {
			seen[e.Attribute] = true
			out = append(out, e.Attribute)
		}
	})
	return out
}
