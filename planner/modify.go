package planner

import (
	"errors"
	"fmt"

	"github.com/sqilrun/sqil/protocol"
	"github.com/sqilrun/sqil/sqil"
	"github.com/sqilrun/sqil/value"
)

// ModifyPlan is the INSERT/UPDATE/DELETE counterpart of SelectPlan. Every
// column/WHERE conjunct it offers must push remotely or the whole plan
// fails outright: unlike a SELECT, there is no local-residual story for
// a row mutation the connector can't perform (a real FDW falls back from
// direct-modify to the ordinary RETURNING-based modify path instead,
// which is out of scope here -- see SPEC_FULL.md).
type ModifyPlan struct {
	execPlan
}

func (p *ModifyPlan) apply(msg protocol.ClientMessage) (protocol.QueryOperationResult, error) {
	resp, closed := p.sess.Handle(msg)
	if closed {
		return protocol.QueryOperationResult{}, errSessionClosed
	}
	if resp.Kind == protocol.ServerGenericError {
		return protocol.QueryOperationResult{}, errors.New(resp.Err)
	}
	return *resp.OpResult, nil
}

// HostInsertCol is one (attribute, value expression) assignment offered
// to PlanInsert.
type HostInsertCol struct {
	Attribute string
	Expr      HostExpr
}

// PlanInsert creates an INSERT against target and offers one column per
// entry in cols, plus one synthetic parameter column per entry in
// triggerCols not already present in cols (spec.md §4.7 rule 8: a
// BEFORE INSERT trigger may need to see -- and the row build have a slot
// for -- a column the statement itself didn't set). colType resolves an
// attribute name to its declared type for those synthetic columns.
func (p *Planner) PlanInsert(target sqil.EntitySource, relid string, cols []HostInsertCol, triggerCols []string, colType func(attr string) value.Type) (*ModifyPlan, error) {
	sess := protocol.NewSession(p.connector, p.logger)
	resp, closed := sess.Handle(protocol.CreateInsertMsg(target))
	if closed {
		return nil, errSessionClosed
	}
	if resp.Kind == protocol.ServerGenericError {
		return nil, errors.New(resp.Err)
	}

	plan := &ModifyPlan{execPlan{sess: sess, ctx: NewConvertContext(map[string]string{relid: target.Alias})}}

	seen := make(map[string]bool, len(cols))
	all := append([]HostInsertCol(nil), cols...)
	for _, c := range all {
		seen[c.Attribute] = true
	}
	for _, attr := range triggerCols {
		if seen[attr] {
			continue
		}
		seen[attr] = true
		key := fmt.Sprintf("trigger:%s.%s", target.Alias, attr)
		all = append(all, HostInsertCol{Attribute: attr, Expr: HostParamExpr(key, colType(attr))})
	}

	for _, c := range all {
		expr, err := convert(c.Expr, plan.ctx)
		if err != nil {
			return nil, fmt.Errorf("planner: insert column %q cannot be represented remotely: %w", c.Attribute, err)
		}
		res, err := plan.apply(protocol.ApplyInsertMsg(protocol.InsertOperation{
			Kind: protocol.InsertAddColumn, Attribute: c.Attribute, Expr: expr,
		}))
		if err != nil {
			return nil, err
		}
		if res.Kind != protocol.PerformedRemotely {
			return nil, fmt.Errorf("planner: insert column %q is not supported by the connector", c.Attribute)
		}
	}
	return plan, nil
}

// RowIdExprs resolves the row-identity expressions (e.g. a primary key,
// or the dialect's implicit row id) needed to target existing rows of
// alias for UPDATE/DELETE.
type RowIdExprs func(alias string) ([]HostExpr, error)

// HostSetCol is one SET assignment offered to PlanUpdate.
type HostSetCol struct {
	Attribute string
	Expr      HostExpr
}

// PlanUpdate creates an UPDATE against target and offers its SET
// assignments, then its row-identity WHERE clauses, in that order
// (spec.md §4.7 rule 8: SET before WHERE, since SET values may reference
// the same columns the WHERE clause identifies rows by).
func (p *Planner) PlanUpdate(target sqil.EntitySource, relid string, sets []HostSetCol, rowIds RowIdExprs) (*ModifyPlan, error) {
	sess := protocol.NewSession(p.connector, p.logger)
	resp, closed := sess.Handle(protocol.CreateUpdateMsg(target))
	if closed {
		return nil, errSessionClosed
	}
	if resp.Kind == protocol.ServerGenericError {
		return nil, errors.New(resp.Err)
	}

	plan := &ModifyPlan{execPlan{sess: sess, ctx: NewConvertContext(map[string]string{relid: target.Alias})}}

	for _, c := range sets {
		expr, err := convert(c.Expr, plan.ctx)
		if err != nil {
			return nil, fmt.Errorf("planner: update column %q cannot be represented remotely: %w", c.Attribute, err)
		}
		res, err := plan.apply(protocol.ApplyUpdateMsg(protocol.UpdateOperation{
			Kind: protocol.UpdateAddSet, Attribute: c.Attribute, Expr: expr,
		}))
		if err != nil {
			return nil, err
		}
		if res.Kind != protocol.PerformedRemotely {
			return nil, fmt.Errorf("planner: update column %q is not supported by the connector", c.Attribute)
		}
	}

	ids, err := rowIds(target.Alias)
	if err != nil {
		return nil, err
	}
	for _, h := range ids {
		expr, err := convert(h, plan.ctx)
		if err != nil {
			return nil, fmt.Errorf("planner: update row-identity expression cannot be represented remotely: %w", err)
		}
		res, err := plan.apply(protocol.ApplyUpdateMsg(protocol.UpdateOperation{
			Kind: protocol.UpdateAddWhere, Expr: expr,
		}))
		if err != nil {
			return nil, err
		}
		if res.Kind != protocol.PerformedRemotely {
			return nil, errors.New("planner: update row-identity expression is not supported by the connector")
		}
	}
	return plan, nil
}

// PlanDelete creates a DELETE against target, offering only its
// row-identity WHERE clauses (spec.md §4.7 rule 8): unlike UPDATE there
// is never a SET pass.
func (p *Planner) PlanDelete(target sqil.EntitySource, relid string, rowIds RowIdExprs) (*ModifyPlan, error) {
	sess := protocol.NewSession(p.connector, p.logger)
	resp, closed := sess.Handle(protocol.CreateDeleteMsg(target))
	if closed {
		return nil, errSessionClosed
	}
	if resp.Kind == protocol.ServerGenericError {
		return nil, errors.New(resp.Err)
	}

	plan := &ModifyPlan{execPlan{sess: sess, ctx: NewConvertContext(map[string]string{relid: target.Alias})}}

	ids, err := rowIds(target.Alias)
	if err != nil {
		return nil, err
	}
	for _, h := range ids {
		expr, err := convert(h, plan.ctx)
		if err != nil {
			return nil, fmt.Errorf("planner: delete row-identity expression cannot be represented remotely: %w", err)
		}
		res, err := plan.apply(protocol.ApplyDeleteMsg(protocol.DeleteOperation{Expr: expr}))
		if err != nil {
			return nil, err
		}
		if res.Kind != protocol.PerformedRemotely {
			return nil, errors.New("planner: delete row-identity expression is not supported by the connector")
		}
	}
	return plan, nil
}

// CanDirectModify decides whether a modification can be pushed down
// wholesale (direct-modify) rather than needing a RETURNING-based
// round-trip for every affected row: only when there's no RETURNING
// clause, no ON CONFLICT clause, no local (residual) condition left
// over, and every SET expression converted cleanly (spec.md §4.7 rule
// 8).
func CanDirectModify(hasReturning, hasOnConflict, hasLocalConditions, allSetExprsConvertible bool) bool {
	return !hasReturning && !hasOnConflict && !hasLocalConditions && allSetExprsConvertible
}
