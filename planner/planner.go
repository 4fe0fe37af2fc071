package planner

import (
	"bytes"
	"errors"
	"fmt"
	"log"

	"github.com/sqilrun/sqil/protocol"
	"github.com/sqilrun/sqil/sqil"
	"github.com/sqilrun/sqil/value"
	"github.com/sqilrun/sqil/wire"
)

// errSessionClosed is returned when a protocol.Session unexpectedly
// reports closed=true mid-plan; Close is only ever sent by the planner
// itself once it's done, so seeing it here would mean a connector bug.
var errSessionClosed = errors.New("planner: session closed unexpectedly")

// Planner drives one protocol.Session per statement against connector,
// translating a host query (expressed as HostExpr fragments) into SQIL
// by offering candidate operations and interpreting the connector's
// PerformedRemotely/PerformedLocally/Unsupported verdicts (spec.md §4.7).
type Planner struct {
	connector protocol.Connector
	cache     *PlanCache
	logger    *log.Logger
}

func NewPlanner(connector protocol.Connector, cache *PlanCache, logger *log.Logger) *Planner {
	return &Planner{connector: connector, cache: cache, logger: logger}
}

// execPlan is the shared prepare/write-params/execute/rescan machinery
// every query-kind plan (Select, Insert, Update, Delete) needs once its
// candidate operations have all been offered.
type execPlan struct {
	sess      *protocol.Session
	ctx       *ConvertContext
	structure protocol.QueryInputStructure
}

func (e *execPlan) Prepare() (protocol.QueryInputStructure, error) {
	resp, closed := e.sess.Handle(protocol.PrepareMsg())
	if closed {
		return protocol.QueryInputStructure{}, errSessionClosed
	}
	if resp.Kind == protocol.ServerGenericError {
		return protocol.QueryInputStructure{}, errors.New(resp.Err)
	}
	e.structure = *resp.Structure
	return e.structure, nil
}

// WriteParams re-evaluates every host parameter evaluator bound in ctx,
// in the order Prepare declared, and serializes them through the wire
// codec exactly as a real connector's result set is transported. Per
// spec.md §4.7 rule 10, this is never memoized: it must be called again
// before every Execute and before every Rescan.
func (e *execPlan) WriteParams() error {
	types := make([]value.Type, len(e.structure.Params))
	for i, p := range e.structure.Params {
		types[i] = p.Type
	}
	var buf bytes.Buffer
	w := wire.NewWriter(&buf, types)
	for _, p := range e.structure.Params {
		key, ok := e.ctx.KeyForId(p.Id)
		if !ok {
			return fmt.Errorf("planner: parameter %d has no host binding", p.Id)
		}
		eval, ok := e.ctx.Evaluator(key)
		if !ok {
			return fmt.Errorf("planner: no evaluator registered for host parameter %q", key)
		}
		v, err := eval()
		if err != nil {
			return fmt.Errorf("planner: evaluating host parameter %q: %w", key, err)
		}
		if err := w.WriteValue(v); err != nil {
			return err
		}
	}
	resp, closed := e.sess.Handle(protocol.WriteParamsMsg(buf.Bytes()))
	if closed {
		return errSessionClosed
	}
	if resp.Kind == protocol.ServerGenericError {
		return errors.New(resp.Err)
	}
	return nil
}

func (e *execPlan) Execute() (protocol.RowStructure, error) {
	resp, closed := e.sess.Handle(protocol.ExecuteMsg())
	if closed {
		return protocol.RowStructure{}, errSessionClosed
	}
	if resp.Kind == protocol.ServerGenericError {
		return protocol.RowStructure{}, errors.New(resp.Err)
	}
	return *resp.Row, nil
}

// Rescan re-evaluates parameters and executes again: the path a
// re-entered prepared statement or a re-scanned nested-loop inner side
// takes, as opposed to RestartQuery which replays the same result set
// without recomputing anything.
func (e *execPlan) Rescan() error {
	if err := e.WriteParams(); err != nil {
		return err
	}
	_, err := e.Execute()
	return err
}

func (e *execPlan) Read(buf []byte) (int, error) {
	resp, closed := e.sess.Handle(protocol.ReadMsg(uint32(len(buf))))
	if closed {
		return 0, errSessionClosed
	}
	if resp.Kind == protocol.ServerGenericError {
		return 0, errors.New(resp.Err)
	}
	n := copy(buf, resp.Data)
	return n, nil
}

func (e *execPlan) Close() { e.sess.Handle(protocol.CloseMsg()) }

// LocalResidual is everything a SelectPlan decided it must apply itself,
// because the connector either rejected the operation, performed it
// locally on its own side (counted the same way here, since either
// outcome leaves the host responsible for enforcing it further), or
// because a guard rule ruled pushdown out before even asking.
type LocalResidual struct {
	Where    []HostExpr
	GroupBys []HostExpr
	OrderBys []HostExpr
	Limit    *uint64
	Offset   *uint64
}

// HostJoin is a join candidate in the host's own terms, offered to
// PushJoin for translation.
type HostJoin struct {
	Type   sqil.JoinType
	Target sqil.EntitySource
	Conds  []HostExpr
}

// HostOrdering is an ORDER BY key candidate. Volatile marks a key drawn
// from a volatile-function equivalence class (its value can change
// between evaluations, so the connector and the host could disagree on
// order -- it must stay local). CustomOperator marks a key compared with
// an operator outside the target's built-in ordering, which no dialect
// in this repo can render.
type HostOrdering struct {
	Expr           HostExpr
	Dir            sqil.OrderDirection
	Volatile       bool
	CustomOperator bool
	SupportsAsc    bool
	SupportsDesc   bool
}

// SelectPlan incrementally builds a remote SELECT over one
// protocol.Session, applying the pushdown guard rules of spec.md §4.7 as
// each candidate clause is offered.
type SelectPlan struct {
	execPlan

	cost protocol.OperationCost

	local        LocalResidual
	whereIsLocal bool // WHERE (and therefore JOIN) cannot push after a local WHERE
	anyLocalOp   bool // GROUP BY/ORDER BY/LIMIT/OFFSET cannot push once any non-column-addition op went local

	shape   *PlanShape // nil when not replaying a cached shape
	shapeAt int
	record  *PlanShape // accumulates decisions for a fresh shape, nil when replaying
}

// NewSelect starts planning a SELECT against src. relid is the host's own
// identifier for that relation, used to resolve HostVar references;
// shape, if non-nil, is a previously cached PlanShape this plan replays
// instead of re-deriving (see PlanCache).
func (p *Planner) NewSelect(src sqil.EntitySource, relid string, shape *PlanShape) (*SelectPlan, error) {
	sess := protocol.NewSession(p.connector, p.logger)
	resp, closed := sess.Handle(protocol.CreateSelectMsg(src))
	if closed {
		return nil, errSessionClosed
	}
	if resp.Kind == protocol.ServerGenericError {
		return nil, errors.New(resp.Err)
	}

	plan := &SelectPlan{
		execPlan: execPlan{sess: sess, ctx: NewConvertContext(map[string]string{relid: src.Alias})},
		shape:    shape,
	}
	if shape == nil {
		plan.record = newShapeRecorder()
	}
	if resp.OpResult.Cost != nil {
		plan.cost = *resp.OpResult.Cost
	}
	return plan, nil
}

// Context exposes the plan's ConvertContext so the caller can bind host
// parameter evaluators before WriteParams time.
func (p *SelectPlan) Context() *ConvertContext { return p.ctx }

// Cost returns the plan's best cost estimate so far, with defaults filled
// in for anything the connector left unset.
func (p *SelectPlan) Cost() protocol.OperationCost { return FillDefaults(p.cost) }

// Local returns everything this plan decided must be evaluated locally.
func (p *SelectPlan) Local() LocalResidual { return p.local }

// Shape returns the recorded PlanShape once planning is complete, for
// the caller to store in a PlanCache keyed by ShapeKey. It returns nil
// when the plan replayed a cached shape rather than deriving a fresh one.
func (p *SelectPlan) Shape() *PlanShape { return p.record }

func (p *SelectPlan) apply(op protocol.SelectOperation) (protocol.QueryOperationResult, error) {
	resp, closed := p.sess.Handle(protocol.ApplySelectMsg(op))
	if closed {
		return protocol.QueryOperationResult{}, errSessionClosed
	}
	if resp.Kind == protocol.ServerGenericError {
		return protocol.QueryOperationResult{}, errors.New(resp.Err)
	}
	return *resp.OpResult, nil
}

// decide consults a replayed shape if one is active, otherwise runs
// tryPush and records its outcome for a fresh shape.
func (p *SelectPlan) decide(tryPush func() (bool, error)) (bool, error) {
	if p.shape != nil {
		pushed := p.shape.replay(p.shapeAt)
		p.shapeAt++
		return pushed, nil
	}
	pushed, err := tryPush()
	if err != nil {
		return false, err
	}
	p.record.record(pushed)
	return pushed, nil
}

// AddColumn offers an output column. Per spec.md §4.7 rule 9, a column
// the connector can't project is a fatal planning failure, not a local
// fallback: output-tlist construction only ever offers columns the plan
// has already determined it needs.
func (p *SelectPlan) AddColumn(alias string, h HostExpr) error {
	expr, err := convert(h, p.ctx)
	if err != nil {
		return fmt.Errorf("planner: output column %q cannot be represented remotely: %w", alias, err)
	}
	res, err := p.apply(protocol.SelectOperation{Kind: protocol.SelectAddColumn, ColAlias: alias, Expr: expr})
	if err != nil {
		return err
	}
	if res.Kind != protocol.PerformedRemotely {
		return fmt.Errorf("planner: output column %q is not supported by the connector", alias)
	}
	if res.Cost != nil {
		p.cost = *res.Cost
	}
	return nil
}

// PushWhere offers one WHERE conjunct. Once any WHERE conjunct goes
// local, every later one must too (spec.md §4.7 rule 2): a connector
// that only sees some of the filter can't be trusted to return a result
// the local residual can still correctly narrow.
func (p *SelectPlan) PushWhere(h HostExpr) error {
	if p.whereIsLocal {
		p.local.Where = append(p.local.Where, h)
		_, _ = p.decide(func() (bool, error) { return false, nil })
		return nil
	}

	expr, convErr := convert(h, p.ctx)
	pushed, err := p.decide(func() (bool, error) {
		if convErr != nil {
			return false, nil
		}
		res, err := p.apply(protocol.SelectOperation{Kind: protocol.SelectAddWhere, Expr: expr})
		if err != nil {
			return false, err
		}
		if res.Kind == protocol.PerformedRemotely {
			if res.Cost != nil {
				p.cost = *res.Cost
			}
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return err
	}
	if !pushed {
		p.whereIsLocal = true
		p.anyLocalOp = true
		p.local.Where = append(p.local.Where, h)
		return nil
	}
	if p.shape != nil && convErr == nil {
		// Replaying a cached "pushed" decision still requires actually
		// applying the operation to this execution's concrete query.
		res, err := p.apply(protocol.SelectOperation{Kind: protocol.SelectAddWhere, Expr: expr})
		if err != nil {
			return err
		}
		if res.Cost != nil {
			p.cost = *res.Cost
		}
	}
	return nil
}

// PushJoin offers a join. JOIN cannot push once WHERE has gone local
// (the connector would be joining against rows the local filter hasn't
// had a chance to apply yet), a cross product (no conditions) is never
// pushed, and a Full join requires every condition to be convertible --
// Inner/Left/Right may push with only the convertible conditions and
// retain the rest as local filters (spec.md §4.7 rule 4).
func (p *SelectPlan) PushJoin(j HostJoin, sameConnector bool) error {
	if p.whereIsLocal || !sameConnector || len(j.Conds) == 0 {
		return p.retainJoinLocally(j)
	}

	var converted []sqil.Expr
	var residual []HostExpr
	for _, c := range j.Conds {
		e, err := convert(c, p.ctx)
		if err != nil {
			residual = append(residual, c)
			continue
		}
		converted = append(converted, e)
	}
	if len(converted) == 0 || (j.Type == sqil.JoinFull && len(residual) > 0) {
		return p.retainJoinLocally(j)
	}

	res, err := p.apply(protocol.SelectOperation{
		Kind: protocol.SelectAddJoin,
		Join: sqil.Join{Type: j.Type, Target: j.Target, Conds: converted},
	})
	if err != nil {
		return err
	}
	if res.Kind != protocol.PerformedRemotely {
		return p.retainJoinLocally(j)
	}
	if res.Cost != nil {
		p.cost = *res.Cost
	}
	if len(residual) > 0 {
		p.anyLocalOp = true
		p.local.Where = append(p.local.Where, residual...)
	}
	return nil
}

func (p *SelectPlan) retainJoinLocally(j HostJoin) error {
	p.anyLocalOp = true
	p.local.Where = append(p.local.Where, j.Conds...)
	return nil
}

// PushGroupBy offers one grouping expression. It must be convertible and
// parameter-free (spec.md §4.7 rule 6: a connector can't be asked to
// group by a value only the host knows), and, like ORDER BY/LIMIT/
// OFFSET, cannot push once any earlier non-column-addition op went
// local.
func (p *SelectPlan) PushGroupBy(h HostExpr) error {
	if p.anyLocalOp || containsParam(h) {
		p.anyLocalOp = true
		p.local.GroupBys = append(p.local.GroupBys, h)
		return nil
	}
	expr, err := convert(h, p.ctx)
	if err != nil {
		p.anyLocalOp = true
		p.local.GroupBys = append(p.local.GroupBys, h)
		return nil
	}
	res, err := p.apply(protocol.SelectOperation{Kind: protocol.SelectAddGroupBy, Expr: expr})
	if err != nil {
		return err
	}
	if res.Kind != protocol.PerformedRemotely {
		p.anyLocalOp = true
		p.local.GroupBys = append(p.local.GroupBys, h)
		return nil
	}
	if res.Cost != nil {
		p.cost = *res.Cost
	}
	return nil
}

// PushOrderBy offers one ORDER BY key. A volatile equivalence class or a
// custom sort operator aborts pushdown of that key (spec.md §4.7 rule
// 7): the connector's notion of order can't be trusted to agree with
// the host's in either case.
func (p *SelectPlan) PushOrderBy(o HostOrdering) error {
	if p.anyLocalOp || o.Volatile || o.CustomOperator {
		p.anyLocalOp = true
		p.local.OrderBys = append(p.local.OrderBys, o.Expr)
		return nil
	}
	if (o.Dir == sqil.Asc && !o.SupportsAsc) || (o.Dir == sqil.Desc && !o.SupportsDesc) {
		p.anyLocalOp = true
		p.local.OrderBys = append(p.local.OrderBys, o.Expr)
		return nil
	}
	expr, err := convert(o.Expr, p.ctx)
	if err != nil {
		p.anyLocalOp = true
		p.local.OrderBys = append(p.local.OrderBys, o.Expr)
		return nil
	}
	res, err := p.apply(protocol.SelectOperation{Kind: protocol.SelectAddOrderBy, Ordering: sqil.Ordering{Type: o.Dir, Expr: expr}})
	if err != nil {
		return err
	}
	if res.Kind != protocol.PerformedRemotely {
		p.anyLocalOp = true
		p.local.OrderBys = append(p.local.OrderBys, o.Expr)
		return nil
	}
	if res.Cost != nil {
		p.cost = *res.Cost
	}
	return nil
}

// PushLimit offers a row limit. Only a constant, non-negative,
// 64-bit-coercible value is ever pushed (spec.md §4.7 rule 7); anything
// else (a parameter, an expression) is left for the host to enforce
// after reading every row back.
func (p *SelectPlan) PushLimit(h HostExpr) error {
	if p.anyLocalOp {
		p.local.Limit = nil
		return nil
	}
	n, ok := constUint64(h)
	if !ok {
		return nil
	}
	res, err := p.apply(protocol.SelectOperation{Kind: protocol.SelectSetRowLimit, RowLimit: n})
	if err != nil {
		return err
	}
	if res.Kind != protocol.PerformedRemotely {
		p.local.Limit = &n
		return nil
	}
	if res.Cost != nil {
		p.cost = *res.Cost
	}
	return nil
}

// PushOffset is PushLimit's counterpart for ROW OFFSET.
func (p *SelectPlan) PushOffset(h HostExpr) error {
	if p.anyLocalOp {
		return nil
	}
	n, ok := constUint64(h)
	if !ok {
		return nil
	}
	res, err := p.apply(protocol.SelectOperation{Kind: protocol.SelectSetRowOffset, RowOffset: n})
	if err != nil {
		return err
	}
	if res.Kind != protocol.PerformedRemotely {
		p.local.Offset = &n
		return nil
	}
	if res.Cost != nil {
		p.cost = *res.Cost
	}
	return nil
}

// SetRowLock pushes a row lock mode; ansilo's connection.rs treats this
// as always representable (it's a SQIL-level enum, not a host
// expression), so unlike the other operations there's no local fallback
// for it.
func (p *SelectPlan) SetRowLock(mode sqil.RowLockMode) error {
	res, err := p.apply(protocol.SelectOperation{Kind: protocol.SelectSetRowLockMode, RowLock: mode})
	if err != nil {
		return err
	}
	if res.Kind != protocol.PerformedRemotely {
		return fmt.Errorf("planner: row lock mode %d is not supported by the connector", mode)
	}
	return nil
}

// constUint64 reports whether h is a constant, non-negative integer
// value representable as a uint64.
func constUint64(h HostExpr) (uint64, bool) {
	if h.Kind != HostConst {
		return 0, false
	}
	v := h.Const
	switch v.Kind {
	case value.KindUInt8:
		n, ok := v.AsUInt8()
		return uint64(n), ok
	case value.KindUInt16:
		n, ok := v.AsUInt16()
		return uint64(n), ok
	case value.KindUInt32:
		n, ok := v.AsUInt32()
		return uint64(n), ok
	case value.KindUInt64:
		return v.AsUInt64()
	case value.KindInt8:
		n, ok := v.AsInt8()
		if !ok || n < 0 {
			return 0, false
		}
		return uint64(n), true
	case value.KindInt16:
		n, ok := v.AsInt16()
		if !ok || n < 0 {
			return 0, false
		}
		return uint64(n), true
	case value.KindInt32:
		n, ok := v.AsInt32()
		if !ok || n < 0 {
			return 0, false
		}
		return uint64(n), true
	case value.KindInt64:
		n, ok := v.AsInt64()
		if !ok || n < 0 {
			return 0, false
		}
		return uint64(n), true
	default:
		return 0, false
	}
}

// OutputColumn is one candidate output-tlist entry: an alias and the
// host expression it projects.
type OutputColumn struct {
	Alias string
	Expr  HostExpr
}

// UnionOutputColumns builds the final output-tlist per spec.md §4.7 rule
// 9: the union of columns referenced by the local residual, by the
// outer query's own target list, and by row-identity reconstruction,
// deduplicated by alias and offered in that priority order.
func UnionOutputColumns(groups ...[]OutputColumn) []OutputColumn {
	seen := make(map[string]bool)
	var out []OutputColumn
	for _, g := range groups {
		for _, c := range g {
			if seen[c.Alias] {
				continue
			}
			seen[c.Alias] = true
			out = append(out, c)
		}
	}
	return out
}
