package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sqilrun/sqil/refexec"
	"github.com/sqilrun/sqil/sqil"
	"github.com/sqilrun/sqil/value"
	"github.com/sqilrun/sqil/wire"
)

// RefConnector adapts a refexec.Catalog into a Connector, letting a
// Session drive the dialect-independent reference executor end to end
// exactly as ansilo-pg/src/fdw/connection.rs's own test module drives its
// MemoryConnector: no dialect compiler, no real remote round-trip, just
// the in-memory semantics oracle standing in for "the connector". This is
// also what cmd/sqilrun's demo mode runs against.
//
// Every operation answers PerformedRemotely: unlike a real dialect
// connector (which may reject an operator/function/cast it cannot render,
// see compiler/dialect), the reference executor interprets every SQIL
// construct, so it has nothing to reject. Per-dialect Unsupported-ness is
// exercised by the compiler package's own error paths, not here (see
// DESIGN.md).
type RefConnector struct {
	catalog *refexec.Catalog
}

func NewRefConnector(catalog *refexec.Catalog) *RefConnector {
	return &RefConnector{catalog: catalog}
}

func (c *RefConnector) costOf(id sqil.EntityId) OperationCost {
	if n, ok := c.catalog.RowCount(id); ok {
		rows := uint64(n)
		return OperationCost{Rows: &rows}
	}
	return OperationCost{}
}

func (c *RefConnector) requireEntity(id sqil.EntityId) error {
	if _, ok := c.catalog.Config(id); !ok {
		return &refexec.CatalogError{EntityId: id, Reason: "not found in catalog"}
	}
	return nil
}

func (c *RefConnector) EstimateSize(id sqil.EntityId) (OperationCost, error) {
	if err := c.requireEntity(id); err != nil {
		return OperationCost{}, err
	}
	return c.costOf(id), nil
}

func (c *RefConnector) CreateSelect(src sqil.EntitySource) (OperationCost, sqil.Select, error) {
	if err := c.requireEntity(src.EntityId); err != nil {
		return OperationCost{}, sqil.Select{}, err
	}
	return c.costOf(src.EntityId), sqil.Select{From: src}, nil
}

func (c *RefConnector) ApplySelect(sel *sqil.Select, op SelectOperation) (QueryOperationResult, error) {
	switch op.Kind {
	case SelectAddColumn:
		sel.Cols = append(sel.Cols, sqil.SelectCol{Alias: op.ColAlias, Expr: op.Expr})
	case SelectAddWhere:
		sel.Where = append(sel.Where, op.Expr)
	case SelectAddJoin:
		if err := c.requireEntity(op.Join.Target.EntityId); err != nil {
			return QueryOperationResult{}, err
		}
		sel.Joins = append(sel.Joins, op.Join)
	case SelectAddGroupBy:
		sel.GroupBys = append(sel.GroupBys, op.Expr)
	case SelectAddOrderBy:
		sel.OrderBys = append(sel.OrderBys, op.Ordering)
	case SelectSetRowLimit:
		limit := op.RowLimit
		sel.RowLimit = &limit
	case SelectSetRowOffset:
		sel.RowSkip = op.RowOffset
	case SelectSetRowLockMode:
		sel.RowLock = op.RowLock
	default:
		return QueryOperationResult{}, fmt.Errorf("protocol: unknown select operation %d", op.Kind)
	}
	cost := c.costOf(sel.From.EntityId)
	return QueryOperationResult{Kind: PerformedRemotely, Cost: &cost}, nil
}

func (c *RefConnector) CreateInsert(target sqil.EntitySource) (OperationCost, sqil.Insert, error) {
	if err := c.requireEntity(target.EntityId); err != nil {
		return OperationCost{}, sqil.Insert{}, err
	}
	return c.costOf(target.EntityId), sqil.Insert{Target: target}, nil
}

func (c *RefConnector) ApplyInsert(ins *sqil.Insert, op InsertOperation) (QueryOperationResult, error) {
	switch op.Kind {
	case InsertAddColumn:
		ins.Cols = append(ins.Cols, sqil.InsertCol{Attribute: op.Attribute, Expr: op.Expr})
	default:
		return QueryOperationResult{}, fmt.Errorf("protocol: unknown insert operation %d", op.Kind)
	}
	cost := c.costOf(ins.Target.EntityId)
	return QueryOperationResult{Kind: PerformedRemotely, Cost: &cost}, nil
}

func (c *RefConnector) CreateUpdate(target sqil.EntitySource) (OperationCost, sqil.Update, error) {
	if err := c.requireEntity(target.EntityId); err != nil {
		return OperationCost{}, sqil.Update{}, err
	}
	return c.costOf(target.EntityId), sqil.Update{Target: target}, nil
}

func (c *RefConnector) ApplyUpdate(upd *sqil.Update, op UpdateOperation) (QueryOperationResult, error) {
	switch op.Kind {
	case UpdateAddSet:
		upd.Cols = append(upd.Cols, sqil.InsertCol{Attribute: op.Attribute, Expr: op.Expr})
	case UpdateAddWhere:
		upd.Where = append(upd.Where, op.Expr)
	default:
		return QueryOperationResult{}, fmt.Errorf("protocol: unknown update operation %d", op.Kind)
	}
	cost := c.costOf(upd.Target.EntityId)
	return QueryOperationResult{Kind: PerformedRemotely, Cost: &cost}, nil
}

func (c *RefConnector) CreateDelete(target sqil.EntitySource) (OperationCost, sqil.Delete, error) {
	if err := c.requireEntity(target.EntityId); err != nil {
		return OperationCost{}, sqil.Delete{}, err
	}
	return c.costOf(target.EntityId), sqil.Delete{Target: target}, nil
}

func (c *RefConnector) ApplyDelete(del *sqil.Delete, op DeleteOperation) (QueryOperationResult, error) {
	switch op.Kind {
	case DeleteAddWhere:
		del.Where = append(del.Where, op.Expr)
	default:
		return QueryOperationResult{}, fmt.Errorf("protocol: unknown delete operation %d", op.Kind)
	}
	cost := c.costOf(del.Target.EntityId)
	return QueryOperationResult{Kind: PerformedRemotely, Cost: &cost}, nil
}

// explainPlan is the JSON shape Explain renders; verbose adds the
// attribute references the query touches.
type explainPlan struct {
	Kind       string   `json:"kind"`
	Sources    []string `json:"sources"`
	Columns    int      `json:"columns,omitempty"`
	Joins      int      `json:"joins,omitempty"`
	Where      int      `json:"where,omitempty"`
	GroupBys   int      `json:"group_bys,omitempty"`
	OrderBys   int      `json:"order_bys,omitempty"`
	Attributes []string `json:"attributes,omitempty"`
}

func (c *RefConnector) Explain(query sqil.Query, verbose bool) (string, error) {
	plan := explainPlan{Kind: queryKindName(query.Kind)}
	for _, s := range query.GetEntitySources() {
		plan.Sources = append(plan.Sources, fmt.Sprintf("%s AS %s", s.EntityId, s.Alias))
	}
	if sel, ok := query.AsSelect(); ok {
		plan.Columns = len(sel.Cols)
		plan.Joins = len(sel.Joins)
		plan.Where = len(sel.Where)
		plan.GroupBys = len(sel.GroupBys)
		plan.OrderBys = len(sel.OrderBys)
	} else {
		plan.Where = len(query.Where())
	}
	if verbose {
		for _, a := range sqil.AttributeRefs(query) {
			plan.Attributes = append(plan.Attributes, fmt.Sprintf("%s.%s", a.EntityAlias, a.AttributeId))
		}
	}
	out, err := json.Marshal(plan)
	if err != nil {
		return "", fmt.Errorf("protocol: failed to encode explain plan: %w", err)
	}
	return string(out), nil
}

func queryKindName(k sqil.QueryKind) string {
	switch k {
	case sqil.QuerySelect:
		return "select"
	case sqil.QueryInsert:
		return "insert"
	case sqil.QueryBulkInsert:
		return "bulk_insert"
	case sqil.QueryUpdate:
		return "update"
	case sqil.QueryDelete:
		return "delete"
	default:
		return "?"
	}
}

func (c *RefConnector) Prepare(query sqil.Query) (QueryHandle, error) {
	seen := make(map[uint32]bool)
	var specs []ParamSpec
	sqil.WalkQuery(query, func(e sqil.Expr) {
		if e.Kind == sqil.ExprParameter && !seen[e.ParamId] {
			seen[e.ParamId] = true
			specs = append(specs, ParamSpec{Id: e.ParamId, Type: e.ParamType})
		}
	})
	return &refHandle{catalog: c.catalog, query: query, specs: specs}, nil
}

// refHandle is the QueryHandle RefConnector.Prepare returns: params are
// decoded from wire-framed bytes in WriteParams, in the declared order,
// and handed to a fresh refexec.Executor at Execute time.
type refHandle struct {
	catalog *refexec.Catalog
	query   sqil.Query
	specs   []ParamSpec
	params  map[uint32]value.Value
}

func (h *refHandle) Structure() QueryInputStructure { return QueryInputStructure{Params: h.specs} }

func (h *refHandle) WriteParams(data []byte) error {
	types := make([]value.Type, len(h.specs))
	for i, p := range h.specs {
		types[i] = p.Type
	}
	r := wire.NewReader(bytes.NewReader(data), types)
	params := make(map[uint32]value.Value, len(h.specs))
	for _, p := range h.specs {
		v, ok, err := r.ReadValue()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("protocol: write_params: expected %d parameter values, stream ended early", len(h.specs))
		}
		params[p.Id] = v
	}
	h.params = params
	return nil
}

func (h *refHandle) Execute() (ResultCursor, error) {
	return runCursor(h.catalog, h.query, h.params)
}

// refCursor buffers an already-run result set re-encoded through the wire
// codec, so Read(len) behaves exactly as it would streaming from a real
// remote: framed bytes, consumed in caller-chosen chunks.
type refCursor struct {
	catalog *refexec.Catalog
	query   sqil.Query
	params  map[uint32]value.Value

	row RowStructure
	buf *bytes.Buffer
}

func runCursor(catalog *refexec.Catalog, query sqil.Query, params map[uint32]value.Value) (*refCursor, error) {
	res, err := refexec.NewExecutor(catalog, query, params).Run()
	if err != nil {
		return nil, err
	}

	types := make([]value.Type, len(res.Columns))
	cols := make([]ColumnSpec, len(res.Columns))
	for i, c := range res.Columns {
		types[i] = c.Type
		cols[i] = ColumnSpec{Name: c.Name, Type: c.Type}
	}

	var buf bytes.Buffer
	w := wire.NewWriter(&buf, types)
	for _, row := range res.Rows {
		for _, v := range row {
			if err := w.WriteValue(v); err != nil {
				return nil, err
			}
		}
	}

	return &refCursor{catalog: catalog, query: query, params: params, row: RowStructure{Cols: cols}, buf: &buf}, nil
}

func (c *refCursor) Structure() RowStructure { return c.row }

func (c *refCursor) Read(p []byte) (int, error) {
	n, err := c.buf.Read(p)
	if err == io.EOF {
		return n, nil
	}
	return n, err
}

func (c *refCursor) Restart() error {
	fresh, err := runCursor(c.catalog, c.query, c.params)
	if err != nil {
		return err
	}
	c.buf = fresh.buf
	c.row = fresh.row
	return nil
}
