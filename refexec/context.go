package refexec

import (
	"fmt"

	"github.com/sqilrun/sqil/value"
)

// dcKind discriminates the shapes an expression may be evaluated against:
// a single cell, a flat row (or, for Attribute evaluated against a group,
// the column vector of one attribute across the group's rows), or a
// whole group of rows (the argument to an AggregateCall).
type dcKind uint8

const (
	dcCell dcKind = iota
	dcRow
	dcGroup
)

type dataContext struct {
	kind  dcKind
	cell  value.Value
	row   Row
	group []Row
}

func cellCtx(v value.Value) dataContext { return dataContext{kind: dcCell, cell: v} }
func rowCtx(r Row) dataContext          { return dataContext{kind: dcRow, row: r} }
func groupCtx(g []Row) dataContext      { return dataContext{kind: dcGroup, group: g} }

func (d dataContext) kindName() string {
	switch d.kind {
	case dcCell:
		return "cell"
	case dcRow:
		return "row"
	case dcGroup:
		return "row group"
	default:
		return "?"
	}
}

func (d dataContext) asCell() (value.Value, error) {
	if d.kind != dcCell {
		return value.Value{}, fmt.Errorf("refexec: found %s in cell context", d.kindName())
	}
	return d.cell, nil
}

func (d dataContext) asGroup() ([]Row, error) {
	if d.kind != dcGroup {
		return nil, fmt.Errorf("refexec: found %s in row group context", d.kindName())
	}
	return d.group, nil
}
