package sqil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqilrun/sqil/value"
)

func TestBulkInsertRows(t *testing.T) {
	b := BulkInsert{
		Target: NewEntitySource("orders", "o"),
		Cols:   []string{"id", "total"},
		Values: []Expr{
			ConstantExpr(value.Int32(1)), ConstantExpr(value.Int32(100)),
			ConstantExpr(value.Int32(2)), ConstantExpr(value.Int32(200)),
		},
	}

	rows := b.Rows()
	require.Len(t, rows, 2)
	assert.Len(t, rows[0], 2)
	assert.Len(t, rows[1], 2)
}

func TestBulkInsertRowsPanicsOnMismatch(t *testing.T) {
	b := BulkInsert{Cols: []string{"a", "b"}, Values: []Expr{ConstantExpr(value.Int32(1))}}
	assert.Panics(t, func() { b.Rows() })
}

func TestQueryGetEntitySources(t *testing.T) {
	q := NewSelect(Select{
		From: NewEntitySource("orders", "o"),
		Joins: []Join{
			{Type: JoinInner, Target: NewEntitySource("customers", "c")},
		},
	})

	sources := q.GetEntitySources()
	require.Len(t, sources, 2)
	assert.Equal(t, "o", sources[0].Alias)
	assert.Equal(t, "c", sources[1].Alias)

	src, ok := q.GetEntitySource("c")
	require.True(t, ok)
	assert.Equal(t, EntityId("customers"), src.EntityId)

	_, ok = q.GetEntitySource("missing")
	assert.False(t, ok)
}

func TestQueryWhereAbstractsOverKinds(t *testing.T) {
	cond := BinaryExpr(AttributeExpr(AttributeId{EntityAlias: "o", AttributeId: "id"}), Equal, ConstantExpr(value.Int32(1)))

	sel := NewSelect(Select{From: NewEntitySource("orders", "o"), Where: []Expr{cond}})
	assert.Len(t, sel.Where(), 1)

	del := NewDelete(Delete{Target: NewEntitySource("orders", "o"), Where: []Expr{cond}})
	assert.Len(t, del.Where(), 1)

	ins := NewInsert(Insert{Target: NewEntitySource("orders", "o")})
	assert.Nil(t, ins.Where())
}

func TestAsDowncasts(t *testing.T) {
	sel := NewSelect(Select{From: NewEntitySource("orders", "o")})
	s, ok := sel.AsSelect()
	require.True(t, ok)
	assert.Equal(t, EntityId("orders"), s.From.EntityId)

	_, ok = sel.AsInsert()
	assert.False(t, ok)
}

func TestAnyExprShortCircuits(t *testing.T) {
	param := ParameterExpr(1, value.Int32Type())
	attr := AttributeExpr(AttributeId{EntityAlias: "o", AttributeId: "id"})
	e := BinaryExpr(attr, Equal, param)

	visited := 0
	found := AnyExpr(e, func(x Expr) bool {
		visited++
		return x.Kind == ExprParameter
	})
	assert.True(t, found)
	assert.Equal(t, 3, visited) // root, left (attr), right (param) -- stops before descending further
}

func TestAttributeRefsDeduplicates(t *testing.T) {
	a := AttributeId{EntityAlias: "o", AttributeId: "id"}
	e1 := BinaryExpr(AttributeExpr(a), Equal, ConstantExpr(value.Int32(1)))
	e2 := UnaryExpr(IsNotNull, AttributeExpr(a))

	q := NewSelect(Select{
		From:  NewEntitySource("orders", "o"),
		Cols:  []SelectCol{{Alias: "id", Expr: AttributeExpr(a)}},
		Where: []Expr{e1, e2},
	})

	refs := AttributeRefs(q)
	assert.Len(t, refs, 1)
	assert.Equal(t, a, refs[0])
}

func TestFunctionCallChildren(t *testing.T) {
	s := ConstantExpr(value.Utf8String("hello"))
	start := ConstantExpr(value.UInt64(1))
	length := ConstantExpr(value.UInt64(3))
	call := FunctionCallExpr(SubstringCall(s, start, length))

	assert.Len(t, call.Children(), 3)
}

func TestCoalesceChildren(t *testing.T) {
	call := FunctionCallExpr(CoalesceCall(
		AttributeExpr(AttributeId{EntityAlias: "o", AttributeId: "nickname"}),
		AttributeExpr(AttributeId{EntityAlias: "o", AttributeId: "name"}),
	))
	assert.Len(t, call.Children(), 2)
}
