package refexec

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqilrun/sqil/sqil"
	"github.com/sqilrun/sqil/value"
)

func dec(s string) decimal.Decimal     { return decimal.RequireFromString(s) }
func decValue(s string) value.Value    { return value.Decimal(dec(s)) }

func intAttr(id string) sqil.AttributeConfig {
	return sqil.AttributeConfig{Id: id, Type: value.Int32Type(), Nullable: false}
}

func strAttr(id string) sqil.AttributeConfig {
	return sqil.AttributeConfig{Id: id, Type: value.Utf8StringType(value.StringOptions{}), Nullable: false}
}

func peoplePetsCatalog() *Catalog {
	people := sqil.NewEntityConfig("people",
		[]sqil.AttributeConfig{intAttr("id"), strAttr("first_name"), strAttr("last_name")},
		sqil.EntitySourceConfig{Table: "people"},
	)
	pets := sqil.NewEntityConfig("pets",
		[]sqil.AttributeConfig{
			intAttr("id"),
			{Id: "owner_id", Type: value.Int32Type(), Nullable: true},
			strAttr("pet_name"),
		},
		sqil.EntitySourceConfig{Table: "pets"},
	)

	cat := NewCatalog([]sqil.EntityConfig{people, pets})
	cat.Seed("people",
		Row{value.Int32(1), value.Utf8String("Mary"), value.Utf8String("Jane"), value.UInt64(0)},
		Row{value.Int32(2), value.Utf8String("John"), value.Utf8String("Smith"), value.UInt64(1)},
		Row{value.Int32(3), value.Utf8String("Gary"), value.Utf8String("Gregson"), value.UInt64(2)},
	)
	cat.Seed("pets",
		Row{value.Int32(1), value.Int32(1), value.Utf8String("Pepper"), value.UInt64(0)},
		Row{value.Int32(2), value.Int32(1), value.Utf8String("Salt"), value.UInt64(1)},
		Row{value.Int32(3), value.Int32(3), value.Utf8String("Relish"), value.UInt64(2)},
		Row{value.Int32(4), value.Null(), value.Utf8String("Luna"), value.UInt64(3)},
	)
	return cat
}

// TestLeftJoinProducesExpectedRows mirrors spec.md §8 scenario 5: people
// LEFT JOIN pets on people.id = pets.owner_id must yield exactly four
// rows in a specific order, with John's row null-padded since Luna's
// owner_id is Null rather than 2.
func TestLeftJoinProducesExpectedRows(t *testing.T) {
	cat := peoplePetsCatalog()

	people := sqil.NewEntitySource("people", "p")
	pets := sqil.NewEntitySource("pets", "q")

	q := sqil.NewSelect(sqil.Select{
		From: people,
		Cols: []sqil.SelectCol{
			{Alias: "first_name", Expr: sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "p", AttributeId: "first_name"})},
			{Alias: "last_name", Expr: sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "p", AttributeId: "last_name"})},
			{Alias: "pet_name", Expr: sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "q", AttributeId: "pet_name"})},
		},
		Joins: []sqil.Join{
			{
				Type:   sqil.JoinLeft,
				Target: pets,
				Conds: []sqil.Expr{
					sqil.BinaryExpr(
						sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "p", AttributeId: "id"}),
						sqil.Equal,
						sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "q", AttributeId: "owner_id"}),
					),
				},
			},
		},
	})

	res, err := NewExecutor(cat, q, nil).Run()
	require.NoError(t, err)
	require.Len(t, res.Rows, 4)

	want := [][3]string{
		{"Mary", "Jane", "Pepper"},
		{"Mary", "Jane", "Salt"},
		{"Gary", "Gregson", "Relish"},
		{"John", "Smith", ""},
	}
	for i, row := range res.Rows {
		first, _ := row[0].AsString()
		last, _ := row[1].AsString()
		assert.Equal(t, want[i][0], first)
		assert.Equal(t, want[i][1], last)
		if want[i][2] == "" {
			assert.True(t, row[2].IsNull(), "row %d pet_name should be null", i)
		} else {
			pet, _ := row[2].AsString()
			assert.Equal(t, want[i][2], pet)
		}
	}
}

func ledgerCatalog() (*Catalog, sqil.EntitySource) {
	entries := sqil.NewEntityConfig("entries",
		[]sqil.AttributeConfig{strAttr("account"), {Id: "amount", Type: value.DecimalType(value.DecimalOptions{}), Nullable: false}},
		sqil.EntitySourceConfig{Table: "entries"},
	)
	cat := NewCatalog([]sqil.EntityConfig{entries})
	cat.Seed("entries",
		Row{value.Utf8String("a"), decValue("10"), value.UInt64(0)},
		Row{value.Utf8String("a"), decValue("5"), value.UInt64(1)},
		Row{value.Utf8String("b"), decValue("7"), value.UInt64(2)},
	)
	return cat, sqil.NewEntitySource("entries", "e")
}

func TestGroupByAggregatesPerGroup(t *testing.T) {
	cat, src := ledgerCatalog()

	account := sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "e", AttributeId: "account"})
	amount := sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "e", AttributeId: "amount"})

	q := sqil.NewSelect(sqil.Select{
		From: src,
		Cols: []sqil.SelectCol{
			{Alias: "account", Expr: account},
			{Alias: "total", Expr: sqil.AggregateCallExpr(sqil.SimpleAggregateCall(sqil.AggSum, amount))},
		},
		GroupBys: []sqil.Expr{account},
		OrderBys: []sqil.Ordering{{Type: sqil.Asc, Expr: account}},
	})

	res, err := NewExecutor(cat, q, nil).Run()
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	accA, _ := res.Rows[0][0].AsString()
	totalA, _ := res.Rows[0][1].AsDecimal()
	assert.Equal(t, "a", accA)
	assert.True(t, totalA.Equal(dec("15")))

	accB, _ := res.Rows[1][0].AsString()
	totalB, _ := res.Rows[1][1].AsDecimal()
	assert.Equal(t, "b", accB)
	assert.True(t, totalB.Equal(dec("7")))
}

// TestTypeInferenceSoundness checks the spec.md §8 invariant
// typeof(evaluate(ctx, e)) ⊆ evaluate_type(e) across a handful of
// arithmetic and cast expressions, including the float multiply/divide
// case this rewrite special-cased to keep the invariant sound (see
// DESIGN.md).
func TestTypeInferenceSoundness(t *testing.T) {
	cat, src := ledgerCatalog()
	q := sqil.NewSelect(sqil.Select{From: src, Cols: nil})
	e := NewExecutor(cat, q, nil)

	cases := []sqil.Expr{
		sqil.BinaryExpr(sqil.ConstantExpr(value.Int32(2)), sqil.Add, sqil.ConstantExpr(value.Int32(3))),
		sqil.BinaryExpr(sqil.ConstantExpr(value.Float32(2)), sqil.Multiply, sqil.ConstantExpr(value.Float32(3))),
		sqil.BinaryExpr(sqil.ConstantExpr(value.Int64(2)), sqil.Divide, sqil.ConstantExpr(value.Int64(4))),
	}

	for _, expr := range cases {
		out, err := e.evaluate(cellCtx(value.Null()), expr)
		require.NoError(t, err)
		cell, err := out.asCell()
		require.NoError(t, err)

		wantType, err := e.evaluateType(expr)
		require.NoError(t, err)

		assert.Equal(t, wantType.Kind, cell.TypeOf().Kind, "evaluate/evaluate_type disagree for %+v", expr)
	}
}

func TestDivisionByZeroErrors(t *testing.T) {
	cat, src := ledgerCatalog()
	q := sqil.NewSelect(sqil.Select{From: src})
	e := NewExecutor(cat, q, nil)

	expr := sqil.BinaryExpr(sqil.ConstantExpr(value.Int32(1)), sqil.Divide, sqil.ConstantExpr(value.Int32(0)))
	_, err := e.evaluate(cellCtx(value.Null()), expr)
	require.Error(t, err)
}

func TestSubstringIsStartPlusLength(t *testing.T) {
	cat, src := ledgerCatalog()
	q := sqil.NewSelect(sqil.Select{From: src})
	e := NewExecutor(cat, q, nil)

	call := sqil.SubstringCall(
		sqil.ConstantExpr(value.Utf8String("abcdef")),
		sqil.ConstantExpr(value.UInt32(2)),
		sqil.ConstantExpr(value.UInt32(3)),
	)
	out, err := e.evaluate(cellCtx(value.Null()), sqil.FunctionCallExpr(call))
	require.NoError(t, err)
	cell, err := out.asCell()
	require.NoError(t, err)
	s, _ := cell.AsString()
	assert.Equal(t, "bcd", s)
}

func TestInsertThenSelectRoundTrips(t *testing.T) {
	cat, src := ledgerCatalog()

	ins := sqil.NewInsert(sqil.Insert{
		Target: src,
		Cols: []sqil.InsertCol{
			{Attribute: "account", Expr: sqil.ConstantExpr(value.Utf8String("c"))},
			{Attribute: "amount", Expr: sqil.ConstantExpr(decValue("3"))},
		},
	})
	_, err := NewExecutor(cat, ins, nil).Run()
	require.NoError(t, err)

	account := sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "e", AttributeId: "account"})
	q := sqil.NewSelect(sqil.Select{
		From: sqil.NewEntitySource("entries", "e"),
		Cols: []sqil.SelectCol{{Alias: "account", Expr: account}},
		Where: []sqil.Expr{
			sqil.BinaryExpr(account, sqil.Equal, sqil.ConstantExpr(value.Utf8String("c"))),
		},
	})
	res, err := NewExecutor(cat, q, nil).Run()
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	got, _ := res.Rows[0][0].AsString()
	assert.Equal(t, "c", got)
}

func TestDeleteRemovesMatchingRows(t *testing.T) {
	cat, src := ledgerCatalog()

	account := sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "e", AttributeId: "account"})
	del := sqil.NewDelete(sqil.Delete{
		Target: src,
		Where:  []sqil.Expr{sqil.BinaryExpr(account, sqil.Equal, sqil.ConstantExpr(value.Utf8String("b")))},
	})
	_, err := NewExecutor(cat, del, nil).Run()
	require.NoError(t, err)

	q := sqil.NewSelect(sqil.Select{
		From: sqil.NewEntitySource("entries", "e"),
		Cols: []sqil.SelectCol{{Alias: "account", Expr: account}},
	})
	res, err := NewExecutor(cat, q, nil).Run()
	require.NoError(t, err)
	for _, row := range res.Rows {
		acc, _ := row[0].AsString()
		assert.NotEqual(t, "b", acc)
	}
}
