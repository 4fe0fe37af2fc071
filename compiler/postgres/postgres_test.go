package postgres

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqilrun/sqil/compiler/dialect"
	"github.com/sqilrun/sqil/sqil"
	"github.com/sqilrun/sqil/value"
)

func catalog() dialect.Catalog {
	return dialect.MapCatalog{
		"orders": sqil.NewEntityConfig("orders", []sqil.AttributeConfig{
			{Id: "id", Type: value.Int32Type()},
			{Id: "total", Type: value.DecimalType(value.DecimalOptions{Precision: 10, Scale: 2})},
		}, sqil.EntitySourceConfig{Table: "orders"}),
	}
}

func TestSelectWithWhereAndLimit(t *testing.T) {
	limit := uint64(10)
	q := sqil.NewSelect(sqil.Select{
		From: sqil.NewEntitySource("orders", "o"),
		Cols: []sqil.SelectCol{
			{Alias: "id", Expr: sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "o", AttributeId: "id"})},
		},
		Where: []sqil.Expr{
			sqil.BinaryExpr(sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "o", AttributeId: "total"}), sqil.Gt, sqil.ConstantExpr(value.Int32(100))),
		},
		RowLimit: &limit,
		RowSkip:  5,
	})

	sqlText, params, err := postgresCompile(t, q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "o"."id" AS "id" FROM "orders" AS "o" WHERE ("o"."total" > $1) LIMIT 10 OFFSET 5`, sqlText)
	require.Len(t, params, 1)
	assert.Equal(t, value.Int32(100), params[0].Value)
}

func TestNullSafeEqualIsDistinctFrom(t *testing.T) {
	q := sqil.NewSelect(sqil.Select{
		From: sqil.NewEntitySource("orders", "o"),
		Cols: []sqil.SelectCol{{Alias: "id", Expr: sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "o", AttributeId: "id"})}},
		Where: []sqil.Expr{
			sqil.BinaryExpr(sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "o", AttributeId: "id"}), sqil.NullSafeEqual, sqil.ConstantExpr(value.Int32(1))),
		},
	})

	sqlText, _, err := postgresCompile(t, q)
	require.NoError(t, err)
	assert.Contains(t, sqlText, `IS NOT DISTINCT FROM`)
}

func TestInsert(t *testing.T) {
	q := sqil.NewInsert(sqil.Insert{
		Target: sqil.NewEntitySource("orders", "o"),
		Cols: []sqil.InsertCol{
			{Attribute: "id", Expr: sqil.ConstantExpr(value.Int32(1))},
			{Attribute: "total", Expr: sqil.ConstantExpr(value.Decimal(decimal.NewFromInt(100)))},
		},
	})

	sqlText, params, err := postgresCompile(t, q)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "orders" ("id", "total") VALUES ($1, $2)`, sqlText)
	assert.Len(t, params, 2)
}

func TestForUpdate(t *testing.T) {
	q := sqil.NewSelect(sqil.Select{
		From:    sqil.NewEntitySource("orders", "o"),
		Cols:    []sqil.SelectCol{{Alias: "id", Expr: sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "o", AttributeId: "id"})}},
		RowLock: sqil.RowLockForUpdate,
	})

	sqlText, _, err := postgresCompile(t, q)
	require.NoError(t, err)
	assert.Contains(t, sqlText, "FOR UPDATE")
}

func postgresCompile(t *testing.T, q sqil.Query) (string, []dialect.Param, error) {
	t.Helper()
	return New().Compile(q, catalog())
}
