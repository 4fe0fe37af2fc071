package mssql

import (
	"testing"

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

func mssqlCompile(t *testing.T, q sqil.Query) (string, []dialect.Param, error) {
	t.Helper()
	return New().Compile(q, catalog())
}

func TestBracketQuoting(t *testing.T) {
	q := sqil.NewSelect(sqil.Select{
		From: sqil.NewEntitySource("orders", "o"),
		Cols: []sqil.SelectCol{{Alias: "id", Expr: sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "o", AttributeId: "id"})}},
	})

	sqlText, _, err := mssqlCompile(t, q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT [o].[id] AS [id] FROM [orders] AS [o]`, sqlText)
}

func TestSchemaQualifiedTableRef(t *testing.T) {
	cat := dialect.MapCatalog{
		"orders": sqil.NewEntityConfig("orders", []sqil.AttributeConfig{
			{Id: "id", Type: value.Int32Type()},
		}, sqil.EntitySourceConfig{Schema: "dbo", Table: "orders"}),
	}
	q := sqil.NewSelect(sqil.Select{
		From: sqil.NewEntitySource("orders", "o"),
		Cols: []sqil.SelectCol{{Alias: "id", Expr: sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "o", AttributeId: "id"})}},
	})

	sqlText, _, err := New().Compile(q, cat)
	require.NoError(t, err)
	assert.Equal(t, `SELECT [o].[id] AS [id] FROM [dbo].[orders] AS [o]`, sqlText)
}

func TestConcatRendersAsFunctionCall(t *testing.T) {
	q := sqil.NewSelect(sqil.Select{
		From: sqil.NewEntitySource("orders", "o"),
		Cols: []sqil.SelectCol{
			{Alias: "label", Expr: sqil.BinaryExpr(
				sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "o", AttributeId: "id"}), sqil.Concat,
				sqil.ConstantExpr(value.Utf8String("-x")),
			)},
		},
	})

	sqlText, _, err := mssqlCompile(t, q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT CONCAT([o].[id], ?) AS [label] FROM [orders] AS [o]`, sqlText)
}

// TestPagingSynthesizesOrderBy asserts that OFFSET/FETCH paging without an
// explicit ORDER BY gets "ORDER BY (SELECT NULL)" synthesized, since SQL
// Server's OFFSET...FETCH NEXT requires an ORDER BY clause to be present.
func TestPagingSynthesizesOrderBy(t *testing.T) {
	limit := uint64(20)
	q := sqil.NewSelect(sqil.Select{
		From:     sqil.NewEntitySource("orders", "o"),
		Cols:     []sqil.SelectCol{{Alias: "id", Expr: sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "o", AttributeId: "id"})}},
		RowSkip:  10,
		RowLimit: &limit,
	})

	sqlText, _, err := mssqlCompile(t, q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT [o].[id] AS [id] FROM [orders] AS [o] ORDER BY (SELECT NULL) OFFSET 10 ROWS FETCH NEXT 20 ROWS ONLY`, sqlText)
}

func TestPagingKeepsExplicitOrderBy(t *testing.T) {
	limit := uint64(20)
	q := sqil.NewSelect(sqil.Select{
		From: sqil.NewEntitySource("orders", "o"),
		Cols: []sqil.SelectCol{{Alias: "id", Expr: sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "o", AttributeId: "id"})}},
		OrderBys: []sqil.Ordering{
			{Type: sqil.Desc, Expr: sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "o", AttributeId: "total"})},
		},
		RowLimit: &limit,
	})

	sqlText, _, err := mssqlCompile(t, q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT [o].[id] AS [id] FROM [orders] AS [o] ORDER BY [o].[total] DESC OFFSET 0 ROWS FETCH NEXT 20 ROWS ONLY`, sqlText)
}

func TestForUpdateUsesUpdlockHint(t *testing.T) {
	q := sqil.NewSelect(sqil.Select{
		From:    sqil.NewEntitySource("orders", "o"),
		Cols:    []sqil.SelectCol{{Alias: "id", Expr: sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "o", AttributeId: "id"})}},
		RowLock: sqil.RowLockForUpdate,
	})

	sqlText, _, err := mssqlCompile(t, q)
	require.NoError(t, err)
	assert.Contains(t, sqlText, "WITH (UPDLOCK)")
	assert.NotContains(t, sqlText, "FOR UPDATE")
}

func TestStringAggRendersStringAggFunction(t *testing.T) {
	q := sqil.NewSelect(sqil.Select{
		From: sqil.NewEntitySource("orders", "o"),
		Cols: []sqil.SelectCol{
			{Alias: "ids", Expr: sqil.AggregateCallExpr(sqil.StringAggCall(
				sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "o", AttributeId: "id"}),
				sqil.ConstantExpr(value.Utf8String(",")),
			))},
		},
	})

	sqlText, _, err := mssqlCompile(t, q)
	require.NoError(t, err)
	assert.Contains(t, sqlText, "STRING_AGG(")
}
