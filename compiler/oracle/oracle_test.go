package oracle

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

func oracleCompile(t *testing.T, q sqil.Query) (string, []dialect.Param, error) {
	t.Helper()
	return New().Compile(q, catalog())
}

func TestOffsetFetchFirstPaging(t *testing.T) {
	limit := uint64(15)
	q := sqil.NewSelect(sqil.Select{
		From:     sqil.NewEntitySource("orders", "o"),
		Cols:     []sqil.SelectCol{{Alias: "id", Expr: sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "o", AttributeId: "id"})}},
		RowSkip:  30,
		RowLimit: &limit,
	})

	sqlText, _, err := oracleCompile(t, q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "o"."id" AS "id" FROM "orders" "o" OFFSET 30 ROWS FETCH FIRST 15 ROWS ONLY`, sqlText)
}

// TestNullSafeEqualUsesSysOpMapNonnull asserts Oracle's true null-safe
// equality via SYS_OP_MAP_NONNULL, Oracle's own syntax for what
// PostgreSQL/MSSQL render as "IS NOT DISTINCT FROM" (see DESIGN.md).
func TestNullSafeEqualUsesSysOpMapNonnull(t *testing.T) {
	q := sqil.NewSelect(sqil.Select{
		From: sqil.NewEntitySource("orders", "o"),
		Cols: []sqil.SelectCol{{Alias: "id", Expr: sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "o", AttributeId: "id"})}},
		Where: []sqil.Expr{
			sqil.BinaryExpr(sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "o", AttributeId: "id"}), sqil.NullSafeEqual, sqil.ConstantExpr(value.Int32(1))),
		},
	})

	sqlText, _, err := oracleCompile(t, q)
	require.NoError(t, err)
	assert.Contains(t, sqlText, "SYS_OP_MAP_NONNULL")
	assert.NotContains(t, sqlText, "IS NOT DISTINCT FROM")
}

func TestStringAggRendersListagg(t *testing.T) {
	q := sqil.NewSelect(sqil.Select{
		From: sqil.NewEntitySource("orders", "o"),
		Cols: []sqil.SelectCol{
			{Alias: "ids", Expr: sqil.AggregateCallExpr(sqil.StringAggCall(
				sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "o", AttributeId: "id"}),
				sqil.ConstantExpr(value.Utf8String(",")),
			))},
		},
	})

	sqlText, _, err := oracleCompile(t, q)
	require.NoError(t, err)
	assert.Contains(t, sqlText, "LISTAGG(")
	assert.Contains(t, sqlText, "WITHIN GROUP (ORDER BY NULL)")
}

func TestRegexpUnsupported(t *testing.T) {
	q := sqil.NewSelect(sqil.Select{
		From: sqil.NewEntitySource("orders", "o"),
		Cols: []sqil.SelectCol{{Alias: "id", Expr: sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "o", AttributeId: "id"})}},
		Where: []sqil.Expr{
			sqil.BinaryExpr(sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "o", AttributeId: "id"}), sqil.Regexp, sqil.ConstantExpr(value.Utf8String("^A"))),
		},
	})

	_, _, err := oracleCompile(t, q)
	require.Error(t, err)
	var unsupported *dialect.UnsupportedError
	require.ErrorAs(t, err, &unsupported)
}
