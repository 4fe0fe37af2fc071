package planner_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqilrun/sqil/planner"
	"github.com/sqilrun/sqil/protocol"
	"github.com/sqilrun/sqil/refexec"
	"github.com/sqilrun/sqil/sqil"
	"github.com/sqilrun/sqil/value"
)

func peopleCatalog() *refexec.Catalog {
	people := sqil.NewEntityConfig("people",
		[]sqil.AttributeConfig{
			{Id: "first_name", Type: value.Utf8StringType(value.StringOptions{}), Nullable: false},
			{Id: "last_name", Type: value.Utf8StringType(value.StringOptions{}), Nullable: false},
			{Id: "age", Type: value.Int32Type(), Nullable: false},
		},
		sqil.EntitySourceConfig{Table: "people"},
	)
	cat := refexec.NewCatalog([]sqil.EntityConfig{people})
	cat.Seed("people",
		refexec.Row{value.Utf8String("Mary"), value.Utf8String("Jane"), value.Int32(34), value.UInt64(0)},
		refexec.Row{value.Utf8String("John"), value.Utf8String("Smith"), value.Int32(41), value.UInt64(1)},
		refexec.Row{value.Utf8String("Gary"), value.Utf8String("Gregson"), value.Int32(29), value.UInt64(2)},
	)
	return cat
}

func newPlanner(cat *refexec.Catalog) *planner.Planner {
	return planner.NewPlanner(protocol.NewRefConnector(cat), planner.NewPlanCache(64, time.Minute), nil)
}

// TestSelectPlanPushesConvertibleWhere mirrors a simple equality filter
// pushing all the way down: the reference connector accepts every SQIL
// construct, so a convertible WHERE clause should always push.
func TestSelectPlanPushesConvertibleWhere(t *testing.T) {
	pl := newPlanner(peopleCatalog())
	plan, err := pl.NewSelect(sqil.NewEntitySource("people", "p"), "people", nil)
	require.NoError(t, err)

	require.NoError(t, plan.AddColumn("first_name", planner.HostVarExpr("people", "first_name")))
	require.NoError(t, plan.PushWhere(planner.HostBinaryExpr(
		planner.HostVarExpr("people", "age"),
		sqil.Gt,
		planner.HostConstExpr(value.Int32(30)),
	)))

	assert.Empty(t, plan.Local().Where)

	structure, err := plan.Prepare()
	require.NoError(t, err)
	assert.Empty(t, structure.Params)

	require.NoError(t, plan.WriteParams())
	row, err := plan.Execute()
	require.NoError(t, err)
	require.Len(t, row.Cols, 1)
}

// TestSelectPlanUnconvertibleWhereGoesLocalAndPoisonsLaterWhere exercises
// spec.md §4.7 rule 2: once one WHERE conjunct can't push, nothing after
// it in the WHERE clause can either, even if it would have on its own.
func TestSelectPlanUnconvertibleWhereGoesLocalAndPoisonsLaterWhere(t *testing.T) {
	pl := newPlanner(peopleCatalog())
	plan, err := pl.NewSelect(sqil.NewEntitySource("people", "p"), "people", nil)
	require.NoError(t, err)

	// references a relation not part of this query: always unconvertible.
	require.NoError(t, plan.PushWhere(planner.HostVarExpr("other", "x")))
	require.NoError(t, plan.PushWhere(planner.HostBinaryExpr(
		planner.HostVarExpr("people", "age"),
		sqil.Gt,
		planner.HostConstExpr(value.Int32(30)),
	)))

	assert.Len(t, plan.Local().Where, 2)
}

// TestSelectPlanJoinAfterLocalWhereStaysLocal exercises spec.md §4.7
// rule 4: JOIN cannot push once WHERE has gone local.
func TestSelectPlanJoinAfterLocalWhereStaysLocal(t *testing.T) {
	pl := newPlanner(peopleCatalog())
	plan, err := pl.NewSelect(sqil.NewEntitySource("people", "p"), "people", nil)
	require.NoError(t, err)

	require.NoError(t, plan.PushWhere(planner.HostVarExpr("other", "x")))
	err = plan.PushJoin(planner.HostJoin{
		Type:   sqil.JoinInner,
		Target: sqil.NewEntitySource("people", "q"),
		Conds: []planner.HostExpr{planner.HostBinaryExpr(
			planner.HostVarExpr("people", "age"),
			sqil.Equal,
			planner.HostVarExpr("people", "age"),
		)},
	}, true)
	require.NoError(t, err)

	assert.NotEmpty(t, plan.Local().Where)
}

// TestSelectPlanCrossProductNeverPushes exercises spec.md §4.7 rule 4: a
// join with no conditions is always retained locally.
func TestSelectPlanCrossProductNeverPushes(t *testing.T) {
	pl := newPlanner(peopleCatalog())
	plan, err := pl.NewSelect(sqil.NewEntitySource("people", "p"), "people", nil)
	require.NoError(t, err)

	before := plan.Cost()
	err = plan.PushJoin(planner.HostJoin{
		Type:   sqil.JoinInner,
		Target: sqil.NewEntitySource("people", "q"),
	}, true)
	require.NoError(t, err)
	assert.Equal(t, before, plan.Cost()) // never offered to the connector, so cost is untouched
}

// TestSelectPlanGroupByAbortsAfterLocalOp exercises spec.md §4.7 rule 6:
// GROUP BY cannot push once any earlier non-column-addition op went
// local.
func TestSelectPlanGroupByAbortsAfterLocalOp(t *testing.T) {
	pl := newPlanner(peopleCatalog())
	plan, err := pl.NewSelect(sqil.NewEntitySource("people", "p"), "people", nil)
	require.NoError(t, err)

	require.NoError(t, plan.PushWhere(planner.HostVarExpr("other", "x")))
	require.NoError(t, plan.PushGroupBy(planner.HostVarExpr("people", "last_name")))

	assert.Len(t, plan.Local().GroupBys, 1)
}

// TestSelectPlanGroupByWithParameterGoesLocal exercises spec.md §4.7 rule
// 6: a grouping expression referencing a parameter must stay local even
// though it would otherwise convert cleanly.
func TestSelectPlanGroupByWithParameterGoesLocal(t *testing.T) {
	pl := newPlanner(peopleCatalog())
	plan, err := pl.NewSelect(sqil.NewEntitySource("people", "p"), "people", nil)
	require.NoError(t, err)

	expr := planner.HostBinaryExpr(
		planner.HostVarExpr("people", "age"),
		sqil.Add,
		planner.HostParamExpr("limitParam", value.Int32Type()),
	)
	require.NoError(t, plan.PushGroupBy(expr))
	assert.Len(t, plan.Local().GroupBys, 1)
}

// TestSelectPlanOrderByVolatileStaysLocal exercises spec.md §4.7 rule 7.
func TestSelectPlanOrderByVolatileStaysLocal(t *testing.T) {
	pl := newPlanner(peopleCatalog())
	plan, err := pl.NewSelect(sqil.NewEntitySource("people", "p"), "people", nil)
	require.NoError(t, err)

	require.NoError(t, plan.PushOrderBy(planner.HostOrdering{
		Expr:     planner.HostVarExpr("people", "age"),
		Dir:      sqil.Asc,
		Volatile: true,
	}))
	assert.Len(t, plan.Local().OrderBys, 1)
}

// TestSelectPlanOrderByConvertiblePushes is the positive counterpart.
func TestSelectPlanOrderByConvertiblePushes(t *testing.T) {
	pl := newPlanner(peopleCatalog())
	plan, err := pl.NewSelect(sqil.NewEntitySource("people", "p"), "people", nil)
	require.NoError(t, err)

	err = plan.PushOrderBy(planner.HostOrdering{
		Expr:        planner.HostVarExpr("people", "age"),
		Dir:         sqil.Desc,
		SupportsAsc: true, SupportsDesc: true,
	})
	require.NoError(t, err)
	assert.Empty(t, plan.Local().OrderBys)
}

// TestSelectPlanPushLimitConstant exercises spec.md §4.7 rule 7: only a
// constant limit is pushed.
func TestSelectPlanPushLimitConstant(t *testing.T) {
	pl := newPlanner(peopleCatalog())
	plan, err := pl.NewSelect(sqil.NewEntitySource("people", "p"), "people", nil)
	require.NoError(t, err)

	require.NoError(t, plan.PushLimit(planner.HostConstExpr(value.UInt64(2))))
	assert.Nil(t, plan.Local().Limit)
}

// TestSelectPlanPushLimitNonConstantStaysLocal covers the negative case:
// a parameter can't be pushed as a limit.
func TestSelectPlanPushLimitNonConstantStaysLocal(t *testing.T) {
	pl := newPlanner(peopleCatalog())
	plan, err := pl.NewSelect(sqil.NewEntitySource("people", "p"), "people", nil)
	require.NoError(t, err)

	require.NoError(t, plan.PushLimit(planner.HostParamExpr("n", value.UInt64Type())))
	assert.Nil(t, plan.Local().Limit)
}

// TestSelectPlanShapeReplay exercises PlanCache/PlanShape: a second plan
// over the same query shape, replaying the first plan's decisions,
// reaches the same remote/local split without re-deriving it.
func TestSelectPlanShapeReplay(t *testing.T) {
	cat := peopleCatalog()
	pl := newPlanner(cat)

	where := planner.HostBinaryExpr(
		planner.HostVarExpr("people", "age"),
		sqil.Gt,
		planner.HostConstExpr(value.Int32(30)),
	)

	first, err := pl.NewSelect(sqil.NewEntitySource("people", "p"), "people", nil)
	require.NoError(t, err)
	require.NoError(t, first.AddColumn("first_name", planner.HostVarExpr("people", "first_name")))
	require.NoError(t, first.PushWhere(where))
	shape := first.Shape()
	require.NotNil(t, shape)
	assert.Equal(t, []bool{true}, shape.Pushed)

	second, err := pl.NewSelect(sqil.NewEntitySource("people", "p"), "people", shape)
	require.NoError(t, err)
	require.NoError(t, second.AddColumn("first_name", planner.HostVarExpr("people", "first_name")))
	require.NoError(t, second.PushWhere(where))
	assert.Empty(t, second.Local().Where)
	assert.Nil(t, second.Shape())
}

// TestPlanInsertWithTriggerColumn exercises spec.md §4.7 rule 8: a
// trigger-required column not present in the statement's own column
// list gets a synthetic parameter slot.
func TestPlanInsertWithTriggerColumn(t *testing.T) {
	cat := peopleCatalog()
	pl := newPlanner(cat)

	plan, err := pl.PlanInsert(
		sqil.NewEntitySource("people", "p"), "people",
		[]planner.HostInsertCol{
			{Attribute: "first_name", Expr: planner.HostConstExpr(value.Utf8String("New"))},
			{Attribute: "last_name", Expr: planner.HostConstExpr(value.Utf8String("Person"))},
		},
		[]string{"age"},
		func(attr string) value.Type { return value.Int32Type() },
	)
	require.NoError(t, err)

	structure, err := plan.Prepare()
	require.NoError(t, err)
	require.Len(t, structure.Params, 1)

	plan.Context().BindParam("trigger:p.age", func() (value.Value, error) {
		return value.Int32(99), nil
	})
	require.NoError(t, plan.WriteParams())
	_, err = plan.Execute()
	require.NoError(t, err)

	n, ok := cat.RowCount("people")
	require.True(t, ok)
	assert.Equal(t, 4, n)
}

// TestPlanUpdateSetThenWhere exercises spec.md §4.7 rule 8: SET columns
// are offered before the row-identity WHERE.
func TestPlanUpdateSetThenWhere(t *testing.T) {
	cat := peopleCatalog()
	pl := newPlanner(cat)

	plan, err := pl.PlanUpdate(
		sqil.NewEntitySource("people", "p"), "people",
		[]planner.HostSetCol{{Attribute: "age", Expr: planner.HostConstExpr(value.Int32(100))}},
		func(alias string) ([]planner.HostExpr, error) {
			return []planner.HostExpr{planner.HostBinaryExpr(
				planner.HostVarExpr("people", "first_name"),
				sqil.Equal,
				planner.HostConstExpr(value.Utf8String("Mary")),
			)}, nil
		},
	)
	require.NoError(t, err)

	_, err = plan.Prepare()
	require.NoError(t, err)
	require.NoError(t, plan.WriteParams())
	_, err = plan.Execute()
	require.NoError(t, err)
}

// TestPlanDeleteRowIdentityOnly exercises PlanDelete's WHERE-only shape.
func TestPlanDeleteRowIdentityOnly(t *testing.T) {
	cat := peopleCatalog()
	pl := newPlanner(cat)

	plan, err := pl.PlanDelete(
		sqil.NewEntitySource("people", "p"), "people",
		func(alias string) ([]planner.HostExpr, error) {
			return []planner.HostExpr{planner.HostBinaryExpr(
				planner.HostVarExpr("people", "first_name"),
				sqil.Equal,
				planner.HostConstExpr(value.Utf8String("Gary")),
			)}, nil
		},
	)
	require.NoError(t, err)

	_, err = plan.Prepare()
	require.NoError(t, err)
	require.NoError(t, plan.WriteParams())
	_, err = plan.Execute()
	require.NoError(t, err)

	n, ok := cat.RowCount("people")
	require.True(t, ok)
	assert.Equal(t, 2, n)
}

func TestCanDirectModify(t *testing.T) {
	assert.True(t, planner.CanDirectModify(false, false, false, true))
	assert.False(t, planner.CanDirectModify(true, false, false, true))
	assert.False(t, planner.CanDirectModify(false, true, false, true))
	assert.False(t, planner.CanDirectModify(false, false, true, true))
	assert.False(t, planner.CanDirectModify(false, false, false, false))
}

func TestUnionOutputColumns(t *testing.T) {
	a := []planner.OutputColumn{{Alias: "x"}, {Alias: "y"}}
	b := []planner.OutputColumn{{Alias: "y"}, {Alias: "z"}}
	got := planner.UnionOutputColumns(a, b)
	require.Len(t, got, 3)
	assert.Equal(t, "x", got[0].Alias)
	assert.Equal(t, "y", got[1].Alias)
	assert.Equal(t, "z", got[2].Alias)
}

func TestFillDefaults(t *testing.T) {
	cost := planner.FillDefaults(protocol.OperationCost{})
	require.NotNil(t, cost.Rows)
	require.NotNil(t, cost.ConnectionCost)
	require.NotNil(t, cost.TotalCost)
	assert.Equal(t, planner.DefaultRows, *cost.Rows)
	assert.Equal(t, planner.DefaultConnectionCost, *cost.ConnectionCost)
}

func TestPlanCacheEvictsExpired(t *testing.T) {
	cache := planner.NewPlanCache(8, time.Millisecond)
	cache.Set("k", &planner.PlanShape{Pushed: []bool{true}})
	time.Sleep(2 * time.Millisecond)
	_, ok := cache.Get("k")
	assert.False(t, ok)
}

func TestShapeKeyStableAcrossLiterals(t *testing.T) {
	src := sqil.NewEntitySource("people", "p")
	a := planner.ShapeKey(src, []planner.HostExpr{planner.HostBinaryExpr(
		planner.HostVarExpr("people", "age"), sqil.Gt, planner.HostConstExpr(value.Int32(1)),
	)}, nil, nil, nil)
	b := planner.ShapeKey(src, []planner.HostExpr{planner.HostBinaryExpr(
		planner.HostVarExpr("people", "age"), sqil.Gt, planner.HostConstExpr(value.Int32(999)),
	)}, nil, nil, nil)
	assert.Equal(t, a, b)
}
