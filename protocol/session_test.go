package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
		},
		sqil.EntitySourceConfig{Table: "people"},
	)
	cat := refexec.NewCatalog([]sqil.EntityConfig{people})
	cat.Seed("people",
		refexec.Row{value.Utf8String("Mary"), value.Utf8String("Jane"), value.UInt64(0)},
		refexec.Row{value.Utf8String("John"), value.Utf8String("Smith"), value.UInt64(1)},
		refexec.Row{value.Utf8String("Gary"), value.Utf8String("Gregson"), value.UInt64(2)},
	)
	return cat
}

// TestSessionEstimateSize mirrors ansilo's test_fdw_connection_estimate_size.
func TestSessionEstimateSize(t *testing.T) {
	conn := protocol.NewRefConnector(peopleCatalog())
	s := protocol.NewSession(conn, nil)

	resp, closed := s.Handle(protocol.EstimateSizeMsg("people"))
	require.False(t, closed)
	require.Equal(t, protocol.ServerEstimatedSizeResult, resp.Kind)
	require.NotNil(t, resp.Cost.Rows)
	assert.Equal(t, uint64(3), *resp.Cost.Rows)
}

// TestSessionEstimateSizeUnknownEntity mirrors
// test_fdw_connection_estimate_size_unknown_entity: an unknown entity
// poisons the session with a GenericError.
func TestSessionEstimateSizeUnknownEntity(t *testing.T) {
	conn := protocol.NewRefConnector(peopleCatalog())
	s := protocol.NewSession(conn, nil)

	resp, closed := s.Handle(protocol.EstimateSizeMsg("unknown"))
	require.False(t, closed)
	require.Equal(t, protocol.ServerGenericError, resp.Kind)
	assert.NotEmpty(t, resp.Err)

	// the session is now poisoned; any further message (other than Close)
	// gets the same treatment.
	resp, closed = s.Handle(protocol.EstimateSizeMsg("people"))
	require.False(t, closed)
	assert.Equal(t, protocol.ServerGenericError, resp.Kind)
}

// TestSessionSelectRoundTrip mirrors test_fdw_connection_select: create,
// apply AddColumn, prepare, execute, and read the result set back out
// through the wire codec.
func TestSessionSelectRoundTrip(t *testing.T) {
	conn := protocol.NewRefConnector(peopleCatalog())
	s := protocol.NewSession(conn, nil)

	resp, closed := s.Handle(protocol.CreateSelectMsg(sqil.NewEntitySource("people", "people")))
	require.False(t, closed)
	require.Equal(t, protocol.ServerSelectResult, resp.Kind)
	require.Equal(t, protocol.PerformedRemotely, resp.OpResult.Kind)

	resp, closed = s.Handle(protocol.ApplySelectMsg(protocol.SelectOperation{
		Kind:     protocol.SelectAddColumn,
		ColAlias: "first_name",
		Expr:     sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "people", AttributeId: "first_name"}),
	}))
	require.False(t, closed)
	require.Equal(t, protocol.PerformedRemotely, resp.OpResult.Kind)

	resp, closed = s.Handle(protocol.PrepareMsg())
	require.False(t, closed)
	require.Equal(t, protocol.ServerQueryPrepared, resp.Kind)
	assert.Empty(t, resp.Structure.Params)

	resp, closed = s.Handle(protocol.ExecuteMsg())
	require.False(t, closed)
	require.Equal(t, protocol.ServerQueryExecuted, resp.Kind)
	require.Len(t, resp.Row.Cols, 1)
	assert.Equal(t, "first_name", resp.Row.Cols[0].Name)

	resp, closed = s.Handle(protocol.ReadMsg(1024))
	require.False(t, closed)
	require.Equal(t, protocol.ServerResultData, resp.Kind)
	assert.NotEmpty(t, resp.Data)
}

// TestSessionExecuteWithoutPrepare mirrors
// test_fdw_connection_execute_without_query: Execute before Prepare is a
// protocol violation that poisons the session.
func TestSessionExecuteWithoutPrepare(t *testing.T) {
	conn := protocol.NewRefConnector(peopleCatalog())
	s := protocol.NewSession(conn, nil)

	resp, closed := s.Handle(protocol.ExecuteMsg())
	require.False(t, closed)
	assert.Equal(t, protocol.ServerGenericError, resp.Kind)
}

// TestSessionClose mirrors Close: it returns immediately with closed=true
// and no response, regardless of session state.
func TestSessionClose(t *testing.T) {
	conn := protocol.NewRefConnector(peopleCatalog())
	s := protocol.NewSession(conn, nil)

	_, closed := s.Handle(protocol.CloseMsg())
	assert.True(t, closed)
}

// TestSessionRestartQuery mirrors
// test_fdw_connection_select_with_restart_query: executing, reading to
// completion, then restarting must replay the same rows.
func TestSessionRestartQuery(t *testing.T) {
	conn := protocol.NewRefConnector(peopleCatalog())
	s := protocol.NewSession(conn, nil)

	_, _ = s.Handle(protocol.CreateSelectMsg(sqil.NewEntitySource("people", "people")))
	_, _ = s.Handle(protocol.ApplySelectMsg(protocol.SelectOperation{
		Kind:     protocol.SelectAddColumn,
		ColAlias: "first_name",
		Expr:     sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "people", AttributeId: "first_name"}),
	}))
	_, _ = s.Handle(protocol.PrepareMsg())

	for i := 0; i < 2; i++ {
		resp, closed := s.Handle(protocol.ExecuteMsg())
		require.False(t, closed)
		require.Equal(t, protocol.ServerQueryExecuted, resp.Kind)

		resp, closed = s.Handle(protocol.ReadMsg(1024))
		require.False(t, closed)
		assert.NotEmpty(t, resp.Data)

		resp, closed = s.Handle(protocol.RestartQueryMsg())
		require.False(t, closed)
		assert.Equal(t, protocol.ServerQueryRestarted, resp.Kind)
	}
}

// TestSessionInsertThenEstimateSizeGrows mirrors test_fdw_connection_insert:
// after the insert is prepared and executed, the catalog actually gained
// a row.
func TestSessionInsertThenEstimateSizeGrows(t *testing.T) {
	cat := peopleCatalog()
	conn := protocol.NewRefConnector(cat)
	s := protocol.NewSession(conn, nil)

	_, _ = s.Handle(protocol.CreateInsertMsg(sqil.NewEntitySource("people", "people")))
	_, _ = s.Handle(protocol.ApplyInsertMsg(protocol.InsertOperation{
		Kind:      protocol.InsertAddColumn,
		Attribute: "first_name",
		Expr:      sqil.ConstantExpr(value.Utf8String("New")),
	}))
	_, _ = s.Handle(protocol.ApplyInsertMsg(protocol.InsertOperation{
		Kind:      protocol.InsertAddColumn,
		Attribute: "last_name",
		Expr:      sqil.ConstantExpr(value.Utf8String("Man")),
	}))
	_, _ = s.Handle(protocol.PrepareMsg())
	resp, closed := s.Handle(protocol.ExecuteMsg())
	require.False(t, closed)
	require.Equal(t, protocol.ServerQueryExecuted, resp.Kind)

	n, ok := cat.RowCount("people")
	require.True(t, ok)
	assert.Equal(t, 4, n)
}

// TestSessionExplainVerbose mirrors test_fdw_connection_explain_select: the
// JSON explain payload must actually parse and must include attribute
// references when verbose is set.
func TestSessionExplainVerbose(t *testing.T) {
	conn := protocol.NewRefConnector(peopleCatalog())
	s := protocol.NewSession(conn, nil)

	_, _ = s.Handle(protocol.CreateSelectMsg(sqil.NewEntitySource("people", "people")))
	_, _ = s.Handle(protocol.ApplySelectMsg(protocol.SelectOperation{
		Kind:     protocol.SelectAddColumn,
		ColAlias: "first_name",
		Expr:     sqil.AttributeExpr(sqil.AttributeId{EntityAlias: "people", AttributeId: "first_name"}),
	}))

	resp, closed := s.Handle(protocol.ExplainMsg(true))
	require.False(t, closed)
	require.Equal(t, protocol.ServerExplainResult, resp.Kind)
	assert.Contains(t, resp.Explain, `"kind":"select"`)
	assert.Contains(t, resp.Explain, "people.first_name")
}
