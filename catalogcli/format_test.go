package catalogcli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sqilrun/sqil/planner"
	"github.com/sqilrun/sqil/refexec"
	"github.com/sqilrun/sqil/value"
)

func TestPrintResultSetRendersHeaderAndRowCount(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)
	f.NoColor = true

	rs := &refexec.ResultSet{
		Columns: []refexec.Column{{Name: "name", Type: value.Utf8StringType(value.StringOptions{})}},
		Rows:    [][]value.Value{{value.Utf8String("Alice")}, {value.Utf8String("Bob")}},
	}
	f.PrintResultSet(rs)

	out := buf.String()
	assert.Contains(t, out, "name")
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "2 rows")
}

func TestPrintResultSetEmptyColumns(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)
	f.NoColor = true

	f.PrintResultSet(&refexec.ResultSet{})
	assert.Contains(t, buf.String(), "no result columns")
}

func TestPrintPlanShapeMarksEachClause(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)
	f.NoColor = true

	f.PrintPlanShape(&planner.PlanShape{Pushed: []bool{true, false}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "pushed")
	assert.Contains(t, lines[1], "local")
}
