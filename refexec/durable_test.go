package refexec

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqilrun/sqil/sqil"
	"github.com/sqilrun/sqil/value"
)

func widgetsConfig() sqil.EntityConfig {
	return sqil.NewEntityConfig("widgets",
		[]sqil.AttributeConfig{strAttr("name"), intAttr("count")},
		sqil.EntitySourceConfig{Table: "widgets"},
	)
}

func TestDurableCatalogRoundTripsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog")

	dc, err := OpenDurable(path, []sqil.EntityConfig{widgetsConfig()})
	require.NoError(t, err)

	n, ok := dc.RowCount("widgets")
	require.True(t, ok)
	assert.Zero(t, n)

	dc.Seed("widgets",
		Row{value.Utf8String("sprocket"), value.Int32(3), value.UInt64(0)},
		Row{value.Utf8String("cog"), value.Int32(7), value.UInt64(1)},
	)
	require.NoError(t, dc.Close())

	reopened, err := OpenDurable(path, []sqil.EntityConfig{widgetsConfig()})
	require.NoError(t, err)
	defer reopened.Close()

	n, ok = reopened.RowCount("widgets")
	require.True(t, ok)
	assert.Equal(t, 2, n)

	reopened.WithData("widgets", func(rows []Row) {
		require.Len(t, rows, 2)
		name, ok := rows[0][0].AsString()
		require.True(t, ok)
		assert.Equal(t, "sprocket", name)
		count, ok := rows[1][1].AsInt32()
		require.True(t, ok)
		assert.Equal(t, int32(7), count)
	})
}

func TestOpenDurableEmptyCatalogHasNoRows(t *testing.T) {
	dir := t.TempDir()
	dc, err := OpenDurable(filepath.Join(dir, "catalog"), []sqil.EntityConfig{widgetsConfig()})
	require.NoError(t, err)
	defer dc.Close()

	n, ok := dc.RowCount("widgets")
	require.True(t, ok)
	assert.Zero(t, n)
}
