// Package refexec implements the dialect-independent reference executor:
// an in-memory interpreter for SQIL queries over a small catalog, used as
// the semantics oracle the planner and dialect compilers are tested
// against (spec.md §4.5). It is explicitly not a production engine.
//
// Grounded on ansilo-connectors/memory/src/executor.rs, restructured onto
// the teacher's storage.Database single-writer/multi-reader map
// discipline (datalog/storage/database.go, datalog/storage/store.go).
package refexec

import (
	"fmt"
	"sync"

	"github.com/sqilrun/sqil/sqil"
	"github.com/sqilrun/sqil/value"
)

// Row is one physical row of an entity, attribute-major, with the
// implicit ROWIDX value appended after the declared attributes.
type Row []value.Value

// CatalogError reports a reference to an entity the catalog has no
// config or data for.
type CatalogError struct {
	EntityId sqil.EntityId
	Reason   string
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("refexec: entity %q: %s", e.EntityId, e.Reason)
}

// Catalog is the shared, mutable table store the reference executor
// interprets queries against: a map from EntityId to its row vector,
// guarded by a single-writer/multi-reader discipline (spec.md §5).
// WithData takes a read view; WithDataMut takes an exclusive write view
// and exposes a row-id allocator that must only be called from within the
// callback, under the same lock.
type Catalog struct {
	mu      sync.RWMutex
	configs map[sqil.EntityId]sqil.EntityConfig
	data    map[sqil.EntityId][]Row
	nextIdx map[sqil.EntityId]uint64
}

// NewCatalog builds an empty catalog for the given entity configs; every
// entity starts out with zero rows.
func NewCatalog(configs []sqil.EntityConfig) *Catalog {
	c := &Catalog{
		configs: make(map[sqil.EntityId]sqil.EntityConfig, len(configs)),
		data:    make(map[sqil.EntityId][]Row, len(configs)),
		nextIdx: make(map[sqil.EntityId]uint64, len(configs)),
	}
	for _, cfg := range configs {
		c.configs[cfg.Id] = cfg
		c.data[cfg.Id] = nil
	}
	return c
}

// Config looks up an entity's immutable schema.
func (c *Catalog) Config(id sqil.EntityId) (sqil.EntityConfig, bool) {
	cfg, ok := c.configs[id]
	return cfg, ok
}

// Seed appends rows to id's data directly, bypassing row-id allocation --
// used by tests and the CLI demo to load fixture data. Each row must
// already carry its ROWIDX as the final value.
func (c *Catalog) Seed(id sqil.EntityId, rows ...Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[id] = append(c.data[id], rows...)
	c.nextIdx[id] = uint64(len(c.data[id]))
}

// RowCount reports how many rows id currently holds. It returns false if
// id isn't a known entity.
func (c *Catalog) RowCount(id sqil.EntityId) (int, bool) {
	var n int
	ok := c.WithData(id, func(rows []Row) { n = len(rows) })
	return n, ok
}

// WithData takes a read view of id's rows. It returns false if id isn't a
// known entity.
func (c *Catalog) WithData(id sqil.EntityId, fn func(rows []Row)) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rows, ok := c.data[id]
	if !ok {
		return false
	}
	fn(rows)
	return true
}

// WithDataMut takes an exclusive write view of id's rows. fn may replace
// *rows wholesale (delete/filter) or append to it (insert); nextRowIdx
// allocates a ROWIDX for a row about to be appended, under the same lock
// that guards the data map -- it must not be called outside fn.
func (c *Catalog) WithDataMut(id sqil.EntityId, fn func(rows *[]Row, nextRowIdx func() uint64) error) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows, ok := c.data[id]
	if !ok {
		return false, nil
	}
	nextRowIdx := func() uint64 {
		idx := c.nextIdx[id]
		c.nextIdx[id] = idx + 1
		return idx
	}
	err := fn(&rows, nextRowIdx)
	c.data[id] = rows
	return true, err
}
