package planner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sqilrun/sqil/sqil"
)

// PlanShape is the cacheable result of running the pushdown guard rules
// over a host query once: for every WHERE conjunct offered via
// PushWhere, in offering order, whether it was pushed remotely or fell
// back to local evaluation. Joins, grouping, ordering and paging
// decisions are not recorded. Re-running the same statement (a prepared
// statement executed again, or a re-scan) can replay these decisions
// instead of re-deriving them, the same role the teacher's PlanCache
// plays for its own clause-based planner (datalog/planner/cache.go) --
// there the cache holds a cost-scored physical plan; here, since cost
// comes from the connector rather than from local statistics, what's
// worth memoizing is the push/local verdicts themselves.
type PlanShape struct {
	Pushed []bool
}

func newShapeRecorder() *PlanShape { return &PlanShape{} }

func (s *PlanShape) record(pushed bool) { s.Pushed = append(s.Pushed, pushed) }

// replay is used when a cached shape is being trusted: it returns the
// decision recorded at idx, or false (not pushed) when idx is past the
// end of Pushed. It keeps no cursor of its own; the caller advances its
// index.
func (s *PlanShape) replay(idx int) bool {
	if idx >= len(s.Pushed) {
		return false
	}
	return s.Pushed[idx]
}

// cacheEntry pairs a cached shape with its expiry/LRU bookkeeping.
type cacheEntry struct {
	shape     *PlanShape
	expiresAt time.Time
	lastUsed  time.Time
}

// PlanCache is a bounded, TTL'd, LRU-evicting cache of PlanShapes keyed
// by a host query's structural fingerprint. Grounded on
// datalog/planner/cache.go's PlanCache: same map+RWMutex+atomic
// hit/miss-counter shape, same evict-expired-then-evict-oldest eviction
// order, restyled around PlanShape instead of a cost-scored physical
// plan.
type PlanCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	maxSize int
	ttl     time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64
}

func NewPlanCache(maxSize int, ttl time.Duration) *PlanCache {
	return &PlanCache{
		entries: make(map[string]*cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get returns the cached shape for key, or (nil, false) on a miss or
// expiry. A hit refreshes the entry's LRU timestamp.
func (c *PlanCache) Get(key string) (*PlanShape, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.mu.Lock()
	entry.lastUsed = time.Now()
	c.mu.Unlock()
	return entry.shape, true
}

// Set stores shape under key, evicting expired and then (if still over
// capacity) the least-recently-used entry first.
func (c *PlanCache) Set(key string, shape *PlanShape) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpired()
	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	now := time.Now()
	c.entries[key] = &cacheEntry{shape: shape, expiresAt: now.Add(c.ttl), lastUsed: now}
}

func (c *PlanCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// CacheStats reports cumulative hit/miss counts and the current size.
type CacheStats struct {
	Hits, Misses uint64
	Size         int
}

func (c *PlanCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load(), Size: len(c.entries)}
}

// evictExpired must be called with mu held for writing.
func (c *PlanCache) evictExpired() {
	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// evictOldest must be called with mu held for writing.
func (c *PlanCache) evictOldest() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for k, e := range c.entries {
		if first || e.lastUsed.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.lastUsed
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// ShapeKey computes a structural fingerprint of a host query: entity
// sources and the shape of each clause, deliberately excluding constant
// values and parameter identities so that two executions of the same
// prepared statement (differing only in bound parameter values) hash to
// the same key. Grounded on the teacher's computeKeyWithOptions, which
// hashes clause structure rather than clause values for the same reason.
func ShapeKey(src sqil.EntitySource, wheres, joins, groupBys, orderBys []HostExpr) string {
	var b strings.Builder
	fmt.Fprintf(&b, "from:%s@%s\n", src.EntityId, src.Alias)
	for _, w := range wheres {
		fmt.Fprintf(&b, "where:%s\n", shapeOf(w))
	}
	for _, j := range joins {
		fmt.Fprintf(&b, "join:%s\n", shapeOf(j))
	}
	for _, g := range groupBys {
		fmt.Fprintf(&b, "group:%s\n", shapeOf(g))
	}
	for _, o := range orderBys {
		fmt.Fprintf(&b, "order:%s\n", shapeOf(o))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// shapeOf renders h's structure -- kinds, operators, relation/attribute
// names -- but never a constant's value or a parameter's key, so that
// differing literals/parameters don't change the fingerprint.
func shapeOf(h HostExpr) string {
	switch h.Kind {
	case HostVar:
		return fmt.Sprintf("var(%s.%s)", h.Relid, h.Attr)
	case HostConst:
		return "const"
	case HostParam:
		return "param"
	case HostUnaryOp:
		return fmt.Sprintf("unary(%d,%s)", h.UnaryOp, shapeOf(*h.Operand))
	case HostBinaryOp:
		return fmt.Sprintf("binary(%d,%s,%s)", h.BinaryOp, shapeOf(*h.Left), shapeOf(*h.Right))
	case HostCast:
		return fmt.Sprintf("cast(%s)", shapeOf(*h.CastExpr))
	case HostFuncCall:
		parts := make([]string, len(h.FuncArgs))
		for i, a := range h.FuncArgs {
			parts[i] = shapeOf(a)
		}
		return fmt.Sprintf("func(%d,%s)", h.Func, strings.Join(parts, ","))
	case HostAggCall:
		return fmt.Sprintf("agg(%d,%s)", h.Agg, shapeOf(*h.AggArg))
	default:
		return "?"
	}
}
