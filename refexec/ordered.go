package refexec

import (
	"fmt"

	"github.com/sqilrun/sqil/sqil"
	"github.com/sqilrun/sqil/value"
)

// ordered wraps a sort key with its direction; compareKeys flips the
// comparison for Desc keys. Mismatched Asc/Desc between two ordered
// values being compared in the same key position is a programmer error
// (spec.md §4.5: "Mismatched asc/desc between paired keys is a
// programmer error"), so compareKeys panics rather than erroring.
type ordered struct {
	dir sqil.OrderDirection
	key value.Value
}

func newOrdered(dir sqil.OrderDirection, key value.Value) ordered {
	return ordered{dir: dir, key: key}
}

// compareKeys compares two same-length slices of ordered values,
// returning the first nonzero per-key comparison (standard
// lexicographic multi-key sort).
func compareKeys(a, b []ordered) int {
	for i := range a {
		if a[i].dir != b[i].dir {
			panic("refexec: sort ordering mismatch between paired keys")
		}
		c := compareValues(a[i].key, b[i].key)
		if a[i].dir == sqil.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// compareValues orders two DataValues for sorting purposes. NULL sorts
// before any non-null value of the same comparison; values of differing
// kinds compare by their rendered string as a last resort (the reference
// executor only needs a stable order, not a SQL-faithful total order
// across mixed types).
func compareValues(a, b value.Value) int {
	if a.IsNull() && b.IsNull() {
		return 0
	}
	if a.IsNull() {
		return -1
	}
	if b.IsNull() {
		return 1
	}
	if a.Kind != b.Kind {
		return stringCmp(fmt.Sprint(a), fmt.Sprint(b))
	}
	switch a.Kind {
	case value.KindBoolean:
		av, _ := a.AsBoolean()
		bv, _ := b.AsBoolean()
		return boolCmp(av, bv)
	case value.KindInt8:
		av, _ := a.AsInt8()
		bv, _ := b.AsInt8()
		return intCmp(int64(av), int64(bv))
	case value.KindUInt8:
		av, _ := a.AsUInt8()
		bv, _ := b.AsUInt8()
		return intCmp(int64(av), int64(bv))
	case value.KindInt16:
		av, _ := a.AsInt16()
		bv, _ := b.AsInt16()
		return intCmp(int64(av), int64(bv))
	case value.KindUInt16:
		av, _ := a.AsUInt16()
		bv, _ := b.AsUInt16()
		return intCmp(int64(av), int64(bv))
	case value.KindInt32:
		av, _ := a.AsInt32()
		bv, _ := b.AsInt32()
		return intCmp(int64(av), int64(bv))
	case value.KindUInt32:
		av, _ := a.AsUInt32()
		bv, _ := b.AsUInt32()
		return intCmp(int64(av), int64(bv))
	case value.KindInt64:
		av, _ := a.AsInt64()
		bv, _ := b.AsInt64()
		return intCmp(av, bv)
	case value.KindUInt64:
		av, _ := a.AsUInt64()
		bv, _ := b.AsUInt64()
		return uintCmp(av, bv)
	case value.KindFloat32:
		av, _ := a.AsFloat32()
		bv, _ := b.AsFloat32()
		return floatCmp(float64(av), float64(bv))
	case value.KindFloat64:
		av, _ := a.AsFloat64()
		bv, _ := b.AsFloat64()
		return floatCmp(av, bv)
	case value.KindDecimal:
		av, _ := a.AsDecimal()
		bv, _ := b.AsDecimal()
		return av.Cmp(bv)
	default:
		return stringCmp(a.String(), b.String())
	}
}

func boolCmp(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func intCmp(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func uintCmp(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func floatCmp(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func stringCmp(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
