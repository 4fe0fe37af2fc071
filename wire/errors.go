package wire

import "fmt"

// FramingError reports a malformed row stream: an unexpected EOF mid-row,
// a payload that can't be parsed as its column's declared type (decimal
// text, a short DateTimeWithTZ payload, UUID bytes), or a value
// that can't be reconciled with the reader's declared column structure.
// String chunks are not checked for valid UTF-8.
type FramingError struct {
	RowIdx uint64
	ColIdx int
	Reason string
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("framing error at row %d col %d: %s", e.RowIdx, e.ColIdx, e.Reason)
}

func framingErr(rowIdx uint64, colIdx int, reason string) error {
	return &FramingError{RowIdx: rowIdx, ColIdx: colIdx, Reason: reason}
}
