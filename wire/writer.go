package wire

import (
	"fmt"
	"io"

	"github.com/sqilrun/sqil/value"
)

// Writer encodes DataValue rows against a fixed column structure, the
// exact inverse of Reader.
type Writer struct {
	dst       io.Writer
	structure []value.Type
}

func NewWriter(dst io.Writer, structure []value.Type) *Writer {
	return &Writer{dst: dst, structure: structure}
}

// WriteValue encodes one column value. Callers must supply exactly
// len(structure) values per row, in order; WriteValue does not track
// row/column position itself (unlike Reader, which must detect
// truncated streams on the way in).
func (w *Writer) WriteValue(v value.Value) error {
	if v.IsNull() {
		return w.write([]byte{0})
	}
	if err := w.write([]byte{1}); err != nil {
		return err
	}
	return w.writeTypedValue(v)
}

// WriteEOF terminates the result set: callers write one null-flag read
// failure by simply closing the underlying stream, matching the Rust
// reader's behavior of treating read-returns-0 at column 0 as EOF. This
// helper exists only for symmetry in tests that drive Writer then Reader
// against an in-memory buffer without closing it.
func (w *Writer) WriteEOF() error { return nil }

func (w *Writer) writeTypedValue(v value.Value) error {
	switch v.Kind {
	case value.KindUtf8String:
		s, _ := v.AsString()
		return w.writeStream([]byte(s))
	case value.KindBinary:
		b, _ := v.AsBinary()
		return w.writeStream(b)
	case value.KindBoolean:
		b, _ := v.AsBoolean()
		n := byte(0)
		if b {
			n = 1
		}
		return w.write([]byte{n})
	case value.KindInt8:
		n, _ := v.AsInt8()
		return w.write([]byte{byte(n)})
	case value.KindUInt8:
		n, _ := v.AsUInt8()
		return w.write([]byte{n})
	case value.KindInt16:
		n, _ := v.AsInt16()
		return w.write(putBe16(uint16(n)))
	case value.KindUInt16:
		n, _ := v.AsUInt16()
		return w.write(putBe16(n))
	case value.KindInt32:
		n, _ := v.AsInt32()
		return w.write(putBe32(uint32(n)))
	case value.KindUInt32:
		n, _ := v.AsUInt32()
		return w.write(putBe32(n))
	case value.KindInt64:
		n, _ := v.AsInt64()
		return w.write(putBe64(uint64(n)))
	case value.KindUInt64:
		n, _ := v.AsUInt64()
		return w.write(putBe64(n))
	case value.KindFloat32:
		f, _ := v.AsFloat32()
		return w.write(putBe32(float32Bits(f)))
	case value.KindFloat64:
		f, _ := v.AsFloat64()
		return w.write(putBe64(float64Bits(f)))
	case value.KindDecimal:
		d, _ := v.AsDecimal()
		return w.writeStream([]byte(d.String()))
	case value.KindJSON:
		return w.writeStream([]byte(v.String()))
	case value.KindDate:
		d, _ := v.AsDate()
		return w.write(encodeDate(d))
	case value.KindTime:
		t, _ := v.AsTime()
		return w.write(encodeTime(t))
	case value.KindDateTime:
		dt, _ := v.AsDateTime()
		return w.write(encodeDateTime(dt))
	case value.KindDateTimeTZ:
		dttz, _ := v.AsDateTimeTZ()
		payload := append(encodeDateTime(dttz.DateTime), []byte(dttz.Zone)...)
		return w.writeStream(payload)
	case value.KindUuid:
		u, _ := v.AsUuid()
		b, _ := u.MarshalBinary()
		return w.write(b)
	default:
		return fmt.Errorf("wire: cannot encode value of kind %v", v.Kind)
	}
}

// writeStream frames data as a sequence of up-to-255-byte chunks
// terminated by a zero-length chunk, the inverse of readStream.
func (w *Writer) writeStream(data []byte) error {
	for len(data) > 0 {
		n := len(data)
		if n > 255 {
			n = 255
		}
		if err := w.write([]byte{byte(n)}); err != nil {
			return err
		}
		if err := w.write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return w.write([]byte{0})
}

func (w *Writer) write(b []byte) error {
	_, err := w.dst.Write(b)
	return err
}
