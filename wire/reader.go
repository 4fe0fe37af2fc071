// Package wire implements the binary row-stream codec used to move
// DataValue rows between a connector and the planner: a null-flag byte
// followed by a typed, fixed-width or length-chunked payload, column by
// column, row by row, against a structure fixed at construction.
package wire

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/sqilrun/sqil/value"
)

// Reader decodes a stream of rows whose column types are given by
// structure. It tracks row/column position so it can tell a clean
// end-of-result-set (EOF exactly at column 0) from a truncated row
// (EOF partway through a row), which is always an error.
type Reader struct {
	src       io.Reader
	structure []value.Type
	rowIdx    uint64
	colIdx    int
}

func NewReader(src io.Reader, structure []value.Type) *Reader {
	return &Reader{src: src, structure: structure}
}

func (r *Reader) Structure() []value.Type { return r.structure }
func (r *Reader) RowIdx() uint64          { return r.rowIdx }

// ReadValue reads the next column value. It returns (value, true, nil) on
// a value (possibly NULL), (zero, false, nil) on a clean end of the
// result set, and a non-nil error on a framing violation.
func (r *Reader) ReadValue() (value.Value, bool, error) {
	flag, ok, err := r.readByte()
	if err != nil {
		return value.Value{}, false, err
	}
	if !ok {
		if r.colIdx == 0 {
			return value.Value{}, false, nil
		}
		return value.Value{}, false, framingErr(r.rowIdx, r.colIdx, "unexpected EOF occurred while reading row")
	}

	var out value.Value
	if flag != 0 {
		out, err = r.readTypedValue(r.currentType())
		if err != nil {
			return value.Value{}, false, err
		}
	} else {
		out = value.Null()
	}

	r.advance()
	return out, true, nil
}

func (r *Reader) readTypedValue(t value.Type) (value.Value, error) {
	switch t.Kind {
	case value.KindUtf8String:
		s, err := r.readString()
		if err != nil {
			return value.Value{}, err
		}
		return value.Utf8String(s), nil
	case value.KindBinary:
		b, err := r.readStream()
		if err != nil {
			return value.Value{}, err
		}
		return value.Binary(b), nil
	case value.KindBoolean:
		b, err := r.readExact(1)
		if err != nil {
			return value.Value{}, err
		}
		return value.Boolean(b[0] != 0), nil
	case value.KindInt8:
		b, err := r.readExact(1)
		if err != nil {
			return value.Value{}, err
		}
		return value.Int8(int8(b[0])), nil
	case value.KindUInt8:
		b, err := r.readExact(1)
		if err != nil {
			return value.Value{}, err
		}
		return value.UInt8(b[0]), nil
	case value.KindInt16:
		b, err := r.readExact(2)
		if err != nil {
			return value.Value{}, err
		}
		return value.Int16(int16(be16(b))), nil
	case value.KindUInt16:
		b, err := r.readExact(2)
		if err != nil {
			return value.Value{}, err
		}
		return value.UInt16(be16(b)), nil
	case value.KindInt32:
		b, err := r.readExact(4)
		if err != nil {
			return value.Value{}, err
		}
		return value.Int32(int32(be32(b))), nil
	case value.KindUInt32:
		b, err := r.readExact(4)
		if err != nil {
			return value.Value{}, err
		}
		return value.UInt32(be32(b)), nil
	case value.KindInt64:
		b, err := r.readExact(8)
		if err != nil {
			return value.Value{}, err
		}
		return value.Int64(int64(be64(b))), nil
	case value.KindUInt64:
		b, err := r.readExact(8)
		if err != nil {
			return value.Value{}, err
		}
		return value.UInt64(be64(b)), nil
	case value.KindFloat32:
		b, err := r.readExact(4)
		if err != nil {
			return value.Value{}, err
		}
		return value.Float32(float32FromBits(be32(b))), nil
	case value.KindFloat64:
		b, err := r.readExact(8)
		if err != nil {
			return value.Value{}, err
		}
		return value.Float64(float64FromBits(be64(b))), nil
	case value.KindDecimal:
		s, err := r.readString()
		if err != nil {
			return value.Value{}, err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return value.Value{}, framingErr(r.rowIdx, r.colIdx, fmt.Sprintf("failed to parse decimal value: %v", err))
		}
		return value.Decimal(d), nil
	case value.KindJSON:
		s, err := r.readString()
		if err != nil {
			return value.Value{}, err
		}
		return value.JSON(s), nil
	case value.KindDate:
		b, err := r.readExact(6)
		if err != nil {
			return value.Value{}, err
		}
		return value.DateVal(decodeDate(b)), nil
	case value.KindTime:
		b, err := r.readExact(7)
		if err != nil {
			return value.Value{}, err
		}
		return value.TimeVal(decodeTime(b)), nil
	case value.KindDateTime:
		b, err := r.readExact(13)
		if err != nil {
			return value.Value{}, err
		}
		return value.DateTimeVal(decodeDateTime(b)), nil
	case value.KindDateTimeTZ:
		buf, err := r.readStream()
		if err != nil {
			return value.Value{}, err
		}
		if len(buf) < 13 {
			return value.Value{}, framingErr(r.rowIdx, r.colIdx, "datetimetz payload shorter than 13 bytes")
		}
		dt := decodeDateTime(buf[:13])
		zone := string(buf[13:])
		return value.DateTimeTZVal(value.DateTimeWithTZ{DateTime: dt, Zone: zone}), nil
	case value.KindUuid:
		b, err := r.readExact(16)
		if err != nil {
			return value.Value{}, err
		}
		u, err := uuidFromBytes(b)
		if err != nil {
			return value.Value{}, framingErr(r.rowIdx, r.colIdx, err.Error())
		}
		return value.Uuid(u), nil
	case value.KindNull:
		return value.Value{}, framingErr(r.rowIdx, r.colIdx, "found null data type with non-null byte")
	default:
		return value.Value{}, framingErr(r.rowIdx, r.colIdx, fmt.Sprintf("unknown data type kind %v", t.Kind))
	}
}

func (r *Reader) readString() (string, error) {
	b, err := r.readStream()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// readStream reads a chunked byte stream: a sequence of (len byte, len
// bytes) frames terminated by a zero-length frame.
func (r *Reader) readStream() ([]byte, error) {
	var data []byte
	for {
		lenBuf, err := r.readExact(1)
		if err != nil {
			return nil, err
		}
		length := int(lenBuf[0])
		if length == 0 {
			break
		}
		chunk, err := r.readExact(length)
		if err != nil {
			return nil, err
		}
		data = append(data, chunk...)
	}
	return data, nil
}

func (r *Reader) readExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.src, buf); err != nil {
		return nil, framingErr(r.rowIdx, r.colIdx, fmt.Sprintf("failed to read %d bytes: %v", n, err))
	}
	return buf, nil
}

func (r *Reader) readByte() (byte, bool, error) {
	buf := make([]byte, 1)
	n, err := r.src.Read(buf)
	if n == 0 {
		if err == io.EOF || err == nil {
			return 0, false, nil
		}
		return 0, false, framingErr(r.rowIdx, r.colIdx, fmt.Sprintf("failed to read null flag byte: %v", err))
	}
	return buf[0], true, nil
}

func (r *Reader) currentType() value.Type { return r.structure[r.colIdx] }

func (r *Reader) advance() {
	if r.colIdx == len(r.structure)-1 {
		r.colIdx = 0
		r.rowIdx++
	} else {
		r.colIdx++
	}
}
