package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/sqilrun/sqil/value"
)

func be16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func be32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func be64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

func putBe16(v uint16) []byte { b := make([]byte, 2); binary.BigEndian.PutUint16(b, v); return b }
func putBe32(v uint32) []byte { b := make([]byte, 4); binary.BigEndian.PutUint32(b, v); return b }
func putBe64(v uint64) []byte { b := make([]byte, 8); binary.BigEndian.PutUint64(b, v); return b }

func float32FromBits(v uint32) float32 { return math.Float32frombits(v) }
func float64FromBits(v uint64) float64 { return math.Float64frombits(v) }
func float32Bits(v float32) uint32     { return math.Float32bits(v) }
func float64Bits(v float64) uint64     { return math.Float64bits(v) }

func uuidFromBytes(b []byte) (uuid.UUID, error) {
	if len(b) != 16 {
		return uuid.UUID{}, fmt.Errorf("expected 16 bytes for uuid, got %d", len(b))
	}
	var u uuid.UUID
	copy(u[:], b)
	return u, nil
}

// Date is encoded as a 4-byte big-endian year, a month byte, a day byte.
func decodeDate(b []byte) value.Date {
	return value.Date{
		Year:  int32(be32(b[0:4])),
		Month: b[4],
		Day:   b[5],
	}
}

func encodeDate(d value.Date) []byte {
	out := putBe32(uint32(d.Year))
	return append(out, d.Month, d.Day)
}

// Time is encoded as hour, minute, second bytes followed by a 4-byte
// big-endian nanosecond count.
func decodeTime(b []byte) value.TimeOfDay {
	return value.TimeOfDay{
		Hour:       b[0],
		Minute:     b[1],
		Second:     b[2],
		Nanosecond: be32(b[3:7]),
	}
}

func encodeTime(t value.TimeOfDay) []byte {
	out := []byte{t.Hour, t.Minute, t.Second}
	return append(out, putBe32(t.Nanosecond)...)
}

// DateTime is the 6-byte date encoding immediately followed by the 7-byte
// time encoding (13 bytes total).
func decodeDateTime(b []byte) value.DateTime {
	return value.DateTime{
		Date: decodeDate(b[:6]),
		Time: decodeTime(b[6:13]),
	}
}

func encodeDateTime(dt value.DateTime) []byte {
	out := encodeDate(dt.Date)
	return append(out, encodeTime(dt.Time)...)
}
