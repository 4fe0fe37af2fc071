package value

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Value is the DataValue sum. Exactly one payload field is meaningful,
// selected by Kind; KindNull carries no payload and is valid for every
// DataType (see coerce.go).
type Value struct {
	Kind Kind

	str   string
	bin   []byte
	b     bool
	i8    int8
	u8    uint8
	i16   int16
	u16   uint16
	i32   int32
	u32   uint32
	i64   int64
	u64   uint64
	f32   float32
	f64   float64
	dec   decimal.Decimal
	date  Date
	tm    TimeOfDay
	dt    DateTime
	dttz  DateTimeWithTZ
	uid   uuid.UUID
}

func Null() Value                       { return Value{Kind: KindNull} }
func Utf8String(s string) Value         { return Value{Kind: KindUtf8String, str: s} }
func Binary(b []byte) Value             { return Value{Kind: KindBinary, bin: b} }
func Boolean(b bool) Value              { return Value{Kind: KindBoolean, b: b} }
func Int8(v int8) Value                 { return Value{Kind: KindInt8, i8: v} }
func UInt8(v uint8) Value               { return Value{Kind: KindUInt8, u8: v} }
func Int16(v int16) Value               { return Value{Kind: KindInt16, i16: v} }
func UInt16(v uint16) Value             { return Value{Kind: KindUInt16, u16: v} }
func Int32(v int32) Value               { return Value{Kind: KindInt32, i32: v} }
func UInt32(v uint32) Value             { return Value{Kind: KindUInt32, u32: v} }
func Int64(v int64) Value               { return Value{Kind: KindInt64, i64: v} }
func UInt64(v uint64) Value             { return Value{Kind: KindUInt64, u64: v} }
func Float32(v float32) Value           { return Value{Kind: KindFloat32, f32: v} }
func Float64(v float64) Value           { return Value{Kind: KindFloat64, f64: v} }
func Decimal(d decimal.Decimal) Value   { return Value{Kind: KindDecimal, dec: d} }
func JSON(s string) Value               { return Value{Kind: KindJSON, str: s} }
func DateVal(d Date) Value              { return Value{Kind: KindDate, date: d} }
func TimeVal(t TimeOfDay) Value         { return Value{Kind: KindTime, tm: t} }
func DateTimeVal(dt DateTime) Value     { return Value{Kind: KindDateTime, dt: dt} }
func DateTimeTZVal(dt DateTimeWithTZ) Value {
	return Value{Kind: KindDateTimeTZ, dttz: dt}
}
func Uuid(u uuid.UUID) Value { return Value{Kind: KindUuid, uid: u} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

// AsBinary returns the binary payload and true if v is KindBinary.
func (v Value) AsBinary() ([]byte, bool) {
	if v.Kind != KindBinary {
		return nil, false
	}
	return v.bin, true
}

func (v Value) AsString() (string, bool) {
	if v.Kind != KindUtf8String {
		return "", false
	}
	return v.str, true
}

func (v Value) AsBoolean() (bool, bool) {
	if v.Kind != KindBoolean {
		return false, false
	}
	return v.b, true
}

func (v Value) AsInt8() (int8, bool) {
	if v.Kind != KindInt8 {
		return 0, false
	}
	return v.i8, true
}

func (v Value) AsUInt8() (uint8, bool) {
	if v.Kind != KindUInt8 {
		return 0, false
	}
	return v.u8, true
}

func (v Value) AsInt16() (int16, bool) {
	if v.Kind != KindInt16 {
		return 0, false
	}
	return v.i16, true
}

func (v Value) AsUInt16() (uint16, bool) {
	if v.Kind != KindUInt16 {
		return 0, false
	}
	return v.u16, true
}

func (v Value) AsInt32() (int32, bool) {
	if v.Kind != KindInt32 {
		return 0, false
	}
	return v.i32, true
}

func (v Value) AsUInt32() (uint32, bool) {
	if v.Kind != KindUInt32 {
		return 0, false
	}
	return v.u32, true
}

func (v Value) AsFloat32() (float32, bool) {
	if v.Kind != KindFloat32 {
		return 0, false
	}
	return v.f32, true
}

func (v Value) AsInt64() (int64, bool) {
	if v.Kind != KindInt64 {
		return 0, false
	}
	return v.i64, true
}

func (v Value) AsUInt64() (uint64, bool) {
	if v.Kind != KindUInt64 {
		return 0, false
	}
	return v.u64, true
}

func (v Value) AsFloat64() (float64, bool) {
	if v.Kind != KindFloat64 {
		return 0, false
	}
	return v.f64, true
}

func (v Value) AsDecimal() (decimal.Decimal, bool) {
	if v.Kind != KindDecimal {
		return decimal.Decimal{}, false
	}
	return v.dec, true
}

func (v Value) AsDate() (Date, bool) {
	if v.Kind != KindDate {
		return Date{}, false
	}
	return v.date, true
}

func (v Value) AsTime() (TimeOfDay, bool) {
	if v.Kind != KindTime {
		return TimeOfDay{}, false
	}
	return v.tm, true
}

func (v Value) AsDateTime() (DateTime, bool) {
	if v.Kind != KindDateTime {
		return DateTime{}, false
	}
	return v.dt, true
}

func (v Value) AsDateTimeTZ() (DateTimeWithTZ, bool) {
	if v.Kind != KindDateTimeTZ {
		return DateTimeWithTZ{}, false
	}
	return v.dttz, true
}

func (v Value) AsUuid() (uuid.UUID, bool) {
	if v.Kind != KindUuid {
		return uuid.UUID{}, false
	}
	return v.uid, true
}

// TypeOf computes the (unparameterized) DataType of v. Utf8String and
// Decimal values don't carry a width/precision on their own -- callers who
// need the original column's Type should consult the schema instead.
func (v Value) TypeOf() Type {
	return Type{Kind: v.Kind}
}

// Equal implements value equality as used by DISTINCT / CountDistinct /
// join-key comparisons in the reference executor.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindUtf8String, KindJSON:
		return v.str == o.str
	case KindBinary:
		return bytes.Equal(v.bin, o.bin)
	case KindBoolean:
		return v.b == o.b
	case KindInt8:
		return v.i8 == o.i8
	case KindUInt8:
		return v.u8 == o.u8
	case KindInt16:
		return v.i16 == o.i16
	case KindUInt16:
		return v.u16 == o.u16
	case KindInt32:
		return v.i32 == o.i32
	case KindUInt32:
		return v.u32 == o.u32
	case KindInt64:
		return v.i64 == o.i64
	case KindUInt64:
		return v.u64 == o.u64
	case KindFloat32:
		return v.f32 == o.f32
	case KindFloat64:
		return v.f64 == o.f64
	case KindDecimal:
		return v.dec.Equal(o.dec)
	case KindDate:
		return v.date == o.date
	case KindTime:
		return v.tm == o.tm
	case KindDateTime:
		return v.dt == o.dt
	case KindDateTimeTZ:
		return v.dttz.DateTime == o.dttz.DateTime && v.dttz.Zone == o.dttz.Zone
	case KindUuid:
		return v.uid == o.uid
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindUtf8String, KindJSON:
		return v.str
	case KindBinary:
		return fmt.Sprintf("%x", v.bin)
	case KindBoolean:
		return fmt.Sprintf("%v", v.b)
	case KindInt8:
		return fmt.Sprintf("%d", v.i8)
	case KindUInt8:
		return fmt.Sprintf("%d", v.u8)
	case KindInt16:
		return fmt.Sprintf("%d", v.i16)
	case KindUInt16:
		return fmt.Sprintf("%d", v.u16)
	case KindInt32:
		return fmt.Sprintf("%d", v.i32)
	case KindUInt32:
		return fmt.Sprintf("%d", v.u32)
	case KindInt64:
		return fmt.Sprintf("%d", v.i64)
	case KindUInt64:
		return fmt.Sprintf("%d", v.u64)
	case KindFloat32:
		return fmt.Sprintf("%v", v.f32)
	case KindFloat64:
		return fmt.Sprintf("%v", v.f64)
	case KindDecimal:
		return v.dec.String()
	case KindDate:
		return v.date.String()
	case KindTime:
		return v.tm.String()
	case KindDateTime:
		return v.dt.String()
	case KindDateTimeTZ:
		return v.dttz.String()
	case KindUuid:
		return v.uid.String()
	default:
		return "?"
	}
}
