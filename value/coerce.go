package value

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CoerceInto attempts to convert v into the given type without losing
// information. Implementations must satisfy:
//
//	coerce(coerce(A, T), typeof(A)) == A
//
// if that cannot hold -- because the coercion would discard data -- the
// coercion fails with a *CoercionError rather than silently truncating.
func (v Value) CoerceInto(t Type) (Value, error) {
	if v.IsNull() {
		return v, nil
	}

	// Binary is the widest type: route everything else through its
	// textual representation first, same as every other non-string type
	// does when targeting Binary.
	if v.Kind != KindBinary && t.Kind == KindBinary {
		asStr, err := v.CoerceInto(Utf8StringType(StringOptions{}))
		if err != nil {
			return Value{}, err
		}
		v = asStr
	}

	switch v.Kind {
	case KindUtf8String:
		return coerceUtf8String(v.str, t)
	case KindBinary:
		return coerceBinary(v.bin, t)
	case KindBoolean:
		return coerceBoolean(v.b, t)
	case KindInt8:
		return coerceInt64(int64(v.i8), Int8Type(), t)
	case KindUInt8:
		return coerceUint64(uint64(v.u8), UInt8Type(), t)
	case KindInt16:
		return coerceInt64(int64(v.i16), Int16Type(), t)
	case KindUInt16:
		return coerceUint64(uint64(v.u16), UInt16Type(), t)
	case KindInt32:
		return coerceInt64(int64(v.i32), Int32Type(), t)
	case KindUInt32:
		return coerceUint64(uint64(v.u32), UInt32Type(), t)
	case KindInt64:
		return coerceInt64(v.i64, Int64Type(), t)
	case KindUInt64:
		return coerceUint64(v.u64, UInt64Type(), t)
	case KindFloat32:
		return coerceFloat32(v.f32, t)
	case KindFloat64:
		return coerceFloat64(v.f64, t)
	case KindDecimal:
		return coerceDecimal(v.dec, t)
	case KindJSON:
		return coerceJSON(v.str, t)
	case KindDate:
		return coerceDate(v.date, t)
	case KindTime:
		return coerceTime(v.tm, t)
	case KindDateTime:
		return coerceDateTime(v.dt, t)
	case KindDateTimeTZ:
		return coerceDateTimeTZ(v.dttz, t)
	case KindUuid:
		return coerceUuid(v.uid, t)
	default:
		return Value{}, coercionErr(v.TypeOf(), t, v.String())
	}
}

func coerceUtf8String(data string, t Type) (Value, error) {
	switch t.Kind {
	case KindUtf8String:
		return Utf8String(data), nil
	case KindBinary:
		return Binary([]byte(data)), nil
	case KindJSON:
		if json.Valid([]byte(data)) {
			return JSON(data), nil
		}
	case KindBoolean:
		if data == "1" {
			return Boolean(true), nil
		}
		if data == "0" {
			return Boolean(false), nil
		}
	case KindUInt8:
		if n, err := strconv.ParseUint(data, 10, 8); err == nil {
			return UInt8(uint8(n)), nil
		}
	case KindInt8:
		if n, err := strconv.ParseInt(data, 10, 8); err == nil {
			return Int8(int8(n)), nil
		}
	case KindUInt16:
		if n, err := strconv.ParseUint(data, 10, 16); err == nil {
			return UInt16(uint16(n)), nil
		}
	case KindInt16:
		if n, err := strconv.ParseInt(data, 10, 16); err == nil {
			return Int16(int16(n)), nil
		}
	case KindUInt32:
		if n, err := strconv.ParseUint(data, 10, 32); err == nil {
			return UInt32(uint32(n)), nil
		}
	case KindInt32:
		if n, err := strconv.ParseInt(data, 10, 32); err == nil {
			return Int32(int32(n)), nil
		}
	case KindUInt64:
		if n, err := strconv.ParseUint(data, 10, 64); err == nil {
			return UInt64(n), nil
		}
	case KindInt64:
		if n, err := strconv.ParseInt(data, 10, 64); err == nil {
			return Int64(n), nil
		}
	case KindFloat32:
		if n, err := strconv.ParseFloat(data, 32); err == nil {
			return Float32(float32(n)), nil
		}
	case KindFloat64:
		if n, err := strconv.ParseFloat(data, 64); err == nil {
			return Float64(n), nil
		}
	case KindDecimal:
		if n, err := decimal.NewFromString(data); err == nil {
			return Decimal(n), nil
		}
	case KindDate:
		if d, err := time.Parse("2006-01-02", data); err == nil {
			return DateVal(dateFromTime(d)), nil
		}
	case KindTime:
		if d, err := time.Parse("15:04:05", data); err == nil {
			return TimeVal(dateTimeFromTime(d).Time), nil
		}
	case KindDateTime:
		if d, err := time.Parse("2006-01-02T15:04:05", data); err == nil {
			return DateTimeVal(dateTimeFromTime(d)), nil
		}
	case KindDateTimeTZ:
		if d, err := time.Parse(time.RFC3339, data); err == nil {
			return DateTimeTZVal(DateTimeWithTZ{DateTime: dateTimeFromTime(d.UTC()), Zone: "UTC"}), nil
		}
	case KindUuid:
		if u, err := uuid.Parse(data); err == nil {
			return Uuid(u), nil
		}
	}
	return Value{}, coercionErr(Utf8StringType(StringOptions{}), t, data)
}

func coerceBinary(data []byte, t Type) (Value, error) {
	switch t.Kind {
	case KindBinary:
		return Binary(data), nil
	case KindUtf8String:
		return Utf8String(string(data)), nil
	default:
		v, err := coerceUtf8String(string(data), t)
		if err != nil {
			return Value{}, coercionErr(BinaryType(), t, string(data))
		}
		return v, nil
	}
}

func coerceBoolean(data bool, t Type) (Value, error) {
	n := int64(0)
	if data {
		n = 1
	}
	switch t.Kind {
	case KindBoolean:
		return Boolean(data), nil
	case KindInt8:
		return Int8(int8(n)), nil
	case KindUInt8:
		return UInt8(uint8(n)), nil
	case KindInt16:
		return Int16(int16(n)), nil
	case KindUInt16:
		return UInt16(uint16(n)), nil
	case KindInt32:
		return Int32(int32(n)), nil
	case KindUInt32:
		return UInt32(uint32(n)), nil
	case KindInt64:
		return Int64(n), nil
	case KindUInt64:
		return UInt64(uint64(n)), nil
	case KindFloat32:
		return Float32(float32(n)), nil
	case KindFloat64:
		return Float64(float64(n)), nil
	case KindDecimal:
		return Decimal(decimal.New(n, 0)), nil
	case KindUtf8String:
		if data {
			return Utf8String("1"), nil
		}
		return Utf8String("0"), nil
	}
	s := "false"
	if data {
		s = "true"
	}
	return Value{}, coercionErr(BooleanType(), t, s)
}

// coerceInt64 coerces a signed value already widened to int64, tagging the
// caller's original (narrower) type for error reporting and for the
// "IntN == IntN" identity branch.
func coerceInt64(data int64, from Type, t Type) (Value, error) {
	in := func(lo, hi int64) bool { return data >= lo && data <= hi }
	switch t.Kind {
	case from.Kind:
		return reassemble(from, data)
	case KindBoolean:
		if data == 0 {
			return Boolean(false), nil
		}
		if data == 1 {
			return Boolean(true), nil
		}
	case KindInt8:
		if in(math.MinInt8, math.MaxInt8) {
			return Int8(int8(data)), nil
		}
	case KindUInt8:
		if in(0, math.MaxUint8) {
			return UInt8(uint8(data)), nil
		}
	case KindInt16:
		if in(math.MinInt16, math.MaxInt16) {
			return Int16(int16(data)), nil
		}
	case KindUInt16:
		if in(0, math.MaxUint16) {
			return UInt16(uint16(data)), nil
		}
	case KindInt32:
		if in(math.MinInt32, math.MaxInt32) {
			return Int32(int32(data)), nil
		}
	case KindUInt32:
		if in(0, math.MaxUint32) {
			return UInt32(uint32(data)), nil
		}
	case KindInt64:
		return Int64(data), nil
	case KindUInt64:
		if data >= 0 {
			return UInt64(uint64(data)), nil
		}
	case KindFloat32:
		if f := float32(data); int64(f) == data {
			return Float32(f), nil
		}
	case KindFloat64:
		if f := float64(data); int64(f) == data {
			return Float64(f), nil
		}
	case KindDecimal:
		return Decimal(decimal.New(data, 0)), nil
	case KindUtf8String:
		return Utf8String(strconv.FormatInt(data, 10)), nil
	}
	return Value{}, coercionErr(from, t, strconv.FormatInt(data, 10))
}

func coerceUint64(data uint64, from Type, t Type) (Value, error) {
	switch t.Kind {
	case from.Kind:
		return reassembleU(from, data)
	case KindBoolean:
		if data == 0 {
			return Boolean(false), nil
		}
		if data == 1 {
			return Boolean(true), nil
		}
	case KindInt8:
		if data <= math.MaxInt8 {
			return Int8(int8(data)), nil
		}
	case KindUInt8:
		if data <= math.MaxUint8 {
			return UInt8(uint8(data)), nil
		}
	case KindInt16:
		if data <= math.MaxInt16 {
			return Int16(int16(data)), nil
		}
	case KindUInt16:
		if data <= math.MaxUint16 {
			return UInt16(uint16(data)), nil
		}
	case KindInt32:
		if data <= math.MaxInt32 {
			return Int32(int32(data)), nil
		}
	case KindUInt32:
		if data <= math.MaxUint32 {
			return UInt32(uint32(data)), nil
		}
	case KindInt64:
		if data <= math.MaxInt64 {
			return Int64(int64(data)), nil
		}
	case KindUInt64:
		return UInt64(data), nil
	case KindFloat32:
		if f := float32(data); uint64(f) == data {
			return Float32(f), nil
		}
	case KindFloat64:
		if f := float64(data); uint64(f) == data {
			return Float64(f), nil
		}
	case KindDecimal:
		if data <= math.MaxInt64 {
			return Decimal(decimal.New(int64(data), 0)), nil
		}
	case KindUtf8String:
		return Utf8String(strconv.FormatUint(data, 10)), nil
	}
	return Value{}, coercionErr(from, t, strconv.FormatUint(data, 10))
}

func reassemble(from Type, data int64) (Value, error) {
	switch from.Kind {
	case KindInt8:
		return Int8(int8(data)), nil
	case KindInt16:
		return Int16(int16(data)), nil
	case KindInt32:
		return Int32(int32(data)), nil
	default:
		return Int64(data), nil
	}
}

func reassembleU(from Type, data uint64) (Value, error) {
	switch from.Kind {
	case KindUInt8:
		return UInt8(uint8(data)), nil
	case KindUInt16:
		return UInt16(uint16(data)), nil
	case KindUInt32:
		return UInt32(uint32(data)), nil
	default:
		return UInt64(data), nil
	}
}

func coerceFloat32(data float32, t Type) (Value, error) {
	d64 := float64(data)
	switch t.Kind {
	case KindFloat32:
		return Float32(data), nil
	case KindFloat64:
		return Float64(d64), nil
	case KindBoolean:
		if data == 0 {
			return Boolean(false), nil
		}
		if data == 1 {
			return Boolean(true), nil
		}
	case KindInt8:
		if data == float32(math.Trunc(d64)) && d64 >= math.MinInt8 && d64 <= math.MaxInt8 {
			return Int8(int8(data)), nil
		}
	case KindUInt8:
		if data == float32(math.Trunc(d64)) && d64 >= 0 && d64 <= math.MaxUint8 {
			return UInt8(uint8(data)), nil
		}
	case KindInt16:
		if data == float32(math.Trunc(d64)) && d64 >= math.MinInt16 && d64 <= math.MaxInt16 {
			return Int16(int16(data)), nil
		}
	case KindUInt16:
		if data == float32(math.Trunc(d64)) && d64 >= 0 && d64 <= math.MaxUint16 {
			return UInt16(uint16(data)), nil
		}
	case KindInt32:
		if data == float32(math.Trunc(d64)) && d64 >= math.MinInt32 && d64 <= math.MaxInt32 {
			return Int32(int32(data)), nil
		}
	case KindUInt32:
		if data == float32(math.Trunc(d64)) && d64 >= 0 && d64 <= math.MaxUint32 {
			return UInt32(uint32(data)), nil
		}
	case KindInt64:
		if data == float32(math.Trunc(d64)) && d64 >= math.MinInt64 && d64 <= math.MaxInt64 {
			return Int64(int64(data)), nil
		}
	case KindUInt64:
		if data == float32(math.Trunc(d64)) && d64 >= 0 {
			return UInt64(uint64(data)), nil
		}
	case KindDecimal:
		return Decimal(decimal.NewFromFloat32(data)), nil
	case KindUtf8String:
		return Utf8String(strconv.FormatFloat(d64, 'g', -1, 32)), nil
	}
	return Value{}, coercionErr(Float32Type(), t, strconv.FormatFloat(d64, 'g', -1, 32))
}

func coerceFloat64(data float64, t Type) (Value, error) {
	switch t.Kind {
	case KindFloat64:
		return Float64(data), nil
	case KindFloat32:
		if f := float32(data); float64(f) == data {
			return Float32(f), nil
		}
	case KindBoolean:
		if data == 0 {
			return Boolean(false), nil
		}
		if data == 1 {
			return Boolean(true), nil
		}
	case KindInt8:
		if data == math.Trunc(data) && data >= math.MinInt8 && data <= math.MaxInt8 {
			return Int8(int8(data)), nil
		}
	case KindUInt8:
		if data == math.Trunc(data) && data >= 0 && data <= math.MaxUint8 {
			return UInt8(uint8(data)), nil
		}
	case KindInt16:
		if data == math.Trunc(data) && data >= math.MinInt16 && data <= math.MaxInt16 {
			return Int16(int16(data)), nil
		}
	case KindUInt16:
		if data == math.Trunc(data) && data >= 0 && data <= math.MaxUint16 {
			return UInt16(uint16(data)), nil
		}
	case KindInt32:
		if data == math.Trunc(data) && data >= math.MinInt32 && data <= math.MaxInt32 {
			return Int32(int32(data)), nil
		}
	case KindUInt32:
		if data == math.Trunc(data) && data >= 0 && data <= math.MaxUint32 {
			return UInt32(uint32(data)), nil
		}
	case KindInt64:
		if data == math.Trunc(data) && data >= math.MinInt64 && data <= math.MaxInt64 {
			return Int64(int64(data)), nil
		}
	case KindUInt64:
		if data == math.Trunc(data) && data >= 0 {
			return UInt64(uint64(data)), nil
		}
	case KindDecimal:
		return Decimal(decimal.NewFromFloat(data)), nil
	case KindUtf8String:
		return Utf8String(strconv.FormatFloat(data, 'g', -1, 64)), nil
	}
	return Value{}, coercionErr(Float64Type(), t, strconv.FormatFloat(data, 'g', -1, 64))
}

func coerceDecimal(data decimal.Decimal, t Type) (Value, error) {
	if t.Kind == KindDecimal {
		return Decimal(data), nil
	}

	if data.Truncate(0).Equal(data) {
		switch t.Kind {
		case KindBoolean:
			if data.IsZero() {
				return Boolean(false), nil
			}
			if data.Equal(decimal.NewFromInt(1)) {
				return Boolean(true), nil
			}
		case KindInt8:
			if n := data.IntPart(); n >= math.MinInt8 && n <= math.MaxInt8 {
				return Int8(int8(n)), nil
			}
		case KindUInt8:
			if n := data.IntPart(); n >= 0 && n <= math.MaxUint8 {
				return UInt8(uint8(n)), nil
			}
		case KindInt16:
			if n := data.IntPart(); n >= math.MinInt16 && n <= math.MaxInt16 {
				return Int16(int16(n)), nil
			}
		case KindUInt16:
			if n := data.IntPart(); n >= 0 && n <= math.MaxUint16 {
				return UInt16(uint16(n)), nil
			}
		case KindInt32:
			if n := data.IntPart(); n >= math.MinInt32 && n <= math.MaxInt32 {
				return Int32(int32(n)), nil
			}
		case KindUInt32:
			if n := data.IntPart(); n >= 0 && n <= math.MaxUint32 {
				return UInt32(uint32(n)), nil
			}
		case KindInt64:
			// IntPart() wraps silently past int64 range; go through
			// big.Int so the fit check covers the whole range.
			if bi := data.BigInt(); bi.IsInt64() {
				return Int64(bi.Int64()), nil
			}
		case KindUInt64:
			if bi := data.BigInt(); bi.IsUint64() {
				return UInt64(bi.Uint64()), nil
			}
		}
	}

	switch t.Kind {
	case KindFloat32:
		f, _ := data.Float64()
		return Float32(float32(f)), nil
	case KindFloat64:
		f, _ := data.Float64()
		return Float64(f), nil
	case KindUtf8String:
		return Utf8String(data.String()), nil
	}
	return Value{}, coercionErr(DecimalType(DecimalOptions{}), t, data.String())
}

func coerceJSON(data string, t Type) (Value, error) {
	switch t.Kind {
	case KindJSON:
		return JSON(data), nil
	case KindUtf8String:
		return Utf8String(data), nil
	case KindBinary:
		return Binary([]byte(data)), nil
	}
	return Value{}, coercionErr(Type{Kind: KindJSON}, t, data)
}

func coerceDate(data Date, t Type) (Value, error) {
	switch t.Kind {
	case KindDate:
		return DateVal(data), nil
	case KindDateTime:
		return DateTimeVal(DateTime{Date: data, Time: TimeOfDay{}}), nil
	case KindUtf8String:
		return Utf8String(data.String()), nil
	}
	return Value{}, coercionErr(Type{Kind: KindDate}, t, data.String())
}

func coerceTime(data TimeOfDay, t Type) (Value, error) {
	switch t.Kind {
	case KindTime:
		return TimeVal(data), nil
	case KindDateTime:
		return DateTimeVal(DateTime{Date: epochDate, Time: data}), nil
	case KindUtf8String:
		return Utf8String(data.String()), nil
	}
	return Value{}, coercionErr(Type{Kind: KindTime}, t, data.String())
}

func coerceDateTime(data DateTime, t Type) (Value, error) {
	switch t.Kind {
	case KindDateTime:
		return DateTimeVal(data), nil
	case KindDate:
		if data.Time.IsMidnight() {
			return DateVal(data.Date), nil
		}
	case KindTime:
		if data.Date == epochDate {
			return TimeVal(data.Time), nil
		}
	case KindUtf8String:
		return Utf8String(data.String()), nil
	}
	return Value{}, coercionErr(Type{Kind: KindDateTime}, t, data.String())
}

func coerceDateTimeTZ(data DateTimeWithTZ, t Type) (Value, error) {
	switch t.Kind {
	case KindDateTimeTZ:
		return DateTimeTZVal(data), nil
	case KindUtf8String:
		if data.Zone == "UTC" {
			if zoned, err := data.Zoned(); err == nil {
				return Utf8String(zoned.Format(time.RFC3339)), nil
			}
		}
	}
	return Value{}, coercionErr(Type{Kind: KindDateTimeTZ}, t, data.String())
}

func coerceUuid(data uuid.UUID, t Type) (Value, error) {
	switch t.Kind {
	case KindUuid:
		return Uuid(data), nil
	case KindUtf8String:
		return Utf8String(data.String()), nil
	}
	return Value{}, coercionErr(Type{Kind: KindUuid}, t, data.String())
}
