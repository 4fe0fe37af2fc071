// Package value implements the DataValue/DataType universe shared by every
// connector: a tagged value system with a lossless coercion engine (see
// coerce.go) used to move values between the remote wire format, the
// reference executor, and the dialect compilers.
package value

import "fmt"

// Kind discriminates the variants of DataType and DataValue.
type Kind uint8

const (
	KindNull Kind = iota
	KindUtf8String
	KindBinary
	KindBoolean
	KindInt8
	KindUInt8
	KindInt16
	KindUInt16
	KindInt32
	KindUInt32
	KindInt64
	KindUInt64
	KindFloat32
	KindFloat64
	KindDecimal
	KindJSON
	KindDate
	KindTime
	KindDateTime
	KindDateTimeTZ
	KindUuid
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindUtf8String:
		return "Utf8String"
	case KindBinary:
		return "Binary"
	case KindBoolean:
		return "Boolean"
	case KindInt8:
		return "Int8"
	case KindUInt8:
		return "UInt8"
	case KindInt16:
		return "Int16"
	case KindUInt16:
		return "UInt16"
	case KindInt32:
		return "Int32"
	case KindUInt32:
		return "UInt32"
	case KindInt64:
		return "Int64"
	case KindUInt64:
		return "UInt64"
	case KindFloat32:
		return "Float32"
	case KindFloat64:
		return "Float64"
	case KindDecimal:
		return "Decimal"
	case KindJSON:
		return "JSON"
	case KindDate:
		return "Date"
	case KindTime:
		return "Time"
	case KindDateTime:
		return "DateTime"
	case KindDateTimeTZ:
		return "DateTimeWithTZ"
	case KindUuid:
		return "Uuid"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// StringOptions carries the optional max length of a Utf8String column.
type StringOptions struct {
	MaxLength *uint32
}

// DecimalOptions carries the precision and scale of a Decimal column.
type DecimalOptions struct {
	Precision uint8
	Scale     uint8
}

// Type is the DataType sum: a Kind plus the payload the kind requires.
type Type struct {
	Kind    Kind
	String  StringOptions
	Decimal DecimalOptions
}

// The constructors below build Type values. Each is named with a "Type"
// suffix where the corresponding Value constructor in value.go would
// otherwise collide (e.g. Int32Type vs Int32); Date/Time/DateTime/
// DateTimeWithTZ don't collide since their Value-side counterparts are
// DateVal/TimeVal/DateTimeVal/DateTimeTZVal.
func NullType() Type       { return Type{Kind: KindNull} }
func BooleanType() Type    { return Type{Kind: KindBoolean} }
func Int8Type() Type       { return Type{Kind: KindInt8} }
func UInt8Type() Type      { return Type{Kind: KindUInt8} }
func Int16Type() Type      { return Type{Kind: KindInt16} }
func UInt16Type() Type     { return Type{Kind: KindUInt16} }
func Int32Type() Type      { return Type{Kind: KindInt32} }
func UInt32Type() Type     { return Type{Kind: KindUInt32} }
func Int64Type() Type      { return Type{Kind: KindInt64} }
func UInt64Type() Type     { return Type{Kind: KindUInt64} }
func Float32Type() Type    { return Type{Kind: KindFloat32} }
func Float64Type() Type    { return Type{Kind: KindFloat64} }
func BinaryType() Type     { return Type{Kind: KindBinary} }
func JSONType() Type       { return Type{Kind: KindJSON} }
func Date() Type           { return Type{Kind: KindDate} }
func Time() Type           { return Type{Kind: KindTime} }
func DateTime() Type       { return Type{Kind: KindDateTime} }
func DateTimeWithTZ() Type { return Type{Kind: KindDateTimeTZ} }
func UuidType() Type       { return Type{Kind: KindUuid} }

// Utf8StringType builds a string type, optionally bounded by opts.MaxLength.
func Utf8StringType(opts StringOptions) Type {
	return Type{Kind: KindUtf8String, String: opts}
}

// DecimalType builds a decimal type with the given precision/scale.
func DecimalType(opts DecimalOptions) Type {
	return Type{Kind: KindDecimal, Decimal: opts}
}

// Is reports whether the type's kind matches k.
func (t Type) Is(k Kind) bool { return t.Kind == k }

func (t Type) String() string {
	switch t.Kind {
	case KindUtf8String:
		if t.String.MaxLength != nil {
			return fmt.Sprintf("Utf8String(%d)", *t.String.MaxLength)
		}
		return "Utf8String"
	case KindDecimal:
		return fmt.Sprintf("Decimal(%d,%d)", t.Decimal.Precision, t.Decimal.Scale)
	default:
		return t.Kind.String()
	}
}

// Equal reports whether two types are the same variant (StringOptions /
// DecimalOptions payloads included).
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindUtf8String:
		if (t.String.MaxLength == nil) != (o.String.MaxLength == nil) {
			return false
		}
		if t.String.MaxLength != nil && *t.String.MaxLength != *o.String.MaxLength {
			return false
		}
	case KindDecimal:
		return t.Decimal == o.Decimal
	}
	return true
}
