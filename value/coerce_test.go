package value

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTrip asserts coerce(coerce(a, to), a.TypeOf()) == a for every
// destination type in tos -- the no-data-loss invariant every connector
// relies on.
func roundTrip(t *testing.T, a Value, tos []Type) {
	t.Helper()
	for _, to := range tos {
		coerced, err := a.CoerceInto(to)
		require.NoError(t, err, "coercing %v into %v", a, to)

		back, err := coerced.CoerceInto(a.TypeOf())
		require.NoError(t, err, "coercing %v back from %v", coerced, to)

		assert.True(t, a.Equal(back), "round trip %v -> %v -> %v broke", a, to, back)
	}
}

func TestCoerceNoDataLoss(t *testing.T) {
	maxLen := StringOptions{}
	decOpts := DecimalType(DecimalOptions{Precision: 20, Scale: 5})

	roundTrip(t, Utf8String("Hello world"), []Type{BinaryType()})
	roundTrip(t, Binary([]byte("Hello world")), []Type{Utf8StringType(maxLen)})

	numericTargets := []Type{
		BooleanType(), Int8Type(), UInt8Type(), Int16Type(), UInt16Type(), Int32Type(), UInt32Type(),
		UInt64Type(), Int64Type(), Float32Type(), Float64Type(), decOpts, Utf8StringType(maxLen), BinaryType(),
	}
	roundTrip(t, Boolean(true), numericTargets)
	roundTrip(t, Boolean(false), numericTargets)

	roundTrip(t, Int8(123), []Type{UInt8Type(), Int16Type(), UInt16Type(), Int32Type(), UInt32Type(), Int64Type(), UInt64Type(), Float32Type(), Float64Type(), decOpts, Utf8StringType(maxLen)})
	roundTrip(t, Int32(-12345), []Type{Int64Type(), Float64Type(), decOpts, Utf8StringType(maxLen)})
	roundTrip(t, UInt64(42), []Type{Int64Type(), Float64Type(), decOpts, Utf8StringType(maxLen)})

	roundTrip(t, Float32(3.5), []Type{Float64Type(), decOpts, Utf8StringType(maxLen)})
	roundTrip(t, Float64(3.5), []Type{decOpts, Utf8StringType(maxLen)})

	roundTrip(t, Decimal(decimal.RequireFromString("123.45000")), []Type{Float64Type(), Utf8StringType(maxLen)})
	roundTrip(t, Decimal(decimal.RequireFromString("42")), []Type{Int64Type(), Utf8StringType(maxLen)})

	roundTrip(t, DateVal(Date{Year: 2023, Month: 5, Day: 1}), []Type{Utf8StringType(maxLen)})
	roundTrip(t, TimeVal(TimeOfDay{Hour: 12, Minute: 30, Second: 0}), []Type{Utf8StringType(maxLen)})
	roundTrip(t, DateTimeVal(DateTime{Date: Date{Year: 2023, Month: 5, Day: 1}, Time: TimeOfDay{Hour: 12, Minute: 30}}), []Type{Utf8StringType(maxLen)})

	roundTrip(t, Uuid(uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")), []Type{Utf8StringType(maxLen)})
}

func TestCoerceDateTimeNarrowing(t *testing.T) {
	midnight := DateTime{Date: Date{Year: 2023, Month: 1, Day: 1}}
	coerced, err := DateTimeVal(midnight).CoerceInto(Date())
	require.NoError(t, err)
	d, ok := coerced.AsDate()
	require.True(t, ok)
	assert.Equal(t, midnight.Date, d)

	nonMidnight := DateTime{Date: Date{Year: 2023, Month: 1, Day: 1}, Time: TimeOfDay{Hour: 1}}
	_, err = DateTimeVal(nonMidnight).CoerceInto(Date())
	assert.Error(t, err)

	epoch := DateTime{Date: epochDate, Time: TimeOfDay{Hour: 8, Minute: 15}}
	coerced, err = DateTimeVal(epoch).CoerceInto(Time())
	require.NoError(t, err)
	tm, ok := coerced.AsTime()
	require.True(t, ok)
	assert.Equal(t, epoch.Time, tm)

	notEpoch := DateTime{Date: Date{Year: 1999, Month: 1, Day: 1}, Time: TimeOfDay{Hour: 8}}
	_, err = DateTimeVal(notEpoch).CoerceInto(Time())
	assert.Error(t, err)
}

func TestCoerceOutOfRangeFails(t *testing.T) {
	_, err := Int32(300).CoerceInto(Int8Type())
	require.Error(t, err)
	var coerceErr *CoercionError
	require.ErrorAs(t, err, &coerceErr)
	assert.Equal(t, KindInt32, coerceErr.From.Kind)
	assert.Equal(t, KindInt8, coerceErr.To.Kind)
}

func TestCoerceDecimalOutOfInt64RangeFails(t *testing.T) {
	huge := Decimal(decimal.RequireFromString("99999999999999999999"))
	_, err := huge.CoerceInto(Int64Type())
	require.Error(t, err)
	var coerceErr *CoercionError
	require.ErrorAs(t, err, &coerceErr)
	assert.Equal(t, KindInt64, coerceErr.To.Kind)
}

func TestCoerceDecimalOutOfUInt64RangeFails(t *testing.T) {
	negative := Decimal(decimal.RequireFromString("-1"))
	_, err := negative.CoerceInto(UInt64Type())
	assert.Error(t, err)

	huge := Decimal(decimal.RequireFromString("99999999999999999999"))
	_, err = huge.CoerceInto(UInt64Type())
	assert.Error(t, err)
}

func TestCoerceDecimalWithinInt64RangeSucceeds(t *testing.T) {
	d := Decimal(decimal.RequireFromString("42"))
	coerced, err := d.CoerceInto(Int64Type())
	require.NoError(t, err)
	n, ok := coerced.AsInt64()
	require.True(t, ok)
	assert.Equal(t, int64(42), n)
}

func TestCoerceNonIntegralFloatToIntFails(t *testing.T) {
	_, err := Float64(3.5).CoerceInto(Int32Type())
	assert.Error(t, err)
}

func TestCoerceNullIsTypeIndependent(t *testing.T) {
	n, err := Null().CoerceInto(Int32Type())
	require.NoError(t, err)
	assert.True(t, n.IsNull())
}

func TestCoerceSourceTruncatedInError(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "x"
	}
	_, err := Utf8String(long).CoerceInto(Int32Type())
	require.Error(t, err)
	var coerceErr *CoercionError
	require.ErrorAs(t, err, &coerceErr)
	assert.Len(t, coerceErr.Source, 50)
}
