package wire

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqilrun/sqil/value"
)

func TestReaderNoColumns(t *testing.T) {
	r := NewReader(bytes.NewReader(nil), nil)
	_, ok, err := r.ReadValue()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReaderEmptyStream(t *testing.T) {
	r := NewReader(bytes.NewReader(nil), []value.Type{value.Int8Type()})
	_, ok, err := r.ReadValue()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReaderInt32(t *testing.T) {
	data := append([]byte{1}, []byte{0, 0, 0, 123}...)
	r := NewReader(bytes.NewReader(data), []value.Type{value.Int32Type()})

	v, ok, err := r.ReadValue()
	require.NoError(t, err)
	require.True(t, ok)
	n, isInt32 := v.AsInt32()
	require.True(t, isInt32)
	assert.EqualValues(t, 123, n)
}

func TestReaderVarchar(t *testing.T) {
	data := []byte{1, 3, 'a', 'b', 'c', 0}
	r := NewReader(bytes.NewReader(data), []value.Type{value.Utf8StringType(value.StringOptions{})})

	v, ok, err := r.ReadValue()
	require.NoError(t, err)
	require.True(t, ok)
	s, isStr := v.AsString()
	require.True(t, isStr)
	assert.Equal(t, "abc", s)
}

func TestReaderNullValue(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0}), []value.Type{value.Int32Type()})
	v, ok, err := r.ReadValue()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, v.IsNull())
}

func TestReaderUnexpectedEOFMidRow(t *testing.T) {
	// Two columns, but the stream ends after the first.
	data := []byte{1, 0, 0, 0, 42}
	r := NewReader(bytes.NewReader(data), []value.Type{value.Int32Type(), value.Int32Type()})

	_, ok, err := r.ReadValue()
	require.NoError(t, err)
	require.True(t, ok)

	_, _, err = r.ReadValue()
	require.Error(t, err)
	var fe *FramingError
	require.ErrorAs(t, err, &fe)
}

func TestReaderRoundTripAllTypes(t *testing.T) {
	structure := []value.Type{
		value.Utf8StringType(value.StringOptions{}),
		value.BinaryType(),
		value.BooleanType(),
		value.Int64Type(),
		value.Float64Type(),
		value.DecimalType(value.DecimalOptions{Precision: 10, Scale: 2}),
		value.JSONType(),
		value.Date(),
		value.Time(),
		value.DateTime(),
		value.UuidType(),
	}

	row := []value.Value{
		value.Utf8String("hello"),
		value.Binary([]byte{1, 2, 3}),
		value.Boolean(true),
		value.Int64(-42),
		value.Float64(3.25),
		value.Decimal(mustDecimal("12.50")),
		value.JSON(`{"a":1}`),
		value.DateVal(value.Date{Year: 2024, Month: 6, Day: 15}),
		value.TimeVal(value.TimeOfDay{Hour: 9, Minute: 5, Second: 30}),
		value.DateTimeVal(value.DateTime{Date: value.Date{Year: 2024, Month: 6, Day: 15}, Time: value.TimeOfDay{Hour: 9}}),
	}

	var buf bytes.Buffer
	w := NewWriter(&buf, structure[:len(row)])
	for _, v := range row {
		require.NoError(t, w.WriteValue(v))
	}

	r := NewReader(&buf, structure[:len(row)])
	for i, want := range row {
		got, ok, err := r.ReadValue()
		require.NoError(t, err)
		require.True(t, ok, "column %d", i)
		assert.True(t, want.Equal(got), "column %d: want %v got %v", i, want, got)
	}
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
