package validate

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInRange(t *testing.T) {
	assert.True(t, InRange(50, 0, 100))
	assert.True(t, InRange(0, 0, 100))
	assert.True(t, InRange(100, 0, 100))
	assert.False(t, InRange(-1, 0, 100))
	assert.False(t, InRange(101, 0, 100))
	assert.False(t, InRange(math.NaN(), 0, 100))
}

func TestValueInRange(t *testing.T) {
	assert.True(t, ValueInRange(nil, 0, 100, true))
	assert.False(t, ValueInRange(nil, 0, 100, false))
	assert.True(t, ValueInRange("50", 0, 100, false))
	assert.False(t, ValueInRange("150", 0, 100, false))
	assert.False(t, ValueInRange("invalid", 0, 100, false))
	assert.False(t, ValueInRange(map[string]any{}, 0, 100, false))
	assert.True(t, ValueInRange(json.Number("42"), 0, 100, false))
}

func TestRangeValidators(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(float64) bool
		valid   []float64
		invalid []float64
	}{
		{"latitude", Latitude, []float64{0, 45.5, -45.5, 90, -90}, []float64{91, -91, 180}},
		{"longitude", Longitude, []float64{0, 120.5, -120.5, 180, -180}, []float64{181, -181, 360}},
		{"altitude", Altitude, []float64{0, 10000, 35000, 60000, -1000}, []float64{-2000, 70000}},
		{"speed", Speed, []float64{0, 100, 250, 600}, []float64{-1, 700}},
		{"vertical speed", VerticalSpeed, []float64{0, 1000, -1000, 6000, -6000}, []float64{7000, -7000}},
		{"heading", Heading, []float64{0, 90, 180, 270, 360}, []float64{-1, 361}},
		{"pitch", Pitch, []float64{0, 15, -15, 90, -90}, []float64{91, -91}},
		{"roll", Roll, []float64{0, 45, -45, 180, -180}, []float64{181, -181}},
		{"temperature", Temperature, []float64{0, 15, -40, 40, -60, 60}, []float64{-70, 70}},
		{"pressure", Pressure, []float64{29.92, 28, 31, 27.5}, []float64{26, 33}},
		{"rpm", RPM, []float64{0, 2500, 10000}, []float64{-100, 15000}},
		{"n1", N1Percent, []float64{0, 50, 100, 105}, []float64{-1, 115}},
		{"percentage", Percentage, []float64{0, 50, 100}, []float64{-1, 101}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, v := range tt.valid {
				assert.True(t, tt.fn(v), "%v should be valid", v)
			}
			for _, v := range tt.invalid {
				assert.False(t, tt.fn(v), "%v should be invalid", v)
			}
		})
	}
}

func TestRadioValidators(t *testing.T) {
	for _, khz := range []int{118000, 122750, 136975} {
		assert.True(t, ComFrequency(khz), khz)
	}
	for _, khz := range []int{117999, 137000, 110000} {
		assert.False(t, ComFrequency(khz), khz)
	}

	for _, khz := range []int{108000, 110000, 117950} {
		assert.True(t, NavFrequency(khz), khz)
	}
	for _, khz := range []int{107999, 118000, 120000} {
		assert.False(t, NavFrequency(khz), khz)
	}

	for _, code := range []int{0, 1200, 7700, 7777, 7} {
		assert.True(t, TransponderCode(code), code)
	}
	for _, code := range []int{-1, 8000, 1289, 1900} {
		assert.False(t, TransponderCode(code), code)
	}
}

func TestThrottleCommand(t *testing.T) {
	for _, v := range []any{-1.0, 0.0, 0.5, 1.0, -16384, 0, 8192, 16384, "0.25"} {
		assert.True(t, ThrottleCommand(v), "%v", v)
	}
	for _, v := range []any{-1.5, 1.5, -20000, 20000, nil, "max"} {
		assert.False(t, ThrottleCommand(v), "%v", v)
	}
}

func TestGearCommand(t *testing.T) {
	for _, v := range []any{0, 1, 0.0, 1.0, json.Number("1")} {
		assert.True(t, GearCommand(v), "%v", v)
	}
	for _, v := range []any{2, -1, 0.5, nil, "down"} {
		assert.False(t, GearCommand(v), "%v", v)
	}
}

func TestSanitizeFloat(t *testing.T) {
	assert.Equal(t, 123.45, SanitizeFloat(123.45, 0))
	assert.Equal(t, 123.45, SanitizeFloat("123.45", 0))
	assert.Equal(t, 100.0, SanitizeFloat(100, 0))
	assert.Equal(t, 0.0, SanitizeFloat(nil, 0))
	assert.Equal(t, 10.0, SanitizeFloat(nil, 10))
	assert.Equal(t, 99.9, SanitizeFloat("invalid", 99.9))
	assert.Equal(t, 0.0, SanitizeFloat(map[string]any{}, 0))
	assert.Equal(t, 5.0, SanitizeFloat("NaN", 5))
}

func TestSanitizeInt(t *testing.T) {
	assert.Equal(t, 123, SanitizeInt(123, 0))
	assert.Equal(t, 123, SanitizeInt("123", 0))
	assert.Equal(t, 123, SanitizeInt(123.7, 0))
	assert.Equal(t, 0, SanitizeInt(nil, 0))
	assert.Equal(t, 10, SanitizeInt(nil, 10))
	assert.Equal(t, 99, SanitizeInt("invalid", 99))
}

func TestSanitizeBool(t *testing.T) {
	assert.True(t, SanitizeBool(true, false))
	assert.False(t, SanitizeBool(false, true))
	assert.True(t, SanitizeBool(1, false))
	assert.False(t, SanitizeBool(0, true))
	assert.True(t, SanitizeBool("yes", false))
	assert.False(t, SanitizeBool("", true))
	assert.False(t, SanitizeBool("false", true))
	assert.False(t, SanitizeBool(nil, false))
	assert.True(t, SanitizeBool(nil, true))
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		raw  any
		want int64
		ok   bool
	}{
		{json.Number("42"), 42, true},
		{json.Number("42.9"), 42, true},
		{"0x2275", 0x2275, true},
		{"-0x10", -16, true},
		{"17", 17, true},
		{12.7, 12, true},
		{true, 1, true},
		{"0xZZ", 0, false},
		{nil, 0, false},
		{[]any{}, 0, false},
	}
	for _, tt := range tests {
		got, ok := AsInt(tt.raw)
		assert.Equal(t, tt.ok, ok, "%v", tt.raw)
		assert.Equal(t, tt.want, got, "%v", tt.raw)
	}
}
