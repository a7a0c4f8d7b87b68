package validate

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Plausibility bounds
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0

	MinAltitudeFt = -1000.0
	MaxAltitudeFt = 60000.0

	// Envelope used when checking rendered positions
	EnvelopeMinAltFt = -1000.0
	EnvelopeMaxAltFt = 100000.0

	MaxSpeedKts          = 600.0
	MaxVerticalSpeedFpm  = 6000.0
	MaxTemperatureC      = 60.0
	MinPressureInHg      = 27.5
	MaxPressureInHg      = 31.0
	MaxRPM               = 10000.0
	MaxN1Percent         = 105.0
	MinComFrequencyKHz   = 118000
	MaxComFrequencyKHz   = 136975
	MinNavFrequencyKHz   = 108000
	MaxNavFrequencyKHz   = 117950
	MaxTransponderCode   = 7777
	ThrottleFullScale    = 16384.0
	ThrottleNormalizedLo = -1.0
	ThrottleNormalizedHi = 1.0
)

// InRange reports whether lo <= v <= hi
func InRange(v, lo, hi float64) bool {
	if math.IsNaN(v) {
		return false
	}
	return v >= lo && v <= hi
}

// ValueInRange checks an untyped value. A nil value passes only when allowNil is set.
func ValueInRange(raw any, lo, hi float64, allowNil bool) bool {
	if raw == nil {
		return allowNil
	}
	v, ok := AsFloat(raw)
	if !ok {
		return false
	}
	return InRange(v, lo, hi)
}

func Latitude(v float64) bool     { return InRange(v, MinLatitude, MaxLatitude) }
func Longitude(v float64) bool    { return InRange(v, MinLongitude, MaxLongitude) }
func Altitude(ft float64) bool    { return InRange(ft, MinAltitudeFt, MaxAltitudeFt) }
func Speed(kts float64) bool      { return InRange(kts, 0, MaxSpeedKts) }
func Heading(deg float64) bool    { return InRange(deg, 0, 360) }
func Pitch(deg float64) bool      { return InRange(deg, -90, 90) }
func Roll(deg float64) bool       { return InRange(deg, -180, 180) }
func Temperature(c float64) bool  { return InRange(c, -MaxTemperatureC, MaxTemperatureC) }
func Pressure(inHg float64) bool  { return InRange(inHg, MinPressureInHg, MaxPressureInHg) }
func RPM(rpm float64) bool        { return InRange(rpm, 0, MaxRPM) }
func N1Percent(pct float64) bool  { return InRange(pct, 0, MaxN1Percent) }
func Percentage(pct float64) bool { return InRange(pct, 0, 100) }
func VerticalSpeed(fpm float64) bool {
	return InRange(fpm, -MaxVerticalSpeedFpm, MaxVerticalSpeedFpm)
}

// ComFrequency checks a COM frequency in kHz
func ComFrequency(khz int) bool {
	return khz >= MinComFrequencyKHz && khz <= MaxComFrequencyKHz
}

// NavFrequency checks a NAV frequency in kHz
func NavFrequency(khz int) bool {
	return khz >= MinNavFrequencyKHz && khz <= MaxNavFrequencyKHz
}

// TransponderCode checks a squawk code. Every digit must be 0-7.
func TransponderCode(code int) bool {
	if code < 0 || code > MaxTransponderCode {
		return false
	}
	for c := code; c > 0; c /= 10 {
		if c%10 > 7 {
			return false
		}
	}
	return true
}

// ThrottleCommand accepts a normalized -1..1 value or a raw -16384..16384 value
func ThrottleCommand(raw any) bool {
	v, ok := AsFloat(raw)
	if !ok {
		return false
	}
	if InRange(v, ThrottleNormalizedLo, ThrottleNormalizedHi) {
		return true
	}
	// 1 < |v| < 2 is neither normalized nor a sensible raw lever position
	if math.Abs(v) < 2 {
		return false
	}
	return InRange(v, -ThrottleFullScale, ThrottleFullScale)
}

// GearCommand accepts exactly 0 (up) or 1 (down)
func GearCommand(raw any) bool {
	v, ok := AsFloat(raw)
	if !ok {
		return false
	}
	return v == 0 || v == 1
}

// SanitizeFloat converts raw to a float, returning def when it is not numeric
func SanitizeFloat(raw any, def float64) float64 {
	if v, ok := AsFloat(raw); ok {
		return v
	}
	return def
}

// SanitizeInt converts raw to an int, truncating fractions. Returns def when not numeric.
func SanitizeInt(raw any, def int) int {
	if v, ok := AsFloat(raw); ok {
		return int(v)
	}
	return def
}

// SanitizeBool converts raw to a bool. Recognised boolean words are parsed,
// other non-empty strings are true. Returns def for nil.
func SanitizeBool(raw any, def bool) bool {
	switch v := raw.(type) {
	case nil:
		return def
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
		return v != ""
	}
	if f, ok := AsFloat(raw); ok {
		return f != 0
	}
	return def
}

// AsFloat converts a decoded JSON value to a finite float64. Numeric strings,
// including 0x-prefixed hexadecimal, are accepted. Booleans map to 0 and 1.
func AsFloat(raw any) (float64, bool) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case bool:
		if v {
			f = 1
		}
	case json.Number:
		return parseNumber(string(v))
	case string:
		return parseNumber(v)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// AsInt converts a decoded JSON value to an int64, truncating fractions
func AsInt(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
	case string:
		if i, ok := parseHex(v); ok {
			return i, true
		}
	}
	f, ok := AsFloat(raw)
	if !ok || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if i, ok := parseHex(s); ok {
		return float64(i), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseHex(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg, s = true, s[1:]
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return 0, false
	}
	u, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil || u > math.MaxInt64 {
		return 0, false
	}
	if neg {
		return -int64(u), true
	}
	return int64(u), true
}
