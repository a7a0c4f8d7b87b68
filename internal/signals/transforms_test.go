package signals

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func applyFloat(t *testing.T, id TransformID, raw any) (float64, bool) {
	t.Helper()
	fn, ok := LookupTransform(id)
	require.True(t, ok, "transform %s not registered", id)
	v, ok := fn(raw)
	if !ok {
		return 0, false
	}
	f, isNum := v.AsFloat()
	require.True(t, isNum)
	return f, true
}

func TestTransformsScaling(t *testing.T) {
	tests := []struct {
		name string
		id   TransformID
		raw  any
		want float64
	}{
		{"knots128", TransformKnots128ToKts, 128, 1.0},
		{"knots128 json number", TransformKnots128ToKts, json.Number("256"), 2.0},
		{"knots128 numeric string", TransformKnots128ToKts, "384", 3.0},
		{"meters256", TransformMeters256ToM, 256, 1.0},
		{"vs raw", TransformVSRawToFpm, 256, 196.8504},
		{"ground speed", TransformGSU32ToKts, 65536, 1.943844},
		{"heading quarter turn", TransformRawHdgToDeg, 1 << 30, 90},
		{"heading wraps", TransformRawHdgToDeg, int64(5) << 30, 90},
		{"angle", TransformRawAngToDeg, 1 << 30, 90},
		{"pitch inverted", TransformRawAngToDegPitch, 1 << 30, -90},
		{"roll inverted", TransformRawAngToDegRoll, -(1 << 29), 45},
		{"fs altitude", TransformFSAltToM, 65536 * 100, 100},
		{"magvar negative", TransformU32Signed16Mag, 0xFFFF, -360.0 / 65536},
		{"magvar ignores upper word", TransformU32Signed16Mag, 0x12340100, 256 * 360.0 / 65536},
		{"magvar legacy", TransformMagVarRawToDeg, 0x8000, -180},
		{"magvar hex string", TransformMagVarRawToDeg, "0x4000", 90},
		{"lower16", TransformLower16, 0x0001FFFF, 0xFFFF},
		{"baro u32", TransformU32BaroToInHg, 0x00013F54, 16212.0 / 16 * 0.02953},
		{"baro plain", TransformBaroToInHg, 16212, 16212.0 / 16 * 0.02953},
		{"pct16383 full", TransformU32ToPct16383, 16383, 100},
		{"pct16383 clamped", TransformU32ToPct16383, 32768, 100},
		{"pct16383 upper word ignored", TransformU32ToPct16383, 0x10000, 0},
		{"rpm", TransformRPMRawToRPM, 2400, 2400},
		{"manifold", TransformManifoldToInHg, 1024 * 25, 25},
		{"egt", TransformEGTToCelsius, 16384, 850 - 273.15},
		{"fuel", TransformFuelToGallons, 65536 * 256, 128},
		{"oil pressure", TransformOilPressureToPSI, 16384, 55},
		{"throttle half", TransformThrottleToPct, 8192, 50},
		{"throttle full", TransformThrottleToPct, 16384, 100},
		{"throttle negative wraps and clamps", TransformThrottleToPct, -1, 100},
		{"mixture", TransformMixtureToPct, 4096, 25},
		{"prop", TransformPropToPct, 0, 0},
		{"heading bug", TransformHeadingBugToDeg, 16384, 90},
		{"alt bug", TransformAltBugToFeet, 5000, 5000},
		{"vs target", TransformVSTargetToFpm, -500, -500},
		{"wind speed", TransformWindToKts, 12, 12},
		{"wind dir", TransformWindDirToDeg, 16384, 90},
		{"temperature", TransformTempToCelsius, (20 + 273.15) * 256, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := applyFloat(t, tt.id, tt.raw)
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestTransformsMalformedInput(t *testing.T) {
	noValue := []TransformID{
		TransformKnots128ToKts,
		TransformVSRawToFpm,
		TransformMeters256ToM,
		TransformGSU32ToKts,
		TransformRawHdgToDeg,
		TransformRawAngToDeg,
		TransformRawAngToDegPitch,
		TransformRawAngToDegRoll,
		TransformFSLatToDeg,
		TransformFSLonToDeg,
		TransformFSAltToM,
		TransformMagVarRawToDeg,
		TransformLower16,
		TransformU32Signed16Mag,
		TransformU32BaroToInHg,
		TransformBaroToInHg,
		TransformU32ToPct16383,
		TransformU32ToBoolParking,
		TransformNonzeroToBool,
		TransformBitsToBool0,
		TransformLightsMask,
		TransformRPMRawToRPM,
		TransformManifoldToInHg,
		TransformEGTToCelsius,
		TransformFuelToGallons,
		TransformOilPressureToPSI,
		TransformThrottleToPct,
		TransformMixtureToPct,
		TransformPropToPct,
		TransformVSTargetToFpm,
		TransformWindToKts,
		TransformWindDirToDeg,
	}

	for _, id := range noValue {
		for _, raw := range []any{nil, "invalid", []any{1}} {
			fn, ok := LookupTransform(id)
			require.True(t, ok)
			_, ok = fn(raw)
			assert.False(t, ok, "%s(%v) should yield no value", id, raw)
		}
	}

	for _, id := range []TransformID{TransformHeadingBugToDeg, TransformAltBugToFeet} {
		for _, raw := range []any{nil, "invalid", map[string]any{}} {
			got, ok := applyFloat(t, id, raw)
			assert.True(t, ok, "%s must always yield a number", id)
			assert.Equal(t, 0.0, got)
		}
	}
}

func TestBCDFrequencies(t *testing.T) {
	tests := []struct {
		name string
		id   TransformID
		raw  any
		want float64
	}{
		{"com 122.75", TransformBCDToComFreq, 0x2275, 122750},
		{"com lower edge", TransformBCDToComFreq, 0x1800, 118000},
		{"com 135.50", TransformBCDToComFreq, 0x3550, 135500},
		{"com out of band", TransformBCDToComFreq, 0x0750, DefaultComKHz},
		{"com above band", TransformBCDToComFreq, 0x3700, DefaultComKHz},
		{"com invalid nibble", TransformBCDToComFreq, 0x22A5, DefaultComKHz},
		{"com nil", TransformBCDToComFreq, nil, DefaultComKHz},
		{"com garbage", TransformBCDToComFreq, "garbage", DefaultComKHz},
		{"nav 110.00", TransformBCDToNavFreq, 0x1000, 110000},
		{"nav 117.95", TransformBCDToNavFreq, 0x1795, 117950},
		{"nav lower edge", TransformBCDToNavFreq, 0x0800, 108000},
		{"nav com band", TransformBCDToNavFreq, 0x1800, DefaultNavKHz},
		{"nav nil", TransformBCDToNavFreq, nil, DefaultNavKHz},
		{"xpdr vfr", TransformBCDToXpdr, 0x1200, 1200},
		{"xpdr emergency", TransformBCDToXpdr, 0x7700, 7700},
		{"xpdr zero", TransformBCDToXpdr, 0x0000, 0},
		{"xpdr max", TransformBCDToXpdr, 0x7777, 7777},
		{"xpdr not octal", TransformBCDToXpdr, 0x8888, DefaultSquawk},
		{"xpdr digit 8", TransformBCDToXpdr, 0x1280, DefaultSquawk},
		{"xpdr nil", TransformBCDToXpdr, nil, DefaultSquawk},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := applyFloat(t, tt.id, tt.raw)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBCDDecodeIsStableOnValidInput(t *testing.T) {
	for _, khz := range []int{118000, 121500, 122800, 136970} {
		raw, ok := EncodeBCD((khz - 100000) / 10)
		require.True(t, ok)

		first, ok := applyFloat(t, TransformBCDToComFreq, raw)
		require.True(t, ok)
		assert.Equal(t, float64(khz), first)

		again, ok := EncodeBCD((int(first) - 100000) / 10)
		require.True(t, ok)
		assert.Equal(t, raw, again)
	}
}

func TestTemperatureFallback(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"very negative raw", -300},
		{"absolute zero", 0},
		{"too hot", (80 + 273.15) * 256},
		{"nil", nil},
		{"garbage", "hot"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := applyFloat(t, TransformTempToCelsius, tt.raw)
			require.True(t, ok)
			assert.Equal(t, DefaultTemperatureC, got)
		})
	}
}

func TestBooleanTransforms(t *testing.T) {
	fn, _ := LookupTransform(TransformNonzeroToBool)
	v, ok := fn("0")
	require.True(t, ok)
	b, _ := v.AsBool()
	assert.False(t, b)

	v, ok = fn(json.Number("5"))
	require.True(t, ok)
	b, _ = v.AsBool()
	assert.True(t, b)

	parking, _ := LookupTransform(TransformU32ToBoolParking)
	for raw, want := range map[int]bool{32767: true, 1000: true, 999: false, 0x10000: false} {
		v, ok := parking(raw)
		require.True(t, ok)
		b, _ := v.AsBool()
		assert.Equal(t, want, b, "raw %d", raw)
	}

	bit2, _ := LookupTransform(TransformBitsToBool2)
	v, ok = bit2(map[string]any{"2": true})
	require.True(t, ok)
	b, _ = v.AsBool()
	assert.True(t, b)

	_, ok = bit2(map[string]any{"0": true})
	assert.False(t, ok)
	_, ok = bit2(4)
	assert.False(t, ok)
}

func TestLightsMask(t *testing.T) {
	got, ok := applyFloat(t, TransformLightsMask, 0x1D)
	require.True(t, ok)
	assert.Equal(t, float64(0x1D), got)

	got, ok = applyFloat(t, TransformLightsMask, map[string]any{"0": true, "2": false, "4": json.Number("1")})
	require.True(t, ok)
	assert.Equal(t, float64(0x11), got)

	_, ok = applyFloat(t, TransformLightsMask, map[string]any{"x": true})
	assert.False(t, ok)
}

func TestPassthrough(t *testing.T) {
	str := passthrough(EncodingString)
	v, ok := str("Cessna 172")
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "Cessna 172", s)

	_, ok = str(nil)
	assert.False(t, ok)

	num := passthrough(EncodingFloat)
	v, ok = num(json.Number("45.5"))
	require.True(t, ok)
	f, _ := v.AsFloat()
	assert.Equal(t, 45.5, f)

	_, ok = num("not a number")
	assert.False(t, ok)
}
