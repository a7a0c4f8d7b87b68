package signals

import (
	"math"
	"strconv"

	"github.com/yegors/fsuipc-bridge/internal/physics"
	"github.com/yegors/fsuipc-bridge/internal/simdata"
	"github.com/yegors/fsuipc-bridge/internal/validate"
)

// TransformFunc converts a decoded raw offset value. false means "no value".
type TransformFunc func(raw any) (simdata.Value, bool)

// TransformID names a transform on the wire and in logs
type TransformID string

const (
	TransformNone             TransformID = ""
	TransformKnots128ToKts    TransformID = "knots128_to_kts"
	TransformVSRawToFpm       TransformID = "vs_raw_to_fpm"
	TransformMeters256ToM     TransformID = "meters256_to_m"
	TransformGSU32ToKts       TransformID = "gs_u32_to_kts"
	TransformRawHdgToDeg      TransformID = "raw_hdg_to_deg"
	TransformRawAngToDeg      TransformID = "raw_ang_to_deg"
	TransformRawAngToDegPitch TransformID = "raw_ang_to_deg_pitch"
	TransformRawAngToDegRoll  TransformID = "raw_ang_to_deg_roll"
	TransformFSLatToDeg       TransformID = "fs_lat_to_deg"
	TransformFSLonToDeg       TransformID = "fs_lon_to_deg"
	TransformFSAltToM         TransformID = "fs_alt_to_m"
	TransformMagVarRawToDeg   TransformID = "magvar_raw_to_deg"
	TransformLower16          TransformID = "lower16"
	TransformU32Signed16Mag   TransformID = "u32_signed16_to_magdeg"
	TransformU32BaroToInHg    TransformID = "u32_baro_to_inhg"
	TransformBaroToInHg       TransformID = "baro_to_inhg"
	TransformU32ToPct16383    TransformID = "u32_to_pct_16383"
	TransformU32ToBoolParking TransformID = "u32_to_bool_parking"
	TransformNonzeroToBool    TransformID = "nonzero_to_bool"
	TransformBitsToBool0      TransformID = "bits_to_bool_0"
	TransformBitsToBool1      TransformID = "bits_to_bool_1"
	TransformBitsToBool2      TransformID = "bits_to_bool_2"
	TransformBitsToBool3      TransformID = "bits_to_bool_3"
	TransformBitsToBool4      TransformID = "bits_to_bool_4"
	TransformLightsMask       TransformID = "lights_mask"
	TransformBCDToComFreq     TransformID = "bcd_to_freq_com_official"
	TransformBCDToNavFreq     TransformID = "bcd_to_freq_nav_official"
	TransformBCDToXpdr        TransformID = "bcd_to_xpdr_official"
	TransformRPMRawToRPM      TransformID = "rpm_raw_to_rpm"
	TransformManifoldToInHg   TransformID = "manifold_to_inhg"
	TransformEGTToCelsius     TransformID = "egt_to_celsius"
	TransformTempToCelsius    TransformID = "temp_to_celsius"
	TransformFuelToGallons    TransformID = "fuel_to_gallons"
	TransformOilPressureToPSI TransformID = "oil_pressure_to_psi"
	TransformThrottleToPct    TransformID = "throttle_to_percent"
	TransformMixtureToPct     TransformID = "mixture_to_percent"
	TransformPropToPct        TransformID = "prop_to_percent"
	TransformHeadingBugToDeg  TransformID = "heading_bug_to_deg"
	TransformAltBugToFeet     TransformID = "alt_bug_to_feet"
	TransformVSTargetToFpm    TransformID = "vs_target_to_fpm"
	TransformWindToKts        TransformID = "wind_to_kts"
	TransformWindDirToDeg     TransformID = "wind_dir_to_deg"
)

// Fallbacks substituted for implausible readings
const (
	DefaultComKHz         = 122750
	DefaultNavKHz         = 110000
	DefaultSquawk         = 1200
	DefaultTemperatureC   = 15.0
	ParkingBrakeThreshold = 1000
	BrakePedalThreshold   = 200
	BaroRawMin            = 12800 // ~800 mb
	BaroRawMax            = 17600 // ~1100 mb
	minPlausibleTempRaw   = -200.0
	minPlausibleTempC     = -50.0
	maxPlausibleTempC     = 50.0
)

var registry = map[TransformID]TransformFunc{
	TransformKnots128ToKts:    scaled(1 / scale128),
	TransformVSRawToFpm:       scaled(physics.SecondsPerMinute * physics.MetersToFeet / scale256),
	TransformMeters256ToM:     scaled(1 / scale256),
	TransformGSU32ToKts:       scaled(physics.MpsToKnots / scale65536),
	TransformRawHdgToDeg:      rawHeadingToDeg,
	TransformRawAngToDeg:      scaled(turnDegrees / (scale65536 * scale65536)),
	TransformRawAngToDegPitch: scaled(-turnDegrees / (scale65536 * scale65536)),
	TransformRawAngToDegRoll:  scaled(-turnDegrees / (scale65536 * scale65536)),
	TransformFSLatToDeg:       scaled(90 / latScale),
	TransformFSLonToDeg:       scaled(turnDegrees / lonScale),
	TransformFSAltToM:         scaled(1 / scale65536),
	TransformMagVarRawToDeg:   signed16ToDeg,
	TransformLower16:          lower16,
	TransformU32Signed16Mag:   signed16ToDeg,
	TransformU32BaroToInHg:    u32BaroToInHg,
	TransformBaroToInHg:       scaled(physics.MillibarToInHg / scale16),
	TransformU32ToPct16383:    u32ToPct16383,
	TransformU32ToBoolParking: u32ToBoolParking,
	TransformNonzeroToBool:    nonzeroToBool,
	TransformBitsToBool0:      bitToBool(0),
	TransformBitsToBool1:      bitToBool(1),
	TransformBitsToBool2:      bitToBool(2),
	TransformBitsToBool3:      bitToBool(3),
	TransformBitsToBool4:      bitToBool(4),
	TransformLightsMask:       lightsMask,
	TransformBCDToComFreq:     bcdToFrequency(validate.MinComFrequencyKHz, validate.MaxComFrequencyKHz, DefaultComKHz),
	TransformBCDToNavFreq:     bcdToFrequency(validate.MinNavFrequencyKHz, validate.MaxNavFrequencyKHz, DefaultNavKHz),
	TransformBCDToXpdr:        bcdToSquawk,
	TransformRPMRawToRPM:      scaled(1),
	TransformManifoldToInHg:   scaled(1 / scale1024),
	TransformEGTToCelsius:     egtToCelsius,
	TransformTempToCelsius:    tempToCelsius,
	TransformFuelToGallons:    scaled(scale128 / (scale65536 * scale256)),
	TransformOilPressureToPSI: scaled(55 / scale16384),
	TransformThrottleToPct:    leverToPercent,
	TransformMixtureToPct:     leverToPercent,
	TransformPropToPct:        leverToPercent,
	TransformHeadingBugToDeg:  zeroDefault(scaled(turnDegrees / scale65536)),
	TransformAltBugToFeet:     zeroDefault(scaled(1)),
	TransformVSTargetToFpm:    scaled(1),
	TransformWindToKts:        scaled(1),
	TransformWindDirToDeg:     scaled(turnDegrees / scale65536),
}

// LookupTransform resolves a transform by name
func LookupTransform(id TransformID) (TransformFunc, bool) {
	fn, ok := registry[id]
	return fn, ok
}

// Transforms returns the names of all registered transforms
func Transforms() []TransformID {
	ids := make([]TransformID, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	return ids
}

// passthrough is used for signals without a transform
func passthrough(enc Encoding) TransformFunc {
	if enc == EncodingString {
		return func(raw any) (simdata.Value, bool) {
			switch v := raw.(type) {
			case string:
				return simdata.String(v), true
			case nil:
				return simdata.Value{}, false
			}
			if f, ok := toFloat(raw); ok {
				return simdata.String(strconv.FormatFloat(f, 'f', -1, 64)), true
			}
			return simdata.Value{}, false
		}
	}
	return scaled(1)
}

func scaled(factor float64) TransformFunc {
	return func(raw any) (simdata.Value, bool) {
		v, ok := toFloat(raw)
		if !ok {
			return simdata.Value{}, false
		}
		return simdata.Float(v * factor), true
	}
}

// zeroDefault turns "no value" into 0 for fields that must always be numeric
func zeroDefault(fn TransformFunc) TransformFunc {
	return func(raw any) (simdata.Value, bool) {
		if v, ok := fn(raw); ok {
			return v, true
		}
		return simdata.Float(0), true
	}
}

func rawHeadingToDeg(raw any) (simdata.Value, bool) {
	v, ok := toFloat(raw)
	if !ok {
		return simdata.Value{}, false
	}
	return simdata.Float(physics.Normalize360(v * turnDegrees / (scale65536 * scale65536))), true
}

func signed16ToDeg(raw any) (simdata.Value, bool) {
	v, ok := signed16(raw)
	if !ok {
		return simdata.Value{}, false
	}
	return simdata.Float(float64(v) * turnDegrees / scale65536), true
}

func lower16(raw any) (simdata.Value, bool) {
	v, ok := Low16(raw)
	if !ok {
		return simdata.Value{}, false
	}
	return simdata.Float(float64(v)), true
}

func u32BaroToInHg(raw any) (simdata.Value, bool) {
	v, ok := Low16(raw)
	if !ok {
		return simdata.Value{}, false
	}
	return simdata.Float(float64(v) / scale16 * physics.MillibarToInHg), true
}

func u32ToPct16383(raw any) (simdata.Value, bool) {
	v, ok := Low16(raw)
	if !ok {
		return simdata.Value{}, false
	}
	return simdata.Float(clampPercent(float64(v) / scale16383 * 100)), true
}

func u32ToBoolParking(raw any) (simdata.Value, bool) {
	v, ok := Low16(raw)
	if !ok {
		return simdata.Value{}, false
	}
	return simdata.Bool(v >= ParkingBrakeThreshold), true
}

func nonzeroToBool(raw any) (simdata.Value, bool) {
	v, ok := toInt(raw)
	if !ok {
		return simdata.Value{}, false
	}
	return simdata.Bool(v != 0), true
}

// bitToBool reads one bit from a bits object such as {"0": true, "2": false}
func bitToBool(bit int) TransformFunc {
	key := strconv.Itoa(bit)
	return func(raw any) (simdata.Value, bool) {
		bits, ok := raw.(map[string]any)
		if !ok {
			return simdata.Value{}, false
		}
		v, ok := bits[key]
		if !ok {
			return simdata.Value{}, false
		}
		b, ok := truthy(v)
		if !ok {
			return simdata.Value{}, false
		}
		return simdata.Bool(b), true
	}
}

// lightsMask accepts an integer mask or a bits object folded into a mask
func lightsMask(raw any) (simdata.Value, bool) {
	if bits, ok := raw.(map[string]any); ok {
		var mask int64
		seen := false
		for k, v := range bits {
			n, err := strconv.Atoi(k)
			if err != nil || n < 0 || n > 31 {
				continue
			}
			seen = true
			if on, ok := truthy(v); ok && on {
				mask |= 1 << uint(n)
			}
		}
		if !seen {
			return simdata.Value{}, false
		}
		return simdata.Float(float64(mask)), true
	}

	v, ok := toInt(raw)
	if !ok {
		return simdata.Value{}, false
	}
	return simdata.Float(float64(v & 0xFFFFFFFF)), true
}

// bcdToFrequency decodes a 1xx.yy MHz BCD word into kHz, substituting def for
// readings outside [lo, hi] or malformed input
func bcdToFrequency(lo, hi, def int) TransformFunc {
	return func(raw any) (simdata.Value, bool) {
		d, ok := bcdDigits(raw)
		if !ok {
			return simdata.Int(def), true
		}
		khz := 100000 + int(d[0])*10000 + int(d[1])*1000 + int(d[2])*100 + int(d[3])*10
		if khz < lo || khz > hi {
			return simdata.Int(def), true
		}
		return simdata.Int(khz), true
	}
}

func bcdToSquawk(raw any) (simdata.Value, bool) {
	d, ok := bcdDigits(raw)
	if !ok {
		return simdata.Int(DefaultSquawk), true
	}
	code := int(d[0]*1000 + d[1]*100 + d[2]*10 + d[3])
	if !validate.TransponderCode(code) {
		return simdata.Int(DefaultSquawk), true
	}
	return simdata.Int(code), true
}

func egtToCelsius(raw any) (simdata.Value, bool) {
	v, ok := toFloat(raw)
	if !ok {
		return simdata.Value{}, false
	}
	return simdata.Float(v*850/scale16384 - physics.ZeroCelsius), true
}

// tempToCelsius converts Kelvin*256, replacing implausible readings with a fixed ambient value
func tempToCelsius(raw any) (simdata.Value, bool) {
	v, ok := toFloat(raw)
	if !ok || v < minPlausibleTempRaw {
		return simdata.Float(DefaultTemperatureC), true
	}
	c := v/scale256 - physics.ZeroCelsius
	if c < minPlausibleTempC || c > maxPlausibleTempC {
		return simdata.Float(DefaultTemperatureC), true
	}
	return simdata.Float(c), true
}

func leverToPercent(raw any) (simdata.Value, bool) {
	v, ok := toInt(raw)
	if !ok {
		return simdata.Value{}, false
	}
	if v < 0 {
		v += 65536
	}
	return simdata.Float(clampPercent(float64(v) / scale16384 * 100)), true
}

func truthy(v any) (bool, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}
	f, ok := toFloat(v)
	if !ok {
		return false, false
	}
	return f != 0, true
}

func clampPercent(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
