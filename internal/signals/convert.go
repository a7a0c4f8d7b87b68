package signals

import (
	"github.com/yegors/fsuipc-bridge/internal/validate"
)

// FSUIPC fixed-point scale factors
const (
	scale16    = 16.0
	scale128   = 128.0
	scale256   = 256.0
	scale1024  = 1024.0
	scale16383 = 16383.0
	scale16384 = 16384.0
	scale65536 = 65536.0

	turnDegrees = 360.0
	latScale    = 10001750.0 * scale65536 * scale65536
	lonScale    = scale65536 * scale65536 * scale65536 * scale65536

	low16Mask = 0xFFFF
)

func toFloat(raw any) (float64, bool) {
	return validate.AsFloat(raw)
}

func toInt(raw any) (int64, bool) {
	return validate.AsInt(raw)
}

// Low16 keeps the lower 16 bits of a 32-bit container
func Low16(raw any) (int64, bool) {
	v, ok := toInt(raw)
	if !ok {
		return 0, false
	}
	return v & low16Mask, true
}

// signed16 reinterprets the lower 16 bits as two's complement
func signed16(raw any) (int64, bool) {
	v, ok := Low16(raw)
	if !ok {
		return 0, false
	}
	if v >= 0x8000 {
		v -= 0x10000
	}
	return v, true
}

// bcdDigits splits the lower 16 bits into four decimal digits, most significant first.
// It fails when a nibble is not a decimal digit.
func bcdDigits(raw any) ([4]int64, bool) {
	var digits [4]int64
	v, ok := Low16(raw)
	if !ok {
		return digits, false
	}
	for i := 0; i < 4; i++ {
		d := (v >> (12 - 4*uint(i))) & 0xF
		if d > 9 {
			return digits, false
		}
		digits[i] = d
	}
	return digits, true
}

// EncodeBCD packs up to four decimal digits into a BCD word
func EncodeBCD(n int) (int64, bool) {
	if n < 0 || n > 9999 {
		return 0, false
	}
	var out int64
	for shift := uint(0); shift < 16; shift += 4 {
		out |= int64(n%10) << shift
		n /= 10
	}
	return out, true
}
