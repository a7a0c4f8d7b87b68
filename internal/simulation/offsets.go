package simulation

import (
	"math"

	"github.com/yegors/fsuipc-bridge/internal/physics"
	"github.com/yegors/fsuipc-bridge/internal/signals"
	"github.com/yegors/fsuipc-bridge/pkg/logger"
)

const (
	turn32       = 4294967296.0
	turn16       = 65536.0
	parkingSet   = 32767
	kelvin256    = 256.0
	vsRawPerFpm  = 256 / (physics.SecondsPerMinute * physics.MetersToFeet)
	gsRawPerKnot = 65536 / physics.MpsToKnots
)

type offsetEncoder func(a *Aircraft) any

// encoders produce the raw value the simulator reports for each offset address
var encoders = map[int]offsetEncoder{
	0x0560: func(a *Aircraft) any { return a.Lat },
	0x0568: func(a *Aircraft) any { return a.Lon },
	0x6020: func(a *Aircraft) any { return a.AltitudeFt * physics.FeetToMeters },
	0x02B4: func(a *Aircraft) any { return int64(math.Round(a.IASKts * gsRawPerKnot)) },
	0x02BC: func(a *Aircraft) any { return int64(math.Round(a.IASKts * 128)) },
	0x02C8: func(a *Aircraft) any { return int64(math.Round(a.VerticalRateFpm * vsRawPerFpm)) },
	0x0020: func(a *Aircraft) any { return int64(math.Round(a.GroundElevationFt * physics.FeetToMeters * 256)) },
	0x0580: func(a *Aircraft) any { return uint32(physics.Normalize360(a.HeadingDeg) / 360 * turn32) },
	0x0578: func(a *Aircraft) any { return int32(-a.PitchDeg / 360 * turn32) },
	0x057C: func(a *Aircraft) any { return int32(-a.BankDeg / 360 * turn32) },
	0x02A0: func(a *Aircraft) any { return int64(uint16(int16(math.Round(a.MagVarDeg * turn16 / 360)))) },
	0x0D0C: func(a *Aircraft) any { return int64(a.Lights) },
	0x281C: func(a *Aircraft) any { return boolRaw(a.BatteryOn) },
	0x029C: func(a *Aircraft) any { return boolRaw(a.PitotHeatOn) },
	0x0332: func(a *Aircraft) any { return int64(math.Round(a.PressureMb * 16)) },
	0x0330: func(a *Aircraft) any { return int64(math.Round(a.PressureMb * 16)) },
	0x0BC4: func(a *Aircraft) any { return int64(a.BrakeLeft) },
	0x0BC6: func(a *Aircraft) any { return int64(a.BrakeRight) },
	0x0BC8: func(a *Aircraft) any {
		if a.ParkingBrake {
			return int64(parkingSet)
		}
		return int64(0)
	},
	0x0BDC: func(a *Aircraft) any { return int64(a.FlapsRaw) },
	0x0BE8: func(a *Aircraft) any { return int64(a.GearRaw) },
	0x3D00: func(a *Aircraft) any { return a.Name },
	0x034E: func(a *Aircraft) any { return frequencyBCD(a.Com1KHz) },
	0x311A: func(a *Aircraft) any { return frequencyBCD(a.Com1StandbyKHz) },
	0x3118: func(a *Aircraft) any { return frequencyBCD(a.Com2KHz) },
	0x311C: func(a *Aircraft) any { return frequencyBCD(a.Com2StandbyKHz) },
	0x0350: func(a *Aircraft) any { return frequencyBCD(a.Nav1KHz) },
	0x311E: func(a *Aircraft) any { return frequencyBCD(a.Nav1StandbyKHz) },
	0x0354: func(a *Aircraft) any {
		v, _ := signals.EncodeBCD(a.Squawk)
		return v
	},
	0x0898: func(a *Aircraft) any { return int64(math.Round(a.EngineRPM)) },
	0x036C: func(a *Aircraft) any { return boolRaw(a.StallWarning) },
	0x088C: func(a *Aircraft) any { return int64(a.ThrottleRaw) },
	0x07BC: func(a *Aircraft) any { return boolRaw(a.APMaster) },
	0x07CC: func(a *Aircraft) any { return int64(math.Round(physics.Normalize360(a.APHeadingDeg) * turn16 / 360)) },
	0x07D4: func(a *Aircraft) any { return int64(math.Round(a.APAltitudeFt)) },
	0x0E90: func(a *Aircraft) any { return int64(math.Round(a.WindSpeedKts)) },
	0x0E92: func(a *Aircraft) any { return int64(math.Round(physics.Normalize360(a.WindDirDeg) * turn16 / 360)) },
	0x0E8C: func(a *Aircraft) any { return int64(math.Round((a.OutsideTempC + physics.ZeroCelsius) * kelvin256)) },
}

type offsetWriter func(a *Aircraft, raw int64)

// writers apply raw offset writes to the aircraft
var writers = map[int]offsetWriter{
	0x088C: func(a *Aircraft, raw int64) { a.ThrottleRaw = int(int16(raw)) },
	0x0BE8: func(a *Aircraft, raw int64) { a.GearRaw = int(raw) },
	0x0BDC: func(a *Aircraft, raw int64) { a.FlapsRaw = int(raw) },
	0x0BC8: func(a *Aircraft, raw int64) { a.ParkingBrake = raw&0xFFFF >= signals.ParkingBrakeThreshold },
	0x311A: func(a *Aircraft, raw int64) {
		if khz, ok := decodeBCD(signals.TransformBCDToComFreq, raw); ok {
			a.Com1StandbyKHz = khz
		}
	},
	0x0354: func(a *Aircraft, raw int64) {
		if code, ok := decodeBCD(signals.TransformBCDToXpdr, raw); ok {
			a.Squawk = code
		}
	},
	0x07BC: func(a *Aircraft, raw int64) { a.APMaster = raw != 0 },
}

// ReadOffset returns the raw value for address. Offsets the aircraft does not
// model echo the last value written to them.
func (s *Service) ReadOffset(address int) (any, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.readOffset(address)
}

func (s *Service) readOffset(address int) (any, bool) {
	if enc, ok := encoders[address]; ok {
		return enc(&s.aircraft), true
	}
	if v, ok := s.extra[address]; ok {
		return v, true
	}
	return nil, false
}

// ReadOffsets returns raw values for every name->address pair it can serve
func (s *Service) ReadOffsets(addresses map[string]int) map[string]any {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make(map[string]any, len(addresses))
	for name, address := range addresses {
		if v, ok := s.readOffset(address); ok {
			out[name] = v
		}
	}
	return out
}

// WriteOffset applies a raw write to the aircraft
func (s *Service) WriteOffset(address int, raw int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if w, ok := writers[address]; ok {
		w(&s.aircraft, raw)
	} else {
		s.extra[address] = raw
	}

	s.logger.Debug("Offset written",
		logger.Int("address", address),
		logger.Int64("raw", raw))
}

func boolRaw(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// frequencyBCD encodes a 1xx.yyy MHz frequency in kHz as the four BCD digits xxyy
func frequencyBCD(khz int) int64 {
	v, _ := signals.EncodeBCD((khz - 100000) / 10)
	return v
}

func decodeBCD(id signals.TransformID, raw int64) (int, bool) {
	fn, ok := signals.LookupTransform(id)
	if !ok {
		return 0, false
	}
	v, ok := fn(raw)
	if !ok {
		return 0, false
	}
	f, ok := v.AsFloat()
	if !ok {
		return 0, false
	}
	return int(f), true
}
