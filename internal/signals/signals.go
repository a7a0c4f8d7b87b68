package signals

import (
	"fmt"

	"github.com/yegors/fsuipc-bridge/internal/simdata"
)

// Encoding is the binary layout of an offset as understood by the FSUIPC WebSocket server
type Encoding string

const (
	EncodingUint   Encoding = "uint"
	EncodingInt    Encoding = "int"
	EncodingShort  Encoding = "short"
	EncodingFloat  Encoding = "float"
	EncodingLat    Encoding = "lat"
	EncodingLon    Encoding = "lon"
	EncodingString Encoding = "string"
)

// Sink is the flight-state destination of a converted signal
type Sink struct {
	Group simdata.Group
	Field simdata.Field
}

// Signal describes one readable offset
type Signal struct {
	Name      string
	Address   int
	Encoding  Encoding
	Size      int
	Transform TransformID
	Sink      *Sink

	apply TransformFunc
}

// Convert applies the signal's transform to a raw value
func (s Signal) Convert(raw any) (simdata.Value, bool) {
	if s.apply == nil {
		return simdata.Value{}, false
	}
	return s.apply(raw)
}

// Names of sink-less signals consumed by derived values
const (
	SignalBrakeLeft    = "brakeLeftU"
	SignalBrakeRight   = "brakeRightU"
	SignalParkingBrake = "parkingBrakeU"
	SignalBaroPrimary  = "BARO_0332_U32"
	SignalBaroFallback = "BARO_0330_U32"
)

// Keys advertised for derived reads
const (
	DerivedBrakes    = "brakesOn"
	DerivedBarometer = "barometer"
)

// Declaration is one entry of an offsets.declare request
type Declaration struct {
	Name    string   `json:"name"`
	Address int      `json:"address"`
	Type    Encoding `json:"type"`
	Size    int      `json:"size"`
}

// ReadCapability advertises one published field
type ReadCapability struct {
	Key   string `json:"key"`
	Group string `json:"group"`
	Field string `json:"field"`
}

// Table is the immutable set of readable signals
type Table struct {
	signals []Signal
	byName  map[string]int
}

type signalDef struct {
	name      string
	address   int
	enc       Encoding
	size      int
	transform TransformID
	group     simdata.Group
	field     simdata.Field
	noSink    bool
}

var signalDefs = []signalDef{
	// Position
	{name: "LatitudeDeg", address: 0x0560, enc: EncodingLat, size: 8, group: simdata.GroupGPS, field: simdata.FieldLatitude},
	{name: "LongitudeDeg", address: 0x0568, enc: EncodingLon, size: 8, group: simdata.GroupGPS, field: simdata.FieldLongitude},
	{name: "AltitudeM", address: 0x6020, enc: EncodingFloat, size: 8, group: simdata.GroupGPS, field: simdata.FieldAltMSLMeters},
	{name: "GroundSpeedKts", address: 0x02B4, enc: EncodingUint, size: 4, transform: TransformGSU32ToKts, group: simdata.GroupGPS, field: simdata.FieldGroundSpeedKts},
	{name: "IASraw_U32", address: 0x02BC, enc: EncodingUint, size: 4, transform: TransformKnots128ToKts, group: simdata.GroupGPS, field: simdata.FieldIASKts},
	{name: "VSraw", address: 0x02C8, enc: EncodingInt, size: 4, transform: TransformVSRawToFpm, group: simdata.GroupGPS, field: simdata.FieldVSFpmRaw},
	{name: "GroundAltRaw", address: 0x0020, enc: EncodingInt, size: 4, transform: TransformMeters256ToM, group: simdata.GroupGPS, field: simdata.FieldGroundAltMeters},

	// Attitude
	{name: "HeadingTrueRaw", address: 0x0580, enc: EncodingUint, size: 4, transform: TransformRawHdgToDeg, group: simdata.GroupAttitude, field: simdata.FieldHeadingDeg},
	{name: "PitchRaw", address: 0x0578, enc: EncodingInt, size: 4, transform: TransformRawAngToDegPitch, group: simdata.GroupAttitude, field: simdata.FieldPitchDeg},
	{name: "BankRaw", address: 0x057C, enc: EncodingInt, size: 4, transform: TransformRawAngToDegRoll, group: simdata.GroupAttitude, field: simdata.FieldRollDeg},
	{name: "MagVar_U32", address: 0x02A0, enc: EncodingUint, size: 4, transform: TransformU32Signed16Mag, group: simdata.GroupAttitude, field: simdata.FieldMagVarDeg},

	// Lights and systems
	{name: "LIGHTS_BITS32", address: 0x0D0C, enc: EncodingUint, size: 4, transform: TransformLightsMask, group: simdata.GroupLights, field: simdata.FieldLightsBitmask},
	{name: "BATTERY_MAIN", address: 0x281C, enc: EncodingUint, size: 4, transform: TransformNonzeroToBool, group: simdata.GroupSystems, field: simdata.FieldBatteryMainOn},
	{name: "PITOT_HEAT_U32", address: 0x029C, enc: EncodingUint, size: 4, transform: TransformNonzeroToBool, group: simdata.GroupSystems, field: simdata.FieldPitotHeatOn},

	// Barometer and brakes, consumed by derived values
	{name: SignalBaroPrimary, address: 0x0332, enc: EncodingUint, size: 4, transform: TransformU32BaroToInHg, noSink: true},
	{name: SignalBaroFallback, address: 0x0330, enc: EncodingUint, size: 4, transform: TransformU32BaroToInHg, noSink: true},
	{name: SignalBrakeLeft, address: 0x0BC4, enc: EncodingUint, size: 4, transform: TransformLower16, noSink: true},
	{name: SignalBrakeRight, address: 0x0BC6, enc: EncodingUint, size: 4, transform: TransformLower16, noSink: true},
	{name: SignalParkingBrake, address: 0x0BC8, enc: EncodingUint, size: 4, transform: TransformU32ToBoolParking, noSink: true},

	// Controls
	{name: "flapsHandle", address: 0x0BDC, enc: EncodingUint, size: 4, transform: TransformU32ToPct16383, group: simdata.GroupLevers, field: simdata.FieldFlapsPct},
	{name: "gearHandle", address: 0x0BE8, enc: EncodingUint, size: 4, transform: TransformU32ToPct16383, group: simdata.GroupLevers, field: simdata.FieldGearPct},

	{name: "aircraftNameStr", address: 0x3D00, enc: EncodingString, size: 256, group: simdata.GroupSimulation, field: simdata.FieldAircraftName},

	// Radios
	{name: "COM1_FREQ", address: 0x034E, enc: EncodingUint, size: 2, transform: TransformBCDToComFreq, group: simdata.GroupRadios, field: simdata.FieldCom1ActiveKHz},
	{name: "COM1_STANDBY", address: 0x311A, enc: EncodingUint, size: 2, transform: TransformBCDToComFreq, group: simdata.GroupRadios, field: simdata.FieldCom1StandbyKHz},
	{name: "COM2_FREQ", address: 0x3118, enc: EncodingUint, size: 2, transform: TransformBCDToComFreq, group: simdata.GroupRadios, field: simdata.FieldCom2ActiveKHz},
	{name: "COM2_STANDBY", address: 0x311C, enc: EncodingUint, size: 2, transform: TransformBCDToComFreq, group: simdata.GroupRadios, field: simdata.FieldCom2StandbyKHz},
	{name: "NAV1_FREQ", address: 0x0350, enc: EncodingUint, size: 2, transform: TransformBCDToNavFreq, group: simdata.GroupRadios, field: simdata.FieldNav1ActiveKHz},
	{name: "NAV1_STANDBY", address: 0x311E, enc: EncodingUint, size: 2, transform: TransformBCDToNavFreq, group: simdata.GroupRadios, field: simdata.FieldNav1StandbyKHz},
	{name: "TRANSPONDER", address: 0x0354, enc: EncodingUint, size: 2, transform: TransformBCDToXpdr, group: simdata.GroupRadios, field: simdata.FieldTransponderCode},

	// Engine indicators
	{name: "ENGINE1_RPM", address: 0x0898, enc: EncodingUint, size: 4, transform: TransformRPMRawToRPM, group: simdata.GroupIndicators, field: simdata.FieldEngine1RPM},
	{name: "ENGINE2_RPM", address: 0x0930, enc: EncodingUint, size: 4, transform: TransformRPMRawToRPM, group: simdata.GroupIndicators, field: simdata.FieldEngine2RPM},
	{name: "PROP1_RPM", address: 0x089C, enc: EncodingUint, size: 4, transform: TransformRPMRawToRPM, group: simdata.GroupIndicators, field: simdata.FieldProp1RPM},
	{name: "PROP2_RPM", address: 0x0934, enc: EncodingUint, size: 4, transform: TransformRPMRawToRPM, group: simdata.GroupIndicators, field: simdata.FieldProp2RPM},
	{name: "MANIFOLD_PRESSURE", address: 0x08A0, enc: EncodingUint, size: 4, transform: TransformManifoldToInHg, group: simdata.GroupIndicators, field: simdata.FieldManifoldPressure},
	{name: "ENGINE1_N1", address: 0x2010, enc: EncodingFloat, size: 8, group: simdata.GroupIndicators, field: simdata.FieldEngine1N1Pct},
	{name: "ENGINE1_EGT", address: 0x08B8, enc: EncodingUint, size: 2, transform: TransformEGTToCelsius, group: simdata.GroupIndicators, field: simdata.FieldEngine1EGTC},
	{name: "ENGINE1_CHT", address: 0x08BA, enc: EncodingUint, size: 2, transform: TransformTempToCelsius, group: simdata.GroupIndicators, field: simdata.FieldEngine1CHTC},
	{name: "STALL_WARNING", address: 0x036C, enc: EncodingUint, size: 1, transform: TransformNonzeroToBool, group: simdata.GroupIndicators, field: simdata.FieldStallWarningOn},

	// Levers
	{name: "THROTTLE1_POS", address: 0x088C, enc: EncodingInt, size: 2, transform: TransformThrottleToPct, group: simdata.GroupLevers, field: simdata.FieldThrottle1Pct},
	{name: "THROTTLE2_POS", address: 0x0924, enc: EncodingInt, size: 2, transform: TransformThrottleToPct, group: simdata.GroupLevers, field: simdata.FieldThrottle2Pct},
	{name: "MIXTURE1_POS", address: 0x08A4, enc: EncodingInt, size: 2, transform: TransformMixtureToPct, group: simdata.GroupLevers, field: simdata.FieldMixture1Pct},
	{name: "MIXTURE2_POS", address: 0x093C, enc: EncodingInt, size: 2, transform: TransformMixtureToPct, group: simdata.GroupLevers, field: simdata.FieldMixture2Pct},
	{name: "PROP1_POS", address: 0x08A8, enc: EncodingInt, size: 2, transform: TransformPropToPct, group: simdata.GroupLevers, field: simdata.FieldProp1Pct},
	{name: "PROP2_POS", address: 0x0940, enc: EncodingInt, size: 2, transform: TransformPropToPct, group: simdata.GroupLevers, field: simdata.FieldProp2Pct},
	{name: "SPEEDBRAKE_POS", address: 0x0BD0, enc: EncodingUint, size: 4, transform: TransformU32ToPct16383, group: simdata.GroupLevers, field: simdata.FieldSpeedbrakePct},

	// Autopilot
	{name: "AP_MASTER", address: 0x07BC, enc: EncodingUint, size: 4, transform: TransformNonzeroToBool, group: simdata.GroupAutopilot, field: simdata.FieldAPMasterOn},
	{name: "AP_HDG_HOLD", address: 0x07C8, enc: EncodingUint, size: 4, transform: TransformNonzeroToBool, group: simdata.GroupAutopilot, field: simdata.FieldAPHdgSelectOn},
	{name: "AP_ALT_HOLD", address: 0x07D0, enc: EncodingUint, size: 4, transform: TransformNonzeroToBool, group: simdata.GroupAutopilot, field: simdata.FieldAPAltHoldOn},
	{name: "AP_HDG_BUG", address: 0x07CC, enc: EncodingUint, size: 2, transform: TransformHeadingBugToDeg, group: simdata.GroupAutopilot, field: simdata.FieldAPHdgBugDeg},
	{name: "AP_ALT_BUG", address: 0x07D4, enc: EncodingUint, size: 4, transform: TransformAltBugToFeet, group: simdata.GroupAutopilot, field: simdata.FieldAPAltBugFt},
	{name: "AP_VS_HOLD", address: 0x07EC, enc: EncodingUint, size: 4, transform: TransformNonzeroToBool, group: simdata.GroupAutopilot, field: simdata.FieldAPVSHoldOn},
	{name: "AP_VS_TARGET", address: 0x07F2, enc: EncodingInt, size: 2, transform: TransformVSTargetToFpm, group: simdata.GroupAutopilot, field: simdata.FieldAPVSTargetFpm},

	// Environment
	{name: "WIND_SPEED", address: 0x0E90, enc: EncodingUint, size: 2, transform: TransformWindToKts, group: simdata.GroupEnvironment, field: simdata.FieldWindSpeedKts},
	{name: "WIND_DIR", address: 0x0E92, enc: EncodingUint, size: 2, transform: TransformWindDirToDeg, group: simdata.GroupEnvironment, field: simdata.FieldWindDirDeg},
	{name: "OUTSIDE_TEMP", address: 0x0E8C, enc: EncodingInt, size: 2, transform: TransformTempToCelsius, group: simdata.GroupEnvironment, field: simdata.FieldOutsideTempC},
}

// NewTable builds the signal table and resolves every transform once
func NewTable() (*Table, error) {
	return buildTable(signalDefs)
}

// MustNewTable is NewTable for static tables known to be valid
func MustNewTable() *Table {
	t, err := NewTable()
	if err != nil {
		panic(err)
	}
	return t
}

func buildTable(defs []signalDef) (*Table, error) {
	t := &Table{
		signals: make([]Signal, 0, len(defs)),
		byName:  make(map[string]int, len(defs)),
	}

	for _, d := range defs {
		if _, dup := t.byName[d.name]; dup {
			return nil, fmt.Errorf("duplicate signal %q", d.name)
		}

		sig := Signal{
			Name:      d.name,
			Address:   d.address,
			Encoding:  d.enc,
			Size:      d.size,
			Transform: d.transform,
		}

		if d.transform == TransformNone {
			sig.apply = passthrough(d.enc)
		} else {
			fn, ok := LookupTransform(d.transform)
			if !ok {
				return nil, fmt.Errorf("signal %q: unknown transform %q", d.name, d.transform)
			}
			sig.apply = fn
		}

		if !d.noSink {
			if d.field.Group() != d.group {
				return nil, fmt.Errorf("signal %q: field %s is not part of group %s", d.name, d.field, d.group)
			}
			sig.Sink = &Sink{Group: d.group, Field: d.field}
		}

		t.byName[d.name] = len(t.signals)
		t.signals = append(t.signals, sig)
	}

	return t, nil
}

// Signals returns the signals in declaration order
func (t *Table) Signals() []Signal {
	out := make([]Signal, len(t.signals))
	copy(out, t.signals)
	return out
}

// Len returns the number of signals
func (t *Table) Len() int {
	return len(t.signals)
}

// Lookup finds a signal by name
func (t *Table) Lookup(name string) (Signal, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Signal{}, false
	}
	return t.signals[i], true
}

// Declarations returns the offsets.declare entries for every signal
func (t *Table) Declarations() []Declaration {
	out := make([]Declaration, 0, len(t.signals))
	for _, s := range t.signals {
		out = append(out, Declaration{Name: s.Name, Address: s.Address, Type: s.Encoding, Size: s.Size})
	}
	return out
}

// Reads returns the read capabilities: every signal with a sink plus the derived fields
func (t *Table) Reads() []ReadCapability {
	out := make([]ReadCapability, 0, len(t.signals)+3)
	for _, s := range t.signals {
		if s.Sink == nil {
			continue
		}
		out = append(out, ReadCapability{
			Key:   s.Name,
			Group: string(s.Sink.Group),
			Field: s.Sink.Field.Name(),
		})
	}

	out = append(out,
		ReadCapability{Key: DerivedBrakes, Group: string(simdata.GroupSystems), Field: simdata.FieldBrakesOn.Name()},
		ReadCapability{Key: DerivedBarometer, Group: string(simdata.GroupEnvironment), Field: simdata.FieldPressureInHg.Name()},
		ReadCapability{Key: DerivedBarometer, Group: string(simdata.GroupIndicators), Field: simdata.FieldAltimeterInHg.Name()},
	)
	return out
}
