package simdata

import (
	"fmt"
	"strconv"
)

// Group identifies a subsystem group of the flight state
type Group string

const (
	GroupGPS         Group = "gps"
	GroupAttitude    Group = "att"
	GroupLights      Group = "lights"
	GroupSystems     Group = "systems"
	GroupRadios      Group = "radios"
	GroupIndicators  Group = "indicators"
	GroupAutopilot   Group = "autopilot"
	GroupLevers      Group = "levers"
	GroupEnvironment Group = "environment"
	GroupSimulation  Group = "simulation"
)

// Groups lists every group in merge order
var Groups = []Group{
	GroupGPS,
	GroupAttitude,
	GroupLights,
	GroupSystems,
	GroupRadios,
	GroupIndicators,
	GroupAutopilot,
	GroupLevers,
	GroupEnvironment,
	GroupSimulation,
}

// Field identifies one slot of the flight state. Each field belongs to exactly one group.
type Field int

const (
	FieldLatitude Field = iota
	FieldLongitude
	FieldAltMSLMeters
	FieldGroundSpeedKts
	FieldIASKts
	FieldVSFpmRaw
	FieldGroundAltMeters

	FieldHeadingDeg
	FieldPitchDeg
	FieldRollDeg
	FieldMagVarDeg

	FieldLightsBitmask

	FieldBatteryMainOn
	FieldPitotHeatOn
	FieldBrakesOn

	FieldCom1ActiveKHz
	FieldCom1StandbyKHz
	FieldCom2ActiveKHz
	FieldCom2StandbyKHz
	FieldNav1ActiveKHz
	FieldNav1StandbyKHz
	FieldTransponderCode

	FieldEngine1RPM
	FieldEngine2RPM
	FieldProp1RPM
	FieldProp2RPM
	FieldManifoldPressure
	FieldEngine1N1Pct
	FieldEngine1EGTC
	FieldEngine1CHTC
	FieldAltimeterInHg
	FieldStallWarningOn

	FieldAPMasterOn
	FieldAPHdgSelectOn
	FieldAPAltHoldOn
	FieldAPVSHoldOn
	FieldAPHdgBugDeg
	FieldAPAltBugFt
	FieldAPVSTargetFpm

	FieldFlapsPct
	FieldGearPct
	FieldThrottle1Pct
	FieldThrottle2Pct
	FieldMixture1Pct
	FieldMixture2Pct
	FieldProp1Pct
	FieldProp2Pct
	FieldSpeedbrakePct

	FieldWindSpeedKts
	FieldWindDirDeg
	FieldOutsideTempC
	FieldPressureInHg

	FieldAircraftName

	fieldCount
)

type fieldInfo struct {
	group Group
	name  string
}

var fields = [fieldCount]fieldInfo{
	FieldLatitude:        {GroupGPS, "latitude"},
	FieldLongitude:       {GroupGPS, "longitude"},
	FieldAltMSLMeters:    {GroupGPS, "alt_msl_meters"},
	FieldGroundSpeedKts:  {GroupGPS, "ground_speed_kts"},
	FieldIASKts:          {GroupGPS, "ias_kts"},
	FieldVSFpmRaw:        {GroupGPS, "vs_fpm_raw"},
	FieldGroundAltMeters: {GroupGPS, "ground_alt_m"},

	FieldHeadingDeg: {GroupAttitude, "heading_deg"},
	FieldPitchDeg:   {GroupAttitude, "pitch_deg"},
	FieldRollDeg:    {GroupAttitude, "roll_deg"},
	FieldMagVarDeg:  {GroupAttitude, "mag_var_deg"},

	FieldLightsBitmask: {GroupLights, "bitmask"},

	FieldBatteryMainOn: {GroupSystems, "battery_main_on"},
	FieldPitotHeatOn:   {GroupSystems, "pitot_heat_on"},
	FieldBrakesOn:      {GroupSystems, "brakes_on"},

	FieldCom1ActiveKHz:   {GroupRadios, "com1_active_khz"},
	FieldCom1StandbyKHz:  {GroupRadios, "com1_standby_khz"},
	FieldCom2ActiveKHz:   {GroupRadios, "com2_active_khz"},
	FieldCom2StandbyKHz:  {GroupRadios, "com2_standby_khz"},
	FieldNav1ActiveKHz:   {GroupRadios, "nav1_active_khz"},
	FieldNav1StandbyKHz:  {GroupRadios, "nav1_standby_khz"},
	FieldTransponderCode: {GroupRadios, "transponder_code"},

	FieldEngine1RPM:       {GroupIndicators, "engine1_rpm"},
	FieldEngine2RPM:       {GroupIndicators, "engine2_rpm"},
	FieldProp1RPM:         {GroupIndicators, "prop1_rpm"},
	FieldProp2RPM:         {GroupIndicators, "prop2_rpm"},
	FieldManifoldPressure: {GroupIndicators, "manifold_pressure"},
	FieldEngine1N1Pct:     {GroupIndicators, "engine1_n1_pct"},
	FieldEngine1EGTC:      {GroupIndicators, "engine1_egt_c"},
	FieldEngine1CHTC:      {GroupIndicators, "engine1_cht_c"},
	FieldAltimeterInHg:    {GroupIndicators, "altimeter_inhg"},
	FieldStallWarningOn:   {GroupIndicators, "stall_warning_on"},

	FieldAPMasterOn:    {GroupAutopilot, "master_on"},
	FieldAPHdgSelectOn: {GroupAutopilot, "hdg_select_on"},
	FieldAPAltHoldOn:   {GroupAutopilot, "alt_hold_on"},
	FieldAPVSHoldOn:    {GroupAutopilot, "vs_hold_on"},
	FieldAPHdgBugDeg:   {GroupAutopilot, "hdg_bug_deg"},
	FieldAPAltBugFt:    {GroupAutopilot, "alt_bug_ft"},
	FieldAPVSTargetFpm: {GroupAutopilot, "vs_target_fpm"},

	FieldFlapsPct:      {GroupLevers, "flaps_pct"},
	FieldGearPct:       {GroupLevers, "gear_pct"},
	FieldThrottle1Pct:  {GroupLevers, "throttle1_pct"},
	FieldThrottle2Pct:  {GroupLevers, "throttle2_pct"},
	FieldMixture1Pct:   {GroupLevers, "mixture1_pct"},
	FieldMixture2Pct:   {GroupLevers, "mixture2_pct"},
	FieldProp1Pct:      {GroupLevers, "prop1_pct"},
	FieldProp2Pct:      {GroupLevers, "prop2_pct"},
	FieldSpeedbrakePct: {GroupLevers, "speedbrake_pct"},

	FieldWindSpeedKts: {GroupEnvironment, "wind_speed_kts"},
	FieldWindDirDeg:   {GroupEnvironment, "wind_dir_deg"},
	FieldOutsideTempC: {GroupEnvironment, "outside_temp_c"},
	FieldPressureInHg: {GroupEnvironment, "pressure_inhg"},

	FieldAircraftName: {GroupSimulation, "aircraft_name"},
}

// Group returns the group the field belongs to
func (f Field) Group() Group {
	if f < 0 || f >= fieldCount {
		return ""
	}
	return fields[f].group
}

// Name returns the sink field name, e.g. "alt_msl_meters"
func (f Field) Name() string {
	if f < 0 || f >= fieldCount {
		return "field(" + strconv.Itoa(int(f)) + ")"
	}
	return fields[f].name
}

func (f Field) String() string {
	return string(f.Group()) + "." + f.Name()
}

// Kind is the dynamic type held by a Value
type Kind uint8

const (
	KindNone Kind = iota
	KindFloat
	KindBool
	KindString
)

// Value is one observed field value. The zero Value means "not observed".
type Value struct {
	kind Kind
	num  float64
	flag bool
	text string
}

func Float(v float64) Value { return Value{kind: KindFloat, num: v} }
func Int(v int) Value       { return Value{kind: KindFloat, num: float64(v)} }
func Bool(v bool) Value     { return Value{kind: KindBool, flag: v} }
func String(v string) Value { return Value{kind: KindString, text: v} }

// Kind reports the held type
func (v Value) Kind() Kind { return v.kind }

// Present reports whether the value was observed
func (v Value) Present() bool { return v.kind != KindNone }

// AsFloat coerces the value to a number. Booleans map to 0/1; numeric text is parsed.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.num, true
	case KindBool:
		if v.flag {
			return 1, true
		}
		return 0, true
	case KindString:
		f, err := strconv.ParseFloat(v.text, 64)
		return f, err == nil
	}
	return 0, false
}

// AsBool coerces the value to a boolean (non-zero / non-empty is true)
func (v Value) AsBool() (bool, bool) {
	switch v.kind {
	case KindBool:
		return v.flag, true
	case KindFloat:
		return v.num != 0, true
	case KindString:
		return v.text != "", true
	}
	return false, false
}

// AsString renders the value as text
func (v Value) AsString() (string, bool) {
	switch v.kind {
	case KindString:
		return v.text, true
	case KindFloat:
		return strconv.FormatFloat(v.num, 'f', -1, 64), true
	case KindBool:
		return strconv.FormatBool(v.flag), true
	}
	return "", false
}

func (v Value) String() string {
	if s, ok := v.AsString(); ok {
		return s
	}
	return "<none>"
}

// Partial is a sparse set of observed values for one merge
type Partial map[Field]Value

// Set records v for f unless f already holds a value in this partial or v is not present.
// The first observation in a batch wins.
func (p Partial) Set(f Field, v Value) bool {
	if !v.Present() {
		return false
	}
	if _, exists := p[f]; exists {
		return false
	}
	p[f] = v
	return true
}

// Has reports whether f is part of the partial
func (p Partial) Has(f Field) bool {
	_, ok := p[f]
	return ok
}

// Validate checks that all fields belong to group
func (p Partial) Validate(group Group) error {
	for f := range p {
		if f.Group() != group {
			return fmt.Errorf("field %s does not belong to group %s", f, group)
		}
	}
	return nil
}
