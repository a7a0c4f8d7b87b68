package simdata

import (
	"math"
	"sync"
	"time"

	"github.com/yegors/fsuipc-bridge/internal/physics"
	"github.com/yegors/fsuipc-bridge/internal/validate"
	"github.com/yegors/fsuipc-bridge/pkg/logger"
)

const (
	// Minimum elapsed time in minutes before a vertical speed is derived
	minVSElapsedMinutes = 1e-6
	// Minimum lat/lon change in degrees before a ground track is derived
	positionChangeEpsilon = 1e-7
	// Pitch and roll below this magnitude are rendered as zero
	zeroThreshold = 1e-6

	lightNavBit     = 0
	lightLandingBit = 2
	lightTaxiBit    = 3
	lightStrobeBit  = 4
)

// MagVarCheck configures the periodic comparison of the simulator's magnetic
// variation with the World Magnetic Model
type MagVarCheck struct {
	Enabled      bool
	ToleranceDeg float64
	Interval     time.Duration
}

// Option configures a SimData
type Option func(*SimData)

// WithClock overrides the time source used for derived values
func WithClock(now func() time.Time) Option {
	return func(s *SimData) {
		s.now = now
	}
}

// WithMagVarCheck enables the magnetic variation cross-check
func WithMagVarCheck(check MagVarCheck) Option {
	return func(s *SimData) {
		if check.Interval <= 0 {
			check.Interval = time.Minute
		}
		s.magCheck = check
	}
}

// SimData aggregates partial updates from the simulator into one flight state
type SimData struct {
	mu     sync.Mutex
	logger *logger.Logger
	now    func() time.Time

	values     [fieldCount]Value
	lastUpdate time.Time

	// vertical speed bookkeeping
	lastAltFt  float64
	lastAltAt  time.Time
	hasLastAlt bool
	vsDerived  float64
	hasVS      bool

	// ground track bookkeeping
	refLat, refLon float64
	hasRef         bool
	trackDeg       float64
	hasTrack       bool

	positionSuspect bool

	magCheck     MagVarCheck
	lastMagCheck time.Time
}

// New creates an empty flight state
func New(log *logger.Logger, opts ...Option) *SimData {
	s := &SimData{
		logger: log.Named("simdata"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MergePartial stores every present value of the partial. Fields that belong to a
// different group are ignored. Derived values are refreshed when their inputs change.
func (s *SimData) MergePartial(group Group, values Partial) {
	if len(values) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	touched := false
	for f, v := range values {
		if f.Group() != group {
			s.logger.Debug("Ignoring field outside of merge group",
				logger.String("group", string(group)),
				logger.String("field", f.String()))
			continue
		}
		if !v.Present() {
			continue
		}
		s.values[f] = v
		touched = true
	}
	if !touched {
		return
	}
	s.lastUpdate = now

	if group == GroupGPS {
		if values.Has(FieldAltMSLMeters) {
			s.updateVerticalSpeed(now)
		}
		if values.Has(FieldLatitude) || values.Has(FieldLongitude) {
			s.updateTrack()
		}
	}
}

func (s *SimData) updateVerticalSpeed(now time.Time) {
	altM, ok := s.values[FieldAltMSLMeters].AsFloat()
	if !ok {
		return
	}
	altFt := altM * physics.MetersToFeet

	if !s.hasLastAlt {
		s.lastAltFt, s.lastAltAt, s.hasLastAlt = altFt, now, true
		return
	}

	dtMin := now.Sub(s.lastAltAt).Minutes()
	if dtMin <= minVSElapsedMinutes {
		return
	}
	s.vsDerived = (altFt - s.lastAltFt) / dtMin
	s.hasVS = true
	s.lastAltFt, s.lastAltAt = altFt, now
}

func (s *SimData) updateTrack() {
	lat, okLat := s.values[FieldLatitude].AsFloat()
	lon, okLon := s.values[FieldLongitude].AsFloat()
	if !okLat || !okLon {
		return
	}

	if !s.hasRef {
		s.refLat, s.refLon, s.hasRef = lat, lon, true
		return
	}

	if math.Abs(lat-s.refLat) <= positionChangeEpsilon && math.Abs(lon-s.refLon) <= positionChangeEpsilon {
		return
	}
	s.trackDeg = physics.InitialBearing(s.refLat, s.refLon, lat, lon)
	s.hasTrack = true
	s.refLat, s.refLon = lat, lon
}

// LastUpdate returns the time of the last merge that stored a value
func (s *SimData) LastUpdate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdate
}

// Value returns the stored value of a single field
func (s *SimData) Value(f Field) (Value, bool) {
	if f < 0 || f >= fieldCount {
		return Value{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[f]
	return v, v.Present()
}

// Render builds a snapshot of everything observed so far
func (s *SimData) Render() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{
		Position:         s.renderPosition(),
		Attitude:         s.renderAttitude(),
		Lights:           s.renderLights(),
		Systems:          s.renderSystems(),
		Autopilot:        s.renderAutopilot(),
		Levers:           s.renderLevers(),
		Indicators:       s.renderIndicators(),
		Environment:      s.renderEnvironment(),
		RadiosNavigation: s.renderRadios(),
		Simulation:       s.renderSimulation(),
	}

	s.checkPosition(snap.Position)
	s.checkMagneticVariation()

	return snap
}

func (s *SimData) renderPosition() *Position {
	p := Position{}

	if lat, ok := s.values[FieldLatitude].AsFloat(); ok {
		p.LatitudeDeg = floatPtr(round(clamp(lat, -90, 90), 6))
	}
	if lon, ok := s.values[FieldLongitude].AsFloat(); ok {
		p.LongitudeDeg = floatPtr(round(clamp(lon, -180, 180), 6))
	}
	altM, hasAlt := s.values[FieldAltMSLMeters].AsFloat()
	if hasAlt {
		p.MSLAltitudeFt = floatPtr(altM * physics.MetersToFeet)
	}
	p.GPSGroundSpeedKts = s.float(FieldGroundSpeedKts)
	if ias, ok := s.values[FieldIASKts].AsFloat(); ok {
		p.IndicatedAirspeedKts = floatPtr(round(ias, 1))
	}

	if vs, ok := s.values[FieldVSFpmRaw].AsFloat(); ok {
		p.VerticalSpeedUpFpm = floatPtr(round(vs, 0))
	} else if s.hasVS {
		p.VerticalSpeedUpFpm = floatPtr(round(s.vsDerived, 0))
	}

	if ground, ok := s.values[FieldGroundAltMeters].AsFloat(); ok && hasAlt {
		agl := (altM - ground) * physics.MetersToFeet
		p.AGLAltitudeFt = floatPtr(math.Max(0, round(agl, 1)))
	}

	if p == (Position{}) {
		return nil
	}
	return &p
}

func (s *SimData) renderAttitude() *Attitude {
	a := Attitude{}

	hdg, hasHdg := s.values[FieldHeadingDeg].AsFloat()
	if hasHdg {
		hdg = physics.Normalize360(hdg)
		a.TrueHeadingDeg = floatPtr(hdg)
	}
	if pitch, ok := s.values[FieldPitchDeg].AsFloat(); ok {
		a.PitchAngleDegUp = floatPtr(nonZero(pitch))
	}
	if roll, ok := s.values[FieldRollDeg].AsFloat(); ok {
		a.RollAngleDegRight = floatPtr(nonZero(roll))
	}
	if magVar, ok := s.values[FieldMagVarDeg].AsFloat(); ok && hasHdg {
		a.MagneticHeadingDeg = floatPtr(physics.Normalize360(hdg - magVar))
	}
	if s.hasTrack {
		a.TrueGroundTrackDeg = floatPtr(physics.Normalize360(s.trackDeg))
	}

	if a == (Attitude{}) {
		return nil
	}
	return &a
}

func (s *SimData) renderLights() *Lights {
	raw, ok := s.values[FieldLightsBitmask].AsFloat()
	if !ok {
		return nil
	}
	mask := uint32(int64(raw))
	bit := func(n uint) *bool { return boolPtr(mask&(1<<n) != 0) }

	return &Lights{
		NavigationLightsSwitchOn: bit(lightNavBit),
		LandingLightsSwitchOn:    bit(lightLandingBit),
		TaxiLightsSwitchOn:       bit(lightTaxiBit),
		StrobeLightsSwitchOn:     bit(lightStrobeBit),
	}
}

func (s *SimData) renderSystems() *Systems {
	sys := Systems{
		PitotHeatSwitchOn: s.flag(FieldPitotHeatOn),
		BrakesOn:          s.flag(FieldBrakesOn),
	}
	if main := s.flag(FieldBatteryMainOn); main != nil {
		sys.BatteryOn = &BatteryOn{Main: main}
	}

	if sys == (Systems{}) {
		return nil
	}
	return &sys
}

func (s *SimData) renderAutopilot() *Autopilot {
	ap := Autopilot{
		IsAutopilotEngaged:     s.flag(FieldAPMasterOn),
		IsHeadingSelectEnabled: s.flag(FieldAPHdgSelectOn),
		MagneticHeadingBugDeg:  s.float(FieldAPHdgBugDeg),
		AltitudeBugFt:          s.float(FieldAPAltBugFt),
	}

	altHold, hasAltHold := s.values[FieldAPAltHoldOn].AsBool()
	vsHold, hasVSHold := s.values[FieldAPVSHoldOn].AsBool()
	if hasAltHold || hasVSHold {
		mode := AltitudeModeDisabled
		switch {
		case altHold:
			mode = AltitudeModeHold
		case vsHold:
			mode = AltitudeModeVerticalSpeed
		}
		ap.AltitudeMode = &mode
	}

	if ap == (Autopilot{}) {
		return nil
	}
	return &ap
}

func (s *SimData) renderLevers() *Levers {
	l := Levers{
		FlapsHandlePercentDown:           s.float(FieldFlapsPct),
		LandingGearHandlePercentDown:     s.float(FieldGearPct),
		ThrottlePercentOpen:              s.engines(FieldThrottle1Pct, FieldThrottle2Pct),
		MixtureLeverPercentRich:          s.engines(FieldMixture1Pct, FieldMixture2Pct),
		PropellerLeverPercentCoarse:      s.props(FieldProp1Pct, FieldProp2Pct),
		SpeedBrakesHandlePercentDeployed: s.float(FieldSpeedbrakePct),
	}

	if l == (Levers{}) {
		return nil
	}
	return &l
}

func (s *SimData) renderIndicators() *Indicators {
	ind := Indicators{
		AltimeterSettingInchesMercury: s.float(FieldAltimeterInHg),
		StallWarningOn:                s.flag(FieldStallWarningOn),
		EngineRpm:                     s.engines(FieldEngine1RPM, FieldEngine2RPM),
		PropellerRpm:                  s.props(FieldProp1RPM, FieldProp2RPM),
		ManifoldPressureInchesMercury: s.engines(FieldManifoldPressure, -1),
		EngineN1Percent:               s.engines(FieldEngine1N1Pct, -1),
		ExhaustGasDegC:                s.engines(FieldEngine1EGTC, -1),
		TurbineGasTemperatureDegC:     s.engines(FieldEngine1CHTC, -1),
	}

	if ind == (Indicators{}) {
		return nil
	}
	return &ind
}

func (s *SimData) renderEnvironment() *Environment {
	env := Environment{
		SeaLevelPressureInchesMercury: s.float(FieldPressureInHg),
		AircraftWindSpeedKts:          s.float(FieldWindSpeedKts),
		AircraftWindHeadingDeg:        s.float(FieldWindDirDeg),
		GroundTemperatureDegC:         s.float(FieldOutsideTempC),
	}

	if env == (Environment{}) {
		return nil
	}
	return &env
}

func (s *SimData) renderRadios() *RadiosNavigation {
	r := RadiosNavigation{
		FrequencyHz:        s.frequencies(FieldCom1ActiveKHz, FieldCom2ActiveKHz, FieldNav1ActiveKHz),
		StandbyFrequencyHz: s.frequencies(FieldCom1StandbyKHz, FieldCom2StandbyKHz, FieldNav1StandbyKHz),
		TransponderCode:    s.integer(FieldTransponderCode),
	}

	if r == (RadiosNavigation{}) {
		return nil
	}
	return &r
}

func (s *SimData) renderSimulation() *Simulation {
	name, ok := s.values[FieldAircraftName].AsString()
	if !ok {
		return nil
	}
	return &Simulation{AircraftName: &name}
}

// checkPosition logs implausible positions. The snapshot is not modified.
func (s *SimData) checkPosition(p *Position) {
	if p == nil || p.LatitudeDeg == nil {
		return
	}

	valid := validate.Latitude(*p.LatitudeDeg)
	if p.LongitudeDeg != nil {
		valid = valid && validate.Longitude(*p.LongitudeDeg)
	}
	if p.MSLAltitudeFt != nil {
		valid = valid && validate.InRange(*p.MSLAltitudeFt, validate.EnvelopeMinAltFt, validate.EnvelopeMaxAltFt)
	}

	if !valid && !s.positionSuspect {
		fields := []logger.Field{logger.Float64("lat", *p.LatitudeDeg)}
		if p.LongitudeDeg != nil {
			fields = append(fields, logger.Float64("lon", *p.LongitudeDeg))
		}
		if p.MSLAltitudeFt != nil {
			fields = append(fields, logger.Float64("alt_ft", *p.MSLAltitudeFt))
		}
		s.logger.Warn("Invalid position data detected", fields...)
	} else if valid && s.positionSuspect {
		s.logger.Info("Position data back within limits")
	}
	s.positionSuspect = !valid
}

func (s *SimData) checkMagneticVariation() {
	if !s.magCheck.Enabled {
		return
	}
	now := s.now()
	if !s.lastMagCheck.IsZero() && now.Sub(s.lastMagCheck) < s.magCheck.Interval {
		return
	}

	simVar, ok := s.values[FieldMagVarDeg].AsFloat()
	if !ok {
		return
	}
	lat, okLat := s.values[FieldLatitude].AsFloat()
	lon, okLon := s.values[FieldLongitude].AsFloat()
	if !okLat || !okLon {
		return
	}
	altM, _ := s.values[FieldAltMSLMeters].AsFloat()
	s.lastMagCheck = now

	modelVar, err := physics.MagneticVariation(lat, lon, altM, now)
	if err != nil {
		s.logger.Debug("Magnetic model unavailable", logger.Error(err))
		return
	}

	diff := physics.AngleDiff(simVar, modelVar)
	if math.Abs(diff) > s.magCheck.ToleranceDeg {
		s.logger.Warn("Simulator magnetic variation differs from WMM",
			logger.Float64("sim_deg", simVar),
			logger.Float64("wmm_deg", modelVar),
			logger.Float64("diff_deg", diff))
	}
}

func (s *SimData) float(f Field) *float64 {
	if v, ok := s.values[f].AsFloat(); ok {
		return &v
	}
	return nil
}

func (s *SimData) flag(f Field) *bool {
	if v, ok := s.values[f].AsBool(); ok {
		return &v
	}
	return nil
}

func (s *SimData) integer(f Field) *int {
	if v, ok := s.values[f].AsFloat(); ok {
		i := int(math.Round(v))
		return &i
	}
	return nil
}

// engines pairs two per-engine fields; pass -1 for a missing second engine
func (s *SimData) engines(e1, e2 Field) *EngineValues {
	ev := EngineValues{Engine1: s.optional(e1), Engine2: s.optional(e2)}
	if ev == (EngineValues{}) {
		return nil
	}
	return &ev
}

func (s *SimData) props(p1, p2 Field) *PropValues {
	pv := PropValues{Prop1: s.optional(p1), Prop2: s.optional(p2)}
	if pv == (PropValues{}) {
		return nil
	}
	return &pv
}

func (s *SimData) frequencies(com1, com2, nav1 Field) *RadioFrequencies {
	rf := RadioFrequencies{Com1: s.integer(com1), Com2: s.integer(com2), Nav1: s.integer(nav1)}
	if rf == (RadioFrequencies{}) {
		return nil
	}
	return &rf
}

func (s *SimData) optional(f Field) *float64 {
	if f < 0 || f >= fieldCount {
		return nil
	}
	return s.float(f)
}

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

func nonZero(v float64) float64 {
	if math.Abs(v) < zeroThreshold {
		return 0
	}
	return v
}
