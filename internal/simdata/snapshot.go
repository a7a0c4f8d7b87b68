package simdata

// Snapshot is the rendered flight state sent to consumers. Groups and fields
// that were never observed are nil and omitted from the JSON output.
type Snapshot struct {
	Position         *Position         `json:"position,omitempty"`
	Attitude         *Attitude         `json:"attitude,omitempty"`
	Lights           *Lights           `json:"lights,omitempty"`
	Systems          *Systems          `json:"systems,omitempty"`
	Autopilot        *Autopilot        `json:"autopilot,omitempty"`
	Levers           *Levers           `json:"levers,omitempty"`
	Indicators       *Indicators       `json:"indicators,omitempty"`
	Environment      *Environment      `json:"environment,omitempty"`
	RadiosNavigation *RadiosNavigation `json:"radiosNavigation,omitempty"`
	Simulation       *Simulation       `json:"simulation,omitempty"`
}

// Empty reports whether no group holds data
func (s *Snapshot) Empty() bool {
	return s == nil || *s == (Snapshot{})
}

type Position struct {
	LatitudeDeg          *float64 `json:"latitudeDeg,omitempty"`
	LongitudeDeg         *float64 `json:"longitudeDeg,omitempty"`
	MSLAltitudeFt        *float64 `json:"mslAltitudeFt,omitempty"`
	GPSGroundSpeedKts    *float64 `json:"gpsGroundSpeedKts,omitempty"`
	IndicatedAirspeedKts *float64 `json:"indicatedAirspeedKts,omitempty"`
	VerticalSpeedUpFpm   *float64 `json:"verticalSpeedUpFpm,omitempty"`
	AGLAltitudeFt        *float64 `json:"aglAltitudeFt,omitempty"`
}

type Attitude struct {
	TrueHeadingDeg     *float64 `json:"trueHeadingDeg,omitempty"`
	PitchAngleDegUp    *float64 `json:"pitchAngleDegUp,omitempty"`
	RollAngleDegRight  *float64 `json:"rollAngleDegRight,omitempty"`
	MagneticHeadingDeg *float64 `json:"magneticHeadingDeg,omitempty"`
	TrueGroundTrackDeg *float64 `json:"trueGroundTrackDeg,omitempty"`
}

type Lights struct {
	NavigationLightsSwitchOn *bool `json:"navigationLightsSwitchOn,omitempty"`
	LandingLightsSwitchOn    *bool `json:"landingLightsSwitchOn,omitempty"`
	TaxiLightsSwitchOn       *bool `json:"taxiLightsSwitchOn,omitempty"`
	StrobeLightsSwitchOn     *bool `json:"strobeLightsSwitchOn,omitempty"`
}

type Systems struct {
	PitotHeatSwitchOn *bool      `json:"pitotHeatSwitchOn,omitempty"`
	BatteryOn         *BatteryOn `json:"batteryOn,omitempty"`
	BrakesOn          *bool      `json:"brakesOn,omitempty"`
}

type BatteryOn struct {
	Main *bool `json:"main,omitempty"`
}

// Altitude modes reported by the autopilot group
const (
	AltitudeModeHold          = "altitudeHold"
	AltitudeModeVerticalSpeed = "verticalSpeed"
	AltitudeModeDisabled      = "disabled"
)

type Autopilot struct {
	IsAutopilotEngaged     *bool    `json:"isAutopilotEngaged,omitempty"`
	IsHeadingSelectEnabled *bool    `json:"isHeadingSelectEnabled,omitempty"`
	MagneticHeadingBugDeg  *float64 `json:"magneticHeadingBugDeg,omitempty"`
	AltitudeBugFt          *float64 `json:"altitudeBugFt,omitempty"`
	AltitudeMode           *string  `json:"altitudeMode,omitempty"`
}

type Levers struct {
	FlapsHandlePercentDown           *float64      `json:"flapsHandlePercentDown,omitempty"`
	LandingGearHandlePercentDown     *float64      `json:"landingGearHandlePercentDown,omitempty"`
	ThrottlePercentOpen              *EngineValues `json:"throttlePercentOpen,omitempty"`
	MixtureLeverPercentRich          *EngineValues `json:"mixtureLeverPercentRich,omitempty"`
	PropellerLeverPercentCoarse      *PropValues   `json:"propellerLeverPercentCoarse,omitempty"`
	SpeedBrakesHandlePercentDeployed *float64      `json:"speedBrakesHandlePercentDeployed,omitempty"`
}

type Indicators struct {
	AltimeterSettingInchesMercury *float64      `json:"altimeterSettingInchesMercury,omitempty"`
	StallWarningOn                *bool         `json:"stallWarningOn,omitempty"`
	EngineRpm                     *EngineValues `json:"engineRpm,omitempty"`
	PropellerRpm                  *PropValues   `json:"propellerRpm,omitempty"`
	ManifoldPressureInchesMercury *EngineValues `json:"manifoldPressureInchesMercury,omitempty"`
	EngineN1Percent               *EngineValues `json:"engineN1Percent,omitempty"`
	ExhaustGasDegC                *EngineValues `json:"exhaustGasDegC,omitempty"`
	TurbineGasTemperatureDegC     *EngineValues `json:"turbineGasTemperatureDegC,omitempty"`
}

type Environment struct {
	SeaLevelPressureInchesMercury *float64 `json:"seaLevelPressureInchesMercury,omitempty"`
	AircraftWindSpeedKts          *float64 `json:"aircraftWindSpeedKts,omitempty"`
	AircraftWindHeadingDeg        *float64 `json:"aircraftWindHeadingDeg,omitempty"`
	GroundTemperatureDegC         *float64 `json:"groundTemperatureDegC,omitempty"`
}

type RadiosNavigation struct {
	FrequencyHz        *RadioFrequencies `json:"frequencyHz,omitempty"`
	StandbyFrequencyHz *RadioFrequencies `json:"standbyFrequencyHz,omitempty"`
	TransponderCode    *int              `json:"transponderCode,omitempty"`
}

// RadioFrequencies holds tuned frequencies in kHz
type RadioFrequencies struct {
	Com1 *int `json:"com1,omitempty"`
	Com2 *int `json:"com2,omitempty"`
	Nav1 *int `json:"nav1,omitempty"`
}

type EngineValues struct {
	Engine1 *float64 `json:"engine1,omitempty"`
	Engine2 *float64 `json:"engine2,omitempty"`
}

type PropValues struct {
	Prop1 *float64 `json:"prop1,omitempty"`
	Prop2 *float64 `json:"prop2,omitempty"`
}

type Simulation struct {
	AircraftName *string `json:"aircraftName,omitempty"`
}
