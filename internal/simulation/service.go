package simulation

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/yegors/fsuipc-bridge/internal/physics"
	"github.com/yegors/fsuipc-bridge/pkg/logger"
)

const (
	DefaultStepInterval = 100 * time.Millisecond

	idleSpeedKts   = 0.0
	cruiseSpeedKts = 120.0
	accelKtsPerSec = 2.0
	gearTravelRaw  = 16383
)

// Aircraft is the state of the simulated aircraft in engineering units
type Aircraft struct {
	Name string `json:"name"`

	Lat               float64 `json:"lat"`
	Lon               float64 `json:"lon"`
	AltitudeFt        float64 `json:"altitude_ft"`
	GroundElevationFt float64 `json:"ground_elevation_ft"`
	HeadingDeg        float64 `json:"heading_deg"`
	IASKts            float64 `json:"ias_kts"`
	VerticalRateFpm   float64 `json:"vertical_rate_fpm"`
	PitchDeg          float64 `json:"pitch_deg"`
	BankDeg           float64 `json:"bank_deg"`
	MagVarDeg         float64 `json:"magvar_deg"`

	Lights       uint32  `json:"lights"`
	BatteryOn    bool    `json:"battery_on"`
	PitotHeatOn  bool    `json:"pitot_heat_on"`
	PressureMb   float64 `json:"pressure_mb"`
	BrakeLeft    int     `json:"brake_left"`
	BrakeRight   int     `json:"brake_right"`
	ParkingBrake bool    `json:"parking_brake"`
	StallWarning bool    `json:"stall_warning"`

	ThrottleRaw int     `json:"throttle_raw"`
	FlapsRaw    int     `json:"flaps_raw"`
	GearRaw     int     `json:"gear_raw"`
	EngineRPM   float64 `json:"engine_rpm"`

	Com1KHz        int `json:"com1_khz"`
	Com1StandbyKHz int `json:"com1_standby_khz"`
	Com2KHz        int `json:"com2_khz"`
	Com2StandbyKHz int `json:"com2_standby_khz"`
	Nav1KHz        int `json:"nav1_khz"`
	Nav1StandbyKHz int `json:"nav1_standby_khz"`
	Squawk         int `json:"squawk"`

	APMaster     bool    `json:"ap_master"`
	APHeadingDeg float64 `json:"ap_heading_deg"`
	APAltitudeFt float64 `json:"ap_altitude_ft"`

	WindSpeedKts float64 `json:"wind_speed_kts"`
	WindDirDeg   float64 `json:"wind_dir_deg"`
	OutsideTempC float64 `json:"outside_temp_c"`

	LastUpdate time.Time `json:"last_update"`
}

// DefaultAircraft returns a light single parked on the ground at lat/lon
func DefaultAircraft(lat, lon, elevationFt float64) Aircraft {
	return Aircraft{
		Name:              "Cessna Skyhawk",
		Lat:               lat,
		Lon:               lon,
		AltitudeFt:        elevationFt,
		GroundElevationFt: elevationFt,
		Lights:            0b00001,
		BatteryOn:         true,
		PressureMb:        1013.25,
		ParkingBrake:      true,
		GearRaw:           gearTravelRaw,
		Com1KHz:           122800,
		Com1StandbyKHz:    118000,
		Com2KHz:           121500,
		Com2StandbyKHz:    119100,
		Nav1KHz:           110500,
		Nav1StandbyKHz:    113900,
		Squawk:            1200,
		APAltitudeFt:      3000,
		OutsideTempC:      15,
	}
}

// Service owns the simulated aircraft and advances it by dead reckoning
type Service struct {
	aircraft Aircraft
	extra    map[int]int64
	mutex    sync.RWMutex
	logger   *logger.Logger

	now      func() time.Time
	interval time.Duration
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewService creates a new simulation service
func NewService(aircraft Aircraft, log *logger.Logger) *Service {
	s := &Service{
		aircraft: aircraft,
		extra:    make(map[int]int64),
		logger:   log.Named("simulation"),
		now:      time.Now,
		interval: DefaultStepInterval,
		stopCh:   make(chan struct{}),
	}
	s.aircraft.LastUpdate = s.now().UTC()
	return s
}

// Start advances the aircraft periodically until Stop or ctx is done
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting simulated aircraft",
		logger.String("name", s.aircraft.Name),
		logger.Float64("lat", s.aircraft.Lat),
		logger.Float64("lon", s.aircraft.Lon))

	s.wg.Add(1)
	go s.updateLoop(ctx)
	return nil
}

// Stop stops the update loop
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Service) updateLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.UpdatePosition()
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Aircraft returns a copy of the current state
func (s *Service) Aircraft() Aircraft {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.aircraft
}

// Update mutates the aircraft state under the lock
func (s *Service) Update(fn func(a *Aircraft)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	fn(&s.aircraft)
}

// UpdatePosition advances the aircraft by the time elapsed since the last update
func (s *Service) UpdatePosition() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now().UTC()
	if dt := now.Sub(s.aircraft.LastUpdate); dt > 0 {
		s.step(dt.Seconds())
	}
	s.aircraft.LastUpdate = now
}

// Step advances the aircraft by dt regardless of the wall clock
func (s *Service) Step(dt time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.step(dt.Seconds())
}

// step updates a single aircraft's position using dead reckoning
func (s *Service) step(seconds float64) {
	a := &s.aircraft

	// speed follows the throttle; the parking brake holds the aircraft
	target := idleSpeedKts + throttleFraction(a.ThrottleRaw)*(cruiseSpeedKts-idleSpeedKts)
	if a.ParkingBrake {
		target = 0
	}
	maxDelta := accelKtsPerSec * seconds
	a.IASKts += math.Max(-maxDelta, math.Min(maxDelta, target-a.IASKts))
	a.EngineRPM = 700 + throttleFraction(a.ThrottleRaw)*1700

	distanceM := a.IASKts * physics.KnotsToMs * seconds
	if distanceM > 0 {
		a.Lat, a.Lon = physics.Destination(a.Lat, a.Lon, a.HeadingDeg, distanceM)
	}

	// Update altitude (vertical rate in feet per minute)
	a.AltitudeFt += a.VerticalRateFpm * seconds / physics.SecondsPerMinute

	// Ensure altitude doesn't go below ground level
	if a.AltitudeFt < a.GroundElevationFt {
		a.AltitudeFt = a.GroundElevationFt
		a.VerticalRateFpm = 0
	}
}

func throttleFraction(raw int) float64 {
	return math.Max(0, math.Min(1, float64(raw)/16384))
}
