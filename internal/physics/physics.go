package physics

import (
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// Constants
const (
	MetersToFeet     = 3.28084  // Feet per meter
	FeetToMeters     = 0.3048   // Meters per foot
	MpsToKnots       = 1.943844 // Conversion factor from m/s to Knots
	KnotsToMs        = 0.514444 // Conversion factor from Knots to m/s
	MillibarToInHg   = 0.02953  // Inches of mercury per millibar
	ZeroCelsius      = 273.15   // 0°C in Kelvin
	SecondsPerMinute = 60.0
	MetersPerNM      = 1852.0 // Meters per nautical mile
)

// Normalize360 wraps an angle into [0, 360)
func Normalize360(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	// -1e-15 + 360 rounds to 360
	if deg >= 360 {
		deg -= 360
	}
	return deg
}

// InitialBearing returns the great-circle initial bearing in degrees [0, 360)
// from (lat1, lon1) to (lat2, lon2)
func InitialBearing(lat1, lon1, lat2, lon2 float64) float64 {
	b := geo.Bearing(orb.Point{lon1, lat1}, orb.Point{lon2, lat2})
	return Normalize360(b)
}

// Destination returns the point reached after travelling distanceM meters from
// (lat, lon) along the given true bearing
func Destination(lat, lon, bearingDeg, distanceM float64) (float64, float64) {
	p := geo.PointAtBearingAndDistance(orb.Point{lon, lat}, bearingDeg, distanceM)
	return p.Lat(), p.Lon()
}

// Vector2D represents a 2D vector (magnitude, direction)
type Vector2D struct {
	X float64 // East component
	Y float64 // North component
}

// HeadingToVector converts a heading (degrees) and magnitude to X/Y components
func HeadingToVector(headingDeg float64, magnitude float64) Vector2D {
	rad := (90 - headingDeg) * math.Pi / 180 // Convert compass heading to math angle
	return Vector2D{
		X: magnitude * math.Cos(rad),
		Y: magnitude * math.Sin(rad),
	}
}

// VectorToHeading converts X/Y components back to a compass heading and magnitude
func VectorToHeading(v Vector2D) (float64, float64) {
	magnitude := math.Hypot(v.X, v.Y)
	if magnitude == 0 {
		return 0, 0
	}
	heading := 90 - math.Atan2(v.Y, v.X)*180/math.Pi
	return Normalize360(heading), magnitude
}

// MagneticVariation calculates the magnetic declination for a given position and time
// using the World Magnetic Model. Returns declination in degrees (+East, -West).
func MagneticVariation(lat, lon, altM float64, date time.Time) (float64, error) {
	loc := egm96.NewLocationGeodetic(lat, lon, altM)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		return 0, err
	}

	return mag.D(), nil
}

// AngleDiff returns the smallest signed difference a-b in degrees, in (-180, 180]
func AngleDiff(a, b float64) float64 {
	d := math.Mod(a-b, 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}
