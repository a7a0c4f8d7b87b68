package physics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalize360(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{360, 0},
		{-90, 270},
		{450, 90},
		{-720.5, 359.5},
		{359.999, 359.999},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Normalize360(tt.in), 1e-9, "Normalize360(%v)", tt.in)
	}
}

func TestInitialBearing(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
	}{
		{"north", 45, -122, 46, -122, 0},
		{"south", 45, -122, 44, -122, 180},
		{"east on equator", 0, 10, 0, 11, 90},
		{"west on equator", 0, 10, 0, 9, 270},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InitialBearing(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.want, got, 1e-6)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.Less(t, got, 360.0)
		})
	}
}

func TestDestination(t *testing.T) {
	lat, lon := Destination(0, 0, 90, 60*MetersPerNM)
	assert.InDelta(t, 0, lat, 1e-6)
	assert.InDelta(t, 1.0, lon, 0.01)

	lat, lon = Destination(45, -122, 0, 0)
	assert.InDelta(t, 45, lat, 1e-9)
	assert.InDelta(t, -122, lon, 1e-9)
}

func TestHeadingVectorRoundTrip(t *testing.T) {
	for _, hdg := range []float64{0, 45, 90, 180, 270, 359} {
		v := HeadingToVector(hdg, 120)
		back, mag := VectorToHeading(v)
		assert.InDelta(t, 120, mag, 1e-9)
		assert.InDelta(t, 0, AngleDiff(back, hdg), 1e-9)
	}
}

func TestAngleDiff(t *testing.T) {
	assert.InDelta(t, 20, AngleDiff(10, 350), 1e-9)
	assert.InDelta(t, -20, AngleDiff(350, 10), 1e-9)
	assert.InDelta(t, 180, AngleDiff(180, 0), 1e-9)
	assert.InDelta(t, 0, AngleDiff(720, 0), 1e-9)
}

func TestMagneticVariation(t *testing.T) {
	// Seattle sits at roughly 15 degrees east declination
	d, err := MagneticVariation(47.45, -122.31, 100, time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Skipf("model epoch does not cover test date: %v", err)
	}
	assert.InDelta(t, 15, d, 3)
}
