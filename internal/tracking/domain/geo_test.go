package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func genLat(t *rapid.T, label string) float64 { return rapid.Float64Range(-90, 90).Draw(t, label) }
func genLon(t *rapid.T, label string) float64 { return rapid.Float64Range(-180, 180).Draw(t, label) }

func TestHaversineCoincidentPointsIsZero(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		lat, lon := genLat(rt, "lat"), genLon(rt, "lon")
		if d := HaversineDistanceKm(lat, lon, lat, lon); d != 0 {
			rt.Fatalf("d(a,a) = %v", d)
		}
	})
}

func TestHaversineSymmetric(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		lat1, lon1 := genLat(rt, "lat1"), genLon(rt, "lon1")
		lat2, lon2 := genLat(rt, "lat2"), genLon(rt, "lon2")
		ab := HaversineDistanceKm(lat1, lon1, lat2, lon2)
		ba := HaversineDistanceKm(lat2, lon2, lat1, lon1)
		if math.Abs(ab-ba) > 1e-9 {
			rt.Fatalf("d(a,b)=%v d(b,a)=%v", ab, ba)
		}
	})
}

func TestHaversineBounded(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		d := HaversineDistanceKm(genLat(rt, "lat1"), genLon(rt, "lon1"), genLat(rt, "lat2"), genLon(rt, "lon2"))
		if d < 0 || d > math.Pi*EarthRadiusKm+1e-6 {
			rt.Fatalf("distance %v outside [0, half circumference]", d)
		}
	})
}

func TestHaversineOneDegreeAtEquator(t *testing.T) {
	assert.InDelta(t, 111.19, HaversineDistanceKm(0, 0, 1, 0), 0.5)
}

func TestHaversineNaN(t *testing.T) {
	assert.True(t, math.IsNaN(HaversineDistanceKm(math.NaN(), 0, 0, 0)))
}

func TestEstimatedTravelMinutes(t *testing.T) {
	assert.Equal(t, 60, EstimatedTravelMinutes(30, 30))
	assert.Equal(t, 0, EstimatedTravelMinutes(0, 30))
	assert.Equal(t, 10, EstimatedTravelMinutes(5, 0), "zero speed uses the default")
}

func TestZoomLevelForSpan(t *testing.T) {
	assert.Equal(t, 0, ZoomLevelForSpan(360))
	assert.Equal(t, 8, ZoomLevelForSpan(360.0/256))
}

func TestInterpolate(t *testing.T) {
	from := Position{Latitude: 0, Longitude: 0}
	to := Position{Latitude: 1, Longitude: 2}

	mid := Interpolate(from, to, 0.1)
	assert.InDelta(t, 0.1, mid.Latitude, 1e-12)
	assert.InDelta(t, 0.2, mid.Longitude, 1e-12)

	assert.Equal(t, to.Latitude, Interpolate(from, to, 5).Latitude, "fraction is clamped")
}

func TestValidateCoordinates(t *testing.T) {
	require.NoError(t, ValidateCoordinates(6.5244, 3.3792))
	require.ErrorIs(t, ValidateCoordinates(91, 0), ErrInvalidCoordinates)
	require.ErrorIs(t, ValidateCoordinates(0, -181), ErrInvalidCoordinates)
	require.ErrorIs(t, ValidateCoordinates(math.NaN(), 0), ErrInvalidCoordinates)
}
