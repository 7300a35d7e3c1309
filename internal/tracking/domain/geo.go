package domain

import (
	"fmt"
	"math"
)

const (
	EarthRadiusKm          = 6371.0
	DefaultAverageSpeedKmh = 30.0

	// MinMovementKm is the significant-movement threshold (~10 m).
	MinMovementKm = 0.01
	// ArrivalRadiusKm is the proximity-transition radius (~50 m).
	ArrivalRadiusKm = 0.05
)

// HaversineDistanceKm is the great-circle distance in km. NaN in, NaN out.
func HaversineDistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	// rounding can push a slightly past 1 for antipodal points
	a = math.Min(a, 1)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// EstimatedTravelMinutes is round(distance / speed * 60). Non-positive speed falls back to 30 km/h.
func EstimatedTravelMinutes(distanceKm, averageSpeedKmh float64) int {
	if averageSpeedKmh <= 0 {
		averageSpeedKmh = DefaultAverageSpeedKmh
	}
	return int(math.Round(distanceKm / averageSpeedKmh * 60))
}

// ZoomLevelForSpan maps a latitude span to a map zoom level. Display only.
func ZoomLevelForSpan(latitudeDeltaDegrees float64) int {
	if latitudeDeltaDegrees <= 0 {
		return 20
	}
	return int(math.Round(math.Log2(360 / latitudeDeltaDegrees)))
}

// Interpolate moves from toward to by fraction (0..1) in plain lat/lon space.
// Good enough for the sub-kilometre hops it is used for.
func Interpolate(from, to Position, fraction float64) Position {
	fraction = math.Max(0, math.Min(1, fraction))
	return Position{
		Latitude:  from.Latitude + (to.Latitude-from.Latitude)*fraction,
		Longitude: from.Longitude + (to.Longitude-from.Longitude)*fraction,
		Accuracy:  from.Accuracy,
		Timestamp: from.Timestamp,
	}
}

func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude must be between -90 and 90", ErrInvalidCoordinates)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude must be between -180 and 180", ErrInvalidCoordinates)
	}
	return nil
}
