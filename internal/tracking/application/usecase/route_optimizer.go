package usecase

import (
	"context"
	"fmt"

	"brillprime/internal/shared/logger"
	"brillprime/internal/tracking/domain"
)

const maxRouteStops = 100

type RouteOptimizer struct {
	log *logger.Logger
}

func NewRouteOptimizer(log *logger.Logger) *RouteOptimizer {
	return &RouteOptimizer{log: log}
}

// Optimize validates stops and runs the nearest-neighbour heuristic.
func (o *RouteOptimizer) Optimize(_ context.Context, stops []domain.Stop) (domain.RouteResult, error) {
	if len(stops) > maxRouteStops {
		return domain.RouteResult{}, fmt.Errorf("%w: at most %d stops", domain.ErrInvalidRequest, maxRouteStops)
	}
	for i, s := range stops {
		if err := domain.ValidateCoordinates(s.Latitude, s.Longitude); err != nil {
			return domain.RouteResult{}, fmt.Errorf("stop %d: %w", i, err)
		}
		if s.Priority < 0 {
			return domain.RouteResult{}, fmt.Errorf("stop %d: %w: negative priority", i, domain.ErrInvalidRequest)
		}
	}

	res := domain.OptimizeRoute(stops)
	o.log.Debug(logger.Entry{
		Action:  "route_optimized",
		Message: fmt.Sprintf("%d stops", len(stops)),
		Additional: map[string]any{
			"total_distance_km": res.TotalDistanceKm,
			"estimated_minutes": res.EstimatedMinutes,
		},
	})
	return res, nil
}
