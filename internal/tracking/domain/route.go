package domain

import "math"

// Stop is one route waypoint. Priority >= 1 pulls a stop forward; 0 means none.
type Stop struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Priority  float64 `json:"priority,omitempty"`
}

type RouteResult struct {
	Order            []int   `json:"order"`
	TotalDistanceKm  float64 `json:"total_distance_km"`
	EstimatedMinutes int     `json:"estimated_minutes"`
}

// OptimizeRoute orders stops with a greedy nearest-neighbour walk from stops[0],
// choosing by distance/priority and summing the true distance. It is a heuristic,
// not an optimal TSP solution.
func OptimizeRoute(stops []Stop) RouteResult {
	if len(stops) <= 1 {
		return RouteResult{Order: []int{0}}
	}

	visited := make([]bool, len(stops))
	visited[0] = true
	order := make([]int, 1, len(stops))
	current := 0
	total := 0.0

	for len(order) < len(stops) {
		best, bestScore, bestDist := -1, math.Inf(1), 0.0
		for i, s := range stops {
			if visited[i] {
				continue
			}
			d := HaversineDistanceKm(stops[current].Latitude, stops[current].Longitude, s.Latitude, s.Longitude)
			score := d
			if s.Priority > 0 {
				score = d / math.Max(s.Priority, 1)
			}
			if score < bestScore {
				best, bestScore, bestDist = i, score, d
			}
		}
		if best < 0 {
			// only NaN coordinates remain; keep input order
			for i := range stops {
				if !visited[i] {
					visited[i] = true
					order = append(order, i)
				}
			}
			break
		}
		visited[best] = true
		order = append(order, best)
		total += bestDist
		current = best
	}

	return RouteResult{
		Order:            order,
		TotalDistanceKm:  total,
		EstimatedMinutes: EstimatedTravelMinutes(total, DefaultAverageSpeedKmh),
	}
}
