package device

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"brillprime/internal/tracking/domain"
)

const DefaultSimulatedSpeedKmh = 25.0

// SimulatedProvider walks a closed polyline at a constant speed. It stands in
// for a native GPS during development.
type SimulatedProvider struct {
	route    []domain.Position
	legs     []float64
	totalKm  float64
	speedKmh float64
	jitterM  float64
	now      func() time.Time
	start    time.Time

	mu         sync.Mutex
	permission domain.PermissionState
	rng        *rand.Rand
}

type SimulatedOptions struct {
	SpeedKmh float64
	// JitterMetres adds uniform noise of up to this many metres per axis.
	JitterMetres float64
	Permission   domain.PermissionState
	Now          func() time.Time
	Seed         uint64
}

func NewSimulatedProvider(route []domain.Position, opts SimulatedOptions) *SimulatedProvider {
	if opts.SpeedKmh <= 0 {
		opts.SpeedKmh = DefaultSimulatedSpeedKmh
	}
	if opts.Permission == "" {
		opts.Permission = domain.PermissionGranted
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &SimulatedProvider{
		route:      route,
		speedKmh:   opts.SpeedKmh,
		jitterM:    opts.JitterMetres,
		now:        opts.Now,
		start:      opts.Now(),
		permission: opts.Permission,
		rng:        rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}
	for i := range route {
		next := route[(i+1)%len(route)]
		d := route[i].DistanceKm(next)
		s.legs = append(s.legs, d)
		s.totalKm += d
	}
	return s
}

func (s *SimulatedProvider) SetPermission(state domain.PermissionState) {
	s.mu.Lock()
	s.permission = state
	s.mu.Unlock()
}

func (s *SimulatedProvider) Permission(context.Context) (domain.PermissionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission, nil
}

// RequestPermission grants a pending prompt; an explicit denial sticks.
func (s *SimulatedProvider) RequestPermission(context.Context) (domain.PermissionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.permission == domain.PermissionPrompt {
		s.permission = domain.PermissionGranted
	}
	return s.permission, nil
}

func (s *SimulatedProvider) CurrentPosition(ctx context.Context, _ domain.PositionOptions) (domain.Position, error) {
	if err := ctx.Err(); err != nil {
		return domain.Position{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.permission != domain.PermissionGranted {
		return domain.Position{}, domain.ErrPermissionDenied
	}
	if len(s.route) == 0 {
		return domain.Position{}, domain.ErrProviderUnavailable
	}

	now := s.now()
	pos := s.at(now.Sub(s.start))
	if s.jitterM > 0 {
		pos.Latitude += s.noise() / 111_195
		pos.Longitude += s.noise() / (111_195 * math.Max(math.Cos(pos.Latitude*math.Pi/180), 0.01))
	}
	pos.Timestamp = now.UnixMilli()
	return pos.WithAccuracy(math.Max(s.jitterM, 5)), nil
}

func (s *SimulatedProvider) noise() float64 {
	return (s.rng.Float64()*2 - 1) * s.jitterM
}

// at returns the point reached after elapsed, wrapping around the closed route.
func (s *SimulatedProvider) at(elapsed time.Duration) domain.Position {
	if s.totalKm == 0 {
		return s.route[0]
	}
	travelled := math.Mod(elapsed.Hours()*s.speedKmh, s.totalKm)
	for i, leg := range s.legs {
		if travelled <= leg {
			if leg == 0 {
				return s.route[i]
			}
			return domain.Interpolate(s.route[i], s.route[(i+1)%len(s.route)], travelled/leg)
		}
		travelled -= leg
	}
	return s.route[0]
}
