package usecase

import (
	"context"
	"sync"
	"time"

	"brillprime/internal/tracking/application/ports/in"
	"brillprime/internal/tracking/domain"
)

const DefaultInterpolationFraction = 0.1

// InterpolatingSource is a simulation placeholder, not telemetry: every call moves
// the displayed driver Fraction of the way toward the current target.
type InterpolatingSource struct {
	Fraction float64
	Now      func() time.Time
}

func (s InterpolatingSource) Next(_ context.Context, d *domain.ActiveDelivery) (domain.Position, error) {
	f := s.Fraction
	if f <= 0 {
		f = DefaultInterpolationFraction
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	pos := domain.Interpolate(d.DriverLocation, d.Target(), f)
	pos.Timestamp = now().UnixMilli()
	return pos, nil
}

// LiveSource reads the driver's real position through the live-location cache.
type LiveSource struct {
	Live in.LiveLocationQuery
}

func (s LiveSource) Next(ctx context.Context, d *domain.ActiveDelivery) (domain.Position, error) {
	return s.Live.GetLiveLocation(ctx, d.DriverID)
}

// FeedSource hands out the latest position pushed into it, typically from a
// TrackingLoop subscription on the driver's own device.
type FeedSource struct {
	mu     sync.Mutex
	latest *domain.Position
}

func NewFeedSource() *FeedSource { return &FeedSource{} }

// Push is shaped to be passed straight to TrackingLoop.OnUpdate.
func (s *FeedSource) Push(pos domain.Position) {
	s.mu.Lock()
	s.latest = &pos
	s.mu.Unlock()
}

func (s *FeedSource) Next(_ context.Context, _ *domain.ActiveDelivery) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return domain.Position{}, domain.ErrLocationNotFound
	}
	return *s.latest, nil
}
