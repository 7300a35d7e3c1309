package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"brillprime/internal/shared/logger"
	"brillprime/internal/tracking/application/ports/out"
	"brillprime/internal/tracking/domain"
)

const (
	DefaultPositionTimeout = 15 * time.Second

	webProviderTimeout = 12 * time.Second
	webMaximumAge      = 60 * time.Second
)

// LocationService wraps a LocationProvider with platform-specific policy.
// None of its methods panic and GetCurrentPosition always returns a classified error.
type LocationService struct {
	*AddressResolver
	provider out.LocationProvider
	platform domain.Platform
	log      *logger.Logger
}

func NewLocationService(provider out.LocationProvider, geocoder out.ReverseGeocoder, platform domain.Platform, log *logger.Logger) *LocationService {
	if platform != domain.PlatformWeb {
		platform = domain.PlatformNative
	}
	return &LocationService{
		AddressResolver: NewAddressResolver(geocoder, log),
		provider:        provider,
		platform:        platform,
		log:             log,
	}
}

func (s *LocationService) Platform() domain.Platform { return s.platform }

// RequestPermission on web only inspects the state and is optimistic unless it is
// explicitly denied (the real prompt happens on the first fetch). Native prompts.
func (s *LocationService) RequestPermission(ctx context.Context) bool {
	if s.platform == domain.PlatformWeb {
		state, err := s.provider.Permission(ctx)
		if err != nil {
			s.log.Debug(logger.Entry{
				Action:  "permission_inspect_failed",
				Message: "permissions api unavailable, assuming granted",
				Error:   &logger.ErrObj{Msg: err.Error()},
			})
			return true
		}
		return state != domain.PermissionDenied
	}

	state, err := s.provider.RequestPermission(ctx)
	if err != nil {
		s.log.Warn(logger.Entry{
			Action:  "permission_request_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		return false
	}
	return state == domain.PermissionGranted
}

func (s *LocationService) options(timeout time.Duration) domain.PositionOptions {
	if s.platform == domain.PlatformWeb {
		return domain.PositionOptions{
			HighAccuracy: false,
			Timeout:      min(webProviderTimeout, timeout),
			MaximumAge:   webMaximumAge,
		}
	}
	return domain.PositionOptions{HighAccuracy: false, Timeout: timeout}
}

type positionResult struct {
	pos domain.Position
	err error
}

// GetCurrentPosition races the provider against timeout (DefaultPositionTimeout when <= 0).
// Errors wrap one of domain.ErrPermissionDenied or domain.ErrProviderUnavailable;
// a timeout additionally wraps domain.ErrPositionTimeout.
func (s *LocationService) GetCurrentPosition(ctx context.Context, timeout time.Duration) (domain.Position, error) {
	if timeout <= 0 {
		timeout = DefaultPositionTimeout
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// buffered so a provider that ignores ctx can still finish and be collected
	resCh := make(chan positionResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resCh <- positionResult{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		pos, err := s.provider.CurrentPosition(fetchCtx, s.options(timeout))
		resCh <- positionResult{pos: pos, err: err}
	}()

	var res positionResult
	select {
	case res = <-resCh:
	case <-fetchCtx.Done():
		res.err = fetchCtx.Err()
	}

	if res.err == nil {
		if err := res.pos.Validate(); err != nil {
			res.err = err
		}
	}
	if res.err != nil {
		err := classify(res.err)
		s.log.Warn(logger.Entry{
			Action:     "position_unavailable",
			Message:    err.Error(),
			Error:      &logger.ErrObj{Msg: res.err.Error()},
			Additional: map[string]any{"platform": string(s.platform), "timeout_ms": timeout.Milliseconds()},
		})
		return domain.Position{}, err
	}

	if res.pos.Timestamp == 0 {
		res.pos.Timestamp = time.Now().UnixMilli()
	}
	return res.pos, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		if err == domain.ErrPermissionDenied {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrPermissionDenied, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, domain.ErrPositionTimeout):
		return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, domain.ErrPositionTimeout)
	case errors.Is(err, domain.ErrProviderUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}
}

// AddressResolver turns coordinates into a display address.
type AddressResolver struct {
	geocoder out.ReverseGeocoder
	log      *logger.Logger
}

// NewAddressResolver accepts a nil geocoder; every lookup then falls back to coordinates.
func NewAddressResolver(geocoder out.ReverseGeocoder, log *logger.Logger) *AddressResolver {
	return &AddressResolver{geocoder: geocoder, log: log}
}

// ReverseGeocode never fails: any geocoder problem yields "lat, lon" with six decimals.
func (s *AddressResolver) ReverseGeocode(ctx context.Context, lat, lon float64) string {
	fallback := fmt.Sprintf("%.6f, %.6f", lat, lon)
	if s.geocoder == nil {
		return fallback
	}

	addr, err := s.geocoder.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		s.log.Debug(logger.Entry{
			Action:     "reverse_geocode_failed",
			Message:    err.Error(),
			Additional: map[string]any{"latitude": lat, "longitude": lon},
		})
		return fallback
	}
	if addr = strings.TrimSpace(addr); addr == "" {
		return fallback
	}
	return addr
}
