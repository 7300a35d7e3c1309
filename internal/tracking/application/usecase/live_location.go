package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"brillprime/internal/shared/cache"
	"brillprime/internal/shared/logger"
	"brillprime/internal/tracking/application/ports/in"
	"brillprime/internal/tracking/application/ports/out"
	"brillprime/internal/tracking/domain"
)

const (
	DefaultLiveCacheTTL = 10 * time.Second

	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// LiveLocationService serves other users' latest positions through a TTL cache.
type LiveLocationService struct {
	store out.LiveLocationStore
	cache *cache.TTL[domain.Position]
	log   *logger.Logger
}

func NewLiveLocationService(store out.LiveLocationStore, c *cache.TTL[domain.Position], log *logger.Logger) *LiveLocationService {
	if c == nil {
		c = cache.NewTTL[domain.Position](DefaultLiveCacheTTL)
	}
	return &LiveLocationService{store: store, cache: c, log: log}
}

// GetLiveLocation returns a fresh cache hit unchanged. On a miss it reads the store;
// if that fails the last cached value is returned with IsStale set, else
// domain.ErrLocationNotFound.
func (s *LiveLocationService) GetLiveLocation(ctx context.Context, subjectID string) (domain.Position, error) {
	if pos, ok := s.cache.Get(subjectID); ok {
		return pos, nil
	}

	pos, err := s.store.Get(ctx, subjectID)
	if err == nil {
		pos.IsStale = false
		s.cache.Set(subjectID, pos)
		return pos, nil
	}

	if cached, cachedAt, ok := s.cache.Peek(subjectID); ok {
		s.log.Warn(logger.Entry{
			Action:  "live_location_stale_fallback",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{
				"subject_id": subjectID,
				"cached_at":  cachedAt.UTC().Format(time.RFC3339),
			},
		})
		cached.IsStale = true
		return cached, nil
	}

	if !errors.Is(err, domain.ErrLocationNotFound) {
		s.log.Warn(logger.Entry{
			Action:     "live_location_fetch_failed",
			Message:    err.Error(),
			Error:      &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{"subject_id": subjectID},
		})
	}
	return domain.Position{}, fmt.Errorf("%w: %s", domain.ErrLocationNotFound, subjectID)
}

func (s *LiveLocationService) Invalidate(subjectID string) {
	s.cache.Invalidate(subjectID)
}

// Observe primes the cache from a pushed update so readers skip the store.
func (s *LiveLocationService) Observe(loc domain.LiveLocation) {
	loc.Position.IsStale = false
	s.cache.Set(loc.UserID, loc.Position)
}

func (s *LiveLocationService) History(ctx context.Context, subjectID string, limit int) ([]domain.Position, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)
	items, err := s.store.History(ctx, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("location history: %w", err)
	}
	return items, nil
}

// UpdateLiveLocation is the server side of PUT /location/live.
type UpdateLiveLocation struct {
	store     out.LiveLocationStore
	publisher out.LocationPublisher
	live      *LiveLocationService
	log       *logger.Logger
	now       func() time.Time
}

func NewUpdateLiveLocation(store out.LiveLocationStore, publisher out.LocationPublisher, live *LiveLocationService, log *logger.Logger) *UpdateLiveLocation {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &UpdateLiveLocation{store: store, publisher: publisher, live: live, log: log, now: time.Now}
}

func (uc *UpdateLiveLocation) Execute(ctx context.Context, input in.UpdateLiveLocationInput) (domain.Position, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return domain.Position{}, domain.ErrNoToken
	}
	if err := domain.ValidateCoordinates(input.Latitude, input.Longitude); err != nil {
		return domain.Position{}, err
	}
	if input.Accuracy != nil && *input.Accuracy < 0 {
		return domain.Position{}, fmt.Errorf("%w: accuracy must be non-negative", domain.ErrInvalidCoordinates)
	}

	pos := domain.Position{
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
		Accuracy:  input.Accuracy,
		Timestamp: input.Timestamp,
	}
	if pos.Timestamp <= 0 {
		pos.Timestamp = uc.now().UnixMilli()
	}

	if err := uc.store.Upsert(ctx, input.UserID, pos); err != nil {
		return domain.Position{}, fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
	}
	if err := uc.store.AppendHistory(ctx, input.UserID, []domain.Position{pos}); err != nil {
		uc.log.Warn(logger.Entry{
			Action:  "history_append_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}
	if uc.live != nil {
		uc.live.Observe(domain.LiveLocation{UserID: input.UserID, Position: pos})
	}
	if err := uc.publisher.PublishLocation(ctx, domain.LiveLocation{UserID: input.UserID, Position: pos}); err != nil {
		uc.log.Warn(logger.Entry{
			Action:  "location_broadcast_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}

	uc.log.Debug(logger.Entry{
		Action:     "live_location_updated",
		Message:    input.UserID,
		Additional: map[string]any{"latitude": pos.Latitude, "longitude": pos.Longitude},
	})
	return pos, nil
}
