package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"brillprime/internal/shared/logger"
	"brillprime/internal/shared/utils"
	"brillprime/internal/tracking/application/ports/in"
	"brillprime/internal/tracking/application/ports/out"
	"brillprime/internal/tracking/domain"
)

const (
	SourceSimulated = "simulated"
	SourceLive      = "live"

	// simulated drivers start this far north of the merchant (~1.1 km)
	simulatedStartOffsetDeg = 0.01
)

type DeliveryRegistryConfig struct {
	Interval     time.Duration
	DisposeDelay time.Duration
}

type registryEntry struct {
	tracker *DeliveryTracker
	cancel  context.CancelFunc
}

// DeliveryRegistry owns the active deliveries of the api process. Each accepted
// delivery gets a DeliveryTracker running on its own goroutine; records are
// removed DisposeDelay after arrival.
type DeliveryRegistry struct {
	base     context.Context
	cfg      DeliveryRegistryConfig
	live     in.LiveLocationQuery
	notifier out.DeliveryNotifier
	log      *logger.Logger
	newID    func() string

	mu    sync.RWMutex
	items map[string]*registryEntry
	wg    sync.WaitGroup
}

// NewDeliveryRegistry binds tracker lifetimes to base, not to the request that accepted them.
func NewDeliveryRegistry(base context.Context, cfg DeliveryRegistryConfig, live in.LiveLocationQuery, notifier out.DeliveryNotifier, log *logger.Logger) *DeliveryRegistry {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultTrackingInterval
	}
	if cfg.DisposeDelay <= 0 {
		cfg.DisposeDelay = DefaultDisposeDelay
	}
	return &DeliveryRegistry{
		base:     base,
		cfg:      cfg,
		live:     live,
		notifier: notifier,
		log:      log,
		newID:    utils.NewUUID,
		items:    make(map[string]*registryEntry),
	}
}

func (r *DeliveryRegistry) Accept(ctx context.Context, input in.AcceptDeliveryInput) (domain.ActiveDelivery, error) {
	if strings.TrimSpace(input.DriverID) == "" || strings.TrimSpace(input.ConsumerID) == "" {
		return domain.ActiveDelivery{}, fmt.Errorf("%w: driver_id and consumer_id are required", domain.ErrInvalidRequest)
	}
	if err := input.MerchantLocation.Validate(); err != nil {
		return domain.ActiveDelivery{}, fmt.Errorf("merchant_location: %w", err)
	}
	if err := input.ConsumerLocation.Validate(); err != nil {
		return domain.ActiveDelivery{}, fmt.Errorf("consumer_location: %w", err)
	}

	source, err := r.source(input.Source)
	if err != nil {
		return domain.ActiveDelivery{}, err
	}

	now := time.Now().UTC()
	driver := input.MerchantLocation
	driver.Latitude = min(driver.Latitude+simulatedStartOffsetDeg, 90)
	if input.DriverLocation != nil {
		if err := input.DriverLocation.Validate(); err != nil {
			return domain.ActiveDelivery{}, fmt.Errorf("driver_location: %w", err)
		}
		driver = *input.DriverLocation
	} else if input.Source == SourceLive {
		if pos, err := r.live.GetLiveLocation(ctx, input.DriverID); err == nil {
			driver = pos
		}
	}
	driver.Timestamp = now.UnixMilli()

	d := domain.NewActiveDelivery(r.newID(), input.DriverID, input.ConsumerID,
		input.MerchantLocation, input.ConsumerLocation, driver, now)

	tracker := NewDeliveryTracker(d, source, r.notifier, DeliveryTrackerOptions{
		DisposeDelay: r.cfg.DisposeDelay,
		OnDispose:    r.dispose,
	}, r.log)

	runCtx, cancel := context.WithCancel(r.base)
	r.mu.Lock()
	r.items[d.ID] = &registryEntry{tracker: tracker, cancel: cancel}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_ = tracker.Run(runCtx, r.cfg.Interval)
	}()

	r.log.Info(logger.Entry{
		Action:     "delivery_accepted",
		Message:    "delivery tracking started",
		DeliveryID: d.ID,
		Additional: map[string]any{
			"driver_id":   d.DriverID,
			"consumer_id": d.ConsumerID,
			"source":      sourceName(input.Source),
		},
	})
	return *d, nil
}

func sourceName(s string) string {
	if s == "" {
		return SourceSimulated
	}
	return s
}

func (r *DeliveryRegistry) source(kind string) (out.PositionSource, error) {
	switch sourceName(kind) {
	case SourceSimulated:
		return InterpolatingSource{Fraction: DefaultInterpolationFraction}, nil
	case SourceLive:
		if r.live == nil {
			return nil, fmt.Errorf("%w: live source unavailable", domain.ErrInvalidRequest)
		}
		return LiveSource{Live: r.live}, nil
	default:
		return nil, fmt.Errorf("%w: unknown position source %q", domain.ErrInvalidRequest, kind)
	}
}

func (r *DeliveryRegistry) dispose(id string) {
	r.mu.Lock()
	e, ok := r.items[id]
	delete(r.items, id)
	r.mu.Unlock()
	if !ok {
		return
	}
	e.cancel()
	r.log.Info(logger.Entry{Action: "delivery_disposed", Message: "delivery record removed", DeliveryID: id})
}

func (r *DeliveryRegistry) Get(id string) (domain.ActiveDelivery, error) {
	r.mu.RLock()
	e, ok := r.items[id]
	r.mu.RUnlock()
	if !ok {
		return domain.ActiveDelivery{}, fmt.Errorf("%w: %s", domain.ErrDeliveryNotFound, id)
	}
	return e.tracker.Snapshot(), nil
}

// List returns active deliveries, oldest first.
func (r *DeliveryRegistry) List() []domain.ActiveDelivery {
	r.mu.RLock()
	items := make([]domain.ActiveDelivery, 0, len(r.items))
	for _, e := range r.items {
		items = append(items, e.tracker.Snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].AcceptedAt.Equal(items[j].AcceptedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].AcceptedAt.Before(items[j].AcceptedAt)
	})
	return items
}

// Close stops every tracker and waits for their goroutines.
func (r *DeliveryRegistry) Close() {
	r.mu.Lock()
	for id, e := range r.items {
		e.tracker.Cancel()
		e.cancel()
		delete(r.items, id)
	}
	r.mu.Unlock()
	r.wg.Wait()
}
