package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"brillprime/internal/shared/logger"
	"brillprime/internal/tracking/application/ports/out"
	"brillprime/internal/tracking/domain"
)

const (
	DefaultDisposeDelay = 3 * time.Second
)

// DeliveryTracker drives one ActiveDelivery through its phases using a PositionSource.
type DeliveryTracker struct {
	source       out.PositionSource
	notifier     out.DeliveryNotifier
	onDispose    func(deliveryID string)
	disposeDelay time.Duration
	log          *logger.ContextLogger

	mu           sync.Mutex
	delivery     *domain.ActiveDelivery
	disposeTimer *time.Timer
}

type DeliveryTrackerOptions struct {
	DisposeDelay time.Duration
	// OnDispose runs once, DisposeDelay after the delivery arrives.
	OnDispose func(deliveryID string)
}

func NewDeliveryTracker(d *domain.ActiveDelivery, source out.PositionSource, notifier out.DeliveryNotifier, opts DeliveryTrackerOptions, log *logger.Logger) *DeliveryTracker {
	if opts.DisposeDelay <= 0 {
		opts.DisposeDelay = DefaultDisposeDelay
	}
	return &DeliveryTracker{
		source:       source,
		notifier:     notifier,
		onDispose:    opts.OnDispose,
		disposeDelay: opts.DisposeDelay,
		log:          log.WithContext("", d.ID),
		delivery:     d,
	}
}

// Snapshot returns a copy of the delivery.
func (t *DeliveryTracker) Snapshot() domain.ActiveDelivery {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.delivery
}

// Step pulls one position and applies it. Source errors leave the delivery untouched.
func (t *DeliveryTracker) Step(ctx context.Context) (domain.Transition, error) {
	snap := t.Snapshot()
	if snap.Phase.Terminal() {
		return domain.Transition{DeliveryID: snap.ID, From: snap.Phase, To: snap.Phase}, nil
	}

	pos, err := t.source.Next(ctx, &snap)
	if err != nil {
		return domain.Transition{}, fmt.Errorf("next driver position: %w", err)
	}

	t.mu.Lock()
	tr := t.delivery.Advance(pos)
	after := *t.delivery
	t.mu.Unlock()

	if !tr.Changed {
		return tr, nil
	}

	t.log.Info(logger.Entry{
		Action:     "delivery_phase_changed",
		Message:    fmt.Sprintf("%s -> %s", tr.From, tr.To),
		Additional: map[string]any{"distance_km": tr.DistanceKm},
	})
	if t.notifier != nil {
		if err := t.notifier.NotifyPhaseChanged(ctx, after, tr); err != nil {
			t.log.Warn(logger.Entry{
				Action:  "delivery_notify_failed",
				Message: err.Error(),
				Error:   &logger.ErrObj{Msg: err.Error()},
			})
		}
	}
	if tr.To.Terminal() {
		t.scheduleDispose(after.ID)
	}
	return tr, nil
}

func (t *DeliveryTracker) scheduleDispose(id string) {
	if t.onDispose == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposeTimer != nil {
		return
	}
	t.disposeTimer = time.AfterFunc(t.disposeDelay, func() { t.onDispose(id) })
}

// Cancel drops a pending disposal. Used on shutdown.
func (t *DeliveryTracker) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposeTimer != nil {
		t.disposeTimer.Stop()
	}
}

// Run steps every interval until the delivery arrives or ctx ends.
func (t *DeliveryTracker) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultTrackingInterval
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		tr, err := t.Step(ctx)
		if err != nil {
			t.log.Debug(logger.Entry{
				Action:  "delivery_step_skipped",
				Message: err.Error(),
			})
		} else if tr.To.Terminal() {
			return nil
		}
		timer.Reset(interval)
	}
}
