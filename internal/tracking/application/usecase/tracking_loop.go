package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"brillprime/internal/shared/logger"
	"brillprime/internal/tracking/application/ports/out"
	"brillprime/internal/tracking/domain"
)

const (
	DefaultTrackingInterval     = 5 * time.Second
	DefaultMaxConsecutiveErrors = 5
	DefaultQueueLimit           = 50

	flushTimeout = 5 * time.Second
)

type LoopState int32

const (
	StateStopped LoopState = iota
	StateStarting
	StateRunning
)

func (s LoopState) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	default:
		return "stopped"
	}
}

// PositionFetcher is what the loop needs from LocationService.
type PositionFetcher interface {
	RequestPermission(ctx context.Context) bool
	GetCurrentPosition(ctx context.Context, timeout time.Duration) (domain.Position, error)
}

type TrackingLoopConfig struct {
	MinMovementKm        float64
	MaxConsecutiveErrors int
	QueueLimit           int
	PositionTimeout      time.Duration
}

func (c TrackingLoopConfig) withDefaults() TrackingLoopConfig {
	if c.MinMovementKm <= 0 {
		c.MinMovementKm = domain.MinMovementKm
	}
	if c.MaxConsecutiveErrors <= 0 {
		c.MaxConsecutiveErrors = DefaultMaxConsecutiveErrors
	}
	if c.QueueLimit <= 0 {
		c.QueueLimit = DefaultQueueLimit
	}
	if c.PositionTimeout <= 0 {
		c.PositionTimeout = DefaultPositionTimeout
	}
	return c
}

// TrackingSinks are the persistence and alert collaborators. Nil members are replaced by no-ops.
type TrackingSinks struct {
	Store     out.LiveLocationStore
	Publisher out.LocationPublisher
	API       out.LocationAPI
	Auth      out.AuthContext
	Alerter   out.UserAlerter
}

type subscription struct {
	id     uint64
	fn     func(domain.Position)
	active atomic.Bool
}

// TrackingLoop samples the device position on a fixed cadence, drops insignificant
// movement, notifies subscribers and persists accepted positions.
//
// One goroutine runs per Start. Ticks never overlap: the timer is re-armed after the
// tick body returns. Every Start and Stop bumps a generation counter and results that
// belong to an older generation are discarded.
type TrackingLoop struct {
	fetcher PositionFetcher
	sinks   TrackingSinks
	cfg     TrackingLoopConfig
	log     *logger.Logger

	mu        sync.Mutex
	state     LoopState
	gen       uint64
	runGen    uint64 // generation handed to the latest run goroutine
	cancel    context.CancelFunc
	done      chan struct{}
	last      *domain.Position
	errCount  int
	queue     []domain.Position
	subs      []*subscription
	nextSubID uint64
}

func NewTrackingLoop(fetcher PositionFetcher, sinks TrackingSinks, cfg TrackingLoopConfig, log *logger.Logger) *TrackingLoop {
	if sinks.API == nil {
		sinks.API = noopLocationAPI{}
	}
	if sinks.Publisher == nil {
		sinks.Publisher = noopPublisher{}
	}
	if sinks.Alerter == nil {
		sinks.Alerter = logAlerter{log: log}
	}
	if sinks.Auth == nil {
		sinks.Auth = anonymous{}
	}
	done := make(chan struct{})
	close(done)
	return &TrackingLoop{
		fetcher: fetcher,
		sinks:   sinks,
		cfg:     cfg.withDefaults(),
		log:     log,
		done:    done,
	}
}

func (l *TrackingLoop) State() LoopState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Done is closed when the goroutine of the most recent Start has exited.
func (l *TrackingLoop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// QueueLen reports positions waiting to be re-sent.
func (l *TrackingLoop) QueueLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Start begins sampling. It is a logged no-op while already started. On permission
// denial the user is alerted once and domain.ErrPermissionDenied is returned.
// The loop also stops when ctx ends.
func (l *TrackingLoop) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultTrackingInterval
	}

	l.mu.Lock()
	if l.state != StateStopped {
		state := l.state
		l.mu.Unlock()
		l.log.Info(logger.Entry{
			Action:     "tracking_already_running",
			Message:    "start ignored",
			Additional: map[string]any{"state": state.String()},
		})
		return nil
	}
	l.state = StateStarting
	l.gen++
	gen := l.gen
	l.runGen = gen
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done
	l.last = nil
	l.errCount = 0
	l.mu.Unlock()

	if !l.fetcher.RequestPermission(runCtx) {
		l.stopGen(gen, "permission_denied")
		close(done)
		l.alert(context.WithoutCancel(ctx), out.Alert{
			Kind:    out.AlertPermissionDenied,
			Message: "Location permission is required to share your position.",
		})
		return domain.ErrPermissionDenied
	}

	l.log.Info(logger.Entry{
		Action:     "tracking_started",
		Message:    "location tracking started",
		Additional: map[string]any{"interval_ms": interval.Milliseconds(), "generation": gen},
	})

	go l.run(runCtx, gen, interval, done)
	return nil
}

// Stop is idempotent and never blocks on the loop goroutine, so it is safe inside
// a subscriber callback. Queued positions are flushed best-effort as the goroutine exits.
func (l *TrackingLoop) Stop() {
	l.mu.Lock()
	if l.state == StateStopped {
		l.mu.Unlock()
		return
	}
	l.gen++
	l.state = StateStopped
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	l.log.Info(logger.Entry{Action: "tracking_stopped", Message: "location tracking stopped"})
}

// stopGen stops only if gen is still current. Reports whether it did.
func (l *TrackingLoop) stopGen(gen uint64, reason string) bool {
	l.mu.Lock()
	if l.gen != gen || l.state == StateStopped {
		l.mu.Unlock()
		return false
	}
	l.gen++
	l.state = StateStopped
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	l.log.Info(logger.Entry{
		Action:     "tracking_stopped",
		Message:    "location tracking stopped",
		Additional: map[string]any{"reason": reason},
	})
	return true
}

func (l *TrackingLoop) current(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen == gen
}

// OnUpdate registers fn for every accepted position. Subscribers run synchronously on
// the loop goroutine in registration order. The returned func removes exactly this
// subscription and may be called any number of times.
func (l *TrackingLoop) OnUpdate(fn func(domain.Position)) func() {
	s := &subscription{fn: fn}
	s.active.Store(true)

	l.mu.Lock()
	l.nextSubID++
	s.id = l.nextSubID
	l.subs = append(l.subs, s)
	l.mu.Unlock()

	return func() {
		if !s.active.Swap(false) {
			return
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, cur := range l.subs {
			if cur.id == s.id {
				l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
				break
			}
		}
	}
}

func (l *TrackingLoop) SubscriberCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

func (l *TrackingLoop) run(ctx context.Context, gen uint64, interval time.Duration, done chan struct{}) {
	defer func() {
		l.flush(ctx)
		close(done)
	}()

	pos, err := l.fetcher.GetCurrentPosition(ctx, l.cfg.PositionTimeout)
	if !l.current(gen) {
		return
	}
	if err != nil {
		// the first fix often lags; only tick failures count towards auto-stop
		l.log.Warn(logger.Entry{
			Action:  "initial_position_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	} else {
		l.accept(ctx, gen, pos, false)
	}

	l.mu.Lock()
	if l.gen != gen {
		l.mu.Unlock()
		return
	}
	l.state = StateRunning
	l.mu.Unlock()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			l.stopGen(gen, "context_done")
			return
		case <-timer.C:
		}

		l.tick(ctx, gen)
		if !l.current(gen) {
			return
		}
		timer.Reset(interval)
	}
}

func (l *TrackingLoop) tick(ctx context.Context, gen uint64) {
	pos, err := l.fetcher.GetCurrentPosition(ctx, l.cfg.PositionTimeout)
	if !l.current(gen) {
		l.log.Debug(logger.Entry{Action: "tracking_result_discarded", Message: "fetch resolved after stop"})
		return
	}
	if err != nil {
		l.recordFailure(ctx, gen, "fetch", err)
		return
	}

	l.mu.Lock()
	prev := l.last
	l.mu.Unlock()

	if prev != nil {
		if moved := prev.DistanceKm(pos); moved < l.cfg.MinMovementKm {
			l.log.Debug(logger.Entry{
				Action:     "movement_suppressed",
				Message:    "insignificant movement",
				Additional: map[string]any{"moved_km": moved},
			})
			l.resetErrors(gen)
			return
		}
	}

	l.accept(ctx, gen, pos, true)
}

// accept notifies subscribers and persists. Persistence failure counts towards
// auto-stop only when counted is set.
func (l *TrackingLoop) accept(ctx context.Context, gen uint64, pos domain.Position, counted bool) {
	l.mu.Lock()
	if l.gen != gen {
		l.mu.Unlock()
		return
	}
	p := pos
	l.last = &p
	subs := make([]*subscription, len(l.subs))
	copy(subs, l.subs)
	l.mu.Unlock()

	for _, s := range subs {
		if !l.current(gen) {
			return
		}
		if s.active.Load() {
			l.notify(s, pos)
		}
	}

	if err := l.persist(ctx, gen, pos); err != nil {
		if !counted {
			l.log.Warn(logger.Entry{
				Action:  "initial_persist_failed",
				Message: err.Error(),
				Error:   &logger.ErrObj{Msg: err.Error()},
			})
			return
		}
		l.recordFailure(ctx, gen, "persist", err)
		return
	}
	l.resetErrors(gen)
}

func (l *TrackingLoop) notify(s *subscription, pos domain.Position) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error(logger.Entry{
				Action:     "subscriber_panic",
				Message:    fmt.Sprint(r),
				Error:      &logger.ErrObj{Msg: fmt.Sprint(r)},
				Additional: map[string]any{"subscription": s.id},
			})
		}
	}()
	s.fn(pos)
}

// persist writes the queued backlog plus pos. No identity means no remote writes.
// Only the authoritative store decides success; broadcast and REST failures are logged.
// A run that has been superseded by a newer Start neither drains nor refills the queue.
func (l *TrackingLoop) persist(ctx context.Context, gen uint64, pos domain.Position) error {
	userID, token, ok := l.sinks.Auth.Identity(ctx)
	if !ok || l.sinks.Store == nil {
		l.log.Debug(logger.Entry{Action: "persistence_skipped", Message: domain.ErrNoToken.Error()})
		return nil
	}

	l.mu.Lock()
	if l.runGen != gen {
		l.mu.Unlock()
		return nil
	}
	batch := append(l.queue, pos)
	l.queue = nil
	l.mu.Unlock()

	if err := l.sinks.Store.Upsert(ctx, userID, pos); err != nil {
		l.requeue(gen, batch)
		return fmt.Errorf("%w: upsert live location: %w", domain.ErrPersistenceFailure, err)
	}

	if err := l.sinks.Store.AppendHistory(ctx, userID, batch); err != nil {
		l.log.Warn(logger.Entry{
			Action:     "history_append_failed",
			Message:    err.Error(),
			Error:      &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{"batch": len(batch)},
		})
	}
	if err := l.sinks.Publisher.PublishLocation(ctx, domain.LiveLocation{UserID: userID, Position: pos}); err != nil {
		l.log.Warn(logger.Entry{
			Action:  "location_broadcast_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}
	if err := l.sinks.API.PutLiveLocation(ctx, token, pos); err != nil {
		l.log.Warn(logger.Entry{
			Action:  "location_rest_put_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}
	return nil
}

// enqueue keeps at most QueueLimit positions, dropping the oldest.
func (l *TrackingLoop) enqueue(batch []domain.Position) {
	l.mu.Lock()
	dropped := l.enqueueLocked(batch)
	l.mu.Unlock()
	l.logOverflow(dropped)
}

// requeue puts a failed batch back unless a newer run owns the queue by now.
func (l *TrackingLoop) requeue(gen uint64, batch []domain.Position) {
	l.mu.Lock()
	if l.runGen != gen {
		l.mu.Unlock()
		l.log.Debug(logger.Entry{
			Action:     "stale_batch_dropped",
			Message:    "persist failed after a restart",
			Additional: map[string]any{"dropped": len(batch), "generation": gen},
		})
		return
	}
	dropped := l.enqueueLocked(batch)
	l.mu.Unlock()
	l.logOverflow(dropped)
}

// caller holds l.mu
func (l *TrackingLoop) enqueueLocked(batch []domain.Position) int {
	q := append(batch, l.queue...)
	dropped := 0
	if over := len(q) - l.cfg.QueueLimit; over > 0 {
		dropped = over
		q = q[over:]
	}
	l.queue = q
	return dropped
}

func (l *TrackingLoop) logOverflow(dropped int) {
	if dropped > 0 {
		l.log.Warn(logger.Entry{
			Action:     "location_queue_overflow",
			Message:    "oldest queued positions dropped",
			Additional: map[string]any{"dropped": dropped, "limit": l.cfg.QueueLimit},
		})
	}
}

// flush re-sends the backlog once after the loop has stopped; failures are dropped.
func (l *TrackingLoop) flush(ctx context.Context) {
	l.mu.Lock()
	if l.state != StateStopped || len(l.queue) == 0 {
		l.mu.Unlock()
		return
	}
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	userID, _, ok := l.sinks.Auth.Identity(ctx)
	if !ok || l.sinks.Store == nil {
		return
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()

	err := l.sinks.Store.Upsert(flushCtx, userID, batch[len(batch)-1])
	if err == nil {
		err = l.sinks.Store.AppendHistory(flushCtx, userID, batch)
	}
	if err != nil {
		l.log.Warn(logger.Entry{
			Action:     "location_flush_dropped",
			Message:    err.Error(),
			Error:      &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{"dropped": len(batch)},
		})
		return
	}
	l.log.Info(logger.Entry{
		Action:     "location_queue_flushed",
		Message:    "queued positions persisted on stop",
		Additional: map[string]any{"count": len(batch)},
	})
}

func (l *TrackingLoop) resetErrors(gen uint64) {
	l.mu.Lock()
	if l.gen == gen {
		l.errCount = 0
	}
	l.mu.Unlock()
}

func (l *TrackingLoop) recordFailure(ctx context.Context, gen uint64, stage string, err error) {
	l.mu.Lock()
	if l.gen != gen {
		l.mu.Unlock()
		return
	}
	l.errCount++
	n := l.errCount
	l.mu.Unlock()

	l.log.Warn(logger.Entry{
		Action:  "tracking_tick_failed",
		Message: err.Error(),
		Error:   &logger.ErrObj{Msg: err.Error()},
		Additional: map[string]any{
			"stage":              stage,
			"consecutive_errors": n,
		},
	})

	if n < l.cfg.MaxConsecutiveErrors {
		return
	}
	if l.stopGen(gen, "too_many_errors") {
		l.log.Error(logger.Entry{
			Action:     "tracking_auto_stopped",
			Message:    fmt.Sprintf("stopped after %d consecutive errors", n),
			Error:      &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{"stage": stage},
		})
		l.alert(context.WithoutCancel(ctx), out.Alert{
			Kind:    out.AlertTrackingStopped,
			Message: "Live location sharing stopped after repeated errors.",
		})
	}
}

func (l *TrackingLoop) alert(ctx context.Context, a out.Alert) {
	userID, _, _ := l.sinks.Auth.Identity(ctx)
	if err := l.sinks.Alerter.Alert(ctx, userID, a); err != nil {
		l.log.Warn(logger.Entry{
			Action:  "user_alert_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}
}

type noopLocationAPI struct{}

func (noopLocationAPI) PutLiveLocation(context.Context, string, domain.Position) error { return nil }

type noopPublisher struct{}

func (noopPublisher) PublishLocation(context.Context, domain.LiveLocation) error { return nil }

type anonymous struct{}

func (anonymous) Identity(context.Context) (string, string, bool) { return "", "", false }

type logAlerter struct{ log *logger.Logger }

func (a logAlerter) Alert(_ context.Context, userID string, alert out.Alert) error {
	a.log.Warn(logger.Entry{
		Action:     "user_alert",
		Message:    alert.Message,
		Additional: map[string]any{"kind": string(alert.Kind), "user_id": userID},
	})
	return nil
}
