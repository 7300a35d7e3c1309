package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"brillprime/internal/tracking/application/ports/out"
	"brillprime/internal/tracking/domain"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var origin = domain.Position{Latitude: 6.5244, Longitude: 3.3792}

// northOf shifts p along the meridian by metres.
func northOf(p domain.Position, metres float64) domain.Position {
	p.Latitude += metres / 111_195
	return p
}

type fetchStep struct {
	pos domain.Position
	err error
}

// scriptedFetcher replays steps and then repeats the last one forever.
type scriptedFetcher struct {
	mu      sync.Mutex
	steps   []fetchStep
	next    int
	calls   int
	denied  bool
	blockCh chan struct{} // when set, every fetch waits for ctx or this channel
}

func (f *scriptedFetcher) RequestPermission(context.Context) bool { return !f.denied }

func (f *scriptedFetcher) GetCurrentPosition(ctx context.Context, _ time.Duration) (domain.Position, error) {
	f.mu.Lock()
	f.calls++
	block := f.blockCh
	var s fetchStep
	if len(f.steps) > 0 {
		idx := min(f.next, len(f.steps)-1)
		s = f.steps[idx]
		f.next++
	} else {
		s.err = domain.ErrProviderUnavailable
	}
	f.mu.Unlock()

	if block != nil {
		select {
		case <-ctx.Done():
		case <-block:
		}
	}
	return s.pos, s.err
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memStore struct {
	mu          sync.Mutex
	live        map[string]domain.Position
	history     map[string][]domain.Position
	upserts     int
	gets        int
	failUpserts int
	failGets    bool
}

func newMemStore() *memStore {
	return &memStore{live: map[string]domain.Position{}, history: map[string][]domain.Position{}}
}

var errStoreDown = errors.New("store down")

func (s *memStore) Upsert(_ context.Context, userID string, pos domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpserts > 0 {
		s.failUpserts--
		return errStoreDown
	}
	s.upserts++
	s.live[userID] = pos
	return nil
}

func (s *memStore) AppendHistory(_ context.Context, userID string, batch []domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[userID] = append(s.history[userID], batch...)
	return nil
}

func (s *memStore) Get(_ context.Context, userID string) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.failGets {
		return domain.Position{}, errStoreDown
	}
	pos, ok := s.live[userID]
	if !ok {
		return domain.Position{}, domain.ErrLocationNotFound
	}
	return pos, nil
}

func (s *memStore) History(_ context.Context, userID string, limit int) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.history[userID]
	if len(h) > limit {
		h = h[len(h)-limit:]
	}
	return append([]domain.Position(nil), h...), nil
}

func (s *memStore) counts() (upserts, history int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.history {
		n += len(h)
	}
	return s.upserts, n
}

type staticAuth struct {
	userID, token string
}

func (a staticAuth) Identity(context.Context) (string, string, bool) {
	return a.userID, a.token, a.token != ""
}

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []out.Alert
}

func (r *recordingAlerter) Alert(_ context.Context, _ string, a out.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *recordingAlerter) all() []out.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]out.Alert(nil), r.alerts...)
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []domain.LiveLocation
}

func (p *recordingPublisher) PublishLocation(_ context.Context, loc domain.LiveLocation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, loc)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

type recordingNotifier struct {
	mu          sync.Mutex
	transitions []domain.Transition
}

func (n *recordingNotifier) NotifyPhaseChanged(_ context.Context, _ domain.ActiveDelivery, t domain.Transition) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transitions = append(n.transitions, t)
	return nil
}

func (n *recordingNotifier) all() []domain.Transition {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Transition(nil), n.transitions...)
}

// counter collects positions delivered to a subscriber.
type counter struct {
	mu  sync.Mutex
	got []domain.Position
}

func (c *counter) add(p domain.Position) {
	c.mu.Lock()
	c.got = append(c.got, p)
	c.mu.Unlock()
}

func (c *counter) n() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func waitDone(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("loop goroutine did not exit")
	}
}
