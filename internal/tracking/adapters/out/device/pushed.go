// Package device holds LocationProvider implementations for the tracker process.
package device

import (
	"context"
	"errors"
	"sync"
	"time"

	"brillprime/internal/tracking/domain"
)

// PushedProvider serves positions reported by a browser client over HTTP, the way a
// web page forwards navigator.geolocation readings.
type PushedProvider struct {
	now func() time.Time

	mu         sync.Mutex
	permission domain.PermissionState
	latest     *domain.Position
	receivedAt time.Time
	// closed and replaced on every report
	updated    chan struct{}
}

func NewPushedProvider() *PushedProvider {
	return &PushedProvider{
		now:        time.Now,
		permission: domain.PermissionPrompt,
		updated:    make(chan struct{}),
	}
}

func (p *PushedProvider) SetPermission(state domain.PermissionState) {
	p.mu.Lock()
	p.permission = state
	p.mu.Unlock()
}

// Report records a reading. A report implies the browser granted access.
func (p *PushedProvider) Report(pos domain.Position) error {
	if err := pos.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if pos.Timestamp == 0 {
		pos.Timestamp = p.now().UnixMilli()
	}
	p.latest = &pos
	p.receivedAt = p.now()
	if p.permission == domain.PermissionPrompt {
		p.permission = domain.PermissionGranted
	}
	close(p.updated)
	p.updated = make(chan struct{})
	return nil
}

func (p *PushedProvider) Permission(context.Context) (domain.PermissionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.permission, nil
}

// RequestPermission cannot prompt a remote browser; it reports the current state.
func (p *PushedProvider) RequestPermission(ctx context.Context) (domain.PermissionState, error) {
	return p.Permission(ctx)
}

// CurrentPosition returns the last report when it is younger than opts.MaximumAge,
// otherwise it waits for the next one.
func (p *PushedProvider) CurrentPosition(ctx context.Context, opts domain.PositionOptions) (domain.Position, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	p.mu.Lock()
	if p.permission == domain.PermissionDenied {
		p.mu.Unlock()
		return domain.Position{}, domain.ErrPermissionDenied
	}
	if p.latest != nil && opts.MaximumAge > 0 && p.now().Sub(p.receivedAt) <= opts.MaximumAge {
		pos := *p.latest
		p.mu.Unlock()
		return pos, nil
	}
	wait := p.updated
	p.mu.Unlock()

	select {
	case <-wait:
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.Position{}, domain.ErrPositionTimeout
		}
		return domain.Position{}, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.permission == domain.PermissionDenied {
		return domain.Position{}, domain.ErrPermissionDenied
	}
	return *p.latest, nil
}
