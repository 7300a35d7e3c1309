package inredis

import (
	"context"
	"errors"
	"testing"

	"brillprime/internal/shared/logger"
	"brillprime/internal/tracking/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSource struct {
	locs []domain.LiveLocation
	err  error
}

func (s scriptedSource) SubscribeAll(ctx context.Context, fn func(domain.LiveLocation)) error {
	for _, loc := range s.locs {
		fn(loc)
	}
	if s.err != nil {
		return s.err
	}
	<-ctx.Done()
	return ctx.Err()
}

type forwarded []domain.LiveLocation

func (f *forwarded) Forward(loc domain.LiveLocation) { *f = append(*f, loc) }

func TestStartForwardsUntilCancelled(t *testing.T) {
	src := scriptedSource{locs: []domain.LiveLocation{
		{UserID: "driver-1", Position: domain.Position{Latitude: 1, Longitude: 1}},
		{UserID: "driver-2", Position: domain.Position{Latitude: 2, Longitude: 2}},
	}}
	var fwd forwarded
	s := NewLocationSubscriber(src, &fwd, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()

	require.NoError(t, <-done)
	require.Len(t, fwd, 2)
	assert.Equal(t, "driver-2", fwd[1].UserID)
}

func TestStartReturnsSubscribeFailure(t *testing.T) {
	boom := errors.New("connection refused")
	var fwd forwarded
	s := NewLocationSubscriber(scriptedSource{err: boom}, &fwd, logger.Nop())

	require.ErrorIs(t, s.Start(context.Background()), boom)
	assert.Empty(t, fwd)
}
