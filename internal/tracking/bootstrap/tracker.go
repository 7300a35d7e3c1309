package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"brillprime/internal/shared/auth"
	"brillprime/internal/shared/config"
	"brillprime/internal/shared/logger"
	"brillprime/internal/shared/utils"
	"brillprime/internal/tracking/adapters/in/transport"
	"brillprime/internal/tracking/adapters/out/authctx"
	"brillprime/internal/tracking/adapters/out/device"
	"brillprime/internal/tracking/adapters/out/messaging"
	"brillprime/internal/tracking/adapters/out/notifier"
	"brillprime/internal/tracking/adapters/out/restapi"
	"brillprime/internal/tracking/application/ports/out"
	"brillprime/internal/tracking/application/usecase"
	"brillprime/internal/tracking/domain"

	"golang.org/x/sync/errgroup"
)

const simulatedConsumerID = "simulated-consumer"

// ErrTrackingStopped is returned when the loop stops on its own, e.g. after
// too many consecutive failures.
var ErrTrackingStopped = errors.New("tracking loop stopped")

// RunTracker runs the device-side tracking loop until ctx ends.
func RunTracker(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	log.Info(logger.Entry{
		Action:     "tracker_service_starting",
		Message:    "initializing tracking loop",
		Additional: map[string]any{"platform": cfg.Tracking.Platform, "store": cfg.Tracking.Store},
	})

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	mqConn, err := openMQ(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer mqConn.Close()

	identity := authctx.NewTokenContext(auth.NewJWTService(cfg.JWT), cfg.Tracking.Token)

	var api out.LocationAPI = restapi.Noop{}
	if cfg.Tracking.RESTEnabled {
		api = restapi.NewClient(cfg.Tracking.RESTBaseURL, nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	var provider out.LocationProvider
	platform := domain.Platform(cfg.Tracking.Platform)
	if platform == domain.PlatformWeb {
		pushed := device.NewPushedProvider()
		provider = pushed
		srv := newServer(cfg.Services.DevicePort, transport.DeviceRouter(transport.NewDeviceHandler(pushed, log), log))
		g.Go(func() error { return serve(gctx, srv, log) })
	} else {
		provider = device.NewSimulatedProvider(waypoints(cfg.Tracking.SimulatedRoute), device.SimulatedOptions{
			SpeedKmh:     cfg.Tracking.SimulatedSpeedKmh,
			JitterMetres: 3,
			Seed:         uint64(time.Now().UnixNano()),
		})
	}

	locations := usecase.NewLocationService(provider, newGeocoder(cfg.Tracking), platform, log)
	loop := usecase.NewTrackingLoop(locations, usecase.TrackingSinks{
		Store:     store,
		Publisher: messaging.NewLocationPublisher(mqConn, log),
		API:       api,
		Auth:      identity,
		Alerter:   notifier.MultiAlerter{messaging.NewAlertPublisher(mqConn)},
	}, usecase.TrackingLoopConfig{
		MinMovementKm:        cfg.Tracking.MinMovementKm,
		MaxConsecutiveErrors: cfg.Tracking.MaxConsecutiveErrors,
		QueueLimit:           cfg.Tracking.QueueLimit,
		PositionTimeout:      cfg.Tracking.PositionTimeout,
	}, log)

	if cfg.Tracking.SimulateDelivery {
		feed := usecase.NewFeedSource()
		loop.OnUpdate(feed.Push)
		tracker := newSimulatedDelivery(cfg, identity, feed, messaging.NewDeliveryEventPublisher(mqConn, log), log)
		g.Go(func() error {
			err := tracker.Run(gctx, cfg.Tracking.Interval)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := loop.Start(gctx, cfg.Tracking.Interval); err != nil {
		cancel()
		_ = g.Wait()
		return fmt.Errorf("start tracking: %w", err)
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
			loop.Stop()
			<-loop.Done()
			return nil
		case <-loop.Done():
			if ctx.Err() != nil {
				return nil
			}
			return ErrTrackingStopped
		}
	})

	err = g.Wait()
	log.Info(logger.Entry{Action: "tracker_service_stopped", Message: "tracking loop stopped"})
	return err
}

// newSimulatedDelivery follows the device's own accepted positions from the
// configured merchant to the configured consumer.
func newSimulatedDelivery(cfg config.Config, identity *authctx.TokenContext, source out.PositionSource, notify out.DeliveryNotifier, log *logger.Logger) *usecase.DeliveryTracker {
	driverID, _, ok := identity.Identity(context.Background())
	if !ok {
		driverID = "anonymous-driver"
	}
	var start domain.Position
	if len(cfg.Tracking.SimulatedRoute) > 0 {
		start = waypoint(cfg.Tracking.SimulatedRoute[0])
	}
	d := domain.NewActiveDelivery(utils.NewUUID(), driverID, simulatedConsumerID,
		waypoint(cfg.Tracking.Merchant), waypoint(cfg.Tracking.Consumer), start, time.Now())

	log.Info(logger.Entry{
		Action:     "simulated_delivery_started",
		Message:    "following own positions",
		DeliveryID: d.ID,
		Additional: map[string]any{"driver_id": driverID},
	})
	return usecase.NewDeliveryTracker(d, source, notify, usecase.DeliveryTrackerOptions{}, log)
}
