package bootstrap

import (
	"context"
	"time"

	"brillprime/internal/shared/auth"
	"brillprime/internal/shared/cache"
	"brillprime/internal/shared/config"
	"brillprime/internal/shared/logger"
	"brillprime/internal/shared/ws"
	"brillprime/internal/tracking/adapters/in/in_ws"
	"brillprime/internal/tracking/adapters/in/transport"
	"brillprime/internal/tracking/adapters/out/messaging"
	"brillprime/internal/tracking/adapters/out/notifier"
	"brillprime/internal/tracking/application/usecase"
	"brillprime/internal/tracking/domain"

	"golang.org/x/sync/errgroup"
)

const cacheSweepInterval = time.Minute

// RunAPI serves the tracking API, the WebSocket hub and the location feed that
// relays broadcast positions to ws subscribers.
func RunAPI(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	log.Info(logger.Entry{Action: "api_service_starting", Message: "initializing tracking api"})

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

	jwtService := auth.NewJWTService(cfg.JWT)
	hub := ws.NewHub(jwtService.ExtractUserID, log)
	hub.SetAllowedOrigins(cfg.Services.WSAllowedOrigins)

	liveCache := cache.NewTTL[domain.Position](cfg.Tracking.CacheTTL)
	live := usecase.NewLiveLocationService(store, liveCache, log)
	update := usecase.NewUpdateLiveLocation(store, messaging.NewLocationPublisher(mqConn, log), live, log)

	deliveries := usecase.NewDeliveryRegistry(ctx, usecase.DeliveryRegistryConfig{
		Interval: cfg.Tracking.Interval,
	}, live, notifier.MultiNotifier{
		notifier.NewDeliveryNotifier(hub, log),
		messaging.NewDeliveryEventPublisher(mqConn, log),
	}, log)
	defer deliveries.Close()

	handler := transport.NewHandler(transport.Services{
		UpdateLocation: update,
		Live:           live,
		History:        live,
		Deliveries:     deliveries,
		Routes:         usecase.NewRouteOptimizer(log),
		Addresser:      usecase.NewAddressResolver(newGeocoder(cfg.Tracking), log),
	}, log)
	limiter := transport.NewRateLimiter(cfg.Tracking.RateLimitRPS, cfg.Tracking.RateLimitBurst)
	router := transport.NewRouter(handler, jwtService, limiter, hub.ServeWS, log)

	hub.SetMessageHandler(in_ws.NewSubscriptionHandler(hub, live, deliveries, log).Handle)
	feed := newLocationFeed(store, mqConn, notifier.NewDriverRelay(hub, live, log), log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return feed.Start(gctx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(cacheSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				liveCache.Sweep(10 * cfg.Tracking.CacheTTL)
			}
		}
	})
	g.Go(func() error {
		return serve(gctx, newServer(cfg.Services.APIPort, router), log)
	})

	err = g.Wait()
	log.Info(logger.Entry{Action: "api_service_stopped", Message: "tracking api stopped"})
	return err
}
