package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"brillprime/internal/shared/config"
	"brillprime/internal/shared/db"
	"brillprime/internal/shared/logger"
	"brillprime/internal/shared/mq"
	"brillprime/internal/tracking/adapters/in/in_amqp"
	"brillprime/internal/tracking/adapters/in/in_redis"
	"brillprime/internal/tracking/adapters/out/geocode"
	"brillprime/internal/tracking/adapters/out/notifier"
	"brillprime/internal/tracking/adapters/out/redisstore"
	"brillprime/internal/tracking/adapters/out/repo"
	"brillprime/internal/tracking/application/ports/out"
	"brillprime/internal/tracking/domain"
)

const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"

	shutdownTimeout = 10 * time.Second
)

// openStore connects the configured real-time store. The returned func releases it.
func openStore(ctx context.Context, cfg config.Config, log *logger.Logger) (out.LiveLocationStore, func(), error) {
	switch cfg.Tracking.Store {
	case StoreRedis:
		rdb, err := redisstore.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		log.Info(logger.Entry{Action: "redis_connected", Message: cfg.Redis.Addr})
		return redisstore.NewLiveLocationStore(rdb, cfg.Redis.LiveTTL), func() { _ = rdb.Close() }, nil

	case StorePostgres, "":
		pool, err := db.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx, pool, log); err != nil {
			db.Close(pool, log)
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return repo.NewLiveLocationPgRepository(pool), func() { db.Close(pool, log) }, nil

	default:
		return nil, nil, fmt.Errorf("unknown tracking store %q", cfg.Tracking.Store)
	}
}

// locationFeed relays positions published by other processes.
type locationFeed interface {
	Start(ctx context.Context) error
}

// newLocationFeed follows Redis pub/sub when the store is Redis (Upsert already
// publishes there) and the AMQP location fanout otherwise.
func newLocationFeed(store out.LiveLocationStore, mqConn *mq.RabbitMQ, relay *notifier.DriverRelay, log *logger.Logger) locationFeed {
	if rs, ok := store.(*redisstore.LiveLocationStore); ok {
		return inredis.NewLocationSubscriber(rs, relay, log)
	}
	return inamqp.NewLocationConsumer(mqConn, relay, log)
}

func openMQ(ctx context.Context, cfg config.Config, log *logger.Logger) (*mq.RabbitMQ, error) {
	conn, err := mq.NewRabbitMQ(ctx, cfg.RabbitMQ, log)
	if err != nil {
		return nil, err
	}
	if err := mq.SetupTopology(ctx, conn, log); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// newGeocoder returns nil when no geocoder URL is configured.
func newGeocoder(cfg config.TrackingConfig) out.ReverseGeocoder {
	if cfg.GeocoderURL == "" {
		return nil
	}
	return geocode.NewNominatimClient(cfg.GeocoderURL, cfg.GeocoderUserAgent, nil)
}

func waypoints(wps []config.Waypoint) []domain.Position {
	route := make([]domain.Position, 0, len(wps))
	for _, wp := range wps {
		route = append(route, domain.Position{Latitude: wp.Lat, Longitude: wp.Lon})
	}
	return route
}

func waypoint(wp config.Waypoint) domain.Position {
	return domain.Position{Latitude: wp.Lat, Longitude: wp.Lon}
}

func newServer(port int, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// serve runs srv until ctx ends, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, log *logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info(logger.Entry{Action: "http_server_starting", Message: "listening on " + srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown %s: %w", srv.Addr, err)
	}
	log.Info(logger.Entry{Action: "http_server_stopped", Message: srv.Addr})
	return nil
}
