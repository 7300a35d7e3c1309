package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"brillprime/internal/shared/config"
	"brillprime/internal/shared/logger"
	"brillprime/internal/tracking/bootstrap"

	"golang.org/x/sync/errgroup"
)

func main() {
	svc := flag.String("service", "api", "tracker|api|all")
	flag.Parse()

	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	var err error
	switch *svc {
	case "tracker":
		err = run(ctx, "tracker-service", cfg, bootstrap.RunTracker)

	case "api":
		err = run(ctx, "tracking-api", cfg, bootstrap.RunAPI)

	case "all":
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return run(gctx, "tracking-api", cfg, bootstrap.RunAPI) })
		g.Go(func() error { return run(gctx, "tracker-service", cfg, bootstrap.RunTracker) })
		err = g.Wait()

	default:
		log := logger.NewLogger("bootstrap")
		log.Fatal(logger.Entry{Action: "invalid_service", Message: *svc})
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
}

func run(ctx context.Context, name string, cfg config.Config, fn func(context.Context, config.Config, *logger.Logger) error) error {
	log, err := logger.NewLoggerWithOptions(name, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_DIR"))
	if err != nil {
		return err
	}
	defer log.Close()

	err = fn(ctx, cfg, log)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error(logger.Entry{
			Action:  "service_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}
	return err
}
