package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clementchew02/Timer/internal/config"
	"github.com/clementchew02/Timer/internal/httpapi"
	"github.com/clementchew02/Timer/internal/lobby"
	"github.com/clementchew02/Timer/internal/logging"
	"github.com/clementchew02/Timer/internal/natsbridge"
	"github.com/clementchew02/Timer/internal/room"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	addr := pflag.String("addr", "", "listen address (overrides config)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	rooms, err := room.New(cfg.RoomIDs(), cfg.DefaultDuration, time.Now())
	if err != nil {
		return fmt.Errorf("build rooms: %w", err)
	}

	opts := []lobby.Option{
		lobby.WithTickInterval(cfg.TickInterval),
		lobby.WithDefaultDuration(cfg.DefaultDuration),
		lobby.WithLogger(logger.Named("lobby")),
	}

	var bridge *natsbridge.Bridge
	if cfg.NATS.URL != "" {
		natsCfg := natsbridge.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.Prefix = cfg.NATS.Prefix
		bridge, err = natsbridge.Connect(natsCfg, logger.Named("nats"))
		if err != nil {
			return err
		}
		opts = append(opts, lobby.WithSink(bridge))
	}

	l := lobby.New(ctx, rooms, opts...)
	if bridge != nil {
		if err := bridge.Subscribe(l); err != nil {
			return multierr.Append(err, bridge.Close())
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.SetupRoutes(l, logger.Named("http"), cfg.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("timer server listening",
			zap.String("addr", cfg.Addr),
			zap.Strings("rooms", cfg.Rooms),
			zap.Duration("default_duration", cfg.DefaultDuration),
			zap.Duration("tick_interval", cfg.TickInterval))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// websocket sessions end once the lobby closes their outboxes
		_ = l.Send(shutdownCtx, lobby.Shutdown{})
		err := srv.Shutdown(shutdownCtx)
		if bridge != nil {
			err = multierr.Append(err, bridge.Close())
		}
		<-l.Done()
		return err
	})
	return g.Wait()
}
