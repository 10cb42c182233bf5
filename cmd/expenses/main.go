package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"expenses/internal/amqp"
	"expenses/internal/config"
	"expenses/internal/core"
	"expenses/internal/gateway"
	apphttp "expenses/internal/http"
	"expenses/internal/log"
	"expenses/internal/session"
	"expenses/internal/tracker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", log.FieldError, err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw, err := gateway.New(cfg.APIURL,
		gateway.WithTimeout(cfg.GatewayTimeout),
		gateway.WithLogger(logger))
	if err != nil {
		return err
	}

	opts := []tracker.Option{tracker.WithLogger(logger)}
	var feed *amqp.Client
	if cfg.AMQPURL != "" {
		feed = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
		defer feed.Close()
		opts = append(opts, tracker.WithNotifier(feed))
	}

	signer, err := session.NewSigner(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return err
	}
	if cfg.SessionSecret == "" {
		logger.Warn("SESSION_SECRET not set, sessions will not survive a restart")
	}

	store := session.NewStore(cfg.MaxSessions, cfg.SessionTTL)
	store.StartCleanup(time.Minute, func(n int) {
		logger.Debug("Expired sessions removed", log.FieldCount, n)
	})
	defer store.Stop()

	sessions := session.NewManager(store, signer, cfg.SessionTTL, func() *tracker.Controller {
		return tracker.New(gw, opts...)
	}, logger)

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:          ":" + cfg.Port,
		Sessions:      sessions,
		Currency:      core.NewCurrency(cfg.Currency),
		PostRateLimit: cfg.PostRateLimit,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if feed != nil {
		g.Go(func() error {
			feed.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		logger.Info("Starting expense tracker",
			"port", cfg.Port, log.FieldURL, gw.BaseURL(), "amqp", cfg.AMQPURL != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
