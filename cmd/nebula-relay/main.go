package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/nebulahq/nebula/auth"
	"github.com/nebulahq/nebula/cockroach"
	"github.com/nebulahq/nebula/config"
	"github.com/nebulahq/nebula/event"
	"github.com/nebulahq/nebula/id"
	"github.com/nebulahq/nebula/metrics"
	"github.com/nebulahq/nebula/relay"
	"github.com/nebulahq/nebula/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	errLogger := slog.New(charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
	}))
	infoLogger := slog.New(charmlog.NewWithOptions(os.Stdout, charmlog.Options{
		ReportTimestamp: true,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbPool, err := pgxpool.New(context.Background(), cfg.CockroachURL)
	if err != nil {
		return fmt.Errorf("open cockroach connection pool: %w", err)
	}

	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		return fmt.Errorf("ping cockroach: %w", err)
	}

	natsConn, err := nats.Connect(cfg.NATSURL, nats.Name("nebula-relay"))
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}

	defer natsConn.Close()

	m := metrics.New()
	bus := event.New(natsConn)

	// The relay writes messages through the same service layer as the API,
	// so its Origin must be shared with the service to dedup bus events.
	origin := id.Generate()

	svc := service.New(&service.Config{
		Cockroach:         cockroach.New(dbPool),
		Events:            bus,
		Metrics:           m,
		Origin:            origin,
		BaseCtx:           context.Background(),
		BackgroundTimeout: cfg.BackgroundTimeout,
	})

	go func() {
		for err := range svc.Errs() {
			errLogger.Error("service error", "error", err)
		}
	}()

	rly := relay.New(&relay.Config{
		Service:              svc,
		Events:               bus,
		Tokens:               auth.Tokens{Secret: cfg.TokenSecret},
		Logger:               errLogger,
		Metrics:              m,
		Origin:               origin,
		AllowUnauthenticated: cfg.RelayAllowUnauthenticated,
		AllowedOrigins:       cfg.AllowedOriginsList(),
		HandlerTimeout:       cfg.BackgroundTimeout,
	})

	unsubscribe, err := rly.Subscribe()
	if err != nil {
		return fmt.Errorf("subscribe to message events: %w", err)
	}

	defer func() {
		if err := unsubscribe(); err != nil {
			errLogger.Error("unsubscribe from message events", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/ws", rly)
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.RelayPort),
		Handler: mux,
	}

	infoLogger.Info("starting nebula relay", "url", fmt.Sprintf("ws://localhost:%d/ws", cfg.RelayPort))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start nebula relay: %w", err)
	}

	return svc.Close()
}
