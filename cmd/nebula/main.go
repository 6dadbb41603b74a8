package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/nebulahq/nebula/auth"
	"github.com/nebulahq/nebula/cockroach"
	"github.com/nebulahq/nebula/cockroach/migrator"
	"github.com/nebulahq/nebula/config"
	"github.com/nebulahq/nebula/event"
	"github.com/nebulahq/nebula/id"
	"github.com/nebulahq/nebula/metrics"
	"github.com/nebulahq/nebula/service"
	"github.com/nebulahq/nebula/web"
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

	migrationStart := time.Now()
	infoLogger.Info("starting cockroach migrations")

	if err := migrator.Migrate(context.Background(), dbPool, cockroach.MigrationsFS); err != nil {
		return fmt.Errorf("migrate cockroach schema: %w", err)
	}

	infoLogger.Info("finished cockroach migrations", "took", time.Since(migrationStart))

	natsConn, err := nats.Connect(cfg.NATSURL, nats.Name("nebula-api"))
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}

	defer natsConn.Close()

	m := metrics.New()

	svc := service.New(&service.Config{
		Cockroach:         cockroach.New(dbPool),
		Events:            event.New(natsConn),
		Metrics:           m,
		Origin:            id.Generate(),
		BaseCtx:           context.Background(),
		BackgroundTimeout: cfg.BackgroundTimeout,
	})

	go func() {
		for err := range svc.Errs() {
			errLogger.Error("service error", "error", err)
		}
	}()

	handler := &web.Handler{
		Service:     svc,
		ErrorLogger: errLogger,
		Tokens:      auth.Tokens{Secret: cfg.TokenSecret},
		Metrics:     m,
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	infoLogger.Info("starting nebula server", "url", fmt.Sprintf("http://localhost:%d", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start nebula server: %w", err)
	}

	return svc.Close()
}
