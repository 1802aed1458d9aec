package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"meshmap/core-go/internal/config"
	"meshmap/core-go/internal/coverage"
	"meshmap/core-go/internal/db"
	"meshmap/core-go/internal/httpapi"
	"meshmap/core-go/internal/metrics"
	"meshmap/core-go/internal/nodedb"
	"meshmap/core-go/internal/refresher"
	"meshmap/core-go/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coverage map HTTP service",
	Long:  "serve polls the configured telemetry database and exposes the render model over HTTP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func serve(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	logger := httpapi.NewLogger(os.Stdout, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	sess := session.New(logger, sessionOptions(cfg), m)

	src, closeSource, err := openSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	var ref httpapi.Refresher
	if src != nil {
		worker := refresher.New(logger, src, sess, refresher.Options{
			PollInterval: cfg.Refresh.Interval,
			FetchTimeout: cfg.Refresh.FetchTimeout,
			MaxBackoff:   cfg.Refresh.MaxBackoff,
		}, m)
		sess.SetTrigger(worker.Trigger)
		go worker.Run(ctx)
		ref = worker
	} else {
		logger.Warn().Msg("no snapshot source configured; set DATABASE_URL or NODEDB_PATH")
	}

	h := httpapi.NewHandler(logger, sess, ref, m)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("meshmap listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server error")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("shutdown complete")
	return nil
}

func sessionOptions(cfg config.Config) session.Options {
	return session.Options{
		Coverage: coverage.Options{
			LegacyEllipse:  cfg.Coverage.LegacyEllipse,
			EllipseSamples: cfg.Coverage.EllipseSamples,
		},
		Style:       cfg.Style,
		WindowHours: cfg.Map.WindowHours,
	}
}

// openSource returns a nil source when none is configured. DatabaseURL wins
// over NodeDBPath.
func openSource(ctx context.Context, cfg config.Config, logger zerolog.Logger) (refresher.Source, func(), error) {
	switch {
	case cfg.Source.DatabaseURL != "":
		pool, err := db.Open(ctx, cfg.Source.DatabaseURL)
		if err != nil {
			logger.Error().Err(err).Msg("failed to connect to database")
			return nil, func() {}, err
		}
		logger.Info().Msg("using postgres snapshot source")
		return db.NewSource(pool.Queries()), pool.Close, nil
	case cfg.Source.NodeDBPath != "":
		store, err := nodedb.Open(ctx, cfg.Source.NodeDBPath, nodedb.Options{ReadOnly: cfg.Source.NodeDBReadOnly})
		if err != nil {
			logger.Error().Err(err).Str("path", cfg.Source.NodeDBPath).Msg("failed to open node database")
			return nil, func() {}, err
		}
		logger.Info().Str("path", cfg.Source.NodeDBPath).Bool("read_only", cfg.Source.NodeDBReadOnly).Msg("using sqlite snapshot source")
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}
