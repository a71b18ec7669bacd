package main

import (
	"context"
	"errors"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"gamecatalog/auth"
	"gamecatalog/catalog"
	"gamecatalog/config"
	httpserver "gamecatalog/http"
	"gamecatalog/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("addr", cfg.ServerAddr), slog.String("database_url", cfg.DatabaseURL))

	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database initialized")

	checker, err := auth.NewChecker(cfg.Username, cfg.Password, 0)
	if err != nil {
		return err
	}

	svc := catalog.NewService(db)
	server := httpserver.NewServer(svc, checker, httpserver.Options{
		WriteRatePerMinute: cfg.WriteRatePerMinute,
		WriteBurst:         cfg.WriteBurst,
		Logger:             logger,
	})
	defer server.Close()
	srv := server.GetHTTPServer(cfg.ServerAddr)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced to shutdown", slog.Any("error", err))
	}

	logger.Info("server stopped")
	return nil
}
