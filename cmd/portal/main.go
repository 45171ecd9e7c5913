package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"games_portal/internal/clients/pocketbase"
	"games_portal/internal/config"
	"games_portal/internal/routes"
	"games_portal/internal/views"
)

const (
	envLocal = "local"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("starting portal", slog.String("env", cfg.Env))

	pb, err := pocketbase.New(log, cfg.Collaborator.URL, cfg.Collaborator.Timeout)
	if err != nil {
		log.Error("failed to create collaborator client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// an unreachable collaborator is not fatal, pages show the failure instead
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Collaborator.Timeout)
	if err := pb.Health(ctx); err != nil {
		log.Warn("collaborator is not reachable",
			slog.String("url", pb.BaseURL()),
			slog.String("error", err.Error()))
	} else {
		log.Info("collaborator reachable", slog.String("url", pb.BaseURL()))
	}
	cancel()

	renderer, err := views.NewRenderer()
	if err != nil {
		log.Error("failed to parse templates", slog.String("error", err.Error()))
		os.Exit(1)
	}

	r := routes.SetupRouter(log, cfg, pb, renderer)

	log.Info("routes init")

	server := &http.Server{
		Addr:    cfg.Address,
		Handler: r,
		// uploads can be slow, so the read side gets room for a full screenshot
		ReadTimeout:  cfg.Timeout * 3,
		WriteTimeout: cfg.Timeout * 3,
		IdleTimeout:  cfg.IdleTimeout,
	}

	serverErrors := make(chan error, 1)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("starting server", slog.String("address", cfg.Address))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		log.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)

	case sig := <-shutdown:
		log.Info("shutting down", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown error", slog.String("error", err.Error()))
			if err := server.Close(); err != nil {
				log.Error("force shutdown error", slog.String("error", err.Error()))
			}
		}
	}

	log.Info("server stopped")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
