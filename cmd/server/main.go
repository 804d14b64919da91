package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kollektiv/internal/bootstrap"
	"kollektiv/internal/config"
	"kollektiv/internal/observability"
	"kollektiv/internal/server"

	"github.com/gofiber/fiber/v2"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	observability.Setup("info")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, rdb, err := bootstrap.InitRuntime(ctx, cfg)
	if err != nil {
		log.Fatalf("runtime init: %v", err)
	}

	srv := server.NewServer(cfg, st, rdb)

	app := fiber.New(fiber.Config{
		AppName:   "kollektiv",
		BodyLimit: 10 * 1024 * 1024,
	})

	srv.SetupMiddleware(app)
	srv.SetupRoutes(app)
	srv.StartRealtime(ctx)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			slog.Error("http shutdown failed", "error", err)
		}
		srv.Shutdown(shutdownCtx)
		cancel()
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
