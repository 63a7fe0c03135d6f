package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"merchant_go/internal/app"
)

func main() {
	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Rate poller + reconciliation scheduler
	if err := bootstrap.Start(ctx); err != nil {
		slog.Error("❌ Startup failed", slog.Any("error", err))
		os.Exit(1)
	}

	// 4. REST server owns the listener; its error ends the process
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- bootstrap.Server.Run()
	}()

	slog.InfoContext(ctx, "✨ Merchant order watcher fully operational. Press Ctrl+C to exit.")

	select {
	case <-ctx.Done():
		slog.InfoContext(ctx, "👋 Shutting down gracefully...")
	case err := <-serverErr:
		if err != nil {
			slog.Error("REST server failed", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	bootstrap.Shutdown(shutdownCtx)
}
