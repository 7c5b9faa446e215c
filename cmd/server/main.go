package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gookit/color"

	"github.com/Tyrowin/gochat-relay/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires configuration, logging, the hub and the HTTP server, then blocks
// until the server fails or the process is interrupted.
func run() error {
	cfg, err := server.LoadConfig()
	if err != nil {
		return err
	}
	logger := server.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := server.NewHub(cfg, logger)
	httpServer := server.CreateServer(cfg.Addr(), server.NewRouter(hub))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer)
	}()

	color.Green.Printf("GoChat relay listening on ws://%s/ws\n", cfg.Addr())
	color.Cyan.Println("Press Ctrl+C to stop")

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout); err != nil {
		logger.Error("HTTP server did not stop cleanly", slog.Any("error", err))
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Warn("hub did not stop cleanly", slog.Any("error", err))
	}
	color.Yellow.Println("Server stopped")
	return nil
}
