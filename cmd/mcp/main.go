// Command mcp serves the vidlens tools over the Model Context Protocol on
// stdin and stdout.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kiranshivaraju/vidlens/internal/app"
	"github.com/kiranshivaraju/vidlens/internal/config"
	"github.com/kiranshivaraju/vidlens/internal/mcptools"
	"github.com/mark3labs/mcp-go/server"
)

const (
	version         = "1.0.0"
	shutdownTimeout = 30 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	// stdout carries the protocol, so logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdin, os.Stdout); err != nil {
		slog.Error("mcp server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, in io.Reader, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// The API server owns restart recovery; this process only adds jobs.
	a, err := app.Build(ctx, cfg, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	s := mcptools.NewServer(a.Jobs, version, mcptools.Options{})
	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelError))

	slog.Info("mcp server listening on stdio", "version", version)
	err = stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("serve stdio: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		slog.Warn("background jobs did not finish before exit", "error", err)
	}
	slog.Info("mcp server stopped")
	return nil
}
