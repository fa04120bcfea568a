package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"DocChat/internal/chatclient"
	"DocChat/internal/config"
	"DocChat/internal/docqa"
	"DocChat/internal/repl"
	"DocChat/internal/telemetry"
	"DocChat/internal/tui"
	"DocChat/internal/watch"
	"DocChat/internal/web"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; the environment always wins over defaults.
	dotenvErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flag.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Document QA service base URL")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout (0 disables)")
	flag.StringVar(&cfg.UI, "ui", cfg.UI, "Front-end (tui|repl|web)")
	flag.StringVar(&cfg.WebAddr, "addr", cfg.WebAddr, "Listen address for -ui web")
	flag.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Directory for logs, traces and metrics")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	flag.StringVar(&cfg.File, "file", "", "Select this document at startup")
	flag.BoolVar(&cfg.Watch, "watch", false, "Upload -file now and again whenever it changes")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, logCloser, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logCloser.Close()

	if dotenvErr != nil && !os.IsNotExist(dotenvErr) {
		logger.Warn("failed to load .env file", "error", dotenvErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer cleanup()

	qa, err := docqa.NewClient(cfg, logger, tracer, meter)
	if err != nil {
		return fmt.Errorf("failed to initialize docqa client: %w", err)
	}

	logger.Info("starting", "ui", cfg.UI, "server", cfg.ServerURL, "timeout", cfg.Timeout)

	if cfg.UI == config.UIWeb {
		return web.NewServer(qa, logger).Run(ctx, cfg.WebAddr)
	}

	client := chatclient.New(qa, logger)
	if cfg.File != "" {
		if _, err := client.SelectFile(cfg.File); err != nil {
			return err
		}
	}
	if cfg.Watch {
		stopWatch, err := startWatch(ctx, client, logger)
		if err != nil {
			return err
		}
		defer stopWatch()
	}

	switch cfg.UI {
	case config.UIRepl:
		return repl.New(client, os.Stdin, os.Stdout, logger).Run(ctx)
	default:
		return tui.Run(ctx, client, logger)
	}
}

// startWatch uploads the startup document once, then follows it.
func startWatch(ctx context.Context, client *chatclient.ChatClient, logger *slog.Logger) (func(), error) {
	doc, _ := client.File()
	if err := client.Upload(ctx); err != nil {
		return nil, err
	}
	return watch.Follow(ctx, doc.Path, client, chatclient.ErrBusy, logger)
}
