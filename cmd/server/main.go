package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jupyterhub/hubevents/internal/api"
	"github.com/jupyterhub/hubevents/internal/config"
	"github.com/jupyterhub/hubevents/internal/event"
	"github.com/jupyterhub/hubevents/internal/telemetry"
)

func main() {
	cfgPath := flag.String("config", "configs/hubevents.yaml", "Path to YAML config")
	addr := flag.String("addr", "", "HTTP listen address (overrides server.addr)")
	flag.Parse()

	// Until the config says where events go, keep stdout clear of log lines.
	setLogger(os.Stderr)

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	setLogger(logOutput(cfg.EventLog.Output))

	// ── Event log ─────────────────────────────────────────────────────────────
	out, closeOut, err := openOutput(cfg.EventLog.Output)
	if err != nil {
		slog.Error("failed to open event log output", "output", cfg.EventLog.Output, "err", err)
		os.Exit(1)
	}
	defer closeOut()

	eventLog, err := newEventLog(cfg.EventLog, out)
	if err != nil {
		slog.Error("failed to create event log", "err", err)
		os.Exit(1)
	}
	slog.Info("event log ready",
		"output", cfg.EventLog.Output,
		"format", cfg.EventLog.Format,
		"allowed_schemas", cfg.EventLog.AllowedSchemas,
	)

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.Config) {
		eventLog.SetAllowed(newCfg.EventLog.AllowedSchemas)
		slog.Info("allowed schemas reloaded", "allowed_schemas", newCfg.EventLog.AllowedSchemas)
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.New(eventLog, eventLog, loader),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	slog.Info("goodbye")
}

func setLogger(w io.Writer) {
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

// logOutput picks the log destination so it never shares a stream with the event log.
func logOutput(eventOutput string) io.Writer {
	if eventOutput == "-" {
		return os.Stderr
	}
	return os.Stdout
}

// newEventLog builds the event log and registers every known schema.
func newEventLog(conf config.EventLogConf, out io.Writer) (*telemetry.EventLog, error) {
	l, err := telemetry.NewEventLog(out, telemetry.Format(conf.Format), conf.AllowedSchemas)
	if err != nil {
		return nil, err
	}
	if err := l.RegisterSchema(event.Schema()); err != nil {
		return nil, fmt.Errorf("register %s: %w", event.SchemaID, err)
	}
	return l, nil
}

// openOutput returns the event log destination. "-" means stdout.
func openOutput(path string) (io.Writer, func(), error) {
	if path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}
