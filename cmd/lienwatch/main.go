// Command lienwatch runs the lien discovery service: the scheduled
// pipeline, the HTTP API, and optionally MCP tools over stdio.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/lienwatch/lienwatch/acquire"
	"github.com/lienwatch/lienwatch/api"
	"github.com/lienwatch/lienwatch/audit"
	"github.com/lienwatch/lienwatch/dbopen"
	"github.com/lienwatch/lienwatch/extract"
	"github.com/lienwatch/lienwatch/pipeline"
	"github.com/lienwatch/lienwatch/registry"
	"github.com/lienwatch/lienwatch/schedule"
	"github.com/lienwatch/lienwatch/store"
	"github.com/lienwatch/lienwatch/syncgw"
)

func main() {
	cfg, err := LoadConfig(env("CONFIG", ""))
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	// Logging.
	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Database.
	db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("open db", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := store.ApplySchema(db); err != nil {
		slog.Error("apply schema", "error", err)
		os.Exit(1)
	}
	st := store.NewSQLite(db, logger)

	// Source registry, seeded with the default portal on first boot.
	reg, err := registry.New(db, logger)
	if err != nil {
		slog.Error("registry", "error", err)
		os.Exit(1)
	}
	if err := reg.Seed(ctx); err != nil {
		slog.Error("seed registry", "error", err)
		os.Exit(1)
	}

	// Audit trail.
	auditLog := audit.New(st, 64, logger)
	defer auditLog.Close()

	// Acquisition: managed Chrome for render sources, plain HTTP for the
	// rest. The fetcher is shared; rendered sources still download
	// documents over HTTP.
	browser := acquire.NewBrowserManager(acquire.BrowserConfig{
		RemoteURL:       cfg.Browser.Remote,
		RecycleInterval: cfg.Browser.RecycleInterval,
		Logger:          logger,
	})
	defer browser.Close()

	fetcher := acquire.NewFetcher(acquire.FetcherConfig{
		Timeout:   cfg.Fetch.Timeout,
		UserAgent: cfg.Fetch.UserAgent,
		Logger:    logger,
	})
	dispatcher := acquire.NewDispatcher(
		acquire.NewRenderAcquirer(browser, fetcher, logger),
		acquire.NewDirectAcquirer(fetcher, logger),
	)

	// Extraction, with the OCR tier only when a service is configured.
	var ocr *extract.OCRClient
	if cfg.OCR.URL != "" {
		ocr = extract.NewOCRClient(cfg.OCR.URL, cfg.OCR.Timeout)
	} else {
		slog.Warn("no OCR service configured, scanned documents will be skipped")
	}
	extractor := extract.New(ocr, logger)

	// Sync gateway.
	gw := syncgw.New(syncgw.Config{
		BaseURL: cfg.Sync.URL,
		APIKey:  cfg.Sync.APIKey,
		Timeout: cfg.Sync.Timeout,
		Logger:  logger,
	}, st)

	// Pipeline.
	pl := pipeline.New(pipeline.Config{
		ThresholdCents: cfg.ThresholdCents,
		Logger:         logger,
	}, reg, pipeline.NewAcquirer(dispatcher), extractor, gw, st, auditLog)

	// Daily schedule.
	sched, err := schedule.NewRunner(cfg.Schedule, func(ctx context.Context) {
		if _, err := pl.Trigger(ctx, store.RunScheduled, "", ""); err != nil {
			slog.Error("scheduled run", "error", err)
		}
	}, logger)
	if err != nil {
		slog.Error("schedule", "error", err)
		os.Exit(1)
	}
	go sched.Start(ctx)

	srv := api.NewServer(pl, reg, st, gw, sched, logger)

	// Optional MCP over stdio. The JSON log handler writes to stdout, so
	// stdio MCP redirects logs to stderr to keep the protocol stream clean.
	if env("MCP_TRANSPORT", "") == "stdio" {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
		slog.SetDefault(logger)

		mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "lienwatch", Version: "1.0.0"}, nil)
		srv.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("mcp stdio", "error", err)
			}
		}()
	}

	// HTTP server.
	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	// Let the active run observe the stop flag, then wait it out.
	pl.Stop()
	pl.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
