package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"figscan/api/internal/config"
	"figscan/api/internal/handle"
	"figscan/api/internal/httpserver"
	"figscan/api/internal/observability"
	"figscan/api/internal/raster"
	"figscan/api/internal/scan"
	"figscan/api/internal/store"
	"figscan/api/internal/vision/gemini"
)

func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.LogLevel, cfg.LogFormat, "figscan-api", nil)

	if err := cfg.Require("GEMINI_API_KEY"); err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		db    *sql.DB
		audit *store.AuditRepo
	)
	recorders := scan.MultiRecorder{scan.LogRecorder{Log: log}}
	if cfg.DatabaseURL != "" {
		var err error
		db, err = store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("database")
		}
		defer db.Close()
		audit = store.NewAuditRepo(db, log)
		if err := audit.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("audit schema")
		}
		recorders = append(recorders, audit)
		log.Info().Msg("scan audit log enabled")
	}

	engine := gemini.New(cfg.GeminiAPIKey, cfg.GeminiDetectModel, cfg.GeminiExplainModel)
	rasterizer := raster.New(raster.FitzRenderer{})
	sessions := scan.NewRegistry(func(id string) *scan.Session {
		return scan.NewSession(rasterizer, engine, scan.Options{ID: id, Recorder: recorders, Logger: log})
	})

	opts := handle.Options{
		Log:            log,
		RequestTimeout: cfg.RequestTimeout,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}
	if audit != nil {
		opts.Audit = audit
	}
	h := handle.New(sessions, opts)

	router := httpserver.NewRouter(log, dbHealth(db), httpserver.MountAPI(h))
	if err := httpserver.Serve(ctx, ":"+cfg.Port, router, log); err != nil {
		log.Fatal().Err(err).Msg("http server")
	}
}

func dbHealth(db *sql.DB) httpserver.HealthFunc {
	if db == nil {
		return nil
	}
	return func(ctx context.Context) error { return db.PingContext(ctx) }
}

