package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"figscan/api/internal/config"
	"figscan/api/internal/httpserver"
	"figscan/api/internal/observability"
	"figscan/api/internal/raster"
	"figscan/api/internal/scan"
	"figscan/api/internal/store"
	"figscan/api/internal/telegram"
	"figscan/api/internal/vision/gemini"
)

func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.LogLevel, cfg.LogFormat, "figscan-bot", nil)

	if err := cfg.Require("GEMINI_API_KEY", "TELEGRAM_BOT_TOKEN"); err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Postgres (optional audit log) ---
	var db *sql.DB
	recorders := scan.MultiRecorder{scan.LogRecorder{Log: log}}
	if cfg.DatabaseURL != "" {
		var err error
		db, err = store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("database")
		}
		defer db.Close()
		log.Info().Str("db", safeDSNSummary(cfg.DatabaseURL)).Msg("db connected")

		audit := store.NewAuditRepo(db, log)
		if err := audit.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("audit schema")
		}
		recorders = append(recorders, audit)
	}

	// --- Telegram bot ---
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("telegram")
	}
	bot.Debug = false

	engine := gemini.New(cfg.GeminiAPIKey, cfg.GeminiDetectModel, cfg.GeminiExplainModel)
	rasterizer := raster.New(raster.FitzRenderer{})
	r := &telegram.Router{
		Bot: bot,
		Sessions: scan.NewRegistry(func(id string) *scan.Session {
			return scan.NewSession(rasterizer, engine, scan.Options{ID: id, Recorder: recorders, Logger: log})
		}),
		Log:            log,
		Timeout:        cfg.RequestTimeout,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	addr := "0.0.0.0:" + cfg.Port
	health := func(ctx context.Context) error {
		if db == nil {
			return nil
		}
		return db.PingContext(ctx)
	}

	// --- Choose mode: Webhook vs Polling ---
	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		err = runWebhookMode(ctx, addr, bot, r, webhookURL, health, log)
	} else {
		err = runPollingMode(ctx, addr, bot, r, health, log)
	}
	r.Wait()
	if err != nil {
		log.Fatal().Err(err).Msg("bot stopped")
	}
}

// ---------------- Modes -----------------

func runWebhookMode(ctx context.Context, addr string, bot *tgbotapi.BotAPI, r *telegram.Router, baseURL string, health httpserver.HealthFunc, log zerolog.Logger) error {
	// secret webhook path
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		return err
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		return err
	}

	router := httpserver.NewRouter(log, health, func(mux chi.Router) {
		mux.Post(path, func(w http.ResponseWriter, req *http.Request) {
			upd, err := bot.HandleUpdate(req)
			if err != nil {
				log.Warn().Err(err).Msg("webhook: bad update")
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			r.HandleUpdate(*upd)
			w.WriteHeader(http.StatusOK)
		})
	})

	log.Info().Str("addr", addr).Msg("webhook mode")
	return httpserver.Serve(ctx, addr, router, log)
}

func runPollingMode(ctx context.Context, addr string, bot *tgbotapi.BotAPI, r *telegram.Router, health httpserver.HealthFunc, log zerolog.Logger) error {
	// healthz is served in polling mode too
	go func() {
		if err := httpserver.Serve(ctx, addr, httpserver.NewRouter(log, health, nil), log); err != nil {
			log.Error().Err(err).Msg("health server")
		}
	}()

	log.Info().Msg("polling mode")
	runPolling(ctx, bot, r.HandleUpdate, log)
	return nil
}

// ---------------- Polling loop -----------------

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 from Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return 2 * time.Second
		}
	}
	return 1 * time.Second
}

func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, handle func(tgbotapi.Update), log zerolog.Logger) {
	offset := 0
	baseDelay := 1 * time.Second
	maxDelay := 15 * time.Second

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("polling: context cancelled")
			return
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30 // long polling timeout (sec)

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelayFromError(err), baseDelay), maxDelay)
			log.Warn().Err(err).Dur("retry_in", d).Msg("polling error")
			sleep(ctx, d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 {
			sleep(ctx, 200*time.Millisecond)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// ---------------- Helpers -----------------

func shortHash(s string) string {
	// FNV-1a; stable per token, not a secret by itself
	h := uint64(1469598103934665603)
	const prime = 1099511628211
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		out[i] = hexdigits[h&0xF]
		h >>= 4
	}
	return string(out)
}

func safeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	user := u.User.Username()
	host := u.Host
	port := ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, user)
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, user)
}
