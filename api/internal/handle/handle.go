package handle

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"figscan/api/internal/scan"
	"figscan/api/internal/store"
)

// EventLister reads back audit events; implemented by *store.AuditRepo.
type EventLister interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]store.EventRow, error)
}

type Options struct {
	Log            zerolog.Logger
	Audit          EventLister
	RequestTimeout time.Duration
	MaxUploadBytes int64
}

type Handle struct {
	sessions       *scan.Registry
	audit          EventLister
	log            zerolog.Logger
	requestTimeout time.Duration
	maxUpload      int64
}

func New(sessions *scan.Registry, opts Options) *Handle {
	h := &Handle{
		sessions:       sessions,
		audit:          opts.Audit,
		log:            opts.Log,
		requestTimeout: opts.RequestTimeout,
		maxUpload:      opts.MaxUploadBytes,
	}
	if h.requestTimeout <= 0 {
		h.requestTimeout = 180 * time.Second
	}
	if h.maxUpload <= 0 {
		h.maxUpload = 50 << 20
	}
	return h
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// withDeadline applies X-Request-Timeout (seconds) or ?timeoutSec, else the default.
func (h *Handle) withDeadline(r *http.Request) (context.Context, context.CancelFunc) {
	deadline := h.requestTimeout
	if ts := r.Header.Get("X-Request-Timeout"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	} else if ts := r.URL.Query().Get("timeoutSec"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	}
	return context.WithTimeout(r.Context(), deadline)
}
