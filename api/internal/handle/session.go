package handle

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"figscan/api/internal/scan"
	"figscan/api/internal/util"
)

type itemResponse struct {
	scan.ItemView
	Empty bool   `json:"empty"`
	Image string `json:"image,omitempty"`
}

type sessionResponse struct {
	scan.Snapshot
	PageImage string         `json:"page_image,omitempty"`
	Items     []itemResponse `json:"items"`
}

// newSessionResponse renders a snapshot; images are data URLs unless withImages is false.
func newSessionResponse(snap scan.Snapshot, withImages bool) sessionResponse {
	out := sessionResponse{Snapshot: snap, Items: make([]itemResponse, 0, len(snap.Items))}
	if withImages && len(snap.PageJPEG) > 0 {
		out.PageImage = util.MakeDataURL("image/jpeg", snap.PageJPEG)
	}
	for _, it := range snap.Items {
		ir := itemResponse{ItemView: it, Empty: it.Empty()}
		if withImages && !it.Empty() {
			ir.Image = util.MakeDataURL("image/jpeg", it.Image)
		}
		out.Items = append(out.Items, ir)
	}
	return out
}

func wantImages(r *http.Request) bool {
	v := r.URL.Query().Get("images")
	return v != "0" && v != "false"
}

func (h *Handle) session(w http.ResponseWriter, r *http.Request) (*scan.Session, bool) {
	s, ok := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
	}
	return s, ok
}

// CreateSession POST /v1/sessions
func (h *Handle) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	h.log.Debug().Str("session", s.ID()).Msg("session created")
	writeJSON(w, http.StatusCreated, newSessionResponse(s.Snapshot(), false))
}

// GetSession GET /v1/sessions/{sessionID}
func (h *Handle) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(s.Snapshot(), wantImages(r)))
}

// ResetSession POST /v1/sessions/{sessionID}/reset
func (h *Handle) ResetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Reset()
	writeJSON(w, http.StatusOK, newSessionResponse(s.Snapshot(), false))
}

// DeleteSession DELETE /v1/sessions/{sessionID}
func (h *Handle) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Delete(chi.URLParam(r, "sessionID")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Explain POST /v1/sessions/{sessionID}/items/{itemID}/explain
func (h *Handle) Explain(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	itemID := chi.URLParam(r, "itemID")
	item, err := s.Item(itemID)
	if err != nil {
		writeScanError(w, err)
		return
	}

	ctx, cancel := h.withDeadline(r)
	defer cancel()

	txt, err := s.Explain(ctx, itemID)
	if err != nil {
		writeScanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"item_id":     itemID,
		"label":       item.Label,
		"explanation": txt,
	})
}

const defaultEventLimit = 200

// Events GET /v1/sessions/{sessionID}/events?limit=N
func (h *Handle) Events(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusNotFound, "audit log disabled")
		return
	}
	limit := defaultEventLimit
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		limit = n
	}
	rows, err := h.audit.Recent(r.Context(), chi.URLParam(r, "sessionID"), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("audit read failed")
		writeError(w, http.StatusInternalServerError, "audit read failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": rows})
}

func writeScanError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scan.ErrItemNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, scan.ErrNotReady), errors.Is(err, scan.ErrStaleScan):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, scan.ErrScanFailed):
		writeError(w, http.StatusUnprocessableEntity, scan.ErrScanFailed.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
