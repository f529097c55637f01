package handle

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"figscan/api/internal/raster"
	"figscan/api/internal/util"
)

// ScanRequest is the JSON form of a scan upload.
type ScanRequest struct {
	Name     string `json:"name"`
	ImageB64 string `json:"image_b64"`
	Page     int    `json:"page"`
}

// Scan POST /v1/sessions/{sessionID}/scan
//
// Accepts multipart/form-data (file, page) or JSON ScanRequest.
func (h *Handle) Scan(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	src, page, err := readUpload(r, h.maxUpload)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := h.withDeadline(r)
	defer cancel()

	snap, err := s.Scan(ctx, src, page)
	if err != nil {
		h.log.Warn().Err(err).Str("session", s.ID()).Str("file", src.Name).Msg("scan failed")
		if errors.Is(err, raster.ErrUnsupportedFormat) {
			writeError(w, http.StatusUnsupportedMediaType, "unsupported format: upload an image or a PDF")
			return
		}
		writeScanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(snap, wantImages(r)))
}

func readUpload(r *http.Request, maxBytes int64) (raster.Source, int, error) {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.HasPrefix(ct, "multipart/") {
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			return raster.Source{}, 0, err
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			return raster.Source{}, 0, errors.New("missing file field")
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return raster.Source{}, 0, err
		}
		return raster.NewSource(hdr.Filename, data), parsePage(r.FormValue("page")), nil
	}

	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return raster.Source{}, 0, err
		}
		return raster.Source{}, 0, errors.New("bad json: " + err.Error())
	}
	data, mime, err := util.DecodeBase64MaybeDataURL(req.ImageB64)
	if err != nil || len(data) == 0 {
		return raster.Source{}, 0, errors.New("bad image_b64")
	}
	src := raster.NewSource(req.Name, data)
	if src.MIME == "" {
		src.MIME = mime
	}
	page := req.Page
	if page == 0 {
		page = 1
	}
	return src, page, nil
}

// parsePage defaults to page 1; range clamping happens in the rasterizer.
func parsePage(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 1
	}
	return v
}
