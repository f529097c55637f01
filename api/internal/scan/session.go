// Package scan sequences rasterization, element detection and region
// extraction for one uploaded page, and serves on-demand explanations.
package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"figscan/api/internal/raster"
	"figscan/api/internal/vision"
)

type State int

const (
	Idle State = iota
	Scanning
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Ready:
		return "ready"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Rasterizer is satisfied by *raster.Rasterizer.
type Rasterizer interface {
	Rasterize(ctx context.Context, src raster.Source, pageIndex int) (*raster.Page, error)
}

type Options struct {
	ID       string
	Recorder Recorder
	Logger   zerolog.Logger
	// NewItemID overrides item id generation.
	NewItemID func() string
}

// Session holds at most one scanned page and its items. Every Scan and Reset
// advances the generation; results from an older generation are dropped.
type Session struct {
	id         string
	rasterizer Rasterizer
	detector   *Detector
	extractor  *Extractor
	explainer  *Explainer
	rec        Recorder
	log        zerolog.Logger

	mu           sync.Mutex
	state        State
	gen          uint64
	page         *raster.Page
	pageJPEG     []byte
	items        []Item
	explanations map[string]string
}

func NewSession(r Rasterizer, engine vision.Engine, opts Options) *Session {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	rec := opts.Recorder
	if rec == nil {
		rec = NopRecorder{}
	}
	x := NewExtractor()
	if opts.NewItemID != nil {
		x.NewID = opts.NewItemID
	}
	return &Session{
		id:           id,
		rasterizer:   r,
		detector:     NewDetector(engine),
		extractor:    x,
		explainer:    NewExplainer(engine),
		rec:          rec,
		log:          opts.Logger.With().Str("session", id).Logger(),
		explanations: map[string]string{},
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Scan runs rasterize → detect → extract for one page. Rasterization and
// extraction errors abort with ErrScanFailed; detection failures yield zero
// items. If Reset or another Scan happens meanwhile, the result is dropped and
// ErrStaleScan returned.
func (s *Session) Scan(ctx context.Context, src raster.Source, pageIndex int) (Snapshot, error) {
	s.mu.Lock()
	s.gen++
	g := s.gen
	s.state = Scanning
	s.clearLocked()
	s.mu.Unlock()

	log := s.log.With().Uint64("generation", g).Logger()
	log.Debug().Str("file", src.Name).Int("page", pageIndex).Msg("scan started")

	start := time.Now()
	page, err := s.rasterizer.Rasterize(ctx, src, pageIndex)
	s.record(ctx, g, StageRasterize, boolCount(err == nil), start, err)
	if err != nil {
		return Snapshot{}, s.abort(g, err)
	}
	pageJPEG, err := page.JPEG()
	if err != nil {
		return Snapshot{}, s.abort(g, err)
	}
	if s.stale(g) {
		return Snapshot{}, s.discard(ctx, g, StageRasterize)
	}

	start = time.Now()
	outcome := s.detector.Run(ctx, pageJPEG)
	s.record(ctx, g, StageDetect, len(outcome.Detections), start, outcome.Err)
	if outcome.Failed() {
		log.Warn().Err(outcome.Err).Msg("detection failed; continuing with no elements")
	}
	if s.stale(g) {
		return Snapshot{}, s.discard(ctx, g, StageDetect)
	}

	start = time.Now()
	items, err := s.extractor.ExtractAll(page, outcome.Detections)
	s.record(ctx, g, StageExtract, len(items), start, err)
	if err != nil {
		return Snapshot{}, s.abort(g, err)
	}

	s.mu.Lock()
	if s.gen != g {
		s.mu.Unlock()
		return Snapshot{}, s.discard(ctx, g, StageExtract)
	}
	s.state = Ready
	s.page = page
	s.pageJPEG = pageJPEG
	s.items = items
	snap := s.snapshotLocked()
	s.mu.Unlock()

	log.Info().Int("page", page.Index).Int("items", len(items)).Msg("scan ready")
	return snap, nil
}

// Reset drops the page and items and returns to Idle. In-flight calls are not
// interrupted; their results are discarded when they return.
func (s *Session) Reset() {
	s.mu.Lock()
	s.gen++
	s.state = Idle
	s.clearLocked()
	g := s.gen
	s.mu.Unlock()
	s.log.Debug().Uint64("generation", g).Msg("session reset")
}

// Explain fetches a fresh explanation for one item and stores it in the item's
// slot. The text is FallbackExplanation when the call fails. Explanations for
// different items may run concurrently.
func (s *Session) Explain(ctx context.Context, itemID string) (string, error) {
	s.mu.Lock()
	if s.state != Ready {
		s.mu.Unlock()
		return "", ErrNotReady
	}
	item, ok := s.findLocked(itemID)
	g := s.gen
	s.mu.Unlock()
	if !ok {
		return "", ErrItemNotFound
	}

	start := time.Now()
	out := s.explainer.Run(ctx, item.Image, item.Label)
	s.record(ctx, g, StageExplain, boolCount(out.Err == nil), start, out.Err)
	if out.Err != nil {
		s.log.Warn().Err(out.Err).Str("item", itemID).Msg("explanation failed")
	}

	s.mu.Lock()
	if s.gen != g {
		s.mu.Unlock()
		return "", s.discard(ctx, g, StageExplain)
	}
	s.explanations[itemID] = out.Text
	s.mu.Unlock()
	return out.Text, nil
}

// Explanation returns the latest explanation stored for itemID.
func (s *Session) Explanation(itemID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txt, ok := s.explanations[itemID]
	return txt, ok
}

// Item returns a copy of one item of the current page.
func (s *Session) Item(itemID string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Ready {
		return Item{}, ErrNotReady
	}
	it, ok := s.findLocked(itemID)
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return it, nil
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) abort(g uint64, cause error) error {
	s.mu.Lock()
	if s.gen == g {
		s.state = Idle
		s.clearLocked()
	}
	s.mu.Unlock()
	s.log.Error().Err(cause).Uint64("generation", g).Msg("scan aborted")
	return fmt.Errorf("%w: %w", ErrScanFailed, cause)
}

func (s *Session) discard(ctx context.Context, g uint64, after Stage) error {
	s.rec.Record(ctx, Event{
		SessionID:  s.id,
		Generation: g,
		Stage:      StageDiscard,
		Err:        fmt.Errorf("%w after %s", ErrStaleScan, after),
		At:         time.Now(),
	})
	s.log.Debug().Uint64("generation", g).Str("after", string(after)).Msg("stale result discarded")
	return ErrStaleScan
}

func (s *Session) stale(g uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen != g
}

func (s *Session) record(ctx context.Context, g uint64, st Stage, count int, start time.Time, err error) {
	s.rec.Record(ctx, Event{
		SessionID:  s.id,
		Generation: g,
		Stage:      st,
		Count:      count,
		Duration:   time.Since(start),
		Err:        err,
		At:         start,
	})
}

func (s *Session) clearLocked() {
	s.page = nil
	s.pageJPEG = nil
	s.items = nil
	s.explanations = map[string]string{}
}

func (s *Session) findLocked(id string) (Item, bool) {
	for _, it := range s.items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

func boolCount(ok bool) int {
	if ok {
		return 1
	}
	return 0
}
