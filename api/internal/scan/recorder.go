package scan

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type Stage string

const (
	StageRasterize Stage = "rasterize"
	StageDetect    Stage = "detect"
	StageExtract   Stage = "extract"
	StageExplain   Stage = "explain"
	// StageDiscard marks a result dropped because its generation went stale.
	StageDiscard Stage = "discard"
)

// Event describes the outcome of one stage. Count is the number of pages,
// detections or items the stage produced.
type Event struct {
	SessionID  string
	Generation uint64
	Stage      Stage
	Count      int
	Duration   time.Duration
	Err        error
	At         time.Time
}

// Recorder observes scan stages. Implementations must not block for long and
// must be safe for concurrent use.
type Recorder interface {
	Record(ctx context.Context, ev Event)
}

type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Event) {}

// LogRecorder writes events to a zerolog logger.
type LogRecorder struct {
	Log zerolog.Logger
}

func (r LogRecorder) Record(_ context.Context, ev Event) {
	var e *zerolog.Event
	if ev.Err != nil {
		e = r.Log.Warn().Err(ev.Err)
	} else {
		e = r.Log.Info()
	}
	e.Str("session", ev.SessionID).
		Uint64("generation", ev.Generation).
		Str("stage", string(ev.Stage)).
		Int("count", ev.Count).
		Dur("duration", ev.Duration).
		Msg("scan stage")
}

// MultiRecorder fans an event out to every non-nil recorder in order.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(ctx context.Context, ev Event) {
	for _, r := range m {
		if r != nil {
			r.Record(ctx, ev)
		}
	}
}
