package scan

import (
	"context"
	"fmt"

	"figscan/api/internal/vision"
)

// DetectOutcome keeps "the provider found nothing" apart from "the call failed".
// When Err is set Detections is empty.
type DetectOutcome struct {
	Detections []vision.Detection
	Err        error
}

func (o DetectOutcome) Failed() bool { return o.Err != nil }

type Detector struct {
	engine vision.Engine
}

func NewDetector(engine vision.Engine) *Detector {
	return &Detector{engine: engine}
}

// Run makes one detection call for the encoded page.
func (d *Detector) Run(ctx context.Context, page []byte) (out DetectOutcome) {
	defer func() {
		if p := recover(); p != nil {
			out = DetectOutcome{Detections: []vision.Detection{}, Err: fmt.Errorf("detector panic: %v", p)}
		}
	}()
	if d.engine == nil {
		return DetectOutcome{Detections: []vision.Detection{}, Err: fmt.Errorf("no vision engine configured")}
	}
	dets, err := d.engine.Detect(ctx, page, "image/jpeg")
	if err != nil {
		return DetectOutcome{Detections: []vision.Detection{}, Err: err}
	}
	if dets == nil {
		dets = []vision.Detection{}
	}
	return DetectOutcome{Detections: dets}
}

// Detect is Run without the error: failures read as zero detections.
func (d *Detector) Detect(ctx context.Context, page []byte) []vision.Detection {
	return d.Run(ctx, page).Detections
}
