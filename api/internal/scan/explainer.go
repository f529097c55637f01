package scan

import (
	"context"
	"fmt"
	"strings"

	"figscan/api/internal/vision"
)

// FallbackExplanation is returned whenever no explanation could be produced.
const FallbackExplanation = "Sorry, an explanation for this element could not be generated."

type ExplainOutcome struct {
	Text string
	Err  error
}

type Explainer struct {
	engine vision.Engine
}

func NewExplainer(engine vision.Engine) *Explainer {
	return &Explainer{engine: engine}
}

// Run makes one explanation call. Text is FallbackExplanation when Err is set.
func (e *Explainer) Run(ctx context.Context, crop []byte, label string) (out ExplainOutcome) {
	defer func() {
		if p := recover(); p != nil {
			out = ExplainOutcome{Text: FallbackExplanation, Err: fmt.Errorf("explainer panic: %v", p)}
		}
	}()
	if len(crop) == 0 {
		return ExplainOutcome{Text: FallbackExplanation, Err: ErrEmptyCrop}
	}
	if e.engine == nil {
		return ExplainOutcome{Text: FallbackExplanation, Err: fmt.Errorf("no vision engine configured")}
	}
	txt, err := e.engine.Explain(ctx, crop, "image/jpeg", label)
	if err != nil {
		return ExplainOutcome{Text: FallbackExplanation, Err: err}
	}
	if strings.TrimSpace(txt) == "" {
		return ExplainOutcome{Text: FallbackExplanation, Err: vision.ErrEmptyResponse}
	}
	return ExplainOutcome{Text: txt}
}

// Explain never fails; see Run for the underlying outcome.
func (e *Explainer) Explain(ctx context.Context, crop []byte, label string) string {
	return e.Run(ctx, crop, label).Text
}
