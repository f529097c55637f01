// Package vision describes the remote vision-reasoning capability the scanner
// depends on: element detection on a page and free-form explanation of a crop.
package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyResponse   = errors.New("empty response")
	ErrSchemaViolation = errors.New("response does not match detection schema")
)

// Box is a normalized bounding box: ymin, xmin, ymax, xmax, each in [0,1000].
// Ordering is not guaranteed by the provider.
type Box [4]float64

func (b Box) YMin() float64 { return b[0] }
func (b Box) XMin() float64 { return b[1] }
func (b Box) YMax() float64 { return b[2] }
func (b Box) XMax() float64 { return b[3] }

// Degenerate reports whether the box has max < min on either axis.
func (b Box) Degenerate() bool { return b.XMax() < b.XMin() || b.YMax() < b.YMin() }

// Detection is one labeled visual element found on a page.
type Detection struct {
	Label       string `json:"label"`
	Box         Box    `json:"box_2d"`
	Description string `json:"description"`
}

// Engine is a vision-capable model provider. Implementations make exactly one
// remote call per method invocation and report failures as errors.
type Engine interface {
	Name() string
	Detect(ctx context.Context, image []byte, mime string) ([]Detection, error)
	Explain(ctx context.Context, image []byte, mime, label string) (string, error)
}

const DetectInstruction = `Analyze this document page. Identify all distinct diagrams, photos, charts, illustrations, and maps.
Ignore plain body text, headers, footers and page decorations.
For each element return:
- "label": a short label (2-5 words), e.g. "Bar Chart", "Site Map", "Product Photo";
- "box_2d": a precise bounding box [ymin, xmin, ymax, xmax] normalized to 0-1000 relative to the page height and width;
- "description": one sentence describing what the element shows.
Return an empty array when the page has no such elements.`

// ExplainInstruction builds the explanation prompt for an element labeled label.
func ExplainInstruction(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "visual element"
	}
	return fmt.Sprintf(`This image is a "%s" extracted from a document page.
Provide a detailed explanation formatted in Markdown:
1. **Content**: describe what the image shows.
2. **Text and labels**: transcribe any embedded text, axis labels, legends or annotations.
3. **Purpose**: explain the likely purpose or significance of this %s in the context of the document.`, label, label)
}
