package scan

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"math"

	"github.com/google/uuid"

	"figscan/api/internal/raster"
	"figscan/api/internal/vision"
)

// CropQuality is the JPEG quality of every extracted crop.
const CropQuality = 90

// Item is one extracted element. Rect is in page pixel coordinates; rounding
// can push it one pixel past the page, and that part of the crop is white.
type Item struct {
	ID          string          `json:"id"`
	Label       string          `json:"label"`
	Description string          `json:"description"`
	Image       []byte          `json:"-"`
	Rect        image.Rectangle `json:"-"`
}

// Empty reports whether the item's box had zero area.
func (it Item) Empty() bool { return len(it.Image) == 0 }

type Extractor struct {
	NewID func() string
}

func NewExtractor() *Extractor {
	return &Extractor{NewID: uuid.NewString}
}

// ExtractAll returns one item per detection, in detection order.
func (x *Extractor) ExtractAll(page *raster.Page, dets []vision.Detection) (items []Item, err error) {
	if page == nil || page.Image == nil {
		return nil, fmt.Errorf("extract: no page")
	}
	defer func() {
		if p := recover(); p != nil {
			items, err = nil, fmt.Errorf("extract: panic: %v", p)
		}
	}()
	newID := x.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	items = make([]Item, 0, len(dets))
	for i, d := range dets {
		r := CropRect(d.Box, page.Width(), page.Height())
		data, err := EncodeCrop(page.Image, r)
		if err != nil {
			return nil, fmt.Errorf("extract item %d: %w", i, err)
		}
		items = append(items, Item{
			ID:          newID(),
			Label:       d.Label,
			Description: d.Description,
			Image:       data,
			Rect:        r,
		})
	}
	return items, nil
}

// CropRect maps a normalized box onto a w×h pixel grid. Coordinates are
// clamped to [0, 1000] first, so the rectangle never outgrows the page.
// Negative extents from inverted boxes collapse to zero.
func CropRect(b vision.Box, w, h int) image.Rectangle {
	fw, fh := float64(w), float64(h)
	ymin, xmin := clampNorm(b.YMin()), clampNorm(b.XMin())
	ymax, xmax := clampNorm(b.YMax()), clampNorm(b.XMax())
	left := round(xmin * fw / 1000)
	top := round(ymin * fh / 1000)
	width := max(round((xmax-xmin)*fw/1000), 0)
	height := max(round((ymax-ymin)*fh/1000), 0)
	return image.Rectangle{
		Min: image.Point{X: left, Y: top},
		Max: image.Point{X: left + width, Y: top + height},
	}
}

// Crop copies r out of page 1:1 into a new buffer of exactly r's size.
// Returns nil for a zero-area rectangle.
func Crop(page *image.RGBA, r image.Rectangle) *image.RGBA {
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), page, r.Min, draw.Src)
	return dst
}

// EncodeCrop crops and encodes as JPEG; an empty rectangle yields nil bytes.
func EncodeCrop(page *image.RGBA, r image.Rectangle) ([]byte, error) {
	img := Crop(page, r)
	if img == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: CropQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func clampNorm(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return min(max(v, 0), 1000)
}

func round(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(math.Round(v))
}
