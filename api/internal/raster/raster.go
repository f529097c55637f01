// Package raster turns an uploaded document (image or PDF) into a single page
// pixel buffer that the scanner crops from.
package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"figscan/api/internal/util"
)

const (
	// Scale applied to paginated pages relative to their native size.
	Scale = 2.0
	// PageQuality is the JPEG quality used when the page leaves the process.
	PageQuality = 95

	nativeDPI = 72.0
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrRenderFailure     = errors.New("render failure")
)

// Source is an uploaded document. Data must not be modified after NewSource.
type Source struct {
	Name string
	MIME string
	Data []byte
}

func NewSource(name string, data []byte) Source {
	return Source{Name: name, MIME: util.SniffMIME(data), Data: data}
}

// Page is one rendered page. Image is never mutated after Rasterize returns.
type Page struct {
	Image *image.RGBA
	// Index is the 1-based page actually rendered (after clamping).
	Index int
	Count int
	Scale float64
	MIME  string
}

func (p *Page) Width() int  { return p.Image.Bounds().Dx() }
func (p *Page) Height() int { return p.Image.Bounds().Dy() }

// JPEG encodes the page for transmission or display.
func (p *Page) JPEG() ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, p.Image, &jpeg.Options{Quality: PageQuality}); err != nil {
		return nil, fmt.Errorf("encode page: %w", err)
	}
	return buf.Bytes(), nil
}

// Renderer opens paginated documents.
type Renderer interface {
	Open(data []byte) (Document, error)
}

// Document is an opened paginated document. Render takes a 0-based index.
type Document interface {
	NumPage() int
	Render(index int, scale float64) (image.Image, error)
	Close() error
}

type Rasterizer struct {
	renderer Renderer
}

// New returns a rasterizer; renderer may be nil, in which case PDFs fail with ErrRenderFailure.
func New(renderer Renderer) *Rasterizer {
	return &Rasterizer{renderer: renderer}
}

// Rasterize renders the requested 1-based page. Out-of-range indexes are clamped;
// plain images ignore pageIndex.
func (r *Rasterizer) Rasterize(ctx context.Context, src Source, pageIndex int) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(src.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnsupportedFormat)
	}
	mime := src.MIME
	if mime == "" {
		mime = util.SniffMIME(src.Data)
	}

	switch {
	case util.IsPDF(mime):
		return r.renderPDF(ctx, src.Data, pageIndex)
	case mime != "":
		img, _, err := image.Decode(bytes.NewReader(src.Data))
		if err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrUnsupportedFormat, mime, err)
		}
		return &Page{Image: toRGBA(img), Index: 1, Count: 1, Scale: 1, MIME: mime}, nil
	default:
		return nil, fmt.Errorf("%w: %q is neither an image nor a PDF", ErrUnsupportedFormat, src.Name)
	}
}

func (r *Rasterizer) renderPDF(ctx context.Context, data []byte, pageIndex int) (page *Page, err error) {
	if r.renderer == nil {
		return nil, fmt.Errorf("%w: no document renderer configured", ErrRenderFailure)
	}
	defer func() {
		if p := recover(); p != nil {
			page, err = nil, fmt.Errorf("%w: renderer panic: %v", ErrRenderFailure, p)
		}
	}()

	doc, err := r.renderer.Open(data)
	if err != nil {
		return nil, fmt.Errorf("%w: open document: %v", ErrRenderFailure, err)
	}
	defer doc.Close()

	count := doc.NumPage()
	if count < 1 {
		return nil, fmt.Errorf("%w: document has no pages", ErrRenderFailure)
	}
	idx := ClampPage(pageIndex, count)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := doc.Render(idx-1, Scale)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", ErrRenderFailure, idx, err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: page %d rendered empty", ErrRenderFailure, idx)
	}
	return &Page{Image: toRGBA(img), Index: idx, Count: count, Scale: Scale, MIME: "application/pdf"}, nil
}

// ClampPage resolves a 1-based page index into [1, count].
func ClampPage(idx, count int) int {
	if idx < 1 {
		return 1
	}
	if idx > count {
		return count
	}
	return idx
}

// toRGBA returns img as an RGBA buffer with its origin at (0,0).
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
