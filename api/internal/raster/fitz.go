package raster

import (
	"image"

	"github.com/gen2brain/go-fitz"
)

// FitzRenderer renders PDF pages with MuPDF.
type FitzRenderer struct{}

func (FitzRenderer) Open(data []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) NumPage() int { return d.doc.NumPage() }

// Render rasterizes at scale × 72 DPI, the PDF native unit.
func (d *fitzDocument) Render(index int, scale float64) (image.Image, error) {
	return d.doc.ImageDPI(index, nativeDPI*scale)
}

func (d *fitzDocument) Close() error { return d.doc.Close() }
