package raster

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRenderer renders every page as a w×h native-size solid page scaled by the requested factor.
type fakeRenderer struct {
	pages    int
	w, h     int
	openErr  error
	panicMsg string

	rendered []int
	closed   bool
}

func (f *fakeRenderer) Open(data []byte) (Document, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f, nil
}

func (f *fakeRenderer) NumPage() int { return f.pages }

func (f *fakeRenderer) Render(index int, scale float64) (image.Image, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.rendered = append(f.rendered, index)
	img := image.NewRGBA(image.Rect(0, 0, int(float64(f.w)*scale), int(float64(f.h)*scale)))
	return img, nil
}

func (f *fakeRenderer) Close() error {
	f.closed = true
	return nil
}

var pdfBytes = []byte("%PDF-1.4\n%fake\n")

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 7, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRasterize_ImageIgnoresPageIndex(t *testing.T) {
	r := New(nil)
	page, err := r.Rasterize(context.Background(), NewSource("chart.png", pngBytes(t, 80, 60)), 7)

	require.NoError(t, err)
	assert.Equal(t, 80, page.Width())
	assert.Equal(t, 60, page.Height())
	assert.Equal(t, 1, page.Index)
	assert.Equal(t, 1, page.Count)
	assert.Equal(t, 1.0, page.Scale)
	assert.Equal(t, "image/png", page.MIME)
}

func TestRasterize_PDFScalesPage(t *testing.T) {
	fr := &fakeRenderer{pages: 3, w: 100, h: 150}
	page, err := New(fr).Rasterize(context.Background(), NewSource("doc.pdf", pdfBytes), 2)

	require.NoError(t, err)
	assert.Equal(t, 200, page.Width())
	assert.Equal(t, 300, page.Height())
	assert.Equal(t, 2, page.Index)
	assert.Equal(t, 3, page.Count)
	assert.Equal(t, Scale, page.Scale)
	assert.Equal(t, []int{1}, fr.rendered)
	assert.True(t, fr.closed)
}

func TestRasterize_PageClamping(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		want      int
	}{
		{"zero resolves to first", 0, 1},
		{"negative resolves to first", -4, 1},
		{"past end resolves to last", 15, 10},
		{"in range kept", 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := &fakeRenderer{pages: 10, w: 10, h: 10}
			page, err := New(fr).Rasterize(context.Background(), NewSource("doc.pdf", pdfBytes), tt.requested)
			require.NoError(t, err)
			assert.Equal(t, tt.want, page.Index)
			assert.Equal(t, []int{tt.want - 1}, fr.rendered)
		})
	}
}

func TestRasterize_UnsupportedFormat(t *testing.T) {
	r := New(&fakeRenderer{pages: 1})

	_, err := r.Rasterize(context.Background(), NewSource("notes.txt", []byte("plain text")), 1)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = r.Rasterize(context.Background(), NewSource("empty", nil), 1)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	// JPEG magic with garbage body
	_, err = r.Rasterize(context.Background(), NewSource("broken.jpg", []byte{0xFF, 0xD8, 0x00, 0x01}), 1)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestRasterize_RenderFailures(t *testing.T) {
	ctx := context.Background()
	src := NewSource("doc.pdf", pdfBytes)

	_, err := New(nil).Rasterize(ctx, src, 1)
	assert.ErrorIs(t, err, ErrRenderFailure)

	_, err = New(&fakeRenderer{openErr: errors.New("corrupt xref")}).Rasterize(ctx, src, 1)
	assert.ErrorIs(t, err, ErrRenderFailure)

	_, err = New(&fakeRenderer{pages: 0}).Rasterize(ctx, src, 1)
	assert.ErrorIs(t, err, ErrRenderFailure)

	_, err = New(&fakeRenderer{pages: 1, w: 5, h: 5, panicMsg: "boom"}).Rasterize(ctx, src, 1)
	assert.ErrorIs(t, err, ErrRenderFailure)
}

func TestRasterize_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).Rasterize(ctx, NewSource("chart.png", pngBytes(t, 4, 4)), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPage_JPEG(t *testing.T) {
	page, err := New(nil).Rasterize(context.Background(), NewSource("chart.png", pngBytes(t, 32, 16)), 1)
	require.NoError(t, err)

	b, err := page.JPEG()
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 16), img.Bounds())
}

func TestToRGBA_NormalizesOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 20, 14, 23))
	src.Set(10, 20, color.RGBA{R: 255, A: 255})

	out := toRGBA(src)
	assert.Equal(t, image.Rect(0, 0, 4, 3), out.Bounds())
	assert.Equal(t, color.RGBA{R: 255, A: 255}, out.RGBAAt(0, 0))
}
