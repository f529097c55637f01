package scan

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"figscan/api/internal/raster"
	"figscan/api/internal/vision"
)

type fakeEngine struct {
	mu sync.Mutex

	dets      []vision.Detection
	detectErr error
	onDetect  func()

	explainText  string
	explainErr   error
	onExplain    func()
	explainCalls int
	labels       []string
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Detect(_ context.Context, _ []byte, _ string) ([]vision.Detection, error) {
	if f.onDetect != nil {
		f.onDetect()
	}
	return f.dets, f.detectErr
}

func (f *fakeEngine) Explain(_ context.Context, _ []byte, _ string, label string) (string, error) {
	f.mu.Lock()
	f.explainCalls++
	f.labels = append(f.labels, label)
	f.mu.Unlock()
	if f.onExplain != nil {
		f.onExplain()
	}
	return f.explainText, f.explainErr
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Record(_ context.Context, ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) stage(st Stage) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.Stage == st {
			out = append(out, ev)
		}
	}
	return out
}

// testPage builds a w×h page whose pixel (x,y) encodes its coordinates.
func testPage(w, h int) *raster.Page {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}
	return &raster.Page{Image: img, Index: 1, Count: 1, Scale: 1, MIME: "image/png"}
}

func jpegSource(t *testing.T, name string, w, h int) raster.Source {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testPage(w, h).Image, &jpeg.Options{Quality: 80}))
	return raster.NewSource(name, buf.Bytes())
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return "item-" + string(rune('0'+n))
	}
}
