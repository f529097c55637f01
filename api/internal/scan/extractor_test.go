package scan

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"figscan/api/internal/vision"
)

func TestCropRect_ChartExample(t *testing.T) {
	r := CropRect(vision.Box{100, 200, 400, 800}, 800, 600)

	assert.Equal(t, image.Rect(160, 60, 640, 240), r)
	assert.Equal(t, 480, r.Dx())
	assert.Equal(t, 180, r.Dy())
}

func TestCropRect_SizeMatchesFormula(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		w, h := 1+rng.Intn(3000), 1+rng.Intn(3000)
		x0, x1 := ordered(rng.Float64()*1000, rng.Float64()*1000)
		y0, y1 := ordered(rng.Float64()*1000, rng.Float64()*1000)

		r := CropRect(vision.Box{y0, x0, y1, x1}, w, h)

		wantW := math.Round((x1 - x0) / 1000 * float64(w))
		wantH := math.Round((y1 - y0) / 1000 * float64(h))
		assert.InDelta(t, wantW, float64(r.Dx()), 1, "box %d width", i)
		assert.InDelta(t, wantH, float64(r.Dy()), 1, "box %d height", i)
		assert.GreaterOrEqual(t, r.Min.X, 0)
		assert.GreaterOrEqual(t, r.Min.Y, 0)
	}
}

func ordered(a, b float64) (float64, float64) {
	if a > b {
		return b, a
	}
	return a, b
}

func TestCropRect_Degenerate(t *testing.T) {
	r := CropRect(vision.Box{100, 800, 400, 200}, 800, 600)
	assert.Equal(t, 0, r.Dx())
	assert.Equal(t, 180, r.Dy())
	assert.Equal(t, 640, r.Min.X)

	r = CropRect(vision.Box{400, 200, 100, 800}, 800, 600)
	assert.Equal(t, 480, r.Dx())
	assert.Equal(t, 0, r.Dy())
}

func TestCropRect_ClampsOutOfRangeBoxes(t *testing.T) {
	assert.Equal(t, image.Rect(0, 0, 100, 80), CropRect(vision.Box{0, 0, 1e9, 1e9}, 100, 80))
	assert.Equal(t, image.Rect(0, 0, 100, 80), CropRect(vision.Box{-500, -500, 20000, 20000}, 100, 80))
	assert.Equal(t, image.Rect(50, 0, 100, 80), CropRect(vision.Box{0, 500, 1000, 1e18}, 100, 80))

	r := CropRect(vision.Box{math.NaN(), math.Inf(-1), math.Inf(1), math.NaN()}, 100, 80)
	assert.Equal(t, 0, r.Dx())
	assert.Equal(t, 80, r.Dy())
}

func TestExtractAll_OversizedBoxStaysWithinPage(t *testing.T) {
	page := testPage(100, 100)
	dets := []vision.Detection{{Label: "x", Box: vision.Box{0, 0, 1e9, 1e9}, Description: "d"}}

	items, err := NewExtractor().ExtractAll(page, dets)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, image.Rect(0, 0, 100, 100), items[0].Rect)

	img, err := jpeg.Decode(bytes.NewReader(items[0].Image))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 100), img.Bounds())
}

func TestCrop_CopiesPixelsOneToOne(t *testing.T) {
	page := testPage(100, 80)
	r := image.Rect(10, 20, 40, 30)

	got := Crop(page.Image, r)
	require.NotNil(t, got)
	assert.Equal(t, image.Rect(0, 0, 30, 10), got.Bounds())
	for y := 0; y < 10; y++ {
		for x := 0; x < 30; x++ {
			require.Equal(t, page.Image.RGBAAt(10+x, 20+y), got.RGBAAt(x, y))
		}
	}
}

func TestCrop_OutsidePageIsWhite(t *testing.T) {
	page := testPage(50, 50)
	got := Crop(page.Image, image.Rect(40, 40, 60, 60))

	require.NotNil(t, got)
	assert.Equal(t, 20, got.Bounds().Dx())
	assert.Equal(t, page.Image.RGBAAt(45, 45), got.RGBAAt(5, 5))
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	assert.Equal(t, white, got.RGBAAt(15, 15))
	assert.Equal(t, white, got.RGBAAt(5, 15))
}

func TestCrop_EmptyRect(t *testing.T) {
	page := testPage(10, 10)
	assert.Nil(t, Crop(page.Image, image.Rect(5, 5, 5, 9)))

	data, err := EncodeCrop(page.Image, image.Rect(5, 5, 5, 9))
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestExtractAll_OrderAndCount(t *testing.T) {
	page := testPage(200, 100)
	dets := []vision.Detection{
		{Label: "Photo", Box: vision.Box{0, 0, 500, 500}, Description: "a"},
		{Label: "Broken", Box: vision.Box{500, 900, 400, 100}, Description: "b"},
		{Label: "Map", Box: vision.Box{500, 500, 1000, 1000}, Description: "c"},
	}
	x := &Extractor{NewID: seqIDs()}

	items, err := x.ExtractAll(page, dets)
	require.NoError(t, err)
	require.Len(t, items, len(dets))
	for i := range dets {
		assert.Equal(t, dets[i].Label, items[i].Label)
		assert.Equal(t, dets[i].Description, items[i].Description)
	}
	assert.Equal(t, "item-1", items[0].ID)
	assert.Equal(t, "item-3", items[2].ID)

	assert.False(t, items[0].Empty())
	assert.True(t, items[1].Empty())
	assert.False(t, items[2].Empty())

	img, err := jpeg.Decode(bytes.NewReader(items[2].Image))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestExtractAll_Deterministic(t *testing.T) {
	page := testPage(300, 200)
	dets := []vision.Detection{
		{Label: "A", Box: vision.Box{10, 20, 300, 400}},
		{Label: "B", Box: vision.Box{333.3, 12.5, 999.9, 777.7}},
	}
	x := NewExtractor()

	first, err := x.ExtractAll(page, dets)
	require.NoError(t, err)
	second, err := x.ExtractAll(page, dets)
	require.NoError(t, err)

	for i := range first {
		assert.Equal(t, first[i].Rect, second[i].Rect)
		assert.True(t, bytes.Equal(first[i].Image, second[i].Image), "crop %d differs", i)
		assert.NotEqual(t, first[i].ID, second[i].ID)
	}
}

func TestExtractAll_NoDetections(t *testing.T) {
	items, err := NewExtractor().ExtractAll(testPage(10, 10), nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestExtractAll_NoPage(t *testing.T) {
	_, err := NewExtractor().ExtractAll(nil, nil)
	assert.Error(t, err)
}
