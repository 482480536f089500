package motion

import (
	"errors"
	"image"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doorwatch/internal/pipeline"
)

func TestBlob_Center(t *testing.T) {
	b := Blob{Box: image.Rect(10, 20, 31, 41)}
	assert.Equal(t, pipeline.Point{X: 20, Y: 30}, b.Center())
}

func TestExtractorConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultExtractorConfig().Validate())
	assert.NoError(t, DoorExtractorConfig().Validate())

	bad := []ExtractorConfig{
		{DilateSize: 2, ErodeSize: 3},
		{DilateSize: 3, ErodeSize: 0},
		{DilateSize: 3, ErodeSize: 3, MinArea: -1},
		{DilateSize: 5, ErodeSize: 3},
	}
	for _, cfg := range bad {
		err := cfg.Validate()
		assert.True(t, errors.Is(err, pipeline.ErrMalformedConfig), "config %+v", cfg)
	}

	_, err := NewExtractor(ExtractorConfig{DilateSize: 4, ErodeSize: 3})
	assert.Error(t, err)
}

func TestExtractor_IdenticalFramesYieldNoBlobs(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	img := image.NewGray(image.Rect(0, 0, 64, 48))
	rng.Read(img.Pix)

	for _, cfg := range []ExtractorConfig{DefaultExtractorConfig(), exactConfig(0), DoorExtractorConfig()} {
		e, err := NewExtractor(cfg)
		require.NoError(t, err)

		blobs, err := e.Extract(img, img)
		require.NoError(t, err)
		assert.Empty(t, blobs)

		n, err := e.CountChanged(img, img)
		require.NoError(t, err)
		assert.Zero(t, n)
	}
}

func TestExtractor_BlobsSortedAndFiltered(t *testing.T) {
	e, err := NewExtractor(exactConfig(10))
	require.NoError(t, err)

	prev := grayWithRects(80, 60)
	cur := grayWithRects(80, 60,
		image.Rect(10, 20, 30, 40), // 400 px
		image.Rect(50, 5, 60, 10),  // 50 px
		image.Rect(70, 50, 72, 52), // 4 px, filtered
	)

	blobs, err := e.Extract(prev, cur)
	require.NoError(t, err)
	require.Len(t, blobs, 2)
	assert.Equal(t, Blob{Box: image.Rect(50, 5, 60, 10), Area: 50}, blobs[0])
	assert.Equal(t, Blob{Box: image.Rect(10, 20, 30, 40), Area: 400}, blobs[1])

	// Area must strictly exceed the minimum
	e, err = NewExtractor(exactConfig(50))
	require.NoError(t, err)
	blobs, err = e.Extract(prev, cur)
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	assert.Equal(t, 400, blobs[0].Area)
}

func TestExtractor_EightConnectivity(t *testing.T) {
	e, err := NewExtractor(exactConfig(0))
	require.NoError(t, err)

	prev := grayWithRects(20, 20)
	cur := grayWithRects(20, 20, image.Rect(5, 5, 6, 6), image.Rect(6, 6, 7, 7))

	blobs, err := e.Extract(prev, cur)
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	assert.Equal(t, image.Rect(5, 5, 7, 7), blobs[0].Box)
	assert.Equal(t, 2, blobs[0].Area)
}

func TestExtractor_ThresholdIsStrict(t *testing.T) {
	e, err := NewExtractor(exactConfig(0))
	require.NoError(t, err)

	prev := image.NewGray(image.Rect(0, 0, 4, 1))
	cur := image.NewGray(image.Rect(0, 0, 4, 1))
	copy(prev.Pix, []uint8{100, 100, 200, 0})
	copy(cur.Pix, []uint8{140, 141, 159, 0})

	n, err := e.CountChanged(prev, cur)
	require.NoError(t, err)
	// 40 is not above the threshold, 41 is both ways
	assert.Equal(t, 2, n)
}

func TestExtractor_DilationClosesGaps(t *testing.T) {
	cfg := DefaultExtractorConfig()
	cfg.MinArea = 0
	e, err := NewExtractor(cfg)
	require.NoError(t, err)

	prev := grayWithRects(80, 60)
	cur := grayWithRects(80, 60, image.Rect(10, 10, 30, 30), image.Rect(32, 10, 52, 30))

	blobs, err := e.Extract(prev, cur)
	require.NoError(t, err)
	assert.Len(t, blobs, 1)

	exact, err := NewExtractor(exactConfig(0))
	require.NoError(t, err)
	blobs, err = exact.Extract(prev, cur)
	require.NoError(t, err)
	assert.Len(t, blobs, 2)
}

func TestExtractor_BlobVariantRemovesSpeckle(t *testing.T) {
	cfg := DefaultExtractorConfig()
	cfg.MinArea = 0
	e, err := NewExtractor(cfg)
	require.NoError(t, err)

	prev := grayWithRects(64, 64)
	speckle := grayWithRects(64, 64, image.Rect(20, 20, 21, 21), image.Rect(40, 40, 41, 41))
	n, err := e.CountChanged(prev, speckle)
	require.NoError(t, err)
	assert.Zero(t, n)

	blobs, err := e.Extract(prev, speckle)
	require.NoError(t, err)
	assert.Empty(t, blobs)

	// A real region survives with its centre in place
	block := grayWithRects(64, 64, image.Rect(12, 20, 32, 40))
	blobs, err = e.Extract(prev, block)
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	assert.Equal(t, pipeline.Point{X: 22, Y: 30}, blobs[0].Center())
	assert.Greater(t, blobs[0].Area, 15*15)
}

func TestExtractor_DoorVariantRemovesSpeckle(t *testing.T) {
	e, err := NewExtractor(DoorExtractorConfig())
	require.NoError(t, err)

	prev := grayWithRects(100, 100)
	speckle := grayWithRects(100, 100, image.Rect(10, 10, 11, 11), image.Rect(80, 20, 82, 22))
	n, err := e.CountChanged(prev, speckle)
	require.NoError(t, err)
	assert.Zero(t, n)

	block := grayWithRects(100, 100, image.Rect(30, 30, 70, 70))
	n, err = e.CountChanged(prev, block)
	require.NoError(t, err)
	assert.Greater(t, n, 30*30)
	assert.Less(t, n, 40*40)
}

func TestExtractor_DimensionMismatch(t *testing.T) {
	e, err := NewExtractor(DefaultExtractorConfig())
	require.NoError(t, err)

	_, err = e.Extract(grayWithRects(10, 10), grayWithRects(12, 10))
	assert.True(t, errors.Is(err, pipeline.ErrDimensionMismatch))

	_, err = e.CountChanged(grayWithRects(10, 10), grayWithRects(10, 12))
	assert.True(t, errors.Is(err, pipeline.ErrDimensionMismatch))
}

func TestExtractor_ReusesBuffersAcrossSizes(t *testing.T) {
	e, err := NewExtractor(exactConfig(0))
	require.NoError(t, err)

	blobs, err := e.Extract(grayWithRects(10, 10), grayWithRects(10, 10, image.Rect(1, 1, 3, 3)))
	require.NoError(t, err)
	require.Len(t, blobs, 1)

	blobs, err = e.Extract(grayWithRects(30, 20), grayWithRects(30, 20, image.Rect(20, 15, 25, 18)))
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	assert.Equal(t, image.Rect(20, 15, 25, 18), blobs[0].Box)
}
