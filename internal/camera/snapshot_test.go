package camera

import (
	"context"
	"errors"
	"image/color"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doorwatch/internal/pipeline"
)

func TestSnapshotSource_ReadFrame(t *testing.T) {
	body := encodePNG(t, solidImage(16, 8, color.RGBA{R: 10, G: 20, B: 30, A: 255}))
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	defer srv.Close()

	src := NewSnapshotSource(srv.URL+"/snapshot.png", SnapshotConfig{Interval: 10 * time.Millisecond})
	ctx := context.Background()
	require.NoError(t, src.Open(ctx))
	defer src.Close()

	f1, err := src.ReadFrame(ctx)
	require.NoError(t, err)
	f2, err := src.ReadFrame(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), f1.Seq)
	assert.Equal(t, uint64(2), f2.Seq)
	assert.GreaterOrEqual(t, f2.Timestamp.Sub(f1.Timestamp), 10*time.Millisecond)
	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, f2.Color.RGBAAt(0, 0))
	assert.Equal(t, int32(2), hits.Load())
}

func TestSnapshotSource_Errors(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusServiceUnavailable)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
		w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	src := NewSnapshotSource(srv.URL, SnapshotConfig{Interval: time.Millisecond, MaxBytes: 32})
	ctx := context.Background()

	_, err := src.ReadFrame(ctx)
	assert.True(t, errors.Is(err, pipeline.ErrFrameAcquisition), "read before open")

	require.NoError(t, src.Open(ctx))

	_, err = src.ReadFrame(ctx)
	assert.True(t, errors.Is(err, pipeline.ErrFrameAcquisition))
	assert.Contains(t, err.Error(), "503")

	status.Store(http.StatusOK)
	_, err = src.ReadFrame(ctx)
	assert.True(t, errors.Is(err, pipeline.ErrFrameAcquisition))
	assert.Contains(t, err.Error(), "larger than")

	require.NoError(t, src.Close())
}

func TestSnapshotSource_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	src := NewSnapshotSource(url+"/image.jpg", SnapshotConfig{Timeout: time.Second})
	require.NoError(t, src.Open(context.Background()))
	_, err := src.ReadFrame(context.Background())
	assert.True(t, errors.Is(err, pipeline.ErrFrameAcquisition))
}
