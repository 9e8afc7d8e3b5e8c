package media

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidBackend(t *testing.T) {
	for _, b := range Backends {
		assert.True(t, ValidBackend(b), b)
	}
	assert.True(t, ValidBackend("MPRIS"))
	assert.False(t, ValidBackend("winrt"))
}

func TestNewNone(t *testing.T) {
	src, err := New(Options{Backend: "none", EmbedArtwork: true})
	require.NoError(t, err)

	snap, err := src.Query(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, snap)
	assert.ErrorIs(t, src.PlayPause(context.Background(), ""), ErrNoPlayer)
	assert.ErrorIs(t, src.Next(context.Background(), "x"), ErrNoPlayer)
	assert.ErrorIs(t, src.Previous(context.Background(), ""), ErrNoPlayer)
}

type closingSource struct {
	None
	closed int
}

func (c *closingSource) Close() error {
	c.closed++
	return nil
}

func TestClose(t *testing.T) {
	assert.NoError(t, Close(None{}))

	inner := &closingSource{}
	require.NoError(t, Close(inner))
	assert.Equal(t, 1, inner.closed)

	// The artwork wrapper passes Close through to the backend.
	require.NoError(t, Close(&artworkEmbedder{Source: inner, width: 16}))
	assert.Equal(t, 2, inner.closed)
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(Options{Backend: "winrt"})
	assert.Error(t, err)
}

type countingSource struct {
	None
	snap  *Snapshot
	calls atomic.Int32
}

func (c *countingSource) Query(context.Context) (*Snapshot, error) {
	c.calls.Add(1)
	if c.snap == nil {
		return nil, nil
	}
	s := *c.snap
	return &s, nil
}

func writeCover(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{200, 30, 30, 255})
		}
	}
	path := filepath.Join(t.TempDir(), "cover.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestArtworkEmbedder(t *testing.T) {
	path := writeCover(t)
	inner := &countingSource{snap: &Snapshot{Title: "T", ArtworkRef: "file://" + path}}
	src := &artworkEmbedder{Source: inner, width: 16}

	first, err := src.Query(context.Background())
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.True(t, strings.HasPrefix(first.ArtworkRef, "data:image/png;base64,"))
	assert.Equal(t, "file://"+path, inner.snap.ArtworkRef, "inner snapshot untouched")

	// Same reference reuses the cached URI even if the file disappears.
	require.NoError(t, os.Remove(path))
	second, err := src.Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.ArtworkRef, second.ArtworkRef)
}

func TestArtworkEmbedderPassThrough(t *testing.T) {
	inner := &countingSource{snap: &Snapshot{Title: "T", ArtworkRef: "https://cover"}}
	src := &artworkEmbedder{Source: inner, width: 16}

	snap, err := src.Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://cover", snap.ArtworkRef)

	inner.snap.ArtworkRef = "file:///does/not/exist.png"
	snap, err = src.Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "file:///does/not/exist.png", snap.ArtworkRef, "failed embed keeps the reference")

	inner.snap = nil
	snap, err = src.Query(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)
}
