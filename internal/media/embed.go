package media

import (
	"context"
	"strings"
	"sync"

	"github.com/justinmdickey/nowplaying/internal/artwork"
)

// artworkEmbedder replaces file:// artwork references with thumbnail data
// URIs so remote clients can render them. The last conversion is cached
// because the same track is reported on every poll.
type artworkEmbedder struct {
	Source
	width int

	mu      sync.Mutex
	lastRef string
	lastURI string
}

func (e *artworkEmbedder) Query(ctx context.Context) (*Snapshot, error) {
	snap, err := e.Source.Query(ctx)
	if err != nil || snap == nil {
		return snap, err
	}
	if !strings.HasPrefix(snap.ArtworkRef, "file://") {
		return snap, nil
	}

	out := *snap
	out.ArtworkRef = e.embed(snap.ArtworkRef)
	return &out, nil
}

func (e *artworkEmbedder) Close() error {
	return Close(e.Source)
}

func (e *artworkEmbedder) embed(ref string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ref == e.lastRef {
		return e.lastURI
	}

	uri, err := artwork.EmbedFile(ref, e.width)
	if err != nil {
		log.Debugw("artwork not embedded", "ref", ref, "err", err)
		uri = ref
	}
	e.lastRef, e.lastURI = ref, uri
	return uri
}
