// Package api serves the synchronous query and control endpoints.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/justinmdickey/nowplaying/internal/logging"
	"github.com/justinmdickey/nowplaying/internal/media"
)

var log = logging.Logger("api")

// maxHintBytes caps the app hint read from a control request body.
const maxHintBytes = 4 << 10

// Snapshotter gives the handler the current snapshot.
type Snapshotter interface {
	Get() media.Snapshot
}

type control struct {
	path    string
	failure string
	run     func(media.Source, context.Context, string) error
}

var controls = []control{
	{"/control/play-pause", "Failed to toggle play/pause", media.Source.PlayPause},
	{"/control/next", "Failed to skip to next track", media.Source.Next},
	{"/control/back", "Failed to skip to previous track", media.Source.Previous},
}

// NewHandler returns the HTTP handler for /ready, /now-playing and
// /control/*, wrapped in permissive CORS and request logging.
func NewHandler(store Snapshotter, src media.Source) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("GET /now-playing", func(w http.ResponseWriter, r *http.Request) {
		snap := store.Get()
		if snap.IsEmpty() {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		body, err := json.Marshal(snap)
		if err != nil {
			log.Errorw("encode snapshot", "err", err)
			http.Error(w, "Failed to encode now playing", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	})

	for _, c := range controls {
		mux.HandleFunc("POST "+c.path, func(w http.ResponseWriter, r *http.Request) {
			app := readHint(r)
			if err := c.run(src, r.Context(), app); err != nil {
				log.Warnw("control failed", "path", c.path, "app", app, "err", err)
				http.Error(w, c.failure, http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		})
	}

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(logRequests(mux))
}

func readHint(r *http.Request) string {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxHintBytes))
	if err != nil {
		log.Debugw("read control body", "err", err)
	}
	return string(body)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.Debugw("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start))
	})
}
