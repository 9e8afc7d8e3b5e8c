package media

import (
	"encoding/json"
)

// Snapshot is what is currently playing. The zero value means nothing is
// playing. Snapshots are compared with ==.
type Snapshot struct {
	Title      string
	Artist     string
	Album      string
	ArtworkRef string // URL or data URI
	Duration   string // seconds
	Position   string // seconds, may be fractional
	Source     string // player application
}

// IsEmpty reports whether the snapshot is the "nothing playing" sentinel.
func (s Snapshot) IsEmpty() bool {
	return s.Title == "" && s.Artist == "" && s.Album == ""
}

// wireSnapshot is the JSON shape served to clients.
type wireSnapshot struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	ImageURL string `json:"imageUrl"`
	Duration string `json:"duration"`
	Position string `json:"position"`
	Source   string `json:"source"`
}

// MarshalJSON encodes the snapshot with every value reduced to printable ASCII.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireSnapshot{
		Title:    Sanitize(s.Title),
		Artist:   Sanitize(s.Artist),
		Album:    Sanitize(s.Album),
		ImageURL: Sanitize(s.ArtworkRef),
		Duration: Sanitize(s.Duration),
		Position: Sanitize(s.Position),
		Source:   Sanitize(s.Source),
	})
}

// UnmarshalJSON decodes the wire shape produced by MarshalJSON.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var w wireSnapshot
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Snapshot{
		Title:      w.Title,
		Artist:     w.Artist,
		Album:      w.Album,
		ArtworkRef: w.ImageURL,
		Duration:   w.Duration,
		Position:   w.Position,
		Source:     w.Source,
	}
	return nil
}

// Sanitize keeps only printable ASCII bytes (space through tilde).
func Sanitize(s string) string {
	clean := true
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 0x20 && c <= 0x7e {
			out = append(out, c)
		}
	}
	return string(out)
}

// stoppedMessage is pushed when nothing is playing.
var stoppedMessage = []byte(`{"type":"stopped"}`)

// PushMessage encodes the message pushed to subscribers for s: the snapshot
// JSON, or {"type":"stopped"} when s is empty.
func PushMessage(s Snapshot) ([]byte, error) {
	if s.IsEmpty() {
		out := make([]byte, len(stoppedMessage))
		copy(out, stoppedMessage)
		return out, nil
	}
	return json.Marshal(s)
}

// IsStopped reports whether a pushed message is the stopped notification.
func IsStopped(msg []byte) bool {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &probe); err != nil {
		return false
	}
	return probe.Type == "stopped"
}
