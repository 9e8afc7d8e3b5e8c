package media

import (
	"fmt"
	"strconv"
	"strings"
)

// mprisPrefix is the well-known bus name prefix of MPRIS players.
const mprisPrefix = "org.mpris.MediaPlayer2."

// playerName strips the MPRIS prefix from a bus name.
func playerName(busName string) string {
	return strings.TrimPrefix(busName, mprisPrefix)
}

// pickPlayer chooses the bus name a control command targets. With a hint,
// the first player whose name contains it (case-insensitive) wins. Without
// one, the first playing player wins, then the first player at all.
func pickPlayer(names []string, statuses map[string]string, hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint != "" {
		for _, n := range names {
			if strings.Contains(strings.ToLower(playerName(n)), hint) {
				return n
			}
		}
		return ""
	}

	for _, n := range names {
		if statuses[n] == "Playing" {
			return n
		}
	}
	if len(names) > 0 {
		return names[0]
	}
	return ""
}

// microsToSeconds formats a microsecond count as whole seconds.
func microsToSeconds(us int64) string {
	return strconv.FormatInt(us/1_000_000, 10)
}

// microsToFractional formats a microsecond count as seconds with two decimals.
func microsToFractional(us int64) string {
	return fmt.Sprintf("%.2f", float64(us)/1_000_000.0)
}

// playerctlFormat is the template passed to `playerctl metadata --format`.
// Tabs avoid clashes with | in metadata (e.g. "Artist | Sessions").
const playerctlFormat = "{{status}}\t{{playerName}}\t{{title}}\t{{artist}}\t{{album}}\t{{mpris:artUrl}}\t{{mpris:length}}\t{{position}}"

// parsePlayerctl converts playerctl output into a snapshot. Players that are
// not playing yield nil.
func parsePlayerctl(output string) (*Snapshot, error) {
	output = strings.TrimRight(output, "\r\n")
	if strings.TrimSpace(output) == "" {
		return nil, nil
	}

	parts := strings.Split(output, "\t")
	if len(parts) != 8 {
		return nil, fmt.Errorf("unexpected metadata format: got %d parts, expected 8", len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if parts[0] != "Playing" {
		return nil, nil
	}

	snap := &Snapshot{
		Source:     parts[1],
		Title:      parts[2],
		Artist:     parts[3],
		Album:      parts[4],
		ArtworkRef: parts[5],
	}
	if us, err := strconv.ParseInt(parts[6], 10, 64); err == nil {
		snap.Duration = microsToSeconds(us)
	}
	if us, err := strconv.ParseInt(parts[7], 10, 64); err == nil {
		snap.Position = microsToFractional(us)
	}
	return snap, nil
}

// appleScriptSeparator splits the fields returned by the AppleScript queries.
const appleScriptSeparator = "|~|"

// parseAppleScript converts the output of an AppleScript track query:
// title, artist, album, artwork URL, duration, position, player state.
// durationScale converts the reported duration to seconds (Spotify reports
// milliseconds, Music seconds).
func parseAppleScript(output, app string, durationScale float64) (*Snapshot, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return nil, nil
	}

	parts := strings.Split(output, appleScriptSeparator)
	if len(parts) != 7 {
		return nil, fmt.Errorf("unexpected metadata format: got %d parts, expected 7", len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "missing value" || parts[i] == "null" {
			parts[i] = ""
		}
	}

	state := strings.ToLower(parts[6])
	if state != "playing" && state != "paused" {
		return nil, nil
	}

	snap := &Snapshot{
		Title:      parts[0],
		Artist:     parts[1],
		Album:      parts[2],
		ArtworkRef: parts[3],
		Source:     app,
	}
	if d, err := parseLocaleFloat(parts[4]); err == nil && durationScale > 0 {
		snap.Duration = strconv.FormatInt(int64(d/durationScale), 10)
	}
	if p, err := parseLocaleFloat(parts[5]); err == nil {
		snap.Position = fmt.Sprintf("%.2f", p)
	}
	return snap, nil
}

// parseLocaleFloat accepts both "12.5" and "12,5"; AppleScript formats reals
// using the system locale.
func parseLocaleFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}
