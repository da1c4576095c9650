package tracklist

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// GeneratedLayout is the timestamp layout of Tracklist.GeneratedOn.
const GeneratedLayout = "2006-01-02 15:04"

// Track is one identified (or unidentified) segment of a recording. An empty
// Artist and Title means the segment could not be identified.
type Track struct {
	Timestamp      time.Duration `json:"-"`
	Artist         string        `json:"artist"`
	Title          string        `json:"title"`
	Rejected       bool          `json:"rejected,omitempty"`
	Album          string        `json:"album,omitempty"`
	SongURL        string        `json:"song_url,omitempty"`
	ArtworkURL     string        `json:"artwork_url,omitempty"`
	OriginalArtist string        `json:"original_artist,omitempty"`
	OriginalTitle  string        `json:"original_title,omitempty"`
	// Windows is the number of sample windows that produced this track.
	Windows int `json:"windows,omitempty"`
}

// Unidentified reports whether the track carries no match.
func (t Track) Unidentified() bool {
	return t.Artist == "" && t.Title == ""
}

// Corrected reports whether a learned correction rewrote the match.
func (t Track) Corrected() bool {
	if t.OriginalArtist == "" && t.OriginalTitle == "" {
		return false
	}
	return t.Artist != t.OriginalArtist || t.Title != t.OriginalTitle
}

// TimeString formats the track offset for display.
func (t Track) TimeString() string {
	return FormatTimestamp(t.Timestamp)
}

// Tracklist is the ordered result of identifying one recording.
type Tracklist struct {
	SourceFile  string
	GeneratedOn string
	Duration    time.Duration
	Tracks      []Track
}

// Active returns the tracks that were not rejected, in order.
func (tl Tracklist) Active() []Track {
	out := make([]Track, 0, len(tl.Tracks))
	for _, track := range tl.Tracks {
		if !track.Rejected {
			out = append(out, track)
		}
	}
	return out
}

// Identified counts active tracks with a match.
func (tl Tracklist) Identified() int {
	n := 0
	for _, track := range tl.Active() {
		if !track.Unidentified() {
			n++
		}
	}
	return n
}

// FormatTimestamp renders d as M:SS, or H:MM:SS from one hour on. Sub-second
// precision is truncated.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

// ParseTimestamp parses the M:SS and H:MM:SS forms written by FormatTimestamp.
func ParseTimestamp(value string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	var total int64
	for i, part := range parts {
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		if i > 0 && n >= 60 {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second, nil
}
