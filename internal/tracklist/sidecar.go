package tracklist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"setlist/internal/fileutil"
	"setlist/internal/textutil"
)

type sidecar struct {
	SourceFile      string         `json:"source_file"`
	GeneratedOn     string         `json:"generated_on,omitempty"`
	DurationSeconds float64        `json:"duration_seconds,omitempty"`
	Tracks          []sidecarTrack `json:"tracks"`
}

type sidecarTrack struct {
	TimestampSeconds float64 `json:"timestamp"`
	Time             string  `json:"time"`
	Track
}

// MarshalSidecar encodes the active tracks with their full metadata.
func MarshalSidecar(tl Tracklist) ([]byte, error) {
	doc := sidecar{
		SourceFile:      tl.SourceFile,
		GeneratedOn:     tl.GeneratedOn,
		DurationSeconds: tl.Duration.Seconds(),
		Tracks:          []sidecarTrack{},
	}
	for _, track := range tl.Active() {
		doc.Tracks = append(doc.Tracks, sidecarTrack{
			TimestampSeconds: track.Timestamp.Seconds(),
			Time:             track.TimeString(),
			Track:            track,
		})
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tracklist: %w", err)
	}
	return append(data, '\n'), nil
}

// UnmarshalSidecar decodes a document written by MarshalSidecar.
func UnmarshalSidecar(data []byte) (Tracklist, error) {
	var doc sidecar
	if err := json.Unmarshal(data, &doc); err != nil {
		return Tracklist{}, fmt.Errorf("decode tracklist: %w", err)
	}
	tl := Tracklist{
		SourceFile:  doc.SourceFile,
		GeneratedOn: doc.GeneratedOn,
		Duration:    secondsToDuration(doc.DurationSeconds),
		Tracks:      make([]Track, 0, len(doc.Tracks)),
	}
	for _, st := range doc.Tracks {
		track := st.Track
		track.Timestamp = secondsToDuration(st.TimestampSeconds)
		tl.Tracks = append(tl.Tracks, track)
	}
	return tl, nil
}

// OutputPaths returns the Markdown and JSON paths for an audio file. An empty
// outputDir places them beside the audio.
func OutputPaths(audioPath, outputDir string) (markdownPath, jsonPath string) {
	dir := outputDir
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Dir(audioPath)
	}
	base := filepath.Base(audioPath)
	stem := textutil.SanitizeFileName(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" {
		stem = "recording"
	}
	prefix := filepath.Join(dir, stem+"_tracklist")
	return prefix + ".md", prefix + ".json"
}

// Write stores the Markdown and JSON forms of tl atomically and returns their
// paths.
func Write(tl Tracklist, audioPath, outputDir string) (markdownPath, jsonPath string, err error) {
	markdownPath, jsonPath = OutputPaths(audioPath, outputDir)
	if err := fileutil.WriteFileAtomic(markdownPath, []byte(RenderMarkdown(tl)), 0o644); err != nil {
		return "", "", fmt.Errorf("write markdown tracklist: %w", err)
	}
	data, err := MarshalSidecar(tl)
	if err != nil {
		return "", "", err
	}
	if err := fileutil.WriteFileAtomic(jsonPath, data, 0o644); err != nil {
		return "", "", fmt.Errorf("write json tracklist: %w", err)
	}
	return markdownPath, jsonPath, nil
}

// Load reads a tracklist from a Markdown file, preferring its JSON sidecar
// when one exists next to it.
func Load(markdownPath string) (Tracklist, error) {
	jsonPath := strings.TrimSuffix(markdownPath, filepath.Ext(markdownPath)) + ".json"
	if fileutil.FileExists(jsonPath) {
		data, err := os.ReadFile(jsonPath)
		if err != nil {
			return Tracklist{}, fmt.Errorf("read tracklist sidecar: %w", err)
		}
		return UnmarshalSidecar(data)
	}
	file, err := os.Open(markdownPath)
	if err != nil {
		return Tracklist{}, fmt.Errorf("open tracklist: %w", err)
	}
	defer file.Close()
	return ParseMarkdown(file)
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second)).Round(time.Millisecond)
}
