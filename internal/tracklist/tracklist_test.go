package tracklist_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"setlist/internal/services"
	"setlist/internal/tracklist"
)

func sampleTracklist() tracklist.Tracklist {
	return tracklist.Tracklist{
		SourceFile:  "test_mix.mp3",
		GeneratedOn: "2026-01-31 20:00",
		Duration:    12 * time.Minute,
		Tracks: []tracklist.Track{
			{Timestamp: 0, Artist: "Daft Punk", Title: "Around the World", Album: "Homework"},
			{Timestamp: 3 * time.Minute, Artist: "The Chemical Brothers", Title: "Block Rockin' Beats"},
			{Timestamp: 6 * time.Minute},
			{Timestamp: 9 * time.Minute, Artist: "Fatboy Slim", Title: "Praise You", SongURL: "https://example.com/praise"},
		},
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{59*time.Second + 900*time.Millisecond, "0:59"},
		{6 * time.Minute, "6:00"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
		{-time.Second, "0:00"},
	}
	for _, tt := range tests {
		if got := tracklist.FormatTimestamp(tt.in); got != tt.want {
			t.Errorf("FormatTimestamp(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	got, err := tracklist.ParseTimestamp("1:02:03")
	if err != nil || got != time.Hour+2*time.Minute+3*time.Second {
		t.Fatalf("ParseTimestamp = %s, %v", got, err)
	}
	for _, bad := range []string{"", "12", "1:60", "a:00", "1:2:3:4"} {
		if _, err := tracklist.ParseTimestamp(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestRenderMarkdown(t *testing.T) {
	tl := sampleTracklist()
	tl.Tracks[1].Rejected = true
	md := tracklist.RenderMarkdown(tl)

	for _, want := range []string{
		"# Tracklist: test_mix.mp3",
		"*Generated on 2026-01-31 20:00*",
		"1. **Daft Punk** - Around the World (0:00)",
		"2. *Unidentified* (6:00)",
		"3. **Fatboy Slim** - Praise You (9:00)",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "Chemical") {
		t.Error("rejected track should not be rendered")
	}
}

func TestParseMarkdownRoundTrip(t *testing.T) {
	tl := sampleTracklist()
	parsed, err := tracklist.ParseMarkdown(strings.NewReader(tracklist.RenderMarkdown(tl)))
	if err != nil {
		t.Fatalf("ParseMarkdown: %v", err)
	}
	if parsed.SourceFile != tl.SourceFile || parsed.GeneratedOn != tl.GeneratedOn {
		t.Fatalf("header mismatch: %+v", parsed)
	}
	if len(parsed.Tracks) != len(tl.Tracks) {
		t.Fatalf("parsed %d tracks, want %d", len(parsed.Tracks), len(tl.Tracks))
	}
	for i, track := range parsed.Tracks {
		want := tl.Tracks[i]
		if track.Timestamp != want.Timestamp || track.Artist != want.Artist || track.Title != want.Title {
			t.Errorf("track %d = %+v, want %+v", i, track, want)
		}
		if track.Corrected() {
			t.Errorf("freshly parsed track %d should not count as corrected", i)
		}
	}
	if !parsed.Tracks[2].Unidentified() {
		t.Error("expected third track to be unidentified")
	}
}

func TestParseMarkdownIgnoresNoise(t *testing.T) {
	content := "# Tracklist: live.wav\n\nsome notes\n1. **A - B** - C (1:00:00)\n- bullet\n"
	tl, err := tracklist.ParseMarkdown(strings.NewReader(content))
	if err != nil {
		t.Fatalf("ParseMarkdown: %v", err)
	}
	if len(tl.Tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(tl.Tracks))
	}
	if tl.Tracks[0].Artist != "A - B" || tl.Tracks[0].Title != "C" || tl.Tracks[0].Timestamp != time.Hour {
		t.Fatalf("unexpected track %+v", tl.Tracks[0])
	}
}

func TestValidateTimeline(t *testing.T) {
	if err := tracklist.ValidateTimeline(sampleTracklist()); err != nil {
		t.Fatalf("valid timeline rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*tracklist.Tracklist)
	}{
		{"duplicate timestamp", func(tl *tracklist.Tracklist) { tl.Tracks[1].Timestamp = 0 }},
		{"decreasing", func(tl *tracklist.Tracklist) { tl.Tracks[2].Timestamp = time.Minute }},
		{"beyond end", func(tl *tracklist.Tracklist) { tl.Duration = 8 * time.Minute }},
		{"negative", func(tl *tracklist.Tracklist) { tl.Tracks[0].Timestamp = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := sampleTracklist()
			tt.mutate(&tl)
			err := tracklist.ValidateTimeline(tl)
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestWriteAndLoad(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "Live: Set 1.mp3")
	outDir := filepath.Join(dir, "out")

	mdPath, jsonPath, err := tracklist.Write(sampleTracklist(), audio, outDir)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if mdPath != filepath.Join(outDir, "Live- Set 1_tracklist.md") {
		t.Fatalf("unexpected markdown path %q", mdPath)
	}
	if _, err := os.Stat(jsonPath); err != nil {
		t.Fatalf("expected json sidecar: %v", err)
	}

	loaded, err := tracklist.Load(mdPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Duration != 12*time.Minute {
		t.Fatalf("sidecar lost duration: %s", loaded.Duration)
	}
	if loaded.Tracks[0].Album != "Homework" || loaded.Tracks[3].SongURL == "" {
		t.Fatalf("sidecar lost metadata: %+v", loaded.Tracks)
	}

	if err := os.Remove(jsonPath); err != nil {
		t.Fatal(err)
	}
	fromMarkdown, err := tracklist.Load(mdPath)
	if err != nil {
		t.Fatalf("Load markdown only: %v", err)
	}
	if len(fromMarkdown.Tracks) != 4 || fromMarkdown.Tracks[3].Timestamp != 9*time.Minute {
		t.Fatalf("unexpected markdown fallback: %+v", fromMarkdown.Tracks)
	}
}

func TestOutputPathsBesideAudio(t *testing.T) {
	md, js := tracklist.OutputPaths("/music/mix.flac", "")
	if md != "/music/mix_tracklist.md" || js != "/music/mix_tracklist.json" {
		t.Fatalf("unexpected paths %q %q", md, js)
	}
}
