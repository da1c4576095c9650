package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

// Extensions lists the file types picked up when a directory is identified.
var Extensions = []string{".mp3", ".wav", ".flac", ".m4a", ".ogg", ".aac", ".wma", ".aiff"}

// IsAudioFile reports whether path has a supported audio extension.
func IsAudioFile(path string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(path)))
}

// Open returns the native WAV decoder for .wav files and an ffmpeg-backed
// source for everything else.
func Open(path string, opts FFmpegOptions) (Source, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		src, err := OpenWAV(path)
		if err == nil {
			return src, nil
		}
		// Non-PCM or unusual WAV layouts still decode through ffmpeg.
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, err
		}
	}
	return NewFFmpegSource(path, opts), nil
}

// Collect expands the given paths into audio files. Directories contribute
// their direct children with a supported extension, sorted by name; files are
// kept as given. Duplicate paths are dropped.
func Collect(paths []string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	add := func(path string) {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("audio path %q: %w", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("read directory %q: %w", path, err)
		}
		var names []string
		for _, entry := range entries {
			if entry.Type().IsRegular() && IsAudioFile(entry.Name()) {
				names = append(names, entry.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			add(filepath.Join(path, name))
		}
	}
	return out, nil
}
