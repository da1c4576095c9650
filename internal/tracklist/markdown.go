package tracklist

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var (
	headerPrefix    = "# Tracklist:"
	generatedRegexp = regexp.MustCompile(`^\*Generated on (.+)\*$`)
	trackRegexp     = regexp.MustCompile(`^\d+\.\s+(?:\*\*(.+?)\*\*\s*-\s*(.+?)|\*Unidentified\*)\s*\((\d+:\d+(?::\d+)?)\)$`)
)

// RenderMarkdown renders the active tracks, numbered from 1.
func RenderMarkdown(tl Tracklist) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", headerPrefix, tl.SourceFile)
	if tl.GeneratedOn != "" {
		fmt.Fprintf(&b, "*Generated on %s*\n\n", tl.GeneratedOn)
	}
	for i, track := range tl.Active() {
		num := strconv.Itoa(i + 1)
		if track.Unidentified() {
			fmt.Fprintf(&b, "%s. *Unidentified* (%s)\n", num, track.TimeString())
			continue
		}
		fmt.Fprintf(&b, "%s. **%s** - %s (%s)\n", num, track.Artist, track.Title, track.TimeString())
	}
	return b.String()
}

// ParseMarkdown reads a tracklist written by RenderMarkdown. Lines that are not
// part of the format are ignored. Parsed tracks record their names as the
// originals so later edits show up as corrections.
func ParseMarkdown(r io.Reader) (Tracklist, error) {
	var tl Tracklist
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, headerPrefix) && tl.SourceFile == "":
			tl.SourceFile = strings.TrimSpace(strings.TrimPrefix(line, headerPrefix))
			continue
		}
		if m := generatedRegexp.FindStringSubmatch(line); m != nil && tl.GeneratedOn == "" {
			tl.GeneratedOn = strings.TrimSpace(m[1])
			continue
		}
		m := trackRegexp.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		ts, err := ParseTimestamp(m[3])
		if err != nil {
			return Tracklist{}, err
		}
		artist := strings.TrimSpace(m[1])
		title := strings.TrimSpace(m[2])
		tl.Tracks = append(tl.Tracks, Track{
			Timestamp:      ts,
			Artist:         artist,
			Title:          title,
			OriginalArtist: artist,
			OriginalTitle:  title,
		})
	}
	if err := scanner.Err(); err != nil {
		return Tracklist{}, fmt.Errorf("read tracklist: %w", err)
	}
	return tl, nil
}
