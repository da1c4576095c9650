package main

import (
	"strconv"
	"strings"

	"setlist/internal/tracklist"
)

func renderTrackTable(tl tracklist.Tracklist) string {
	headers := []string{"#", "Time", "Artist", "Title", "Note"}
	rows := make([][]string, 0, len(tl.Tracks))
	for i, track := range tl.Active() {
		artist, title := track.Artist, track.Title
		if track.Unidentified() {
			artist, title = "-", "Unidentified"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			track.TimeString(),
			artist,
			title,
			trackNote(track),
		})
	}
	return renderTable(headers, rows, 0, 1)
}

func trackNote(track tracklist.Track) string {
	var notes []string
	if track.Corrected() {
		notes = append(notes, "corrected from "+track.OriginalArtist+" - "+track.OriginalTitle)
	}
	if track.Windows > 1 {
		notes = append(notes, strconv.Itoa(track.Windows)+" windows")
	}
	return strings.Join(notes, "; ")
}
