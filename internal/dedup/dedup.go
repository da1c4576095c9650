// Package dedup turns the per-window recognition stream of a finished run
// into a tracklist.
package dedup

import (
	"time"

	"setlist/internal/recognition"
	"setlist/internal/textutil"
	"setlist/internal/tracklist"
)

// Entry is one window's recorded outcome. Anything other than an identified
// outcome counts as unidentified.
type Entry struct {
	Start   time.Duration
	Outcome recognition.Outcome
}

// run is a maximal stretch of consecutive windows sharing one value. An
// empty key is the unidentified value.
type run struct {
	key    string
	start  time.Duration
	length int
	match  recognition.Match
}

func (r run) identified() bool {
	return r.key != ""
}

// Build collapses entries into tracks:
//
//  1. consecutive windows with the same normalized (artist, title) form a
//     run; unidentified windows form runs of their own;
//  2. an identified run of one window whose present neighbors all differ
//     from it is reclassified as unidentified, unless it is the only run;
//  3. runs are collapsed again, and an unidentified stretch between two runs
//     of the same track is absorbed into that track.
//
// Entries must be in window order. Build does not modify its input.
func Build(entries []Entry) []tracklist.Track {
	runs := collapse(entries)
	runs = suppressSingletons(runs)
	runs = recollapse(runs)

	tracks := make([]tracklist.Track, 0, len(runs))
	for _, r := range runs {
		track := tracklist.Track{Timestamp: r.start, Windows: r.length}
		if r.identified() {
			track.Artist = r.match.Artist
			track.Title = r.match.Title
			track.Album = r.match.Album
			track.SongURL = r.match.SongURL
			track.ArtworkURL = r.match.ArtworkURL
			track.OriginalArtist = r.match.OriginalArtist
			track.OriginalTitle = r.match.OriginalTitle
		}
		tracks = append(tracks, track)
	}
	return tracks
}

func keyOf(o recognition.Outcome) string {
	if !o.IsIdentified() {
		return ""
	}
	if textutil.Normalize(o.Match.Artist) == "" && textutil.Normalize(o.Match.Title) == "" {
		return ""
	}
	return textutil.PairKey(o.Match.Artist, o.Match.Title)
}

func collapse(entries []Entry) []run {
	var runs []run
	for _, entry := range entries {
		key := keyOf(entry.Outcome)
		if n := len(runs); n > 0 && runs[n-1].key == key {
			runs[n-1].length++
			continue
		}
		r := run{key: key, start: entry.Start, length: 1}
		if key != "" {
			r.match = entry.Outcome.Match
		}
		runs = append(runs, r)
	}
	return runs
}

// suppressSingletons judges every run against the pass-1 neighbors, so
// reclassifying one run never changes the verdict for the next.
func suppressSingletons(runs []run) []run {
	if len(runs) < 2 {
		return runs
	}
	out := make([]run, len(runs))
	copy(out, runs)
	for i, r := range runs {
		if !r.identified() || r.length != 1 {
			continue
		}
		if i > 0 && runs[i-1].key == r.key {
			continue
		}
		if i < len(runs)-1 && runs[i+1].key == r.key {
			continue
		}
		out[i].key = ""
		out[i].match = recognition.Match{}
	}
	return out
}

func recollapse(runs []run) []run {
	var out []run
	for i := 0; i < len(runs); i++ {
		r := runs[i]
		n := len(out)
		if n > 0 && out[n-1].key == r.key {
			out[n-1].length += r.length
			continue
		}
		if n > 0 && !r.identified() && out[n-1].identified() {
			if j, gap := bridge(runs, i, out[n-1].key); j > i {
				out[n-1].length += gap
				i = j - 1
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// bridge looks for an unidentified stretch starting at runs[i] that is
// followed by a run with key. It returns the index of that run and the
// number of unidentified windows in between, or i when there is none.
func bridge(runs []run, i int, key string) (int, int) {
	gap := 0
	j := i
	for ; j < len(runs) && !runs[j].identified(); j++ {
		gap += runs[j].length
	}
	if j < len(runs) && runs[j].key == key {
		return j, gap
	}
	return i, 0
}
