package corrections

import (
	"errors"

	"setlist/internal/recognition"
	"setlist/internal/services"
	"setlist/internal/tracklist"
)

// ApplyMatch rewrites m through l. When a rule fires, the misheard pair is
// kept in OriginalArtist and OriginalTitle. A match that already carries an
// original pair is looked up by that pair, so replaying is idempotent.
func ApplyMatch(l Lookup, m recognition.Match) (recognition.Match, bool) {
	if l == nil {
		return m, false
	}
	heardArtist, heardTitle := m.Artist, m.Title
	if m.OriginalArtist != "" || m.OriginalTitle != "" {
		heardArtist, heardTitle = m.OriginalArtist, m.OriginalTitle
	}
	artist, title := l.Lookup(heardArtist, heardTitle)
	if artist == heardArtist && title == heardTitle {
		return m, false
	}
	m.OriginalArtist, m.OriginalTitle = heardArtist, heardTitle
	m.Artist, m.Title = artist, title
	return m, true
}

// Apply rewrites an identified outcome and leaves every other kind alone.
func Apply(l Lookup, o recognition.Outcome) recognition.Outcome {
	if !o.IsIdentified() {
		return o
	}
	o.Match, _ = ApplyMatch(l, o.Match)
	return o
}

// Learn compares a generated tracklist with a hand-edited copy of it and
// records a rule for every identified track whose name changed. Tracks are
// paired by timestamp; edited entries that were rejected, blanked or added
// are ignored. It returns the rules it stored.
func Learn(store *Store, generated, edited []tracklist.Track) ([]Rule, error) {
	byTime := make(map[string]tracklist.Track, len(generated))
	for _, track := range generated {
		byTime[track.TimeString()] = track
	}

	var learned []Rule
	for _, after := range edited {
		if after.Rejected || after.Unidentified() {
			continue
		}
		before, ok := byTime[after.TimeString()]
		if !ok || before.Unidentified() {
			continue
		}
		heardArtist, heardTitle := before.Artist, before.Title
		if before.OriginalArtist != "" || before.OriginalTitle != "" {
			heardArtist, heardTitle = before.OriginalArtist, before.OriginalTitle
		}
		if after.Artist == before.Artist && after.Title == before.Title {
			continue
		}
		if after.Artist == heardArtist && after.Title == heardTitle {
			// The edit undid an earlier correction.
			if err := store.Remove(heardArtist, heardTitle); err != nil && !errors.Is(err, services.ErrNotFound) {
				return learned, err
			}
			continue
		}
		rule, err := store.Add(heardArtist, heardTitle, after.Artist, after.Title)
		if err != nil {
			return learned, err
		}
		learned = append(learned, rule)
	}
	return learned, nil
}
