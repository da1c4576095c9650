package textutil

import (
	"strings"

	"golang.org/x/text/cases"
)

// keySeparator joins the artist and title halves of a pair key. It cannot occur
// in normalized text.
const keySeparator = "|||"

// CollapseSpace trims s and replaces every run of whitespace with one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Normalize case-folds s and collapses whitespace.
func Normalize(s string) string {
	s = CollapseSpace(s)
	if s == "" {
		return ""
	}
	return cases.Fold().String(s)
}

// PairKey returns the normalized comparison key for an (artist, title) pair.
// Two pairs that differ only by case or whitespace share a key.
func PairKey(artist, title string) string {
	return Normalize(artist) + keySeparator + Normalize(title)
}

// SplitPairKey reverses PairKey. The halves are returned in normalized form.
func SplitPairKey(key string) (artist, title string, ok bool) {
	artist, title, ok = strings.Cut(key, keySeparator)
	return artist, title, ok
}
