// Package corrections stores learned fixes for tracks the recognition service
// keeps mislabelling.
//
// Rules map a normalized (artist, title) pair to the corrected pair and are
// persisted as JSON:
//
//	{"corrections": {"<artist>|||<title>": {"artist": ..., "title": ..., ...}}}
//
// Lookups never fail: a missing or unreadable file behaves like an empty
// table.
package corrections
