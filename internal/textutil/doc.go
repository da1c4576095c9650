// Package textutil provides text helpers shared by the correction store, the
// deduplication engine, and the tracklist writer.
//
// The primary use cases are:
//   - Building case-insensitive comparison keys for (artist, title) pairs
//   - Sanitizing filenames and path segments for safe filesystem use
//
// Comparison keys fold case with golang.org/x/text/cases so that non-ASCII
// names ("Ø", "ß") compare the way a listener would expect.
package textutil
