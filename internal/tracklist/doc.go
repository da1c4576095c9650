// Package tracklist defines the Track and Tracklist types produced by the
// identification pipeline and renders them for people and tools.
//
// A Tracklist is written twice: as Markdown ("N. **Artist** - Title (MM:SS)")
// for reading and editing, and as a JSON sidecar that keeps artwork, album,
// and link metadata the Markdown form drops. ParseMarkdown reads the Markdown
// form back so edited tracklists can be inspected again.
package tracklist
