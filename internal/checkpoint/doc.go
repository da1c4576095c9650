// Package checkpoint persists per-window progress so an interrupted run can
// resume without querying the recognition service again.
//
// Progress lives in a SQLite database (WAL, synchronous=FULL). A record is
// keyed by the absolute source path and guarded by a digest of the file's
// path, size and modification time; a record whose digest no longer matches
// the file is refused rather than resumed. Every window is appended in its
// own transaction, so a crash between windows leaves a usable record.
//
// Lock takes an exclusive per-source lock file so that two runs never
// interleave writes for the same recording.
package checkpoint
