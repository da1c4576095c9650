// Package preflight provides readiness checks for the filesystem paths,
// credentials, and external tools an identification run depends on.
//
// These checks run in two contexts:
//   - "setlist identify" calls RunAll and CheckSystemDeps before touching the
//     recognition service so a missing token or unwritable state directory
//     fails in seconds rather than an hour into a recording.
//   - "setlist check" renders every result as a status table.
package preflight
