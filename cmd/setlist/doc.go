// Command setlist identifies the tracks in long DJ-set recordings and writes
// timestamped tracklists.
//
// Running "setlist <files or directories>" is shorthand for
// "setlist identify". Other verbs inspect saved progress, manage the learned
// correction table, render existing tracklists, and check the environment.
package main
