package preflight

import (
	"strings"

	"setlist/internal/deps"
)

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// FromDeps converts binary availability into preflight results so status
// output can render both in one table. Optional binaries always pass.
func FromDeps(statuses []deps.Status) []Result {
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		r := Result{Name: status.Name, Passed: status.Available || status.Optional}
		switch {
		case status.Available:
			r.Detail = status.Path
		case status.Optional:
			r.Detail = strings.TrimSpace(status.Detail + " (optional)")
		default:
			r.Detail = status.Detail
		}
		results = append(results, r)
	}
	return results
}
