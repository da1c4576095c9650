package tracklist

import (
	"fmt"
	"time"

	"setlist/internal/services"
)

// ValidateTimeline checks the guarantees tag embedders rely on: timestamps are
// strictly increasing and fall inside [0, duration). A zero duration skips the
// upper bound.
func ValidateTimeline(tl Tracklist) error {
	var prev time.Duration = -1
	for i, track := range tl.Tracks {
		if track.Timestamp < 0 {
			return services.Wrap(services.ErrValidation, "tracklist", "validate timeline",
				fmt.Sprintf("track %d has negative timestamp %s", i+1, track.Timestamp), nil)
		}
		if track.Timestamp <= prev {
			return services.Wrap(services.ErrValidation, "tracklist", "validate timeline",
				fmt.Sprintf("track %d at %s does not follow %s", i+1, FormatTimestamp(track.Timestamp), FormatTimestamp(prev)), nil)
		}
		if tl.Duration > 0 && track.Timestamp >= tl.Duration {
			return services.Wrap(services.ErrValidation, "tracklist", "validate timeline",
				fmt.Sprintf("track %d at %s is beyond recording end %s", i+1, FormatTimestamp(track.Timestamp), FormatTimestamp(tl.Duration)), nil)
		}
		prev = track.Timestamp
	}
	return nil
}
