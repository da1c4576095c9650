package audio

import (
	"testing"
	"time"
)

func TestFrameAtLongRecordings(t *testing.T) {
	tests := []struct {
		name   string
		rate   int
		offset time.Duration
		want   int64
	}{
		{"negative", 44100, -time.Second, 0},
		{"zero", 44100, 0, 0},
		{"fractional second", 44100, 1500 * time.Millisecond, 66150},
		{"sub-second", 48000, 333 * time.Millisecond, 15984},
		{"twelve hours at 96k", 96000, 12*time.Hour + 10*time.Minute, 4_204_800_000},
		{"twenty hours at 192k", 192000, 20 * time.Hour, 13_824_000_000},
		{"twenty hours plus fraction at 192k", 192000, 20*time.Hour + 250*time.Millisecond, 13_824_048_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &WAVSource{sampleRate: tt.rate}
			if got := src.frameAt(tt.offset); got != tt.want {
				t.Fatalf("frameAt(%s) at %d Hz = %d, want %d", tt.offset, tt.rate, got, tt.want)
			}
		})
	}
}
