package deps

import "strings"

// AudioRequirements lists the binaries needed to decode non-WAV sources.
// WAV input is read natively, so both entries are optional when wavOnly is set.
func AudioRequirements(ffmpegBinary, ffprobeBinary string, wavOnly bool) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     defaultCommand(ffmpegBinary, "ffmpeg"),
			Description: "Decodes compressed audio into PCM windows",
			Optional:    wavOnly,
		},
		{
			Name:        "FFprobe",
			Command:     defaultCommand(ffprobeBinary, "ffprobe"),
			Description: "Reads source duration before sampling",
			Optional:    wavOnly,
		},
	}
}

func defaultCommand(configured, fallback string) string {
	if trimmed := strings.TrimSpace(configured); trimmed != "" {
		return trimmed
	}
	return fallback
}
