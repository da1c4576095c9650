// Package audio turns a recording into the fixed-length sample windows sent to
// the recognition service.
//
// Source is the decoding contract: report a duration and return encoded audio
// for a time range. WAVSource decodes PCM WAV natively with go-audio/wav and
// keeps only the samples still needed by upcoming windows; FFmpegSource covers
// every other container by extracting each range with ffmpeg. Both deliver
// mono WAV bytes.
//
// Sampler walks a Source in strictly increasing window order. Windows may
// overlap when the step is shorter than the window, the final window may be
// shorter than the rest, and a decode failure is reported for its window
// without stopping the walk.
package audio
