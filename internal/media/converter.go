// Package media prepares arbitrary audio or video inputs for speech recognition.
package media

import "context"

// Recognition input format produced by Converter.Prepare.
const (
	TargetSampleRate = 16000
	TargetChannels   = 1
)

// Prepared describes an input ready for recognition.
type Prepared struct {
	// Path is the WAV file to hand to the recognizer.
	Path string
	// Converted reports whether Path is a temporary file owned by the caller.
	Converted bool
	// Duration is the media duration in seconds, 0 when unknown.
	Duration float64
}

// Converter turns media files into recognizer-ready WAV audio.
type Converter interface {
	// Prepare returns a WAV path for input. WAV inputs are passed through;
	// anything else is decoded into a 16 kHz mono WAV inside tempDir.
	Prepare(ctx context.Context, input, tempDir string) (Prepared, error)

	// Duration returns the duration in seconds of a media file.
	Duration(ctx context.Context, path string) (float64, error)
}
