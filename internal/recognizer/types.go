// Package recognizer provides an HTTP client for OpenAI-compatible speech
// transcription endpoints.
package recognizer

import (
	"context"

	"github.com/YodaGitMaster/EasyLecture/internal/transcript"
)

// Options contains the parameters of one recognition request.
type Options struct {
	Model       string `validate:"required"`     // Model identifier (e.g. "openai/whisper-tiny.en")
	ChunkLength int    `validate:"gte=1"`        // Seconds of audio per model window (default: 30)
	BatchSize   int    `validate:"gte=1,lte=64"` // Windows decoded in parallel (default: 8)
	Timestamps  bool   // Request per-segment timestamps
	Language    string // Optional language hint
}

// DefaultOptions returns the default recognition options.
func DefaultOptions() Options {
	return Options{
		Model:       "openai/whisper-tiny.en",
		ChunkLength: 30,
		BatchSize:   8,
	}
}

// Result is the output of a recognition request. Chunks is only populated
// when timestamps were requested.
type Result struct {
	Text   string
	Chunks []transcript.Chunk
}

// Recognizer turns an audio file into text.
type Recognizer interface {
	Recognize(ctx context.Context, audioPath string, opts Options) (Result, error)
}

// transcriptionResponse is the body returned by /audio/transcriptions.
type transcriptionResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language,omitempty"`
	Segments []segmentPayload `json:"segments,omitempty"`
	Error    *errorPayload    `json:"error,omitempty"`
}

// segmentPayload is one verbose_json segment. Start or end may be null.
type segmentPayload struct {
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
	Text  string   `json:"text"`
}

type errorPayload struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
