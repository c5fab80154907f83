// Package transcribe provides the use case that turns a recorded lecture into a
// text file: decode the input, run speech recognition, render and persist.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/YodaGitMaster/EasyLecture/internal/media"
	"github.com/YodaGitMaster/EasyLecture/internal/recognizer"
	"github.com/YodaGitMaster/EasyLecture/internal/storage"
	"github.com/YodaGitMaster/EasyLecture/internal/transcript"
)

// Static errors for the transcription use case.
var (
	// ErrInputRequired is returned when no input file is given.
	ErrInputRequired = errors.New("input file is required")
	// ErrOutputRequired is returned when no output file is given.
	ErrOutputRequired = errors.New("output file is required")
)

// Input contains the parameters of one transcription.
type Input struct {
	// InputPath is the audio or video file to transcribe.
	InputPath string
	// OutputPath is the text file to write.
	OutputPath string
	// Timestamps renders "[start-end] text" lines instead of plain text.
	Timestamps bool
	// Upload publishes the output file to object storage when enabled.
	Upload bool
}

// Output contains the result of a transcription.
type Output struct {
	OutputPath string
	// URL is set when the output was uploaded.
	URL string
	// Text is the rendered content written to OutputPath.
	Text string
	// AudioDuration is the input duration in seconds, 0 when unknown.
	AudioDuration float64
	Elapsed       time.Duration
}

// Service orchestrates input preparation, recognition and persistence.
type Service struct {
	converter  media.Converter
	recognizer recognizer.Recognizer
	store      storage.Storage
	logger     *slog.Logger

	opts        recognizer.Options
	maxDuration float64
	tempDir     string
}

// Option configures a Service.
type Option func(*Service)

// WithRecognizerOptions sets the options sent with each recognition request.
func WithRecognizerOptions(o recognizer.Options) Option {
	return func(s *Service) {
		s.opts = o
	}
}

// WithMaxSegmentDuration sets the longest timestamped line in seconds.
func WithMaxSegmentDuration(sec float64) Option {
	return func(s *Service) {
		if sec > 0 {
			s.maxDuration = sec
		}
	}
}

// WithTempDir sets the directory used for converted inputs.
func WithTempDir(dir string) Option {
	return func(s *Service) {
		s.tempDir = dir
	}
}

// NewService creates a new transcription Service.
func NewService(conv media.Converter, rec recognizer.Recognizer, store storage.Storage, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		converter:   conv,
		recognizer:  rec,
		store:       store,
		logger:      logger,
		opts:        recognizer.DefaultOptions(),
		maxDuration: transcript.DefaultMaxDuration,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transcribe runs the complete workflow for one input file.
func (s *Service) Transcribe(ctx context.Context, in Input) (*Output, error) {
	if in.InputPath == "" {
		return nil, ErrInputRequired
	}
	if in.OutputPath == "" {
		return nil, ErrOutputRequired
	}

	start := time.Now()
	s.logger.Info("starting transcription",
		slog.String("input", in.InputPath),
		slog.String("output", in.OutputPath),
		slog.String("model", s.opts.Model),
		slog.Bool("timestamps", in.Timestamps),
	)

	prepared, err := s.converter.Prepare(ctx, in.InputPath, s.tempDir)
	if err != nil {
		return nil, fmt.Errorf("prepare input: %w", err)
	}
	if prepared.Converted {
		defer func() {
			if err := s.store.CleanupTemp(context.WithoutCancel(ctx), []string{prepared.Path}); err != nil {
				s.logger.Warn("failed to remove converted input",
					slog.String("path", prepared.Path),
					slog.String("error", err.Error()),
				)
			}
		}()
	}

	opts := s.opts
	opts.Timestamps = in.Timestamps
	result, err := s.recognizer.Recognize(ctx, prepared.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}

	text := s.render(result, in.Timestamps)
	if err := s.store.WriteFile(ctx, in.OutputPath, strings.NewReader(text)); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}

	out := &Output{
		OutputPath:    in.OutputPath,
		Text:          text,
		AudioDuration: prepared.Duration,
	}

	if in.Upload {
		if !s.store.UploadEnabled() {
			s.logger.Warn("upload requested but object storage is not configured")
		} else {
			url, err := s.store.Upload(ctx, filepath.Base(in.OutputPath), in.OutputPath)
			if err != nil {
				return nil, fmt.Errorf("upload output: %w", err)
			}
			out.URL = url
			s.logger.Info("transcript uploaded", slog.String("url", url))
		}
	}

	out.Elapsed = time.Since(start)
	s.logger.Info(fmt.Sprintf("Transcription completed in %.2f seconds", out.Elapsed.Seconds()),
		slog.Float64("audio_seconds", prepared.Duration),
		slog.Int("chars", len(text)),
	)
	return out, nil
}

// render formats the recognizer result for the output file.
func (s *Service) render(result recognizer.Result, timestamps bool) string {
	if !timestamps {
		return result.Text
	}
	if len(result.Chunks) == 0 {
		s.logger.Warn("recognizer returned no timestamped segments, writing plain text")
		return result.Text
	}
	return transcript.Render(result.Chunks, s.maxDuration)
}
