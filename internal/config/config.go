// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalid is returned when a variable fails validation.
	ErrInvalid = errors.New("config: invalid configuration")
	// ErrRecognizerURLRequired is returned when RECOGNIZER_URL is needed but not set.
	ErrRecognizerURLRequired = errors.New("config: RECOGNIZER_URL is required")
)

// Config holds all configuration for the record and transcribe tools.
type Config struct {
	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format" validate:"oneof=text json"`
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level" validate:"oneof=debug info warn warning error"`

	// Device probing
	ProbeDuration     time.Duration `env:"PROBE_DURATION, default=2s" json:"probe_duration" validate:"gt=0"`
	ProbeRMSThreshold float64       `env:"PROBE_RMS_THRESHOLD, default=500" json:"probe_rms_threshold" validate:"gte=0"`

	// Capture settings
	SilenceThreshold float64       `env:"SILENCE_THRESHOLD, default=500" json:"silence_threshold" validate:"gte=0"`
	SilenceTimeout   time.Duration `env:"SILENCE_TIMEOUT, default=30s" json:"silence_timeout" validate:"gt=0"`
	PollInterval     time.Duration `env:"POLL_INTERVAL, default=100ms" json:"poll_interval" validate:"gt=0"`
	FrameSize        int           `env:"FRAME_SIZE, default=1024" json:"frame_size" validate:"gte=1"`
	OutputFile       string        `env:"OUTPUT_FILE, default=output_audio.wav" json:"output_file" validate:"required"`

	// Recognition settings
	RecognizerURL    string  `env:"RECOGNIZER_URL" json:"recognizer_url,omitempty" validate:"omitempty,url"`
	RecognizerAPIKey string  `env:"RECOGNIZER_API_KEY" json:"-"` // Masked in JSON
	Model            string  `env:"MODEL, default=openai/whisper-tiny.en" json:"model" validate:"required"`
	ChunkLengthSec   int     `env:"CHUNK_LENGTH_SEC, default=30" json:"chunk_length_sec" validate:"gte=1"`
	BatchSize        int     `env:"BATCH_SIZE, default=8" json:"batch_size" validate:"gte=1,lte=64"`
	MaxSegmentSec    float64 `env:"MAX_SEGMENT_SEC, default=30" json:"max_segment_sec" validate:"gte=1"`
	FFmpegPath       string  `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/easylecture" json:"temp_dir"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty" validate:"required_with=S3Bucket"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	S3Prefix           string `env:"S3_PREFIX" json:"s3_prefix,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig
// and validates the result.
func Load() (*Config, error) {
	return load(context.Background(), envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field against its validate tag.
func (c *Config) Validate() error {
	c.LogFormat = strings.ToLower(c.LogFormat)
	c.LogLevel = strings.ToLower(c.LogLevel)

	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// ValidateTranscribe checks the settings only the transcribe tool needs.
func (c *Config) ValidateTranscribe() error {
	if c.RecognizerURL == "" {
		return ErrRecognizerURLRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
// Logs go to stderr so they never interleave with interactive prompts.
func (c *Config) NewLogger() *slog.Logger {
	return c.newLogger(os.Stderr)
}

func (c *Config) newLogger(w io.Writer) *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{ProbeDuration: %s, ProbeRMSThreshold: %g, SilenceThreshold: %g, SilenceTimeout: %s, PollInterval: %s, FrameSize: %d, OutputFile: %s, RecognizerURL: %s, RecognizerAPIKey: %s, Model: %s, ChunkLengthSec: %d, BatchSize: %d, MaxSegmentSec: %g, TempDir: %s, S3Bucket: %s, S3Region: %s, AWSSecretAccessKey: %s, LogFormat: %s, LogLevel: %s}",
		c.ProbeDuration,
		c.ProbeRMSThreshold,
		c.SilenceThreshold,
		c.SilenceTimeout,
		c.PollInterval,
		c.FrameSize,
		c.OutputFile,
		c.RecognizerURL,
		mask(c.RecognizerAPIKey),
		c.Model,
		c.ChunkLengthSec,
		c.BatchSize,
		c.MaxSegmentSec,
		c.TempDir,
		c.S3Bucket,
		c.S3Region,
		mask(c.AWSSecretAccessKey),
		c.LogFormat,
		c.LogLevel,
	)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
