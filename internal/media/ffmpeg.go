package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Static errors for media operations.
var (
	// ErrInputNotFound is returned when the input file does not exist.
	ErrInputNotFound = errors.New("input file does not exist")
	// ErrDurationUnknown is returned when ffmpeg output carries no duration.
	ErrDurationUnknown = errors.New("could not parse duration from ffmpeg output")
)

var durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)

// FFmpegConverter implements Converter using the ffmpeg CLI.
type FFmpegConverter struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
}

// NewFFmpegConverter creates a new FFmpegConverter.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegConverter(ffmpegPath string) *FFmpegConverter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegConverter{ffmpegPath: ffmpegPath}
}

// Prepare implements Converter.Prepare.
func (c *FFmpegConverter) Prepare(ctx context.Context, input, tempDir string) (Prepared, error) {
	if _, err := os.Stat(input); err != nil {
		if os.IsNotExist(err) {
			return Prepared{}, fmt.Errorf("%w: %s", ErrInputNotFound, input)
		}
		return Prepared{}, fmt.Errorf("stat input: %w", err)
	}

	duration, err := c.Duration(ctx, input)
	if err != nil {
		if ctx.Err() != nil {
			return Prepared{}, fmt.Errorf("probe cancelled: %w", ctx.Err())
		}
		// Recognition does not need the duration.
		duration = 0
	}

	if IsWAV(input) {
		return Prepared{Path: input, Duration: duration}, nil
	}

	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return Prepared{}, fmt.Errorf("create temp directory: %w", err)
	}
	f, err := os.CreateTemp(tempDir, "*_"+strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))+".wav")
	if err != nil {
		return Prepared{}, fmt.Errorf("create temp file: %w", err)
	}
	output := f.Name()
	_ = f.Close()

	args := []string{
		"-y",        // Overwrite output file
		"-i", input, // Input file
		"-vn",                               // Drop any video stream
		"-ac", strconv.Itoa(TargetChannels), // Mono
		"-ar", strconv.Itoa(TargetSampleRate), // 16 kHz
		"-c:a", "pcm_s16le", // 16-bit PCM
		output,
	}
	if err := c.runFFmpeg(ctx, args); err != nil {
		_ = os.Remove(output)
		return Prepared{}, fmt.Errorf("convert %s: %w", input, err)
	}

	return Prepared{Path: output, Converted: true, Duration: duration}, nil
}

// Duration implements Converter.Duration.
func (c *FFmpegConverter) Duration(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, c.ffmpegPath,
		"-i", path,
		"-hide_banner",
		"-f", "null", "-",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// ffmpeg writes duration info to stderr and may exit non-zero with a null sink.
	_ = cmd.Run()
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	return parseDuration(stderr.String())
}

// parseDuration extracts "Duration: HH:MM:SS.frac" from ffmpeg output.
func parseDuration(output string) (float64, error) {
	matches := durationRe.FindStringSubmatch(output)
	if len(matches) < 5 {
		return 0, ErrDurationUnknown
	}

	hours, _ := strconv.ParseFloat(matches[1], 64)
	minutes, _ := strconv.ParseFloat(matches[2], 64)
	seconds, _ := strconv.ParseFloat(matches[3], 64)
	frac, _ := strconv.ParseFloat("0."+matches[4], 64)

	return hours*3600 + minutes*60 + seconds + frac, nil
}

// IsWAV reports whether path has a .wav extension.
func IsWAV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".wav")
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (c *FFmpegConverter) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// Verify interface implementation at compile time.
var _ Converter = (*FFmpegConverter)(nil)
