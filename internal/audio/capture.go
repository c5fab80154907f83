package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// StopReason explains why a recording ended.
type StopReason string

const (
	// StopSilence indicates the silence timeout elapsed.
	StopSilence StopReason = "silence_timeout"
	// StopInterrupted indicates the context was cancelled.
	StopInterrupted StopReason = "interrupted"
	// StopStreamFailure indicates the driver reported a dead stream.
	StopStreamFailure StopReason = "stream_failure"
)

// Format describes the PCM layout of a recording.
type Format struct {
	SampleRate  int
	Channels    int
	SampleWidth int // bytes per sample
}

// WaveWriter persists captured PCM data to a file.
type WaveWriter interface {
	WriteWave(ctx context.Context, path string, format Format, data []byte) error
}

// Recording is the result of a capture session.
type Recording struct {
	Device   Device
	Format   Format
	Data     []byte
	Frames   int
	Path     string
	Reason   StopReason
	Duration time.Duration
}

// RecordOpts configures the silence-gated capture loop.
type RecordOpts struct {
	// SilenceThreshold is the RMS level a frame must exceed to count as sound.
	SilenceThreshold float64
	// SilenceTimeout is how long sub-threshold audio may last before capture stops.
	SilenceTimeout time.Duration
	// PollInterval is how often the control loop checks the stop conditions.
	PollInterval time.Duration
	// FrameSize is the number of sample frames per driver callback.
	FrameSize int
}

// DefaultRecordOpts returns the default options for recording.
func DefaultRecordOpts() RecordOpts {
	return RecordOpts{
		SilenceThreshold: 500,
		SilenceTimeout:   30 * time.Second,
		PollInterval:     100 * time.Millisecond,
		FrameSize:        DefaultFrameSize,
	}
}

// Session is the state shared between the driver callback and the control loop.
// The callback appends frames and moves lastLoud forward; the control loop only
// reads lastLoud until the stream is stopped.
type Session struct {
	channels  int
	threshold float64
	started   time.Time
	logger    *slog.Logger

	mu     sync.Mutex
	frames [][]byte
	size   int

	// lastLoud is the offset from started of the most recent loud frame.
	lastLoud atomic.Int64
	active   atomic.Bool
	failed   chan error
}

func newSession(channels int, threshold float64, logger *slog.Logger) *Session {
	s := &Session{
		channels:  channels,
		threshold: threshold,
		started:   time.Now(),
		logger:    logger,
		failed:    make(chan error, 1),
	}
	s.active.Store(true)
	return s
}

// onFrame is the driver callback. It must not block.
func (s *Session) onFrame(frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in capture callback", slog.Any("error", r))
		}
	}()

	if !s.active.Load() {
		return
	}

	buf := make([]byte, len(frame))
	copy(buf, frame)

	s.mu.Lock()
	s.frames = append(s.frames, buf)
	s.size += len(buf)
	s.mu.Unlock()

	// A failed RMS computation counts as silence.
	level, err := FrameRMS(buf, s.channels)
	if err == nil && level > s.threshold {
		s.lastLoud.Store(int64(time.Since(s.started)))
	}
}

// onError is the driver error callback.
func (s *Session) onError(err error) {
	select {
	case s.failed <- err:
	default:
	}
}

// SilentFor returns the time elapsed since the last loud frame, or since the
// session started when no loud frame has arrived yet.
func (s *Session) SilentFor() time.Duration {
	return time.Since(s.started) - time.Duration(s.lastLoud.Load())
}

// Bytes returns the concatenation of all delivered frames in arrival order.
func (s *Session) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, 0, s.size)
	for _, f := range s.frames {
		out = append(out, f...)
	}
	return out
}

// FrameCount returns the number of frames delivered so far.
func (s *Session) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// Recorder captures audio from a loopback device until silence or interrupt.
type Recorder struct {
	driver Driver
	writer WaveWriter
	logger *slog.Logger
	opts   RecordOpts
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecordOpts sets the capture loop options.
func WithRecordOpts(opts RecordOpts) RecorderOption {
	return func(r *Recorder) {
		r.opts = opts
	}
}

// NewRecorder creates a new Recorder.
func NewRecorder(driver Driver, writer WaveWriter, logger *slog.Logger, opts ...RecorderOption) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		driver: driver,
		writer: writer,
		logger: logger,
		opts:   DefaultRecordOpts(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.opts.PollInterval <= 0 {
		r.opts.PollInterval = 100 * time.Millisecond
	}
	if r.opts.FrameSize <= 0 {
		r.opts.FrameSize = DefaultFrameSize
	}
	return r
}

// Record streams audio from the device into memory until ctx is cancelled,
// the silence timeout elapses or the stream dies, then writes everything
// captured to outputPath. A stream failure is logged, not returned.
func (r *Recorder) Record(ctx context.Context, deviceID int, outputPath string) (*Recording, error) {
	devices, err := r.driver.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate devices: %w", ErrDeviceUnavailable, err)
	}
	dev, ok := FindDevice(devices, deviceID)
	if !ok {
		return nil, fmt.Errorf("%w: no device with index %d", ErrDeviceUnavailable, deviceID)
	}

	r.logger.Info("using loopback device",
		slog.Int("device", dev.ID),
		slog.String("name", dev.Name),
		slog.Int("sample_rate", dev.SampleRate),
		slog.Int("channels", dev.Channels),
	)

	sess := newSession(dev.Channels, r.opts.SilenceThreshold, r.logger)
	cfg := StreamConfig{SampleRate: dev.SampleRate, Channels: dev.Channels, FrameSize: r.opts.FrameSize}
	stream, err := r.driver.Open(dev, cfg, sess.onFrame, sess.onError)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("%w: start stream: %w", ErrDeviceUnavailable, err)
	}

	r.logger.Info("recording desktop audio, press Ctrl+C to stop",
		slog.Duration("silence_timeout", r.opts.SilenceTimeout),
	)

	reason := r.wait(ctx, sess)

	if err := stream.Stop(); err != nil {
		r.logger.Warn("stop stream", slog.String("error", err.Error()))
	}
	sess.active.Store(false)
	if err := stream.Close(); err != nil {
		r.logger.Warn("close stream", slog.String("error", err.Error()))
	}

	rec := &Recording{
		Device: dev,
		Format: Format{
			SampleRate:  dev.SampleRate,
			Channels:    dev.Channels,
			SampleWidth: r.driver.SampleSize(),
		},
		Data:     sess.Bytes(),
		Frames:   sess.FrameCount(),
		Path:     outputPath,
		Reason:   reason,
		Duration: time.Since(sess.started),
	}

	// Persist even when interrupted; ctx may already be done.
	if err := r.writer.WriteWave(context.WithoutCancel(ctx), outputPath, rec.Format, rec.Data); err != nil {
		return rec, fmt.Errorf("write recording: %w", err)
	}

	r.logger.Info("audio recording saved",
		slog.String("path", outputPath),
		slog.Int("frames", rec.Frames),
		slog.Int("bytes", len(rec.Data)),
		slog.String("reason", string(reason)),
	)
	return rec, nil
}

// wait runs the control loop until a stop condition holds.
func (r *Recorder) wait(ctx context.Context, sess *Session) StopReason {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("interrupt received, stopping recording")
			return StopInterrupted
		case err := <-sess.failed:
			r.logger.Warn("capture stream failed, keeping audio collected so far",
				slog.String("error", err.Error()),
			)
			return StopStreamFailure
		case <-ticker.C:
			if sess.SilentFor() > r.opts.SilenceTimeout {
				r.logger.Info("no significant audio for the timeout period, stopping recording")
				return StopSilence
			}
		}
	}
}
