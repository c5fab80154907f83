package audio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultFrameSize is the number of sample frames per driver callback.
const DefaultFrameSize = 1024

// Prober measures the signal energy of loopback devices one at a time.
type Prober struct {
	driver    Driver
	logger    *slog.Logger
	frameSize int
}

// NewProber creates a new Prober.
func NewProber(driver Driver, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{driver: driver, logger: logger, frameSize: DefaultFrameSize}
}

// Probe captures duration of audio from each device in order and returns the
// devices whose RMS exceeds threshold, in probe order. A failing device is
// logged and treated as inactive. Probes never overlap.
func (p *Prober) Probe(ctx context.Context, devices []Device, duration time.Duration, threshold float64) []ProbeResult {
	p.logger.Info("testing loopback devices for audio activity",
		slog.Int("devices", len(devices)),
		slog.Duration("duration", duration),
	)

	var active []ProbeResult
	for _, dev := range devices {
		if ctx.Err() != nil {
			p.logger.Warn("device probing interrupted")
			break
		}

		p.logger.Info("testing device", slog.Int("device", dev.ID), slog.String("name", dev.Name))

		level, err := p.measure(ctx, dev, duration)
		if err != nil {
			p.logger.Error("error testing device",
				slog.Int("device", dev.ID),
				slog.String("name", dev.Name),
				slog.String("error", err.Error()),
			)
			continue
		}

		p.logger.Info("device energy", slog.Int("device", dev.ID), slog.Float64("rms", level))
		if level > threshold {
			p.logger.Info("audio detected", slog.Int("device", dev.ID), slog.String("name", dev.Name))
			active = append(active, ProbeResult{DeviceID: dev.ID, Name: dev.Name, RMS: level})
		} else {
			p.logger.Info("no significant audio", slog.Int("device", dev.ID), slog.String("name", dev.Name))
		}
	}
	return active
}

// measure records a short sample from dev and returns its RMS.
// The stream is stopped and closed before measure returns.
func (p *Prober) measure(ctx context.Context, dev Device, duration time.Duration) (float64, error) {
	var (
		mu  sync.Mutex
		buf bytes.Buffer
	)
	onFrame := func(frame []byte) {
		mu.Lock()
		buf.Write(frame)
		mu.Unlock()
	}

	cfg := StreamConfig{SampleRate: dev.SampleRate, Channels: dev.Channels, FrameSize: p.frameSize}
	stream, err := p.driver.Open(dev, cfg, onFrame, func(error) {})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			p.logger.Warn("close probe stream", slog.Int("device", dev.ID), slog.String("error", err.Error()))
		}
	}()

	if err := stream.Start(); err != nil {
		return 0, fmt.Errorf("start stream: %w", err)
	}

	timer := time.NewTimer(duration)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
	}

	if err := stream.Stop(); err != nil {
		return 0, fmt.Errorf("stop stream: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	return FrameRMS(buf.Bytes(), dev.Channels)
}
