//go:build cgo && !noaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gen2brain/malgo"
)

// rawFormat is the sample format of every capture stream.
var rawFormat = malgo.FormatS16

const (
	fallbackSampleRate = 48000
	fallbackChannels   = 2
)

// MalgoDriver implements Driver on top of miniaudio loopback capture.
type MalgoDriver struct {
	ctx    *malgo.AllocatedContext
	logger *slog.Logger

	mu  sync.Mutex
	ids map[int]malgo.DeviceID
}

// NewDriver initializes the capture backend.
func NewDriver(logger *slog.Logger) (*MalgoDriver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &MalgoDriver{ctx: ctx, logger: logger, ids: make(map[int]malgo.DeviceID)}, nil
}

// Close releases the backend context.
func (d *MalgoDriver) Close() error {
	if err := d.ctx.Uninit(); err != nil {
		return err
	}
	d.ctx.Free()
	return nil
}

// Devices lists playback endpoints, which loopback capture records from.
func (d *MalgoDriver) Devices(_ context.Context) ([]Device, error) {
	infos, err := d.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("list playback devices: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = make(map[int]malgo.DeviceID, len(infos))

	res := make([]Device, 0, len(infos))
	seen := make(map[malgo.DeviceID]struct{}, len(infos))
	for _, info := range infos {
		full, err := d.ctx.DeviceInfo(malgo.Playback, info.ID, malgo.Shared)
		if err != nil {
			d.logger.Warn("unable to get audio device info", slog.String("error", err.Error()))
			continue
		}
		if _, ok := seen[full.ID]; ok {
			continue
		}
		seen[full.ID] = struct{}{}

		dev := Device{
			ID:         len(res),
			Name:       full.Name(),
			SampleRate: fallbackSampleRate,
			Channels:   fallbackChannels,
		}
		if full.FormatCount > 0 {
			if rate := int(full.Formats[0].SampleRate); rate > 0 {
				dev.SampleRate = rate
			}
			if ch := int(full.Formats[0].Channels); ch > 0 {
				dev.Channels = ch
			}
		}
		d.ids[dev.ID] = full.ID
		res = append(res, dev)
	}
	return res, nil
}

// SampleSize returns the byte width of rawFormat.
func (d *MalgoDriver) SampleSize() int {
	return malgo.SampleSizeInBytes(rawFormat)
}

// Open initializes a loopback capture device.
func (d *MalgoDriver) Open(dev Device, cfg StreamConfig, onFrame FrameHandler, onError ErrorHandler) (Stream, error) {
	d.mu.Lock()
	id, ok := d.ids[dev.ID]
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown device index %d", dev.ID)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Loopback)
	deviceConfig.Capture.Format = rawFormat
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.FrameSize)
	deviceConfig.Alsa.NoMMap = 1

	s := &malgoStream{}
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			onFrame(input)
		},
		Stop: func() {
			if !s.stopping.Load() {
				onError(ErrStreamFailure)
			}
		},
	}

	var device *malgo.Device
	err := withDeviceID(id, func(p unsafe.Pointer) error {
		deviceConfig.Capture.DeviceID = p
		var err error
		device, err = malgo.InitDevice(d.ctx.Context, deviceConfig, callbacks)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.device = device
	return s, nil
}

type malgoStream struct {
	device   *malgo.Device
	stopping atomic.Bool
}

func (s *malgoStream) Start() error {
	s.stopping.Store(false)
	return s.device.Start()
}

func (s *malgoStream) Stop() error {
	s.stopping.Store(true)
	return s.device.Stop()
}

func (s *malgoStream) Close() error {
	s.stopping.Store(true)
	s.device.Uninit()
	return nil
}

// Verify interface implementation at compile time.
var _ Driver = (*MalgoDriver)(nil)
