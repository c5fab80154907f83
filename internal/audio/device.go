package audio

import (
	"context"
	"fmt"
)

// Device describes an enumerable loopback-capable endpoint.
// ID is stable within one driver session.
type Device struct {
	ID         int
	Name       string
	SampleRate int
	Channels   int
}

// String returns a human-readable representation for logging.
func (d Device) String() string {
	return fmt.Sprintf("[%d] %s", d.ID, d.Name)
}

// ProbeResult is the measured energy of a probed device.
type ProbeResult struct {
	DeviceID int
	Name     string
	RMS      float64
}

// StreamConfig configures a capture stream.
type StreamConfig struct {
	SampleRate int
	Channels   int
	// FrameSize is the number of sample frames delivered per callback.
	FrameSize int
}

// FrameHandler receives one raw PCM16 frame. The slice is only valid for the
// duration of the call. Handlers run on the driver's real-time thread and must
// return promptly.
type FrameHandler func(frame []byte)

// ErrorHandler is invoked by a driver when a running stream dies.
type ErrorHandler func(err error)

// Stream is an opened capture stream.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Driver is the audio backend capability used for probing and capture.
type Driver interface {
	// Devices enumerates loopback devices. IDs are unique within one call.
	Devices(ctx context.Context) ([]Device, error)

	// Open prepares a capture stream on the device. Frames are delivered to
	// onFrame once the stream is started.
	Open(dev Device, cfg StreamConfig, onFrame FrameHandler, onError ErrorHandler) (Stream, error)

	// SampleSize returns the number of bytes per sample of the stream format.
	SampleSize() int
}

// FindDevice returns the device with the given id.
func FindDevice(devices []Device, id int) (Device, bool) {
	for _, d := range devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}
