//go:build !cgo || noaudio

// This driver is only used in cgo-less and noaudio builds.

package audio

import (
	"context"
	"log/slog"
)

// NullDriver reports that no capture backend was compiled in.
type NullDriver struct{}

// NewDriver returns a driver whose operations fail with ErrDriverDisabled.
func NewDriver(_ *slog.Logger) (*NullDriver, error) {
	return &NullDriver{}, nil
}

// Close is a no-op.
func (NullDriver) Close() error { return nil }

// Devices always fails with ErrDriverDisabled.
func (NullDriver) Devices(context.Context) ([]Device, error) { return nil, ErrDriverDisabled }

// Open always fails with ErrDriverDisabled.
func (NullDriver) Open(Device, StreamConfig, FrameHandler, ErrorHandler) (Stream, error) {
	return nil, ErrDriverDisabled
}

// SampleSize is the width of signed 16-bit samples.
func (NullDriver) SampleSize() int { return 2 }

var _ Driver = NullDriver{}
