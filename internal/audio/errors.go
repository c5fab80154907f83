package audio

import "errors"

// Static errors for audio capture operations.
var (
	// ErrInvalidInput is returned when a computation receives degenerate data,
	// such as an empty sample sequence.
	ErrInvalidInput = errors.New("audio: invalid input")
	// ErrDeviceUnavailable is returned when the driver cannot open the requested device.
	ErrDeviceUnavailable = errors.New("audio: device unavailable")
	// ErrStreamFailure is reported by a driver when a running stream dies.
	ErrStreamFailure = errors.New("audio: stream failure")
	// ErrNoDevices is returned when no loopback device could be enumerated.
	ErrNoDevices = errors.New("audio: no loopback devices found")
	// ErrDriverDisabled is returned by builds without a capture backend.
	ErrDriverDisabled = errors.New("audio: capture was disabled during compilation")
)
