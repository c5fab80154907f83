package audio

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func constantSource(value int16) frameSource {
	return func(i int) []byte { return pcmFrame(64, value, value) }
}

func TestProber_ClassifiesDevices(t *testing.T) {
	devices := []Device{
		{ID: 3, Name: "Speakers", SampleRate: 48000, Channels: 1},
		{ID: 7, Name: "Headphones", SampleRate: 44100, Channels: 1},
		{ID: 9, Name: "HDMI", SampleRate: 48000, Channels: 1},
	}
	drv := &fakeDriver{
		devices: devices,
		sources: map[int]frameSource{
			3: constantSource(2000),
			7: constantSource(10),
			9: constantSource(900),
		},
	}

	p := NewProber(drv, discardLogger())
	got := p.Probe(context.Background(), devices, 20*time.Millisecond, 500)

	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].DeviceID)
	assert.Equal(t, "Speakers", got[0].Name)
	assert.InDelta(t, 2000, got[0].RMS, 1e-9)
	assert.Equal(t, 9, got[1].DeviceID, "results keep probe order, not loudness order")
}

func TestProber_ContinuesAfterFailure(t *testing.T) {
	devices := []Device{
		{ID: 0, Name: "a", SampleRate: 48000, Channels: 1},
		{ID: 1, Name: "broken", SampleRate: 48000, Channels: 1},
		{ID: 2, Name: "c", SampleRate: 48000, Channels: 1},
		{ID: 3, Name: "quiet", SampleRate: 48000, Channels: 1},
	}
	drv := &fakeDriver{
		devices: devices,
		openErr: map[int]error{1: errBusy},
		sources: map[int]frameSource{
			0: constantSource(1500),
			1: constantSource(1500),
			2: constantSource(1200),
			3: constantSource(0),
		},
	}

	got := NewProber(drv, discardLogger()).Probe(context.Background(), devices, 15*time.Millisecond, 500)

	ids := make([]int, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.DeviceID)
	}
	assert.Equal(t, []int{0, 2}, ids)
	assert.Equal(t, []int{0, 1, 2, 3}, drv.openOrder, "every device is attempted")
}

func TestProber_NoFramesIsInactive(t *testing.T) {
	devices := []Device{{ID: 0, Name: "silent driver", SampleRate: 48000, Channels: 2}}
	drv := &fakeDriver{devices: devices}

	got := NewProber(drv, discardLogger()).Probe(context.Background(), devices, 10*time.Millisecond, 500)
	assert.Empty(t, got)
}

func TestProber_SequentialAndClosed(t *testing.T) {
	devices := []Device{
		{ID: 0, Name: "a", SampleRate: 48000, Channels: 1},
		{ID: 1, Name: "b", SampleRate: 48000, Channels: 1},
		{ID: 2, Name: "c", SampleRate: 48000, Channels: 1},
	}
	drv := &fakeDriver{
		devices: devices,
		sources: map[int]frameSource{0: constantSource(800), 1: constantSource(800), 2: constantSource(800)},
	}

	got := NewProber(drv, discardLogger()).Probe(context.Background(), devices, 10*time.Millisecond, 500)
	assert.Len(t, got, 3)
	assert.Equal(t, int32(1), drv.maxOpen.Load(), "probes must never overlap")
	assert.Equal(t, int32(0), drv.open.Load())
	for _, s := range drv.streams {
		assert.True(t, s.closed)
	}
}

func TestProber_Cancelled(t *testing.T) {
	devices := []Device{
		{ID: 0, Name: "a", SampleRate: 48000, Channels: 1},
		{ID: 1, Name: "b", SampleRate: 48000, Channels: 1},
	}
	drv := &fakeDriver{devices: devices}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := NewProber(drv, discardLogger()).Probe(ctx, devices, time.Hour, 500)
	assert.Empty(t, got)
	assert.Empty(t, drv.openOrder)
}
