package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// pcmFrame builds a PCM16 frame of n samples set to value, with the first
// sample carrying seq so frames stay distinguishable.
func pcmFrame(n int, value, seq int16) []byte {
	b := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := value
		if i == 0 {
			v = seq
		}
		binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
	}
	return b
}

// frameSource produces the frame delivered at position i, or nil to pause.
type frameSource func(i int) []byte

type fakeDriver struct {
	devices []Device
	listErr error
	openErr map[int]error
	sources map[int]frameSource
	period  time.Duration
	// failAfter makes the stream report ErrStreamFailure after n frames.
	failAfter map[int]int

	mu        sync.Mutex
	streams   []*fakeStream
	open      atomic.Int32
	maxOpen   atomic.Int32
	openOrder []int
}

func (d *fakeDriver) Devices(context.Context) ([]Device, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}
	return d.devices, nil
}

func (d *fakeDriver) SampleSize() int { return 2 }

func (d *fakeDriver) Open(dev Device, _ StreamConfig, onFrame FrameHandler, onError ErrorHandler) (Stream, error) {
	d.mu.Lock()
	d.openOrder = append(d.openOrder, dev.ID)
	d.mu.Unlock()

	if err := d.openErr[dev.ID]; err != nil {
		return nil, err
	}

	n := d.open.Add(1)
	for {
		m := d.maxOpen.Load()
		if n <= m || d.maxOpen.CompareAndSwap(m, n) {
			break
		}
	}

	period := d.period
	if period == 0 {
		period = time.Millisecond
	}
	fail := -1
	if v, ok := d.failAfter[dev.ID]; ok {
		fail = v
	}
	s := &fakeStream{
		driver:    d,
		source:    d.sources[dev.ID],
		period:    period,
		onFrame:   onFrame,
		onError:   onError,
		failAfter: fail,
		done:      make(chan struct{}),
		quit:      make(chan struct{}),
	}
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

type fakeStream struct {
	driver    *fakeDriver
	source    frameSource
	period    time.Duration
	onFrame   FrameHandler
	onError   ErrorHandler
	failAfter int

	mu        sync.Mutex
	delivered [][]byte
	lastLoud  time.Time
	stoppedAt time.Time
	started   bool
	closed    bool

	quit chan struct{}
	done chan struct{}
}

func (s *fakeStream) Start() error {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	go s.run()
	return nil
}

func (s *fakeStream) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
		}
		if i == s.failAfter {
			s.onError(ErrStreamFailure)
			<-s.quit
			return
		}
		if s.source == nil {
			continue
		}
		frame := s.source(i)
		if frame == nil {
			continue
		}
		// lastLoud is taken before delivery so it never trails the session's view.
		now := time.Now()
		s.onFrame(frame)
		s.mu.Lock()
		s.delivered = append(s.delivered, append([]byte(nil), frame...))
		if level, err := FrameRMS(frame, 1); err == nil && level > 500 {
			s.lastLoud = now
		}
		s.mu.Unlock()
	}
}

// Stop halts delivery; no frame is delivered after Stop returns.
func (s *fakeStream) Stop() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		close(s.quit)
		<-s.done
	}
	s.mu.Lock()
	s.stoppedAt = time.Now()
	s.started = false
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.driver.open.Add(-1)
	return nil
}

func (s *fakeStream) deliveredBytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Join(s.delivered, nil)
}

type fakeWriter struct {
	mu     sync.Mutex
	calls  int
	path   string
	format Format
	data   []byte
	err    error
}

func (w *fakeWriter) WriteWave(_ context.Context, path string, format Format, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	w.path = path
	w.format = format
	w.data = append([]byte(nil), data...)
	return w.err
}

var errBusy = errors.New("device busy")
