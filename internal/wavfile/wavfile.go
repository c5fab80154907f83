// Package wavfile persists captured PCM audio as WAV files.
package wavfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/YodaGitMaster/EasyLecture/internal/audio"
)

// pcmFormat is the WAV audio format code for integer PCM.
const pcmFormat = 1

// Static errors for WAV writing.
var (
	// ErrUnsupportedFormat is returned for sample widths other than 16-bit.
	ErrUnsupportedFormat = errors.New("wavfile: only 16-bit PCM is supported")
	// ErrInvalidFormat is returned when the sample rate or channel count is not positive.
	ErrInvalidFormat = errors.New("wavfile: sample rate and channels must be positive")
)

// Store is the subset of storage.Storage the writer needs.
type Store interface {
	TempPath(name string) (string, error)
	WriteFile(ctx context.Context, path string, data io.Reader) error
	CleanupTemp(ctx context.Context, paths []string) error
}

// Writer encodes PCM16 data into WAV files. The encoder patches the header
// sizes after writing, so it encodes into a scratch file first and then
// hands the finished file to the store, which places it atomically.
type Writer struct {
	store Store
}

// NewWriter creates a new Writer backed by store.
func NewWriter(store Store) *Writer {
	return &Writer{store: store}
}

// WriteWave implements audio.WaveWriter.
func (w *Writer) WriteWave(ctx context.Context, path string, format audio.Format, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if format.SampleWidth != 2 {
		return fmt.Errorf("%w: got %d bytes per sample", ErrUnsupportedFormat, format.SampleWidth)
	}
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return fmt.Errorf("%w: rate=%d, channels=%d", ErrInvalidFormat, format.SampleRate, format.Channels)
	}

	scratch, err := w.store.TempPath(filepath.Base(path))
	if err != nil {
		return fmt.Errorf("reserve scratch file: %w", err)
	}
	defer func() { _ = w.store.CleanupTemp(context.WithoutCancel(ctx), []string{scratch}) }()

	f, err := os.OpenFile(scratch, os.O_RDWR|os.O_TRUNC, 0600) // #nosec G304 - path comes from the store
	if err != nil {
		return fmt.Errorf("open scratch file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := encode(f, format, data); err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind scratch file: %w", err)
	}
	if err := w.store.WriteFile(ctx, path, f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func encode(f *os.File, format audio.Format, data []byte) error {
	bitDepth := format.SampleWidth * 8
	enc := wav.NewEncoder(f, format.SampleRate, bitDepth, format.Channels, pcmFormat)

	samples := audio.DecodePCM16(data)
	ints := make([]int, len(samples))
	for i, s := range samples {
		ints[i] = int(s)
	}

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: format.Channels,
			SampleRate:  format.SampleRate,
		},
		Data:           ints,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// Verify interface implementation at compile time.
var _ audio.WaveWriter = (*Writer)(nil)
