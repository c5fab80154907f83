package wavfile

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YodaGitMaster/EasyLecture/internal/audio"
	"github.com/YodaGitMaster/EasyLecture/internal/storage"
)

func newStore(t *testing.T) (*storage.LocalStorage, string) {
	t.Helper()
	scratch := filepath.Join(t.TempDir(), "scratch")
	store, err := storage.NewLocalStorage(scratch)
	require.NoError(t, err)
	return store, scratch
}

func pcm(samples ...int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func TestWriter_WriteWave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "output_audio.wav")
	format := audio.Format{SampleRate: 48000, Channels: 2, SampleWidth: 2}
	data := pcm(0, 1, -1, 32767, -32768, 1200, 5, -5)

	store, scratch := newStore(t)
	require.NoError(t, NewWriter(store).WriteWave(context.Background(), path, format, data))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)

	assert.Equal(t, uint32(48000), dec.SampleRate)
	assert.Equal(t, uint16(2), dec.NumChans)
	assert.Equal(t, uint16(16), dec.BitDepth)
	assert.Equal(t, []int{0, 1, -1, 32767, -32768, 1200, 5, -5}, buf.Data)

	// No temporary files are left behind, next to the output or in scratch.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	entries, err = os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriter_HeaderLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	data := pcm(100, 200, 300)
	store, _ := newStore(t)
	require.NoError(t, NewWriter(store).WriteWave(context.Background(), path,
		audio.Format{SampleRate: 16000, Channels: 1, SampleWidth: 2}, data))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(raw), 44)
	assert.Equal(t, "RIFF", string(raw[0:4]))
	assert.Equal(t, "WAVE", string(raw[8:12]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(raw[22:24]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(raw[24:28]))
	assert.Equal(t, data, raw[len(raw)-len(data):])
}

func TestWriter_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	store, _ := newStore(t)
	require.NoError(t, NewWriter(store).WriteWave(context.Background(), path,
		audio.Format{SampleRate: 44100, Channels: 2, SampleWidth: 2}, nil))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	assert.True(t, wav.NewDecoder(f).IsValidFile())
}

func TestWriter_Errors(t *testing.T) {
	dir := t.TempDir()
	store, scratch := newStore(t)
	w := NewWriter(store)

	err := w.WriteWave(context.Background(), filepath.Join(dir, "a.wav"),
		audio.Format{SampleRate: 48000, Channels: 2, SampleWidth: 3}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	err = w.WriteWave(context.Background(), filepath.Join(dir, "b.wav"),
		audio.Format{SampleRate: 0, Channels: 2, SampleWidth: 2}, nil)
	assert.ErrorIs(t, err, ErrInvalidFormat)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = w.WriteWave(ctx, filepath.Join(dir, "c.wav"),
		audio.Format{SampleRate: 48000, Channels: 2, SampleWidth: 2}, nil)
	assert.ErrorIs(t, err, context.Canceled)

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
	entries, _ = os.ReadDir(scratch)
	assert.Empty(t, entries)
}

// failingStore rejects the final write.
type failingStore struct {
	*storage.LocalStorage
}

func (failingStore) WriteFile(context.Context, string, io.Reader) error {
	return errors.New("disk full")
}

func TestWriter_StoreFailureCleansScratch(t *testing.T) {
	store, scratch := newStore(t)
	path := filepath.Join(t.TempDir(), "out.wav")

	err := NewWriter(failingStore{store}).WriteWave(context.Background(), path,
		audio.Format{SampleRate: 16000, Channels: 1, SampleWidth: 2}, pcm(1, 2, 3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoFileExists(t, path)

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
