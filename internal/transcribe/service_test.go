package transcribe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YodaGitMaster/EasyLecture/internal/media"
	"github.com/YodaGitMaster/EasyLecture/internal/recognizer"
	"github.com/YodaGitMaster/EasyLecture/internal/storage"
	"github.com/YodaGitMaster/EasyLecture/internal/transcript"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeConverter struct {
	prepared media.Prepared
	err      error
	gotDir   string
}

func (f *fakeConverter) Prepare(_ context.Context, input, tempDir string) (media.Prepared, error) {
	f.gotDir = tempDir
	if f.err != nil {
		return media.Prepared{}, f.err
	}
	p := f.prepared
	if p.Path == "" {
		p.Path = input
	}
	return p, nil
}

func (f *fakeConverter) Duration(context.Context, string) (float64, error) {
	return f.prepared.Duration, nil
}

type fakeRecognizer struct {
	result  recognizer.Result
	err     error
	gotPath string
	gotOpts recognizer.Options
}

func (f *fakeRecognizer) Recognize(_ context.Context, path string, opts recognizer.Options) (recognizer.Result, error) {
	f.gotPath = path
	f.gotOpts = opts
	return f.result, f.err
}

// uploadStore wraps LocalStorage with a recording Upload.
type uploadStore struct {
	*storage.LocalStorage
	uploads map[string]string
	err     error
}

func (u *uploadStore) Upload(_ context.Context, key, path string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.uploads[key] = path
	return "https://bucket.example/" + key, nil
}

func (u *uploadStore) UploadEnabled() bool { return true }

func newLocal(t *testing.T) *storage.LocalStorage {
	t.Helper()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return s
}

func f64(v float64) *float64 { return &v }

func TestNewService_Defaults(t *testing.T) {
	svc := NewService(&fakeConverter{}, &fakeRecognizer{}, newLocal(t), nil)

	assert.NotNil(t, svc.logger)
	assert.Equal(t, recognizer.DefaultOptions(), svc.opts)
	assert.Equal(t, transcript.DefaultMaxDuration, svc.maxDuration)

	svc = NewService(&fakeConverter{}, &fakeRecognizer{}, newLocal(t), nil, WithMaxSegmentDuration(-1))
	assert.Equal(t, transcript.DefaultMaxDuration, svc.maxDuration, "non-positive max is ignored")
}

func TestTranscribe_PlainText(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "notes", "lecture.txt")
	conv := &fakeConverter{prepared: media.Prepared{Duration: 12.5}}
	rec := &fakeRecognizer{result: recognizer.Result{Text: " Welcome to the lecture."}}

	opts := recognizer.DefaultOptions()
	opts.Model = "openai/whisper-small"
	svc := NewService(conv, rec, newLocal(t), discardLogger(),
		WithRecognizerOptions(opts), WithTempDir("/scratch"))

	res, err := svc.Transcribe(context.Background(), Input{InputPath: "lecture.wav", OutputPath: out})
	require.NoError(t, err)

	assert.Equal(t, "/scratch", conv.gotDir)
	assert.Equal(t, "lecture.wav", rec.gotPath)
	assert.Equal(t, "openai/whisper-small", rec.gotOpts.Model)
	assert.False(t, rec.gotOpts.Timestamps)
	assert.InDelta(t, 12.5, res.AudioDuration, 1e-9)
	assert.Empty(t, res.URL)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, " Welcome to the lecture.", string(data))
}

func TestTranscribe_Timestamps(t *testing.T) {
	out := filepath.Join(t.TempDir(), "lecture.txt")
	rec := &fakeRecognizer{result: recognizer.Result{
		Text: "ignored",
		Chunks: []transcript.Chunk{
			{Start: f64(0), End: f64(4), Text: " Hello."},
			{Start: f64(4), End: f64(64), Text: "abcdefghij"},
		},
	}}
	svc := NewService(&fakeConverter{}, rec, newLocal(t), discardLogger())

	_, err := svc.Transcribe(context.Background(), Input{InputPath: "in.wav", OutputPath: out, Timestamps: true})
	require.NoError(t, err)
	assert.True(t, rec.gotOpts.Timestamps)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "[0.00-4.00] Hello.\n[4.00-34.00] abcde\n[34.00-64.00] fghij", string(data))
}

func TestTranscribe_TimestampsWithoutSegments(t *testing.T) {
	out := filepath.Join(t.TempDir(), "lecture.txt")
	rec := &fakeRecognizer{result: recognizer.Result{Text: "plain"}}
	svc := NewService(&fakeConverter{}, rec, newLocal(t), discardLogger())

	res, err := svc.Transcribe(context.Background(), Input{InputPath: "in.wav", OutputPath: out, Timestamps: true})
	require.NoError(t, err)
	assert.Equal(t, "plain", res.Text)
}

func TestTranscribe_RemovesConvertedInput(t *testing.T) {
	store := newLocal(t)
	converted, err := store.TempPath("lecture.wav")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(converted, []byte("RIFF"), 0o600))

	conv := &fakeConverter{prepared: media.Prepared{Path: converted, Converted: true}}
	rec := &fakeRecognizer{result: recognizer.Result{Text: "ok"}}
	svc := NewService(conv, rec, store, discardLogger())

	_, err = svc.Transcribe(context.Background(), Input{
		InputPath:  "lecture.mp4",
		OutputPath: filepath.Join(t.TempDir(), "out.txt"),
	})
	require.NoError(t, err)
	assert.Equal(t, converted, rec.gotPath)
	assert.NoFileExists(t, converted)
}

func TestTranscribe_Upload(t *testing.T) {
	out := filepath.Join(t.TempDir(), "lecture.txt")
	store := &uploadStore{LocalStorage: newLocal(t), uploads: map[string]string{}}
	rec := &fakeRecognizer{result: recognizer.Result{Text: "ok"}}
	svc := NewService(&fakeConverter{}, rec, store, discardLogger())

	res, err := svc.Transcribe(context.Background(), Input{InputPath: "in.wav", OutputPath: out, Upload: true})
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.example/lecture.txt", res.URL)
	assert.Equal(t, out, store.uploads["lecture.txt"])
}

func TestTranscribe_UploadNotConfigured(t *testing.T) {
	out := filepath.Join(t.TempDir(), "lecture.txt")
	rec := &fakeRecognizer{result: recognizer.Result{Text: "ok"}}
	svc := NewService(&fakeConverter{}, rec, newLocal(t), discardLogger())

	res, err := svc.Transcribe(context.Background(), Input{InputPath: "in.wav", OutputPath: out, Upload: true})
	require.NoError(t, err)
	assert.Empty(t, res.URL)
	assert.FileExists(t, out)
}

func TestTranscribe_Errors(t *testing.T) {
	errConvert := errors.New("convert failed")
	errRecognize := errors.New("recognize failed")
	errUpload := errors.New("upload failed")

	tests := []struct {
		name    string
		in      Input
		conv    *fakeConverter
		rec     *fakeRecognizer
		upload  error
		wantErr error
		noFile  bool
	}{
		{
			name:    "missing input",
			in:      Input{OutputPath: "out.txt"},
			wantErr: ErrInputRequired,
			noFile:  true,
		},
		{
			name:    "missing output",
			in:      Input{InputPath: "in.wav"},
			wantErr: ErrOutputRequired,
			noFile:  true,
		},
		{
			name:    "prepare failure",
			in:      Input{InputPath: "in.wav", OutputPath: "out.txt"},
			conv:    &fakeConverter{err: errConvert},
			wantErr: errConvert,
			noFile:  true,
		},
		{
			name:    "recognition failure",
			in:      Input{InputPath: "in.wav", OutputPath: "out.txt"},
			rec:     &fakeRecognizer{err: errRecognize},
			wantErr: errRecognize,
			noFile:  true,
		},
		{
			name:    "upload failure keeps local file",
			in:      Input{InputPath: "in.wav", OutputPath: "out.txt", Upload: true},
			upload:  errUpload,
			wantErr: errUpload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.in.OutputPath != "" {
				tt.in.OutputPath = filepath.Join(dir, tt.in.OutputPath)
			}
			conv := tt.conv
			if conv == nil {
				conv = &fakeConverter{}
			}
			rec := tt.rec
			if rec == nil {
				rec = &fakeRecognizer{result: recognizer.Result{Text: "ok"}}
			}
			store := &uploadStore{LocalStorage: newLocal(t), uploads: map[string]string{}, err: tt.upload}

			svc := NewService(conv, rec, store, discardLogger())
			_, err := svc.Transcribe(context.Background(), tt.in)
			require.ErrorIs(t, err, tt.wantErr)

			if tt.in.OutputPath == "" {
				return
			}
			if tt.noFile {
				assert.NoFileExists(t, tt.in.OutputPath)
			} else {
				assert.FileExists(t, tt.in.OutputPath)
			}
		})
	}
}
