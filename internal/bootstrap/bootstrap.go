// Package bootstrap wires the dependencies of the record and transcribe tools
// from configuration.
package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/YodaGitMaster/EasyLecture/internal/audio"
	"github.com/YodaGitMaster/EasyLecture/internal/config"
	"github.com/YodaGitMaster/EasyLecture/internal/media"
	"github.com/YodaGitMaster/EasyLecture/internal/recognizer"
	"github.com/YodaGitMaster/EasyLecture/internal/selector"
	"github.com/YodaGitMaster/EasyLecture/internal/storage"
	"github.com/YodaGitMaster/EasyLecture/internal/transcribe"
	"github.com/YodaGitMaster/EasyLecture/internal/wavfile"
)

// RecordDependencies holds everything the record tool needs.
type RecordDependencies struct {
	Driver   audio.Driver
	Prober   *audio.Prober
	Selector *selector.Selector
	Recorder *audio.Recorder
	Storage  storage.Storage

	closer io.Closer
}

// Close releases the audio backend.
func (d *RecordDependencies) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// NewRecordDependencies opens the audio backend and builds the capture pipeline.
// The prompter drives interactive device selection.
func NewRecordDependencies(cfg *config.Config, logger *slog.Logger, prompter selector.Prompter) (*RecordDependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	driver, err := audio.NewDriver(logger)
	if err != nil {
		return nil, fmt.Errorf("initialize audio backend: %w", err)
	}

	deps := newRecordDependencies(cfg, logger, prompter, driver, store)
	deps.closer = driver
	return deps, nil
}

func newRecordDependencies(cfg *config.Config, logger *slog.Logger, prompter selector.Prompter, driver audio.Driver, store storage.Storage) *RecordDependencies {
	recorder := audio.NewRecorder(driver, wavfile.NewWriter(store), logger,
		audio.WithRecordOpts(audio.RecordOpts{
			SilenceThreshold: cfg.SilenceThreshold,
			SilenceTimeout:   cfg.SilenceTimeout,
			PollInterval:     cfg.PollInterval,
			FrameSize:        cfg.FrameSize,
		}),
	)

	return &RecordDependencies{
		Driver:   driver,
		Prober:   audio.NewProber(driver, logger),
		Selector: selector.New(prompter, driver.Devices, logger),
		Recorder: recorder,
		Storage:  store,
	}
}

// TranscribeDependencies holds everything the transcribe tool needs.
type TranscribeDependencies struct {
	Service *transcribe.Service
	Storage storage.Storage
}

// NewTranscribeDependencies builds the transcription use case.
func NewTranscribeDependencies(cfg *config.Config, logger *slog.Logger) (*TranscribeDependencies, error) {
	if err := cfg.ValidateTranscribe(); err != nil {
		return nil, err
	}

	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	clientOpts := []recognizer.ClientOption{recognizer.WithMaxRetries(3), recognizer.WithBaseBackoff(time.Second)}
	if cfg.RecognizerAPIKey != "" {
		clientOpts = append(clientOpts, recognizer.WithAPIKey(cfg.RecognizerAPIKey))
	}
	client, err := recognizer.NewClient(cfg.RecognizerURL, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create recognizer client: %w", err)
	}

	svc := transcribe.NewService(
		media.NewFFmpegConverter(cfg.FFmpegPath),
		client,
		store,
		logger,
		transcribe.WithRecognizerOptions(recognizer.Options{
			Model:       cfg.Model,
			ChunkLength: cfg.ChunkLengthSec,
			BatchSize:   cfg.BatchSize,
		}),
		transcribe.WithMaxSegmentDuration(cfg.MaxSegmentSec),
		transcribe.WithTempDir(cfg.TempDir),
	)

	return &TranscribeDependencies{
		Service: svc,
		Storage: store,
	}, nil
}

// ErrNilConfig is returned when no configuration is supplied.
var ErrNilConfig = errors.New("bootstrap: config is required")

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Prefix:          cfg.S3Prefix,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Debug("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
