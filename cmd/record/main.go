// Package main provides the entry point for the loopback lecture recorder.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/YodaGitMaster/EasyLecture/internal/bootstrap"
	"github.com/YodaGitMaster/EasyLecture/internal/config"
	"github.com/YodaGitMaster/EasyLecture/internal/selector"
)

// errInvalidDevice is returned when the device index argument is not an integer.
var errInvalidDevice = errors.New("invalid device index")

type options struct {
	Upload bool `long:"upload" description:"Upload the recording to S3 when S3_BUCKET and S3_REGION are set"`

	Args struct {
		Device string `positional-arg-name:"device-index" description:"Loopback device to record; probes and asks when omitted"`
		Output string `positional-arg-name:"output-file" description:"WAV file to write (default: OUTPUT_FILE)"`
	} `positional-args:"yes"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run returns an error only for unusable command-line arguments, including a
// device index that is not an integer. Every other failure is logged.
func run(args []string) error {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[OPTIONS] [device-index] [output-file]"
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil
		}
		return err
	}

	var deviceID int
	haveDevice := opts.Args.Device != ""
	if haveDevice {
		id, err := strconv.Atoi(opts.Args.Device)
		if err != nil {
			slog.Error("Invalid device index. Please provide a valid integer.",
				slog.String("device_index", opts.Args.Device),
			)
			return fmt.Errorf("%w: %q", errInvalidDevice, opts.Args.Device)
		}
		deviceID = id
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("An error occurred", slog.String("error", fmt.Sprintf("load config: %v", err)))
		return nil
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	output := opts.Args.Output
	if output == "" {
		output = cfg.OutputFile
	}

	deps, err := bootstrap.NewRecordDependencies(cfg, logger, selector.NewConsolePrompter(os.Stdin, os.Stdout))
	if err != nil {
		logger.Error("An error occurred", slog.String("error", fmt.Sprintf("initialize dependencies: %v", err)))
		return nil
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("failed to release audio backend", slog.String("error", err.Error()))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !haveDevice {
		id, ok, err := chooseDevice(ctx, cfg, deps, logger)
		if err != nil {
			logger.Error("device selection failed", slog.String("error", err.Error()))
			return nil
		}
		if !ok {
			logger.Info("No device selected. Exiting.")
			return nil
		}
		deviceID = id
	}

	rec, err := deps.Recorder.Record(ctx, deviceID, output)
	if rec != nil {
		logger.Info("recording summary",
			slog.String("device", rec.Device.Name),
			slog.Int("sample_rate", rec.Format.SampleRate),
			slog.Int("channels", rec.Format.Channels),
			slog.Int("frames", rec.Frames),
			slog.Duration("duration", rec.Duration),
			slog.String("reason", string(rec.Reason)),
		)
	}
	// Only a malformed device index is a hard failure.
	if err != nil {
		logger.Error("recording failed", slog.String("error", err.Error()))
		return nil
	}

	if opts.Upload {
		if !deps.Storage.UploadEnabled() {
			logger.Warn("upload requested but S3 is not configured")
			return nil
		}
		// The capture context is usually cancelled by the interrupt that ended recording.
		uploadCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		url, err := deps.Storage.Upload(uploadCtx, filepath.Base(rec.Path), rec.Path)
		if err != nil {
			logger.Error("upload failed", slog.String("error", err.Error()))
			return nil
		}
		logger.Info("recording uploaded", slog.String("url", url))
	}

	return nil
}

// chooseDevice probes every loopback device and lets the user pick one.
func chooseDevice(ctx context.Context, cfg *config.Config, deps *bootstrap.RecordDependencies, logger *slog.Logger) (int, bool, error) {
	devices, err := deps.Driver.Devices(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("list devices: %w", err)
	}
	if len(devices) == 0 {
		logger.Info("no loopback devices found")
		return 0, false, nil
	}

	logger.Info("probing devices for audio activity",
		slog.Int("devices", len(devices)),
		slog.Duration("per_device", cfg.ProbeDuration),
	)
	active := deps.Prober.Probe(ctx, devices, cfg.ProbeDuration, cfg.ProbeRMSThreshold)
	if ctx.Err() != nil {
		return 0, false, nil
	}

	id, ok, err := deps.Selector.Select(ctx, active)
	if err != nil && ctx.Err() != nil {
		return 0, false, nil
	}
	return id, ok, err
}
