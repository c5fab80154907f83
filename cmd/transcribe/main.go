// Package main provides the entry point for the lecture transcriber.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/YodaGitMaster/EasyLecture/internal/bootstrap"
	"github.com/YodaGitMaster/EasyLecture/internal/config"
	"github.com/YodaGitMaster/EasyLecture/internal/transcribe"
)

type options struct {
	Timestamps bool   `short:"t" long:"timestamps" description:"Write [start-end] lines instead of plain text"`
	Model      string `short:"m" long:"model" description:"Recognition model (default: MODEL)"`
	Upload     bool   `long:"upload" description:"Upload the transcript to S3 when S3_BUCKET and S3_REGION are set"`

	Args struct {
		Input  string `positional-arg-name:"input" description:"Audio or video file to transcribe"`
		Output string `positional-arg-name:"output" description:"Text file to write"`
	} `positional-args:"yes" required:"yes"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run returns an error only for unusable command-line arguments. Every other
// failure is logged and the process exits cleanly.
func run(args []string) error {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("An error occurred", slog.String("error", fmt.Sprintf("load config: %v", err)))
		return nil
	}
	if opts.Model != "" {
		cfg.Model = opts.Model
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	deps, err := bootstrap.NewTranscribeDependencies(cfg, logger)
	if err != nil {
		logger.Error("An error occurred", slog.String("error", fmt.Sprintf("initialize dependencies: %v", err)))
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := deps.Service.Transcribe(ctx, transcribe.Input{
		InputPath:  opts.Args.Input,
		OutputPath: opts.Args.Output,
		Timestamps: opts.Timestamps,
		Upload:     opts.Upload,
	})
	if err != nil {
		logger.Error("An error occurred", slog.String("error", err.Error()))
		return nil
	}

	logger.Info(fmt.Sprintf("Transcription saved to %s", out.OutputPath))
	if out.URL != "" {
		logger.Info("transcript available", slog.String("url", out.URL))
	}
	return nil
}
