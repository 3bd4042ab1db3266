// Package main provides a single-shot batch entry point: it resizes one
// video to a target aspect ratio, driven entirely by environment
// variables. Intended for container jobs with mounted input and output
// directories.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/ashokgit/videoresizer-api/internal/config"
	"github.com/ashokgit/videoresizer-api/internal/geometry"
	"github.com/ashokgit/videoresizer-api/internal/media"
)

// options are the environment variables of one batch run.
type options struct {
	InputFile  string `env:"INPUT_FILE, default=input/sample.mp4"`
	OutputFile string `env:"OUTPUT_FILE, default=output/processed.mp4"`

	TargetRatioW int    `env:"TARGET_RATIO_W, default=9"`
	TargetRatioH int    `env:"TARGET_RATIO_H, default=16"`
	ResizeMethod string `env:"RESIZE_METHOD, default=crop"`

	// Pad options, used when RESIZE_METHOD is pad.
	PadColor       string  `env:"PAD_COLOR, default=#000000"`
	BlurBackground bool    `env:"BLUR_BACKGROUND, default=false"`
	BlurStrength   int     `env:"BLUR_STRENGTH, default=25"`
	GradientBlend  float64 `env:"GRADIENT_BLEND, default=0.3"`

	Quality    string `env:"QUALITY, default=high"`
	FFmpegPath string `env:"FFMPEG_PATH, default=ffmpeg"`

	LogFormat string `env:"LOG_FORMAT, default=text"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts options
	if err := envconfig.Process(ctx, &opts); err != nil {
		return fmt.Errorf("load options: %w", err)
	}

	logger := config.NewLogger(opts.LogFormat, opts.LogLevel)
	slog.SetDefault(logger)

	logger.Info("batch video processing",
		slog.String("input", opts.InputFile),
		slog.String("output", opts.OutputFile),
		slog.String("target_ratio", fmt.Sprintf("%d:%d", opts.TargetRatioW, opts.TargetRatioH)),
		slog.String("method", opts.ResizeMethod),
		slog.String("quality", opts.Quality),
	)

	padColor, err := media.ParseRGB(opts.PadColor)
	if err != nil {
		return fmt.Errorf("PAD_COLOR: %w", err)
	}

	req := media.ResizeRequest{
		Input:    opts.InputFile,
		Output:   opts.OutputFile,
		Ratio:    geometry.Ratio{W: opts.TargetRatioW, H: opts.TargetRatioH},
		Method:   media.ResizeMethod(opts.ResizeMethod),
		PadColor: padColor,
		Preset:   opts.Quality,
	}
	if opts.BlurBackground {
		req.Blur = &media.BlurOptions{
			Strength:      opts.BlurStrength,
			GradientBlend: opts.GradientBlend,
		}
	}

	if dir := filepath.Dir(opts.OutputFile); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	engine := media.NewEngine(opts.FFmpegPath, nil, logger)

	started := time.Now()
	if err := engine.Resize(ctx, req); err != nil {
		return fmt.Errorf("resize failed: %w", err)
	}

	logger.Info("batch processing completed",
		slog.String("output", opts.OutputFile),
		slog.Duration("elapsed", time.Since(started)),
	)
	return nil
}
