// Package pipeline composes the media engines into the multi-stage
// processing flow: optional time crop, aspect ratio conversion, CTA
// append and watermark overlay, finished by a copy to the caller's
// output path. Intermediates live in a scratch scope owned by the run
// and are removed on every exit path.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ashokgit/videoresizer-api/internal/media"
	"github.com/ashokgit/videoresizer-api/internal/resource"
	"github.com/ashokgit/videoresizer-api/internal/storage"
)

// MemoryGuard admits or refuses runs based on available host memory.
// resource.Monitor is the production implementation.
type MemoryGuard interface {
	AvailableGiB(ctx context.Context) (gib float64, ok bool)
	Require(ctx context.Context, requiredGiB float64) error
}

// Orchestrator runs the processing stages in order. Engines are reached
// through the media.Processor port; every intermediate file lives in a
// per-run scratch scope.
type Orchestrator struct {
	proc        media.Processor
	guard       MemoryGuard
	tempRoot    string
	requiredGiB float64
	logger      *slog.Logger
}

// NewOrchestrator wires the engines behind proc into the stage flow.
// A nil guard gets a live memory monitor; requiredGiB at or below zero
// falls back to the default admission threshold.
func NewOrchestrator(proc media.Processor, guard MemoryGuard, tempRoot string, requiredGiB float64, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if guard == nil {
		guard = resource.NewMonitor(logger)
	}
	if requiredGiB <= 0 {
		requiredGiB = resource.DefaultRequiredGiB
	}
	return &Orchestrator{
		proc:        proc,
		guard:       guard,
		tempRoot:    tempRoot,
		requiredGiB: requiredGiB,
		logger:      logger,
	}
}

// Run executes every enabled stage against input and, on full success,
// copies the final intermediate to output. On failure nothing is written
// at the output path. The returned error is always a *Error.
func (o *Orchestrator) Run(ctx context.Context, input, output string, cfg Config) (*Result, error) {
	started := time.Now()

	if err := cfg.Validate(); err != nil {
		return nil, classify("", err)
	}
	if err := media.ValidateInput(input); err != nil {
		return nil, classify("", err)
	}
	if err := o.guard.Require(ctx, o.requiredGiB); err != nil {
		return nil, classify("", err)
	}

	o.logger.Info("starting pipeline",
		slog.String("input", input),
		slog.String("output", output),
		slog.Bool("time_crop", cfg.TimeRange != nil),
		slog.Bool("resize", cfg.Resize != nil),
		slog.Bool("cta", cfg.CTAPath != ""),
		slog.Bool("watermark", cfg.Watermark != nil),
		slog.String("preset", cfg.Preset))

	result := &Result{OutputPath: output}

	ctaPath := cfg.CTAPath
	if ctaPath != "" {
		if !fileExists(ctaPath) {
			o.logger.Warn("cta video not found, proceeding without it",
				slog.String("path", ctaPath))
			result.degrade(DegradationCTAMissing)
			ctaPath = ""
		} else {
			o.checkCTAResolution(ctx, ctaPath)
		}
	}

	scope, err := storage.NewScope(o.tempRoot, "process")
	if err != nil {
		return nil, classify("", err)
	}
	defer func() {
		if err := scope.Close(); err != nil {
			o.logger.Warn("failed to remove scratch directory",
				slog.String("dir", scope.Dir()), slog.Any("error", err))
		}
	}()

	current := input

	// Stage 1: time crop.
	if cfg.TimeRange != nil {
		stageStart := time.Now()
		trimmed := scope.Path("cropped.mp4")
		err := o.proc.Trim(ctx, media.TrimRequest{
			Input:  current,
			Output: trimmed,
			Start:  cfg.TimeRange.Start,
			End:    cfg.TimeRange.End,
			Preset: cfg.Preset,
		})
		if err != nil {
			return nil, classify(StageTimeCrop, err)
		}
		current = trimmed
		result.record(StageTimeCrop,
			fmt.Sprintf("%.3fs-%.3fs", cfg.TimeRange.Start, cfg.TimeRange.End),
			time.Since(stageStart))
	}

	// Stage 2: aspect ratio change. The main video hard-fails; the CTA
	// clip is resized with the same options so both enter concatenation
	// with matching geometry, and is dropped if that fails.
	if cfg.Resize != nil {
		stageStart := time.Now()
		resized := scope.Path("resized.mp4")
		if err := o.proc.Resize(ctx, o.resizeRequest(current, resized, cfg)); err != nil {
			return nil, classify(StageResize, err)
		}
		current = resized
		result.record(StageResize,
			fmt.Sprintf("%d:%d %s", cfg.Resize.Ratio.W, cfg.Resize.Ratio.H, cfg.Resize.Method),
			time.Since(stageStart))

		if ctaPath != "" {
			ctaResized := scope.Path("cta_resized.mp4")
			if err := o.proc.Resize(ctx, o.resizeRequest(ctaPath, ctaResized, cfg)); err != nil {
				o.logger.Warn("dropping cta video: resize failed",
					slog.String("path", ctaPath), slog.Any("error", err))
				result.degrade(DegradationCTADropped)
				ctaPath = ""
			} else {
				ctaPath = ctaResized
			}
		}
	}

	// Stage 3: append the CTA clip.
	if ctaPath != "" {
		stageStart := time.Now()
		joined := scope.Path("concatenated.mp4")
		concatResult, err := o.proc.Concatenate(ctx, media.ConcatRequest{
			Inputs: []string{current, ctaPath},
			Output: joined,
			Preset: cfg.Preset,
		})
		if err != nil {
			return nil, classify(StageConcat, err)
		}
		if concatResult.Mode == media.ConcatModeDemuxerCopy {
			result.degrade(DegradationConcatDemuxer)
		}
		current = joined
		result.record(StageConcat, string(concatResult.Mode), time.Since(stageStart))
	}

	// Stage 4: watermark overlay, after every content-changing stage.
	if cfg.Watermark != nil {
		if !fileExists(cfg.Watermark.ImagePath) {
			o.logger.Warn("watermark image not found, skipping overlay",
				slog.String("path", cfg.Watermark.ImagePath))
			result.degrade(DegradationWatermarkSkipped)
		} else {
			stageStart := time.Now()
			marked := scope.Path("watermarked.mp4")
			err := o.proc.AddWatermark(ctx, media.WatermarkRequest{
				Input:    current,
				Output:   marked,
				Image:    cfg.Watermark.ImagePath,
				Position: cfg.Watermark.Position,
				Preset:   cfg.Preset,
			})
			if err != nil {
				return nil, classify(StageWatermark, err)
			}
			current = marked
			result.record(StageWatermark, string(cfg.Watermark.Position), time.Since(stageStart))
		}
	}

	// Finalize: the caller path is written only now, after every enabled
	// stage succeeded.
	finalizeStart := time.Now()
	if err := copyFile(output, current); err != nil {
		return nil, classify(StageFinalize, err)
	}
	result.record(StageFinalize, output, time.Since(finalizeStart))

	if info, err := o.proc.Probe(ctx, output); err != nil {
		o.logger.Warn("could not probe finished output",
			slog.String("path", output), slog.Any("error", err))
	} else {
		result.Info = info
	}

	result.Elapsed = time.Since(started)
	o.logger.Info("pipeline finished",
		slog.String("output", output),
		slog.Duration("elapsed", result.Elapsed),
		slog.Int("degradations", len(result.Degradations)))
	return result, nil
}

// checkCTAResolution logs an advisory when the CTA clip is larger than 4K.
// Concatenating such clips needs around 8 GiB; the run is not refused
// because available-memory readings are unreliable on some hosts.
func (o *Orchestrator) checkCTAResolution(ctx context.Context, path string) {
	info, err := o.proc.Probe(ctx, path)
	if err != nil {
		o.logger.Warn("could not probe cta video",
			slog.String("path", path), slog.Any("error", err))
		return
	}
	if info.Width*info.Height <= media.Pixels4K {
		return
	}

	o.logger.Warn("ultra high resolution cta video detected",
		slog.Int("width", info.Width),
		slog.Int("height", info.Height),
		slog.Float64("recommended_gib", resource.UltraHighResRequiredGiB))
	if gib, ok := o.guard.AvailableGiB(ctx); ok && gib < resource.UltraHighResRequiredGiB {
		o.logger.Warn("available memory below recommendation for ultra high resolution concatenation",
			slog.Float64("available_gib", gib),
			slog.Float64("recommended_gib", resource.UltraHighResRequiredGiB))
	}
}

func (o *Orchestrator) resizeRequest(in, out string, cfg Config) media.ResizeRequest {
	return media.ResizeRequest{
		Input:    in,
		Output:   out,
		Ratio:    cfg.Resize.Ratio,
		Method:   cfg.Resize.Method,
		PadColor: cfg.Resize.PadColor,
		Blur:     cfg.Resize.Blur,
		Preset:   cfg.Preset,
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// copyFile writes src to dst, removing a partial dst on failure.
func copyFile(dst, src string) error {
	in, err := os.Open(src) // #nosec G304 - src is a run-owned intermediate
	if err != nil {
		return fmt.Errorf("open intermediate: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst) // #nosec G304 - dst is the caller-chosen output path
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("write output: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}
