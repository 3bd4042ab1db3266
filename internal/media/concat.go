package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/ashokgit/videoresizer-api/internal/geometry"
)

// ErrTooFewClips is returned when fewer than two inputs are given.
var ErrTooFewClips = errors.New("at least 2 videos are required for concatenation")

// fpsTolerance is the frame-rate difference below which clips are treated as
// matching; retiming for sub-0.1fps drift costs quality for no visible benefit.
const fpsTolerance = 0.1

// ultraHighResCap is the largest dimension allowed through concatenation.
// Bigger reference frames are pre-downscaled for memory safety.
const ultraHighResCap = 2160

// ConcatMode identifies which strategy produced the output.
type ConcatMode string

const (
	// ConcatModeFilter re-encodes through the concat filter; tolerant of
	// differing source encodings.
	ConcatModeFilter ConcatMode = "filter"
	// ConcatModeDemuxerCopy stream-copies through the concat demuxer;
	// requires uniformly encoded inputs.
	ConcatModeDemuxerCopy ConcatMode = "demuxer-copy"
)

// ConcatRequest describes one concatenation. Inputs are joined in order;
// the first is the reference for resolution and frame rate.
type ConcatRequest struct {
	Inputs []string
	Output string
	Preset string
}

// ConcatResult reports how the concatenation was performed.
type ConcatResult struct {
	Mode    ConcatMode
	RefSize geometry.Size
	RefFPS  float64
}

// concatPlan describes how each clip is standardized before joining.
type concatPlan struct {
	RefSize   geometry.Size
	RefFPS    float64
	WithAudio bool
	Clips     []clipPlan
}

type clipPlan struct {
	Path     string
	Duration float64
	HasAudio bool
	// Scale is set when the clip's size differs from the reference.
	Scale bool
	// Retime is set when the clip's frame rate differs from the reference
	// by more than fpsTolerance.
	Retime bool
	// PadAudio is set when the output carries audio but this clip has none;
	// a silent track keeps the concat segments aligned.
	PadAudio bool
}

// planConcat derives the standardization plan. The first clip is the
// reference; if it exceeds the 4K pixel threshold its dimensions are capped
// for memory safety, which transitively downscales every clip.
func planConcat(paths []string, infos []*VideoInfo) concatPlan {
	refSize := infos[0].Size()
	if infos[0].Pixels() > Pixels4K {
		refSize = geometry.FitMaxDimension(refSize, ultraHighResCap)
	}
	refFPS := infos[0].FPS

	withAudio := false
	for _, info := range infos {
		if info.HasAudio {
			withAudio = true
			break
		}
	}

	clips := make([]clipPlan, len(paths))
	for i, info := range infos {
		fpsDiff := info.FPS - refFPS
		if fpsDiff < 0 {
			fpsDiff = -fpsDiff
		}
		clips[i] = clipPlan{
			Path:     paths[i],
			Duration: info.Duration,
			HasAudio: info.HasAudio,
			Scale:    info.Size() != refSize,
			Retime:   fpsDiff > fpsTolerance,
			PadAudio: withAudio && !info.HasAudio,
		}
	}

	return concatPlan{
		RefSize:   refSize,
		RefFPS:    refFPS,
		WithAudio: withAudio,
		Clips:     clips,
	}
}

// Concatenate joins the input clips in order. It standardizes every clip to
// the first clip's resolution and frame rate, then joins them through the
// concat filter; if that fails it retries with a demuxer stream copy, which
// succeeds only for uniformly encoded inputs.
func (e *Engine) Concatenate(ctx context.Context, req ConcatRequest) (*ConcatResult, error) {
	if len(req.Inputs) < 2 {
		return nil, ErrTooFewClips
	}
	for _, path := range req.Inputs {
		if err := ValidateInput(path); err != nil {
			return nil, err
		}
	}

	infos := make([]*VideoInfo, len(req.Inputs))
	for i, path := range req.Inputs {
		info, err := e.Probe(ctx, path)
		if err != nil {
			return nil, err
		}
		if info.Pixels() > PixelsFullHD {
			e.logger.Warn("high resolution clip in concatenation",
				slog.String("path", path),
				slog.String("size", info.Size().String()),
				slog.Bool("ultra_high_res", info.IsUltraHighRes()),
			)
		}
		infos[i] = info
	}

	plan := planConcat(req.Inputs, infos)
	preset := e.lookupPreset(req.Preset)

	e.logger.Info("concatenating videos",
		slog.Int("count", len(req.Inputs)),
		slog.String("ref_size", plan.RefSize.String()),
		slog.Float64("ref_fps", plan.RefFPS),
		slog.Bool("with_audio", plan.WithAudio),
		slog.String("preset", preset.Name),
	)

	err := e.run(ctx, concatFilterGraph(plan, req.Output, preset))
	if err == nil {
		return &ConcatResult{Mode: ConcatModeFilter, RefSize: plan.RefSize, RefFPS: plan.RefFPS}, nil
	}
	if errors.Is(err, ErrOutOfMemory) || ctx.Err() != nil {
		return nil, err
	}

	e.logger.Warn("concat filter failed, falling back to demuxer copy",
		slog.String("error", err.Error()),
	)
	if copyErr := e.concatDemuxerCopy(ctx, req.Inputs, req.Output); copyErr != nil {
		// The filter error names the actual mismatch; the copy error
		// rarely does, so report the first.
		return nil, err
	}
	return &ConcatResult{Mode: ConcatModeDemuxerCopy, RefSize: plan.RefSize, RefFPS: plan.RefFPS}, nil
}

// concatFilterGraph builds a single graph that standardizes all clips and
// joins them with the concat filter.
func concatFilterGraph(plan concatPlan, output string, preset Preset) *ffmpeg.Stream {
	streams := make([]*ffmpeg.Stream, 0, len(plan.Clips)*2)
	for _, clip := range plan.Clips {
		input := ffmpeg.Input(clip.Path)

		v := input.Video()
		if clip.Scale {
			v = v.Filter("scale", ffmpeg.Args{
				fmt.Sprintf("%d:%d", plan.RefSize.Width, plan.RefSize.Height),
			})
		}
		if clip.Retime && plan.RefFPS > 0 {
			v = v.Filter("fps", ffmpeg.Args{fmt.Sprintf("%.6f", plan.RefFPS)})
		}
		streams = append(streams, v)

		if plan.WithAudio {
			if clip.HasAudio {
				streams = append(streams, input.Audio())
			} else {
				streams = append(streams, silentAudio(clip.Duration))
			}
		}
	}

	if !plan.WithAudio {
		return ffmpeg.Concat(streams).Output(output, concatOutputArgs(preset, plan))
	}

	joined := ffmpeg.Concat(streams, ffmpeg.KwArgs{"v": 1, "a": 1}).Node
	v := joined.Get("0")
	a := joined.Get("1")
	return ffmpeg.Output([]*ffmpeg.Stream{v, a}, output, concatOutputArgs(preset, plan))
}

// silentAudio produces a silent stereo track for clips without audio. The
// concat filter pads any remaining gap with silence, so a too-short track is
// harmless.
func silentAudio(duration float64) *ffmpeg.Stream {
	d := duration
	if d <= 0 {
		d = 0.1
	}
	return ffmpeg.Input("anullsrc=channel_layout=stereo:sample_rate=44100", ffmpeg.KwArgs{
		"f": "lavfi",
		"t": fmt.Sprintf("%.3f", d),
	})
}

// concatOutputArgs extends the preset bundle with concatenation overrides:
// an explicit output rate so segments cannot drift, a thread cap to bound
// encoder memory, and the medium speed preset for throughput.
func concatOutputArgs(preset Preset, plan concatPlan) ffmpeg.KwArgs {
	kw := preset.OutputArgs(plan.WithAudio)
	kw["preset"] = "medium"
	kw["threads"] = 4
	if plan.RefFPS > 0 {
		kw["r"] = fmt.Sprintf("%.6f", plan.RefFPS)
	}
	return kw
}

// concatDemuxerCopy joins uniformly encoded inputs without re-encoding.
func (e *Engine) concatDemuxerCopy(ctx context.Context, paths []string, output string) error {
	listFile, err := createConcatList(paths)
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	defer func() { _ = os.Remove(listFile) }()

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		output,
	}
	return e.runArgs(ctx, args)
}

// createConcatList writes the file list consumed by ffmpeg's concat demuxer.
func createConcatList(videoPaths []string) (string, error) {
	f, err := os.CreateTemp("", "ffmpeg-concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for _, path := range videoPaths {
		// Convert to absolute path for safety
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("get absolute path for %s: %w", path, err)
		}
		// Escape single quotes in path
		escapedPath := strings.ReplaceAll(absPath, "'", "'\\''")
		if _, err := fmt.Fprintf(f, "file '%s'\n", escapedPath); err != nil {
			return "", fmt.Errorf("write to concat list: %w", err)
		}
	}

	return f.Name(), nil
}
