package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/ashokgit/videoresizer-api/internal/geometry"
)

// Static errors for resizing.
var (
	// ErrUnknownResizeMethod is returned for a method outside crop/pad/stretch.
	ErrUnknownResizeMethod = errors.New("unknown resize method")
	// ErrInvalidColor is returned when a pad color string cannot be parsed.
	ErrInvalidColor = errors.New("invalid color: expected #RRGGBB")
)

// ResizeMethod selects how content is adapted to the target aspect ratio.
type ResizeMethod string

const (
	// MethodCrop cuts away content outside a centered window of the target ratio.
	MethodCrop ResizeMethod = "crop"
	// MethodPad keeps all content and fills the remaining canvas with bands.
	MethodPad ResizeMethod = "pad"
	// MethodStretch resamples to the target ratio, distorting the content.
	MethodStretch ResizeMethod = "stretch"
)

// RGB is an 8-bit color triple used for pad bands.
type RGB struct {
	R, G, B uint8
}

// String formats the color the way ffmpeg filter arguments expect.
func (c RGB) String() string {
	return fmt.Sprintf("0x%02X%02X%02X", c.R, c.G, c.B)
}

// ParseRGB parses a "#RRGGBB" hex color. The leading "#" is optional.
func ParseRGB(s string) (RGB, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return RGB{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
	}, nil
}

// BlurOptions control blurred-background padding.
type BlurOptions struct {
	// Strength is the blur intensity, clamped to [1,50].
	Strength int
	// GradientBlend is the radial edge-darkening amount, clamped to [0,1].
	// Values at or below 0.05 disable the gradient.
	GradientBlend float64
}

// DefaultBlurOptions are applied when a request enables background blur
// without tuning it.
var DefaultBlurOptions = BlurOptions{Strength: 25, GradientBlend: 0.3}

// normalized returns a copy with both fields clamped to their valid ranges.
func (b BlurOptions) normalized() BlurOptions {
	if b.Strength < 1 {
		b.Strength = 1
	}
	if b.Strength > 50 {
		b.Strength = 50
	}
	if b.GradientBlend < 0 {
		b.GradientBlend = 0
	}
	if b.GradientBlend > 1 {
		b.GradientBlend = 1
	}
	return b
}

// ResizeRequest describes one aspect-ratio conversion.
type ResizeRequest struct {
	Input  string
	Output string
	Ratio  geometry.Ratio
	Method ResizeMethod
	// PadColor fills the bands for the pad method when Blur is nil.
	PadColor RGB
	// Blur, when non-nil with the pad method, replaces solid bands with a
	// blurred cover-fit background of the clip itself.
	Blur *BlurOptions
	// Preset names the quality preset. Empty or unknown names resolve to
	// the default.
	Preset string
}

// Resize converts the input to the target aspect ratio and re-encodes it.
func (e *Engine) Resize(ctx context.Context, req ResizeRequest) error {
	if err := ValidateInput(req.Input); err != nil {
		return err
	}
	if _, err := geometry.NewRatio(req.Ratio.W, req.Ratio.H); err != nil {
		return err
	}

	info, err := e.Probe(ctx, req.Input)
	if err != nil {
		return err
	}

	preset := e.lookupPreset(req.Preset)

	e.logger.Info("resizing video",
		slog.String("input", req.Input),
		slog.String("size", info.Size().String()),
		slog.String("target_ratio", req.Ratio.String()),
		slog.String("method", string(req.Method)),
		slog.String("preset", preset.Name),
	)

	switch req.Method {
	case MethodCrop:
		rect := geometry.CropRect(info.Size(), req.Ratio)
		input := ffmpeg.Input(req.Input)
		v := input.Video().Filter("crop", ffmpeg.Args{
			fmt.Sprintf("%d:%d:%d:%d", rect.Width, rect.Height, rect.X, rect.Y),
		})
		return e.run(ctx, outputStreams(input, v, req.Output, preset, info.HasAudio))

	case MethodPad:
		return e.resizePad(ctx, req, info, preset)

	case MethodStretch:
		size := geometry.StretchSize(info.Size(), req.Ratio)
		input := ffmpeg.Input(req.Input)
		v := input.Video().Filter("scale", ffmpeg.Args{
			fmt.Sprintf("%d:%d", evenFloor(size.Width), evenFloor(size.Height)),
		})
		return e.run(ctx, outputStreams(input, v, req.Output, preset, info.HasAudio))

	default:
		return fmt.Errorf("%w: %q", ErrUnknownResizeMethod, req.Method)
	}
}

// resizePad handles the pad method: a no-op re-encode when the ratio already
// matches, solid color bands, or a blurred background composite.
func (e *Engine) resizePad(ctx context.Context, req ResizeRequest, info *VideoInfo, preset Preset) error {
	plan := geometry.PadSize(info.Size(), req.Ratio)

	if plan.NoOp {
		// Ratio already matches within tolerance; re-encode unchanged.
		e.logger.Info("ratio within tolerance, skipping pad",
			slog.String("size", info.Size().String()),
			slog.String("target_ratio", req.Ratio.String()),
		)
		input := ffmpeg.Input(req.Input)
		return e.run(ctx, outputStreams(input, input.Video(), req.Output, preset, info.HasAudio))
	}

	if req.Blur != nil {
		return e.compositeBlurBackground(ctx, req, info, plan, preset)
	}

	input := ffmpeg.Input(req.Input)
	v := input.Video().Filter("pad", ffmpeg.Args{
		fmt.Sprintf("%d:%d:%d:%d:color=%s",
			plan.Canvas.Width, plan.Canvas.Height, plan.OffsetX, plan.OffsetY, req.PadColor),
	})
	return e.run(ctx, outputStreams(input, v, req.Output, preset, info.HasAudio))
}

// lookupPreset resolves a preset name, logging when an unknown name falls
// back to the default.
func (e *Engine) lookupPreset(name string) Preset {
	preset, found := LookupPreset(name)
	if !found && name != "" {
		e.logger.Warn("unknown quality preset, using default",
			slog.String("requested", name),
			slog.String("using", preset.Name),
		)
	}
	return preset
}

// outputStreams attaches the processed video stream and, when present, the
// input's audio stream to the output file.
func outputStreams(input, video *ffmpeg.Stream, path string, preset Preset, hasAudio bool) *ffmpeg.Stream {
	if hasAudio {
		return ffmpeg.Output([]*ffmpeg.Stream{video, input.Audio()}, path, preset.OutputArgs(true))
	}
	return video.Output(path, preset.OutputArgs(false))
}
