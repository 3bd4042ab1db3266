package media

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/ashokgit/videoresizer-api/internal/geometry"
)

// blurTier is one row of the resolution-bucketed blur strategy. The bucket
// is selected by the pixel count of the background canvas: bigger frames get
// a harder downscale (cheaper blur) and a lighter, low-resolution gradient.
type blurTier struct {
	name         string
	minPixels    int // bucket applies when canvas pixels exceed this
	floorFactor  int // minimum downscale factor
	divisor      int // strength/divisor raises the factor beyond the floor
	maskStrength float64
	maskExponent float64
	fastMask     bool // render the gradient mask at a capped resolution
}

// blurTiers is ordered from largest bucket to smallest; the first match wins.
var blurTiers = []blurTier{
	{name: "ultra", minPixels: Pixels4K, floorFactor: 4, divisor: 8, maskStrength: 0.5, maskExponent: 1, fastMask: true},
	{name: "large", minPixels: PixelsFullHD, floorFactor: 3, divisor: 10, maskStrength: 0.5, maskExponent: 1, fastMask: true},
	{name: "standard", minPixels: 0, floorFactor: 2, divisor: 12, maskStrength: 0.7, maskExponent: 1.5, fastMask: false},
}

func tierFor(pixels int) blurTier {
	for _, t := range blurTiers {
		if pixels > t.minPixels {
			return t
		}
	}
	return blurTiers[len(blurTiers)-1]
}

// factor derives the downscale factor from the blur strength, bounded below
// by the tier floor.
func (t blurTier) factor(strength int) int {
	f := strength / t.divisor
	if f < t.floorFactor {
		f = t.floorFactor
	}
	return f
}

// maskRenderSize caps the gradient mask resolution for fast-mask tiers; the
// filter graph upsamples it back to canvas size.
func maskRenderSize(canvas geometry.Size, fast bool) geometry.Size {
	if !fast {
		return canvas
	}
	const maxW, maxH = 1280, 720
	scale := 1.0
	if s := float64(maxW) / float64(canvas.Width); s < scale {
		scale = s
	}
	if s := float64(maxH) / float64(canvas.Height); s < scale {
		scale = s
	}
	if scale >= 1 {
		return canvas
	}
	w := int(float64(canvas.Width) * scale)
	h := int(float64(canvas.Height) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return geometry.Size{Width: w, Height: h}
}

// compositeBlurBackground pads the clip by compositing it over a blurred,
// cover-fit rendition of itself. Failures degrade instead of aborting: first
// the dim step is dropped, then the whole background falls back to a flat
// dark gray. Only cancellation propagates immediately.
func (e *Engine) compositeBlurBackground(ctx context.Context, req ResizeRequest, info *VideoInfo, plan geometry.PadPlan, preset Preset) error {
	opts := req.Blur.normalized()
	canvas := geometry.Size{
		Width:  evenFloor(plan.Canvas.Width),
		Height: evenFloor(plan.Canvas.Height),
	}
	tier := tierFor(canvas.Pixels())

	e.logger.Info("compositing blurred background",
		slog.String("canvas", canvas.String()),
		slog.String("tier", tier.name),
		slog.Int("strength", opts.Strength),
		slog.Float64("gradient_blend", opts.GradientBlend),
	)

	maskPath := ""
	if opts.GradientBlend > gradientSkipThreshold {
		f, err := os.CreateTemp("", "gradient-mask-*.png")
		if err == nil {
			maskPath = f.Name()
			_ = f.Close()
			defer func() { _ = os.Remove(maskPath) }()

			size := maskRenderSize(canvas, tier.fastMask)
			if err := writeGradientMask(maskPath, size.Width, size.Height,
				opts.GradientBlend, tier.maskExponent, tier.maskStrength); err != nil {
				e.logger.Warn("gradient mask generation failed, skipping gradient",
					slog.String("error", err.Error()),
				)
				maskPath = ""
			}
		} else {
			e.logger.Warn("gradient mask temp file failed, skipping gradient",
				slog.String("error", err.Error()),
			)
		}
	}

	err := e.run(ctx, e.blurGraph(req, info, plan, canvas, tier, opts, maskPath, preset, true))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}

	e.logger.Warn("blurred background composite failed, retrying without dim",
		slog.String("error", err.Error()),
	)
	err = e.run(ctx, e.blurGraph(req, info, plan, canvas, tier, opts, maskPath, preset, false))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}

	e.logger.Warn("blurred background composite failed, falling back to flat background",
		slog.String("error", err.Error()),
	)
	return e.run(ctx, e.flatBackgroundGraph(req, info, plan, canvas, preset))
}

// blurGraph builds the full compositing graph: split the input, cover-fit
// and blur one leg into the background, then overlay the untouched leg
// centered on top.
func (e *Engine) blurGraph(req ResizeRequest, info *VideoInfo, plan geometry.PadPlan, canvas geometry.Size, tier blurTier, opts BlurOptions, maskPath string, preset Preset, dim bool) *ffmpeg.Stream {
	input := ffmpeg.Input(req.Input)
	split := input.Video().Split()
	fg := split.Get("0")
	bg := split.Get("1")

	// Cover-fit: scale so the frame fully covers the canvas.
	scale := math.Max(
		float64(canvas.Width)/float64(info.Width),
		float64(canvas.Height)/float64(info.Height),
	)
	scaledW := evenFloor(int(float64(info.Width) * scale))
	scaledH := evenFloor(int(float64(info.Height) * scale))
	if scaledW < canvas.Width {
		scaledW = canvas.Width
	}
	if scaledH < canvas.Height {
		scaledH = canvas.Height
	}

	v := bg.Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:%d", scaledW, scaledH)})

	// Center-crop the overflow down to exactly canvas size.
	if scaledW > canvas.Width || scaledH > canvas.Height {
		cropX := (scaledW - canvas.Width) / 2
		cropY := (scaledH - canvas.Height) / 2
		if cropX < 0 {
			cropX = 0
		}
		if cropY < 0 {
			cropY = 0
		}
		v = v.Filter("crop", ffmpeg.Args{
			fmt.Sprintf("%d:%d:%d:%d", canvas.Width, canvas.Height, cropX, cropY),
		})
	}

	// Resample-based blur: downscale hard, then upscale back. Cost follows
	// the downscale factor instead of a kernel radius.
	factor := tier.factor(opts.Strength)
	downW := canvas.Width / factor
	if downW < 16 {
		downW = 16
	}
	downH := canvas.Height / factor
	if downH < 16 {
		downH = 16
	}
	v = v.
		Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:%d", evenFloor(downW), evenFloor(downH))}).
		Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:%d", canvas.Width, canvas.Height)})

	// Radial gradient: multiply by the precomputed gain map.
	if maskPath != "" {
		mask := ffmpeg.Input(maskPath, ffmpeg.KwArgs{"loop": 1}).
			Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:%d", canvas.Width, canvas.Height)}).
			Filter("format", ffmpeg.Args{"gbrp"})
		v = v.Filter("format", ffmpeg.Args{"gbrp"})
		v = ffmpeg.Filter([]*ffmpeg.Stream{v, mask}, "blend", ffmpeg.Args{"all_mode=multiply:shortest=1"})
		v = v.Filter("format", ffmpeg.Args{"yuv420p"})
	}

	if dim {
		v = v.Filter("colorchannelmixer", ffmpeg.Args{"rr=0.8:gg=0.8:bb=0.8"})
	}

	composed := v.Overlay(fg, "", ffmpeg.KwArgs{"x": plan.OffsetX, "y": plan.OffsetY})
	return outputStreams(input, composed, req.Output, preset, info.HasAudio)
}

// flatBackgroundGraph is the last-resort background: a flat dark gray canvas
// with the clip overlaid at the pad offset.
func (e *Engine) flatBackgroundGraph(req ResizeRequest, info *VideoInfo, plan geometry.PadPlan, canvas geometry.Size, preset Preset) *ffmpeg.Stream {
	input := ffmpeg.Input(req.Input)

	colorSpec := fmt.Sprintf("color=c=0x202020:s=%dx%d", canvas.Width, canvas.Height)
	if info.FPS > 0 {
		colorSpec += fmt.Sprintf(":r=%.3f", info.FPS)
	}
	if info.Duration > 0 {
		colorSpec += fmt.Sprintf(":d=%.3f", info.Duration)
	}
	bg := ffmpeg.Input(colorSpec, ffmpeg.KwArgs{"f": "lavfi"})

	composed := bg.Overlay(input.Video(), "", ffmpeg.KwArgs{
		"x":        plan.OffsetX,
		"y":        plan.OffsetY,
		"shortest": 1,
	})
	return outputStreams(input, composed, req.Output, preset, info.HasAudio)
}
