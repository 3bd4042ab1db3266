package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// WatermarkPosition names a fixed overlay anchor.
type WatermarkPosition string

const (
	PositionTopLeft     WatermarkPosition = "top-left"
	PositionTopRight    WatermarkPosition = "top-right"
	PositionBottomLeft  WatermarkPosition = "bottom-left"
	PositionBottomRight WatermarkPosition = "bottom-right"
	PositionCenter      WatermarkPosition = "center"
)

// watermarkMargin is the gap in pixels between the mark and the frame edge.
const watermarkMargin = 20

// watermarkHeightFraction sizes the mark relative to the video height.
const watermarkHeightFraction = 0.15

// WatermarkRequest describes one watermark overlay.
type WatermarkRequest struct {
	Input  string
	Output string
	// Image is the watermark file; PNG alpha is respected.
	Image    string
	Position WatermarkPosition
	Preset   string
}

// AddWatermark overlays the image on the video at the requested anchor. The
// image is scaled so its height is 15% of the video height and persists for
// the whole clip.
func (e *Engine) AddWatermark(ctx context.Context, req WatermarkRequest) error {
	if err := ValidateInput(req.Input); err != nil {
		return err
	}
	if fi, err := os.Stat(req.Image); err != nil || fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrInputNotFound, req.Image)
	}

	info, err := e.Probe(ctx, req.Input)
	if err != nil {
		return err
	}

	preset := e.lookupPreset(req.Preset)
	markHeight := int(float64(info.Height) * watermarkHeightFraction)
	if markHeight < 1 {
		markHeight = 1
	}
	x, y := watermarkPosition(req.Position)

	e.logger.Info("adding watermark",
		slog.String("input", req.Input),
		slog.String("image", req.Image),
		slog.String("position", string(req.Position)),
		slog.Int("mark_height", markHeight),
		slog.String("preset", preset.Name),
	)

	input := ffmpeg.Input(req.Input)
	// Width -1 keeps the image's own aspect ratio. The overlay repeats the
	// image's last (only) frame, so the mark covers the full duration.
	mark := ffmpeg.Input(req.Image).
		Filter("scale", ffmpeg.Args{fmt.Sprintf("-1:%d", markHeight)})
	v := input.Video().Overlay(mark, "", ffmpeg.KwArgs{"x": x, "y": y})
	return e.run(ctx, outputStreams(input, v, req.Output, preset, info.HasAudio))
}

// watermarkPosition maps an anchor to overlay x/y expressions, evaluated by
// ffmpeg against the main and overlay dimensions. Anything outside the known
// set gets the top-left margin offsets.
func watermarkPosition(pos WatermarkPosition) (x, y string) {
	m := fmt.Sprintf("%d", watermarkMargin)
	switch pos {
	case PositionTopRight:
		return fmt.Sprintf("main_w-overlay_w-%s", m), m
	case PositionBottomLeft:
		return m, fmt.Sprintf("main_h-overlay_h-%s", m)
	case PositionBottomRight:
		return fmt.Sprintf("main_w-overlay_w-%s", m), fmt.Sprintf("main_h-overlay_h-%s", m)
	case PositionCenter:
		return "(main_w-overlay_w)/2", "(main_h-overlay_h)/2"
	default:
		// top-left and every unrecognized anchor.
		return m, m
	}
}
