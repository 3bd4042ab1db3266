package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// ErrInvalidTimeRange is returned when, after clamping to the clip bounds,
// the requested start is not strictly before the end.
var ErrInvalidTimeRange = errors.New("start time must be less than end time")

// TrimRequest describes one time-range extraction. Start and End are seconds
// from the beginning of the clip; Start is clamped to 0 and End to the clip
// duration before validation.
type TrimRequest struct {
	Input  string
	Output string
	Start  float64
	End    float64
	Preset string
}

// Trim extracts the requested time range from the input and re-encodes it.
// An empty range after clamping fails without producing an output file.
func (e *Engine) Trim(ctx context.Context, req TrimRequest) error {
	if err := ValidateInput(req.Input); err != nil {
		return err
	}

	info, err := e.Probe(ctx, req.Input)
	if err != nil {
		return err
	}

	start, end := req.Start, req.End
	if start < 0 {
		start = 0
	}
	// An unreported duration leaves the end bound to ffmpeg, which stops at
	// end-of-stream on its own.
	if info.Duration > 0 && end > info.Duration {
		end = info.Duration
	}
	if start >= end {
		return fmt.Errorf("%w: start=%.3f end=%.3f", ErrInvalidTimeRange, start, end)
	}

	preset := e.lookupPreset(req.Preset)

	e.logger.Info("trimming video",
		slog.String("input", req.Input),
		slog.Float64("start", start),
		slog.Float64("end", end),
		slog.String("preset", preset.Name),
	)

	// Input-side seeking: -ss and -to before -i address the source timeline
	// and skip decoding of everything outside the range.
	input := ffmpeg.Input(req.Input, ffmpeg.KwArgs{
		"ss": fmt.Sprintf("%.3f", start),
		"to": fmt.Sprintf("%.3f", end),
	})
	return e.run(ctx, outputStreams(input, input.Video(), req.Output, preset, info.HasAudio))
}
