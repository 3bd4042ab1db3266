// Package media provides video probing and processing on top of the ffmpeg CLI.
package media

import "context"

// Processor defines the video operations the pipeline composes. Engine is
// the ffmpeg-backed implementation; tests substitute fakes.
type Processor interface {
	// Probe extracts stream metadata (duration, frame rate, dimensions,
	// audio presence) from the video at path.
	Probe(ctx context.Context, path string) (*VideoInfo, error)

	// Resize converts the input to the target aspect ratio by cropping,
	// padding, or stretching, then re-encodes with the quality preset.
	Resize(ctx context.Context, req ResizeRequest) error

	// Trim extracts the [start,end) time range from the input and
	// re-encodes it. Start and end are clamped to the clip duration.
	Trim(ctx context.Context, req TrimRequest) error

	// Concatenate joins two or more clips into one output. The first clip
	// is the reference: later clips are standardized to its resolution and
	// frame rate before joining.
	Concatenate(ctx context.Context, req ConcatRequest) (*ConcatResult, error)

	// AddWatermark overlays an image on the video at one of the fixed
	// anchor positions.
	AddWatermark(ctx context.Context, req WatermarkRequest) error
}

// Interface guard.
var _ Processor = (*Engine)(nil)
