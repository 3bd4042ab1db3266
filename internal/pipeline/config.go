package pipeline

import (
	"fmt"

	"github.com/ashokgit/videoresizer-api/internal/geometry"
	"github.com/ashokgit/videoresizer-api/internal/media"
)

// TimeRange selects the seconds of the source to keep. Both bounds are
// required to enable the stage; values outside the clip are clamped to
// its duration before the range is checked for emptiness.
type TimeRange struct {
	Start float64
	End   float64
}

// RatioChange converts the video to a new aspect ratio.
type RatioChange struct {
	Ratio  geometry.Ratio
	Method media.ResizeMethod
	// PadColor fills the bands for the pad method when Blur is nil.
	PadColor media.RGB
	// Blur replaces solid pad bands with a blurred background of the clip.
	Blur *media.BlurOptions
}

// WatermarkSpec overlays an image at a fixed anchor for the whole clip.
type WatermarkSpec struct {
	ImagePath string
	Position  media.WatermarkPosition
}

// Config selects which stages a run executes. A nil section skips its
// stage; the zero Config copies the input through untouched.
type Config struct {
	// TimeRange trims the source before any other stage.
	TimeRange *TimeRange
	// Resize converts the aspect ratio of the main video and, when CTAPath
	// is set, of the CTA clip as well.
	Resize *RatioChange
	// CTAPath names a call-to-action clip appended after the main video.
	// A missing file degrades the run instead of failing it.
	CTAPath string
	// Watermark overlays an image as the last processing step.
	Watermark *WatermarkSpec
	// Preset names the encode quality. Empty or unknown names resolve to
	// the default.
	Preset string
}

// Validate rejects configurations no stage could execute. Checks that need
// stream metadata, like time-range emptiness, are left to the stages.
func (c Config) Validate() error {
	if c.Resize != nil {
		if _, err := geometry.NewRatio(c.Resize.Ratio.W, c.Resize.Ratio.H); err != nil {
			return err
		}
		switch c.Resize.Method {
		case media.MethodCrop, media.MethodPad, media.MethodStretch:
		default:
			return fmt.Errorf("%w: %q", media.ErrUnknownResizeMethod, c.Resize.Method)
		}
	}
	return nil
}
