// Package geometry provides pure planning functions for aspect-ratio
// conversion: crop rectangles, pad canvases and stretch targets. It performs
// no I/O; callers feed probed dimensions in and hand the resulting plans to
// the encoding layer.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRatio is returned when an aspect ratio has a non-positive component.
var ErrInvalidRatio = errors.New("geometry: aspect ratio components must be positive")

// RatioTolerance is the maximum difference between two decimal aspect ratios
// for them to be treated as equal. Padding a clip whose ratio is already this
// close to the target would produce a degenerate near-zero band, so PadSize
// returns a no-op instead.
const RatioTolerance = 0.01

// Size is a pixel dimension pair.
type Size struct {
	Width  int
	Height int
}

// Pixels returns the total pixel count of the size.
func (s Size) Pixels() int {
	return s.Width * s.Height
}

// Ratio returns the decimal aspect ratio (width / height).
func (s Size) Ratio() float64 {
	if s.Height == 0 {
		return 0
	}
	return float64(s.Width) / float64(s.Height)
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Rect is a sub-rectangle of a frame, with (X, Y) as the top-left corner.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Ratio is a target aspect ratio expressed as a pair of positive integers.
type Ratio struct {
	W int
	H int
}

// NewRatio validates and constructs a Ratio.
func NewRatio(w, h int) (Ratio, error) {
	if w <= 0 || h <= 0 {
		return Ratio{}, fmt.Errorf("%w: got %d:%d", ErrInvalidRatio, w, h)
	}
	return Ratio{W: w, H: h}, nil
}

// Decimal returns the ratio as a float (W / H).
func (r Ratio) Decimal() float64 {
	return float64(r.W) / float64(r.H)
}

func (r Ratio) String() string {
	return fmt.Sprintf("%d:%d", r.W, r.H)
}

// CropRect computes the centered sub-rectangle of orig that has the target
// aspect ratio. When the clip is wider than the target the width is cropped;
// otherwise the height is. Integer truncation may make the result up to one
// pixel narrower per side than the exact ratio.
func CropRect(orig Size, target Ratio) Rect {
	current := orig.Ratio()
	want := target.Decimal()

	if current > want {
		// Wider than target: crop width, centered horizontally.
		newWidth := int(float64(orig.Height) * want)
		center := orig.Width / 2
		x1 := center - newWidth/2
		x2 := center + newWidth/2
		return Rect{X: x1, Y: 0, Width: x2 - x1, Height: orig.Height}
	}

	// Taller than target: crop height, centered vertically.
	newHeight := int(float64(orig.Width) / want)
	center := orig.Height / 2
	y1 := center - newHeight/2
	y2 := center + newHeight/2
	return Rect{X: 0, Y: y1, Width: orig.Width, Height: y2 - y1}
}

// PadPlan describes the canvas a clip should be composited onto and where the
// clip sits on it.
type PadPlan struct {
	// Canvas is the output frame size. It always contains the original clip.
	Canvas Size
	// OffsetX and OffsetY are the top-left placement of the clip on the canvas.
	OffsetX int
	OffsetY int
	// NoOp is true when the clip's ratio already matches the target within
	// RatioTolerance; the canvas equals the original size and no background
	// should be generated.
	NoOp bool
}

// PadSize computes the enlarged canvas needed to bring orig to the target
// ratio by padding. The enlarged dimension is forced even (rounded up by one
// if odd) because chroma-subsampled encoders reject odd dimensions. Padding
// is split evenly between the two sides; the clip itself is never scaled.
func PadSize(orig Size, target Ratio) PadPlan {
	current := orig.Ratio()
	want := target.Decimal()

	if math.Abs(current-want) < RatioTolerance {
		return PadPlan{Canvas: orig, NoOp: true}
	}

	if current > want {
		// Wider than target: enlarge height, bands top and bottom.
		newHeight := int(float64(orig.Width) / want)
		if newHeight%2 != 0 {
			newHeight++
		}
		return PadPlan{
			Canvas:  Size{Width: orig.Width, Height: newHeight},
			OffsetY: (newHeight - orig.Height) / 2,
		}
	}

	// Taller than target: enlarge width, bands left and right.
	newWidth := int(float64(orig.Height) * want)
	if newWidth%2 != 0 {
		newWidth++
	}
	return PadPlan{
		Canvas:  Size{Width: newWidth, Height: orig.Height},
		OffsetX: (newWidth - orig.Width) / 2,
	}
}

// StretchSize computes the target dimensions for the stretch method. The
// larger original dimension is kept as the base width and the height is
// derived from the target ratio. This does not preserve the original pixel
// area; the asymmetry is inherited behavior that callers rely on.
func StretchSize(orig Size, target Ratio) Size {
	base := orig.Width
	if orig.Height > base {
		base = orig.Height
	}
	return Size{
		Width:  base,
		Height: int(float64(base) / target.Decimal()),
	}
}

// FitMaxDimension scales size down proportionally so that its larger
// dimension is at most limit, rounding each dimension down to even. Sizes
// already within the limit are returned unchanged.
func FitMaxDimension(s Size, limit int) Size {
	larger := s.Width
	if s.Height > larger {
		larger = s.Height
	}
	if larger <= limit || larger == 0 {
		return s
	}

	scale := float64(limit) / float64(larger)
	newWidth := int(float64(s.Width) * scale)
	newHeight := int(float64(s.Height) * scale)
	if newWidth%2 != 0 {
		newWidth--
	}
	if newHeight%2 != 0 {
		newHeight--
	}
	return Size{Width: newWidth, Height: newHeight}
}
