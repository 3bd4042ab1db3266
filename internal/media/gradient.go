package media

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
)

// gradientSkipThreshold is the blend value at or below which the radial
// gradient is skipped entirely; the darkening would be imperceptible.
const gradientSkipThreshold = 0.05

// renderGradientMask builds the radial gain map the compositor multiplies
// the background with. Each pixel holds 1 - strength*clip(d/dmax, 0, blend)
// raised to exponent, scaled to 8 bits, where d is the distance from the
// frame center and dmax the distance to a corner. The mask is rendered once
// per run and looped across frames by the filter graph.
func renderGradientMask(w, h int, blend, exponent, strength float64) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, w, h))
	cx := float64(w) / 2
	cy := float64(h) / 2
	maxDist := math.Sqrt(cx*cx + cy*cy)
	if maxDist == 0 {
		return mask
	}

	for y := 0; y < h; y++ {
		dy := float64(y) - cy
		for x := 0; x < w; x++ {
			dx := float64(x) - cx
			m := math.Sqrt(dx*dx+dy*dy) / maxDist
			if m > blend {
				m = blend
			}
			if exponent != 1 {
				m = math.Pow(m, exponent)
			}
			gain := 1 - strength*m
			mask.SetGray(x, y, color.Gray{Y: uint8(math.Round(gain * 255))})
		}
	}
	return mask
}

// writeGradientMask renders the mask and writes it as a PNG to path.
func writeGradientMask(path string, w, h int, blend, exponent, strength float64) error {
	f, err := os.Create(path) // #nosec G304 - path is a temp file we created
	if err != nil {
		return fmt.Errorf("create mask file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := png.Encode(f, renderGradientMask(w, h, blend, exponent, strength)); err != nil {
		return fmt.Errorf("encode mask: %w", err)
	}
	return nil
}
