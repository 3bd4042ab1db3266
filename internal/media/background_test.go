package media

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ashokgit/videoresizer-api/internal/geometry"
)

func TestTierFor(t *testing.T) {
	tests := []struct {
		name   string
		pixels int
		want   string
	}{
		{"8K canvas", 7680 * 4320, "ultra"},
		{"just above 4K", Pixels4K + 1, "ultra"},
		{"exactly 4K", Pixels4K, "large"},
		{"1440p", 2560 * 1440, "large"},
		{"just above full HD", PixelsFullHD + 1, "large"},
		{"exactly full HD", PixelsFullHD, "standard"},
		{"720p", 1280 * 720, "standard"},
		{"tiny", 64 * 64, "standard"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tierFor(tc.pixels); got.name != tc.want {
				t.Errorf("tierFor(%d) = %s, want %s", tc.pixels, got.name, tc.want)
			}
		})
	}
}

func TestBlurTierFactor(t *testing.T) {
	standard := tierFor(1280 * 720)
	large := tierFor(2560 * 1440)
	ultra := tierFor(7680 * 4320)

	tests := []struct {
		name     string
		tier     blurTier
		strength int
		want     int
	}{
		{"standard default strength", standard, 25, 2},
		{"standard max strength", standard, 50, 4},
		{"standard min strength stays at floor", standard, 1, 2},
		{"large floor dominates", large, 25, 3},
		{"large strong blur", large, 50, 5},
		{"ultra floor dominates", ultra, 25, 4},
		{"ultra strong blur", ultra, 50, 6},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.tier.factor(tc.strength); got != tc.want {
				t.Errorf("factor(%d) = %d, want %d", tc.strength, got, tc.want)
			}
		})
	}
}

func TestMaskRenderSize(t *testing.T) {
	t.Run("full resolution for standard tier", func(t *testing.T) {
		canvas := geometry.Size{Width: 1080, Height: 1080}
		if got := maskRenderSize(canvas, false); got != canvas {
			t.Errorf("maskRenderSize = %v, want %v", got, canvas)
		}
	})

	t.Run("caps a 4K canvas", func(t *testing.T) {
		got := maskRenderSize(geometry.Size{Width: 3840, Height: 2160}, true)
		if got != (geometry.Size{Width: 1280, Height: 720}) {
			t.Errorf("maskRenderSize = %v, want 1280x720", got)
		}
	})

	t.Run("keeps aspect ratio when capping", func(t *testing.T) {
		got := maskRenderSize(geometry.Size{Width: 2160, Height: 3840}, true)
		// Height is the binding constraint: scale = 720/3840.
		if got != (geometry.Size{Width: 405, Height: 720}) {
			t.Errorf("maskRenderSize = %v, want 405x720", got)
		}
	})

	t.Run("small canvas passes through even in fast mode", func(t *testing.T) {
		canvas := geometry.Size{Width: 640, Height: 360}
		if got := maskRenderSize(canvas, true); got != canvas {
			t.Errorf("maskRenderSize = %v, want %v", got, canvas)
		}
	})
}

func TestRenderGradientMask(t *testing.T) {
	t.Run("zero blend is inert", func(t *testing.T) {
		mask := renderGradientMask(32, 32, 0, 1.5, 0.7)
		for y := 0; y < 32; y++ {
			for x := 0; x < 32; x++ {
				if v := mask.GrayAt(x, y).Y; v != 255 {
					t.Fatalf("pixel (%d,%d) = %d, want 255", x, y, v)
				}
			}
		}
	})

	t.Run("darkens toward the corners", func(t *testing.T) {
		mask := renderGradientMask(64, 64, 1.0, 1.5, 0.7)
		center := mask.GrayAt(32, 32).Y
		corner := mask.GrayAt(0, 0).Y
		edge := mask.GrayAt(0, 32).Y

		if center != 255 {
			t.Errorf("center = %d, want 255", center)
		}
		if corner >= center {
			t.Errorf("corner (%d) not darker than center (%d)", corner, center)
		}
		if corner >= edge {
			t.Errorf("corner (%d) not darker than edge midpoint (%d)", corner, edge)
		}
		// Full blend and strength 0.7 leave 30% gain at the corner.
		if diff := int(corner) - 77; diff < -2 || diff > 2 {
			t.Errorf("corner = %d, want ~77", corner)
		}
	})

	t.Run("blend clips the darkening radius", func(t *testing.T) {
		clipped := renderGradientMask(64, 64, 0.5, 1.0, 0.7)
		full := renderGradientMask(64, 64, 1.0, 1.0, 0.7)

		// Past the blend radius the clipped mask stays at its plateau value,
		// so its corner is brighter than the full mask's.
		if clipped.GrayAt(0, 0).Y <= full.GrayAt(0, 0).Y {
			t.Errorf("clipped corner (%d) should be brighter than full corner (%d)",
				clipped.GrayAt(0, 0).Y, full.GrayAt(0, 0).Y)
		}
	})
}

func TestWriteGradientMask(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mask.png")
	if err := writeGradientMask(path, 40, 20, 0.3, 1.5, 0.7); err != nil {
		t.Fatalf("writeGradientMask failed: %v", err)
	}

	f, err := os.Open(path) // #nosec G304 - test-created temp file
	if err != nil {
		t.Fatalf("open mask: %v", err)
	}
	defer func() { _ = f.Close() }()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode mask: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 40 || bounds.Dy() != 20 {
		t.Errorf("mask size = %dx%d, want 40x20", bounds.Dx(), bounds.Dy())
	}
}
