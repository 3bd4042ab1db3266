package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ashokgit/videoresizer-api/internal/geometry"
)

func TestParseRGB(t *testing.T) {
	tests := []struct {
		in      string
		want    RGB
		wantErr bool
	}{
		{"#000000", RGB{0, 0, 0}, false},
		{"#FFFFFF", RGB{255, 255, 255}, false},
		{"#FF8000", RGB{255, 128, 0}, false},
		{"ff8000", RGB{255, 128, 0}, false},
		{"#abcdef", RGB{0xAB, 0xCD, 0xEF}, false},
		{"#FFF", RGB{}, true},
		{"#GGGGGG", RGB{}, true},
		{"", RGB{}, true},
		{"#FF80001", RGB{}, true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseRGB(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidColor) {
					t.Fatalf("error = %v, want ErrInvalidColor", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRGB(%q) error = %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("ParseRGB(%q) = %+v, want %+v", tc.in, got, tc.want)
			}
		})
	}
}

func TestRGBString(t *testing.T) {
	c := RGB{R: 255, G: 128, B: 0}
	if got := c.String(); got != "0xFF8000" {
		t.Errorf("String() = %q, want 0xFF8000", got)
	}
	if got := (RGB{}).String(); got != "0x000000" {
		t.Errorf("String() = %q, want 0x000000", got)
	}
}

func TestBlurOptionsNormalized(t *testing.T) {
	tests := []struct {
		name string
		in   BlurOptions
		want BlurOptions
	}{
		{"within range", BlurOptions{Strength: 25, GradientBlend: 0.3}, BlurOptions{Strength: 25, GradientBlend: 0.3}},
		{"strength too low", BlurOptions{Strength: 0, GradientBlend: 0.5}, BlurOptions{Strength: 1, GradientBlend: 0.5}},
		{"strength too high", BlurOptions{Strength: 200, GradientBlend: 0.5}, BlurOptions{Strength: 50, GradientBlend: 0.5}},
		{"blend negative", BlurOptions{Strength: 10, GradientBlend: -1}, BlurOptions{Strength: 10, GradientBlend: 0}},
		{"blend too high", BlurOptions{Strength: 10, GradientBlend: 1.5}, BlurOptions{Strength: 10, GradientBlend: 1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.in.normalized(); got != tc.want {
				t.Errorf("normalized() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestResizeValidation(t *testing.T) {
	e := NewEngine("", nil, nil)
	ctx := context.Background()
	tmpDir := t.TempDir()

	t.Run("missing input", func(t *testing.T) {
		err := e.Resize(ctx, ResizeRequest{
			Input:  filepath.Join(tmpDir, "missing.mp4"),
			Output: filepath.Join(tmpDir, "out.mp4"),
			Ratio:  geometry.Ratio{W: 1, H: 1},
			Method: MethodCrop,
		})
		if !errors.Is(err, ErrInputNotFound) {
			t.Errorf("error = %v, want ErrInputNotFound", err)
		}
	})

	t.Run("invalid ratio", func(t *testing.T) {
		path := filepath.Join(tmpDir, "present.mp4")
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		err := e.Resize(ctx, ResizeRequest{
			Input:  path,
			Output: filepath.Join(tmpDir, "out.mp4"),
			Ratio:  geometry.Ratio{W: 0, H: 9},
			Method: MethodCrop,
		})
		if !errors.Is(err, geometry.ErrInvalidRatio) {
			t.Errorf("error = %v, want ErrInvalidRatio", err)
		}
	})
}

func TestResize(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	e := NewEngine("", nil, nil)
	ctx := context.Background()

	t.Run("crop wide to square", func(t *testing.T) {
		src := filepath.Join(tmpDir, "wide.mp4")
		dst := filepath.Join(tmpDir, "cropped.mp4")
		createTestVideoSized(t, src, 0.5, "red", 128, 64, 25)

		err := e.Resize(ctx, ResizeRequest{
			Input:  src,
			Output: dst,
			Ratio:  geometry.Ratio{W: 1, H: 1},
			Method: MethodCrop,
			Preset: "low",
		})
		if err != nil {
			t.Fatalf("Resize failed: %v", err)
		}
		verifyVideoDimensions(t, dst, 64, 64)
	})

	t.Run("pad wide to portrait", func(t *testing.T) {
		src := filepath.Join(tmpDir, "landscape.mp4")
		dst := filepath.Join(tmpDir, "padded.mp4")
		createTestVideoSized(t, src, 0.5, "blue", 192, 108, 25)

		err := e.Resize(ctx, ResizeRequest{
			Input:    src,
			Output:   dst,
			Ratio:    geometry.Ratio{W: 9, H: 16},
			Method:   MethodPad,
			PadColor: RGB{},
			Preset:   "low",
		})
		if err != nil {
			t.Fatalf("Resize failed: %v", err)
		}
		// 192/(9/16) = 341.33, rounded up to even.
		verifyVideoDimensions(t, dst, 192, 342)
	})

	t.Run("pad same ratio is a no-op re-encode", func(t *testing.T) {
		src := filepath.Join(tmpDir, "square.mp4")
		dst := filepath.Join(tmpDir, "still_square.mp4")
		createTestVideo(t, src, 0.5, "green")

		err := e.Resize(ctx, ResizeRequest{
			Input:  src,
			Output: dst,
			Ratio:  geometry.Ratio{W: 1, H: 1},
			Method: MethodPad,
			Preset: "low",
		})
		if err != nil {
			t.Fatalf("Resize failed: %v", err)
		}
		verifyVideoDimensions(t, dst, 64, 64)
	})

	t.Run("stretch square to landscape", func(t *testing.T) {
		src := filepath.Join(tmpDir, "sq.mp4")
		dst := filepath.Join(tmpDir, "stretched.mp4")
		createTestVideo(t, src, 0.5, "red")

		err := e.Resize(ctx, ResizeRequest{
			Input:  src,
			Output: dst,
			Ratio:  geometry.Ratio{W: 16, H: 9},
			Method: MethodStretch,
			Preset: "low",
		})
		if err != nil {
			t.Fatalf("Resize failed: %v", err)
		}
		// Base stays at max(64,64)=64; height 64/(16/9)=36.
		verifyVideoDimensions(t, dst, 64, 36)
	})

	t.Run("pad with blurred background", func(t *testing.T) {
		src := filepath.Join(tmpDir, "blur_src.mp4")
		dst := filepath.Join(tmpDir, "blurred.mp4")
		createTestVideoSized(t, src, 0.5, "red", 128, 64, 25)

		blur := DefaultBlurOptions
		err := e.Resize(ctx, ResizeRequest{
			Input:  src,
			Output: dst,
			Ratio:  geometry.Ratio{W: 1, H: 1},
			Method: MethodPad,
			Blur:   &blur,
			Preset: "low",
		})
		if err != nil {
			t.Fatalf("Resize failed: %v", err)
		}
		verifyVideoDimensions(t, dst, 128, 128)
	})

	t.Run("pad with blur but no gradient", func(t *testing.T) {
		src := filepath.Join(tmpDir, "blur_ng_src.mp4")
		dst := filepath.Join(tmpDir, "blurred_ng.mp4")
		createTestVideoSized(t, src, 0.5, "blue", 128, 64, 25)

		err := e.Resize(ctx, ResizeRequest{
			Input:  src,
			Output: dst,
			Ratio:  geometry.Ratio{W: 1, H: 1},
			Method: MethodPad,
			Blur:   &BlurOptions{Strength: 10, GradientBlend: 0},
			Preset: "low",
		})
		if err != nil {
			t.Fatalf("Resize failed: %v", err)
		}
		verifyVideoDimensions(t, dst, 128, 128)
	})

	t.Run("input without audio", func(t *testing.T) {
		src := filepath.Join(tmpDir, "silent.mp4")
		dst := filepath.Join(tmpDir, "silent_out.mp4")
		createTestVideoNoAudio(t, src, 0.5, "green")

		err := e.Resize(ctx, ResizeRequest{
			Input:  src,
			Output: dst,
			Ratio:  geometry.Ratio{W: 16, H: 9},
			Method: MethodCrop,
			Preset: "low",
		})
		if err != nil {
			t.Fatalf("Resize failed: %v", err)
		}

		info, err := e.Probe(ctx, dst)
		if err != nil {
			t.Fatalf("Probe failed: %v", err)
		}
		if info.HasAudio {
			t.Error("output has audio, want none")
		}
	})

	t.Run("unknown method", func(t *testing.T) {
		src := filepath.Join(tmpDir, "m.mp4")
		createTestVideo(t, src, 0.5, "red")

		err := e.Resize(ctx, ResizeRequest{
			Input:  src,
			Output: filepath.Join(tmpDir, "never.mp4"),
			Ratio:  geometry.Ratio{W: 1, H: 1},
			Method: ResizeMethod("zoom"),
		})
		if !errors.Is(err, ErrUnknownResizeMethod) {
			t.Errorf("error = %v, want ErrUnknownResizeMethod", err)
		}
	})
}
