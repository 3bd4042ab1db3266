package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/ashokgit/videoresizer-api/internal/geometry"
)

// Static errors for probing.
var (
	// ErrProbeFailed is returned when ffprobe fails, times out, or produces
	// output that cannot be parsed. Downstream engines treat this as a hard
	// failure: a clip that cannot be probed cannot be processed.
	ErrProbeFailed = errors.New("ffprobe failed")
	// ErrNoVideoStream is returned when the probed file has no video stream.
	ErrNoVideoStream = errors.New("no video stream found")
)

// Resolution thresholds in total pixels, used for memory planning.
const (
	// PixelsFullHD is 1920x1080.
	PixelsFullHD = 2073600
	// Pixels4K is 3840x2160. Inputs above this are treated as ultra high
	// resolution and trigger pre-processing downscales and stricter memory
	// requirements.
	Pixels4K = 8294400
)

// probeTimeout bounds a single ffprobe invocation. Probing reads only file
// headers, so a slow probe indicates a damaged file or a stuck filesystem
// rather than a large input.
const probeTimeout = 10 * time.Second

// Header scan limits passed to ffprobe. Container metadata lives at the
// start of the file, so a small probe window keeps probing fast on network
// filesystems without losing accuracy.
const (
	probeSizeBytes       = "1048576"
	analyzeDurationUsecs = "1000000"
)

// VideoInfo holds the stream metadata the pipeline needs to plan work.
type VideoInfo struct {
	// Duration is the clip length in seconds. Zero when the container does
	// not report one.
	Duration float64
	// FPS is the average frame rate. Zero when the container reports a
	// degenerate rate.
	FPS float64
	// Width and Height are the coded dimensions of the video stream.
	Width  int
	Height int
	// AspectRatio is Width/Height, or 1.0 for a degenerate height.
	AspectRatio float64
	// HasAudio reports whether the file carries at least one audio stream.
	HasAudio bool
}

// Size returns the frame dimensions.
func (v *VideoInfo) Size() geometry.Size {
	return geometry.Size{Width: v.Width, Height: v.Height}
}

// Pixels returns the total pixel count of one frame.
func (v *VideoInfo) Pixels() int {
	return v.Width * v.Height
}

// IsUltraHighRes reports whether the frame is larger than 4K.
func (v *VideoInfo) IsUltraHighRes() bool {
	return v.Pixels() > Pixels4K
}

// Prober extracts video metadata using ffprobe.
type Prober struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewProber creates a Prober. A nil logger falls back to slog.Default().
func NewProber(logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		timeout: probeTimeout,
		logger:  logger,
	}
}

// probeResult matches the ffprobe JSON output structure.
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Duration     string `json:"duration"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

// Probe extracts metadata from the video file at path. Any ffprobe failure,
// including a timeout or unparseable output, is returned as ErrProbeFailed.
func (p *Prober) Probe(ctx context.Context, path string) (*VideoInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("probe cancelled: %w", err)
	}

	out, err := ffmpeg.ProbeWithTimeout(path, p.timeout, ffmpeg.KwArgs{
		"v":               "quiet",
		"probesize":       probeSizeBytes,
		"analyzeduration": analyzeDurationUsecs,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}

	var result probeResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		return nil, fmt.Errorf("%w: parse output: %w", ErrProbeFailed, err)
	}

	return p.buildInfo(path, &result)
}

// buildInfo converts the raw ffprobe result into a VideoInfo.
func (p *Prober) buildInfo(path string, result *probeResult) (*VideoInfo, error) {
	var videoStream *probeStream
	hasAudio := false

	for i := range result.Streams {
		switch result.Streams[i].CodecType {
		case "video":
			videoStream = &result.Streams[i]
		case "audio":
			hasAudio = true
		}
	}

	if videoStream == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoVideoStream, path)
	}

	// Prefer the stream duration, then the container duration. Some
	// containers report neither, in which case downstream code sees zero.
	durationStr := videoStream.Duration
	if durationStr == "" {
		durationStr = result.Format.Duration
	}
	duration := 0.0
	if durationStr != "" {
		d, err := strconv.ParseFloat(strings.TrimSpace(durationStr), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: parse duration %q: %w", ErrProbeFailed, durationStr, err)
		}
		duration = d
	} else {
		p.logger.Warn("duration not reported by ffprobe, defaulting to 0",
			slog.String("path", path),
		)
	}

	fps, err := parseFrameRate(videoStream.AvgFrameRate)
	if err != nil {
		return nil, fmt.Errorf("%w: parse frame rate %q: %w", ErrProbeFailed, videoStream.AvgFrameRate, err)
	}

	aspectRatio := 1.0
	if videoStream.Height != 0 {
		aspectRatio = float64(videoStream.Width) / float64(videoStream.Height)
	}

	return &VideoInfo{
		Duration:    duration,
		FPS:         fps,
		Width:       videoStream.Width,
		Height:      videoStream.Height,
		AspectRatio: aspectRatio,
		HasAudio:    hasAudio,
	}, nil
}

// parseFrameRate converts an ffprobe rational frame rate ("30000/1001") or a
// plain decimal into frames per second. A zero denominator yields zero.
func parseFrameRate(rate string) (float64, error) {
	if rate == "" {
		return 0, nil
	}
	if num, den, ok := strings.Cut(rate, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, err
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil {
			return 0, err
		}
		if d == 0 {
			return 0, nil
		}
		return n / d, nil
	}
	return strconv.ParseFloat(rate, 64)
}
