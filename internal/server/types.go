// Package server provides the HTTP boundary of the video resizer API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/ashokgit/videoresizer-api/internal/geometry"
	"github.com/ashokgit/videoresizer-api/internal/job"
	"github.com/ashokgit/videoresizer-api/internal/media"
	"github.com/ashokgit/videoresizer-api/internal/pipeline"
)

// ProcessRequest carries the form fields of a processing request. The
// video files themselves travel as multipart parts next to these fields.
type ProcessRequest struct {
	// TargetRatioW and TargetRatioH select the target aspect ratio.
	// Both must be present to enable the resize stage.
	TargetRatioW int `validate:"required_with=TargetRatioH,omitempty,min=1,max=64"`
	TargetRatioH int `validate:"required_with=TargetRatioW,omitempty,min=1,max=64"`
	// ResizeMethod is crop, pad or stretch. Defaults to crop.
	ResizeMethod string `validate:"omitempty,oneof=crop pad stretch"`
	// PadColor is a "#RRGGBB" hex color for pad bands. Unparseable values
	// fall back to black.
	PadColor string
	// BlurBackground replaces solid pad bands with a blurred cover-fit
	// background of the clip itself.
	BlurBackground bool
	// BlurStrength tunes the blur intensity; the engine clamps it to [1,50].
	// Absent means the default strength.
	BlurStrength *int
	// GradientBlend tunes the radial edge darkening; clamped to [0,1].
	// Absent means the default blend.
	GradientBlend *float64
	// StartTime and EndTime bound the trim stage, in seconds. Both must be
	// present to enable trimming.
	StartTime *float64 `validate:"omitempty,min=0"`
	EndTime   *float64 `validate:"omitempty,gt=0"`
	// Quality names the encode preset. Unknown names resolve to high.
	Quality string
	// WatermarkPosition anchors the overlay when a watermark image is
	// uploaded. Defaults to bottom-right.
	WatermarkPosition string
}

// CreateJobResponse is the HTTP response after accepting a processing job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// VideoInfoResponse mirrors the probed metadata of the finished video.
type VideoInfoResponse struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Duration    float64 `json:"duration"`
	FPS         float64 `json:"fps"`
	AspectRatio float64 `json:"aspect_ratio"`
	HasAudio    bool    `json:"has_audio"`
}

// StageResponse documents one executed pipeline stage.
type StageResponse struct {
	Name string `json:"name"`
	// Note carries stage-specific detail, like the concat mode used.
	Note string `json:"note,omitempty"`
	// ElapsedSeconds is how long the stage took.
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// OutputFileID is the stored filename of the finished video.
	OutputFileID string `json:"output_file_id,omitempty"`
	// OutputURL is the published URL when S3 publication is configured.
	OutputURL string `json:"output_url,omitempty"`
	// VideoInfo is the probed metadata of the finished video.
	VideoInfo *VideoInfoResponse `json:"processed_video_info,omitempty"`
	// Stages lists the pipeline stages that ran, in order.
	Stages []StageResponse `json:"stages,omitempty"`
	// Degradations lists fallbacks the pipeline absorbed instead of failing.
	Degradations []string `json:"degradations,omitempty"`
	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when processing reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ListJobsResponse is the HTTP response for listing jobs.
type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}

// toJobResponse maps the job aggregate onto its transport shape.
func toJobResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:           j.ID,
		Status:       string(j.Status),
		Error:        j.Error,
		Degradations: j.Degradations,
		CreatedAt:    j.CreatedAt,
	}
	if !j.CompletedAt.IsZero() {
		completed := j.CompletedAt
		resp.CompletedAt = &completed
	}
	if j.Status == job.StatusCompleted {
		resp.OutputFileID = j.OutputName
		resp.OutputURL = j.OutputURL
	}
	if j.Info != nil {
		resp.VideoInfo = toVideoInfoResponse(j.Info)
	}
	for _, stage := range j.Stages {
		resp.Stages = append(resp.Stages, StageResponse{
			Name:           stage.Name,
			Note:           stage.Note,
			ElapsedSeconds: stage.Elapsed.Seconds(),
		})
	}
	return resp
}

func toVideoInfoResponse(info *media.VideoInfo) *VideoInfoResponse {
	return &VideoInfoResponse{
		Width:       info.Width,
		Height:      info.Height,
		Duration:    info.Duration,
		FPS:         info.FPS,
		AspectRatio: info.AspectRatio,
		HasAudio:    info.HasAudio,
	}
}

// toPipelineConfig assembles the pipeline configuration from validated
// form fields and the stored upload paths.
func (req *ProcessRequest) toPipelineConfig(ctaPath, watermarkPath string, padColor media.RGB) pipeline.Config {
	cfg := pipeline.Config{
		CTAPath: ctaPath,
		Preset:  req.Quality,
	}

	if req.StartTime != nil && req.EndTime != nil {
		cfg.TimeRange = &pipeline.TimeRange{Start: *req.StartTime, End: *req.EndTime}
	}

	if req.TargetRatioW > 0 && req.TargetRatioH > 0 {
		method := req.ResizeMethod
		if method == "" {
			method = string(media.MethodCrop)
		}
		resize := &pipeline.RatioChange{
			Ratio:    geometry.Ratio{W: req.TargetRatioW, H: req.TargetRatioH},
			Method:   media.ResizeMethod(method),
			PadColor: padColor,
		}
		if req.BlurBackground {
			blur := media.DefaultBlurOptions
			if req.BlurStrength != nil {
				blur.Strength = *req.BlurStrength
			}
			if req.GradientBlend != nil {
				blur.GradientBlend = *req.GradientBlend
			}
			resize.Blur = &blur
		}
		cfg.Resize = resize
	}

	if watermarkPath != "" {
		position := media.WatermarkPosition(req.WatermarkPosition)
		if position == "" {
			position = media.PositionBottomRight
		}
		cfg.Watermark = &pipeline.WatermarkSpec{ImagePath: watermarkPath, Position: position}
	}

	return cfg
}
