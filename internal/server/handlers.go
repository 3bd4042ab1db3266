package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ashokgit/videoresizer-api/internal/job"
	"github.com/ashokgit/videoresizer-api/internal/media"
	"github.com/ashokgit/videoresizer-api/internal/pipeline"
	"github.com/ashokgit/videoresizer-api/internal/resource"
	"github.com/ashokgit/videoresizer-api/internal/storage"
)

// maxFormMemory is how much of a multipart body is buffered in memory;
// larger uploads spill to temporary files.
const maxFormMemory = 32 << 20

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.Service
	store              storage.Store
	guard              pipeline.MemoryGuard
	validator          *validator.Validate
	logger             *slog.Logger
	requiredGiB        float64
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateJob runs the pipeline inline and answers with the
// finished job, mapping pipeline failures to HTTP statuses.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithMemoryGuard installs a preflight memory check on CreateJob, refusing
// work before any upload is stored when less than requiredGiB is available.
func WithMemoryGuard(guard pipeline.MemoryGuard, requiredGiB float64) HandlerOption {
	return func(h *Handlers) {
		h.guard = guard
		if requiredGiB > 0 {
			h.requiredGiB = requiredGiB
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.Service, store storage.Store, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		store:              store,
		validator:          validator.New(),
		logger:             logger,
		requiredGiB:        resource.DefaultRequiredGiB,
		enableAsyncProcess: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /healthz requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateJob handles POST /api/v1/videos requests: it stores the uploaded
// files, creates a processing job and either launches it in the
// background (default) or runs it inline.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	if h.guard != nil {
		if err := h.guard.Require(r.Context(), h.requiredGiB); err != nil {
			h.logger.Warn("refusing request, not enough memory",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusBadRequest, err.Error(), "INSUFFICIENT_MEMORY")
			return
		}
	}

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds the %d byte limit", maxErr.Limit), "UPLOAD_TOO_LARGE")
			return
		}
		h.logger.Warn("failed to parse multipart form",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid multipart form", "INVALID_FORM")
		return
	}

	req, err := parseProcessRequest(r)
	if err != nil {
		h.logger.Warn("failed to parse request fields",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_FIELD")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	// Pointer fields distinguish an explicit 0 from an absent value, which
	// the validator's cross-field tags cannot.
	if (req.StartTime == nil) != (req.EndTime == nil) {
		writeError(w, http.StatusBadRequest,
			"start_time and end_time must be provided together", "VALIDATION_ERROR")
		return
	}

	inputPath, status, code, err := h.saveVideoUpload(r, "video", true)
	if err != nil {
		writeError(w, status, err.Error(), code)
		return
	}

	ctaPath, status, code, err := h.saveVideoUpload(r, "cta_video", false)
	if err != nil {
		h.discardUploads(r.Context(), inputPath)
		writeError(w, status, err.Error(), code)
		return
	}

	watermarkPath, err := h.saveWatermarkUpload(r)
	if err != nil {
		h.discardUploads(r.Context(), inputPath, ctaPath)
		writeError(w, http.StatusInternalServerError, "failed to store watermark", "UPLOAD_FAILED")
		return
	}

	cfg := req.toPipelineConfig(ctaPath, watermarkPath, h.parsePadColor(req.PadColor))

	createdJob, err := h.service.Create(r.Context(), job.CreateInput{
		InputPath: inputPath,
		Config:    cfg,
	})
	if err != nil {
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		h.discardUploads(r.Context(), inputPath, ctaPath, watermarkPath)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	h.logger.Info("job accepted",
		slog.String("job_id", createdJob.ID),
		slog.Bool("async", h.enableAsyncProcess),
	)

	if !h.enableAsyncProcess {
		processed, processErr := h.service.Process(r.Context(), createdJob.ID)
		if processErr != nil {
			status, code := processErrorStatus(processErr)
			writeError(w, status, processErrorMessage(processErr), code)
			return
		}
		writeJSON(w, http.StatusOK, toJobResponse(processed))
		return
	}

	// Start processing in background with a detached context
	// Use context.WithoutCancel to prevent cancellation when the request ends
	go func(ctx context.Context, jobID string) {
		if _, processErr := h.service.Process(ctx, jobID); processErr != nil {
			h.logger.Error("background processing failed",
				slog.String("job_id", jobID),
				slog.String("error", processErr.Error()),
			)
		}
	}(context.WithoutCancel(r.Context()), createdJob.ID)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// GetJob handles GET /api/v1/jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	foundJob, err := h.service.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(foundJob))
}

// ListJobs handles GET /api/v1/jobs requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_LIST_FAILED")
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// DownloadJob handles GET /api/v1/jobs/{id}/download requests, streaming
// the finished video as an attachment.
func (h *Handlers) DownloadJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	reader, foundJob, err := h.service.Open(r.Context(), jobID)
	switch {
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
		return
	case errors.Is(err, job.ErrJobNotFinished):
		writeError(w, http.StatusConflict,
			fmt.Sprintf("job is %s", foundJob.Status), "JOB_NOT_FINISHED")
		return
	case err != nil:
		h.logger.Error("failed to open output",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusNotFound, "output file not found", "OUTPUT_NOT_FOUND")
		return
	}
	defer func() { _ = reader.Close() }()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=processed_video_%d.mp4", time.Now().Unix()))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Error("failed to stream output",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// DeleteJob handles DELETE /api/v1/jobs/{id} requests.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	err := h.service.Delete(r.Context(), jobID)
	switch {
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
		return
	case errors.Is(err, job.ErrJobActive):
		writeError(w, http.StatusConflict, "job is still processing", "JOB_ACTIVE")
		return
	case err != nil:
		h.logger.Error("failed to delete job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete job", "JOB_DELETE_FAILED")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// saveVideoUpload validates and stores one uploaded video part. Optional
// parts that are absent return an empty path and no error.
func (h *Handlers) saveVideoUpload(r *http.Request, field string, required bool) (path string, status int, code string, err error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			if !required {
				return "", 0, "", nil
			}
			return "", http.StatusBadRequest, "MISSING_VIDEO", fmt.Errorf("%s file is required", field)
		}
		return "", http.StatusBadRequest, "INVALID_FORM", fmt.Errorf("invalid %s part", field)
	}
	defer func() { _ = file.Close() }()

	if !media.SupportedExtension(header.Filename) {
		return "", http.StatusBadRequest, "UNSUPPORTED_FORMAT",
			fmt.Errorf("unsupported video format %q", header.Filename)
	}

	path, err = h.store.SaveUpload(r.Context(), header.Filename, file)
	if err != nil {
		h.logger.Error("failed to store upload",
			slog.String("field", field),
			slog.String("error", err.Error()),
		)
		return "", http.StatusInternalServerError, "UPLOAD_FAILED",
			errors.New("failed to store upload")
	}
	return path, 0, "", nil
}

// saveWatermarkUpload stores the optional watermark image part.
func (h *Handlers) saveWatermarkUpload(r *http.Request) (string, error) {
	file, header, err := r.FormFile("watermark")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", err
	}
	defer func() { _ = file.Close() }()

	return h.store.SaveUpload(r.Context(), header.Filename, file)
}

// parsePadColor parses a "#RRGGBB" form value, falling back to black on
// anything unparseable.
func (h *Handlers) parsePadColor(value string) media.RGB {
	if value == "" {
		return media.RGB{}
	}
	color, err := media.ParseRGB(value)
	if err != nil {
		h.logger.Warn("could not parse pad color, using black",
			slog.String("pad_color", value),
		)
		return media.RGB{}
	}
	return color
}

// discardUploads removes stored uploads after a failed request.
func (h *Handlers) discardUploads(ctx context.Context, paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := h.store.RemoveUpload(ctx, path); err != nil {
			h.logger.Warn("failed to remove upload",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
	}
}

// parseProcessRequest reads the typed form fields of a processing request.
func parseProcessRequest(r *http.Request) (*ProcessRequest, error) {
	req := &ProcessRequest{
		ResizeMethod:      r.FormValue("resize_method"),
		PadColor:          r.FormValue("pad_color"),
		Quality:           r.FormValue("quality"),
		WatermarkPosition: r.FormValue("watermark_position"),
	}

	var err error
	if req.TargetRatioW, err = formInt(r, "target_ratio_w"); err != nil {
		return nil, err
	}
	if req.TargetRatioH, err = formInt(r, "target_ratio_h"); err != nil {
		return nil, err
	}
	if req.BlurBackground, err = formBool(r, "blur_background"); err != nil {
		return nil, err
	}
	if req.BlurStrength, err = formIntPtr(r, "blur_strength"); err != nil {
		return nil, err
	}
	if req.GradientBlend, err = formFloatPtr(r, "gradient_blend"); err != nil {
		return nil, err
	}
	if req.StartTime, err = formFloatPtr(r, "start_time"); err != nil {
		return nil, err
	}
	if req.EndTime, err = formFloatPtr(r, "end_time"); err != nil {
		return nil, err
	}
	return req, nil
}

func formInt(r *http.Request, field string) (int, error) {
	raw := r.FormValue(field)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", field, raw)
	}
	return v, nil
}

func formIntPtr(r *http.Request, field string) (*int, error) {
	raw := r.FormValue(field)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", field, raw)
	}
	return &v, nil
}

func formBool(r *http.Request, field string) (bool, error) {
	raw := r.FormValue(field)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", field, raw)
	}
	return v, nil
}

func formFloatPtr(r *http.Request, field string) (*float64, error) {
	raw := r.FormValue(field)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", field, raw)
	}
	return &v, nil
}

// processErrorStatus maps a pipeline failure to an HTTP status and error
// code for the inline processing mode.
func processErrorStatus(err error) (int, string) {
	var pErr *pipeline.Error
	if !errors.As(err, &pErr) {
		return http.StatusInternalServerError, "PROCESSING_FAILED"
	}
	switch pErr.Kind {
	case pipeline.KindInvalidInput:
		return http.StatusBadRequest, "INVALID_INPUT"
	case pipeline.KindResourceExhaustion:
		// Preflight refusals carry no stage; they reject the request the
		// same way the upfront guard does.
		if pErr.Stage == "" {
			return http.StatusBadRequest, "INSUFFICIENT_MEMORY"
		}
		return http.StatusInsufficientStorage, "INSUFFICIENT_MEMORY"
	case pipeline.KindTimeout:
		return http.StatusRequestTimeout, "PROCESSING_TIMEOUT"
	default:
		return http.StatusInternalServerError, "PROCESSING_FAILED"
	}
}

// processErrorMessage renders a pipeline failure with its recovery hint.
func processErrorMessage(err error) string {
	var pErr *pipeline.Error
	if errors.As(err, &pErr) && pErr.Hint != "" {
		return fmt.Sprintf("%s (%s)", pErr.Error(), pErr.Hint)
	}
	return err.Error()
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
