package job

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/ashokgit/videoresizer-api/internal/job/id"
	"github.com/ashokgit/videoresizer-api/internal/pipeline"
	"github.com/ashokgit/videoresizer-api/internal/storage"
)

// Service-level sentinels.
var (
	// ErrJobActive is returned when an operation needs a finished job but
	// the job is still running.
	ErrJobActive = errors.New("job is still processing")
	// ErrJobNotFinished is returned when the output of an unfinished or
	// failed job is requested.
	ErrJobNotFinished = errors.New("job has not completed")
)

// PipelineRunner executes one processing run under a wall-clock budget.
// pipeline.Runner is the production implementation.
type PipelineRunner interface {
	Run(ctx context.Context, input, output string, cfg pipeline.Config) (*pipeline.Result, error)
}

// CreateInput carries everything a new processing job needs. The file
// paths reference uploads already saved through the storage layer.
type CreateInput struct {
	// InputPath is the stored source video.
	InputPath string
	// Config selects the stages to run. CTA and watermark paths, when
	// used, live inside it.
	Config pipeline.Config
}

// Service coordinates job persistence, the processing pipeline and the
// storage of finished outputs.
type Service struct {
	repo   Repository
	store  storage.Store
	runner PipelineRunner
	logger *slog.Logger
}

// NewService creates a new job service.
func NewService(repo Repository, store storage.Store, runner PipelineRunner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		store:  store,
		runner: runner,
		logger: logger,
	}
}

// Create persists a new job in PENDING state and assigns its output name.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Job, error) {
	j := New()
	j.InputPath = input.InputPath
	j.Config = input.Config
	j.OutputName = id.OutputName()

	s.logger.Info("creating processing job",
		slog.String("job_id", j.ID),
		slog.String("input", input.InputPath),
		slog.String("output_name", j.OutputName),
		slog.Bool("time_crop", input.Config.TimeRange != nil),
		slog.Bool("resize", input.Config.Resize != nil),
		slog.Bool("cta", input.Config.CTAPath != ""),
		slog.Bool("watermark", input.Config.Watermark != nil),
	)

	if err := s.repo.Save(ctx, j); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return j, nil
}

// Process executes the pipeline for a previously created job and records
// the outcome. It blocks until the run finishes; callers wanting
// fire-and-forget semantics run it in their own goroutine.
func (s *Service) Process(ctx context.Context, jobID string) (*Job, error) {
	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if err := j.Start(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, j); err != nil {
		return nil, err
	}

	outputPath := s.store.OutputPath(j.OutputName)
	result, runErr := s.runner.Run(ctx, j.InputPath, outputPath, j.Config)
	if runErr != nil {
		return s.finishFailed(ctx, j, runErr)
	}

	j.SetOutput(outputPath, s.publish(ctx, j))
	j.SetReport(stageRecords(result), degradationStrings(result), result.Info)

	if err := j.Complete(); err != nil {
		s.logger.Error("failed to mark job completed",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	if err := s.repo.Save(ctx, j); err != nil {
		return nil, err
	}

	s.logger.Info("job completed",
		slog.String("job_id", j.ID),
		slog.String("output", outputPath),
		slog.Duration("elapsed", result.Elapsed),
		slog.Int("degradations", len(result.Degradations)),
	)
	return j, nil
}

// finishFailed maps a run error to the matching terminal state and
// persists it. The original run error is returned for the caller's log.
func (s *Service) finishFailed(ctx context.Context, j *Job, runErr error) (*Job, error) {
	var pipeErr *pipeline.Error
	var transitionErr error
	switch {
	case errors.Is(runErr, context.Canceled):
		transitionErr = j.Cancel()
	case errors.As(runErr, &pipeErr) && pipeErr.Kind == pipeline.KindTimeout:
		transitionErr = j.Timeout()
	default:
		transitionErr = j.Fail(runErr.Error())
	}
	if transitionErr != nil {
		s.logger.Error("failed to mark job as finished",
			slog.String("job_id", j.ID),
			slog.String("error", transitionErr.Error()),
		)
	}

	if err := s.repo.Save(ctx, j); err != nil {
		s.logger.Error("failed to save failed job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Error("job failed",
		slog.String("job_id", j.ID),
		slog.String("status", string(j.GetStatus())),
		slog.String("error", runErr.Error()),
	)
	return j, runErr
}

// publish uploads the finished output to remote storage when configured.
// Publication failures leave the job completed with its local output.
func (s *Service) publish(ctx context.Context, j *Job) string {
	url, err := s.store.Publish(ctx, j.OutputName)
	switch {
	case err == nil:
		s.logger.Info("output published",
			slog.String("job_id", j.ID),
			slog.String("url", url),
		)
		return url
	case errors.Is(err, storage.ErrS3NotConfigured):
		return ""
	default:
		s.logger.Warn("failed to publish output, keeping local copy",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return ""
	}
}

// Get retrieves a job by ID.
func (s *Service) Get(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.FindByID(ctx, jobID)
}

// List returns all jobs.
func (s *Service) List(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// Open streams the finished output of a completed job. The caller is
// responsible for closing the reader.
func (s *Service) Open(ctx context.Context, jobID string) (io.ReadCloser, *Job, error) {
	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if j.GetStatus() != StatusCompleted {
		return nil, j, ErrJobNotFinished
	}

	reader, err := s.store.OpenOutput(ctx, j.OutputName)
	if err != nil {
		return nil, j, err
	}
	return reader, j, nil
}

// Delete removes a job together with its stored files. Running jobs are
// refused; the pipeline worker cannot be reclaimed mid-run.
func (s *Service) Delete(ctx context.Context, jobID string) error {
	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if j.GetStatus() == StatusRunning {
		return ErrJobActive
	}

	s.removeUpload(ctx, j.ID, j.InputPath)
	s.removeUpload(ctx, j.ID, j.Config.CTAPath)
	if j.Config.Watermark != nil {
		s.removeUpload(ctx, j.ID, j.Config.Watermark.ImagePath)
	}
	if j.OutputName != "" {
		if err := s.store.RemoveOutput(ctx, j.OutputName); err != nil {
			s.logger.Warn("failed to remove output",
				slog.String("job_id", j.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return s.repo.Delete(ctx, jobID)
}

func (s *Service) removeUpload(ctx context.Context, jobID, path string) {
	if path == "" {
		return
	}
	if err := s.store.RemoveUpload(ctx, path); err != nil {
		s.logger.Warn("failed to remove upload",
			slog.String("job_id", jobID),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

func stageRecords(result *pipeline.Result) []StageRecord {
	if len(result.Stages) == 0 {
		return nil
	}
	records := make([]StageRecord, 0, len(result.Stages))
	for _, stage := range result.Stages {
		records = append(records, StageRecord{
			Name:    string(stage.Stage),
			Note:    stage.Note,
			Elapsed: stage.Elapsed,
		})
	}
	return records
}

func degradationStrings(result *pipeline.Result) []string {
	if len(result.Degradations) == 0 {
		return nil
	}
	out := make([]string, 0, len(result.Degradations))
	for _, d := range result.Degradations {
		out = append(out, string(d))
	}
	return out
}
