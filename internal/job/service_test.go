package job

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashokgit/videoresizer-api/internal/media"
	"github.com/ashokgit/videoresizer-api/internal/pipeline"
	"github.com/ashokgit/videoresizer-api/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type runnerCall struct {
	input  string
	output string
	cfg    pipeline.Config
}

// fakeRunner stands in for the pipeline. On success it writes the output
// file the way the real orchestrator does.
type fakeRunner struct {
	mu     sync.Mutex
	calls  []runnerCall
	result *pipeline.Result
	err    error
}

func (f *fakeRunner) Run(_ context.Context, input, output string, cfg pipeline.Config) (*pipeline.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, runnerCall{input: input, output: output, cfg: cfg})
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if err := os.WriteFile(output, []byte("finished video"), 0600); err != nil {
		return nil, err
	}

	if f.result != nil {
		return f.result, nil
	}
	return &pipeline.Result{
		OutputPath: output,
		Info:       &media.VideoInfo{Width: 1080, Height: 1920, Duration: 10},
		Stages: []pipeline.StageRecord{
			{Stage: pipeline.StageResize, Note: "9:16 pad", Elapsed: 2 * time.Second},
			{Stage: pipeline.StageFinalize, Note: output, Elapsed: 10 * time.Millisecond},
		},
		Elapsed: 2 * time.Second,
	}, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// publishRecorder wraps a LocalStore with a controllable Publish.
type publishRecorder struct {
	*storage.LocalStore
	url   string
	err   error
	calls int
}

func (p *publishRecorder) Publish(_ context.Context, _ string) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return p.url, nil
}

type serviceFixture struct {
	repo   *MemoryRepository
	store  *storage.LocalStore
	runner *fakeRunner
	svc    *Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewLocalStore(filepath.Join(root, "uploads"), filepath.Join(root, "outputs"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	repo := NewMemoryRepository()
	runner := &fakeRunner{}
	return &serviceFixture{
		repo:   repo,
		store:  store,
		runner: runner,
		svc:    NewService(repo, store, runner, testLogger()),
	}
}

// uploadFile stores content as an upload and returns the stored path.
func (f *serviceFixture) uploadFile(t *testing.T, name, content string) string {
	t.Helper()
	path, err := f.store.SaveUpload(context.Background(), name, strings.NewReader(content))
	if err != nil {
		t.Fatalf("failed to save upload: %v", err)
	}
	return path
}

func TestNewService(t *testing.T) {
	fx := newServiceFixture(t)

	// With nil logger
	svc := NewService(fx.repo, fx.store, fx.runner, nil)
	if svc == nil {
		t.Fatal("expected non-nil service")
	}
	if svc.logger == nil {
		t.Error("expected default logger to be set")
	}

	// With custom logger
	logger := testLogger()
	svc2 := NewService(fx.repo, fx.store, fx.runner, logger)
	if svc2.logger != logger {
		t.Error("expected custom logger to be set")
	}
}

func TestService_Create(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()
	input := fx.uploadFile(t, "source.mp4", "source")

	job, err := fx.svc.Create(ctx, CreateInput{
		InputPath: input,
		Config: pipeline.Config{
			TimeRange: &pipeline.TimeRange{Start: 1, End: 5},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if job.ID == "" {
		t.Error("expected job ID to be set")
	}
	if job.Status != StatusPending {
		t.Errorf("expected status %s, got %s", StatusPending, job.Status)
	}
	if job.InputPath != input {
		t.Errorf("expected input path %s, got %s", input, job.InputPath)
	}
	if job.Config.TimeRange == nil || job.Config.TimeRange.End != 5 {
		t.Errorf("expected config to be stored, got %+v", job.Config)
	}
	if !strings.HasPrefix(job.OutputName, "processed_") || !strings.HasSuffix(job.OutputName, ".mp4") {
		t.Errorf("unexpected output name %q", job.OutputName)
	}

	// Verify job was saved
	saved, err := fx.repo.FindByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("job should be saved in repository: %v", err)
	}
	if saved.OutputName != job.OutputName {
		t.Errorf("saved output name mismatch: expected %s, got %s", job.OutputName, saved.OutputName)
	}
}

func TestService_Get(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	created, _ := fx.svc.Create(ctx, CreateInput{InputPath: "/uploads/a.mp4"})

	found, err := fx.svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("expected ID %s, got %s", created.ID, found.ID)
	}
}

func TestService_Get_NotFound(t *testing.T) {
	fx := newServiceFixture(t)

	_, err := fx.svc.Get(context.Background(), "nonexistent")
	if err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestService_Process_Success(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()
	input := fx.uploadFile(t, "source.mp4", "source")

	created, _ := fx.svc.Create(ctx, CreateInput{InputPath: input})

	processed, err := fx.svc.Process(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if processed.Status != StatusCompleted {
		t.Errorf("expected status %s, got %s", StatusCompleted, processed.Status)
	}
	wantOutput := fx.store.OutputPath(created.OutputName)
	if processed.OutputPath != wantOutput {
		t.Errorf("expected output path %s, got %s", wantOutput, processed.OutputPath)
	}
	if processed.OutputURL != "" {
		t.Errorf("expected no published URL without S3, got %q", processed.OutputURL)
	}
	if len(processed.Stages) != 2 || processed.Stages[0].Name != "resize" {
		t.Errorf("expected mapped stage records, got %+v", processed.Stages)
	}
	if processed.Info == nil || processed.Info.Height != 1920 {
		t.Errorf("expected probed info on the job, got %+v", processed.Info)
	}
	if processed.Error != "" {
		t.Errorf("expected no error message, got %q", processed.Error)
	}

	// The runner received the stored input and the output store path.
	if len(fx.runner.calls) != 1 {
		t.Fatalf("expected 1 runner call, got %d", len(fx.runner.calls))
	}
	if fx.runner.calls[0].input != input {
		t.Errorf("runner input = %s, want %s", fx.runner.calls[0].input, input)
	}
	if fx.runner.calls[0].output != wantOutput {
		t.Errorf("runner output = %s, want %s", fx.runner.calls[0].output, wantOutput)
	}

	// The terminal state is persisted.
	saved, _ := fx.repo.FindByID(ctx, created.ID)
	if saved.Status != StatusCompleted {
		t.Errorf("expected persisted status %s, got %s", StatusCompleted, saved.Status)
	}
}

func TestService_Process_ReportsDegradations(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()
	fx.runner.result = &pipeline.Result{
		Stages:       []pipeline.StageRecord{{Stage: pipeline.StageFinalize}},
		Degradations: []pipeline.Degradation{pipeline.DegradationCTAMissing, pipeline.DegradationWatermarkSkipped},
	}

	created, _ := fx.svc.Create(ctx, CreateInput{InputPath: "/uploads/a.mp4"})
	processed, err := fx.svc.Process(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"cta_missing", "watermark_skipped"}
	if len(processed.Degradations) != len(want) {
		t.Fatalf("expected %d degradations, got %d", len(want), len(processed.Degradations))
	}
	for i, d := range want {
		if processed.Degradations[i] != d {
			t.Errorf("degradation[%d] = %s, want %s", i, processed.Degradations[i], d)
		}
	}
}

func TestService_Process_RunnerFailure(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()
	fx.runner.err = &pipeline.Error{
		Kind:  pipeline.KindStageFailure,
		Stage: pipeline.StageResize,
		Err:   errors.New("ffmpeg exited 1"),
	}

	created, _ := fx.svc.Create(ctx, CreateInput{InputPath: "/uploads/a.mp4"})
	processed, err := fx.svc.Process(ctx, created.ID)
	if err == nil {
		t.Fatal("expected the run error to be returned")
	}

	if processed.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, processed.Status)
	}
	if !strings.Contains(processed.Error, "ffmpeg exited 1") {
		t.Errorf("expected error message on the job, got %q", processed.Error)
	}

	saved, _ := fx.repo.FindByID(ctx, created.ID)
	if saved.Status != StatusFailed {
		t.Errorf("expected persisted status %s, got %s", StatusFailed, saved.Status)
	}
}

func TestService_Process_Timeout(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()
	fx.runner.err = &pipeline.Error{Kind: pipeline.KindTimeout, Err: context.DeadlineExceeded}

	created, _ := fx.svc.Create(ctx, CreateInput{InputPath: "/uploads/a.mp4"})
	processed, err := fx.svc.Process(ctx, created.ID)
	if err == nil {
		t.Fatal("expected the run error to be returned")
	}

	if processed.Status != StatusTimedOut {
		t.Errorf("expected status %s, got %s", StatusTimedOut, processed.Status)
	}
}

func TestService_Process_Cancelled(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()
	fx.runner.err = context.Canceled

	created, _ := fx.svc.Create(ctx, CreateInput{InputPath: "/uploads/a.mp4"})
	processed, err := fx.svc.Process(ctx, created.ID)
	if err == nil {
		t.Fatal("expected the run error to be returned")
	}

	if processed.Status != StatusCancelled {
		t.Errorf("expected status %s, got %s", StatusCancelled, processed.Status)
	}
}

func TestService_Process_NotFound(t *testing.T) {
	fx := newServiceFixture(t)

	_, err := fx.svc.Process(context.Background(), "nonexistent")
	if err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
	if fx.runner.callCount() != 0 {
		t.Error("runner should not run for an unknown job")
	}
}

func TestService_Process_AlreadyCancelled(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	created, _ := fx.svc.Create(ctx, CreateInput{InputPath: "/uploads/a.mp4"})
	stored, _ := fx.repo.FindByID(ctx, created.ID)
	_ = stored.Cancel()
	_ = fx.repo.Save(ctx, stored)

	_, err := fx.svc.Process(ctx, created.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
	if fx.runner.callCount() != 0 {
		t.Error("runner should not run for a cancelled job")
	}
}

func TestService_Process_PublishesOutput(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()
	published := &publishRecorder{
		LocalStore: fx.store,
		url:        "https://bucket.s3.us-east-1.amazonaws.com/processed.mp4",
	}
	svc := NewService(fx.repo, published, fx.runner, testLogger())

	created, _ := svc.Create(ctx, CreateInput{InputPath: "/uploads/a.mp4"})
	processed, err := svc.Process(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if published.calls != 1 {
		t.Errorf("expected 1 publish call, got %d", published.calls)
	}
	if processed.OutputURL != published.url {
		t.Errorf("expected published URL %q, got %q", published.url, processed.OutputURL)
	}
	if processed.Status != StatusCompleted {
		t.Errorf("expected status %s, got %s", StatusCompleted, processed.Status)
	}
}

func TestService_Process_PublishFailureTolerated(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()
	published := &publishRecorder{
		LocalStore: fx.store,
		err:        errors.New("bucket unreachable"),
	}
	svc := NewService(fx.repo, published, fx.runner, testLogger())

	created, _ := svc.Create(ctx, CreateInput{InputPath: "/uploads/a.mp4"})
	processed, err := svc.Process(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The job still completes with its local output.
	if processed.Status != StatusCompleted {
		t.Errorf("expected status %s, got %s", StatusCompleted, processed.Status)
	}
	if processed.OutputURL != "" {
		t.Errorf("expected no URL after failed publish, got %q", processed.OutputURL)
	}
}

func TestService_Open(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()
	input := fx.uploadFile(t, "source.mp4", "source")

	created, _ := fx.svc.Create(ctx, CreateInput{InputPath: input})
	if _, err := fx.svc.Process(ctx, created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reader, job, err := fx.svc.Open(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = reader.Close() }()

	if job.Status != StatusCompleted {
		t.Errorf("expected status %s, got %s", StatusCompleted, job.Status)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if string(content) != "finished video" {
		t.Errorf("unexpected output content %q", content)
	}
}

func TestService_Open_NotFinished(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	created, _ := fx.svc.Create(ctx, CreateInput{InputPath: "/uploads/a.mp4"})

	_, job, err := fx.svc.Open(ctx, created.ID)
	if !errors.Is(err, ErrJobNotFinished) {
		t.Errorf("expected ErrJobNotFinished, got %v", err)
	}
	if job == nil || job.Status != StatusPending {
		t.Errorf("expected the pending job back, got %+v", job)
	}
}

func TestService_Open_NotFound(t *testing.T) {
	fx := newServiceFixture(t)

	_, _, err := fx.svc.Open(context.Background(), "nonexistent")
	if err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestService_Delete(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()
	input := fx.uploadFile(t, "source.mp4", "source")
	cta := fx.uploadFile(t, "cta.mp4", "cta")
	mark := fx.uploadFile(t, "logo.png", "logo")

	created, _ := fx.svc.Create(ctx, CreateInput{
		InputPath: input,
		Config: pipeline.Config{
			CTAPath:   cta,
			Watermark: &pipeline.WatermarkSpec{ImagePath: mark, Position: media.PositionBottomRight},
		},
	})
	if _, err := fx.svc.Process(ctx, created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outputPath := fx.store.OutputPath(created.OutputName)

	if err := fx.svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Job and every stored file are gone.
	if _, err := fx.repo.FindByID(ctx, created.ID); err != ErrJobNotFound {
		t.Errorf("expected job to be deleted, got %v", err)
	}
	for _, path := range []string{input, cta, mark, outputPath} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed", path)
		}
	}
}

func TestService_Delete_RunningRefused(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	created, _ := fx.svc.Create(ctx, CreateInput{InputPath: "/uploads/a.mp4"})
	stored, _ := fx.repo.FindByID(ctx, created.ID)
	_ = stored.Start()
	_ = fx.repo.Save(ctx, stored)

	err := fx.svc.Delete(ctx, created.ID)
	if !errors.Is(err, ErrJobActive) {
		t.Errorf("expected ErrJobActive, got %v", err)
	}

	// The job survives.
	if _, err := fx.repo.FindByID(ctx, created.ID); err != nil {
		t.Errorf("expected job to survive, got %v", err)
	}
}

func TestService_Delete_NotFound(t *testing.T) {
	fx := newServiceFixture(t)

	err := fx.svc.Delete(context.Background(), "nonexistent")
	if err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}
