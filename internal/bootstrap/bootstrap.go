// Package bootstrap provides dependency initialization for the video resizer API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/ashokgit/videoresizer-api/internal/config"
	"github.com/ashokgit/videoresizer-api/internal/job"
	"github.com/ashokgit/videoresizer-api/internal/media"
	"github.com/ashokgit/videoresizer-api/internal/pipeline"
	"github.com/ashokgit/videoresizer-api/internal/resource"
	"github.com/ashokgit/videoresizer-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	JobService  *job.Service
	Store       storage.Store
	MemoryGuard pipeline.MemoryGuard
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize the ffmpeg engine and the memory guard
	prober := media.NewProber(logger)
	engine := media.NewEngine(cfg.FFmpegPath, prober, logger)
	guard := resource.NewMonitor(logger)

	// Wire the engines into the staged pipeline, bounded by the wall-clock budget
	orchestrator := pipeline.NewOrchestrator(engine, guard, cfg.ScratchDir, cfg.RequiredMemoryGiB, logger)
	runner := pipeline.NewRunner(orchestrator, cfg.ProcessTimeout(), logger)

	// Initialize job repository and service
	repo := job.NewMemoryRepository()
	svc := job.NewService(repo, store, runner, logger)

	return &Dependencies{
		JobService:  svc,
		Store:       store,
		MemoryGuard: guard,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	local, err := storage.NewLocalStore(cfg.UploadDir, cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}

	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Store(local, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 publication configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	logger.Info("local storage configured",
		slog.String("upload_dir", cfg.UploadDir),
		slog.String("output_dir", cfg.OutputDir),
	)
	return local, nil
}
