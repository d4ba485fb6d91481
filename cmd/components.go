package cmd

import (
	"context"
	"fmt"

	"github.com/conneroisu/brandkit/internal/build"
	"github.com/conneroisu/brandkit/internal/config"
	"github.com/conneroisu/brandkit/internal/logging"
	"github.com/conneroisu/brandkit/internal/orchestrator"
	"github.com/conneroisu/brandkit/internal/storage"
)

func newPipeline(cfg *config.Config, logger logging.Logger) (*build.Pipeline, error) {
	return build.NewPipeline(cfg.PipelineConfig(), cfg.NewCache(), build.NewPipelineMetrics(), logger)
}

func newOrchestrator(
	cfg *config.Config,
	pipeline *build.Pipeline,
	bus *orchestrator.Bus,
	logger logging.Logger,
) (*orchestrator.Orchestrator, error) {
	return orchestrator.New(pipeline, orchestrator.Options{
		WorkDir:     cfg.Build.WorkDir,
		TemplateDir: cfg.Build.TemplateDir,
		ReportDir:   cfg.Build.ReportDir,
		KeepFailed:  cfg.Build.KeepFailed,
	}, bus, logger)
}

// newStore opens the upload store selected by the storage section.
func newStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendLocal:
		return storage.NewLocalStore(cfg.Storage.BaseDir)
	case config.BackendS3:
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:       cfg.Storage.Bucket,
			Prefix:       cfg.Storage.Prefix,
			Region:       cfg.Storage.Region,
			Endpoint:     cfg.Storage.Endpoint,
			UsePathStyle: cfg.Storage.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
