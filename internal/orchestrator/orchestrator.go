// Package orchestrator sequences the asset pipeline, the injection planner
// and the injector into a single partner build and records the outcome of
// each stage in a build report.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/brandkit/internal/build"
	"github.com/conneroisu/brandkit/internal/errors"
	"github.com/conneroisu/brandkit/internal/fsutil"
	"github.com/conneroisu/brandkit/internal/injection"
	"github.com/conneroisu/brandkit/internal/logging"
	"github.com/conneroisu/brandkit/internal/types"
)

// Options control where builds run and what is kept afterwards.
type Options struct {
	// WorkDir holds one build tree per build id.
	WorkDir string
	// TemplateDir, when set, is copied into each fresh build tree.
	TemplateDir string
	// ReportDir, when set, receives <buildId>.json for every build.
	ReportDir string
	// KeepFailed leaves the build tree of a failed build in place.
	KeepFailed bool
}

// Stages records which build stages completed.
type Stages struct {
	TemplatePreparation bool `json:"templatePreparation"`
	AssetProcessing     bool `json:"assetProcessing"`
	AssetInjection      bool `json:"assetInjection"`
}

// BuildReport is the outcome of one orchestrated build.
type BuildReport struct {
	BuildID             string                `json:"buildId"`
	PartnerID           string                `json:"partnerId"`
	Success             bool                  `json:"success"`
	Error               string                `json:"error,omitempty"`
	BuildPath           string                `json:"buildPath"`
	Stages              Stages                `json:"stages"`
	AssetPipelineResult *types.PipelineResult `json:"assetPipelineResult,omitempty"`
	Stats               *types.PipelineStats  `json:"stats,omitempty"`
	InjectionPlan       *types.InjectionPlan  `json:"injectionPlan,omitempty"`
	Injection           *injection.Report     `json:"injection,omitempty"`
	Logs                []string              `json:"logs"`
	// BuildDuration is in milliseconds.
	BuildDuration int64     `json:"buildDuration"`
	StartedAt     time.Time `json:"startedAt"`
}

// Orchestrator runs partner builds. Builds with different ids may run
// concurrently; a second build for an id already in flight is rejected.
type Orchestrator struct {
	pipeline *build.Pipeline
	injector *injection.Injector
	events   *Bus
	opts     Options
	logger   logging.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New creates an orchestrator. events may be nil.
func New(pipeline *build.Pipeline, opts Options, events *Bus, logger logging.Logger) (*Orchestrator, error) {
	if pipeline == nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "orchestrator requires a pipeline")
	}
	if opts.WorkDir == "" {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "orchestrator requires a work directory")
	}
	logger = logging.OrNop(logger).WithComponent("orchestrator")
	return &Orchestrator{
		pipeline: pipeline,
		injector: injection.NewInjector(logger),
		events:   events,
		opts:     opts,
		logger:   logger,
		inflight: make(map[string]struct{}),
	}, nil
}

// Events returns the bus stage events are published on, or nil.
func (o *Orchestrator) Events() *Bus {
	return o.events
}

// Pipeline returns the asset pipeline builds run through.
func (o *Orchestrator) Pipeline() *build.Pipeline {
	return o.pipeline
}

// Options returns the options the orchestrator was created with.
func (o *Orchestrator) Options() Options {
	return o.opts
}

// BuildPath returns the build tree location for buildID.
func (o *Orchestrator) BuildPath(buildID string) (string, error) {
	path := filepath.Join(o.opts.WorkDir, buildID)
	if buildID == "" || strings.ContainsAny(buildID, `/\`) ||
		!fsutil.Within(o.opts.WorkDir, path) || filepath.Clean(path) == filepath.Clean(o.opts.WorkDir) {
		return "", errors.ErrInvalidPath(buildID).WithContext("field", "buildId")
	}
	return path, nil
}

// Execute runs one build. It never returns nil and never panics on bad
// input; failures are reported through the returned report.
func (o *Orchestrator) Execute(ctx context.Context, req types.BuildRequest) *BuildReport {
	start := time.Now()
	cfg := req.Build
	report := &BuildReport{
		BuildID:   cfg.BuildID,
		PartnerID: cfg.EffectivePartnerID(),
		Logs:      []string{},
		StartedAt: start,
	}
	logger := o.logger.With("build_id", cfg.BuildID, "partner_id", report.PartnerID)

	err := o.run(ctx, logger, req, report)
	report.BuildDuration = time.Since(start).Milliseconds()

	if err != nil {
		report.Error = errors.FormatError(err)
		o.publish(report, StageFailed, 0, "Build failed: "+report.Error)
		logger.Error(ctx, err, "Build failed",
			"duration_ms", report.BuildDuration, "recoverable", errors.IsRecoverable(err))
	} else {
		report.Success = true
		o.publish(report, StageCompleted, 100, "Build completed successfully")
		logger.Info(ctx, "Build completed", "duration_ms", report.BuildDuration)
	}

	if o.opts.ReportDir != "" && report.BuildID != "" && !strings.ContainsAny(report.BuildID, `/\`) {
		if err := o.writeReport(report); err != nil {
			logger.Warn(ctx, err, "Cannot write build report")
		}
	}
	return report
}

func (o *Orchestrator) run(ctx context.Context, logger logging.Logger, req types.BuildRequest, report *BuildReport) error {
	cfg := req.Build
	if err := cfg.Validate(); err != nil {
		return errors.WrapValidation(err, errors.ErrCodeValidationFailed, "invalid build configuration")
	}

	buildPath, err := o.BuildPath(cfg.BuildID)
	if err != nil {
		return err
	}
	report.BuildPath = buildPath

	if !o.acquire(cfg.BuildID) {
		return errors.NewValidationError(errors.ErrCodeBuildInProgress,
			fmt.Sprintf("build %s is already running", cfg.BuildID))
	}
	defer o.release(cfg.BuildID)

	succeeded := false
	defer func() {
		if !succeeded && !o.opts.KeepFailed {
			_ = os.RemoveAll(buildPath)
		}
	}()

	o.publish(report, StageTemplate, 5, "Preparing build tree")
	op := logging.StartOperation(logger, "template_preparation")
	if err := o.prepareTree(buildPath); err != nil {
		op.EndWithError(ctx, err)
		return err
	}
	op.End(ctx, "template", o.opts.TemplateDir != "")
	report.Stages.TemplatePreparation = true
	if o.opts.TemplateDir != "" {
		report.Logs = append(report.Logs, "Template copied from "+o.opts.TemplateDir)
	} else {
		report.Logs = append(report.Logs, "Build tree prepared at "+buildPath)
	}

	o.publish(report, StageProcessing, 25, "Processing assets through pipeline")
	op = logging.StartOperation(logger, "asset_processing")
	result := o.pipeline.ProcessPipeline(ctx, buildPath, cfg, req.Assets)
	stats := build.GetPipelineStats(result)
	report.AssetPipelineResult = &result
	report.Stats = &stats
	for _, w := range result.Warnings {
		report.Logs = append(report.Logs, "warning: "+w)
	}
	if !result.Success {
		err := errors.NewProcessingError(errors.ErrCodePipelineFailed,
			"asset pipeline failed: "+strings.Join(result.Errors, "; "), nil)
		op.EndWithError(ctx, err)
		return err
	}
	op.End(ctx, "assets", stats.TotalAssets, "quality_score", result.QualityScore)
	report.Stages.AssetProcessing = true
	report.Logs = append(report.Logs,
		fmt.Sprintf("Asset pipeline completed with quality score %.1f", result.QualityScore))
	o.publish(report, StageProcessing, 45, fmt.Sprintf("Processed %d assets", stats.TotalAssets))

	o.publish(report, StageInjection, 50, "Injecting assets into build")
	op = logging.StartOperation(logger, "asset_injection")
	plan := injection.NewPlanner(cfg, logger).
		CreateInjectionPlan(cfg.BuildID, report.PartnerID, buildPath, result)
	report.InjectionPlan = &plan

	applied, err := o.injector.Apply(ctx, plan)
	report.Injection = &applied
	if err != nil {
		op.EndWithError(ctx, err)
		return err
	}
	op.End(ctx, "points", len(plan.InjectionPoints), "written", len(applied.Written))
	report.Stages.AssetInjection = true
	report.Logs = append(report.Logs, fmt.Sprintf("Assets injected: %d injection points, %d files written",
		len(plan.InjectionPoints), len(applied.Written)))
	o.publish(report, StageInjection, 60, "Assets injected successfully")

	succeeded = true
	return nil
}

func (o *Orchestrator) prepareTree(buildPath string) error {
	if o.opts.TemplateDir == "" {
		if err := os.MkdirAll(buildPath, 0o755); err != nil {
			return errors.WrapIO(err, errors.ErrCodeBuildPath, "cannot create build tree").WithFile(buildPath)
		}
		return nil
	}

	if err := os.RemoveAll(buildPath); err != nil {
		return errors.WrapIO(err, errors.ErrCodeBuildPath, "cannot reset build tree").WithFile(buildPath)
	}
	if err := fsutil.CopyTree(o.opts.TemplateDir, buildPath); err != nil {
		return errors.WrapIO(err, errors.ErrCodeBuildPath, "cannot copy template").WithFile(o.opts.TemplateDir)
	}
	return nil
}

func (o *Orchestrator) acquire(buildID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[buildID]; busy {
		return false
	}
	o.inflight[buildID] = struct{}{}
	return true
}

func (o *Orchestrator) release(buildID string) {
	o.mu.Lock()
	delete(o.inflight, buildID)
	o.mu.Unlock()
}

func (o *Orchestrator) publish(report *BuildReport, stage Stage, progress int, msg string) {
	o.events.Publish(Event{
		BuildID:   report.BuildID,
		PartnerID: report.PartnerID,
		Stage:     stage,
		Progress:  progress,
		Message:   msg,
	})
}

func (o *Orchestrator) writeReport(report *BuildReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(o.opts.ReportDir, report.BuildID+".json")
	return fsutil.WriteFileAtomic(path, data, 0o644)
}

// LoadReport reads the stored report for buildID from dir.
func LoadReport(dir, buildID string) (*BuildReport, error) {
	if buildID == "" || strings.ContainsAny(buildID, `/\`) || strings.HasPrefix(buildID, ".") {
		return nil, errors.ErrInvalidPath(buildID)
	}
	path := filepath.Join(dir, buildID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewIOError(errors.ErrCodeFileNotFound, "no report for build "+buildID, err)
		}
		return nil, errors.WrapIO(err, errors.ErrCodeFileNotFound, "read build report").WithFile(path)
	}
	var report BuildReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, errors.WrapValidation(err, errors.ErrCodeValidationFailed, "parse build report").WithFile(path)
	}
	return &report, nil
}
