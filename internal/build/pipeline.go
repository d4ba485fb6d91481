package build

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/conneroisu/brandkit/internal/errors"
	"github.com/conneroisu/brandkit/internal/logging"
	"github.com/conneroisu/brandkit/internal/transform"
	"github.com/conneroisu/brandkit/internal/types"
)

// Pipeline is the entry point for processing a partner asset set. It holds
// only immutable configuration plus the optional shared cache and metrics,
// so one instance may serve concurrent runs.
type Pipeline struct {
	config    Config
	processor *AssetProcessor
	cache     *TransformCache
	metrics   *PipelineMetrics
	logger    logging.Logger
}

// NewPipeline creates a pipeline. cache and metrics are optional. It fails
// on malformed configuration.
func NewPipeline(
	config Config,
	cache *TransformCache,
	metrics *PipelineMetrics,
	logger logging.Logger,
) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	formats, err := transform.ParseFormats(config.OutputFormats)
	if err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "output formats")
	}

	logger = logging.OrNop(logger).WithComponent("pipeline")

	opts := transform.Options{
		Formats: formats,
		Encode: transform.EncodeOptions{
			Optimize:         config.EnableOptimization,
			CompressionLevel: config.CompressionLevel,
		},
	}
	if cache != nil {
		opts.Cache = cache
		opts.Hasher = NewHashProvider(cache, NewObjectPools())
	}

	transformer, err := transform.New(opts, logger)
	if err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "transformer")
	}

	workers := NewWorkerManager(config.workers(), transformer, metrics, logger)

	return &Pipeline{
		config:    config,
		processor: NewAssetProcessor(workers, logger),
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.config
}

// Metrics returns the shared metrics, or nil.
func (p *Pipeline) Metrics() *PipelineMetrics {
	return p.metrics
}

// Cache returns the shared transform cache, or nil.
func (p *Pipeline) Cache() *TransformCache {
	return p.cache
}

// ProcessPipeline transforms every asset in assets into variants under
// buildPath. It never panics on bad input and reports every failure through
// the returned result.
func (p *Pipeline) ProcessPipeline(
	ctx context.Context,
	buildPath string,
	buildConfig types.BuildConfig,
	assets types.PartnerAssets,
) types.PipelineResult {
	start := time.Now()
	logger := p.logger.With("build_id", buildConfig.BuildID, "partner_id", buildConfig.EffectivePartnerID())

	result := p.run(ctx, logger, start, buildPath, buildConfig, assets)
	result.ProcessingTime = time.Since(start).Milliseconds()

	if p.metrics != nil {
		p.metrics.RecordRun(result, time.Since(start))
	}

	if result.Success {
		logger.Info(ctx, "Asset pipeline finished",
			"assets", len(result.ProcessedAssets),
			"warnings", len(result.Warnings),
			"quality", result.QualityScore,
			"duration_ms", result.ProcessingTime)
	} else {
		logger.Warn(ctx, nil, "Asset pipeline failed",
			"errors", len(result.Errors),
			"duration_ms", result.ProcessingTime)
	}
	return result
}

func (p *Pipeline) run(
	ctx context.Context,
	logger logging.Logger,
	start time.Time,
	buildPath string,
	buildConfig types.BuildConfig,
	assets types.PartnerAssets,
) (result types.PipelineResult) {
	result = types.PipelineResult{
		ProcessedAssets: []types.ProcessedAsset{},
		Errors:          []string{},
		Warnings:        []string{},
	}

	defer func() {
		if r := recover(); r != nil {
			result = types.PipelineResult{
				ProcessedAssets: []types.ProcessedAsset{},
				Errors:          []string{fmt.Sprintf("internal error: %v", r)},
				Warnings:        []string{},
			}
		}
	}()

	if buildPath == "" {
		result.Errors = append(result.Errors, errors.FormatError(errors.ErrInvalidPath("build path is empty")))
		return result
	}
	if err := os.MkdirAll(buildPath, 0o755); err != nil {
		be := errors.WrapIO(err, errors.ErrCodeBuildPath, "cannot create build path").WithFile(buildPath)
		result.Errors = append(result.Errors, errors.FormatError(be))
		return result
	}

	if assets.IsEmpty() {
		result.Success = true
		return result
	}

	scope := runScope{
		buildID:   buildConfig.BuildID,
		buildPath: buildPath,
	}
	if p.config.MaxProcessingTime > 0 {
		scope.deadline = start.Add(p.config.MaxProcessingTime)
	}

	logger.Debug(ctx, "Processing assets", "count", len(assets.Sources()), "config", p.config.String())
	out := p.processor.Process(ctx, scope, assets)

	result.Errors = append(result.Errors, out.diagnostics.Errors()...)
	result.Warnings = append(result.Warnings, out.diagnostics.Warnings()...)
	if out.missing {
		return result
	}

	if out.assets != nil {
		result.ProcessedAssets = out.assets
	}
	for _, asset := range result.ProcessedAssets {
		if asset.Optimization.QualityScore < p.config.QualityThreshold {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"%s: quality score %.2f is below threshold %.2f",
				assetLabel(asset), asset.Optimization.QualityScore, p.config.QualityThreshold))
		}
	}

	if budget := p.config.MaxProcessingTime; budget > 0 {
		if elapsed := time.Since(start); elapsed > budget {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"processing took %s, exceeding the %s budget",
				elapsed.Round(time.Millisecond), budget))
		}
	}
	if err := ctx.Err(); err != nil {
		result.Errors = append(result.Errors, "processing cancelled: "+err.Error())
	}

	result.QualityScore = meanQuality(result.ProcessedAssets)
	result.Success = len(result.Errors) == 0
	return result
}

func assetLabel(asset types.ProcessedAsset) string {
	if asset.Type == types.AssetTypeCustom {
		return "customImages." + asset.Name
	}
	return asset.Name
}

func meanQuality(assets []types.ProcessedAsset) float64 {
	if len(assets) == 0 {
		return 0
	}
	var sum float64
	for _, a := range assets {
		sum += a.Optimization.QualityScore
	}
	mean := sum / float64(len(assets))
	return math.Round(math.Max(0, math.Min(100, mean))*100) / 100
}

// GetPipelineStats summarizes a result. It is a pure function.
func GetPipelineStats(result types.PipelineResult) types.PipelineStats {
	stats := types.PipelineStats{
		TotalAssets:        len(result.ProcessedAssets),
		ProcessingTime:     result.ProcessingTime,
		QualityScore:       result.QualityScore,
		FormatDistribution: make(map[string]int),
	}

	var ratios float64
	for _, asset := range result.ProcessedAssets {
		ratios += asset.Optimization.CompressionRatio
		for _, f := range asset.Formats {
			stats.FormatDistribution[f]++
		}
	}
	if stats.TotalAssets > 0 {
		stats.TotalOptimization = ratios / float64(stats.TotalAssets)
	}
	return stats
}

// GetPipelineStats summarizes a result produced by this pipeline.
func (p *Pipeline) GetPipelineStats(result types.PipelineResult) types.PipelineStats {
	return GetPipelineStats(result)
}

// Formats returns the distinct formats in a stats distribution, sorted.
func Formats(stats types.PipelineStats) []string {
	names := make([]string, 0, len(stats.FormatDistribution))
	for name := range stats.FormatDistribution {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
