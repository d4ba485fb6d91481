package build

import (
	"context"
	"strconv"

	"github.com/conneroisu/brandkit/internal/errors"
	"github.com/conneroisu/brandkit/internal/fsutil"
	"github.com/conneroisu/brandkit/internal/logging"
	"github.com/conneroisu/brandkit/internal/transform"
	"github.com/conneroisu/brandkit/internal/types"
)

// AssetProcessor drives the transformer across a partner's asset set.
type AssetProcessor struct {
	workers *WorkerManager
	logger  logging.Logger
}

// NewAssetProcessor creates a processor on top of a worker manager.
func NewAssetProcessor(workers *WorkerManager, logger logging.Logger) *AssetProcessor {
	return &AssetProcessor{
		workers: workers,
		logger:  logging.OrNop(logger).WithComponent("processor"),
	}
}

// processOutput is the flat outcome of processing one asset set.
type processOutput struct {
	assets      []types.ProcessedAsset
	diagnostics *errors.Collector
	// missing is set when an input file did not exist; nothing is surfaced then.
	missing bool
}

// Process validates every referenced file, then transforms the sources in
// input order.
func (p *AssetProcessor) Process(ctx context.Context, scope runScope, assets types.PartnerAssets) processOutput {
	out := processOutput{diagnostics: errors.NewCollector()}
	sources := assets.Sources()

	for _, src := range sources {
		ok, err := fsutil.IsRegularFile(src.Path)
		switch {
		case err != nil:
			out.diagnostics.AddError(src.Key(), errors.ErrFileNotFound(src.Key(), src.Path, err))
			out.missing = true
		case !ok:
			out.diagnostics.AddError(src.Key(), errors.NewValidationError(
				errors.ErrCodeNotRegularFile, "asset path is not a regular file").
				WithAsset(src.Key()).WithFile(src.Path))
			out.missing = true
		}
	}
	if out.missing {
		return out
	}

	tasks := planTasks(sources)
	outcomes := p.workers.Run(ctx, scope, tasks)

	skipped := 0
	for i, outcome := range outcomes {
		src := tasks[i].source
		switch {
		case outcome.skipped:
			skipped++
			out.diagnostics.AddWarning(src.Key(), "skipped, processing time budget exhausted")
		case outcome.err != nil:
			out.diagnostics.AddError(src.Key(), outcome.err)
		default:
			out.assets = append(out.assets, outcome.result.Asset)
			for _, w := range outcome.result.Warnings {
				out.diagnostics.AddWarning(src.Key(), "%s", w)
			}
		}
	}

	if skipped > 0 {
		p.logger.Info(ctx, "Assets skipped", "skipped", skipped, "total", len(tasks))
	}
	return out
}

// planTasks assigns every source a task and a unique resource name. Custom
// image names that sanitize to the same identifier, or to a name reserved
// by a fixed asset slot, get a numeric suffix.
func planTasks(sources []types.AssetSource) []assetTask {
	used := map[string]bool{transform.AdaptiveForeground: true, transform.RoundLauncher: true}
	for _, t := range types.AssetTypes {
		if t != types.AssetTypeCustom {
			used[transform.ProfileFor(types.AssetSource{Type: t}).Resource] = true
		}
	}

	tasks := make([]assetTask, 0, len(sources))
	for i, src := range sources {
		task := assetTask{index: i, source: src}
		if src.Type == types.AssetTypeCustom {
			base := transform.CustomResourceName(src.Name)
			name := base
			for n := 2; used[name]; n++ {
				name = base + "_" + strconv.Itoa(n)
			}
			used[name] = true
			task.resource = name
		}
		tasks = append(tasks, task)
	}
	return tasks
}
