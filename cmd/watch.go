package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/conneroisu/brandkit/internal/build"
	"github.com/conneroisu/brandkit/internal/orchestrator"
	"github.com/conneroisu/brandkit/internal/types"
	"github.com/conneroisu/brandkit/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch REQUEST",
	Short: "Rebuild whenever a partner's source images change",
	Long: `Build once, then watch the directories holding the request's source images
and the request file itself. Every debounced batch of changes re-runs the
build; saves that leave a file's content unchanged are ignored.

Examples:
  brandkit watch acme.yaml
  brandkit watch acme.yaml --debounce 1s --verbose`,
	Args: cobra.MatchAll(cobra.ExactArgs(1), requestArgs),
	RunE: runWatch,
}

var watchVerbose bool

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "List every changed file")
	watchCmd.Flags().Duration("debounce", 0, "Quiet period before a batch of changes triggers a rebuild")
	addPipelineFlags(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	bindFlags(cmd.Flags(), pipelineBindings)
	bindFlags(cmd.Flags(), map[string]string{"debounce": "watch.debounce"})
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	requestPath, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	req, err := types.LoadBuildRequest(requestPath)
	if err != nil {
		return err
	}

	pipeline, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}
	orch, err := newOrchestrator(cfg, pipeline, nil, logger)
	if err != nil {
		return err
	}

	fw, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Stop()

	fw.AddFilter(func(path string) bool {
		return path == requestPath || watcher.ImageFilter(path)
	})
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.NoTempFilter)
	fw.SkipUnchanged(build.NewHashProvider(pipeline.Cache(), nil))

	for _, dir := range watchDirs(requestPath, req.Assets) {
		if err := fw.AddPath(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	rebuild(ctx, out, orch, requestPath)

	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		if watchVerbose {
			fmt.Fprintln(out, "Changes detected:")
			for _, event := range events {
				fmt.Fprintf(out, "  %s: %s\n", event.Type, event.Path)
			}
		} else {
			fmt.Fprintf(out, "%d file(s) changed\n", len(events))
		}
		return rebuild(ctx, out, orch, requestPath)
	})

	if err := fw.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Watching %d directories, press Ctrl+C to stop\n", len(fw.WatchedPaths()))
	<-ctx.Done()
	fmt.Fprintln(out, "Stopping watcher")
	return nil
}

// rebuild reloads the request, so edits to it take effect, and runs a build.
func rebuild(ctx context.Context, out io.Writer, orch *orchestrator.Orchestrator, requestPath string) error {
	req, err := types.LoadBuildRequest(requestPath)
	if err != nil {
		fmt.Fprintf(out, "Cannot load %s: %v\n", requestPath, err)
		return err
	}
	report := orch.Execute(ctx, *req)
	printReport(out, report)
	if !report.Success {
		return fmt.Errorf("build %s failed: %s", report.BuildID, report.Error)
	}
	return nil
}

// watchDirs returns the distinct directories of the request file and every
// source image, sorted.
func watchDirs(requestPath string, assets types.PartnerAssets) []string {
	seen := map[string]bool{filepath.Dir(requestPath): true}
	for _, src := range assets.Sources() {
		if dir, err := filepath.Abs(filepath.Dir(src.Path)); err == nil {
			seen[dir] = true
		}
	}
	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}
