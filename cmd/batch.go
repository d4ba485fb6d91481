package cmd

import (
	"fmt"
	"runtime"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/brandkit/internal/orchestrator"
	"github.com/conneroisu/brandkit/internal/types"
)

var batchCmd = &cobra.Command{
	Use:   "batch REQUEST...",
	Short: "Build several partners concurrently",
	Long: `Run one build per request file, up to --parallel at a time. All builds share
one transform cache. A failed build does not stop the others; the command
fails when any build failed.

Examples:
  brandkit batch partners/*.yaml
  brandkit batch acme.yaml globex.yaml --parallel 2 -o json`,
	Args: requestArgs,
	RunE: runBatch,
}

var (
	batchParallel int
	batchOutput   outputFormat
)

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVarP(&batchParallel, "parallel", "p", 0, "Builds run at once (0 = number of CPUs)")
	addPipelineFlags(batchCmd)
	addOutputFlag(batchCmd, &batchOutput)
}

// batchEntry is the outcome for one request file.
type batchEntry struct {
	Request string                    `json:"request"`
	Report  *orchestrator.BuildReport `json:"report,omitempty"`
	Error   string                    `json:"error,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	bindFlags(cmd.Flags(), pipelineBindings)
	cfg, logger, err := loadConfig(cmd)
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

	limit := batchParallel
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	entries := make([]batchEntry, len(args))
	var mu sync.Mutex
	failed := 0

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(limit)
	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			entry := batchEntry{Request: path}
			req, err := types.LoadBuildRequest(path)
			if err != nil {
				entry.Error = err.Error()
			} else {
				entry.Report = orch.Execute(ctx, *req)
				if !entry.Report.Success {
					entry.Error = entry.Report.Error
				}
			}

			mu.Lock()
			entries[i] = entry
			if entry.Error != "" {
				failed++
			}
			mu.Unlock()
			// Build failures are reported, not propagated, so the rest of
			// the batch keeps running.
			return nil
		})
	}
	_ = g.Wait()

	w := cmd.OutOrStdout()
	if batchOutput == outputJSON {
		if err := printJSON(w, entries); err != nil {
			return err
		}
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "REQUEST\tBUILD\tPARTNER\tSTATUS\tASSETS\tDURATION")
		for _, e := range entries {
			build, partner, assets, duration := "-", "-", 0, "-"
			if e.Report != nil {
				build, partner = e.Report.BuildID, e.Report.PartnerID
				duration = fmt.Sprintf("%dms", e.Report.BuildDuration)
				if e.Report.Stats != nil {
					assets = e.Report.Stats.TotalAssets
				}
			}
			status := "ok"
			if e.Error != "" {
				status = "failed: " + e.Error
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", e.Request, build, partner, status, assets, duration)
		}
		_ = tw.Flush()
		if snap := pipeline.Metrics().Snapshot(); snap.TotalRuns > 0 {
			fmt.Fprintf(w, "%d runs, %.0f%% succeeded\n", snap.TotalRuns, snap.SuccessRate)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d builds failed", failed, len(args))
	}
	return nil
}
