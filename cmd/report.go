package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/conneroisu/brandkit/internal/build"
	"github.com/conneroisu/brandkit/internal/fsutil"
	"github.com/conneroisu/brandkit/internal/orchestrator"
	"github.com/conneroisu/brandkit/internal/types"
)

// resultOutput is the JSON shape of process and stats output.
type resultOutput struct {
	types.PipelineResult
	Stats types.PipelineStats `json:"stats"`
}

func printResult(w io.Writer, result types.PipelineResult) {
	stats := build.GetPipelineStats(result)
	status := "succeeded"
	if !result.Success {
		status = "failed"
	}
	fmt.Fprintf(w, "Pipeline %s: %d assets in %dms, quality %.1f\n",
		status, stats.TotalAssets, stats.ProcessingTime, stats.QualityScore)

	if len(result.ProcessedAssets) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TYPE\tNAME\tFORMATS\tFILES\tSAVED\tQUALITY")
		for _, a := range result.ProcessedAssets {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.1f%%\t%.1f\n",
				a.Type, a.Name, strings.Join(a.Formats, ","), len(a.OutputPaths),
				a.Optimization.CompressionRatio, a.Optimization.QualityScore)
		}
		_ = tw.Flush()
	}

	printStats(w, stats)
	printList(w, "Warnings", result.Warnings)
	printList(w, "Errors", result.Errors)
}

func printStats(w io.Writer, stats types.PipelineStats) {
	if stats.TotalAssets == 0 {
		return
	}
	parts := make([]string, 0, len(stats.FormatDistribution))
	for _, name := range build.Formats(stats) {
		parts = append(parts, fmt.Sprintf("%s=%d", name, stats.FormatDistribution[name]))
	}
	fmt.Fprintf(w, "Formats: %s\n", strings.Join(parts, " "))
	fmt.Fprintf(w, "Average size reduction: %.1f%%\n", stats.TotalOptimization)
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

func printReport(w io.Writer, report *orchestrator.BuildReport) {
	status := "succeeded"
	if !report.Success {
		status = "failed"
	}
	fmt.Fprintf(w, "Build %s for %s %s in %dms\n", report.BuildID, report.PartnerID, status, report.BuildDuration)

	stage := func(name string, done bool) {
		mark := "-"
		if done {
			mark = "ok"
		}
		fmt.Fprintf(w, "  %-20s %s\n", name, mark)
	}
	stage(string(orchestrator.StageTemplate), report.Stages.TemplatePreparation)
	stage(string(orchestrator.StageProcessing), report.Stages.AssetProcessing)
	stage(string(orchestrator.StageInjection), report.Stages.AssetInjection)

	if report.Stats != nil {
		printStats(w, *report.Stats)
	}
	if report.Injection != nil {
		fmt.Fprintf(w, "Injected: %d files written, %d unchanged\n",
			len(report.Injection.Written), len(report.Injection.Unchanged))
	}
	if report.BuildPath != "" && report.Success {
		fmt.Fprintf(w, "Build tree: %s\n", report.BuildPath)
	}
	if report.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", report.Error)
	}
}

// saveJSON writes v to path atomically.
func saveJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, append(data, '\n'), 0o644)
}

// loadJSON reads the JSON document at path into v.
func loadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
