package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/brandkit/internal/build"
	"github.com/conneroisu/brandkit/internal/orchestrator"
	"github.com/conneroisu/brandkit/internal/types"
)

var statsCmd = &cobra.Command{
	Use:   "stats [FILE]",
	Short: "Summarize a pipeline result or build report",
	Long: `Print pipeline statistics: asset count, processing time, mean quality,
average size reduction and the format distribution.

FILE is a pipeline result ("brandkit process --save-result") or a build
report. With --build the stored report of that build is read from
build.report_dir instead.

Examples:
  brandkit stats result.json
  brandkit stats --build build-acme-42 -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStats,
}

var (
	statsBuildID string
	statsOutput  outputFormat
)

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringVarP(&statsBuildID, "build", "b", "", "Read the stored report of this build id")
	addOutputFlag(statsCmd, &statsOutput)
}

func runStats(cmd *cobra.Command, args []string) error {
	var result types.PipelineResult
	switch {
	case statsBuildID != "":
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		report, err := orchestrator.LoadReport(cfg.Build.ReportDir, statsBuildID)
		if err != nil {
			return err
		}
		if report.AssetPipelineResult == nil {
			return fmt.Errorf("build %s has no pipeline result", statsBuildID)
		}
		result = *report.AssetPipelineResult
	case len(args) == 1:
		r, err := readResult(args[0])
		if err != nil {
			return err
		}
		result = r
	default:
		return fmt.Errorf("stats needs a result file or --build")
	}

	stats := build.GetPipelineStats(result)
	if statsOutput == outputJSON {
		return printJSON(cmd.OutOrStdout(), stats)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Assets: %d\n", stats.TotalAssets)
	fmt.Fprintf(w, "Processing time: %dms\n", stats.ProcessingTime)
	fmt.Fprintf(w, "Quality score: %.1f\n", stats.QualityScore)
	printStats(w, stats)
	return nil
}

// readResult accepts either a pipeline result or a build report.
func readResult(path string) (types.PipelineResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.PipelineResult{}, err
	}

	var report struct {
		BuildID             string                `json:"buildId"`
		AssetPipelineResult *types.PipelineResult `json:"assetPipelineResult"`
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return types.PipelineResult{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if report.BuildID != "" {
		if report.AssetPipelineResult == nil {
			return types.PipelineResult{}, fmt.Errorf("build report %s has no pipeline result", path)
		}
		return *report.AssetPipelineResult, nil
	}

	var result types.PipelineResult
	if err := json.Unmarshal(data, &result); err != nil {
		return types.PipelineResult{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return result, nil
}
