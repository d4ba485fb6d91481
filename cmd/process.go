package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/brandkit/internal/types"
)

var processCmd = &cobra.Command{
	Use:   "process REQUEST",
	Short: "Transform a partner's assets into build variants",
	Long: `Run the asset pipeline for one build request and write every variant
under the output directory. Nothing else in the build tree is touched.

The request is a .json or .yaml file with "buildConfig" and "partnerAssets";
relative asset paths are resolved against the request file.

Examples:
  brandkit process acme.yaml
  brandkit process acme.yaml --out ./out --formats png,webp
  brandkit process acme.yaml -o json --save-result result.json`,
	Args: cobra.MatchAll(cobra.ExactArgs(1), requestArgs),
	RunE: runProcess,
}

var (
	processOutDir     string
	processSaveResult string
	processOutput     outputFormat
)

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVarP(&processOutDir, "out", "d", "",
		"Output directory (default <build.work_dir>/<buildId>)")
	processCmd.Flags().StringVar(&processSaveResult, "save-result", "",
		"Also write the pipeline result as JSON to this file")
	addPipelineFlags(processCmd)
	addOutputFlag(processCmd, &processOutput)
}

func runProcess(cmd *cobra.Command, args []string) error {
	bindFlags(cmd.Flags(), pipelineBindings)
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	req, err := types.LoadBuildRequest(args[0])
	if err != nil {
		return err
	}

	outDir := processOutDir
	if outDir == "" {
		if err := req.Build.Validate(); err != nil {
			return err
		}
		outDir = filepath.Join(cfg.Build.WorkDir, req.Build.BuildID)
	}

	pipeline, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}
	result := pipeline.ProcessPipeline(cmd.Context(), outDir, req.Build, req.Assets)

	if processSaveResult != "" {
		if err := saveJSON(processSaveResult, result); err != nil {
			return fmt.Errorf("failed to save result: %w", err)
		}
	}

	w := cmd.OutOrStdout()
	if processOutput == outputJSON {
		if err := printJSON(w, resultOutput{PipelineResult: result, Stats: pipeline.GetPipelineStats(result)}); err != nil {
			return err
		}
	} else {
		printResult(w, result)
		fmt.Fprintf(w, "Output: %s\n", outDir)
	}

	if !result.Success {
		return fmt.Errorf("asset pipeline failed with %d errors", len(result.Errors))
	}
	return nil
}
