package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/brandkit/internal/types"
)

var buildCmd = &cobra.Command{
	Use:   "build REQUEST",
	Short: "Process a partner's assets and inject them into a build tree",
	Long: `Run a full partner build: prepare the build tree (copying build.template_dir
when set), process the assets, plan the injection and apply it. A JSON build
report is written to build.report_dir.

Examples:
  brandkit build acme.yaml
  brandkit build acme.yaml --template ./android-template --keep-failed
  brandkit build acme.yaml -o json`,
	Args: cobra.MatchAll(cobra.ExactArgs(1), requestArgs),
	RunE: runBuild,
}

var buildOutput outputFormat

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().String("template", "", "Template build tree copied into each build")
	buildCmd.Flags().String("work-dir", "", "Directory holding one build tree per build id")
	buildCmd.Flags().Bool("keep-failed", false, "Keep the build tree of a failed build")
	addPipelineFlags(buildCmd)
	addOutputFlag(buildCmd, &buildOutput)
	AddFlagValidation(buildCmd, "template", ValidateDirExists)
}

var buildBindings = map[string]string{
	"template":    "build.template_dir",
	"work-dir":    "build.work_dir",
	"keep-failed": "build.keep_failed",
}

func runBuild(cmd *cobra.Command, args []string) error {
	bindFlags(cmd.Flags(), pipelineBindings)
	bindFlags(cmd.Flags(), buildBindings)
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	req, err := types.LoadBuildRequest(args[0])
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

	report := orch.Execute(cmd.Context(), *req)
	if buildOutput == outputJSON {
		if err := printJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else {
		printReport(cmd.OutOrStdout(), report)
	}

	if !report.Success {
		return fmt.Errorf("build %s failed", report.BuildID)
	}
	return nil
}
