package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/brandkit/internal/injection"
	"github.com/conneroisu/brandkit/internal/types"
)

var planCmd = &cobra.Command{
	Use:   "plan REQUEST",
	Short: "Show the injection plan for a build request",
	Long: `Derive the injection plan for a build request without applying it.

The plan is computed from a saved pipeline result (--result, as written by
"brandkit process --save-result") or by running the pipeline first.

Examples:
  brandkit plan acme.yaml
  brandkit plan acme.yaml --result result.json --build-path ./build/acme
  brandkit plan acme.yaml --save plan.json`,
	Args: cobra.MatchAll(cobra.ExactArgs(1), requestArgs),
	RunE: runPlan,
}

var (
	planResultFile string
	planBuildPath  string
	planSave       string
	planOutput     outputFormat
)

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVar(&planResultFile, "result", "", "Plan from a saved pipeline result instead of processing")
	planCmd.Flags().StringVar(&planBuildPath, "build-path", "",
		"Build tree the plan targets (default <build.work_dir>/<buildId>)")
	planCmd.Flags().StringVar(&planSave, "save", "", "Write the plan as JSON to this file")
	addPipelineFlags(planCmd)
	addOutputFlag(planCmd, &planOutput)
}

func runPlan(cmd *cobra.Command, args []string) error {
	bindFlags(cmd.Flags(), pipelineBindings)
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	req, err := types.LoadBuildRequest(args[0])
	if err != nil {
		return err
	}
	if err := req.Build.Validate(); err != nil {
		return err
	}

	buildPath := planBuildPath
	if buildPath == "" {
		buildPath = filepath.Join(cfg.Build.WorkDir, req.Build.BuildID)
	}

	var result types.PipelineResult
	if planResultFile != "" {
		if err := loadJSON(planResultFile, &result); err != nil {
			return fmt.Errorf("failed to read pipeline result: %w", err)
		}
	} else {
		pipeline, err := newPipeline(cfg, logger)
		if err != nil {
			return err
		}
		result = pipeline.ProcessPipeline(cmd.Context(), buildPath, req.Build, req.Assets)
	}
	if !result.Success {
		printList(cmd.ErrOrStderr(), "Errors", result.Errors)
		return fmt.Errorf("cannot plan injection for a failed pipeline run")
	}

	plan := injection.NewPlanner(req.Build, logger).
		CreateInjectionPlan(req.Build.BuildID, req.Build.EffectivePartnerID(), buildPath, result)

	if planSave != "" {
		if err := saveJSON(planSave, plan); err != nil {
			return fmt.Errorf("failed to save plan: %w", err)
		}
	}

	if planOutput == outputJSON {
		return printJSON(cmd.OutOrStdout(), plan)
	}
	printPlan(cmd.OutOrStdout(), plan)
	return nil
}

func printPlan(w io.Writer, plan types.InjectionPlan) {
	fmt.Fprintf(w, "Injection plan for build %s (%s) into %s\n", plan.BuildID, plan.PartnerID, plan.TargetPath)
	for _, category := range types.Categories {
		if n := len(plan.Assets.Get(category)); n > 0 {
			fmt.Fprintf(w, "  %-8s %d\n", category, n)
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tACTION\tTARGET\tMARKER")
	for _, p := range plan.InjectionPoints {
		marker := p.Marker
		if marker == "" {
			marker = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Type, p.Action, p.TargetFile, marker)
	}
	_ = tw.Flush()
}
