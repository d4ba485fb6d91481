package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/brandkit/internal/injection"
	"github.com/conneroisu/brandkit/internal/types"
)

var injectCmd = &cobra.Command{
	Use:   "inject PLAN",
	Short: "Apply a saved injection plan to a build tree",
	Long: `Apply an injection plan written by "brandkit plan --save". Applying the
same plan twice leaves the build tree unchanged.

Examples:
  brandkit inject plan.json
  brandkit inject plan.json --target ./checkout/app`,
	Args: cobra.ExactArgs(1),
	RunE: runInject,
}

var (
	injectTarget string
	injectOutput outputFormat
)

func init() {
	rootCmd.AddCommand(injectCmd)

	injectCmd.Flags().StringVarP(&injectTarget, "target", "t", "", "Build tree to inject into (overrides the plan)")
	addOutputFlag(injectCmd, &injectOutput)
	AddFlagValidation(injectCmd, "target", ValidateDirExists)
}

func runInject(cmd *cobra.Command, args []string) error {
	_, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var plan types.InjectionPlan
	if err := loadJSON(args[0], &plan); err != nil {
		return fmt.Errorf("failed to read plan: %w", err)
	}
	if injectTarget != "" {
		plan.TargetPath = injectTarget
	}

	report, applyErr := injection.NewInjector(logger).Apply(cmd.Context(), plan)

	w := cmd.OutOrStdout()
	if injectOutput == outputJSON {
		if err := printJSON(w, report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "Injected into %s: %d files written, %d unchanged\n",
			plan.TargetPath, len(report.Written), len(report.Unchanged))
		printList(w, "Written", report.Written)
	}
	return applyErr
}
