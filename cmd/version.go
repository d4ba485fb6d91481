package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/brandkit/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the brandkit version, the commit it was built from, the build
time, the Go toolchain and the target platform.

Examples:
  brandkit version
  brandkit version --short
  brandkit version -o json`,
	Args: cobra.NoArgs,
	RunE: runVersionCommand,
}

var (
	versionOutput outputFormat
	versionShort  bool
)

func init() {
	rootCmd.AddCommand(versionCmd)

	addOutputFlag(versionCmd, &versionOutput)
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show the version number only")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	switch {
	case versionOutput == outputJSON:
		return printJSON(w, struct {
			version.BuildInfo
			Release bool `json:"release"`
		}{version.GetBuildInfo(), version.IsRelease()})
	case versionShort:
		fmt.Fprintln(w, version.GetVersion())
	default:
		fmt.Fprintln(w, version.GetDetailedVersion())
	}
	return nil
}
