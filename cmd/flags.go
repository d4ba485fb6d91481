package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// outputFormat is the --output flag shared by commands that print results.
type outputFormat string

const (
	outputText outputFormat = "text"
	outputJSON outputFormat = "json"
)

func (o *outputFormat) String() string { return string(*o) }

func (o *outputFormat) Set(s string) error {
	switch outputFormat(s) {
	case outputText, outputJSON:
		*o = outputFormat(s)
		return nil
	default:
		return fmt.Errorf("invalid output format %s, must be one of: text, json", s)
	}
}

func (o *outputFormat) Type() string { return "format" }

func addOutputFlag(cmd *cobra.Command, target *outputFormat) {
	*target = outputText
	cmd.Flags().VarP(target, "output", "o", "Output format (text|json)")
}

// pipelineBindings maps pipeline override flags onto configuration keys.
var pipelineBindings = map[string]string{
	"formats":           "pipeline.output_formats",
	"quality-threshold": "pipeline.quality_threshold",
	"optimize":          "pipeline.enable_optimization",
	"compression-level": "pipeline.compression_level",
	"max-time":          "pipeline.max_processing_time",
	"workers":           "pipeline.workers",
}

// addPipelineFlags adds flags overriding the pipeline section of the
// configuration. Their defaults only apply when nothing else sets the key.
func addPipelineFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSlice("formats", nil, "Output formats (png, webp, jpeg)")
	f.Float64("quality-threshold", 0, "Quality score below which a warning is raised")
	f.Bool("optimize", true, "Enable lossy optimization")
	f.Int("compression-level", 0, "Compression effort, 0 (fast) to 9 (small)")
	f.Duration("max-time", 0, "Soft processing time budget")
	f.IntP("workers", "j", 0, "Concurrent asset workers (0 = number of CPUs)")
}

// bindFlags binds flags to viper keys on the global instance. Binding at run
// time keeps the bindings valid after the instance is reset.
func bindFlags(fs *pflag.FlagSet, bindings map[string]string) {
	for flagName, configKey := range bindings {
		if flag := fs.Lookup(flagName); flag != nil {
			_ = viper.BindPFlag(configKey, flag)
		}
	}
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidatePort checks a --port value.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}

	return nil
}

// ValidateDirExists checks that an optional directory flag names a directory.
func ValidateDirExists(dir string) error {
	if dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return fmt.Errorf("directory does not exist: %s", dir)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}

	return nil
}

// ValidateRequestFile checks that a build request argument is a readable
// .json, .yml or .yaml file.
func ValidateRequestFile(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yml", ".yaml":
	default:
		return fmt.Errorf("build request must be a .json, .yml or .yaml file: %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("build request not found: %s", path)
	}
	return nil
}

func requestArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%s requires at least one build request file", cmd.Name())
	}
	for _, arg := range args {
		if err := ValidateRequestFile(arg); err != nil {
			return err
		}
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
