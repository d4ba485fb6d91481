// Package cmd provides the brandkit command-line interface.
//
// Configuration is read, highest precedence first, from command-line flags,
// BRANDKIT_<SECTION>_<OPTION> environment variables (a .env file in the
// working directory is loaded into the environment first), the file named by
// --config or BRANDKIT_CONFIG_FILE, and finally .brandkit.yml in the working
// directory.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/brandkit/internal/config"
	"github.com/conneroisu/brandkit/internal/errors"
	"github.com/conneroisu/brandkit/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "brandkit",
	Short: "White-label asset pipeline for partner app builds",
	Long: `brandkit turns a partner's brand images into every density, format and
resource variant an Android build needs, and injects them together with the
partner's colors, strings and manifest metadata into a build tree.

Quick Start:
  brandkit process request.yaml   Transform a partner's assets
  brandkit build request.yaml     Process and inject into a build tree
  brandkit serve                  Start the upload and build API
  brandkit watch request.yaml     Rebuild whenever a source image changes`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. SIGINT and SIGTERM cancel the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is .brandkit.yml, can also use BRANDKIT_CONFIG_FILE)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// initConfig prepares the global viper instance: .env, defaults, env
// binding and the config file.
func initConfig() {
	// A missing .env is the common case.
	_ = godotenv.Load()

	v := viper.GetViper()
	config.Configure(v)
	bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"log-level":  "log.level",
		"log-format": "log.format",
	})

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		v.SetConfigFile(envConfigFile)
	}

	if err := v.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintln(os.Stderr, "Cannot read config file:", err)
	}
}

// loadConfig loads and validates the configuration and builds the logger
// every component receives. Logs go to the command's error stream.
func loadConfig(cmd *cobra.Command) (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logCfg := cfg.LoggerConfig()
	logCfg.Output = cmd.ErrOrStderr()
	return cfg, logging.NewLogger(logCfg), nil
}

// printError writes err with its suggestions, when it carries any.
func printError(w io.Writer, err error) {
	fmt.Fprintln(w, errors.FormatErrorWithSuggestions(err))
}
