// Package cmd provides the command-line interface for playpack with
// configuration loading from multiple sources.
//
// Configuration precedence, highest first:
//  1. Command-line flags (--config, --out, etc.)
//  2. PLAYPACK_CONFIG_FILE environment variable (custom config path)
//  3. Individual environment variables (PLAYPACK_RUNTIME_ROOT, etc.)
//  4. Configuration file (.playpack.yml in the current directory)
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/playpack/internal/config"
	"github.com/conneroisu/playpack/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "playpack",
	Short: "Export interactive projects into runnable bundles",
	Long: `Playpack packages an interactive-project description into a runnable
bundle for one of several targets: browser preview, hybrid-mobile
shell, desktop shell or social-platform shell.

Quick Start:
  playpack preview game.json            Export a browser preview
  playpack preview game.json -w -s      Re-export on change and serve it
  playpack package mobile game.json     Export the hybrid-mobile bundle
  playpack data game.json data.js       Export project data only

Command Aliases (for faster typing):
  preview (p), package (pkg), serve (s), data (d)`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .playpack.yml, can also use PLAYPACK_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig initializes the configuration system.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("PLAYPACK_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".playpack")
	}

	viper.SetEnvPrefix("PLAYPACK")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing or malformed config file degrades to defaults.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfigAndLogger resolves the effective configuration and builds
// the logger every subcommand shares.
func loadConfigAndLogger() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})

	return cfg, logger, nil
}
