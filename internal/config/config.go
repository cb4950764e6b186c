// Package config provides configuration management for playpack using
// Viper for flexible configuration loading from files, environment
// variables and command-line flags.
//
// The configuration system supports YAML files and environment
// variable overrides with the PLAYPACK_ prefix. It manages the runtime
// distribution root, the generated-code output directory, minifier
// selection and the preview server settings.
package config

import (
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/conneroisu/playpack/internal/errors"
)

type Config struct {
	Runtime Runtime `yaml:"runtime"`
	Export  Export  `yaml:"export"`
	Preview Preview `yaml:"preview"`
	Logging Logging `yaml:"logging"`
}

// Runtime locates the runtime distribution shipped with the tool.
type Runtime struct {
	// Root holds the static runtime library files and optional custom
	// manifest templates.
	Root string `yaml:"root"`
	// CodeOutputDir is where generated code lands before being copied
	// into an export; it doubles as the reuse cache for incremental
	// previews.
	CodeOutputDir string `yaml:"code_output_dir"`
}

// Export configures packaged exports.
type Export struct {
	// MinifyCommand is the external minifier invoked for merged bundles.
	// Empty selects the built-in concatenating merger.
	MinifyCommand string   `yaml:"minify_command"`
	MinifyArgs    []string `yaml:"minify_args"`
}

// Preview configures the preview server and watch loop.
type Preview struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	DebounceMillis int    `yaml:"debounce_millis"`
}

// Logging configures the structured logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, errors.NewConfigurationError("config_unmarshal", err.Error())
	}

	if config.Runtime.Root == "" {
		config.Runtime.Root = viper.GetString("runtime.root")
	}
	if config.Runtime.Root == "" {
		config.Runtime.Root = "runtime"
	}
	if config.Runtime.CodeOutputDir == "" {
		config.Runtime.CodeOutputDir = filepath.Join(".playpack", "code")
	}

	if config.Preview.Host == "" {
		config.Preview.Host = "localhost"
	}
	if config.Preview.Port == 0 {
		config.Preview.Port = 3920
	}
	if config.Preview.DebounceMillis == 0 {
		config.Preview.DebounceMillis = 300
	}

	if config.Logging.Level == "" {
		config.Logging.Level = viper.GetString("log-level")
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if config.Preview.Port < 0 || config.Preview.Port > 65535 {
		return errors.NewConfigurationError("config_port", "preview port is not in valid range 0-65535")
	}

	if err := validatePath(config.Runtime.CodeOutputDir, false); err != nil {
		return err
	}
	if err := validatePath(config.Runtime.Root, true); err != nil {
		return err
	}

	return nil
}

// validatePath rejects traversal and shell metacharacters in
// configured paths.
func validatePath(path string, allowAbsolute bool) error {
	if path == "" {
		return errors.NewConfigurationError("config_path", "empty path")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return errors.NewConfigurationError("config_path", "path contains traversal: "+path)
	}
	if !allowAbsolute && filepath.IsAbs(cleanPath) {
		return errors.NewConfigurationError("config_path", "path should be relative: "+path)
	}

	for _, char := range []string{";", "&", "|", "$", "`", "(", ")", "<", ">", `"`, "'"} {
		if strings.Contains(cleanPath, char) {
			return errors.NewConfigurationError("config_path", "path contains dangerous character: "+char)
		}
	}

	return nil
}
