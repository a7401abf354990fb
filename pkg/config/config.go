// Package config owns the validation run configuration: defaults, the
// .packlint.yaml file, PACKLINT_* environment variables and flag overrides,
// layered in that order.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/contentops/packlint/internal/repo"
)

// RunConfig is the full knob set of a validation run.
type RunConfig struct {
	Root             string   `mapstructure:"root"`
	ExecutionMode    string   `mapstructure:"execution_mode"`
	FilePaths        []string `mapstructure:"file_paths"`
	BaselineRef      string   `mapstructure:"baseline_ref"`
	IncludeUntracked bool     `mapstructure:"include_untracked"`
	Fix              bool     `mapstructure:"fix"`

	ErrorCodesAllowlist []string `mapstructure:"error_codes_allowlist"`
	ErrorCodesDenylist  []string `mapstructure:"error_codes_denylist"`
	CategoriesToRun     []string `mapstructure:"categories_to_run"`

	ReportFormat  string `mapstructure:"report_format"`
	ReportFile    string `mapstructure:"report_file"`
	FailOnWarning bool   `mapstructure:"fail_on_warning"`

	ExcludeGlobs []string `mapstructure:"exclude_globs"`
	Jobs         int      `mapstructure:"jobs"`
}

// ConfigFileName is the repo-root configuration file (without extension).
const ConfigFileName = ".packlint"

// Defaults returns the built-in configuration.
func Defaults() RunConfig {
	return RunConfig{
		Root:          ".",
		ExecutionMode: string(repo.ModeUseGit),
		BaselineRef:   "origin/master",
		ReportFormat:  "text",
		Jobs:          1,
	}
}

// NewViper builds a viper instance with defaults, config file and env
// bindings in place. Flags bind on top in the command layer.
func NewViper(root string) *viper.Viper {
	v := viper.New()
	defaults := Defaults()
	v.SetDefault("root", defaults.Root)
	v.SetDefault("execution_mode", defaults.ExecutionMode)
	v.SetDefault("baseline_ref", defaults.BaselineRef)
	v.SetDefault("report_format", defaults.ReportFormat)
	v.SetDefault("jobs", defaults.Jobs)

	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(root)

	v.SetEnvPrefix("PACKLINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the layered configuration into a RunConfig. A missing config
// file is fine; a malformed one is not.
func Load(v *viper.Viper) (RunConfig, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return RunConfig{}, fmt.Errorf("read config: %w", err)
		}
	}
	cfg := Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return RunConfig{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate rejects impossible knob combinations before the engine starts.
func (c RunConfig) Validate() error {
	mode := repo.ExecutionMode(c.ExecutionMode)
	known := false
	for _, m := range repo.AllModes {
		if m == mode {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown execution_mode %q", c.ExecutionMode)
	}
	if mode == repo.ModeSpecificFiles && len(c.FilePaths) == 0 {
		return fmt.Errorf("execution_mode %s requires file_paths", mode)
	}
	if mode != repo.ModeSpecificFiles && len(c.FilePaths) > 0 {
		return fmt.Errorf("file_paths is only valid with execution_mode %s", repo.ModeSpecificFiles)
	}
	switch c.ReportFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown report_format %q", c.ReportFormat)
	}
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1")
	}
	return nil
}

// Mode returns the typed execution mode.
func (c RunConfig) Mode() repo.ExecutionMode {
	return repo.ExecutionMode(c.ExecutionMode)
}
