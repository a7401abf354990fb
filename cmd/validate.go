package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/contentops/packlint/internal/report"
	"github.com/contentops/packlint/internal/repo"
	"github.com/contentops/packlint/internal/validate"
	_ "github.com/contentops/packlint/internal/validate/rules"
	"github.com/contentops/packlint/pkg/config"
	"github.com/contentops/packlint/pkg/exitcode"
	"github.com/contentops/packlint/pkg/logger"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate content packs",
		Long: `Validate runs the registered rules over the content in scope. Scope is the
git diff against the baseline ref by default; -a widens it to the whole
repository and -i narrows it to explicit paths.`,
		RunE: runValidate,
	}

	cmd.Flags().String("root", "", "Content repository root (default: current directory)")
	cmd.Flags().BoolP("all-files", "a", false, "Validate the whole repository")
	cmd.Flags().StringSliceP("input", "i", nil, "Validate only the given repo-relative paths")
	cmd.Flags().String("baseline-ref", "", "Git ref to diff against in git mode")
	cmd.Flags().Bool("include-untracked", false, "Include untracked files in git mode")
	cmd.Flags().Bool("fix", false, "Apply auto-fixes and re-validate the fixed rules")
	cmd.Flags().StringSlice("category", nil, "Run only the given rule families (e.g. BA,GR)")
	cmd.Flags().StringSlice("allow-code", nil, "Codes that bypass .pack-ignore suppression")
	cmd.Flags().StringSlice("deny-code", nil, "Codes to drop outright")
	cmd.Flags().StringSlice("exclude", nil, "Discovery exclusion globs")
	cmd.Flags().String("format", "", "Report format (text|json)")
	cmd.Flags().String("report-file", "", "Also write the report to this file")
	cmd.Flags().Bool("fail-on-warning", false, "Exit nonzero on warnings too")
	cmd.Flags().Int("jobs", 0, "Concurrent validator checks (fix mode is always sequential)")
	cmd.Flags().Bool("list-codes", false, "Print the error catalog and exit")

	return cmd
}

func runValidate(cmd *cobra.Command, _ []string) error {
	if listCodes, _ := cmd.Flags().GetBool("list-codes"); listCodes {
		report.ListCodes(cmd.OutOrStdout())
		return nil
	}

	cfg, err := loadRunConfig(cmd)
	if err != nil {
		logger.Error("Invalid configuration", logger.Err(err))
		os.Exit(exitcode.ConfigError)
	}

	engine := validate.NewEngine(validate.RunOptions{
		Root:             cfg.Root,
		Mode:             cfg.Mode(),
		FilePaths:        cfg.FilePaths,
		BaselineRef:      cfg.BaselineRef,
		IncludeUntracked: cfg.IncludeUntracked,
		Fix:              cfg.Fix,
		Categories:       cfg.CategoriesToRun,
		AllowCodes:       cfg.ErrorCodesAllowlist,
		DenyCodes:        cfg.ErrorCodesDenylist,
		ExcludeGlobs:     cfg.ExcludeGlobs,
		FailOnWarning:    cfg.FailOnWarning,
		Jobs:             cfg.Jobs,
	})
	rep, err := engine.Run()
	if err != nil {
		logger.Error("Validation run failed", logger.Err(err))
		os.Exit(runErrorExitCode(err))
	}

	format := report.Format(cfg.ReportFormat)
	if err := report.Write(cmd.OutOrStdout(), rep, format); err != nil {
		return err
	}
	if cfg.ReportFile != "" {
		if err := report.WriteFile(cfg.ReportFile, rep, format); err != nil {
			logger.Error("Report file not written", logger.Err(err))
			os.Exit(exitcode.FileSystemError)
		}
	}

	if code := rep.ExitCode(cfg.FailOnWarning); code != exitcode.Success {
		os.Exit(code)
	}
	return nil
}

// loadRunConfig layers defaults, .packlint.yaml, PACKLINT_* env vars and the
// command's flags into a validated RunConfig.
func loadRunConfig(cmd *cobra.Command) (config.RunConfig, error) {
	root, _ := cmd.Flags().GetString("root")
	if root == "" {
		root = "."
	}
	v := config.NewViper(root)
	flags := cmd.Flags()
	bindFlag(v, flags, "baseline_ref", "baseline-ref")
	bindFlag(v, flags, "include_untracked", "include-untracked")
	bindFlag(v, flags, "fix", "fix")
	bindFlag(v, flags, "categories_to_run", "category")
	bindFlag(v, flags, "error_codes_allowlist", "allow-code")
	bindFlag(v, flags, "error_codes_denylist", "deny-code")
	bindFlag(v, flags, "exclude_globs", "exclude")
	bindFlag(v, flags, "report_format", "format")
	bindFlag(v, flags, "report_file", "report-file")
	bindFlag(v, flags, "fail_on_warning", "fail-on-warning")
	bindFlag(v, flags, "jobs", "jobs")

	cfg, err := config.Load(v)
	if err != nil {
		return config.RunConfig{}, err
	}
	cfg.Root = root

	// Execution mode comes from the mutually exclusive scope flags.
	allFiles, _ := cmd.Flags().GetBool("all-files")
	inputs, _ := cmd.Flags().GetStringSlice("input")
	switch {
	case allFiles && len(inputs) > 0:
		return config.RunConfig{}, fmt.Errorf("-a and -i are mutually exclusive")
	case allFiles:
		cfg.ExecutionMode = string(repo.ModeAllFiles)
	case len(inputs) > 0:
		cfg.ExecutionMode = string(repo.ModeSpecificFiles)
		cfg.FilePaths = inputs
	}

	if err := cfg.Validate(); err != nil {
		return config.RunConfig{}, err
	}
	return cfg, nil
}

// bindFlag overlays a flag onto the viper key only when the user set it, so
// config-file and env values survive unset flags.
func bindFlag(v *viper.Viper, flags *pflag.FlagSet, key, flag string) {
	if flags.Changed(flag) {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
}

// runErrorExitCode maps an engine failure to a process exit code.
func runErrorExitCode(err error) int {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "repository"), strings.Contains(msg, "git"):
		return exitcode.VCSError
	case strings.Contains(msg, "graph"):
		return exitcode.GraphError
	case strings.Contains(msg, "read"), strings.Contains(msg, "directory"):
		return exitcode.FileSystemError
	}
	return exitcode.GeneralError
}
