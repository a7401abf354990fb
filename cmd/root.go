// Package cmd wires the packlint command tree.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/contentops/packlint/pkg/exitcode"
	"github.com/contentops/packlint/pkg/logger"
)

// newRootCommand creates a fresh root command instance so tests can build
// isolated command trees.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packlint",
		Short: "Validation engine for platform content repositories",
		Long: `Packlint validates the packs of a platform content repository: file
structure, entity contracts, cross-item references and backward compatibility.

Examples:
   packlint validate                       # validate the files changed vs the baseline
   packlint validate -a                    # validate the whole repository
   packlint validate -i Packs/Foo/pack_metadata.json
   packlint validate --fix                 # apply auto-fixes, then re-validate
   packlint validate --list-codes          # print the error catalog`,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			initializeLogger(cmd)
		},
	}

	cmd.PersistentFlags().String("log-level", "info", "Set log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().Bool("json", false, "Output logs in JSON format")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	cmd.Version = binaryVersion
	cmd.SetVersionTemplate("packlint {{.Version}}\n")

	return cmd
}

func registerSubcommands(cmd *cobra.Command) {
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(versionCmd)
}

// rootCmd is the production command tree.
var rootCmd = newRootCommand()

// Execute runs the command tree. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command execution failed", logger.Err(err))
		os.Exit(exitcode.GeneralError)
	}
}

func init() {
	registerSubcommands(rootCmd)
}

func initializeLogger(cmd *cobra.Command) {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")

	logger.Initialize(logger.Config{
		Level:     logger.ParseLevel(logLevelStr),
		UseColor:  !noColor,
		JSON:      jsonLogs,
		Component: "packlint",
	})
}
