package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// binaryVersion is stamped at build time via -ldflags.
var binaryVersion = "0.1.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show packlint version information",
	RunE:  runVersion,
}

func init() {
	versionCmd.Flags().Bool("json", false, "Output version information in JSON format")
}

func runVersion(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]string{
			"version":   binaryVersion,
			"goVersion": runtime.Version(),
			"platform":  runtime.GOOS + "/" + runtime.GOARCH,
		})
	}
	fmt.Fprintf(out, "packlint %s (%s, %s/%s)\n", binaryVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return nil
}
