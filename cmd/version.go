package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/conneroisu/roster/internal/version"
	"github.com/spf13/cobra"
)

var (
	versionFormat   string
	versionShort    bool
	versionDetailed bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for roster.

Examples:
  roster version               # Version, commit and platform
  roster version --short       # Version only
  roster version --detailed    # Every build fact
  roster version --format json # Output as JSON`,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "Show detailed version information")
}

func runVersionCommand(cmd *cobra.Command, _ []string) error {
	if err := validateFormat(versionFormat, "text", "json"); err != nil {
		return err
	}
	return writeVersion(cmd.OutOrStdout(), versionFormat, versionShort, versionDetailed)
}

func writeVersion(w io.Writer, format string, short, detailed bool) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(version.GetBuildInfo())
	}

	switch {
	case short:
		_, err := fmt.Fprintln(w, version.GetShortVersion())
		return err
	case detailed:
		_, err := fmt.Fprintln(w, version.GetDetailedVersion())
		return err
	}

	info := version.GetBuildInfo()
	_, err := fmt.Fprintf(w, "roster %s\nGo: %s\nPlatform: %s\n",
		version.GetShortVersion(), info.GoVersion, info.Platform)
	return err
}
