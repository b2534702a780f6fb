package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/localmind/localmind/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the localmind version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("localmind %s (commit %s, built %s)\n", version.Version, version.Commit, version.BuildDate)
	},
}
