package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

func setVersionInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the moor version",
	Run: func(cmd *cobra.Command, args []string) {
		color.Green("moor %s", buildVersion)
		color.Blue("commit %s, built %s", buildCommit, buildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
