package cmd

import (
	"github.com/spf13/cobra"

	"github.com/moor-sh/moor/internal/domain"
	"github.com/moor-sh/moor/internal/report"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Inspect the host for prerequisite tools and services",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fatalInit(err)
		}
		defer a.Close()

		status, err := a.Prober.Probe(cmd.Context())
		if err != nil {
			exitWith(a, err)
		}

		for name, state := range status.Prereqs {
			sev := report.Success
			if state != domain.PrereqActive {
				sev = report.Warning
			}
			a.Reporter.Line(sev, "probe", "%s: %s", name, state)
		}
		if status.NginxVersion != "" {
			sev := report.Success
			if !status.NginxSupported {
				sev = report.Warning
			}
			a.Reporter.Line(sev, "probe", "nginx version %s (minimum %s)", status.NginxVersion, minNginxNote(status.NginxSupported))
		}
		// Absence is a normal probe result, not a failure.
		exitWith(a, nil)
	},
}

func minNginxNote(supported bool) string {
	if supported {
		return "satisfied"
	}
	return "NOT satisfied"
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
