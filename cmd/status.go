package cmd

import (
	"github.com/spf13/cobra"

	"github.com/moor-sh/moor/internal/domain"
	"github.com/moor-sh/moor/internal/report"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report listener state, host prerequisites and recent reconcile runs",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fatalInit(err)
		}
		defer a.Close()

		var failure error
		for _, listener := range []domain.ListenerName{domain.ListenerHTTP, domain.ListenerHTTPS} {
			status, err := a.Supervisor.Status(cmd.Context(), listener)
			if err != nil {
				exitWith(a, err)
			}
			switch status.State {
			case domain.StateRunning:
				a.Reporter.Success("supervisor", "%s listener running, pid %d, port %d", listener, status.Process.PID, status.Process.Port)
			case domain.StateStale:
				a.Reporter.Warn("supervisor", "%s listener stale: recorded pid %d is gone", listener, status.Process.PID)
				failure = domain.ErrStaleState
			default:
				a.Reporter.Info("supervisor", "%s listener not running", listener)
			}
		}

		env, err := a.Prober.Probe(cmd.Context())
		if err != nil {
			exitWith(a, err)
		}
		for name, state := range env.Prereqs {
			sev := report.Success
			if state != domain.PrereqActive {
				sev = report.Warning
			}
			a.Reporter.Line(sev, "probe", "%s: %s", name, state)
		}

		runs, err := a.Inv.LastRuns(3)
		if err != nil {
			exitWith(a, err)
		}
		for _, run := range runs {
			a.Reporter.Info("history", "run %s at %s: %s", run.ID, run.StartedAt.Format("2006-01-02 15:04:05"), run.Outcome)
		}

		exitWith(a, failure)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
