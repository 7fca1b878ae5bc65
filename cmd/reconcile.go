package cmd

import (
	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Bring the host to the desired state: packages, services, certificate, vhost",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fatalInit(err)
		}
		defer a.Close()

		runLock, err := a.AcquireLock()
		if err != nil {
			exitWith(a, err)
		}
		defer runLock.Release()

		a.Reporter.Info("probe", "inspecting host environment")
		status, err := a.Prober.Probe(cmd.Context())
		if err != nil {
			exitWith(a, err)
		}

		reconciler, err := a.Reconciler()
		if err != nil {
			exitWith(a, err)
		}

		result, err := reconciler.Reconcile(cmd.Context(), status, a.Config)
		if result != nil {
			for _, action := range result.Actions {
				a.Reporter.Info("reconcile", "%s: %s", action.Name, action.Detail)
			}
		}
		if err != nil {
			exitWith(a, err)
		}

		if result.Mutated() {
			a.Reporter.Success("reconcile", "host converged after %d actions (run %s)", len(result.Actions), result.RunID)
		} else {
			a.Reporter.Success("reconcile", "host already converged, nothing to do (run %s)", result.RunID)
		}
		exitWith(a, nil)
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
