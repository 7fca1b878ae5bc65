package cmd

import (
	"github.com/spf13/cobra"

	"github.com/moor-sh/moor/internal/domain"
	"github.com/moor-sh/moor/internal/supervisor"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the service listeners (idempotent)",
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

		for _, listener := range []domain.ListenerName{domain.ListenerHTTP, domain.ListenerHTTPS} {
			result, err := a.Supervisor.Stop(cmd.Context(), listener)
			if err != nil {
				exitWith(a, err)
			}
			switch result {
			case supervisor.Stopped:
				a.Reporter.Success("supervisor", "%s listener stopped", listener)
			case supervisor.NotRunning:
				a.Reporter.Info("supervisor", "%s listener was not running", listener)
			}
		}
		exitWith(a, nil)
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
