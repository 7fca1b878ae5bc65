package cmd

import (
	"github.com/spf13/cobra"
)

var (
	restartForce bool
	restartTLS   bool
)

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the service listener, tolerating a stopped service",
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

		launch, err := a.LaunchConfig(restartTLS, restartForce)
		if err != nil {
			exitWith(a, err)
		}

		if _, err := a.Supervisor.Stop(cmd.Context(), launch.Listener); err != nil {
			exitWith(a, err)
		}
		exitWith(a, runStart(cmd, a, restartTLS, restartForce))
	},
}

func init() {
	restartCmd.Flags().BoolVar(&restartForce, "force", false, "terminate any process occupying the target port")
	restartCmd.Flags().BoolVar(&restartTLS, "tls", false, "restart the TLS listener")
	rootCmd.AddCommand(restartCmd)
}
