package cmd

import (
	"errors"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/moor-sh/moor/internal/app"
	"github.com/moor-sh/moor/internal/domain"
)

var (
	startForce bool
	startTLS   bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the service listener and wait for it to become healthy",
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

		exitWith(a, runStart(cmd, a, startTLS, startForce))
	},
}

// runStart launches a listener. On an unforced port conflict in an
// interactive session the operator is offered the kill, mirroring the
// manual workflow.
func runStart(cmd *cobra.Command, a *app.App, tls, force bool) error {
	launch, err := a.LaunchConfig(tls, force)
	if err != nil {
		return err
	}

	a.Reporter.Info("supervisor", "starting %s listener on port %d", launch.Listener, launch.Port)
	proc, err := a.Supervisor.Start(cmd.Context(), launch)
	if errors.Is(err, domain.ErrPortConflict) && !force && isatty.IsTerminal(os.Stdin.Fd()) {
		confirm := false
		prompt := &survey.Confirm{
			Message: "Target port is in use. Kill the occupying process and continue?",
		}
		if askErr := survey.AskOne(prompt, &confirm); askErr == nil && confirm {
			launch.Force = true
			proc, err = a.Supervisor.Start(cmd.Context(), launch)
		}
	}
	if err != nil {
		return err
	}

	a.Reporter.Success("supervisor", "%s listener running, pid %d", launch.Listener, proc.PID)

	report := a.Verifier.Verify(cmd.Context(), a.BaseURL(tls), a.Config.HealthEndpoints)
	for _, res := range report.Results {
		if res.Reachable {
			a.Reporter.Success("verify", "%s -> %d in %s", res.Path, res.StatusCode, res.Latency)
		} else {
			a.Reporter.Warn("verify", "%s unreachable: %s", res.Path, res.Failure)
		}
	}
	if !report.Healthy() {
		return domain.ErrHealthCheckTimeout
	}
	return nil
}

func init() {
	startCmd.Flags().BoolVar(&startForce, "force", false, "terminate any process occupying the target port")
	startCmd.Flags().BoolVar(&startTLS, "tls", false, "start the TLS listener (requires a valid certificate)")
	rootCmd.AddCommand(startCmd)
}
