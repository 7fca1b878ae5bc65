package cmd

import (
	"github.com/spf13/cobra"

	"github.com/moor-sh/moor/internal/domain"
)

var verifyTLS bool

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Probe the service health endpoints and report reachability",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fatalInit(err)
		}
		defer a.Close()

		result := a.Verifier.Verify(cmd.Context(), a.BaseURL(verifyTLS), a.Config.HealthEndpoints)
		for _, res := range result.Results {
			if res.Reachable {
				a.Reporter.Success("verify", "%s -> %d in %s", res.Path, res.StatusCode, res.Latency)
			} else {
				a.Reporter.Error("verify", "%s unreachable: %s (%s)", res.Path, res.Failure, res.Err)
			}
		}
		if !result.Healthy() {
			exitWith(a, domain.ErrHealthCheckTimeout)
		}
		exitWith(a, nil)
	},
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyTLS, "tls", false, "probe the TLS listener")
	rootCmd.AddCommand(verifyCmd)
}
