// Package cmd is the CLI surface: one subcommand per pipeline operation,
// each exiting with a failure-class-specific code.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/joho/godotenv/autoload"

	"github.com/moor-sh/moor/internal/app"
	"github.com/moor-sh/moor/internal/domain"
	"github.com/moor-sh/moor/pkg/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "moor",
	Short: "Moor - single-node deployment state reconciler",
	Long: `Moor brings a single-node host into a desired runtime state for an HTTP
service: prerequisites installed and active, TLS certificate present,
reverse-proxy vhost enabled, and the service process running and healthy.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "moor.yml", "path to the desired-state config file")
}

// newApp builds the wired application for a command invocation.
func newApp() (*app.App, error) {
	logger.GetLogger().ConfigureFromEnv()
	return app.New(cfgFile)
}

// exitWith reports the error through the app reporter and exits with its
// failure-class code.
func exitWith(a *app.App, err error) {
	code := a.Reporter.Summary(err)
	a.Close()
	os.Exit(code)
}

// fatalInit handles failures before the app (and its reporter) exists.
func fatalInit(err error) {
	fmt.Fprintln(os.Stderr, "moor:", err)
	os.Exit(domain.ExitCode(err))
}

// ExecuteCLI is the process entrypoint.
func ExecuteCLI(build, commit, date string) {
	setVersionInfo(build, commit, date)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(domain.ExitCode(err))
	}
}
