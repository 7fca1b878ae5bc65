package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moor-sh/moor/internal/supervisor"
)

var (
	unitTLS     bool
	unitInstall bool
	unitDir     string
)

var unitCmd = &cobra.Command{
	Use:   "unit",
	Short: "Generate a systemd unit for the service listener",
	Long: `Generate a systemd unit so the init system supervises the service instead
of moor. Prints the unit by default; --install writes it into the unit
directory, reloads the daemon, and enables it.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fatalInit(err)
		}
		defer a.Close()

		launch, err := a.LaunchConfig(unitTLS, false)
		if err != nil {
			exitWith(a, err)
		}
		cfg := supervisor.UnitConfig{
			Listener: launch.Listener,
			Command:  launch.Command,
			LogPath:  launch.LogPath,
		}

		if !unitInstall {
			content, err := supervisor.RenderUnit(cfg)
			if err != nil {
				exitWith(a, err)
			}
			fmt.Print(content)
			return
		}

		installer := supervisor.NewUnitInstaller(unitDir, a.Runner, a.Services)
		path, err := installer.Install(cmd.Context(), cfg)
		if err != nil {
			exitWith(a, err)
		}
		a.Reporter.Success("supervisor", "unit %s installed and enabled at %s", supervisor.UnitName(launch.Listener), path)
		exitWith(a, nil)
	},
}

func init() {
	unitCmd.Flags().BoolVar(&unitTLS, "tls", false, "generate the unit for the TLS listener")
	unitCmd.Flags().BoolVar(&unitInstall, "install", false, "write, reload and enable the unit instead of printing it")
	unitCmd.Flags().StringVar(&unitDir, "unit-dir", "/etc/systemd/system", "systemd unit directory")
	rootCmd.AddCommand(unitCmd)
}
