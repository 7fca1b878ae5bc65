package supervisor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/moor-sh/moor/internal/domain"
	"github.com/moor-sh/moor/internal/system"
	"github.com/moor-sh/moor/pkg/logger"
)

const unitTemplate = `# Managed by moor. Manual edits will be overwritten.
[Unit]
Description=moor managed service ({{.Listener}} listener)
After=network.target postgresql.service

[Service]
Type=exec
ExecStart={{.ExecStart}}
Restart=on-failure
RestartSec=5
StandardOutput=append:{{.LogPath}}
StandardError=append:{{.LogPath}}

[Install]
WantedBy=multi-user.target
`

var unitTmpl = template.Must(template.New("unit").Parse(unitTemplate))

// UnitConfig describes the systemd unit generated for a listener. The unit
// is an alternative to supervised launches for operators who want the init
// system to own restarts.
type UnitConfig struct {
	Listener domain.ListenerName
	Command  []string
	LogPath  string
}

// UnitName returns the systemd unit name for a listener.
func UnitName(listener domain.ListenerName) string {
	return fmt.Sprintf("moor-%s.service", listener)
}

// RenderUnit returns the unit file content for a listener.
func RenderUnit(cfg UnitConfig) (string, error) {
	if len(cfg.Command) == 0 {
		return "", fmt.Errorf("%w: empty command", domain.ErrProcessLaunchFailed)
	}
	data := struct {
		Listener  domain.ListenerName
		ExecStart string
		LogPath   string
	}{
		Listener:  cfg.Listener,
		ExecStart: strings.Join(cfg.Command, " "),
		LogPath:   cfg.LogPath,
	}
	var buf bytes.Buffer
	if err := unitTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render unit for %s: %w", cfg.Listener, err)
	}
	return buf.String(), nil
}

// UnitInstaller writes listener units into the systemd unit directory and
// enables them.
type UnitInstaller struct {
	unitDir  string
	runner   system.Runner
	services system.ServiceManager
}

func NewUnitInstaller(unitDir string, runner system.Runner, services system.ServiceManager) *UnitInstaller {
	return &UnitInstaller{unitDir: unitDir, runner: runner, services: services}
}

// Install writes the unit file, reloads the systemd daemon, and enables the
// unit. It does not start it: the operator chose external supervision, so
// the init system decides when the service runs.
func (u *UnitInstaller) Install(ctx context.Context, cfg UnitConfig) (string, error) {
	content, err := RenderUnit(cfg)
	if err != nil {
		return "", err
	}

	name := UnitName(cfg.Listener)
	path := filepath.Join(u.unitDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrConfigWriteFailed, path, err)
	}

	if out, err := u.runner.Run(ctx, "systemctl", "daemon-reload"); err != nil {
		return "", fmt.Errorf("failed to reload systemd daemon: %w (%s)", err, out)
	}
	if err := u.services.Enable(ctx, name); err != nil {
		return "", err
	}

	logger.Info("Installed systemd unit", "unit", name, "path", path)
	return path, nil
}
