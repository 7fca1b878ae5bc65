// Package probe implements the read-only environment inspection stage.
package probe

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/moor-sh/moor/internal/domain"
	"github.com/moor-sh/moor/internal/system"
	"github.com/moor-sh/moor/pkg/logger"
)

// Prerequisite names reported in EnvironmentStatus.
const (
	PrereqNginx    = "nginx"
	PrereqPostgres = "postgresql"
	PrereqSystemd  = "systemd"
)

// MinNginxVersion is the oldest reverse-proxy release the generated vhost
// template is known to work with.
const MinNginxVersion = "1.18.0"

var nginxVersionRe = regexp.MustCompile(`nginx/(\d+\.\d+\.\d+)`)

// Prober inspects the host for prerequisite binaries and services. It never
// mutates anything and never fails on absence.
type Prober struct {
	finder   system.BinaryFinder
	runner   system.Runner
	services system.ServiceManager
}

func NewProber(finder system.BinaryFinder, runner system.Runner, services system.ServiceManager) *Prober {
	return &Prober{finder: finder, runner: runner, services: services}
}

// Probe returns the state of every prerequisite. Absence is a normal
// result; only unexpected capability-layer failures produce an error.
func (p *Prober) Probe(ctx context.Context) (domain.EnvironmentStatus, error) {
	status := domain.EnvironmentStatus{
		Prereqs:        make(map[string]domain.PrereqState),
		NginxSupported: true,
	}

	status.Prereqs[PrereqNginx] = p.probeService(ctx, "nginx", "nginx")
	status.Prereqs[PrereqPostgres] = p.probeService(ctx, "psql", "postgresql")
	status.Prereqs[PrereqSystemd] = p.probeBinary("systemctl")

	if status.Prereqs[PrereqNginx] != domain.PrereqAbsent {
		version, supported, err := p.nginxVersion(ctx)
		if err != nil {
			logger.Warn("Could not determine nginx version", "error", err)
		} else {
			status.NginxVersion = version
			status.NginxSupported = supported
		}
	}

	for name, state := range status.Prereqs {
		logger.Debug("Probed prerequisite", "name", name, "state", state.String())
	}
	return status, nil
}

// probeService checks binary presence first and service activity second.
func (p *Prober) probeService(ctx context.Context, binary, unit string) domain.PrereqState {
	if _, err := p.finder.LookPath(binary); err != nil {
		return domain.PrereqAbsent
	}
	active, err := p.services.IsActive(ctx, unit)
	if err != nil || !active {
		return domain.PrereqInactive
	}
	return domain.PrereqActive
}

func (p *Prober) probeBinary(binary string) domain.PrereqState {
	if _, err := p.finder.LookPath(binary); err != nil {
		return domain.PrereqAbsent
	}
	return domain.PrereqActive
}

// nginxVersion parses `nginx -v` and compares against MinNginxVersion.
func (p *Prober) nginxVersion(ctx context.Context) (string, bool, error) {
	// nginx prints its version banner on stderr; the runner captures
	// combined output.
	out, err := p.runner.Run(ctx, "nginx", "-v")
	if err != nil && !strings.Contains(out, "nginx/") {
		return "", false, fmt.Errorf("failed to query nginx version: %w", err)
	}

	match := nginxVersionRe.FindStringSubmatch(out)
	if match == nil {
		return "", false, fmt.Errorf("unrecognized nginx version output %q", out)
	}

	version, err := semver.NewVersion(match[1])
	if err != nil {
		return "", false, fmt.Errorf("failed to parse nginx version %q: %w", match[1], err)
	}
	minimum := semver.MustParse(MinNginxVersion)
	return version.String(), !version.LessThan(minimum), nil
}
