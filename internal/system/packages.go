package system

import (
	"context"
	"fmt"
)

// PackageManager installs OS packages.
type PackageManager interface {
	Installed(ctx context.Context, pkg string) (bool, error)
	Install(ctx context.Context, pkg string) error
}

// AptManager drives apt-get / dpkg on Debian-family hosts.
type AptManager struct {
	Runner Runner
}

func (m *AptManager) Installed(ctx context.Context, pkg string) (bool, error) {
	out, err := m.Runner.Run(ctx, "dpkg-query", "-W", "-f=${Status}", pkg)
	if err != nil {
		// dpkg-query exits non-zero for unknown packages.
		return false, nil
	}
	return out == "install ok installed", nil
}

func (m *AptManager) Install(ctx context.Context, pkg string) error {
	if _, err := m.Runner.Run(ctx, "apt-get", "install", "-y", pkg); err != nil {
		return fmt.Errorf("failed to install %s: %w", pkg, err)
	}
	return nil
}
