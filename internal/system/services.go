package system

import (
	"context"
	"fmt"
)

// ServiceManager controls system services.
type ServiceManager interface {
	IsActive(ctx context.Context, unit string) (bool, error)
	Start(ctx context.Context, unit string) error
	Enable(ctx context.Context, unit string) error
	Reload(ctx context.Context, unit string) error
}

// SystemdManager drives systemctl.
type SystemdManager struct {
	Runner Runner
}

func (m *SystemdManager) IsActive(ctx context.Context, unit string) (bool, error) {
	out, err := m.Runner.Run(ctx, "systemctl", "is-active", unit)
	if err != nil {
		// is-active exits non-zero for inactive/failed units; the output
		// still tells us what state the unit is in.
		return false, nil
	}
	return out == "active", nil
}

func (m *SystemdManager) Start(ctx context.Context, unit string) error {
	if _, err := m.Runner.Run(ctx, "systemctl", "start", unit); err != nil {
		return fmt.Errorf("failed to start %s: %w", unit, err)
	}
	return nil
}

func (m *SystemdManager) Enable(ctx context.Context, unit string) error {
	if _, err := m.Runner.Run(ctx, "systemctl", "enable", unit); err != nil {
		return fmt.Errorf("failed to enable %s: %w", unit, err)
	}
	return nil
}

func (m *SystemdManager) Reload(ctx context.Context, unit string) error {
	if _, err := m.Runner.Run(ctx, "systemctl", "reload", unit); err != nil {
		return fmt.Errorf("failed to reload %s: %w", unit, err)
	}
	return nil
}
