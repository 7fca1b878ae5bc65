// Package reconcile brings the observed host state into alignment with the
// desired configuration. Every action is idempotent: a second pass over a
// converged host performs zero mutations.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/moor-sh/moor/internal/cert"
	"github.com/moor-sh/moor/internal/config"
	"github.com/moor-sh/moor/internal/db"
	"github.com/moor-sh/moor/internal/domain"
	"github.com/moor-sh/moor/internal/probe"
	"github.com/moor-sh/moor/internal/proxyconf"
	"github.com/moor-sh/moor/internal/system"
	"github.com/moor-sh/moor/pkg/logger"
)

// prereqPackages lists probed prerequisite names with the package and
// service unit that satisfy them, in reconciliation order.
var prereqPackages = []struct {
	name string
	pkg  string
	unit string
}{
	{name: probe.PrereqNginx, pkg: "nginx", unit: "nginx"},
	{name: probe.PrereqPostgres, pkg: "postgresql", unit: "postgresql"},
}

// Action is one mutating step a reconcile pass performed.
type Action struct {
	Name   string
	Detail string
}

// Result reports what a reconcile pass did.
type Result struct {
	RunID       string
	Actions     []Action
	Certificate *domain.CertificateRecord
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Mutated reports whether the pass performed any mutating action.
func (r *Result) Mutated() bool {
	return len(r.Actions) > 0
}

// Reconciler performs the minimal actions to reach the desired state.
type Reconciler struct {
	packages system.PackageManager
	services system.ServiceManager
	certs    *cert.Manager
	nginx    *proxyconf.Nginx
	inv      *db.DB
	now      func() time.Time
}

func New(packages system.PackageManager, services system.ServiceManager, certs *cert.Manager, nginx *proxyconf.Nginx, inv *db.DB) *Reconciler {
	return &Reconciler{
		packages: packages,
		services: services,
		certs:    certs,
		nginx:    nginx,
		inv:      inv,
		now:      time.Now,
	}
}

// Reconcile drives every prerequisite to active, ensures the certificate,
// and ensures the reverse-proxy vhost. The first failing action aborts the
// pass; actions already completed are reported, never rolled back.
func (r *Reconciler) Reconcile(ctx context.Context, status domain.EnvironmentStatus, desired *config.Config) (*Result, error) {
	result := &Result{
		RunID:     uuid.NewString(),
		StartedAt: r.now(),
	}
	logger.Info("Starting reconciliation", "run_id", result.RunID, "domain", desired.Domain)

	err := r.pass(ctx, status, desired, result)

	result.FinishedAt = r.now()
	outcome := "success"
	if err != nil {
		outcome = fmt.Sprintf("failed: %v", err)
	}
	if recErr := r.recordRun(result, outcome); recErr != nil {
		logger.Error("Failed to record reconcile run", "error", recErr)
	}

	if err != nil {
		return result, err
	}
	logger.Info("Reconciliation complete", "run_id", result.RunID, "actions", len(result.Actions))
	return result, nil
}

func (r *Reconciler) pass(ctx context.Context, status domain.EnvironmentStatus, desired *config.Config, result *Result) error {
	if state, ok := status.Prereqs[probe.PrereqSystemd]; ok && state == domain.PrereqAbsent {
		// The process manager cannot be package-installed into an
		// arbitrary host; surface it instead of guessing.
		return fmt.Errorf("%w: systemd", domain.ErrPrerequisiteMissing)
	}

	for _, target := range prereqPackages {
		state, ok := status.Prereqs[target.name]
		if !ok {
			continue
		}
		if err := r.ensurePrereq(ctx, target.name, target.pkg, target.unit, state, result); err != nil {
			return err
		}
	}

	certRec, mutated, err := r.certs.Ensure(ctx, desired.Domain)
	if err != nil {
		return err
	}
	result.Certificate = certRec
	if mutated {
		result.Actions = append(result.Actions, Action{
			Name:   "ensure-certificate",
			Detail: fmt.Sprintf("%s via %s, expires %s", desired.Domain, certRec.Issuer, certRec.NotAfter.Format(time.RFC3339)),
		})
	}

	proxyCfg := domain.ProxyConfig{
		Domain:      desired.Domain,
		BackendHost: "127.0.0.1",
		BackendPort: desired.HTTPPort,
		TLS:         true,
		CertPath:    certRec.CertPath,
		KeyPath:     certRec.KeyPath,
		Enabled:     true,
	}
	changed, err := r.nginx.Ensure(ctx, proxyCfg)
	if err != nil {
		return err
	}
	if changed {
		result.Actions = append(result.Actions, Action{
			Name:   "write-proxy-config",
			Detail: fmt.Sprintf("%s -> 127.0.0.1:%d", desired.Domain, desired.HTTPPort),
		})
	}
	return nil
}

// ensurePrereq performs the minimal action for one prerequisite: install
// when absent, then start and enable when not active.
func (r *Reconciler) ensurePrereq(ctx context.Context, name, pkg, unit string, state domain.PrereqState, result *Result) error {
	if state == domain.PrereqActive {
		return nil
	}

	if state == domain.PrereqAbsent {
		logger.Info("Installing missing prerequisite", "name", name, "package", pkg)
		if err := r.packages.Install(ctx, pkg); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrPrerequisiteMissing, name, err)
		}
		result.Actions = append(result.Actions, Action{Name: "install-package", Detail: pkg})
	}

	logger.Info("Starting and enabling service", "unit", unit)
	if err := r.services.Start(ctx, unit); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrPrerequisiteMissing, name, err)
	}
	if err := r.services.Enable(ctx, unit); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrPrerequisiteMissing, name, err)
	}
	result.Actions = append(result.Actions, Action{Name: "activate-service", Detail: unit})
	return nil
}

func (r *Reconciler) recordRun(result *Result, outcome string) error {
	details := make([]string, 0, len(result.Actions))
	for _, action := range result.Actions {
		details = append(details, fmt.Sprintf("%s(%s)", action.Name, action.Detail))
	}
	return r.inv.RecordRun(&db.Run{
		ID:         result.RunID,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Outcome:    outcome,
		Actions:    strings.Join(details, "; "),
	})
}
