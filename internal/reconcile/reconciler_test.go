package reconcile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moor-sh/moor/internal/cert"
	"github.com/moor-sh/moor/internal/config"
	"github.com/moor-sh/moor/internal/db"
	"github.com/moor-sh/moor/internal/domain"
	"github.com/moor-sh/moor/internal/probe"
	"github.com/moor-sh/moor/internal/proxyconf"
	"github.com/moor-sh/moor/internal/testutils"
)

type fixture struct {
	rec      *Reconciler
	packages *testutils.FakePackageManager
	services *testutils.FakeServiceManager
	runner   *testutils.FakeRunner
	inv      *db.DB
	cfg      *config.Config
}

func newFixture(t *testing.T, installed ...string) *fixture {
	t.Helper()
	dir := t.TempDir()

	inv, err := db.Open(filepath.Join(dir, "moor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { inv.Close() })

	packages := testutils.NewFakePackageManager(installed...)
	services := testutils.NewFakeServiceManager(installed...)
	runner := testutils.NewFakeRunner()

	certs := cert.NewManager(filepath.Join(dir, "certs"), 30*24*time.Hour, cert.SelfSignedIssuer{}, domain.IssuerSelfSigned, inv)
	nginx := proxyconf.NewNginx(filepath.Join(dir, "sites-available"), filepath.Join(dir, "sites-enabled"), runner, services)

	cfg := config.Default()
	cfg.Domain = "example.test"

	return &fixture{
		rec:      New(packages, services, certs, nginx, inv),
		packages: packages,
		services: services,
		runner:   runner,
		inv:      inv,
		cfg:      cfg,
	}
}

func allActive() domain.EnvironmentStatus {
	return domain.EnvironmentStatus{
		Prereqs: map[string]domain.PrereqState{
			probe.PrereqSystemd:  domain.PrereqActive,
			probe.PrereqNginx:    domain.PrereqActive,
			probe.PrereqPostgres: domain.PrereqActive,
		},
	}
}

func actionNames(result *Result) []string {
	names := make([]string, 0, len(result.Actions))
	for _, a := range result.Actions {
		names = append(names, a.Name)
	}
	return names
}

func TestReconcile_FreshHost(t *testing.T) {
	f := newFixture(t, "nginx", "postgresql")

	result, err := f.rec.Reconcile(context.Background(), allActive(), f.cfg)
	require.NoError(t, err)

	assert.True(t, result.Mutated())
	assert.Equal(t, []string{"ensure-certificate", "write-proxy-config"}, actionNames(result))
	require.NotNil(t, result.Certificate)
	assert.FileExists(t, result.Certificate.CertPath)
	assert.Equal(t, []string{"nginx"}, f.services.Reloads)
	assert.NotEmpty(t, result.RunID)
}

func TestReconcile_ConvergedHostDoesNothing(t *testing.T) {
	f := newFixture(t, "nginx", "postgresql")
	ctx := context.Background()

	_, err := f.rec.Reconcile(ctx, allActive(), f.cfg)
	require.NoError(t, err)

	result, err := f.rec.Reconcile(ctx, allActive(), f.cfg)
	require.NoError(t, err)
	assert.False(t, result.Mutated())
	assert.Empty(t, result.Actions)
	// nginx was validated and reloaded only on the first pass.
	assert.Equal(t, 1, f.runner.CallCount("nginx -t"))
	assert.Len(t, f.services.Reloads, 1)
}

func TestReconcile_InstallsAbsentPrerequisite(t *testing.T) {
	f := newFixture(t, "postgresql")
	status := allActive()
	status.Prereqs[probe.PrereqNginx] = domain.PrereqAbsent

	result, err := f.rec.Reconcile(context.Background(), status, f.cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"nginx"}, f.packages.Installs)
	assert.Contains(t, f.services.Starts, "nginx")
	assert.Contains(t, f.services.Enables, "nginx")
	assert.Contains(t, actionNames(result), "install-package")
	assert.Contains(t, actionNames(result), "activate-service")
}

func TestReconcile_ActivatesInactivePrerequisite(t *testing.T) {
	f := newFixture(t, "nginx", "postgresql")
	status := allActive()
	status.Prereqs[probe.PrereqPostgres] = domain.PrereqInactive

	result, err := f.rec.Reconcile(context.Background(), status, f.cfg)
	require.NoError(t, err)

	assert.Empty(t, f.packages.Installs)
	assert.Contains(t, f.services.Starts, "postgresql")
	assert.Contains(t, actionNames(result), "activate-service")
}

func TestReconcile_MissingSystemdAborts(t *testing.T) {
	f := newFixture(t, "nginx", "postgresql")
	status := allActive()
	status.Prereqs[probe.PrereqSystemd] = domain.PrereqAbsent

	result, err := f.rec.Reconcile(context.Background(), status, f.cfg)
	assert.ErrorIs(t, err, domain.ErrPrerequisiteMissing)
	assert.Empty(t, result.Actions)
}

func TestReconcile_InstallFailureAbortsAndIsRecorded(t *testing.T) {
	f := newFixture(t, "postgresql")
	f.packages.FailWith = errors.New("apt-get: cannot fetch archive")
	status := allActive()
	status.Prereqs[probe.PrereqNginx] = domain.PrereqAbsent

	result, err := f.rec.Reconcile(context.Background(), status, f.cfg)
	require.ErrorIs(t, err, domain.ErrPrerequisiteMissing)

	// The failed pass still lands in the audit trail.
	runs, listErr := f.inv.LastRuns(1)
	require.NoError(t, listErr)
	require.Len(t, runs, 1)
	assert.Equal(t, result.RunID, runs[0].ID)
	assert.Contains(t, runs[0].Outcome, "failed")
}

func TestReconcile_RenewsNearExpiryWithoutTouchingProxy(t *testing.T) {
	f := newFixture(t, "nginx", "postgresql")
	ctx := context.Background()

	first, err := f.rec.Reconcile(ctx, allActive(), f.cfg)
	require.NoError(t, err)

	// Age the record so it falls inside the renewal threshold.
	aged := *first.Certificate
	aged.NotAfter = time.Now().Add(24 * time.Hour)
	require.NoError(t, f.inv.SaveCertificate(&aged))

	result, err := f.rec.Reconcile(ctx, allActive(), f.cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"ensure-certificate"}, actionNames(result))
	assert.True(t, result.Certificate.NotAfter.After(time.Now().Add(300*24*time.Hour)))
	// Cert paths are unchanged, so the vhost is not rewritten.
	assert.Len(t, f.services.Reloads, 1)
}

func TestReconcile_RecordsSuccessfulRuns(t *testing.T) {
	f := newFixture(t, "nginx", "postgresql")
	ctx := context.Background()

	first, err := f.rec.Reconcile(ctx, allActive(), f.cfg)
	require.NoError(t, err)
	second, err := f.rec.Reconcile(ctx, allActive(), f.cfg)
	require.NoError(t, err)

	runs, err := f.inv.LastRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.RunID, runs[0].ID)
	assert.Equal(t, first.RunID, runs[1].ID)
	assert.Equal(t, "success", runs[0].Outcome)
	assert.Contains(t, runs[1].Actions, "ensure-certificate")
}
