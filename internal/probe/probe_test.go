package probe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moor-sh/moor/internal/domain"
	"github.com/moor-sh/moor/internal/testutils"
)

func TestProbe_AllActive(t *testing.T) {
	finder := &testutils.FakeFinder{Present: map[string]string{
		"nginx":     "/usr/sbin/nginx",
		"psql":      "/usr/bin/psql",
		"systemctl": "/usr/bin/systemctl",
	}}
	runner := testutils.NewFakeRunner()
	runner.Script("nginx -v", "nginx version: nginx/1.24.0", nil)
	services := testutils.NewFakeServiceManager("nginx", "postgresql")

	prober := NewProber(finder, runner, services)
	status, err := prober.Probe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.PrereqActive, status.Prereqs[PrereqNginx])
	assert.Equal(t, domain.PrereqActive, status.Prereqs[PrereqPostgres])
	assert.Equal(t, domain.PrereqActive, status.Prereqs[PrereqSystemd])
	assert.True(t, status.Converged())
	assert.Equal(t, "1.24.0", status.NginxVersion)
	assert.True(t, status.NginxSupported)
}

func TestProbe_AbsentAndInactive(t *testing.T) {
	// psql installed but the service is down; nginx not installed at all.
	finder := &testutils.FakeFinder{Present: map[string]string{
		"psql":      "/usr/bin/psql",
		"systemctl": "/usr/bin/systemctl",
	}}
	runner := testutils.NewFakeRunner()
	services := testutils.NewFakeServiceManager()

	prober := NewProber(finder, runner, services)
	status, err := prober.Probe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.PrereqAbsent, status.Prereqs[PrereqNginx])
	assert.Equal(t, domain.PrereqInactive, status.Prereqs[PrereqPostgres])
	assert.False(t, status.Converged())
	// No version probe against an absent nginx.
	assert.Zero(t, runner.CallCount("nginx -v"))
}

func TestProbe_UnsupportedNginxVersion(t *testing.T) {
	finder := &testutils.FakeFinder{Present: map[string]string{
		"nginx":     "/usr/sbin/nginx",
		"psql":      "/usr/bin/psql",
		"systemctl": "/usr/bin/systemctl",
	}}
	runner := testutils.NewFakeRunner()
	runner.Script("nginx -v", "nginx version: nginx/1.14.2", nil)
	services := testutils.NewFakeServiceManager("nginx", "postgresql")

	prober := NewProber(finder, runner, services)
	status, err := prober.Probe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "1.14.2", status.NginxVersion)
	assert.False(t, status.NginxSupported)
}

func TestProbe_IsReadOnly(t *testing.T) {
	finder := &testutils.FakeFinder{Present: map[string]string{}}
	runner := testutils.NewFakeRunner()
	services := testutils.NewFakeServiceManager()

	prober := NewProber(finder, runner, services)
	_, err := prober.Probe(context.Background())
	require.NoError(t, err)

	assert.Empty(t, services.Starts)
	assert.Empty(t, services.Enables)
	assert.Empty(t, services.Reloads)
}
