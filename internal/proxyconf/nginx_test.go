package proxyconf

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moor-sh/moor/internal/domain"
	"github.com/moor-sh/moor/internal/testutils"
)

func testConfig() domain.ProxyConfig {
	return domain.ProxyConfig{
		Domain:      "example.test",
		BackendHost: "127.0.0.1",
		BackendPort: 8000,
		TLS:         true,
		CertPath:    "/etc/moor/certs/example.test/fullchain.pem",
		KeyPath:     "/etc/moor/certs/example.test/privkey.pem",
	}
}

func TestRender_TLS(t *testing.T) {
	out, err := Render(testConfig())
	require.NoError(t, err)

	assert.Contains(t, out, "listen 443 ssl;")
	assert.Contains(t, out, "return 301 https://$host$request_uri;")
	assert.Contains(t, out, "ssl_certificate     /etc/moor/certs/example.test/fullchain.pem;")
	assert.Contains(t, out, "proxy_pass http://127.0.0.1:8000;")
	assert.Contains(t, out, "proxy_set_header X-Forwarded-Proto $scheme;")
}

func TestRender_Plain(t *testing.T) {
	cfg := testConfig()
	cfg.TLS = false

	out, err := Render(cfg)
	require.NoError(t, err)

	assert.Contains(t, out, "listen 80;")
	assert.NotContains(t, out, "ssl_certificate")
	assert.NotContains(t, out, "return 301")
}

func TestEnsure_WritesEnablesAndReloads(t *testing.T) {
	dir := t.TempDir()
	runner := testutils.NewFakeRunner()
	services := testutils.NewFakeServiceManager("nginx")
	n := NewNginx(filepath.Join(dir, "sites-available"), filepath.Join(dir, "sites-enabled"), runner, services)

	changed, err := n.Ensure(context.Background(), testConfig())
	require.NoError(t, err)
	assert.True(t, changed)

	availPath := filepath.Join(dir, "sites-available", "example.test.conf")
	content, err := os.ReadFile(availPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "server_name example.test;")

	target, err := os.Readlink(filepath.Join(dir, "sites-enabled", "example.test.conf"))
	require.NoError(t, err)
	assert.Equal(t, availPath, target)

	assert.Equal(t, 1, runner.CallCount("nginx -t"))
	assert.Equal(t, []string{"nginx"}, services.Reloads)
}

func TestEnsure_UnchangedIsNoop(t *testing.T) {
	dir := t.TempDir()
	runner := testutils.NewFakeRunner()
	services := testutils.NewFakeServiceManager("nginx")
	n := NewNginx(filepath.Join(dir, "sites-available"), filepath.Join(dir, "sites-enabled"), runner, services)

	_, err := n.Ensure(context.Background(), testConfig())
	require.NoError(t, err)

	changed, err := n.Ensure(context.Background(), testConfig())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, runner.CallCount("nginx -t"))
	assert.Len(t, services.Reloads, 1)
}

func TestEnsure_ReplacesStaleSymlink(t *testing.T) {
	dir := t.TempDir()
	enabledDir := filepath.Join(dir, "sites-enabled")
	require.NoError(t, os.MkdirAll(enabledDir, 0o755))
	// A leftover link from a previous layout occupies the slot.
	require.NoError(t, os.Symlink("/etc/nginx/sites-available/old.conf", filepath.Join(enabledDir, "example.test.conf")))

	runner := testutils.NewFakeRunner()
	services := testutils.NewFakeServiceManager("nginx")
	n := NewNginx(filepath.Join(dir, "sites-available"), enabledDir, runner, services)

	changed, err := n.Ensure(context.Background(), testConfig())
	require.NoError(t, err)
	assert.True(t, changed)

	target, err := os.Readlink(filepath.Join(enabledDir, "example.test.conf"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sites-available", "example.test.conf"), target)
}

func TestEnsure_ValidationFailureSkipsReload(t *testing.T) {
	dir := t.TempDir()
	runner := testutils.NewFakeRunner()
	runner.Script("nginx -t", `nginx: [emerg] unknown directive "bogus"`, errors.New("exit status 1"))
	services := testutils.NewFakeServiceManager("nginx")
	n := NewNginx(filepath.Join(dir, "sites-available"), filepath.Join(dir, "sites-enabled"), runner, services)

	_, err := n.Ensure(context.Background(), testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Empty(t, services.Reloads)
}

func TestEnsure_UnwritableDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	dir := t.TempDir()
	availDir := filepath.Join(dir, "sites-available")
	require.NoError(t, os.MkdirAll(availDir, 0o555))

	runner := testutils.NewFakeRunner()
	services := testutils.NewFakeServiceManager("nginx")
	n := NewNginx(availDir, filepath.Join(dir, "sites-enabled"), runner, services)

	_, err := n.Ensure(context.Background(), testConfig())
	assert.ErrorIs(t, err, domain.ErrConfigWriteFailed)
}
