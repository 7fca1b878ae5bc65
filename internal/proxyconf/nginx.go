// Package proxyconf writes and enables the nginx vhost fronting the
// service. Config changes go through validate-then-reload, never a hard
// restart.
package proxyconf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/moor-sh/moor/internal/domain"
	"github.com/moor-sh/moor/internal/system"
	"github.com/moor-sh/moor/pkg/logger"
)

const vhostTemplate = `# Managed by moor. Manual edits will be overwritten.
{{- if .TLS}}
server {
    listen 80;
    server_name {{.Domain}};
    return 301 https://$host$request_uri;
}

server {
    listen 443 ssl;
    server_name {{.Domain}};

    ssl_certificate     {{.CertPath}};
    ssl_certificate_key {{.KeyPath}};
    ssl_protocols       TLSv1.2 TLSv1.3;

    location / {
        proxy_pass http://{{.BackendHost}}:{{.BackendPort}};
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;
    }
}
{{- else}}
server {
    listen 80;
    server_name {{.Domain}};

    location / {
        proxy_pass http://{{.BackendHost}}:{{.BackendPort}};
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
    }
}
{{- end}}
`

var vhostTmpl = template.Must(template.New("vhost").Parse(vhostTemplate))

// Nginx manages vhost files in the sites-available/sites-enabled layout.
type Nginx struct {
	availableDir string
	enabledDir   string
	runner       system.Runner
	services     system.ServiceManager
}

func NewNginx(availableDir, enabledDir string, runner system.Runner, services system.ServiceManager) *Nginx {
	return &Nginx{
		availableDir: availableDir,
		enabledDir:   enabledDir,
		runner:       runner,
		services:     services,
	}
}

// Render returns the vhost file content for a proxy config.
func Render(cfg domain.ProxyConfig) (string, error) {
	var buf bytes.Buffer
	if err := vhostTmpl.Execute(&buf, cfg); err != nil {
		return "", fmt.Errorf("failed to render vhost for %s: %w", cfg.Domain, err)
	}
	return buf.String(), nil
}

// Ensure writes and enables the vhost, then validates and reloads nginx.
// It reports whether anything changed; an unchanged vhost performs no
// mutation and no reload.
func (n *Nginx) Ensure(ctx context.Context, cfg domain.ProxyConfig) (bool, error) {
	content, err := Render(cfg)
	if err != nil {
		return false, err
	}

	availPath := filepath.Join(n.availableDir, cfg.Domain+".conf")
	enabledPath := filepath.Join(n.enabledDir, cfg.Domain+".conf")

	changed := false

	existing, readErr := os.ReadFile(availPath)
	if readErr != nil || string(existing) != content {
		if err := os.MkdirAll(n.availableDir, 0o755); err != nil {
			return false, fmt.Errorf("%w: %s: %v", domain.ErrConfigWriteFailed, n.availableDir, err)
		}
		if err := os.WriteFile(availPath, []byte(content), 0o644); err != nil {
			return false, fmt.Errorf("%w: %s: %v", domain.ErrConfigWriteFailed, availPath, err)
		}
		changed = true
		logger.Info("Wrote vhost config", "domain", cfg.Domain, "path", availPath)
	}

	enabled, err := n.ensureEnabled(availPath, enabledPath)
	if err != nil {
		return changed, err
	}
	changed = changed || enabled

	if changed {
		if out, err := n.runner.Run(ctx, "nginx", "-t"); err != nil {
			return changed, fmt.Errorf("nginx config validation failed: %w (%s)", err, out)
		}
		if err := n.services.Reload(ctx, "nginx"); err != nil {
			return changed, err
		}
		logger.Info("Reloaded nginx", "domain", cfg.Domain)
	}
	return changed, nil
}

// ensureEnabled points the enabled symlink at the available vhost,
// replacing a conflicting link so exactly one enabled config exists per
// domain.
func (n *Nginx) ensureEnabled(availPath, enabledPath string) (bool, error) {
	if target, err := os.Readlink(enabledPath); err == nil && target == availPath {
		return false, nil
	}

	if err := os.MkdirAll(n.enabledDir, 0o755); err != nil {
		return false, fmt.Errorf("%w: %s: %v", domain.ErrConfigWriteFailed, n.enabledDir, err)
	}
	// Remove whatever occupies the slot: an old symlink or a plain file.
	if err := os.Remove(enabledPath); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("%w: failed to replace %s: %v", domain.ErrConfigWriteFailed, enabledPath, err)
	}
	if err := os.Symlink(availPath, enabledPath); err != nil {
		return false, fmt.Errorf("%w: %s: %v", domain.ErrConfigWriteFailed, enabledPath, err)
	}
	return true, nil
}
