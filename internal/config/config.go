// Package config resolves the desired deployment configuration from
// defaults, an optional moor.yml file and MOOR_* environment variables,
// in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the desired state a reconciliation run drives the host toward.
type Config struct {
	Domain    string `yaml:"domain"`
	BindHost  string `yaml:"bind_host"`
	HTTPPort  int    `yaml:"http_port"`
	TLSPort   int    `yaml:"tls_port"`
	Workers   int    `yaml:"workers"`
	Env       string `yaml:"env"`
	AcmeEmail string `yaml:"acme_email"`
	// AcmeStaging targets the CA's staging directory, for rehearsing
	// issuance without burning rate limits.
	AcmeStaging bool `yaml:"acme_staging"`

	// ServerCommand launches the service itself. The process is an opaque
	// collaborator; only its lifecycle and HTTP reachability matter here.
	ServerCommand []string `yaml:"server_command"`

	StateDir string `yaml:"state_dir"`
	LogDir   string `yaml:"log_dir"`
	CertDir  string `yaml:"cert_dir"`
	DataDir  string `yaml:"data_dir"`

	NginxAvailableDir string `yaml:"nginx_available_dir"`
	NginxEnabledDir   string `yaml:"nginx_enabled_dir"`

	HealthEndpoints  []string      `yaml:"health_endpoints"`
	HealthTimeout    time.Duration `yaml:"health_timeout"`
	HealthRetries    int           `yaml:"health_retries"`
	HealthBackoff    time.Duration `yaml:"health_backoff"`
	RenewalThreshold time.Duration `yaml:"renewal_threshold"`
	StopGracePeriod  time.Duration `yaml:"stop_grace_period"`
}

// Default returns the built-in configuration. Ports and endpoints follow
// the service's conventions: plaintext on 8000, TLS on 8443, liveness at
// /health.
func Default() *Config {
	return &Config{
		Domain:            "localhost",
		BindHost:          "0.0.0.0",
		HTTPPort:          8000,
		TLSPort:           8443,
		Workers:           4,
		Env:               EnvDevelopment,
		ServerCommand:     []string{"uvicorn", "app.main:app"},
		StateDir:          "/var/lib/moor",
		LogDir:            "/var/log/moor",
		CertDir:           "/etc/moor/certs",
		DataDir:           "/var/lib/moor/data",
		NginxAvailableDir: "/etc/nginx/sites-available",
		NginxEnabledDir:   "/etc/nginx/sites-enabled",
		HealthEndpoints:   []string{"/health"},
		HealthTimeout:     5 * time.Second,
		HealthRetries:     10,
		HealthBackoff:     500 * time.Millisecond,
		RenewalThreshold:  30 * 24 * time.Hour,
		StopGracePeriod:   10 * time.Second,
	}
}

// Load resolves the configuration: defaults, then the YAML file at path if
// it exists, then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.mergeEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(content, c); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() {
	setString(&c.Domain, "MOOR_DOMAIN")
	setString(&c.BindHost, "MOOR_BIND_HOST")
	setInt(&c.HTTPPort, "MOOR_HTTP_PORT")
	setInt(&c.TLSPort, "MOOR_TLS_PORT")
	setInt(&c.Workers, "MOOR_WORKERS")
	setString(&c.Env, "MOOR_ENV")
	setString(&c.AcmeEmail, "MOOR_ACME_EMAIL")
	setBool(&c.AcmeStaging, "MOOR_ACME_STAGING")
	setString(&c.StateDir, "MOOR_STATE_DIR")
	setString(&c.LogDir, "MOOR_LOG_DIR")
	setString(&c.CertDir, "MOOR_CERT_DIR")
	setString(&c.DataDir, "MOOR_DATA_DIR")
	setString(&c.NginxAvailableDir, "MOOR_NGINX_AVAILABLE_DIR")
	setString(&c.NginxEnabledDir, "MOOR_NGINX_ENABLED_DIR")
}

// Validate checks the resolved configuration for values that would make a
// run misbehave rather than fail cleanly.
func (c *Config) Validate() error {
	if c.Domain == "" {
		return fmt.Errorf("domain must not be empty")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port %d", c.HTTPPort)
	}
	if c.TLSPort <= 0 || c.TLSPort > 65535 {
		return fmt.Errorf("invalid tls port %d", c.TLSPort)
	}
	if c.HTTPPort == c.TLSPort {
		return fmt.Errorf("http and tls ports must differ, both are %d", c.HTTPPort)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		return fmt.Errorf("unknown environment %q", c.Env)
	}
	if c.Env == EnvProduction && c.AcmeEmail == "" {
		return fmt.Errorf("acme_email is required in production")
	}
	if len(c.ServerCommand) == 0 {
		return fmt.Errorf("server_command must not be empty")
	}
	if len(c.HealthEndpoints) == 0 {
		return fmt.Errorf("at least one health endpoint is required")
	}
	return nil
}

// IsDevelopment reports whether the deployment targets a local environment
// where self-signed certificates are acceptable.
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// ServiceLogPath returns the log file for a listener's process output.
func (c *Config) ServiceLogPath(listener string) string {
	return filepath.Join(c.LogDir, fmt.Sprintf("service-%s.log", listener))
}

// LockPath returns the advisory lock file guarding mutating runs.
func (c *Config) LockPath() string {
	return filepath.Join(c.StateDir, "moor.lock")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
