// Package app wires the pipeline stages together for the CLI commands.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/moor-sh/moor/internal/cert"
	"github.com/moor-sh/moor/internal/config"
	"github.com/moor-sh/moor/internal/db"
	"github.com/moor-sh/moor/internal/domain"
	"github.com/moor-sh/moor/internal/health"
	"github.com/moor-sh/moor/internal/lock"
	"github.com/moor-sh/moor/internal/probe"
	"github.com/moor-sh/moor/internal/proxyconf"
	"github.com/moor-sh/moor/internal/reconcile"
	"github.com/moor-sh/moor/internal/report"
	"github.com/moor-sh/moor/internal/state"
	"github.com/moor-sh/moor/internal/supervisor"
	"github.com/moor-sh/moor/internal/system"
)

// App holds the wired pipeline for one CLI invocation.
type App struct {
	Config   *config.Config
	Reporter *report.Reporter

	Store    state.Store
	Inv      *db.DB
	Runner   system.Runner
	Finder   system.BinaryFinder
	Packages system.PackageManager
	Services system.ServiceManager

	Prober     *probe.Prober
	Verifier   *health.Verifier
	Supervisor *supervisor.Supervisor
}

// New loads configuration and opens the on-host stores.
func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	store, err := state.NewStarskeyStore(filepath.Join(cfg.StateDir, "listeners"))
	if err != nil {
		return nil, err
	}

	inv, err := db.Open(filepath.Join(cfg.DataDir, "moor.db"))
	if err != nil {
		store.Close()
		return nil, err
	}

	runner := system.ExecRunner{}
	finder := system.ExecFinder{}
	services := &system.SystemdManager{Runner: runner}

	verifier := health.NewVerifier(health.Options{
		Timeout: cfg.HealthTimeout,
		Retries: cfg.HealthRetries,
		Backoff: cfg.HealthBackoff,
		// Development hosts run on self-signed material; production
		// certificates must verify.
		InsecureTLS: cfg.IsDevelopment(),
	})

	return &App{
		Config:     cfg,
		Reporter:   report.New(os.Stdout),
		Store:      store,
		Inv:        inv,
		Runner:     runner,
		Finder:     finder,
		Packages:   &system.AptManager{Runner: runner},
		Services:   services,
		Prober:     probe.NewProber(finder, runner, services),
		Verifier:   verifier,
		Supervisor: supervisor.New(store, runner, verifier, cfg.StopGracePeriod, cfg.ServerCommand[0]),
	}, nil
}

// Close releases the on-host stores.
func (a *App) Close() {
	if a.Store != nil {
		a.Store.Close()
	}
	if a.Inv != nil {
		a.Inv.Close()
	}
}

// AcquireLock takes the exclusive run lock guarding mutating commands.
// The caller releases it when the run finishes.
func (a *App) AcquireLock() (*lock.RunLock, error) {
	runLock, err := lock.New(a.Config.LockPath())
	if err != nil {
		return nil, err
	}
	if err := runLock.Acquire(); err != nil {
		return nil, err
	}
	return runLock, nil
}

// issuerTag names the issuer the current environment would use.
func (a *App) issuerTag() domain.CertIssuer {
	if a.Config.IsDevelopment() {
		return domain.IssuerSelfSigned
	}
	return domain.IssuerACME
}

// CertReader resolves existing certificate records without the ability to
// issue. Used by read paths like start's preflight.
func (a *App) CertReader() *cert.Manager {
	return cert.NewManager(a.Config.CertDir, a.Config.RenewalThreshold, nil, a.issuerTag(), a.Inv)
}

// CertManager builds the full certificate manager, including the issuer.
// The ACME issuer registers with the CA on construction, so only mutating
// paths call this.
func (a *App) CertManager() (*cert.Manager, error) {
	if a.Config.IsDevelopment() {
		return cert.NewManager(a.Config.CertDir, a.Config.RenewalThreshold, cert.SelfSignedIssuer{}, domain.IssuerSelfSigned, a.Inv), nil
	}

	issuer, err := cert.NewACMEIssuer(cert.ACMEConfig{
		Email:             a.Config.AcmeEmail,
		Staging:           a.Config.AcmeStaging,
		HTTPChallengePort: "80",
	}, a.Inv)
	if err != nil {
		return nil, err
	}
	return cert.NewManager(a.Config.CertDir, a.Config.RenewalThreshold, issuer, domain.IssuerACME, a.Inv), nil
}

// Reconciler wires the reconcile stage.
func (a *App) Reconciler() (*reconcile.Reconciler, error) {
	certs, err := a.CertManager()
	if err != nil {
		return nil, err
	}
	nginx := proxyconf.NewNginx(a.Config.NginxAvailableDir, a.Config.NginxEnabledDir, a.Runner, a.Services)
	return reconcile.New(a.Packages, a.Services, certs, nginx, a.Inv), nil
}

// LaunchConfig builds the supervisor launch description for a listener.
func (a *App) LaunchConfig(tls, force bool) (supervisor.LaunchConfig, error) {
	listener := domain.ListenerHTTP
	port := a.Config.HTTPPort
	var certRec *domain.CertificateRecord

	if tls {
		listener = domain.ListenerHTTPS
		port = a.Config.TLSPort
		rec, err := a.CertReader().Current(a.Config.Domain)
		if err != nil {
			return supervisor.LaunchConfig{}, err
		}
		certRec = rec
	}

	return supervisor.LaunchConfig{
		Listener:         listener,
		Command:          a.serverCommand(port, certRec),
		Host:             a.Config.BindHost,
		Port:             port,
		TLS:              tls,
		LogPath:          a.Config.ServiceLogPath(string(listener)),
		Cert:             certRec,
		Force:            force,
		LivenessEndpoint: a.Config.HealthEndpoints[0],
	}, nil
}

// serverCommand assembles the service launch argv from the configured base
// command.
func (a *App) serverCommand(port int, certRec *domain.CertificateRecord) []string {
	args := append([]string{}, a.Config.ServerCommand...)
	args = append(args,
		"--host", a.Config.BindHost,
		"--port", strconv.Itoa(port),
		"--workers", strconv.Itoa(a.Config.Workers),
	)
	if certRec != nil {
		args = append(args,
			"--ssl-keyfile", certRec.KeyPath,
			"--ssl-certfile", certRec.CertPath,
		)
	}
	return args
}

// BaseURL returns the probe target for a listener.
func (a *App) BaseURL(tls bool) string {
	if tls {
		return fmt.Sprintf("https://127.0.0.1:%d", a.Config.TLSPort)
	}
	return fmt.Sprintf("http://127.0.0.1:%d", a.Config.HTTPPort)
}
