// Package supervisor owns the service process lifecycle: launch detached,
// track via the state store, stop with signal escalation, and report
// liveness derived from the OS process table.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/moor-sh/moor/internal/domain"
	"github.com/moor-sh/moor/internal/health"
	"github.com/moor-sh/moor/internal/state"
	"github.com/moor-sh/moor/internal/system"
	"github.com/moor-sh/moor/pkg/logger"
)

// LaunchConfig describes a single listener launch.
type LaunchConfig struct {
	Listener domain.ListenerName
	Command  []string
	Host     string
	Port     int
	TLS      bool
	LogPath  string
	// Cert must be present and unexpired when TLS is set.
	Cert *domain.CertificateRecord
	// Force terminates whatever occupies the target port before starting.
	Force bool
	// LivenessEndpoint is probed after launch; the start only succeeds
	// once it answers 2xx.
	LivenessEndpoint string
}

// StopResult tells an idempotent stop apart from one that did work.
type StopResult int

const (
	Stopped StopResult = iota
	NotRunning
)

// Supervisor manages the service process for each listener.
type Supervisor struct {
	store    state.Store
	runner   system.Runner
	verifier *health.Verifier
	grace    time.Duration
	// pattern identifies service processes in a table scan when no state
	// record exists.
	pattern string
	now     func() time.Time
}

func New(store state.Store, runner system.Runner, verifier *health.Verifier, grace time.Duration, pattern string) *Supervisor {
	if grace <= 0 {
		grace = 10 * time.Second
	}
	return &Supervisor{
		store:    store,
		runner:   runner,
		verifier: verifier,
		grace:    grace,
		pattern:  pattern,
		now:      time.Now,
	}
}

// Start launches the listener process. The port must be free (or forcibly
// freed), the certificate valid for TLS listeners, and the liveness
// endpoint must answer before Start reports success. A launch whose health
// retries are exhausted is terminated again so no unhealthy instance leaks.
func (s *Supervisor) Start(ctx context.Context, cfg LaunchConfig) (*domain.ServiceProcess, error) {
	status, err := s.Status(ctx, cfg.Listener)
	if err != nil {
		return nil, err
	}
	switch status.State {
	case domain.StateRunning:
		return nil, fmt.Errorf("%w: pid %d on port %d", domain.ErrAlreadyRunning, status.Process.PID, status.Process.Port)
	case domain.StateStale:
		logger.Warn("Clearing stale state record", "listener", cfg.Listener, "pid", status.Process.PID)
		if err := s.store.Delete(cfg.Listener); err != nil {
			return nil, err
		}
	}

	if err := s.ensurePortFree(ctx, cfg.Port, cfg.Force); err != nil {
		return nil, err
	}

	if cfg.TLS {
		if err := checkCert(cfg.Cert, s.now()); err != nil {
			return nil, err
		}
	}

	proc, cmd, err := s.launch(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(proc); err != nil {
		s.terminate(cmd.Process.Pid)
		return nil, err
	}

	scheme := "http"
	if cfg.TLS {
		scheme = "https"
	}
	baseURL := fmt.Sprintf("%s://127.0.0.1:%d", scheme, cfg.Port)
	if err := s.verifier.WaitHealthy(ctx, baseURL, cfg.LivenessEndpoint); err != nil {
		logger.Error("Launched process never became healthy, stopping it", "listener", cfg.Listener, "pid", proc.PID)
		s.terminate(proc.PID)
		if delErr := s.store.Delete(cfg.Listener); delErr != nil {
			logger.Error("Failed to clear state after unhealthy launch", "error", delErr)
		}
		return nil, err
	}

	logger.Info("Service started", "listener", cfg.Listener, "pid", proc.PID, "port", cfg.Port)
	return proc, nil
}

// Stop terminates the listener's recorded process: SIGTERM, a bounded
// grace wait, then SIGKILL. A stale or absent record is idempotent
// success.
func (s *Supervisor) Stop(ctx context.Context, listener domain.ListenerName) (StopResult, error) {
	proc, err := s.store.Get(listener)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return NotRunning, nil
		}
		return NotRunning, err
	}

	if !processAlive(proc.PID) {
		logger.Warn("State record was stale, clearing it", "listener", listener, "pid", proc.PID)
		return NotRunning, s.store.Delete(listener)
	}

	logger.Info("Stopping service", "listener", listener, "pid", proc.PID)
	if err := signalProcess(proc.PID, syscall.SIGTERM); err != nil {
		return NotRunning, fmt.Errorf("failed to signal pid %d: %w", proc.PID, err)
	}

	deadline := s.now().Add(s.grace)
	for s.now().Before(deadline) {
		if !processAlive(proc.PID) {
			return Stopped, s.store.Delete(listener)
		}
		select {
		case <-ctx.Done():
			return NotRunning, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	logger.Warn("Process did not exit within grace period, escalating to SIGKILL", "pid", proc.PID)
	s.terminate(proc.PID)
	return Stopped, s.store.Delete(listener)
}

// Status derives the listener's state from the state store and the OS
// process table. Stale (record present, process gone) is distinct from
// NotRunning (no record at all).
func (s *Supervisor) Status(ctx context.Context, listener domain.ListenerName) (domain.ProcessStatus, error) {
	proc, err := s.store.Get(listener)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			if s.pattern != "" {
				if orphans := matchingProcesses(ctx, s.runner, s.pattern); len(orphans) > 0 {
					logger.Warn("No state record but matching processes found", "pids", orphans)
				}
			}
			return domain.ProcessStatus{State: domain.StateNotRunning}, nil
		}
		return domain.ProcessStatus{}, err
	}

	if processAlive(proc.PID) {
		return domain.ProcessStatus{State: domain.StateRunning, Process: proc}, nil
	}
	return domain.ProcessStatus{State: domain.StateStale, Process: proc}, nil
}

// Restart stops the listener, tolerating NotRunning, then starts it.
func (s *Supervisor) Restart(ctx context.Context, cfg LaunchConfig) (*domain.ServiceProcess, error) {
	if _, err := s.Stop(ctx, cfg.Listener); err != nil {
		return nil, err
	}
	return s.Start(ctx, cfg)
}

// ensurePortFree checks for listeners on the port and, with force set,
// terminates them. Occupied without force is a PortConflict and nothing is
// launched.
func (s *Supervisor) ensurePortFree(ctx context.Context, port int, force bool) error {
	pids, err := portOwners(ctx, s.runner, port)
	if err != nil {
		return err
	}
	if len(pids) == 0 {
		return nil
	}
	if !force {
		return fmt.Errorf("%w: port %d held by pids %v", domain.ErrPortConflict, port, pids)
	}

	logger.Warn("Force-killing processes holding target port", "port", port, "pids", pids)
	for _, pid := range pids {
		s.terminate(pid)
	}
	time.Sleep(200 * time.Millisecond)

	pids, err = portOwners(ctx, s.runner, port)
	if err != nil {
		return err
	}
	if len(pids) > 0 {
		return fmt.Errorf("%w: port %d still held by pids %v after kill", domain.ErrPortConflict, port, pids)
	}
	return nil
}

// launch starts the command detached from the invoking session with output
// redirected to the listener's log file.
func (s *Supervisor) launch(cfg LaunchConfig) (*domain.ServiceProcess, *exec.Cmd, error) {
	if len(cfg.Command) == 0 {
		return nil, nil, fmt.Errorf("%w: empty command", domain.ErrProcessLaunchFailed)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to create log directory: %v", domain.ErrProcessLaunchFailed, err)
	}
	logFile, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to open log file: %v", domain.ErrProcessLaunchFailed, err)
	}
	defer logFile.Close()

	cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrProcessLaunchFailed, err)
	}
	// Reap the child whenever it exits so an early death does not linger
	// as a zombie for the lifetime of this invocation.
	go func() { _ = cmd.Wait() }()

	proc := &domain.ServiceProcess{
		PID:       cmd.Process.Pid,
		Host:      cfg.Host,
		Port:      cfg.Port,
		TLS:       cfg.TLS,
		LogPath:   cfg.LogPath,
		StartedAt: s.now(),
		Listener:  cfg.Listener,
	}
	logger.Debug("Launched process", "pid", proc.PID, "command", cfg.Command)
	return proc, cmd, nil
}

func (s *Supervisor) terminate(pid int) {
	if err := signalProcess(pid, syscall.SIGKILL); err != nil {
		logger.Debug("SIGKILL failed", "pid", pid, "error", err)
	}
}

func checkCert(cert *domain.CertificateRecord, now time.Time) error {
	if cert == nil {
		return domain.ErrCertificateMissing
	}
	if !cert.Valid(now) {
		if now.After(cert.NotAfter) {
			return fmt.Errorf("%w: %s expired %s", domain.ErrCertificateExpired, cert.Domain, cert.NotAfter.Format(time.RFC3339))
		}
		return fmt.Errorf("%w for %s", domain.ErrCertificateMissing, cert.Domain)
	}
	return nil
}

// processAlive probes the process table with signal 0.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to someone else.
	return errors.Is(err, syscall.EPERM)
}

func signalProcess(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}
