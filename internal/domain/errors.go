package domain

import "errors"

// Failure classes surfaced by the pipeline. Each maps to a distinct exit
// code so automation callers can tell failure classes apart without parsing
// output.
var (
	ErrPrerequisiteMissing = errors.New("prerequisite missing")
	ErrPortConflict        = errors.New("port already in use")
	ErrAlreadyRunning      = errors.New("service already running")
	ErrCertificateMissing  = errors.New("certificate missing")
	ErrCertificateExpired  = errors.New("certificate expired")
	ErrConfigWriteFailed   = errors.New("config write failed")
	ErrProcessLaunchFailed = errors.New("process launch failed")
	ErrHealthCheckTimeout  = errors.New("health check retries exhausted")
	ErrStaleState          = errors.New("stale state record")
	ErrLockHeld            = errors.New("another run holds the lock")
)

// Exit codes for the CLI surface.
const (
	ExitOK                  = 0
	ExitGeneric             = 1
	ExitPrerequisiteMissing = 2
	ExitPortConflict        = 3
	ExitCertificate         = 4
	ExitHealthCheck         = 5
	ExitStaleState          = 6
	ExitLockHeld            = 7
)

// ExitCode maps an error to its CLI exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrPrerequisiteMissing):
		return ExitPrerequisiteMissing
	case errors.Is(err, ErrPortConflict), errors.Is(err, ErrAlreadyRunning):
		return ExitPortConflict
	case errors.Is(err, ErrCertificateMissing), errors.Is(err, ErrCertificateExpired):
		return ExitCertificate
	case errors.Is(err, ErrHealthCheckTimeout):
		return ExitHealthCheck
	case errors.Is(err, ErrStaleState):
		return ExitStaleState
	case errors.Is(err, ErrLockHeld):
		return ExitLockHeld
	default:
		return ExitGeneric
	}
}
