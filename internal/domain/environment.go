package domain

// PrereqState is the probed state of a host prerequisite.
type PrereqState int

const (
	PrereqAbsent PrereqState = iota
	PrereqInactive
	PrereqActive
)

func (s PrereqState) String() string {
	switch s {
	case PrereqActive:
		return "active"
	case PrereqInactive:
		return "installed but inactive"
	default:
		return "absent"
	}
}

// EnvironmentStatus maps prerequisite name to its probed state. Probing is
// read-only; absence is a normal result, not an error.
type EnvironmentStatus struct {
	Prereqs map[string]PrereqState
	// NginxVersion is the parsed reverse-proxy version, empty when nginx
	// is absent.
	NginxVersion string
	// NginxSupported is false when the installed nginx predates the
	// minimum supported release.
	NginxSupported bool
}

// Converged reports whether every prerequisite is active.
func (e EnvironmentStatus) Converged() bool {
	for _, state := range e.Prereqs {
		if state != PrereqActive {
			return false
		}
	}
	return true
}
