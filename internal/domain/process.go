package domain

import "time"

// ListenerName identifies one of the two listeners a service instance can
// expose.
type ListenerName string

const (
	ListenerHTTP  ListenerName = "http"
	ListenerHTTPS ListenerName = "https"
)

// ServiceProcess describes a launched service instance. Liveness is always
// derived from the OS process table at the moment of asking, never cached.
type ServiceProcess struct {
	PID       int          `json:"pid"`
	Host      string       `json:"host"`
	Port      int          `json:"port"`
	TLS       bool         `json:"tls"`
	LogPath   string       `json:"log_path"`
	StartedAt time.Time    `json:"started_at"`
	Listener  ListenerName `json:"listener"`
}

// ProcessState is the supervisor's view of a listener.
type ProcessState int

const (
	// StateNotRunning means no state record and no matching process.
	StateNotRunning ProcessState = iota
	// StateRunning means the recorded PID maps to a live process.
	StateRunning
	// StateStale means a state record exists but the process is gone.
	// Distinct from NotRunning to aid diagnosis.
	StateStale
)

func (s ProcessState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStale:
		return "stale"
	default:
		return "not running"
	}
}

// ProcessStatus is the result of a supervisor status poll.
type ProcessStatus struct {
	State   ProcessState
	Process *ServiceProcess // set only when State is Running or Stale
}
