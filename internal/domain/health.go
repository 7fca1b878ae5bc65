package domain

import "time"

// ProbeFailure classifies why an endpoint probe failed.
type ProbeFailure string

const (
	FailureNone      ProbeFailure = ""
	FailureTimeout   ProbeFailure = "timeout"
	FailureRefused   ProbeFailure = "connection-refused"
	FailureTLS       ProbeFailure = "tls-error"
	FailureBadStatus ProbeFailure = "non-2xx"
	FailureTransport ProbeFailure = "transport-error"
)

// EndpointResult is the outcome of probing a single endpoint.
type EndpointResult struct {
	Path       string
	Reachable  bool
	StatusCode int
	Latency    time.Duration
	Failure    ProbeFailure
	Err        string
}

// HealthReport maps endpoint path to probe outcome. Produced fresh on every
// verification pass and never persisted.
type HealthReport struct {
	BaseURL   string
	CheckedAt time.Time
	Results   []EndpointResult
}

// Healthy reports whether every probed endpoint was reachable with a 2xx.
func (r *HealthReport) Healthy() bool {
	if len(r.Results) == 0 {
		return false
	}
	for _, res := range r.Results {
		if !res.Reachable {
			return false
		}
	}
	return true
}
