package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCertificateRecord_Valid(t *testing.T) {
	now := time.Now()
	rec := &CertificateRecord{
		Domain:   "example.test",
		CertPath: "/certs/fullchain.pem",
		KeyPath:  "/certs/privkey.pem",
		NotAfter: now.Add(24 * time.Hour),
	}

	assert.True(t, rec.Valid(now))
	assert.False(t, rec.Valid(now.Add(25*time.Hour)))

	var nilRec *CertificateRecord
	assert.False(t, nilRec.Valid(now))

	rec.KeyPath = ""
	assert.False(t, rec.Valid(now))
}

func TestCertificateRecord_NeedsRenewal(t *testing.T) {
	now := time.Now()
	threshold := 30 * 24 * time.Hour

	fresh := &CertificateRecord{NotAfter: now.Add(60 * 24 * time.Hour)}
	assert.False(t, fresh.NeedsRenewal(now, threshold))

	nearExpiry := &CertificateRecord{NotAfter: now.Add(10 * 24 * time.Hour)}
	assert.True(t, nearExpiry.NeedsRenewal(now, threshold))

	expired := &CertificateRecord{NotAfter: now.Add(-time.Hour)}
	assert.True(t, expired.NeedsRenewal(now, threshold))

	var nilRec *CertificateRecord
	assert.True(t, nilRec.NeedsRenewal(now, threshold))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{nil, ExitOK},
		{ErrPrerequisiteMissing, ExitPrerequisiteMissing},
		{ErrPortConflict, ExitPortConflict},
		{ErrAlreadyRunning, ExitPortConflict},
		{ErrCertificateMissing, ExitCertificate},
		{ErrCertificateExpired, ExitCertificate},
		{ErrHealthCheckTimeout, ExitHealthCheck},
		{ErrStaleState, ExitStaleState},
		{ErrLockHeld, ExitLockHeld},
		{assert.AnError, ExitGeneric},
		// Wrapped errors keep their class.
		{fmt.Errorf("start failed: %w", ErrPortConflict), ExitPortConflict},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, ExitCode(tt.err), "error %v", tt.err)
	}
}

func TestProcessStateString(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stale", StateStale.String())
	assert.Equal(t, "not running", StateNotRunning.String())
}

func TestHealthReport_Healthy(t *testing.T) {
	empty := &HealthReport{}
	assert.False(t, empty.Healthy())

	allGood := &HealthReport{Results: []EndpointResult{
		{Path: "/health", Reachable: true, StatusCode: 200},
		{Path: "/api/v1/status", Reachable: true, StatusCode: 200},
	}}
	assert.True(t, allGood.Healthy())

	oneBad := &HealthReport{Results: []EndpointResult{
		{Path: "/health", Reachable: true, StatusCode: 200},
		{Path: "/api/v1/status", Reachable: false, Failure: FailureBadStatus},
	}}
	assert.False(t, oneBad.Healthy())
}
