package report

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/moor-sh/moor/internal/domain"
)

func testReporter() (*Reporter, *bytes.Buffer) {
	var buf bytes.Buffer
	r := New(&buf)
	r.now = func() time.Time {
		return time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC)
	}
	return r, &buf
}

func TestLine_PlainFormat(t *testing.T) {
	r, buf := testReporter()

	r.Info("probe", "nginx %s detected", "1.24.0")
	assert.Equal(t, "2025-06-01 12:30:45 [INFO ] probe nginx 1.24.0 detected\n", buf.String())
}

func TestLine_SeverityTags(t *testing.T) {
	r, buf := testReporter()

	r.Info("probe", "checking")
	r.Success("start", "up")
	r.Warn("status", "stale record")
	r.Error("verify", "unreachable")

	out := buf.String()
	assert.Contains(t, out, "[INFO ] probe checking")
	assert.Contains(t, out, "[OK   ] start up")
	assert.Contains(t, out, "[WARN ] status stale record")
	assert.Contains(t, out, "[ERROR] verify unreachable")
	// A buffer is not a terminal, so no escape sequences leak into the output.
	assert.NotContains(t, out, "\x1b[")
}

func TestSummary_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{name: "success", err: nil, code: domain.ExitOK},
		{name: "wrapped port conflict", err: fmt.Errorf("start: %w", domain.ErrPortConflict), code: domain.ExitPortConflict},
		{name: "health timeout", err: domain.ErrHealthCheckTimeout, code: domain.ExitHealthCheck},
		{name: "lock held", err: domain.ErrLockHeld, code: domain.ExitLockHeld},
		{name: "unknown error", err: fmt.Errorf("boom"), code: domain.ExitGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, buf := testReporter()
			assert.Equal(t, tt.code, r.Summary(tt.err))
			if tt.err == nil {
				assert.Contains(t, buf.String(), "all stages completed")
			} else {
				assert.Contains(t, buf.String(), "failed:")
			}
		})
	}
}
