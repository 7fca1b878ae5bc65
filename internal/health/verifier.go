// Package health probes the service's HTTP endpoints. A launch only counts
// as successful once the liveness endpoint answers 2xx within the retry
// budget.
package health

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/moor-sh/moor/internal/domain"
	"github.com/moor-sh/moor/pkg/logger"
)

// Verifier issues bounded HTTP probes and classifies failures.
type Verifier struct {
	client  *http.Client
	timeout time.Duration
	retries int
	backoff time.Duration
}

// Options configures a Verifier.
type Options struct {
	Timeout time.Duration
	Retries int
	Backoff time.Duration
	// InsecureTLS skips chain verification, for development hosts running
	// on self-signed certificates only.
	InsecureTLS bool
}

func NewVerifier(opts Options) *Verifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Retries <= 0 {
		opts.Retries = 10
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}

	transport := &http.Transport{}
	if opts.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Verifier{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		timeout: opts.Timeout,
		retries: opts.Retries,
		backoff: opts.Backoff,
	}
}

// Verify probes every endpoint once and returns the fresh report.
func (v *Verifier) Verify(ctx context.Context, baseURL string, endpoints []string) *domain.HealthReport {
	report := &domain.HealthReport{
		BaseURL:   baseURL,
		CheckedAt: time.Now(),
	}
	for _, endpoint := range endpoints {
		report.Results = append(report.Results, v.probe(ctx, baseURL, endpoint))
	}
	return report
}

func (v *Verifier) probe(ctx context.Context, baseURL, endpoint string) domain.EndpointResult {
	result := domain.EndpointResult{Path: endpoint}

	url := strings.TrimSuffix(baseURL, "/") + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Failure = domain.FailureTransport
		result.Err = err.Error()
		return result
	}

	start := time.Now()
	resp, err := v.client.Do(req)
	result.Latency = time.Since(start)
	if err != nil {
		result.Failure = classify(err)
		result.Err = err.Error()
		logger.Debug("Endpoint probe failed", "url", url, "failure", result.Failure, "error", err)
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result.Reachable = true
	} else {
		result.Failure = domain.FailureBadStatus
	}
	logger.Debug("Endpoint probed", "url", url, "status", resp.StatusCode, "latency", result.Latency)
	return result
}

// WaitHealthy polls the liveness endpoint with backoff until it returns
// 2xx or the retry budget is exhausted.
func (v *Verifier) WaitHealthy(ctx context.Context, baseURL, endpoint string) error {
	delay := v.backoff
	for attempt := 1; attempt <= v.retries; attempt++ {
		result := v.probe(ctx, baseURL, endpoint)
		if result.Reachable {
			logger.Info("Service is healthy", "url", baseURL+endpoint, "attempt", attempt, "latency", result.Latency)
			return nil
		}

		logger.Debug("Liveness probe not ready", "attempt", attempt, "of", v.retries, "failure", result.Failure)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", domain.ErrHealthCheckTimeout, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("%w: %s%s did not return 2xx after %d attempts", domain.ErrHealthCheckTimeout, baseURL, endpoint, v.retries)
}

// classify maps a transport error to a probe failure reason.
func classify(err error) domain.ProbeFailure {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.FailureTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return domain.FailureRefused
	}

	var certErr *tls.CertificateVerificationError
	var hostErr x509.HostnameError
	var unknownAuthErr x509.UnknownAuthorityError
	var recordErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &hostErr) ||
		errors.As(err, &unknownAuthErr) || errors.As(err, &recordErr) {
		return domain.FailureTLS
	}
	if strings.Contains(err.Error(), "tls:") {
		return domain.FailureTLS
	}
	return domain.FailureTransport
}
