// Package cert manages the key/cert pair backing the TLS listener. Only
// the reconciler mutates certificate material; the supervisor reads it.
package cert

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"

	"github.com/moor-sh/moor/internal/db"
	"github.com/moor-sh/moor/internal/domain"
	"github.com/moor-sh/moor/pkg/logger"
)

// Issuer produces PEM-encoded certificate and key material for a domain.
type Issuer interface {
	Issue(ctx context.Context, domainName string) (certPEM, keyPEM []byte, err error)
}

// Manager resolves and maintains the certificate record for a domain.
type Manager struct {
	certDir   string
	threshold time.Duration
	issuer    Issuer
	issuerTag domain.CertIssuer
	inv       *db.DB
	now       func() time.Time
}

func NewManager(certDir string, threshold time.Duration, issuer Issuer, issuerTag domain.CertIssuer, inv *db.DB) *Manager {
	return &Manager{
		certDir:   certDir,
		threshold: threshold,
		issuer:    issuer,
		issuerTag: issuerTag,
		inv:       inv,
		now:       time.Now,
	}
}

// Current returns the certificate record for the domain. The record is
// cross-checked against the files on disk: a record whose material is gone
// is reported as missing, not trusted.
func (m *Manager) Current(domainName string) (*domain.CertificateRecord, error) {
	rec, err := m.inv.GetCertificate(domainName)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w for %s", domain.ErrCertificateMissing, domainName)
		}
		return nil, fmt.Errorf("failed to load certificate record: %w", err)
	}

	for _, path := range []string{rec.CertPath, rec.KeyPath} {
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, fmt.Errorf("%w: %s references missing file %s", domain.ErrCertificateMissing, domainName, path)
		}
	}
	return rec, nil
}

// Ensure brings the domain's certificate to a valid, not-near-expiry state.
// It reports whether any mutation happened so reconcile runs over a
// converged host can prove they did nothing.
func (m *Manager) Ensure(ctx context.Context, domainName string) (*domain.CertificateRecord, bool, error) {
	rec, err := m.Current(domainName)
	if err == nil && rec.Valid(m.now()) && !rec.NeedsRenewal(m.now(), m.threshold) {
		logger.Debug("Certificate already valid", "domain", domainName, "expires", rec.NotAfter)
		return rec, false, nil
	}

	if m.issuer == nil {
		return nil, false, fmt.Errorf("no certificate issuer configured")
	}
	if rec != nil {
		logger.Info("Certificate needs renewal", "domain", domainName, "expires", rec.NotAfter)
	}

	certPEM, keyPEM, err := m.issuer.Issue(ctx, domainName)
	if err != nil {
		return nil, false, err
	}

	fresh, err := m.install(domainName, certPEM, keyPEM)
	if err != nil {
		return nil, false, err
	}
	return fresh, true, nil
}

// install writes the PEM material under the cert directory and records it
// in the inventory.
func (m *Manager) install(domainName string, certPEM, keyPEM []byte) (*domain.CertificateRecord, error) {
	dir := filepath.Join(m.certDir, domainName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create certificate directory: %w", err)
	}

	certPath := filepath.Join(dir, "fullchain.pem")
	keyPath := filepath.Join(dir, "privkey.pem")

	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write certificate: %w", err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write private key: %w", err)
	}

	x509Cert, err := certcrypto.ParsePEMCertificate(certPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse issued certificate: %w", err)
	}

	rec := &domain.CertificateRecord{
		Domain:   domainName,
		Issuer:   m.issuerTag,
		CertPath: certPath,
		KeyPath:  keyPath,
		IssuedAt: m.now(),
		NotAfter: x509Cert.NotAfter,
	}
	if err := m.inv.SaveCertificate(rec); err != nil {
		return nil, err
	}

	logger.Info("Installed certificate", "domain", domainName, "issuer", rec.Issuer, "expires", rec.NotAfter)
	return rec, nil
}
