package domain

import "time"

// CertIssuer is the mechanism that produced a certificate.
type CertIssuer string

const (
	IssuerSelfSigned CertIssuer = "self-signed"
	IssuerACME       CertIssuer = "acme"
)

// CertificateRecord describes the key/cert pair for a domain. The supervisor
// reads it before starting a TLS listener; only the reconciler creates or
// renews it.
type CertificateRecord struct {
	Domain   string
	Issuer   CertIssuer
	NotAfter time.Time
	CertPath string
	KeyPath  string
	IssuedAt time.Time
}

// Valid reports whether the record can back a TLS listener right now.
func (c *CertificateRecord) Valid(now time.Time) bool {
	return c != nil && c.CertPath != "" && c.KeyPath != "" && now.Before(c.NotAfter)
}

// NeedsRenewal reports whether the certificate is within threshold of expiry.
// An already-expired certificate also needs renewal.
func (c *CertificateRecord) NeedsRenewal(now time.Time, threshold time.Duration) bool {
	if c == nil {
		return true
	}
	return now.Add(threshold).After(c.NotAfter)
}
