package cert

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moor-sh/moor/internal/db"
	"github.com/moor-sh/moor/internal/domain"
)

func testManager(t *testing.T, issuer Issuer) (*Manager, *db.DB) {
	t.Helper()
	inv, err := db.Open(filepath.Join(t.TempDir(), "moor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { inv.Close() })

	m := NewManager(t.TempDir(), 30*24*time.Hour, issuer, domain.IssuerSelfSigned, inv)
	return m, inv
}

func TestSelfSignedIssuer(t *testing.T) {
	certPEM, keyPEM, err := SelfSignedIssuer{}.Issue(context.Background(), "example.test")
	require.NoError(t, err)

	x509Cert, err := certcrypto.ParsePEMCertificate(certPEM)
	require.NoError(t, err)
	assert.Equal(t, "example.test", x509Cert.Subject.CommonName)
	assert.Contains(t, x509Cert.DNSNames, "example.test")
	assert.Contains(t, x509Cert.DNSNames, "localhost")
	assert.True(t, x509Cert.NotAfter.After(time.Now().Add(300*24*time.Hour)))

	_, err = certcrypto.ParsePEMPrivateKey(keyPEM)
	require.NoError(t, err)
}

func TestManager_EnsureIssuesThenNoops(t *testing.T) {
	issuer := &countingIssuer{inner: SelfSignedIssuer{}}
	m, _ := testManager(t, issuer)

	rec, mutated, err := m.Ensure(context.Background(), "example.test")
	require.NoError(t, err)
	assert.True(t, mutated)
	assert.Equal(t, 1, issuer.calls)
	assert.FileExists(t, rec.CertPath)
	assert.FileExists(t, rec.KeyPath)
	assert.True(t, rec.Valid(time.Now()))

	// Second pass over a valid certificate performs zero issuances.
	again, mutated, err := m.Ensure(context.Background(), "example.test")
	require.NoError(t, err)
	assert.False(t, mutated)
	assert.Equal(t, 1, issuer.calls)
	assert.Equal(t, rec.CertPath, again.CertPath)
}

func TestManager_CurrentMissing(t *testing.T) {
	m, _ := testManager(t, SelfSignedIssuer{})

	_, err := m.Current("example.test")
	assert.ErrorIs(t, err, domain.ErrCertificateMissing)
}

func TestManager_CurrentDetectsDeletedMaterial(t *testing.T) {
	m, inv := testManager(t, SelfSignedIssuer{})

	// Record points at files that no longer exist.
	require.NoError(t, inv.SaveCertificate(&domain.CertificateRecord{
		Domain:   "example.test",
		Issuer:   domain.IssuerSelfSigned,
		CertPath: "/nonexistent/fullchain.pem",
		KeyPath:  "/nonexistent/privkey.pem",
		IssuedAt: time.Now(),
		NotAfter: time.Now().Add(time.Hour),
	}))

	_, err := m.Current("example.test")
	assert.ErrorIs(t, err, domain.ErrCertificateMissing)
}

func TestManager_EnsureRenewsNearExpiry(t *testing.T) {
	issuer := &countingIssuer{inner: SelfSignedIssuer{}}
	m, _ := testManager(t, issuer)

	_, _, err := m.Ensure(context.Background(), "example.test")
	require.NoError(t, err)

	// Move the clock to within the renewal threshold of expiry.
	m.now = func() time.Time { return time.Now().Add(350 * 24 * time.Hour) }

	_, mutated, err := m.Ensure(context.Background(), "example.test")
	require.NoError(t, err)
	assert.True(t, mutated)
	assert.Equal(t, 2, issuer.calls)
}

func TestManager_EnsureWithoutIssuer(t *testing.T) {
	m, _ := testManager(t, nil)

	_, _, err := m.Ensure(context.Background(), "example.test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no certificate issuer")
}

type countingIssuer struct {
	inner Issuer
	calls int
	fail  error
}

func (c *countingIssuer) Issue(ctx context.Context, domainName string) ([]byte, []byte, error) {
	c.calls++
	if c.fail != nil {
		return nil, nil, c.fail
	}
	return c.inner.Issue(ctx, domainName)
}

func TestManager_EnsureSurfacesIssuerError(t *testing.T) {
	issuer := &countingIssuer{fail: errors.New("CA unreachable")}
	m, _ := testManager(t, issuer)

	_, _, err := m.Ensure(context.Background(), "example.test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CA unreachable")
}
