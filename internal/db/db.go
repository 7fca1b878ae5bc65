// Package db holds the host inventory: certificate metadata, the ACME
// account, and the reconcile-run audit trail.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/moor-sh/moor/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS acme_account (
	email         TEXT PRIMARY KEY,
	private_key   TEXT NOT NULL,
	registration  TEXT,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS certificate (
	domain      TEXT PRIMARY KEY,
	issuer      TEXT NOT NULL,
	cert_path   TEXT NOT NULL,
	key_path    TEXT NOT NULL,
	issued_at   TEXT NOT NULL,
	expires_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS reconcile_run (
	id           TEXT PRIMARY KEY,
	started_at   TEXT NOT NULL,
	finished_at  TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	actions      TEXT NOT NULL
);
`

// DB wraps the sqlite inventory database.
type DB struct {
	conn *sql.DB
}

// Open creates or opens the inventory database at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory database: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize inventory schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

// SaveCertificate inserts or replaces the certificate record for a domain.
func (d *DB) SaveCertificate(rec *domain.CertificateRecord) error {
	_, err := d.conn.Exec(`
		INSERT OR REPLACE INTO certificate (domain, issuer, cert_path, key_path, issued_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Domain,
		string(rec.Issuer),
		rec.CertPath,
		rec.KeyPath,
		rec.IssuedAt.Format(time.RFC3339),
		rec.NotAfter.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save certificate record for %s: %w", rec.Domain, err)
	}
	return nil
}

// GetCertificate returns the certificate record for a domain, or
// sql.ErrNoRows when none exists.
func (d *DB) GetCertificate(domainName string) (*domain.CertificateRecord, error) {
	var issuer, certPath, keyPath, issuedAt, expiresAt string
	err := d.conn.QueryRow(`
		SELECT issuer, cert_path, key_path, issued_at, expires_at
		FROM certificate WHERE domain = ?`, domainName).
		Scan(&issuer, &certPath, &keyPath, &issuedAt, &expiresAt)
	if err != nil {
		return nil, err
	}

	issued, err := time.Parse(time.RFC3339, issuedAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt issued_at for %s: %w", domainName, err)
	}
	expires, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt expires_at for %s: %w", domainName, err)
	}

	return &domain.CertificateRecord{
		Domain:   domainName,
		Issuer:   domain.CertIssuer(issuer),
		CertPath: certPath,
		KeyPath:  keyPath,
		IssuedAt: issued,
		NotAfter: expires,
	}, nil
}

// SaveAcmeAccount inserts or replaces the ACME account row.
func (d *DB) SaveAcmeAccount(email, privateKeyPEM string, registrationJSON sql.NullString) error {
	now := time.Now().Format(time.RFC3339)
	_, err := d.conn.Exec(`
		INSERT OR REPLACE INTO acme_account (email, private_key, registration, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		email, privateKeyPEM, registrationJSON, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save ACME account: %w", err)
	}
	return nil
}

// GetAcmeAccount returns the stored key and registration for an email, or
// sql.ErrNoRows when the account has never been created.
func (d *DB) GetAcmeAccount(email string) (privateKeyPEM string, registrationJSON sql.NullString, err error) {
	err = d.conn.QueryRow(`
		SELECT private_key, registration FROM acme_account WHERE email = ?`, email).
		Scan(&privateKeyPEM, &registrationJSON)
	return privateKeyPEM, registrationJSON, err
}

// Run is one reconcile-run audit entry.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    string
	Actions    string
}

// RecordRun appends a reconcile run to the audit trail.
func (d *DB) RecordRun(run *Run) error {
	_, err := d.conn.Exec(`
		INSERT INTO reconcile_run (id, started_at, finished_at, outcome, actions)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.Format(time.RFC3339),
		run.FinishedAt.Format(time.RFC3339),
		run.Outcome,
		run.Actions,
	)
	if err != nil {
		return fmt.Errorf("failed to record reconcile run: %w", err)
	}
	return nil
}

// LastRuns returns up to limit most recent reconcile runs, newest first.
func (d *DB) LastRuns(limit int) ([]Run, error) {
	rows, err := d.conn.Query(`
		SELECT id, started_at, finished_at, outcome, actions
		FROM reconcile_run ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reconcile runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started, finished string
		if err := rows.Scan(&run.ID, &started, &finished, &run.Outcome, &run.Actions); err != nil {
			return nil, fmt.Errorf("failed to scan reconcile run: %w", err)
		}
		if run.StartedAt, err = time.Parse(time.RFC3339, started); err != nil {
			return nil, fmt.Errorf("corrupt started_at: %w", err)
		}
		if run.FinishedAt, err = time.Parse(time.RFC3339, finished); err != nil {
			return nil, fmt.Errorf("corrupt finished_at: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
