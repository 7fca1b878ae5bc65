package cert

import (
	"context"
	"crypto"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/challenge/http01"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"

	"github.com/moor-sh/moor/internal/db"
	"github.com/moor-sh/moor/pkg/logger"
)

// ACMEConfig holds configuration for the ACME issuer.
type ACMEConfig struct {
	Email             string
	Staging           bool
	HTTPChallengePort string
}

// ACMEIssuer obtains certificates from an ACME CA over the HTTP-01
// standalone challenge.
type ACMEIssuer struct {
	config ACMEConfig
	client *lego.Client
	user   *acmeUser
	inv    *db.DB
}

// acmeUser implements the registration.User interface.
type acmeUser struct {
	Email        string                 `json:"email"`
	Registration *registration.Resource `json:"registration"`
	key          crypto.PrivateKey
}

func (u *acmeUser) GetEmail() string                        { return u.Email }
func (u *acmeUser) GetRegistration() *registration.Resource { return u.Registration }
func (u *acmeUser) GetPrivateKey() crypto.PrivateKey        { return u.key }

// NewACMEIssuer loads or creates the ACME account and registers it with the
// CA when needed.
func NewACMEIssuer(config ACMEConfig, inv *db.DB) (*ACMEIssuer, error) {
	if config.Email == "" {
		return nil, fmt.Errorf("ACME issuance requires an account email")
	}

	user, err := loadAcmeUser(config.Email, inv)
	if err != nil {
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("failed to load ACME account: %w", err)
		}
		logger.Info("No existing ACME account found, creating new one", "email", config.Email)
		privateKey, keyErr := certcrypto.GeneratePrivateKey(certcrypto.RSA2048)
		if keyErr != nil {
			return nil, fmt.Errorf("failed to generate account key: %w", keyErr)
		}
		user = &acmeUser{Email: config.Email, key: privateKey}
		if saveErr := saveAcmeUser(user, inv); saveErr != nil {
			return nil, fmt.Errorf("failed to save new ACME account: %w", saveErr)
		}
	}

	legoConfig := lego.NewConfig(user)
	legoConfig.Certificate.KeyType = certcrypto.RSA2048
	if config.Staging {
		logger.Info("Using ACME staging environment")
		legoConfig.CADirURL = lego.LEDirectoryStaging
	} else {
		legoConfig.CADirURL = lego.LEDirectoryProduction
	}

	client, err := lego.NewClient(legoConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create ACME client: %w", err)
	}

	if user.Registration == nil {
		logger.Info("Registering ACME account", "email", user.Email)
		reg, err := client.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
		if err != nil {
			return nil, fmt.Errorf("failed to register ACME account: %w", err)
		}
		user.Registration = reg
		if saveErr := saveAcmeUser(user, inv); saveErr != nil {
			logger.Error("Failed to persist ACME registration", "error", saveErr)
		}
	}

	port := config.HTTPChallengePort
	if port == "" {
		port = "80"
	}
	provider := http01.NewProviderServer("", port)
	if err := client.Challenge.SetHTTP01Provider(provider); err != nil {
		return nil, fmt.Errorf("failed to set HTTP-01 provider: %w", err)
	}

	return &ACMEIssuer{config: config, client: client, user: user, inv: inv}, nil
}

// Issue obtains a fresh certificate for the domain. Renewal is the same
// operation against the CA, so near-expiry certificates go through here
// too.
func (i *ACMEIssuer) Issue(_ context.Context, domainName string) ([]byte, []byte, error) {
	logger.Info("Requesting certificate from ACME CA", "domain", domainName)

	request := certificate.ObtainRequest{
		Domains: []string{domainName},
		Bundle:  true,
	}
	cert, err := i.client.Certificate.Obtain(request)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to obtain certificate for %s: %w", domainName, err)
	}
	return cert.Certificate, cert.PrivateKey, nil
}

func loadAcmeUser(email string, inv *db.DB) (*acmeUser, error) {
	privateKeyPEM, registrationJSON, err := inv.GetAcmeAccount(email)
	if err != nil {
		return nil, err
	}

	privateKey, err := certcrypto.ParsePEMPrivateKey([]byte(privateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored account key: %w", err)
	}

	user := &acmeUser{Email: email, key: privateKey}
	if registrationJSON.Valid && registrationJSON.String != "" {
		reg := &registration.Resource{}
		if err := json.Unmarshal([]byte(registrationJSON.String), reg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stored registration: %w", err)
		}
		user.Registration = reg
	}
	return user, nil
}

func saveAcmeUser(user *acmeUser, inv *db.DB) error {
	if user.key == nil {
		return fmt.Errorf("cannot save account without a private key")
	}

	privateKeyPEM := certcrypto.PEMEncode(user.key)

	var registrationJSON sql.NullString
	if user.Registration != nil {
		regBytes, err := json.Marshal(user.Registration)
		if err != nil {
			return fmt.Errorf("failed to marshal registration: %w", err)
		}
		registrationJSON = sql.NullString{String: string(regBytes), Valid: true}
	}

	return inv.SaveAcmeAccount(user.Email, string(privateKeyPEM), registrationJSON)
}
