package domain

// ProxyConfig associates a public domain with a backend listener. At most
// one enabled vhost may exist per domain; enabling a new one replaces any
// conflicting enabled config.
type ProxyConfig struct {
	Domain      string
	BackendHost string
	BackendPort int
	TLS         bool
	CertPath    string
	KeyPath     string
	Enabled     bool
}
