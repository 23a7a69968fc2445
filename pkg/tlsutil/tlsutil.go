// Package tlsutil builds client TLS configuration for wss:// channel dials
// and the NATS relay connection.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/ScGaSe/smartlogistics-sub001/errors"
)

// ClientConfig holds TLS settings for outbound connections.
// The system CA bundle is always trusted; CAFiles are additional CAs.
type ClientConfig struct {
	CAFiles    []string `json:"ca_files,omitempty" yaml:"ca_files,omitempty"`
	CertFile   string   `json:"cert_file,omitempty" yaml:"cert_file,omitempty"`
	KeyFile    string   `json:"key_file,omitempty" yaml:"key_file,omitempty"`
	ServerName string   `json:"server_name,omitempty" yaml:"server_name,omitempty"`
	MinVersion string   `json:"min_version,omitempty" yaml:"min_version,omitempty"` // "1.2" or "1.3"

	// InsecureSkipVerify disables certificate checks. Development only.
	InsecureSkipVerify bool `json:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty"`
}

// IsZero reports whether cfg carries no settings, in which case callers
// keep their library defaults.
func (cfg ClientConfig) IsZero() bool {
	return len(cfg.CAFiles) == 0 && cfg.CertFile == "" && cfg.KeyFile == "" &&
		cfg.ServerName == "" && cfg.MinVersion == "" && !cfg.InsecureSkipVerify
}

// Validate checks field combinations without touching the filesystem
func (cfg ClientConfig) Validate() error {
	if (cfg.CertFile == "") != (cfg.KeyFile == "") {
		return errors.WrapInvalid(fmt.Errorf("cert_file and key_file must be set together"),
			"tlsutil", "Validate", "check client certificate")
	}
	switch cfg.MinVersion {
	case "", "1.2", "1.3":
	default:
		return errors.WrapInvalid(fmt.Errorf("unsupported min_version %q", cfg.MinVersion),
			"tlsutil", "Validate", "check min_version")
	}
	return nil
}

// LoadClientConfig creates a tls.Config from cfg. A zero cfg returns nil.
func LoadClientConfig(cfg ClientConfig) (*tls.Config, error) {
	if cfg.IsZero() {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		MinVersion: parseTLSVersion(cfg.MinVersion),
		ServerName: cfg.ServerName,
	}

	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}
	for _, caFile := range cfg.CAFiles {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientConfig", fmt.Sprintf("read CA file %s", caFile))
		}
		if !rootCAs.AppendCertsFromPEM(caPEM) {
			return nil, errors.WrapFatal(
				fmt.Errorf("invalid PEM data"),
				"tlsutil",
				"LoadClientConfig",
				fmt.Sprintf("parse CA certificate from %s", caFile),
			)
		}
	}
	tlsConfig.RootCAs = rootCAs

	if cfg.CertFile != "" {
		clientCert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientConfig", "load client certificate")
		}
		tlsConfig.Certificates = []tls.Certificate{clientCert}
	}

	if cfg.InsecureSkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}

	return tlsConfig, nil
}

// parseTLSVersion returns tls.VersionTLS12 unless version is "1.3"
func parseTLSVersion(version string) uint16 {
	if version == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}
