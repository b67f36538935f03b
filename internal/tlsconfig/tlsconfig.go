// Package tlsconfig builds the listener TLS configuration from certificate
// files or an ACME account.
package tlsconfig

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/acme/autocert"
)

var ErrNotConfigured = errors.New("tls is not configured")

type Options struct {
	CertFile     string
	KeyFile      string
	ACMEDomain   string
	ACMEEmail    string
	ACMECacheDir string
}

type Manager struct {
	tlsConfig *tls.Config
	autoCert  *autocert.Manager
}

// New prefers ACME when a domain is set and falls back to certificate files.
func New(opts Options) (*Manager, error) {
	if opts.ACMEDomain != "" {
		return newAutoCert(opts)
	}
	if opts.CertFile == "" || opts.KeyFile == "" {
		return nil, ErrNotConfigured
	}

	cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}

	return &Manager{
		tlsConfig: &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		},
	}, nil
}

func newAutoCert(opts Options) (*Manager, error) {
	if err := os.MkdirAll(opts.ACMECacheDir, 0o700); err != nil {
		return nil, fmt.Errorf("create acme cache dir: %w", err)
	}

	m := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(opts.ACMEDomain),
		Cache:      autocert.DirCache(opts.ACMECacheDir),
		Email:      opts.ACMEEmail,
	}

	cfg := m.TLSConfig()
	cfg.MinVersion = tls.VersionTLS12

	log.Info().
		Str("domain", opts.ACMEDomain).
		Str("cacheDir", opts.ACMECacheDir).
		Msg("acme certificates enabled")

	return &Manager{tlsConfig: cfg, autoCert: m}, nil
}

func (m *Manager) TLSConfig() *tls.Config {
	return m.tlsConfig
}

func (m *Manager) UsesACME() bool {
	return m.autoCert != nil
}
