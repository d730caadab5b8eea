package api

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"vistorias/pkg/config"
)

// TLSConfig is nil for plain HTTP (TLS_CERT unset). TLS_CLIENT_CA turns on
// mutual TLS for deployments where only the office app talks to the API.
func TLSConfig(cfg config.Config) (*tls.Config, error) {
	if cfg.TLSCert == "" {
		return nil, nil
	}
	par, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
	if err != nil {
		return nil, fmt.Errorf("TLS_CERT/TLS_KEY: %w", err)
	}
	tc := &tls.Config{MinVersion: tls.VersionTLS12, Certificates: []tls.Certificate{par}}
	if cfg.TLSClientCA == "" {
		return tc, nil
	}
	if tc.ClientCAs, err = clientCAPool(cfg.TLSClientCA); err != nil {
		return nil, err
	}
	tc.ClientAuth = tls.RequireAndVerifyClientCert
	return tc, nil
}

func clientCAPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("TLS_CLIENT_CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("TLS_CLIENT_CA: no PEM certificates in %s", path)
	}
	return pool, nil
}
