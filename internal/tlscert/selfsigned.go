package tlscert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"slices"
	"time"
)

const (
	certName     = "aerodb.crt"
	keyName      = "aerodb.key"
	certLifetime = 365 * 24 * time.Hour
)

var defaultHosts = []string{"localhost", "127.0.0.1", "::1"}

func loadSelfSigned(cfg Config, logger *slog.Logger) (*Source, error) {
	hosts := cfg.Hosts
	if len(hosts) == 0 {
		hosts = defaultHosts
	}
	if cfg.CertDir == "" {
		return nil, fmt.Errorf("cert_dir is required in selfsigned mode")
	}
	if err := os.MkdirAll(cfg.CertDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create certificate directory: %w", err)
	}
	certPath := filepath.Join(cfg.CertDir, certName)
	keyPath := filepath.Join(cfg.CertDir, keyName)

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil || !usable(cert, hosts, time.Now()) {
		logger.Warn("generating self-signed certificate; not for production",
			slog.String("cert_path", certPath),
			slog.Any("hosts", hosts))
		if err := generate(certPath, keyPath, hosts, time.Now()); err != nil {
			return nil, fmt.Errorf("failed to generate self-signed certificate: %w", err)
		}
		if cert, err = tls.LoadX509KeyPair(certPath, keyPath); err != nil {
			return nil, fmt.Errorf("failed to load self-signed certificate: %w", err)
		}
	} else {
		logger.Info("using existing self-signed certificate", slog.String("cert_path", certPath))
	}

	return &Source{
		desc:   "self-signed " + certPath,
		config: &tls.Config{MinVersion: MinVersion, Certificates: []tls.Certificate{cert}},
	}, nil
}

// usable reports whether a stored certificate is current and names exactly
// the configured hosts.
func usable(cert tls.Certificate, hosts []string, now time.Time) bool {
	if len(cert.Certificate) == 0 {
		return false
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil || now.Before(leaf.NotBefore) || now.After(leaf.NotAfter) {
		return false
	}
	var names, ips []string
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			ips = append(ips, ip.String())
		} else {
			names = append(names, h)
		}
	}
	var gotIPs []string
	for _, ip := range leaf.IPAddresses {
		gotIPs = append(gotIPs, ip.String())
	}
	return sameSet(names, leaf.DNSNames) && sameSet(ips, gotIPs)
}

func sameSet(a, b []string) bool {
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(slices.Compact(a), slices.Compact(b))
}

func generate(certPath, keyPath string, hosts []string, now time.Time) error {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return err
	}
	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"aerodb (self-signed)"}, CommonName: hosts[0]},
		NotBefore:             now.Add(-5 * time.Minute),
		NotAfter:              now.Add(certLifetime),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return err
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644); err != nil {
		return err
	}
	return os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}), 0o600)
}
