// Package tlscert supplies the certificate material for serving the
// operation API over HTTPS.
package tlscert

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
)

// Modes accepted by Config.Mode.
const (
	ModeOff        = "off"
	ModeFile       = "file"
	ModeSelfSigned = "selfsigned"
)

// MinVersion is the lowest TLS version the server negotiates.
const MinVersion = tls.VersionTLS13

// Config selects where certificates come from.
type Config struct {
	Mode     string
	CertFile string
	KeyFile  string
	// CertDir holds the generated pair in selfsigned mode.
	CertDir string
	Hosts   []string
}

// Source is a ready-to-serve certificate provider.
type Source struct {
	desc   string
	config *tls.Config
}

// TLSConfig returns the server TLS settings.
func (s *Source) TLSConfig() *tls.Config { return s.config }

func (s *Source) String() string { return s.desc }

// Load prepares a Source. It returns nil, nil when TLS is off.
func Load(cfg Config, logger *slog.Logger) (*Source, error) {
	switch cfg.Mode {
	case "", ModeOff:
		return nil, nil
	case ModeFile:
		return loadFile(cfg, logger)
	case ModeSelfSigned:
		return loadSelfSigned(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported TLS mode %q (valid: off, file, selfsigned)", cfg.Mode)
	}
}

func loadFile(cfg Config, logger *slog.Logger) (*Source, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, fmt.Errorf("cert_file and key_file are required in file mode")
	}
	for _, path := range []string{cfg.CertFile, cfg.KeyFile} {
		if err := checkReadable(path); err != nil {
			return nil, err
		}
	}
	if err := checkKeyPermissions(cfg.KeyFile); err != nil {
		return nil, err
	}
	if _, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile); err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	// The pair is reloaded per handshake so rotated files take effect.
	tc := &tls.Config{
		MinVersion: MinVersion,
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
			if err != nil {
				logger.Error("failed to reload certificate",
					slog.String("cert_file", cfg.CertFile),
					slog.String("error", err.Error()))
				return nil, err
			}
			return &cert, nil
		},
	}
	return &Source{desc: "file " + cfg.CertFile, config: tc}, nil
}

func checkReadable(path string) error {
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return fmt.Errorf("%s: %w", path, err)
	case info.IsDir():
		return fmt.Errorf("%s is a directory", path)
	case info.Size() == 0:
		return fmt.Errorf("%s is empty", path)
	}
	return nil
}

func checkKeyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return fmt.Errorf("key file %s has permissions %o, want 0600 or 0400", path, perm)
	}
	return nil
}
