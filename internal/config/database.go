package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"aerodb/internal/sqlutil"
)

// tlsConfigName is the name the custom TLS config is registered under with
// the mysql driver.
const tlsConfigName = "aerodb-custom"

// Dialect returns the storage dialect selected by Driver.
func (d *DatabaseConfig) Dialect() (sqlutil.Dialect, error) {
	return sqlutil.ParseDialect(d.Driver)
}

// DataSource returns the database/sql driver name and connection string.
func (d *DatabaseConfig) DataSource() (driver, dsn string, err error) {
	dialect, err := d.Dialect()
	if err != nil {
		return "", "", err
	}
	switch dialect {
	case sqlutil.SQLite:
		dsn = d.sqliteDSN()
	case sqlutil.Postgres:
		dsn = d.postgresDSN()
	default:
		dsn, err = d.mysqlDSN()
		if err != nil {
			return "", "", err
		}
	}
	return dialect.DriverName(), dsn, nil
}

func (d *DatabaseConfig) mysqlDSN() (string, error) {
	var cfg *mysql.Config
	if d.DSN != "" {
		parsed, err := mysql.ParseDSN(d.DSN)
		if err != nil {
			return "", fmt.Errorf("database.dsn is invalid: %w", err)
		}
		cfg = parsed
	} else {
		cfg = mysql.NewConfig()
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
		cfg.DBName = d.Database
	}
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	if cfg.TLSConfig == "" {
		cfg.TLSConfig = d.mysqlTLSParam()
	}
	return cfg.FormatDSN(), nil
}

func (d *DatabaseConfig) mysqlTLSParam() string {
	switch d.TLS.Mode {
	case "":
		return ""
	case "off":
		return "false"
	case "skip-verify":
		return "skip-verify"
	case "verify-ca", "verify-full":
		return tlsConfigName
	default:
		return d.TLS.Mode
	}
}

// sqliteDSN enables foreign keys and a busy timeout on every connection.
func (d *DatabaseConfig) sqliteDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	path := d.Path
	if path == "" || path == ":memory:" {
		return ":memory:"
	}
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (d *DatabaseConfig) postgresDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Database,
	}
	q := url.Values{}
	switch d.TLS.Mode {
	case "", "off":
		q.Set("sslmode", "disable")
	case "skip-verify":
		q.Set("sslmode", "require")
	default:
		q.Set("sslmode", d.TLS.Mode)
	}
	if d.TLS.CAFile != "" {
		q.Set("sslrootcert", d.TLS.CAFile)
	}
	if d.TLS.CertFile != "" {
		q.Set("sslcert", d.TLS.CertFile)
		q.Set("sslkey", d.TLS.KeyFile)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// RegisterTLS registers the custom TLS config with the mysql driver. It is a
// no-op unless the driver is mysql and the mode is verify-ca or verify-full.
func (d *DatabaseConfig) RegisterTLS() error {
	dialect, err := d.Dialect()
	if err != nil || dialect != sqlutil.MySQL {
		return err
	}
	if d.TLS.Mode != "verify-ca" && d.TLS.Mode != "verify-full" {
		return nil
	}

	tlsCfg, err := d.buildTLSConfig()
	if err != nil {
		return fmt.Errorf("failed to build TLS config: %w", err)
	}
	if err := mysql.RegisterTLSConfig(tlsConfigName, tlsCfg); err != nil {
		return fmt.Errorf("failed to register TLS config: %w", err)
	}
	return nil
}

func (d *DatabaseConfig) buildTLSConfig() (*tls.Config, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if d.TLS.CAFile != "" {
		pem, err := os.ReadFile(d.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file %q: %w", d.TLS.CAFile, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to parse CA certificate from %q", d.TLS.CAFile)
		}
		tlsCfg.RootCAs = pool
	}

	switch {
	case d.TLS.CertFile != "" && d.TLS.KeyFile != "":
		cert, err := tls.LoadX509KeyPair(d.TLS.CertFile, d.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	case d.TLS.CertFile != "" || d.TLS.KeyFile != "":
		return nil, fmt.Errorf("both cert_file and key_file must be specified for client certificate authentication")
	}

	if d.TLS.Mode == "verify-full" {
		tlsCfg.ServerName = d.TLS.ServerName
		if tlsCfg.ServerName == "" {
			tlsCfg.ServerName = d.Host
		}
	}
	return tlsCfg, nil
}

// Redacted returns the connection string with any password masked, for logs.
func Redacted(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
			return u.String()
		}
	}
	if cfg, err := mysql.ParseDSN(dsn); err == nil && cfg.Passwd != "" {
		cfg.Passwd = "xxxxx"
		return cfg.FormatDSN()
	}
	return dsn
}

func splitHostPort(endpoint string) (string, string, bool) {
	host, port, err := net.SplitHostPort(strings.TrimSpace(endpoint))
	return host, port, err == nil && host != "" && port != ""
}
