package config

import (
	"fmt"
	"net/url"
	"strings"

	"aerodb/internal/junction"
	"aerodb/internal/sqlutil"
)

// ValidationError is a fatal configuration problem.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning is a non-fatal configuration problem.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult collects errors and warnings from Validate.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors reports whether any fatal problem was found.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error joins every error message.
func (r *ValidationResult) Error() string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) fail(field, hint, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Hint: hint})
}

func (r *ValidationResult) warn(field, hint, format string, args ...any) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: fmt.Sprintf(format, args...), Hint: hint})
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}
	c.Database.validate(result)
	c.Server.validate(result)
	c.Reads.validate(result)
	c.Writes.validate(result)
	c.Schema.validate(result)
	c.Probe.validate(result)
	c.Events.validate(result)
	c.Observability.validate(result)
	return result
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	dialect, err := d.Dialect()
	if err != nil {
		result.fail("database.driver", "valid values are: mysql, sqlite, postgres", "%v", err)
		return
	}

	switch dialect {
	case sqlutil.SQLite:
		if d.DSN == "" && strings.TrimSpace(d.Path) == "" {
			result.fail("database.path", "set database.path or database.dsn", "sqlite needs a database file")
		}
		if d.Pool.MaxOpen > 1 {
			result.warn("database.pool.max_open", "sqlite serializes writers; keep max_open at 1 for write-heavy use", "max_open is %d", d.Pool.MaxOpen)
		}
	default:
		if d.DSN == "" {
			if strings.TrimSpace(d.Host) == "" {
				result.fail("database.host", "set database.host or database.dsn", "host is required")
			}
			if d.Port < 1 || d.Port > 65535 {
				result.fail("database.port", "", "port %d is out of valid range (1-65535)", d.Port)
			}
			if strings.TrimSpace(d.Database) == "" {
				result.fail("database.database", "set database.database or include it in database.dsn", "database name is required")
			}
		}
		if dialect == sqlutil.MySQL && d.DSN != "" {
			if _, err := d.mysqlDSN(); err != nil {
				result.fail("database.dsn", "use user:pass@tcp(host:port)/db", "%v", err)
			}
		}
	}

	d.TLS.validate(result)

	if d.Pool.MaxOpen < 0 || d.Pool.MaxIdle < 0 {
		result.fail("database.pool", "", "pool sizes cannot be negative")
	}
	if d.Pool.MaxOpen > 0 && d.Pool.MaxIdle > d.Pool.MaxOpen {
		result.warn("database.pool.max_idle", "idle connections will be limited to max_open",
			"max_idle (%d) exceeds max_open (%d)", d.Pool.MaxIdle, d.Pool.MaxOpen)
	}
	if d.ConnectionTimeout > 0 && d.ConnectionRetryInterval <= 0 {
		result.fail("database.connection_retry_interval", "set a retry interval such as 2s, or set connection_timeout to 0 to disable retries",
			"retry interval must be positive when connection_timeout is set")
	}
	if d.BootstrapSchema {
		result.warn("database.bootstrap_schema", "disable outside development", "tables will be created on startup")
	}
}

func (t *DatabaseTLSConfig) validate(result *ValidationResult) {
	switch t.Mode {
	case "", "off", "skip-verify":
	case "verify-ca", "verify-full":
		if t.CAFile == "" {
			result.warn("database.tls.ca_file", "set ca_file to pin the server CA", "%s without a CA uses the system roots", t.Mode)
		}
	default:
		result.fail("database.tls.mode", "valid values are: off, skip-verify, verify-ca, verify-full", "invalid TLS mode %q", t.Mode)
	}
	if (t.CertFile == "") != (t.KeyFile == "") {
		result.fail("database.tls.cert_file", "provide both cert_file and key_file, or neither", "incomplete client certificate")
	}
	if t.Mode == "skip-verify" {
		result.warn("database.tls.mode", "use verify-ca or verify-full in production", "server certificate is not verified")
	}
}

func (s *ServerConfig) validate(result *ValidationResult) {
	if s.Port < 1 || s.Port > 65535 {
		result.fail("server.port", "", "port %d is out of valid range (1-65535)", s.Port)
	}
	if s.MaxBodyBytes <= 0 {
		result.fail("server.max_body_bytes", "", "max_body_bytes must be positive")
	}
	if s.RateLimitEnabled {
		if s.RateLimitRPS <= 0 {
			result.fail("server.rate_limit_rps", "", "rate_limit_rps must be positive when rate limiting is enabled")
		}
		if s.RateLimitBurst <= 0 {
			result.fail("server.rate_limit_burst", "", "rate_limit_burst must be positive when rate limiting is enabled")
		}
	} else if s.RateLimitRPS > 0 || s.RateLimitBurst > 0 {
		result.warn("server.rate_limit_enabled", "enable server.rate_limit_enabled to apply rate limits", "rate limit values are set but rate limiting is disabled")
	}

	switch s.TLS.Mode {
	case "", "off":
	case "file":
		if s.TLS.CertFile == "" || s.TLS.KeyFile == "" {
			result.fail("server.tls.cert_file", "set server.tls.cert_file and server.tls.key_file", "file mode needs a certificate and key")
		}
	case "selfsigned":
		result.warn("server.tls.mode", "use file mode with a CA-issued certificate in production", "self-signed certificates are for development only")
	default:
		result.fail("server.tls.mode", "use off, file or selfsigned", "unsupported TLS mode %q", s.TLS.Mode)
	}
}

func (r *ReadsConfig) validate(result *ValidationResult) {
	if r.Concurrency < 1 {
		result.fail("reads.concurrency", "", "concurrency must be at least 1")
	}
}

func (w *WritesConfig) validate(result *ValidationResult) {
	if w.AllocateRetries < 1 {
		result.fail("writes.allocate_retries", "", "allocate_retries must be at least 1")
	}
}

func (s *SchemaConfig) validate(result *ValidationResult) {
	strategy, err := junction.ParseStrategy(s.StandMembership)
	if err != nil {
		result.fail("schema.stand_membership", "valid values are: delimited, join_table", "%v", err)
		return
	}
	if strategy == junction.JoinTable {
		result.warn("schema.stand_membership", "create projects_with_stands with aeroctl init-schema for legacy readers",
			"join_table membership leaves STAND_PERSISTENT_IDS unmaintained")
	}
}

func (p *ProbeConfig) validate(result *ValidationResult) {
	switch p.Driver {
	case "", "none":
	case "fs":
		if strings.TrimSpace(p.Root) == "" {
			result.fail("probe.root", "", "fs prober needs a root directory")
		}
	case "s3":
		if strings.TrimSpace(p.S3.Bucket) == "" {
			result.fail("probe.s3.bucket", "", "s3 prober needs a bucket")
		}
		if p.S3.Endpoint != "" && !validURL(p.S3.Endpoint) {
			result.fail("probe.s3.endpoint", "use a full URL such as http://localhost:9000", "invalid endpoint %q", p.S3.Endpoint)
		}
	default:
		result.fail("probe.driver", "valid values are: none, fs, s3", "invalid prober %q", p.Driver)
	}
	for _, k := range p.Kinds {
		if strings.TrimSpace(k) == "" || strings.ContainsAny(k, `/\`) {
			result.fail("probe.kinds", "", "invalid kind %q", k)
		}
	}
}

func (e *EventsConfig) validate(result *ValidationResult) {
	if !e.Enabled() {
		return
	}
	if !validURL(e.NATSURL) {
		result.fail("events.nats_url", "use nats://host:4222", "invalid NATS URL %q", e.NATSURL)
	}
	if strings.ContainsAny(e.SubjectPrefix, " *>") {
		result.fail("events.subject_prefix", "", "subject prefix %q contains wildcard or space", e.SubjectPrefix)
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	switch o.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		result.fail("observability.logging.level", "valid values are: debug, info, warn, error", "invalid log level %q", o.Logging.Level)
	}
	switch o.Logging.Format {
	case "json", "text":
	default:
		result.fail("observability.logging.format", "valid values are: json, text", "invalid log format %q", o.Logging.Format)
	}
	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.fail("observability.trace_sample_ratio", "", "ratio %v is outside 0..1", o.TraceSampleRatio)
	}

	o.OTLP.validate("observability.otlp", result)
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	switch o.Protocol {
	case "", "grpc", "http/protobuf":
	default:
		result.fail(prefix+".protocol", "valid values are: grpc, http/protobuf", "invalid OTLP protocol %q", o.Protocol)
	}
	if o.Protocol == "http/protobuf" && !validOTLPEndpoint(o.Endpoint) {
		result.fail(prefix+".endpoint", "use host:port or a full URL", "invalid OTLP endpoint %q for http/protobuf", o.Endpoint)
	}
	switch o.Compression {
	case "", "none", "gzip":
	default:
		result.fail(prefix+".compression", "valid values are: none, gzip", "invalid OTLP compression %q", o.Compression)
	}
	if o.RetryMaxAttempts < 0 {
		result.fail(prefix+".retry_max_attempts", "", "retry_max_attempts cannot be negative")
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if strings.Contains(endpoint, "://") {
		return validURL(endpoint)
	}
	_, _, ok := splitHostPort(endpoint)
	return ok
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
