// Package config loads aerodb configuration from defaults, a YAML file,
// AERODB_* environment variables, and flags, in increasing precedence, and
// validates the result.
package config

import (
	"time"

	"aerodb/internal/naming"
)

// Config holds the application configuration.
type Config struct {
	Database      DatabaseConfig      `mapstructure:"database"`
	Server        ServerConfig        `mapstructure:"server"`
	Reads         ReadsConfig         `mapstructure:"reads"`
	Writes        WritesConfig        `mapstructure:"writes"`
	Schema        SchemaConfig        `mapstructure:"schema"`
	Naming        naming.Config       `mapstructure:"naming"`
	Probe         ProbeConfig         `mapstructure:"probe"`
	Events        EventsConfig        `mapstructure:"events"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// PoolConfig holds connection pool parameters.
type PoolConfig struct {
	MaxOpen     int           `mapstructure:"max_open"`
	MaxIdle     int           `mapstructure:"max_idle"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

// DatabaseTLSConfig holds TLS settings for mysql and postgres connections.
type DatabaseTLSConfig struct {
	// Mode is one of off, skip-verify, verify-ca, verify-full.
	Mode       string `mapstructure:"mode"`
	CAFile     string `mapstructure:"ca_file"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
	ServerName string `mapstructure:"server_name"`
}

// DatabaseConfig selects the storage backend and how to reach it.
type DatabaseConfig struct {
	// Driver is mysql, sqlite, or postgres.
	Driver string `mapstructure:"driver"`

	// DSN, when set, is passed to the driver as is (TLS and parseTime
	// parameters are still appended for mysql).
	DSN     string `mapstructure:"dsn"`
	DSNFile string `mapstructure:"dsn_file"`

	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	PasswordFile   string `mapstructure:"password_file"`
	PasswordPrompt bool   `mapstructure:"password_prompt"`
	Database       string `mapstructure:"database"`

	// Path is the sqlite database file; ":memory:" is allowed for tests.
	Path string `mapstructure:"path"`

	TLS  DatabaseTLSConfig `mapstructure:"tls"`
	Pool PoolConfig        `mapstructure:"pool"`

	ConnectionTimeout       time.Duration `mapstructure:"connection_timeout"`
	ConnectionRetryInterval time.Duration `mapstructure:"connection_retry_interval"`

	// BootstrapSchema creates missing tables at startup. Development only.
	BootstrapSchema bool `mapstructure:"bootstrap_schema"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port               int             `mapstructure:"port"`
	ReadTimeout        time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration   `mapstructure:"write_timeout"`
	IdleTimeout        time.Duration   `mapstructure:"idle_timeout"`
	ShutdownTimeout    time.Duration   `mapstructure:"shutdown_timeout"`
	HealthCheckTimeout time.Duration   `mapstructure:"health_check_timeout"`
	MaxBodyBytes       int64           `mapstructure:"max_body_bytes"`
	RateLimitEnabled   bool            `mapstructure:"rate_limit_enabled"`
	RateLimitRPS       float64         `mapstructure:"rate_limit_rps"`
	RateLimitBurst     int             `mapstructure:"rate_limit_burst"`
	TLS                ServerTLSConfig `mapstructure:"tls"`
}

// ServerTLSConfig selects HTTPS for the operation API.
type ServerTLSConfig struct {
	Mode     string   `mapstructure:"mode"`
	CertFile string   `mapstructure:"cert_file"`
	KeyFile  string   `mapstructure:"key_file"`
	CertDir  string   `mapstructure:"cert_dir"`
	Hosts    []string `mapstructure:"hosts"`
}

// ReadsConfig tunes the denormalizer.
type ReadsConfig struct {
	Concurrency       int  `mapstructure:"concurrency"`
	Snapshot          bool `mapstructure:"snapshot"`
	StrictProjectJoin bool `mapstructure:"strict_project_join"`
}

// WritesConfig tunes add_client.
type WritesConfig struct {
	AllocateRetries int `mapstructure:"allocate_retries"`
}

// SchemaConfig selects how project membership is stored.
type SchemaConfig struct {
	// StandMembership is delimited (STAND_PERSISTENT_IDS) or join_table.
	StandMembership string `mapstructure:"stand_membership"`
}

// ProbeConfig selects the imagery prober.
type ProbeConfig struct {
	// Driver is none, fs, or s3.
	Driver string   `mapstructure:"driver"`
	Root   string   `mapstructure:"root"`
	Kinds  []string `mapstructure:"kinds"`
	S3     S3Config `mapstructure:"s3"`
}

// S3Config locates imagery in an S3-compatible bucket.
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	Prefix    string `mapstructure:"prefix"`
	PathStyle bool   `mapstructure:"path_style"`
}

// EventsConfig enables publishing of write events to NATS.
type EventsConfig struct {
	NATSURL       string `mapstructure:"nats_url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
	ClientName    string `mapstructure:"client_name"`
}

// Enabled reports whether a NATS server is configured.
func (e EventsConfig) Enabled() bool {
	return e.NATSURL != ""
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`  // debug, info, warn, error
	Format         string `mapstructure:"format"` // json, text
	ExportsEnabled bool   `mapstructure:"exports_enabled"`
}

// ObservabilityConfig holds metrics, tracing, and logging parameters.
type ObservabilityConfig struct {
	ServiceName      string        `mapstructure:"service_name"`
	ServiceVersion   string        `mapstructure:"service_version"`
	Environment      string        `mapstructure:"environment"`
	MetricsEnabled   bool          `mapstructure:"metrics_enabled"`
	TracingEnabled   bool          `mapstructure:"tracing_enabled"`
	TraceSampleRatio float64       `mapstructure:"trace_sample_ratio"`
	Logging          LoggingConfig `mapstructure:"logging"`

	OTLP   OTLPConfig  `mapstructure:"otlp"`
	Traces *OTLPConfig `mapstructure:"traces,omitempty"`
	Logs   *OTLPConfig `mapstructure:"logs,omitempty"`
}

// OTLPConfig holds OTLP exporter settings.
type OTLPConfig struct {
	Endpoint          string            `mapstructure:"endpoint"`
	Protocol          string            `mapstructure:"protocol"` // grpc, http/protobuf
	Insecure          bool              `mapstructure:"insecure"`
	TLSCertFile       string            `mapstructure:"tls_cert_file"`
	TLSClientCertFile string            `mapstructure:"tls_client_cert_file"`
	TLSClientKeyFile  string            `mapstructure:"tls_client_key_file"`
	Headers           map[string]string `mapstructure:"headers"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	Compression       string            `mapstructure:"compression"` // none, gzip
	RetryEnabled      bool              `mapstructure:"retry_enabled"`
	RetryMaxAttempts  int               `mapstructure:"retry_max_attempts"`
}

// TracesConfig returns the OTLP settings for traces.
func (c *ObservabilityConfig) TracesConfig() OTLPConfig {
	if c.Traces != nil {
		return mergeOTLPConfigs(c.OTLP, *c.Traces)
	}
	return c.OTLP
}

// LogsConfig returns the OTLP settings for logs.
func (c *ObservabilityConfig) LogsConfig() OTLPConfig {
	if c.Logs != nil {
		return mergeOTLPConfigs(c.OTLP, *c.Logs)
	}
	return c.OTLP
}

// mergeOTLPConfigs lays a signal override over the shared settings. Insecure
// always comes from the override since a false value cannot be told apart
// from an unset one.
func mergeOTLPConfigs(base, override OTLPConfig) OTLPConfig {
	out := base
	if override.Endpoint != "" {
		out.Endpoint = override.Endpoint
	}
	if override.Protocol != "" {
		out.Protocol = override.Protocol
	}
	out.Insecure = override.Insecure
	if override.TLSCertFile != "" {
		out.TLSCertFile = override.TLSCertFile
	}
	if override.TLSClientCertFile != "" {
		out.TLSClientCertFile = override.TLSClientCertFile
	}
	if override.TLSClientKeyFile != "" {
		out.TLSClientKeyFile = override.TLSClientKeyFile
	}
	if override.Headers != nil {
		out.Headers = make(map[string]string, len(base.Headers)+len(override.Headers))
		for k, v := range base.Headers {
			out.Headers[k] = v
		}
		for k, v := range override.Headers {
			out.Headers[k] = v
		}
	}
	if override.Timeout != 0 {
		out.Timeout = override.Timeout
	}
	if override.Compression != "" {
		out.Compression = override.Compression
	}
	if override.RetryMaxAttempts != 0 {
		out.RetryEnabled = override.RetryEnabled
		out.RetryMaxAttempts = override.RetryMaxAttempts
	}
	return out
}
