package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	DefineFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Reads.Concurrency)
	assert.True(t, cfg.Reads.Snapshot)
	assert.Equal(t, 3, cfg.Writes.AllocateRetries)
	assert.Equal(t, "delimited", cfg.Schema.StandMembership)
	assert.Equal(t, []string{"raw", "orthomosaic"}, cfg.Probe.Kinds)
	assert.False(t, cfg.Events.Enabled())
	assert.Equal(t, "aerodb", cfg.Observability.ServiceName)
	assert.Equal(t, 10*time.Second, cfg.Observability.OTLP.Timeout)

	result := cfg.Validate()
	assert.False(t, result.HasErrors(), result.Error())
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aerodb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: sqlite
  path: /var/lib/aerodb/file.db
server:
  port: 7000
reads:
  concurrency: 2
probe:
  kinds: "raw, thermal"
`), 0600))

	t.Setenv("AERODB_SERVER_PORT", "7100")
	t.Setenv("AERODB_READS_CONCURRENCY", "4")

	cfg, err := Load(newFlagSet(t, "--config", path, "--reads.concurrency=16"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver, "file beats default")
	assert.Equal(t, 7100, cfg.Server.Port, "env beats file")
	assert.Equal(t, 16, cfg.Reads.Concurrency, "flag beats env")
	assert.Equal(t, []string{"raw", "thermal"}, cfg.Probe.Kinds)
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aerodb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reads:\n  paralelism: 3\n"), 0600))

	_, err := Load(newFlagSet(t, "--config", path))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paralelism")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(newFlagSet(t, "--config", filepath.Join(t.TempDir(), "nope.yaml")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_SecretFiles(t *testing.T) {
	dir := t.TempDir()
	pwd := filepath.Join(dir, "password")
	require.NoError(t, os.WriteFile(pwd, []byte("s3cret\n"), 0600))
	t.Setenv("AERODB_DATABASE_PASSWORD_FILE", pwd)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Password)
}

func TestLoad_StdinSecret(t *testing.T) {
	orig := stdin
	t.Cleanup(func() { stdin = orig })
	stdin = strings.NewReader("root:pw@tcp(db:3306)/aero\n")

	cfg, err := Load(newFlagSet(t, "--database.dsn_file=@-"))
	require.NoError(t, err)
	assert.Equal(t, "root:pw@tcp(db:3306)/aero", cfg.Database.DSN)

	_, err = Load(newFlagSet(t, "--database.dsn_file=@-", "--database.password_file=@-"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only one stdin source")
}

func TestDataSource(t *testing.T) {
	t.Run("mysql discrete", func(t *testing.T) {
		d := DatabaseConfig{Driver: "mysql", Host: "db.example.com", Port: 3306, User: "admin", Password: "p@ss:w0rd!", Database: "aero"}
		driver, dsn, err := d.DataSource()
		require.NoError(t, err)
		assert.Equal(t, "mysql", driver)

		parsed, err := mysql.ParseDSN(dsn)
		require.NoError(t, err)
		assert.Equal(t, "admin", parsed.User)
		assert.Equal(t, "p@ss:w0rd!", parsed.Passwd)
		assert.Equal(t, "db.example.com:3306", parsed.Addr)
		assert.Equal(t, "aero", parsed.DBName)
		assert.True(t, parsed.ParseTime)

		d.TLS.Mode = "verify-full"
		_, dsn, err = d.DataSource()
		require.NoError(t, err)
		assert.Contains(t, dsn, "tls="+tlsConfigName)
	})

	t.Run("mysql dsn keeps explicit tls", func(t *testing.T) {
		d := DatabaseConfig{Driver: "tidb", DSN: "u:p@tcp(h:4000)/x?tls=skip-verify", TLS: DatabaseTLSConfig{Mode: "off"}}
		_, dsn, err := d.DataSource()
		require.NoError(t, err)
		parsed, err := mysql.ParseDSN(dsn)
		require.NoError(t, err)
		assert.Equal(t, "skip-verify", parsed.TLSConfig)
		assert.True(t, parsed.ParseTime)
	})

	t.Run("sqlite", func(t *testing.T) {
		driver, dsn, err := (&DatabaseConfig{Driver: "sqlite", Path: "/data/aero.db"}).DataSource()
		require.NoError(t, err)
		assert.Equal(t, "sqlite", driver)
		assert.Equal(t, "file:/data/aero.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dsn)

		_, dsn, err = (&DatabaseConfig{Driver: "sqlite3", Path: ":memory:"}).DataSource()
		require.NoError(t, err)
		assert.Equal(t, ":memory:", dsn)
	})

	t.Run("postgres", func(t *testing.T) {
		d := DatabaseConfig{Driver: "postgres", Host: "pg", Port: 5432, User: "aero", Password: "pw", Database: "aerodb", TLS: DatabaseTLSConfig{Mode: "verify-full", CAFile: "/ca.pem"}}
		driver, dsn, err := d.DataSource()
		require.NoError(t, err)
		assert.Equal(t, "pgx", driver)
		assert.Equal(t, "postgres://aero:pw@pg:5432/aerodb?sslmode=verify-full&sslrootcert=%2Fca.pem", dsn)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, _, err := (&DatabaseConfig{Driver: "oracle"}).DataSource()
		assert.Error(t, err)
	})
}

func TestRedacted(t *testing.T) {
	assert.Equal(t, "postgres://aero:xxxxx@pg:5432/aerodb", Redacted("postgres://aero:pw@pg:5432/aerodb"))
	assert.NotContains(t, Redacted("root:hunter2@tcp(db:3306)/aero"), "hunter2")
	assert.Equal(t, ":memory:", Redacted(":memory:"))
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load(nil)
	require.NoError(t, err)
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
		warning   bool
	}{
		{"bad driver", func(c *Config) { c.Database.Driver = "oracle" }, "database.driver", false},
		{"sqlite without path", func(c *Config) { c.Database.Driver = "sqlite"; c.Database.Path = "" }, "database.path", false},
		{"mysql without host", func(c *Config) { c.Database.Host = "" }, "database.host", false},
		{"bad tls mode", func(c *Config) { c.Database.TLS.Mode = "maybe" }, "database.tls.mode", false},
		{"half client cert", func(c *Config) { c.Database.TLS.CertFile = "/c.pem" }, "database.tls.cert_file", false},
		{"skip verify warns", func(c *Config) { c.Database.TLS.Mode = "skip-verify" }, "database.tls.mode", true},
		{"idle over open", func(c *Config) { c.Database.Pool.MaxIdle = 50 }, "database.pool.max_idle", true},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port", false},
		{"rate limit needs rps", func(c *Config) { c.Server.RateLimitEnabled = true }, "server.rate_limit_rps", false},
		{"tls file needs key", func(c *Config) { c.Server.TLS = ServerTLSConfig{Mode: "file", CertFile: "/c.pem"} }, "server.tls.cert_file", false},
		{"tls unknown mode", func(c *Config) { c.Server.TLS.Mode = "acme" }, "server.tls.mode", false},
		{"tls self-signed warns", func(c *Config) { c.Server.TLS.Mode = "selfsigned" }, "server.tls.mode", true},
		{"zero concurrency", func(c *Config) { c.Reads.Concurrency = 0 }, "reads.concurrency", false},
		{"zero retries", func(c *Config) { c.Writes.AllocateRetries = 0 }, "writes.allocate_retries", false},
		{"bad membership", func(c *Config) { c.Schema.StandMembership = "graph" }, "schema.stand_membership", false},
		{"join table warns", func(c *Config) { c.Schema.StandMembership = "join_table" }, "schema.stand_membership", true},
		{"fs probe needs root", func(c *Config) { c.Probe.Driver = "fs" }, "probe.root", false},
		{"s3 probe needs bucket", func(c *Config) { c.Probe.Driver = "s3" }, "probe.s3.bucket", false},
		{"bad probe kind", func(c *Config) { c.Probe.Kinds = []string{"raw/x"} }, "probe.kinds", false},
		{"bad nats url", func(c *Config) { c.Events.NATSURL = "localhost" }, "events.nats_url", false},
		{"wildcard subject", func(c *Config) { c.Events.NATSURL = "nats://n:4222"; c.Events.SubjectPrefix = "aero.*" }, "events.subject_prefix", false},
		{"bad log level", func(c *Config) { c.Observability.Logging.Level = "loud" }, "observability.logging.level", false},
		{"bad sample ratio", func(c *Config) { c.Observability.TraceSampleRatio = 2 }, "observability.trace_sample_ratio", false},
		{"bad http endpoint", func(c *Config) {
			c.Observability.Traces = &OTLPConfig{Protocol: "http/protobuf", Endpoint: "collector"}
		}, "observability.traces.endpoint", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			result := cfg.Validate()

			var fields []string
			if tt.warning {
				for _, w := range result.Warnings {
					fields = append(fields, w.Field)
				}
			} else {
				for _, e := range result.Errors {
					fields = append(fields, e.Field)
				}
			}
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	assert.Equal(t, "server.port: bad (hint: pick one)", ValidationError{Field: "server.port", Message: "bad", Hint: "pick one"}.Error())
	assert.Equal(t, "server.port: bad", ValidationError{Field: "server.port", Message: "bad"}.Error())

	r := &ValidationResult{}
	r.fail("a", "", "one")
	r.fail("b", "", "two")
	assert.Equal(t, "a: one; b: two", r.Error())
}

func TestMergeOTLPConfigs(t *testing.T) {
	base := OTLPConfig{Endpoint: "collector:4317", Protocol: "grpc", Headers: map[string]string{"a": "1"}, Timeout: time.Second, RetryEnabled: true, RetryMaxAttempts: 3}
	obs := ObservabilityConfig{OTLP: base, Traces: &OTLPConfig{Endpoint: "http://traces:4318", Protocol: "http/protobuf", Insecure: true, Headers: map[string]string{"b": "2"}}}

	got := obs.TracesConfig()
	assert.Equal(t, "http://traces:4318", got.Endpoint)
	assert.Equal(t, "http/protobuf", got.Protocol)
	assert.True(t, got.Insecure)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, got.Headers)
	assert.Equal(t, time.Second, got.Timeout)
	assert.Equal(t, 3, got.RetryMaxAttempts)

	assert.Equal(t, base, obs.LogsConfig())
}
