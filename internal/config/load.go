package config

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// EnvPrefix prefixes every environment variable, e.g. AERODB_DATABASE_DRIVER.
const EnvPrefix = "AERODB"

// ConfigFlag names the flag holding an explicit config file path.
const ConfigFlag = "config"

// Load resolves configuration with this precedence, highest first:
//  1. secrets read from *_file settings or the password prompt
//  2. flags that were explicitly set on fs
//  3. AERODB_* environment variables
//  4. the config file (--config, or aerodb.yaml on the search path)
//  5. defaults
//
// fs may be nil, in which case only files, env, and defaults apply.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	cfgPath := ""
	if fs != nil {
		cfgPath, _ = fs.GetString(ConfigFlag)
	}
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("aerodb")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/aerodb/")
		v.AddConfigPath("$HOME/.aerodb")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if cfgPath != "" {
			return nil, fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		bindChangedFlags(v, fs)
	}

	if err := resolveSecrets(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.UnmarshalExact(
		&cfg,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				stringToStringSliceHookFunc(","),
			),
		),
	); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func resolveSecrets(v *viper.Viper) error {
	stdin := 0
	for _, key := range []string{"database.dsn_file", "database.password_file"} {
		if strings.TrimSpace(v.GetString(key)) == "@-" {
			stdin++
		}
	}
	if stdin > 1 {
		return fmt.Errorf("database.dsn_file and database.password_file both use @-; only one stdin source is allowed")
	}

	if v.GetString("database.dsn") == "" && v.GetString("database.dsn_file") != "" {
		dsn, err := readSecretFile(v.GetString("database.dsn_file"))
		if err != nil {
			return fmt.Errorf("failed to read database DSN file: %w", err)
		}
		v.Set("database.dsn", dsn)
	}

	if v.GetString("database.password") == "" && v.GetString("database.password_file") != "" {
		pwd, err := readSecretFile(v.GetString("database.password_file"))
		if err != nil {
			return fmt.Errorf("failed to read database password file: %w", err)
		}
		v.Set("database.password", pwd)
	}
	if v.GetString("database.password") == "" && v.GetBool("database.password_prompt") {
		pwd, err := promptPassword()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		v.Set("database.password", pwd)
	}
	return nil
}

// bindChangedFlags copies explicitly set flags into v so that flags beat env
// and file values without their zero defaults masking either.
func bindChangedFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.Visit(func(f *pflag.Flag) {
		if f.Name == ConfigFlag || f.Name == "version" || !strings.Contains(f.Name, ".") {
			return
		}
		switch f.Value.Type() {
		case "string":
			val, _ := fs.GetString(f.Name)
			v.Set(f.Name, val)
		case "int":
			val, _ := fs.GetInt(f.Name)
			v.Set(f.Name, val)
		case "bool":
			val, _ := fs.GetBool(f.Name)
			v.Set(f.Name, val)
		case "float64":
			val, _ := fs.GetFloat64(f.Name)
			v.Set(f.Name, val)
		case "duration":
			val, _ := fs.GetDuration(f.Name)
			v.Set(f.Name, val)
		case "stringSlice":
			val, _ := fs.GetStringSlice(f.Name)
			v.Set(f.Name, val)
		default:
			v.Set(f.Name, f.Value.String())
		}
	})
}

// DefineFlags registers the config flags on fs using canonical dotted keys.
func DefineFlags(fs *pflag.FlagSet) {
	fs.StringP(ConfigFlag, "c", "", "Config file path")

	fs.String("database.driver", "", "Storage driver (mysql, sqlite, postgres)")
	fs.String("database.dsn", "", "Complete driver connection string")
	fs.String("database.dsn_file", "", "Path to file containing the connection string (use @- for stdin)")
	fs.String("database.host", "", "Database host")
	fs.Int("database.port", 0, "Database port")
	fs.String("database.user", "", "Database user")
	fs.String("database.password", "", "Database password")
	fs.String("database.password_file", "", "Path to file containing the database password (use @- for stdin)")
	fs.Bool("database.password_prompt", false, "Prompt for the database password")
	fs.String("database.database", "", "Database name")
	fs.String("database.path", "", "SQLite database file")
	fs.String("database.tls.mode", "", "TLS mode (off, skip-verify, verify-ca, verify-full)")
	fs.Int("database.pool.max_open", 0, "Maximum open database connections")
	fs.Int("database.pool.max_idle", 0, "Maximum idle connections in pool")
	fs.Duration("database.connection_timeout", 0, "Max time to wait for the database on startup (0 = fail immediately)")
	fs.Bool("database.bootstrap_schema", false, "Create missing tables on startup (development only)")

	fs.Int("server.port", 0, "HTTP server port")
	fs.Bool("server.rate_limit_enabled", false, "Enable global rate limiting")
	fs.Float64("server.rate_limit_rps", 0, "Global rate limit requests per second")
	fs.Int("server.rate_limit_burst", 0, "Global rate limit burst size")
	fs.Duration("server.shutdown_timeout", 0, "HTTP server graceful shutdown timeout")
	fs.String("server.tls.mode", "", "Server TLS mode (off, file, selfsigned)")

	fs.Int("reads.concurrency", 0, "Maximum concurrent hop lookups per request")
	fs.Bool("reads.snapshot", false, "Run each read operation in one snapshot transaction")
	fs.Bool("reads.strict_project_join", false, "Fail when a stand is listed by several projects")
	fs.Int("writes.allocate_retries", 0, "Key allocation attempts for add_client")
	fs.String("schema.stand_membership", "", "Project membership storage (delimited, join_table)")

	fs.String("probe.driver", "", "Imagery prober (none, fs, s3)")
	fs.String("probe.root", "", "Imagery root directory or key prefix")
	fs.StringSlice("probe.kinds", nil, "Imagery kinds probed per stand")
	fs.String("probe.s3.bucket", "", "Imagery bucket")
	fs.String("probe.s3.endpoint", "", "S3-compatible endpoint URL")

	fs.String("events.nats_url", "", "NATS server URL for write events")
	fs.String("events.subject_prefix", "", "Subject prefix for write events")

	fs.String("observability.service_name", "", "Service name for observability")
	fs.String("observability.environment", "", "Environment name (dev, staging, prod)")
	fs.Bool("observability.metrics_enabled", false, "Enable metrics collection")
	fs.Bool("observability.tracing_enabled", false, "Enable distributed tracing")
	fs.Float64("observability.trace_sample_ratio", 0, "Trace sampling ratio from 0.0 to 1.0")
	fs.String("observability.logging.level", "", "Log level (debug, info, warn, error)")
	fs.String("observability.logging.format", "", "Log format (json, text)")
	fs.Bool("observability.logging.exports_enabled", false, "Enable OTLP log export")
	fs.String("observability.otlp.endpoint", "", "OTLP endpoint (e.g. localhost:4317)")
	fs.String("observability.otlp.protocol", "", "OTLP protocol (grpc, http/protobuf)")
	fs.Bool("observability.otlp.insecure", false, "Use an insecure OTLP connection")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.dsn_file", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "aerodb")
	v.SetDefault("database.password", "")
	v.SetDefault("database.password_file", "")
	v.SetDefault("database.password_prompt", false)
	v.SetDefault("database.database", "aerodb")
	v.SetDefault("database.path", "aerodb.db")
	v.SetDefault("database.tls.mode", "")
	v.SetDefault("database.tls.ca_file", "")
	v.SetDefault("database.tls.cert_file", "")
	v.SetDefault("database.tls.key_file", "")
	v.SetDefault("database.tls.server_name", "")
	v.SetDefault("database.pool.max_open", 25)
	v.SetDefault("database.pool.max_idle", 5)
	v.SetDefault("database.pool.max_lifetime", 5*time.Minute)
	v.SetDefault("database.connection_timeout", 60*time.Second)
	v.SetDefault("database.connection_retry_interval", 2*time.Second)
	v.SetDefault("database.bootstrap_schema", false)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.health_check_timeout", 2*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.rate_limit_enabled", false)
	v.SetDefault("server.rate_limit_rps", 0.0)
	v.SetDefault("server.rate_limit_burst", 0)
	v.SetDefault("server.tls.mode", "off")
	v.SetDefault("server.tls.cert_file", "")
	v.SetDefault("server.tls.key_file", "")
	v.SetDefault("server.tls.cert_dir", ".aerodb/tls")
	v.SetDefault("server.tls.hosts", []string{})

	v.SetDefault("reads.concurrency", 8)
	v.SetDefault("reads.snapshot", true)
	v.SetDefault("reads.strict_project_join", false)
	v.SetDefault("writes.allocate_retries", 3)
	v.SetDefault("schema.stand_membership", "delimited")
	v.SetDefault("naming.plural_overrides", map[string]string{})
	v.SetDefault("naming.singular_overrides", map[string]string{})

	v.SetDefault("probe.driver", "none")
	v.SetDefault("probe.root", "")
	v.SetDefault("probe.kinds", []string{"raw", "orthomosaic"})
	v.SetDefault("probe.s3.bucket", "")
	v.SetDefault("probe.s3.region", "us-east-1")
	v.SetDefault("probe.s3.endpoint", "")
	v.SetDefault("probe.s3.prefix", "")
	v.SetDefault("probe.s3.path_style", false)

	v.SetDefault("events.nats_url", "")
	v.SetDefault("events.subject_prefix", "aerodb")
	v.SetDefault("events.client_name", "aerodb")

	v.SetDefault("observability.service_name", "aerodb")
	v.SetDefault("observability.service_version", "")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("observability.metrics_enabled", true)
	v.SetDefault("observability.tracing_enabled", false)
	v.SetDefault("observability.trace_sample_ratio", 1.0)
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.logging.exports_enabled", false)
	v.SetDefault("observability.otlp.endpoint", "localhost:4317")
	v.SetDefault("observability.otlp.protocol", "grpc")
	v.SetDefault("observability.otlp.insecure", false)
	v.SetDefault("observability.otlp.tls_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_key_file", "")
	v.SetDefault("observability.otlp.headers", map[string]string{})
	v.SetDefault("observability.otlp.timeout", 10*time.Second)
	v.SetDefault("observability.otlp.compression", "gzip")
	v.SetDefault("observability.otlp.retry_enabled", true)
	v.SetDefault("observability.otlp.retry_max_attempts", 3)
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Enter database password: ")
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var stdin io.Reader = os.Stdin

// readSecretFile reads a trimmed secret from path, or from stdin for "@-".
func readSecretFile(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "@-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func stringToStringSliceHookFunc(sep string) mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
			return data, nil
		}
		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return []string{}, nil
		}
		parts := strings.Split(raw, sep)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
}
