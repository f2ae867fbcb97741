package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-dbcore/internal/dialect"
)

// envPrefix is the prefix of every environment override.
const envPrefix = "DBCORE_"

// Config is the root configuration structure for the database core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Pools      map[string]PoolConfig `yaml:"pools"`
	Statements StatementsConfig      `yaml:"statements"`
	Logging    LoggingConfig         `yaml:"logging"`
	Metrics    MetricsConfig         `yaml:"metrics"`
	InfluxDB   InfluxDBConfig        `yaml:"influxdb"`
	MQTT       MQTTConfig            `yaml:"mqtt"`
	Migrations MigrationsConfig      `yaml:"migrations"`
	API        APIConfig             `yaml:"api"`
}

// PoolConfig configures one named connection pool.
type PoolConfig struct {
	Conn ConnConfig `yaml:"conn"`
}

// ConnConfig holds the physical connection settings of a pool.
type ConnConfig struct {
	// Driver is the database/sql driver name ("sqlite3", "sqlite",
	// "postgres", "mysql", "godror"). Inferred from URL when empty.
	Driver string `yaml:"driver"`

	// URL is the data source. For PostgreSQL and MySQL a URL
	// ("postgres://host/db", "mysql://host:3306/db"); for SQLite a file path,
	// "file:" URI or ":memory:".
	URL string `yaml:"url"`

	// User and Pass are merged into the data source when set.
	User string `yaml:"user"`
	Pass string `yaml:"pass"`

	// Max is the pool ceiling: the number of physical connections that may
	// be checked out at once.
	Max int `yaml:"max"`
}

// StatementsConfig contains statement execution settings.
type StatementsConfig struct {
	// SlowWarnMS logs a warning for any statement slower than this many
	// milliseconds. 0 disables the warning.
	SlowWarnMS int `yaml:"slow_warn_ms"`

	// FetchSize is the default driver page size for streaming reads.
	FetchSize int `yaml:"fetch_size"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig contains Prometheus exporter settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

// InfluxDBConfig contains statement telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// MQTTConfig contains settings for publishing pool and statement events.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Topic     string              `yaml:"topic"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// MigrationsConfig contains schema migration settings.
type MigrationsConfig struct {
	// Dir holds the migration scripts. Empty disables migrations.
	Dir string `yaml:"dir"`

	// Pools lists the pools migrated at startup, in order.
	Pools []string `yaml:"pools"`
}

// APIConfig contains the operations HTTP API settings.
type APIConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	JWT       JWTConfig        `yaml:"jwt"`
	WebSocket WebSocketConfig  `yaml:"websocket"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// JWTConfig contains bearer token settings.
type JWTConfig struct {
	// Secret signs and verifies HS256 tokens. Always override in production.
	Secret string `yaml:"secret"`
}

// WebSocketConfig contains event stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// minJWTSecretLength is the shortest accepted HS256 secret.
const minJWTSecretLength = 32

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Pool settings are overridden per pool: DBCORE_POOL_<NAME>_URL, _USER,
// _PASS and _MAX, where NAME is the pool name upper-cased with every
// character other than a letter or digit replaced by "_".
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Pools: map[string]PoolConfig{},
		Statements: StatementsConfig{
			SlowWarnMS: 0,
			FetchSize:  dialect.DefaultFetchSize,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9464",
			Path:   "/metrics",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			WebSocket: WebSocketConfig{
				MaxMessageSize: 8192,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "dbcore",
			},
			QoS:   1,
			Topic: "dbcore/events",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	for name, p := range cfg.Pools {
		key := envPrefix + "POOL_" + EnvName(name) + "_"
		if v := os.Getenv(key + "URL"); v != "" {
			p.Conn.URL = v
		}
		if v := os.Getenv(key + "USER"); v != "" {
			p.Conn.User = v
		}
		if v := os.Getenv(key + "PASS"); v != "" {
			p.Conn.Pass = v
		}
		if v := os.Getenv(key + "MAX"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				p.Conn.Max = n
			}
		}
		cfg.Pools[name] = p
	}

	if v := os.Getenv(envPrefix + "MIGRATIONS_DIR"); v != "" {
		cfg.Migrations.Dir = v
	}

	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// API
	if v := os.Getenv(envPrefix + "API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv(envPrefix + "API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv(envPrefix + "JWT_SECRET"); v != "" {
		cfg.API.JWT.Secret = v
	}

	// InfluxDB
	if v := os.Getenv(envPrefix + "INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// MQTT
	if v := os.Getenv(envPrefix + "MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv(envPrefix + "MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv(envPrefix + "MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
}

// EnvName converts a pool name into its environment variable form.
func EnvName(pool string) string {
	b := []byte(strings.ToUpper(pool))
	for i, c := range b {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			b[i] = '_'
		}
	}
	return string(b)
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if len(c.Pools) == 0 {
		errs = append(errs, "at least one pool must be configured under pools")
	}
	for _, name := range c.PoolNames() {
		errs = append(errs, c.Pools[name].validate(name)...)
	}

	if c.Statements.SlowWarnMS < 0 {
		errs = append(errs, "statements.slow_warn_ms must not be negative")
	}
	if c.Statements.FetchSize < 0 {
		errs = append(errs, "statements.fetch_size must not be negative")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Topic == "" {
			errs = append(errs, "mqtt.topic is required when mqtt is enabled")
		}
	}

	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}
		if len(c.API.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, fmt.Sprintf("api.jwt.secret must be at least %d characters (set DBCORE_JWT_SECRET)", minJWTSecretLength))
		}
	}

	if c.Migrations.Dir != "" {
		if len(c.Migrations.Pools) == 0 {
			errs = append(errs, "migrations.pools must name at least one pool when migrations.dir is set")
		}
		for _, name := range c.Migrations.Pools {
			if _, ok := c.Pools[name]; !ok {
				errs = append(errs, fmt.Sprintf("migrations.pools: unknown pool %q", name))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (p PoolConfig) validate(name string) []string {
	var errs []string
	prefix := "pools." + name + ".conn"

	if strings.TrimSpace(name) == "" {
		errs = append(errs, "pool names must not be empty")
	}
	if p.Conn.URL == "" {
		errs = append(errs, prefix+".url is required")
	}
	if p.Conn.Max < 1 {
		errs = append(errs, prefix+".max must be at least 1")
	}
	if p.Conn.URL != "" {
		if _, err := dialect.ForDriverName(p.Conn.DriverName()); err != nil {
			errs = append(errs, fmt.Sprintf("%s.driver: cannot determine a supported driver (%q)", prefix, p.Conn.DriverName()))
		}
	}
	return errs
}

// PoolNames returns the configured pool names in sorted order.
func (c *Config) PoolNames() []string {
	names := make([]string, 0, len(c.Pools))
	for name := range c.Pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DriverName returns the configured driver, or one inferred from the URL.
func (c ConnConfig) DriverName() string {
	if c.Driver != "" {
		return c.Driver
	}
	u := strings.ToLower(strings.TrimSpace(c.URL))
	switch {
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(u, "mysql://"):
		return "mysql"
	case strings.HasPrefix(u, "oracle://"):
		return "godror"
	case u == ":memory:", strings.HasPrefix(u, "file:"), strings.HasPrefix(u, "sqlite:"),
		strings.HasSuffix(u, ".db"), strings.HasSuffix(u, ".sqlite"), strings.HasSuffix(u, ".sqlite3"):
		return "sqlite3"
	}
	return ""
}

// SlowWarn returns the slow statement threshold as a Duration.
func (s StatementsConfig) SlowWarn() time.Duration {
	return time.Duration(s.SlowWarnMS) * time.Millisecond
}

// GetFlushInterval returns the InfluxDB flush interval as a Duration.
func (c InfluxDBConfig) GetFlushInterval() time.Duration {
	return time.Duration(c.FlushInterval) * time.Second
}
