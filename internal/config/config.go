package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Environment string `toml:"-"`

	// server
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	MetricsPort int    `toml:"metrics_port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// postgres
	PostgresHost     string `toml:"postgres_host"`
	PostgresPort     string `toml:"postgres_port"`
	PostgresDBName   string `toml:"postgres_db_name"`
	PostgresUser     string `toml:"postgres_user"`
	PostgresPassword string `toml:"-"`
	MigrationsPath   string `toml:"migrations_path"`

	// redis
	RedisHost     string `toml:"redis_host"`
	RedisPort     string `toml:"redis_port"`
	RedisPassword string `toml:"-"`

	// auth
	LoginRateLimitAllowedPerMin int      `toml:"login_rate_limit_allowed_per_min"`
	RegistrationEnabled         bool     `toml:"registration_enabled"`
	AllowedOrigins              []string `toml:"allowed_origins"`

	// client
	ServerURL           string `toml:"server_url"`
	DataDir             string `toml:"data_dir"`
	ProgramPath         string `toml:"program_path"`
	DebounceMillis      int    `toml:"debounce_ms"`
	SnapshotMaxAgeHours int    `toml:"snapshot_max_age_hours"`

	// mcp
	MCPUsername string `toml:"mcp_username"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("no [%s] section in config", env)
	}
	return cfg, nil
}

// Load reads the section of env from the TOML file at path, fills defaults,
// then applies the IRON_* environment overrides:
//
//	IRON_HOST, IRON_PORT, IRON_LOG_LEVEL, IRON_LOGS_PATH,
//	IRON_POSTGRES_HOST, IRON_POSTGRES_PORT, IRON_POSTGRES_DB_NAME,
//	IRON_POSTGRES_USER, IRON_POSTGRES_PASSWORD,
//	IRON_REDIS_HOST, IRON_REDIS_PORT, IRON_REDIS_PASSWORD,
//	IRON_SERVER_URL, IRON_DATA_DIR, IRON_PROGRAM_PATH, IRON_MCP_USERNAME
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}
	return fromToml(&t, env)
}

// Parse is Load over an in-memory TOML document.
func Parse(env, data string) (*Config, error) {
	var t Toml
	if _, err := toml.Decode(data, &t); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return fromToml(&t, env)
}

func fromToml(t *Toml, env string) (*Config, error) {
	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}

	cfg.Environment = strings.ToLower(env)
	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 9000
	}
	if c.MetricsPort == 0 {
		c.MetricsPort = 2112
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.PostgresHost == "" {
		c.PostgresHost = "localhost"
	}
	if c.PostgresPort == "" {
		c.PostgresPort = "5432"
	}
	if c.PostgresDBName == "" {
		c.PostgresDBName = "iron"
	}
	if c.PostgresUser == "" {
		c.PostgresUser = "postgres"
	}
	if c.MigrationsPath == "" {
		c.MigrationsPath = "./migrations"
	}
	if c.RedisHost == "" {
		c.RedisHost = "localhost"
	}
	if c.RedisPort == "" {
		c.RedisPort = "6379"
	}
	if c.LoginRateLimitAllowedPerMin == 0 {
		c.LoginRateLimitAllowedPerMin = 15
	}
	if c.ServerURL == "" {
		c.ServerURL = "http://localhost:9000"
	}
	if c.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.DataDir = filepath.Join(home, ".iron")
		} else {
			c.DataDir = ".iron"
		}
	}
	if c.DebounceMillis == 0 {
		c.DebounceMillis = 400
	}
	if c.SnapshotMaxAgeHours == 0 {
		c.SnapshotMaxAgeHours = 24
	}
}

func (c *Config) applyEnvOverrides() {
	overrides := map[string]*string{
		"IRON_HOST":              &c.Host,
		"IRON_LOG_LEVEL":         &c.LogLevel,
		"IRON_LOGS_PATH":         &c.LogsPath,
		"IRON_POSTGRES_HOST":     &c.PostgresHost,
		"IRON_POSTGRES_PORT":     &c.PostgresPort,
		"IRON_POSTGRES_DB_NAME":  &c.PostgresDBName,
		"IRON_POSTGRES_USER":     &c.PostgresUser,
		"IRON_POSTGRES_PASSWORD": &c.PostgresPassword,
		"IRON_REDIS_HOST":        &c.RedisHost,
		"IRON_REDIS_PORT":        &c.RedisPort,
		"IRON_REDIS_PASSWORD":    &c.RedisPassword,
		"IRON_SERVER_URL":        &c.ServerURL,
		"IRON_DATA_DIR":          &c.DataDir,
		"IRON_PROGRAM_PATH":      &c.ProgramPath,
		"IRON_MCP_USERNAME":      &c.MCPUsername,
	}
	for name, field := range overrides {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}
	if v := os.Getenv("IRON_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MetricsPort <= 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics_port: %d", c.MetricsPort)
	}
	if c.DebounceMillis < 0 {
		return errors.New("debounce_ms must not be negative")
	}
	if c.SnapshotMaxAgeHours < 0 {
		return errors.New("snapshot_max_age_hours must not be negative")
	}
	if c.LoginRateLimitAllowedPerMin < 0 {
		return errors.New("login_rate_limit_allowed_per_min must not be negative")
	}
	return nil
}

func (c *Config) DebounceDelay() time.Duration {
	return time.Duration(c.DebounceMillis) * time.Millisecond
}

func (c *Config) SnapshotMaxAge() time.Duration {
	return time.Duration(c.SnapshotMaxAgeHours) * time.Hour
}

// PostgresURL returns the pgx/migrate connection string.
func (c *Config) PostgresURL() string {
	userInfo := c.PostgresUser
	if c.PostgresPassword != "" {
		userInfo += ":" + c.PostgresPassword
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=disable", userInfo, c.PostgresHost, c.PostgresPort, c.PostgresDBName)
}
