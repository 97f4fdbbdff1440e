// Package config loads the restdb configuration.
//
// Settings come from three layers, later ones winning: built-in defaults,
// an optional YAML file and RESTDB_* environment variables.
//
// Usage:
//
//	cfg, err := config.Load("restdb.yaml")
//	dbCfg := cfg.Database.DatabaseConfig()
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/koustreak/restdb/internal/database"
	"github.com/koustreak/restdb/internal/filestore"
	"github.com/koustreak/restdb/internal/logger"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Joins    JoinsConfig    `yaml:"joins"`
	Tenancy  TenancyConfig  `yaml:"tenancy"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// Controllers lists the route groups to serve: records, columns, status.
	Controllers []string `yaml:"controllers"`
}

// Controller names accepted in ServerConfig.Controllers.
const (
	ControllerRecords = "records"
	ControllerColumns = "columns"
	ControllerStatus  = "status"
)

// Serves reports whether the named controller is enabled.
func (s ServerConfig) Serves(controller string) bool {
	for _, c := range s.Controllers {
		if c == controller {
			return true
		}
	}
	return false
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // mysql, pgsql, sqlsrv
	Address  string `yaml:"address"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	// DSN, when set, is used verbatim instead of the fields above.
	DSN    string   `yaml:"dsn"`
	Tables []string `yaml:"tables"`

	MaxConns        int           `yaml:"maxConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	MaxConnLifetime time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime time.Duration `yaml:"maxConnIdleTime"`
	ConnectTimeout  time.Duration `yaml:"connectTimeout"`
	QueryTimeout    time.Duration `yaml:"queryTimeout"`
}

type CacheConfig struct {
	Type   string        `yaml:"type"` // none, memory, objectstore
	TTL    time.Duration `yaml:"ttl"`
	Prefix string        `yaml:"prefix"`

	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	UseSSL    bool   `yaml:"useSSL"`
	Bucket    string `yaml:"bucket"`
}

type JoinsConfig struct {
	// MaxRecords bounds the number of records fetched per join level; -1 is unlimited.
	MaxRecords int `yaml:"maxRecords"`
}

type TenancyConfig struct {
	Column string `yaml:"column"`
	Header string `yaml:"header"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Controllers:     []string{ControllerRecords, ControllerStatus},
		},
		Database: DatabaseConfig{
			Driver:          string(database.DriverMySQL),
			Address:         "localhost",
			MaxConns:        25,
			MaxIdleConns:    5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			ConnectTimeout:  10 * time.Second,
			QueryTimeout:    30 * time.Second,
		},
		Cache: CacheConfig{
			Type: "memory",
			TTL:  10 * time.Second,
		},
		Joins: JoinsConfig{MaxRecords: -1},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path (if it exists) over the defaults and applies environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration values that cannot work.
func (c *Config) Validate() error {
	for _, name := range c.Server.Controllers {
		switch name {
		case ControllerRecords, ControllerColumns, ControllerStatus:
		default:
			return fmt.Errorf("config: unknown controller %q", name)
		}
	}
	switch database.Driver(c.Database.Driver) {
	case database.DriverMySQL, database.DriverPostgres, database.DriverSQLServer:
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	switch c.Cache.Type {
	case "none", "memory":
	case "objectstore":
		if c.Cache.Endpoint == "" || c.Cache.Bucket == "" {
			return errors.New("config: objectstore cache needs endpoint and bucket")
		}
	default:
		return fmt.Errorf("config: unknown cache type %q", c.Cache.Type)
	}
	if (c.Tenancy.Column == "") != (c.Tenancy.Header == "") {
		return errors.New("config: tenancy needs both column and header")
	}
	return nil
}

// --- environment overrides ---

type envVar struct {
	name string
	set  func(c *Config, v string) error
}

var envVars = []envVar{
	{"RESTDB_ADDRESS", func(c *Config, v string) error { c.Server.Address = v; return nil }},
	{"RESTDB_CONTROLLERS", func(c *Config, v string) error { c.Server.Controllers = splitList(v); return nil }},
	{"RESTDB_DB_DRIVER", func(c *Config, v string) error { c.Database.Driver = v; return nil }},
	{"RESTDB_DB_ADDRESS", func(c *Config, v string) error { c.Database.Address = v; return nil }},
	{"RESTDB_DB_PORT", func(c *Config, v string) error { return setInt(&c.Database.Port, v) }},
	{"RESTDB_DB_USERNAME", func(c *Config, v string) error { c.Database.Username = v; return nil }},
	{"RESTDB_DB_PASSWORD", func(c *Config, v string) error { c.Database.Password = v; return nil }},
	{"RESTDB_DB_DATABASE", func(c *Config, v string) error { c.Database.Database = v; return nil }},
	{"RESTDB_DB_DSN", func(c *Config, v string) error { c.Database.DSN = v; return nil }},
	{"RESTDB_DB_TABLES", func(c *Config, v string) error { c.Database.Tables = splitList(v); return nil }},
	{"RESTDB_CACHE_TYPE", func(c *Config, v string) error { c.Cache.Type = v; return nil }},
	{"RESTDB_CACHE_TTL", func(c *Config, v string) error { return setDuration(&c.Cache.TTL, v) }},
	{"RESTDB_CACHE_ENDPOINT", func(c *Config, v string) error { c.Cache.Endpoint = v; return nil }},
	{"RESTDB_CACHE_ACCESS_KEY", func(c *Config, v string) error { c.Cache.AccessKey = v; return nil }},
	{"RESTDB_CACHE_SECRET_KEY", func(c *Config, v string) error { c.Cache.SecretKey = v; return nil }},
	{"RESTDB_CACHE_BUCKET", func(c *Config, v string) error { c.Cache.Bucket = v; return nil }},
	{"RESTDB_JOINS_MAX_RECORDS", func(c *Config, v string) error { return setInt(&c.Joins.MaxRecords, v) }},
	{"RESTDB_TENANCY_COLUMN", func(c *Config, v string) error { c.Tenancy.Column = v; return nil }},
	{"RESTDB_TENANCY_HEADER", func(c *Config, v string) error { c.Tenancy.Header = v; return nil }},
	{"RESTDB_LOG_LEVEL", func(c *Config, v string) error { c.Logging.Level = v; return nil }},
	{"RESTDB_LOG_FORMAT", func(c *Config, v string) error { c.Logging.Format = v; return nil }},
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for _, ev := range envVars {
		v, ok := lookup(ev.name)
		if !ok {
			continue
		}
		if err := ev.set(c, v); err != nil {
			return fmt.Errorf("config: %s: %w", ev.name, err)
		}
	}
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, v string) error {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// --- derived configs ---

// DatabaseConfig converts the file section into the connection config the
// driver packages consume.
func (d DatabaseConfig) DatabaseConfig() *database.Config {
	return &database.Config{
		Driver:          database.Driver(d.Driver),
		Address:         d.Address,
		Port:            d.Port,
		Username:        d.Username,
		Password:        d.Password,
		Database:        d.Database,
		DSN:             d.DSN,
		Tables:          d.Tables,
		MaxConns:        d.MaxConns,
		MaxIdleConns:    d.MaxIdleConns,
		MaxConnLifetime: d.MaxConnLifetime,
		MaxConnIdleTime: d.MaxConnIdleTime,
		ConnectTimeout:  d.ConnectTimeout,
		QueryTimeout:    d.QueryTimeout,
	}
}

// FilestoreConfig returns the object store settings backing the objectstore cache.
func (c CacheConfig) FilestoreConfig() *filestore.Config {
	cfg := filestore.DefaultConfig(c.Endpoint, c.AccessKey, c.SecretKey)
	cfg.UseSSL = c.UseSSL
	cfg.DefaultBucket = c.Bucket
	return cfg
}

// LoggerConfig returns the logger settings.
func (l LoggingConfig) LoggerConfig() *logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = l.Level
	cfg.Format = l.Format
	return cfg
}
