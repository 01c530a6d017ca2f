package quill

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syssam/quill/dialect"
	"github.com/syssam/quill/dialect/remote"
	"github.com/syssam/quill/dialect/sql"
)

// Duration is a time.Duration that unmarshals from YAML strings such
// as "150ms" or "1h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("quill: invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Config assembles a Client from declarative settings, typically
// loaded from a YAML file.
type Config struct {
	// Dialect is one of sqlite, postgres, mysql or remote.
	Dialect string `yaml:"dialect"`
	// Source is the driver DSN, or the endpoint URL for remote.
	Source string `yaml:"source"`
	// AuthToken authenticates against a remote endpoint.
	AuthToken string `yaml:"auth_token"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`

	// SlowThreshold enables query statistics; queries slower than it
	// are logged.
	SlowThreshold Duration `yaml:"slow_threshold"`
	// Debug logs every statement before it runs.
	Debug bool `yaml:"debug"`

	// CacheTTL enables result caching with the given lifetime.
	CacheTTL Duration `yaml:"cache_ttl"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("quill: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("quill: parse config: %w", err)
	}
	if cfg.Dialect == "" {
		return nil, fmt.Errorf("quill: config %s: dialect is required", path)
	}
	return &cfg, nil
}

// Open builds a Client from the config, layering stats, debug and
// cache drivers as configured.
func (cfg *Config) Open() (*Client, error) {
	drv, err := cfg.driver()
	if err != nil {
		return nil, err
	}
	if cfg.SlowThreshold > 0 {
		drv = sql.NewStatsDriver(drv, sql.WithSlowThreshold(time.Duration(cfg.SlowThreshold)), sql.WithSlowQueryLog())
	}
	if cfg.Debug {
		drv = sql.NewDebugDriver(drv, nil)
	}
	var opts []ClientOption
	if cfg.CacheTTL > 0 {
		opts = append(opts, WithCache(NewTTLCache(), time.Duration(cfg.CacheTTL)))
	}
	slog.Debug("quill: opening client", "dialect", cfg.Dialect)
	return NewClient(drv, opts...)
}

func (cfg *Config) driver() (dialect.Driver, error) {
	if cfg.Dialect == dialect.Remote {
		var opts []remote.Option
		if cfg.AuthToken != "" {
			opts = append(opts, remote.WithToken(cfg.AuthToken))
		}
		return remote.Open(cfg.Source, opts...), nil
	}
	drv, err := sql.Open(cfg.Dialect, cfg.Source)
	if err != nil {
		return nil, err
	}
	db := drv.DB()
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime))
	}
	return drv, nil
}
