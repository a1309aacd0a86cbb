package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pthm/strata/internal/database"
)

const (
	maxWalkDepth = 25
)

// Config represents the strata configuration from strata.yaml.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database" json:"database"`
	Cache      CacheConfig      `mapstructure:"cache" json:"cache"`
	Privileges PrivilegesConfig `mapstructure:"privileges" json:"privileges"`
	Editor     EditorConfig     `mapstructure:"editor" json:"editor"`
	Log        LogConfig        `mapstructure:"log" json:"log"`
	Doctor     DoctorConfig     `mapstructure:"doctor" json:"doctor"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver" json:"driver"`
	URL      string `mapstructure:"url" json:"url,omitempty"`
	Host     string `mapstructure:"host" json:"host,omitempty"`
	Port     int    `mapstructure:"port" json:"port,omitempty"`
	Name     string `mapstructure:"name" json:"name,omitempty"`
	User     string `mapstructure:"user" json:"user,omitempty"`
	Password string `mapstructure:"password" json:"password,omitempty"`
	SSLMode  string `mapstructure:"sslmode" json:"sslmode,omitempty"`
	Path     string `mapstructure:"path" json:"path,omitempty"`
}

// CacheConfig holds process cache settings.
type CacheConfig struct {
	// TTL bounds the age of cached lookups. Zero keeps them for the life
	// of the process.
	TTL time.Duration `mapstructure:"ttl" json:"ttl"`
}

// PrivilegesConfig holds privilege resolution settings.
type PrivilegesConfig struct {
	DefaultRole string `mapstructure:"default_role" json:"default_role"`
	TableFile   string `mapstructure:"table_file" json:"table_file,omitempty"`
}

// EditorConfig holds HTML editor settings.
type EditorConfig struct {
	Default string `mapstructure:"default" json:"default"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// DoctorConfig holds doctor command settings.
type DoctorConfig struct {
	Verbose bool `mapstructure:"verbose" json:"verbose"`
}

// LoadConfig discovers and loads configuration with proper precedence:
// flags > env > config file > defaults.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	// 1. Set defaults first (lowest precedence)
	setDefaults(v)

	// 2. Set up environment variable binding
	v.SetEnvPrefix("STRATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 3. Find and load config file
	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	// 4. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	// Database defaults. Port 0 means the driver's default port.
	v.SetDefault("database.driver", string(database.Postgres))
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "prefer")
	v.SetDefault("database.path", "")

	v.SetDefault("cache.ttl", "0s")

	v.SetDefault("privileges.default_role", "editor_user_role")
	v.SetDefault("privileges.table_file", "")

	v.SetDefault("editor.default", "plain")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("doctor.verbose", false)
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for strata.yaml or strata.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range []string{"strata.yaml", "strata.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		// Check for repo boundary (.git file or directory)
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil // No config found, use defaults
}

// DatabaseOptions converts the database section for database.Open.
func (c *Config) DatabaseOptions() database.Options {
	db := c.Database
	return database.Options{
		Driver:   database.Driver(strings.ToLower(db.Driver)),
		URL:      db.URL,
		Host:     db.Host,
		Port:     db.Port,
		Name:     db.Name,
		User:     db.User,
		Password: db.Password,
		SSLMode:  db.SSLMode,
		Path:     db.Path,
	}
}

// DSN returns the database connection string.
// If database.url is set, it's returned directly (MySQL DSNs gain the
// session sql_mode). Otherwise, builds a DSN from discrete fields.
func (c *Config) DSN() (string, error) {
	return c.DatabaseOptions().DSN()
}

// Validate checks settings that would otherwise fail later with a less
// useful message.
func (c *Config) Validate() error {
	var errs []error
	if _, err := database.ParseDriver(c.Database.Driver); err != nil {
		errs = append(errs, fmt.Errorf("database.driver: %w", err))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must not be negative, got %s", c.Cache.TTL))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Privileges.TableFile != "" {
		if _, err := os.Stat(c.Privileges.TableFile); err != nil {
			errs = append(errs, fmt.Errorf("privileges.table_file: %w", err))
		}
	}
	return errors.Join(errs...)
}

// LogLevel parses log.level. An empty level is info.
func (c *Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	if c.Log.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// Redacted returns a copy with credentials masked, for display.
func (c *Config) Redacted() Config {
	out := *c
	if out.Database.Password != "" {
		out.Database.Password = "****"
	}
	if u, err := url.Parse(out.Database.URL); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "****")
			out.Database.URL = u.String()
		}
	}
	return out
}
