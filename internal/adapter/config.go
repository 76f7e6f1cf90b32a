package adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mmcdole/kinomark/internal/store"
	"github.com/spf13/viper"
)

const appName = "kinomark"

// Config holds all application configuration
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	UI      UIConfig      `mapstructure:"ui"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StorageConfig selects the durable backend for saved movies
type StorageConfig struct {
	Backend string      `mapstructure:"backend"` // bolt, file, sqlite, redis, memory
	Path    string      `mapstructure:"path"`    // File or directory, depending on backend; empty picks a per-backend default
	Key     string      `mapstructure:"key"`     // Storage key for the collection
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	Prefix      string        `mapstructure:"prefix"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// UIConfig holds UI configuration
type UIConfig struct {
	Accent string `mapstructure:"accent"` // Hex color for highlights
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: string(store.BackendBolt),
			Key:     "savedMovies",
			Redis: RedisConfig{
				Addr:        "localhost:6379",
				Prefix:      appName + ":",
				DialTimeout: 5 * time.Second,
			},
		},
		UI: UIConfig{
			Accent: "#FF9C01",
		},
		Logging: LoggingConfig{
			File:  filepath.Join(defaultDataPath(), "kinomark.log"),
			Level: "INFO",
		},
	}
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), appName)
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", appName)
	}
}

// DefaultConfigPath returns the default config directory for the current OS
func DefaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), appName)
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", appName)
	}
}

// LoadConfig loads configuration from file, .env and environment.
// An explicit file that does not exist is an error; a missing default file is not.
func LoadConfig(file string) (*Config, error) {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	cfg := DefaultConfig()
	v := newViper(cfg)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultConfigPath())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	cfg.Storage.Path = expandHome(cfg.Storage.Path)
	cfg.Logging.File = expandHome(cfg.Logging.File)
	return cfg, nil
}

// newViper registers defaults so env vars can override keys absent from the file
func newViper(cfg *Config) *viper.Viper {
	v := viper.New()

	v.SetDefault("storage.backend", cfg.Storage.Backend)
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("storage.key", cfg.Storage.Key)
	v.SetDefault("storage.redis.addr", cfg.Storage.Redis.Addr)
	v.SetDefault("storage.redis.password", cfg.Storage.Redis.Password)
	v.SetDefault("storage.redis.db", cfg.Storage.Redis.DB)
	v.SetDefault("storage.redis.prefix", cfg.Storage.Redis.Prefix)
	v.SetDefault("storage.redis.dial_timeout", cfg.Storage.Redis.DialTimeout)
	v.SetDefault("ui.accent", cfg.UI.Accent)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)

	// Environment variable overrides (KINOMARK_STORAGE_BACKEND, ...)
	v.SetEnvPrefix(strings.ToUpper(appName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// SaveConfig writes cfg as YAML to file, or to the default location when empty
func SaveConfig(cfg *Config, file string) error {
	if file == "" {
		file = filepath.Join(DefaultConfigPath(), "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set("storage.backend", cfg.Storage.Backend)
	v.Set("storage.path", cfg.Storage.Path)
	v.Set("storage.key", cfg.Storage.Key)
	v.Set("storage.redis.addr", cfg.Storage.Redis.Addr)
	v.Set("storage.redis.password", cfg.Storage.Redis.Password)
	v.Set("storage.redis.db", cfg.Storage.Redis.DB)
	v.Set("storage.redis.prefix", cfg.Storage.Redis.Prefix)
	v.Set("storage.redis.dial_timeout", cfg.Storage.Redis.DialTimeout.String())
	v.Set("ui.accent", cfg.UI.Accent)
	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)

	if err := v.WriteConfigAs(file); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// StoragePath returns the configured path, or the default location for the
// selected backend. Backends without local files get "".
func (c *Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	switch store.Backend(strings.ToLower(c.Storage.Backend)) {
	case store.BackendBolt, "":
		return filepath.Join(defaultDataPath(), "kinomark.db")
	case store.BackendSQLite:
		return filepath.Join(defaultDataPath(), "kinomark.sqlite")
	case store.BackendFile:
		return filepath.Join(defaultDataPath(), "bookmarks")
	default:
		return ""
	}
}

// StoreOptions maps the storage section onto store.Options
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend: store.Backend(c.Storage.Backend),
		Path:    c.StoragePath(),
		Redis: store.RedisOptions{
			Addr:        c.Storage.Redis.Addr,
			Password:    c.Storage.Redis.Password,
			DB:          c.Storage.Redis.DB,
			Prefix:      c.Storage.Redis.Prefix,
			DialTimeout: c.Storage.Redis.DialTimeout,
		},
	}
}

// expandHome expands a leading ~ to the user's home directory
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
