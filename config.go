package conduit

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidConfig is returned when a configuration value is out of range
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config holds the controller and demo server settings read from config.yaml.
type Config struct {
	viper          *viper.Viper
	ConfigDir      string   `mapstructure:"config_dir"`      // Directory holding config.yaml
	DefaultFormat  string   `mapstructure:"default_format"`  // Format used when the request expresses no preference
	RedirectStatus int      `mapstructure:"redirect_status"` // Status used by HTML redirects after successful mutations
	MaxBodyBytes   int64    `mapstructure:"max_body_bytes"`  // Limit for raw bodies handed to operations by Respond
	Pretty         bool     `mapstructure:"pretty"`          // Indent rendered JSON, XML and HTML
	Database       string   `mapstructure:"database"`        // SQLite file for the journal and the demo articles
	ListenAddress  string   `mapstructure:"listen_address"`  // Address of the demo server
	LuaScript      string   `mapstructure:"lua_script"`      // Optional Lua params processor script
	Journal        bool     `mapstructure:"journal"`         // Record dispatches to the database
	JournalScope   []string `mapstructure:"journal_scope"`   // Scope rules of the journal, see ParseScope
}

// DefaultConfig returns a Config populated with the default values and no backing file.
func DefaultConfig() *Config {
	return &Config{
		DefaultFormat:  string(FormatHTML),
		RedirectStatus: http.StatusSeeOther,
		MaxBodyBytes:   1 << 20,
		Pretty:         false,
		Database:       "conduit.db",
		ListenAddress:  "127.0.0.1:8080",
		Journal:        true,
	}
}

// LoadConfig reads config.yaml from configDir, creating the directory and the file with defaults if needed.
// Relative database and script paths are resolved against configDir.
func LoadConfig(configDir string) (*Config, error) {
	_, err := os.ReadDir(configDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("checking if directory exists %s: %w", configDir, err)
		}
		if err := os.MkdirAll(configDir, 0700); err != nil {
			return nil, fmt.Errorf("creating config dir %s: %w", configDir, err)
		}
	}

	defaults := DefaultConfig()
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.SetEnvPrefix("conduit")
	v.AutomaticEnv()
	v.SetDefault("default_format", defaults.DefaultFormat)
	v.SetDefault("redirect_status", defaults.RedirectStatus)
	v.SetDefault("max_body_bytes", defaults.MaxBodyBytes)
	v.SetDefault("pretty", defaults.Pretty)
	v.SetDefault("database", defaults.Database)
	v.SetDefault("listen_address", defaults.ListenAddress)
	v.SetDefault("lua_script", defaults.LuaScript)
	v.SetDefault("journal", defaults.Journal)
	v.SetDefault("journal_scope", []string{})

	err = v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file : %w", err)
		}
		if err := v.SafeWriteConfig(); err != nil {
			return nil, fmt.Errorf("writing config file : %w", err)
		}
	}

	cfg := &Config{viper: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config to struct : %w", err)
	}
	cfg.ConfigDir = configDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the settings are usable.
func (cfg *Config) Validate() error {
	if _, ok := ParseFormat(cfg.DefaultFormat); !ok {
		return fmt.Errorf("default_format %q : %w", cfg.DefaultFormat, ErrInvalidConfig)
	}
	if cfg.RedirectStatus < 300 || cfg.RedirectStatus > 399 {
		return fmt.Errorf("redirect_status %d : %w", cfg.RedirectStatus, ErrInvalidConfig)
	}
	if cfg.MaxBodyBytes < 0 {
		return fmt.Errorf("max_body_bytes %d : %w", cfg.MaxBodyBytes, ErrInvalidConfig)
	}
	if _, err := ParseScope(cfg.JournalScope); err != nil {
		return fmt.Errorf("journal_scope : %w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Format returns the parsed default format.
func (cfg *Config) Format() Format {
	format, ok := ParseFormat(cfg.DefaultFormat)
	if !ok {
		return FormatHTML
	}
	return format
}

// Path resolves a path setting against the config directory.
func (cfg *Config) Path(name string) string {
	if name == "" || filepath.IsAbs(name) || cfg.ConfigDir == "" {
		return name
	}
	return filepath.Join(cfg.ConfigDir, name)
}

// Set updates a single setting and writes the configuration file back.
func (cfg *Config) Set(key string, value any) error {
	if cfg.viper == nil {
		return errors.New("config has no backing file")
	}
	previous := cfg.viper.Get(key)
	cfg.viper.Set(key, value)

	updated := &Config{viper: cfg.viper}
	if err := cfg.viper.Unmarshal(updated); err != nil {
		cfg.viper.Set(key, previous)
		return fmt.Errorf("unmarshalling config to struct : %w", err)
	}
	updated.ConfigDir = cfg.ConfigDir
	if err := updated.Validate(); err != nil {
		cfg.viper.Set(key, previous)
		return err
	}

	if err := cfg.viper.WriteConfig(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	*cfg = *updated
	return nil
}

// Settings returns the current settings keyed by their names in config.yaml.
func (cfg *Config) Settings() map[string]any {
	return map[string]any{
		"default_format":  cfg.DefaultFormat,
		"redirect_status": cfg.RedirectStatus,
		"max_body_bytes":  cfg.MaxBodyBytes,
		"pretty":          cfg.Pretty,
		"database":        cfg.Database,
		"listen_address":  cfg.ListenAddress,
		"lua_script":      cfg.LuaScript,
		"journal":         cfg.Journal,
		"journal_scope":   cfg.JournalScope,
	}
}
