// Package config loads configuration from defaults, an optional YAML file,
// and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where a config file is searched, first hit wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/scaletrack/config.yaml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Source modes.
const (
	ModePostgres = "postgres"
	ModeREST     = "rest"
	ModeMemory   = "memory"
)

type ServerConfig struct {
	Addr   string `koanf:"addr"`
	WebDir string `koanf:"webdir"`
}

type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// SourceConfig selects where records live: the embedded PostgreSQL source,
// a remote HTTP API, or the in-memory source for development.
type SourceConfig struct {
	Mode    string  `koanf:"mode"`
	BaseURL string  `koanf:"baseurl"`
	Token   string  `koanf:"token"`
	RPS     float64 `koanf:"rps"`
}

type OIDCConfig struct {
	Issuer       string `koanf:"issuer"`
	ClientID     string `koanf:"clientid"`
	ClientSecret string `koanf:"clientsecret"`
	RedirectURL  string `koanf:"redirecturl"`
}

// Enabled reports whether an OIDC issuer was configured.
func (c OIDCConfig) Enabled() bool {
	return c.Issuer != ""
}

type AuthConfig struct {
	Disabled   bool          `koanf:"disabled"`
	SessionTTL time.Duration `koanf:"ttl"`
	OIDC       OIDCConfig    `koanf:"oidc"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Source   SourceConfig   `koanf:"source"`
	Auth     AuthConfig     `koanf:"auth"`
	Log      LogConfig      `koanf:"log"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:   ":8080",
			WebDir: "web",
		},
		Source: SourceConfig{
			Mode: ModePostgres,
			RPS:  0, // unlimited
		},
		Auth: AuthConfig{
			Disabled:   false,
			SessionTTL: 24 * time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Source.Mode {
	case ModePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database url is required in %s mode", ModePostgres)
		}
	case ModeREST:
		if c.Source.BaseURL == "" {
			return fmt.Errorf("source base url is required in %s mode", ModeREST)
		}
	case ModeMemory:
	default:
		return fmt.Errorf("unknown source mode %q", c.Source.Mode)
	}

	if c.Auth.OIDC.Enabled() {
		if c.Auth.OIDC.ClientID == "" || c.Auth.OIDC.ClientSecret == "" || c.Auth.OIDC.RedirectURL == "" {
			return fmt.Errorf("oidc requires client id, client secret, and redirect url")
		}
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps environment variable names to config paths. Unmapped
// variables are ignored so unrelated environment noise cannot leak into the
// configuration.
var envMappings = map[string]string{
	"addr":               "server.addr",
	"web_dir":            "server.webdir",
	"database_url":       "database.url",
	"source_mode":        "source.mode",
	"source_base_url":    "source.baseurl",
	"source_token":       "source.token",
	"source_rps":         "source.rps",
	"auth_disabled":      "auth.disabled",
	"session_ttl":        "auth.ttl",
	"oidc_issuer":        "auth.oidc.issuer",
	"oidc_client_id":     "auth.oidc.clientid",
	"oidc_client_secret": "auth.oidc.clientsecret",
	"oidc_redirect_url":  "auth.oidc.redirecturl",
	"log_level":          "log.level",
}

func envTransform(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
