// Package config loads runtime settings from defaults, an optional config
// file and CHOICEGRAPH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const EnvPrefix = "CHOICEGRAPH"

// Save backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

type Log struct {
	Level  string
	Format string
}

type Saves struct {
	Backend    string
	Dir        string
	SQLitePath string
	BadgerPath string
}

type HTTP struct {
	Addr           string
	AllowedOrigins []string
}

// Config is the merged configuration.
type Config struct {
	Log         Log
	Saves       Saves
	AutoSave    bool
	HTTP        HTTP
	DatabaseURL string
}

func defaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("saves.backend", BackendFile)
	v.SetDefault("saves.dir", "saves")
	v.SetDefault("saves.sqlite_path", "saves.db")
	v.SetDefault("saves.badger_path", "saves.badger")
	v.SetDefault("runtime.autosave", true)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allowed_origins", []string{"http://localhost:3003"})
	v.SetDefault("database.url", "")
}

// Load reads configuration. An explicit path must exist; without one a
// choicegraph.{yaml,json,toml} in the working directory is used if present.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("choicegraph")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{
		Log: Log{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Saves: Saves{
			Backend:    strings.ToLower(v.GetString("saves.backend")),
			Dir:        v.GetString("saves.dir"),
			SQLitePath: v.GetString("saves.sqlite_path"),
			BadgerPath: v.GetString("saves.badger_path"),
		},
		AutoSave: v.GetBool("runtime.autosave"),
		HTTP: HTTP{
			Addr:           v.GetString("http.addr"),
			AllowedOrigins: origins(v.GetStringSlice("http.allowed_origins")),
		},
		DatabaseURL: v.GetString("database.url"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// origins splits comma-separated entries, as an env var arrives as one
// string.
func origins(raw []string) []string {
	var out []string
	for _, r := range raw {
		for _, o := range strings.Split(r, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}

func (c *Config) Validate() error {
	switch c.Saves.Backend {
	case BackendFile, BackendSQLite, BackendBadger:
	default:
		return fmt.Errorf("unknown saves.backend %q (want file, sqlite or badger)", c.Saves.Backend)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}
