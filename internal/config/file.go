package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	configFileMode = 0o600
	configDirMode  = 0o700
)

var ErrConfigExists = errors.New("config file already exists")

// fileSchema mirrors Config with durations spelled as Go duration strings,
// which is what viper decodes back.
type fileSchema struct {
	Server serverSchema `toml:"server"`
	Auth   authSchema   `toml:"auth"`
	Cache  cacheSchema  `toml:"cache"`
	Stream streamSchema `toml:"stream"`
	Topics topicsSchema `toml:"topics"`
	Log    logSchema    `toml:"log"`
}

type serverSchema struct {
	BaseURL   string `toml:"base_url" comment:"Overrides subdomain/domain when set"`
	Subdomain string `toml:"subdomain"`
	Domain    string `toml:"domain"`
}

type authSchema struct {
	SecretRef string `toml:"secret_ref" comment:"Key looked up in PTTSYNC_* env, pass, then secret_dir"`
	SecretDir string `toml:"secret_dir"`
}

type cacheSchema struct {
	Path    string `toml:"path"`
	Backend string `toml:"backend" comment:"json or sqlite"`
}

type streamSchema struct {
	RequestTimeout string `toml:"request_timeout"`
	MaxBufferBytes int    `toml:"max_buffer_bytes"`
}

type topicsSchema struct {
	Alarm   topicSchema `toml:"alarm"`
	Channel topicSchema `toml:"channel"`
}

type topicSchema struct {
	MaxRetries int    `toml:"max_retries"`
	RetryDelay string `toml:"retry_delay"`
}

type logSchema struct {
	Level  string `toml:"level" comment:"debug, info, warn or error"`
	Format string `toml:"format" comment:"text or json"`
}

func toSchema(cfg Config) fileSchema {
	return fileSchema{
		Server: serverSchema{BaseURL: cfg.Server.BaseURL, Subdomain: cfg.Server.Subdomain, Domain: cfg.Server.Domain},
		Auth:   authSchema{SecretRef: cfg.Auth.SecretRef, SecretDir: cfg.Auth.SecretDir},
		Cache:  cacheSchema{Path: cfg.Cache.Path, Backend: cfg.Cache.Backend},
		Stream: streamSchema{
			RequestTimeout: cfg.Stream.RequestTimeout.String(),
			MaxBufferBytes: cfg.Stream.MaxBufferBytes,
		},
		Topics: topicsSchema{
			Alarm:   topicSchema{MaxRetries: cfg.Topics.Alarm.MaxRetries, RetryDelay: cfg.Topics.Alarm.RetryDelay.String()},
			Channel: topicSchema{MaxRetries: cfg.Topics.Channel.MaxRetries, RetryDelay: cfg.Topics.Channel.RetryDelay.String()},
		},
		Log: logSchema{Level: cfg.Log.Level, Format: cfg.Log.Format},
	}
}

// Marshal renders cfg as a config file that Load reads back unchanged.
func Marshal(cfg Config) ([]byte, error) {
	data, err := toml.Marshal(toSchema(cfg))
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// Write stores cfg at path. An existing file is only replaced when overwrite
// is set.
func Write(path string, cfg Config, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat config file: %w", err)
		}
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), configDirMode); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), ".config-*.toml.tmp")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tempFile.Chmod(configFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	cleanup = false

	return nil
}
