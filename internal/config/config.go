// Package config resolves pttsync settings from the TOML config file,
// PTTSYNC_* environment variables and built-in defaults, in that order of
// increasing precedence for the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	envPrefix  = "PTTSYNC"

	appDirName = "pttsync"

	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Stream StreamConfig `mapstructure:"stream"`
	Topics TopicsConfig `mapstructure:"topics"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	// BaseURL wins over Subdomain when both are set.
	BaseURL   string `mapstructure:"base_url"`
	Subdomain string `mapstructure:"subdomain"`
	Domain    string `mapstructure:"domain"`
}

type AuthConfig struct {
	SecretRef string `mapstructure:"secret_ref"`
	SecretDir string `mapstructure:"secret_dir"`
}

type CacheConfig struct {
	Path    string `mapstructure:"path"`
	Backend string `mapstructure:"backend"`
}

type StreamConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBufferBytes int           `mapstructure:"max_buffer_bytes"`
}

type TopicsConfig struct {
	Alarm   TopicConfig `mapstructure:"alarm"`
	Channel TopicConfig `mapstructure:"channel"`
}

type TopicConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Paths are the per-user locations pttsync reads and writes by default.
type Paths struct {
	ConfigFile string
	SecretDir  string
	CacheDir   string
}

func DefaultPaths() (Paths, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", appDirName)
	return Paths{
		ConfigFile: filepath.Join(configDir, configName+"."+configType),
		SecretDir:  filepath.Join(configDir, "secrets"),
		CacheDir:   filepath.Join(homeDir, ".cache", appDirName),
	}, nil
}

func setDefaults(v *viper.Viper, paths Paths) {
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.subdomain", "")
	v.SetDefault("server.domain", "ptt.example.com")
	v.SetDefault("auth.secret_ref", "pttsync/auth-secret")
	v.SetDefault("auth.secret_dir", paths.SecretDir)
	v.SetDefault("cache.path", "")
	v.SetDefault("cache.backend", BackendJSON)
	v.SetDefault("stream.request_timeout", "10m")
	v.SetDefault("stream.max_buffer_bytes", 1<<20)
	v.SetDefault("topics.alarm.max_retries", 5)
	v.SetDefault("topics.alarm.retry_delay", "3s")
	v.SetDefault("topics.channel.max_retries", 3)
	v.SetDefault("topics.channel.retry_delay", "5s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configFile (or the default location when empty). A missing file
// is not an error.
func Load(v *viper.Viper, configFile string) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	paths, err := DefaultPaths()
	if err != nil {
		return Config{}, err
	}

	v.SetConfigType(configType)
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(filepath.Dir(paths.ConfigFile))
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, paths)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = filepath.Join(paths.CacheDir, defaultCacheFile(cfg.Cache.Backend))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaultCacheFile(backend string) string {
	if backend == BackendSQLite {
		return "history.db"
	}
	return "history.json"
}

func (c Config) Validate() error {
	var errs []error

	if c.Server.BaseURL != "" {
		parsed, err := url.Parse(c.Server.BaseURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("server.base_url %q must be an absolute http(s) url", c.Server.BaseURL))
		}
	}
	if c.Server.Subdomain != "" && strings.ContainsAny(c.Server.Subdomain, "/:. ") {
		errs = append(errs, fmt.Errorf("server.subdomain %q must be a single dns label", c.Server.Subdomain))
	}
	if strings.TrimSpace(c.Auth.SecretRef) == "" {
		errs = append(errs, errors.New("auth.secret_ref is required"))
	}
	switch c.Cache.Backend {
	case BackendJSON, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q must be %q or %q", c.Cache.Backend, BackendJSON, BackendSQLite))
	}
	if c.Stream.RequestTimeout <= 0 {
		errs = append(errs, errors.New("stream.request_timeout must be positive"))
	}
	if c.Stream.MaxBufferBytes <= 0 {
		errs = append(errs, errors.New("stream.max_buffer_bytes must be positive"))
	}
	for name, topic := range map[string]TopicConfig{"alarm": c.Topics.Alarm, "channel": c.Topics.Channel} {
		if topic.MaxRetries < 0 {
			errs = append(errs, fmt.Errorf("topics.%s.max_retries must not be negative", name))
		}
		if topic.RetryDelay <= 0 {
			errs = append(errs, fmt.Errorf("topics.%s.retry_delay must be positive", name))
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}

	return errors.Join(errs...)
}

var ErrServerNotConfigured = errors.New("server.base_url or server.subdomain must be set")

// BaseURL is the explicit base URL, or https://<subdomain>.<domain>.
func (c Config) BaseURL() (string, error) {
	if c.Server.BaseURL != "" {
		return strings.TrimRight(c.Server.BaseURL, "/"), nil
	}
	if c.Server.Subdomain == "" {
		return "", ErrServerNotConfigured
	}
	if c.Server.Domain == "" {
		return "", errors.New("server.domain is required with server.subdomain")
	}
	return "https://" + c.Server.Subdomain + "." + c.Server.Domain, nil
}
