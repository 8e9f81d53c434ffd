package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bnema/pttsync/internal/adapters/auth"
	"github.com/bnema/pttsync/internal/adapters/backend"
	historyrender "github.com/bnema/pttsync/internal/adapters/render/history"
	jsonrepo "github.com/bnema/pttsync/internal/adapters/repo/jsonfile"
	sqliterepo "github.com/bnema/pttsync/internal/adapters/repo/sqlite"
	chainstore "github.com/bnema/pttsync/internal/adapters/secrets/chain"
	envstore "github.com/bnema/pttsync/internal/adapters/secrets/env"
	"github.com/bnema/pttsync/internal/application"
	"github.com/bnema/pttsync/internal/clock"
	"github.com/bnema/pttsync/internal/config"
	"github.com/bnema/pttsync/internal/domain"
	"github.com/bnema/pttsync/internal/ports"
	"github.com/spf13/viper"
)

type app struct {
	configFile string

	cfg             config.Config
	logger          *slog.Logger
	secretStore     ports.SecretStore
	clock           ports.Clock
	httpClient      *http.Client
	historyRenderer func([]domain.HistoryRecord, historyrender.RenderOptions) (string, error)
}

func (a *app) wire(logOutput io.Writer) error {
	cfg, err := config.Load(viper.New(), a.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.Log, logOutput)
	if err != nil {
		return err
	}

	secretStore, err := chainstore.NewDefault(envstore.DefaultPrefix, cfg.Auth.SecretDir)
	if err != nil {
		return fmt.Errorf("wire secret store chain: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	a.secretStore = secretStore
	a.clock = clock.Real()
	a.httpClient = http.DefaultClient
	a.historyRenderer = historyrender.Render
	return nil
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("parse log.level %q: %w", cfg.Level, err)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), nil
}

// configPath is where `config init` writes and `config show` reports.
func (a *app) configPath() (string, error) {
	if a.configFile != "" {
		return a.configFile, nil
	}
	paths, err := config.DefaultPaths()
	if err != nil {
		return "", err
	}
	return paths.ConfigFile, nil
}

func (a *app) openHistoryStore() (ports.HistoryStore, func(), error) {
	switch a.cfg.Cache.Backend {
	case config.BackendSQLite:
		store, err := sqliterepo.New(a.cfg.Cache.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite history cache: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		store, err := jsonrepo.NewStore(a.cfg.Cache.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open json history cache: %w", err)
		}
		return store, func() {}, nil
	}
}

// openHistoryCache returns the cache and a release func that flushes queued
// mutations before closing the store.
func (a *app) openHistoryCache(ctx context.Context) (*application.HistoryCache, func(), error) {
	store, closeStore, err := a.openHistoryStore()
	if err != nil {
		return nil, nil, err
	}

	cache := application.NewHistoryCache(ctx, store, a.clock, a.logger)
	return cache, func() {
		cache.Close()
		closeStore()
	}, nil
}

func (a *app) credentials(ctx context.Context) (auth.Credentials, error) {
	ref := a.cfg.Auth.SecretRef
	secret, err := a.secretStore.Get(ctx, ref)
	if err != nil {
		if errors.Is(err, domain.ErrSecretNotFound) {
			hint := "run `pttsync secret set`"
			if name, nameErr := envstore.NewStore(envstore.DefaultPrefix).VariableFor(ref); nameErr == nil {
				hint += " or export " + name
			}
			return auth.Credentials{}, fmt.Errorf("shared secret %q is not configured (%s): %w", ref, hint, err)
		}
		return auth.Credentials{}, fmt.Errorf("load shared secret: %w", err)
	}

	return auth.Credentials{Secret: strings.TrimSpace(secret)}, nil
}

func (a *app) backendClient(ctx context.Context) (*backend.Client, error) {
	baseURL, err := a.cfg.BaseURL()
	if err != nil {
		return nil, err
	}
	creds, err := a.credentials(ctx)
	if err != nil {
		return nil, err
	}

	return backend.NewClient(baseURL, creds,
		backend.WithClock(a.clock),
		backend.WithLogger(a.logger),
	)
}
