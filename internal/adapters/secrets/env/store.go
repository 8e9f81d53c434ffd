package env

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/bnema/pttsync/internal/domain"
	"github.com/bnema/pttsync/internal/ports"
)

const DefaultPrefix = "PTTSYNC_"

// Store resolves secrets from environment variables. A key such as
// "pttsync/auth-secret" maps to PTTSYNC_AUTH_SECRET: only the last path
// segment is used, upper-cased, with every non-alphanumeric rune turned
// into an underscore.
type Store struct {
	prefix string
	lookup func(string) (string, bool)
}

var _ ports.SecretStore = (*Store)(nil)

func NewStore(prefix string) *Store {
	return &Store{prefix: prefix, lookup: os.LookupEnv}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name, err := s.VariableFor(key)
	if err != nil {
		return "", err
	}

	value, ok := s.lookup(name)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("env secret %s: %w", name, domain.ErrSecretNotFound)
	}
	return value, nil
}

func (s *Store) Put(_ context.Context, key string, _ string) error {
	return fmt.Errorf("env secret %q: %w", key, domain.ErrSecretReadOnly)
}

func (s *Store) Delete(_ context.Context, key string) error {
	return fmt.Errorf("env secret %q: %w", key, domain.ErrSecretReadOnly)
}

func (s *Store) VariableFor(key string) (string, error) {
	trimmed := strings.Trim(strings.TrimSpace(key), "/")
	if trimmed == "" {
		return "", errors.New("secret key is empty")
	}

	base := path.Base(trimmed)
	var b strings.Builder
	b.WriteString(s.prefix)
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String(), nil
}
