package chain

import (
	"context"
	"errors"
	"fmt"

	envstore "github.com/bnema/pttsync/internal/adapters/secrets/env"
	filestore "github.com/bnema/pttsync/internal/adapters/secrets/file"
	passstore "github.com/bnema/pttsync/internal/adapters/secrets/pass"
	"github.com/bnema/pttsync/internal/domain"
	"github.com/bnema/pttsync/internal/ports"
)

// Store consults its backends in order. Reads return the first hit; writes
// land in the first backend that accepts them; deletes reach every writable
// backend.
type Store struct {
	backends []ports.SecretStore
}

var _ ports.SecretStore = (*Store)(nil)

var errNoBackends = errors.New("secret chain needs at least one backend")

func NewStore(backends ...ports.SecretStore) (*Store, error) {
	if len(backends) == 0 {
		return nil, errNoBackends
	}
	for i, backend := range backends {
		if backend == nil {
			return nil, fmt.Errorf("secret backend %d is nil", i)
		}
	}
	return &Store{backends: backends}, nil
}

// NewDefault resolves environment variables first, then pass, then plain
// files under fileRoot.
func NewDefault(envPrefix string, fileRoot string) (*Store, error) {
	return NewStore(envstore.NewStore(envPrefix), passstore.NewStore(), filestore.NewStore(fileRoot))
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var errs []error
	for _, backend := range s.backends {
		value, err := backend.Get(ctx, key)
		if err == nil {
			return value, nil
		}
		if isContextErr(err) {
			return "", err
		}
		errs = append(errs, err)
	}

	return "", fmt.Errorf("resolve secret %q: %w", key, summarize(errs))
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	var errs []error
	for _, backend := range s.backends {
		err := backend.Put(ctx, key, value)
		if err == nil {
			return nil
		}
		if isContextErr(err) {
			return err
		}
		if errors.Is(err, domain.ErrSecretReadOnly) {
			continue
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return fmt.Errorf("store secret %q: %w", key, domain.ErrSecretReadOnly)
	}

	return fmt.Errorf("store secret %q: %w", key, errors.Join(errs...))
}

func (s *Store) Delete(ctx context.Context, key string) error {
	var errs []error
	for _, backend := range s.backends {
		err := backend.Delete(ctx, key)
		if err == nil || errors.Is(err, domain.ErrSecretReadOnly) || errors.Is(err, passstore.ErrUnavailable) {
			continue
		}
		if isContextErr(err) {
			return err
		}
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("delete secret %q: %w", key, errors.Join(errs...))
	}
	return nil
}

// summarize reports plain not-found when no backend failed for another
// reason, so callers can tell "unset" from "broken".
func summarize(errs []error) error {
	var broken []error
	for _, err := range errs {
		if !errors.Is(err, domain.ErrSecretNotFound) && !errors.Is(err, passstore.ErrUnavailable) {
			broken = append(broken, err)
		}
	}
	if len(broken) > 0 {
		return errors.Join(broken...)
	}
	return fmt.Errorf("%w: %w", domain.ErrSecretNotFound, errors.Join(errs...))
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
