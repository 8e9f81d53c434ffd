package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	passstore "github.com/bnema/pttsync/internal/adapters/secrets/pass"
	"github.com/bnema/pttsync/internal/domain"
	"github.com/bnema/pttsync/internal/ports"
	portmocks "github.com/bnema/pttsync/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testKey = "pttsync/auth-secret"

func newChain(t *testing.T, n int) (*Store, []*portmocks.MockSecretStore) {
	t.Helper()

	backends := make([]*portmocks.MockSecretStore, n)
	stores := make([]ports.SecretStore, n)
	for i := range backends {
		backends[i] = portmocks.NewMockSecretStore(t)
		stores[i] = backends[i]
	}

	chain, err := NewStore(stores...)
	require.NoError(t, err)
	return chain, backends
}

func TestStoreGetReturnsFirstHit(t *testing.T) {
	t.Parallel()

	store, backends := newChain(t, 3)
	backends[0].EXPECT().Get(mock.Anything, testKey).Return("", fmt.Errorf("env: %w", domain.ErrSecretNotFound)).Once()
	backends[1].EXPECT().Get(mock.Anything, testKey).Return("from-pass", nil).Once()

	value, err := store.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "from-pass", value)
}

func TestStoreGetReportsNotFoundWhenEveryBackendMisses(t *testing.T) {
	t.Parallel()

	store, backends := newChain(t, 2)
	backends[0].EXPECT().Get(mock.Anything, testKey).Return("", fmt.Errorf("env: %w", domain.ErrSecretNotFound)).Once()
	backends[1].EXPECT().Get(mock.Anything, testKey).Return("", fmt.Errorf("file: %w", domain.ErrSecretNotFound)).Once()

	_, err := store.Get(context.Background(), testKey)
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStoreGetSurfacesBrokenBackend(t *testing.T) {
	t.Parallel()

	store, backends := newChain(t, 2)
	backends[0].EXPECT().Get(mock.Anything, testKey).Return("", errors.New("gpg failed")).Once()
	backends[1].EXPECT().Get(mock.Anything, testKey).Return("", fmt.Errorf("file: %w", domain.ErrSecretNotFound)).Once()

	_, err := store.Get(context.Background(), testKey)
	require.Error(t, err)
	assert.ErrorContains(t, err, "gpg failed")
	assert.NotErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStoreGetStopsOnContextCancellation(t *testing.T) {
	t.Parallel()

	store, backends := newChain(t, 2)
	backends[0].EXPECT().Get(mock.Anything, testKey).Return("", context.Canceled).Once()

	_, err := store.Get(context.Background(), testKey)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStorePutSkipsReadOnlyBackends(t *testing.T) {
	t.Parallel()

	store, backends := newChain(t, 3)
	backends[0].EXPECT().Put(mock.Anything, testKey, "v").Return(domain.ErrSecretReadOnly).Once()
	backends[1].EXPECT().Put(mock.Anything, testKey, "v").Return(errors.New("pass unavailable")).Once()
	backends[2].EXPECT().Put(mock.Anything, testKey, "v").Return(nil).Once()

	require.NoError(t, store.Put(context.Background(), testKey, "v"))
}

func TestStorePutCombinesErrors(t *testing.T) {
	t.Parallel()

	store, backends := newChain(t, 2)
	backends[0].EXPECT().Put(mock.Anything, testKey, "v").Return(errors.New("pass failed")).Once()
	backends[1].EXPECT().Put(mock.Anything, testKey, "v").Return(errors.New("disk full")).Once()

	err := store.Put(context.Background(), testKey, "v")
	require.Error(t, err)
	assert.ErrorContains(t, err, "pass failed")
	assert.ErrorContains(t, err, "disk full")
}

func TestStoreDeleteReachesEveryWritableBackend(t *testing.T) {
	t.Parallel()

	store, backends := newChain(t, 3)
	backends[0].EXPECT().Delete(mock.Anything, testKey).Return(domain.ErrSecretReadOnly).Once()
	backends[1].EXPECT().Delete(mock.Anything, testKey).Return(nil).Once()
	backends[2].EXPECT().Delete(mock.Anything, testKey).Return(nil).Once()

	require.NoError(t, store.Delete(context.Background(), testKey))
}

func TestStoreDeleteSkipsUnavailablePass(t *testing.T) {
	t.Parallel()

	store, backends := newChain(t, 2)
	backends[0].EXPECT().Delete(mock.Anything, testKey).Return(fmt.Errorf("delete: %w", passstore.ErrUnavailable)).Once()
	backends[1].EXPECT().Delete(mock.Anything, testKey).Return(nil).Once()

	require.NoError(t, store.Delete(context.Background(), testKey))
}

func TestNewStoreValidatesBackends(t *testing.T) {
	t.Parallel()

	_, err := NewStore()
	require.Error(t, err)

	_, err = NewStore(portmocks.NewMockSecretStore(t), nil)
	require.Error(t, err)
}
