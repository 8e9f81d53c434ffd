package env

import (
	"context"
	"testing"

	"github.com/bnema/pttsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariableFor(t *testing.T) {
	t.Parallel()

	store := NewStore(DefaultPrefix)
	tests := map[string]string{
		"pttsync/auth-secret": "PTTSYNC_AUTH_SECRET",
		"auth.secret":         "PTTSYNC_AUTH_SECRET",
		"/a/b/Device_Key2/":   "PTTSYNC_DEVICE_KEY2",
	}
	for key, want := range tests {
		got, err := store.VariableFor(key)
		require.NoError(t, err, key)
		assert.Equal(t, want, got, key)
	}

	_, err := store.VariableFor(" / ")
	require.Error(t, err)
}

func TestStoreGetReadsEnvironment(t *testing.T) {
	t.Setenv("PTTSYNC_AUTH_SECRET", "from-env")

	value, err := NewStore(DefaultPrefix).Get(context.Background(), "pttsync/auth-secret")
	require.NoError(t, err)
	assert.Equal(t, "from-env", value)
}

func TestStoreGetMissingVariable(t *testing.T) {
	t.Parallel()

	store := &Store{prefix: DefaultPrefix, lookup: func(string) (string, bool) { return "", false }}

	_, err := store.Get(context.Background(), "pttsync/auth-secret")
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
	assert.ErrorContains(t, err, "PTTSYNC_AUTH_SECRET")
}

func TestStoreIsReadOnly(t *testing.T) {
	t.Parallel()

	store := NewStore(DefaultPrefix)
	assert.ErrorIs(t, store.Put(context.Background(), "k", "v"), domain.ErrSecretReadOnly)
	assert.ErrorIs(t, store.Delete(context.Background(), "k"), domain.ErrSecretReadOnly)
}
