package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formrules/pkg/store"
)

func TestStoreInMemoryRoundTrip(t *testing.T) {
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Set(ctx, "form-builder-rules-1", []byte(`[]`)))
	got, err := s.Get(ctx, "form-builder-rules-1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), got)

	require.NoError(t, s.Remove(ctx, "form-builder-rules-1"))
	_, err = s.Get(ctx, "form-builder-rules-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Path = dir
	cfg.GCInterval = 0

	s, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, store.SetJSON(context.Background(), s, "formlist", []string{"a"}))
	require.NoError(t, s.Close())

	reopened, err := Open(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	var out []string
	found, err := store.GetJSON(context.Background(), reopened, "formlist", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"a"}, out)
}

func TestStorePrefixIsolatesKeys(t *testing.T) {
	cfg := InMemoryConfig()
	cfg.Prefix = "durable/"
	s, err := Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "one", []byte("1")))
	require.NoError(t, s.Set(ctx, "two", []byte("2")))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one", "two"}, keys)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}
