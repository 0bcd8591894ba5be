// pkg/htpasswd/htpasswd_test.go

package htpasswd

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdock-dev/rdockctl/pkg/crypto"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return &Store{Fs: afero.NewMemMapFs(), Path: "/etc/nginx/.htpasswd"}
}

func TestUpsertCreatesStoreWithOneEntry(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "admin", "s3cret"))

	entries, err := s.Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "admin", entries[0].Username)
	assert.NoError(t, crypto.ComparePassword(entries[0].Hash, "s3cret"))
}

func TestUpsertReplacesNotDuplicates(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "admin", "first"))
	require.NoError(t, s.Upsert(ctx, "admin", "second"))

	entries, err := s.Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NoError(t, crypto.ComparePassword(entries[0].Hash, "second"))
	assert.Error(t, crypto.ComparePassword(entries[0].Hash, "first"))
}

func TestUpsertPreservesOtherEntries(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "admin", "adminpw"))
	require.NoError(t, s.Upsert(ctx, "bob", "bobpw"))
	require.NoError(t, s.Upsert(ctx, "admin", "rotated"))

	entries, err := s.Load()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Order preserved: admin first, bob second.
	assert.Equal(t, "admin", entries[0].Username)
	assert.Equal(t, "bob", entries[1].Username)
	assert.NoError(t, crypto.ComparePassword(entries[0].Hash, "rotated"))
	assert.NoError(t, crypto.ComparePassword(entries[1].Hash, "bobpw"))
}

func TestUpsertLeavesForeignEntriesUntouched(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	// A store shared with an unrelated deployment, apr1 hash and all.
	foreign := "legacy:$apr1$abcdefgh$0123456789abcdefghijk\n"
	require.NoError(t, afero.WriteFile(s.Fs, s.Path, []byte(foreign), 0640))

	require.NoError(t, s.Upsert(ctx, "admin", "pw"))

	data, err := afero.ReadFile(s.Fs, s.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "legacy:$apr1$abcdefgh$0123456789abcdefghijk\n")

	entries, err := s.Load()
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestUpsertRejectsBadUsernames(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	assert.Error(t, s.Upsert(ctx, "", "pw"))
	assert.Error(t, s.Upsert(ctx, "a:b", "pw"))
}

func TestRemove(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "admin", "pw"))
	require.NoError(t, s.Upsert(ctx, "bob", "pw2"))

	require.NoError(t, s.Remove(ctx, "admin"))
	entries, err := s.Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bob", entries[0].Username)

	// Removing an unknown user is a no-op.
	require.NoError(t, s.Remove(ctx, "nobody"))
}

func TestVerify(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "admin", "pw"))

	ok, err := s.Verify("admin", "pw")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Verify("admin", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Verify("nobody", "pw")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadMissingFile(t *testing.T) {
	s := newStore(t)
	entries, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
