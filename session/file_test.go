package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/epoch/api"
	"github.com/s0up4200/epoch/booking"
)

func TestFileStore(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(root, "tty-1234")
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, filepath.Join(root, "epoch-session", "tty-1234"), s.Dir())

	_, found, err := s.Get(ctx, booking.PendingBookingKey)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, booking.PendingBookingKey, []byte(`{"id":"42"}`)))
	assert.FileExists(t, filepath.Join(s.Dir(), "epoch_pendingBooking.json"))

	value, found, err := s.Get(ctx, booking.PendingBookingKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"id":"42"}`, string(value))

	require.NoError(t, s.Set(ctx, booking.PendingBookingKey, []byte(`{"id":"43"}`)))
	value, _, _ = s.Get(ctx, booking.PendingBookingKey)
	assert.Equal(t, `{"id":"43"}`, string(value))

	require.NoError(t, s.Delete(ctx, booking.PendingBookingKey))
	require.NoError(t, s.Delete(ctx, booking.PendingBookingKey))

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStoreScopes(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	_, err := NewFileStore(root, "")
	assert.ErrorIs(t, err, ErrInvalidScope)

	a, err := NewFileStore(root, "../escape")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "epoch-session", ".._escape"), a.Dir())

	b, err := NewFileStore(root, "other")
	require.NoError(t, err)

	require.NoError(t, a.Set(ctx, "k", []byte("a")))
	_, found, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"epoch:pendingBooking", "epoch_pendingBooking"},
		{"tty-42", "tty-42"},
		{"a/b\\c", "a_b_c"},
		{"ünï", "_n_"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitize(tt.in))
		})
	}
}

func TestAuthStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "auth.json")
	s := NewAuthStore(path)

	state, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, state.Token)

	require.NoError(t, s.Save(AuthState{Token: "tok", User: &api.User{ID: "1", Name: "Ada"}}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, s.SaveUser(&api.User{ID: "1", Name: "Ada L."}))
	state, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok", state.Token)
	require.NotNil(t, state.User)
	assert.Equal(t, "Ada L.", state.User.Name)

	holder := api.NewTokenHolder("")
	user, err := s.Restore(holder)
	require.NoError(t, err)
	assert.True(t, holder.Authenticated())
	assert.Equal(t, "tok", holder.Get())
	assert.Equal(t, "Ada L.", user.Name)

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())
	assert.NoFileExists(t, path)

	holder = api.NewTokenHolder("")
	user, err = s.Restore(holder)
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.False(t, holder.Authenticated())
}

func TestAuthStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0o600))

	_, err := NewAuthStore(path).Load()
	assert.ErrorContains(t, err, "auth state")
}

func TestAuthStoreFileContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	s := NewAuthStore(path)
	require.NoError(t, s.Save(AuthState{Token: "tok", User: &api.User{ID: "7", Name: "Ada", Email: "ada@example.com"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"tok","user":{"id":"7","name":"Ada","email":"ada@example.com"}}`, string(data))

	// a logged-out state carries no profile
	require.NoError(t, s.Save(AuthState{Token: "tok2"}))
	state, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok2", state.Token)
	assert.Nil(t, state.User)
}
