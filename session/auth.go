package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"

	"github.com/s0up4200/epoch/api"
)

// AuthState is what survives between sessions: the token and the last
// known profile, so the profile shows before /api/user/me answers
type AuthState struct {
	Token string    `json:"token"`
	User  *api.User `json:"user,omitempty"`
}

// AuthStore persists AuthState to a JSON file readable only by the user
type AuthStore struct {
	path string
	mu   sync.Mutex
}

// NewAuthStore creates a store backed by path
func NewAuthStore(path string) *AuthStore {
	return &AuthStore{path: path}
}

// DefaultAuthPath returns ~/.epoch/auth.json
func DefaultAuthPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".epoch", "auth.json"), nil
}

// newViper returns a viper instance bound to the auth file only, so the
// token never ends up in the regular config
func (s *AuthStore) newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("json")
	v.SetConfigPermissions(0o600)
	return v
}

// Load reads the stored state; a missing file is an empty state
func (s *AuthStore) Load() (AuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *AuthStore) load() (AuthState, error) {
	var state AuthState

	v := s.newViper()
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return state, nil
		}
		var parseErr viper.ConfigParseError
		if errors.As(err, &parseErr) {
			return state, fmt.Errorf("failed to decode auth state: %w", err)
		}
		return state, fmt.Errorf("failed to read auth state: %w", err)
	}

	state.Token = v.GetString("token")
	if raw := v.Get("user"); raw != nil {
		// round-trip through JSON so api.User's own decoding applies
		data, err := json.Marshal(raw)
		if err != nil {
			return AuthState{}, fmt.Errorf("failed to decode auth state: %w", err)
		}
		var user api.User
		if err := json.Unmarshal(data, &user); err != nil {
			return AuthState{}, fmt.Errorf("failed to decode auth state: %w", err)
		}
		state.User = &user
	}
	return state, nil
}

// Save writes the token and profile
func (s *AuthStore) Save(state AuthState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(state)
}

func (s *AuthStore) save(state AuthState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create auth directory: %w", err)
	}

	v := s.newViper()
	v.Set("token", state.Token)
	if state.User != nil {
		v.Set("user", state.User)
	}
	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to write auth state: %w", err)
	}
	return nil
}

// SaveUser replaces the cached profile and keeps the token
func (s *AuthStore) SaveUser(user *api.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	state.User = user
	return s.save(state)
}

// Clear forgets the token and profile
func (s *AuthStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove auth state: %w", err)
	}
	return nil
}

// Restore arms holder with the stored token and returns the cached profile
func (s *AuthStore) Restore(holder *api.TokenHolder) (*api.User, error) {
	state, err := s.Load()
	if err != nil {
		return nil, err
	}
	if state.Token != "" {
		holder.Set(state.Token)
	}
	return state.User, nil
}
