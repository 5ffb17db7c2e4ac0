package api

import "sync"

// TokenHolder keeps the bearer token shared by every outgoing request.
// Only the login/logout flows and session restore should call Set or Clear.
type TokenHolder struct {
	mu    sync.RWMutex
	token string
}

// NewTokenHolder creates a holder, optionally armed with a token
func NewTokenHolder(token string) *TokenHolder {
	return &TokenHolder{token: token}
}

// Get returns the current token, or "" when there is none
func (h *TokenHolder) Get() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// Set replaces the current token
func (h *TokenHolder) Set(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
}

// Clear drops the current token
func (h *TokenHolder) Clear() {
	h.Set("")
}

// Authenticated reports whether a token is present
func (h *TokenHolder) Authenticated() bool {
	return h.Get() != ""
}
