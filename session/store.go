package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/s0up4200/epoch/booking"
)

// ErrInvalidScope is returned when a store is created without a scope
var ErrInvalidScope = errors.New("session scope is required")

// KV is a session-scoped key/value store: values live as long as the
// session (terminal, tab) that wrote them and no longer
type KV interface {
	// Get returns found=false and no error when key is absent
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete does not fail when key is absent
	Delete(ctx context.Context, key string) error
}

// NewScope returns a fresh random session scope
func NewScope() string {
	return uuid.NewString()
}

// MemoryStore keeps values in process memory
type MemoryStore struct {
	scope string
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryStore creates an in-memory store with a random scope
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scope: NewScope(),
		items: make(map[string][]byte),
	}
}

// Scope returns the session scope of the store
func (s *MemoryStore) Scope() string {
	return s.scope
}

// Get retrieves a value
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set stores a value
func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes a value
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

// BookingStore persists the pending booking record as JSON in a KV
type BookingStore struct {
	kv     KV
	logger zerolog.Logger
}

// BookingStoreOption configures a BookingStore
type BookingStoreOption func(*BookingStore)

// WithLogger sets the logger used for undecodable records
func WithLogger(logger zerolog.Logger) BookingStoreOption {
	return func(s *BookingStore) {
		s.logger = logger
	}
}

// NewBookingStore adapts kv to booking.Store
func NewBookingStore(kv KV, opts ...BookingStoreOption) *BookingStore {
	s := &BookingStore{kv: kv, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the pending booking, or nil when there is none. A record
// that no longer decodes is reported as absent and left in place; the next
// Save or Clear replaces it.
func (s *BookingStore) Load(ctx context.Context) (*booking.PendingBooking, error) {
	data, found, err := s.kv.Get(ctx, booking.PendingBookingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending booking: %w", err)
	}
	if !found {
		return nil, nil
	}

	var rec booking.PendingBooking
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn().Err(err).Msg("Ignoring undecodable pending booking")
		return nil, nil
	}
	if rec.ID == "" {
		s.logger.Warn().Msg("Ignoring pending booking without an id")
		return nil, nil
	}
	return &rec, nil
}

// Save writes the pending booking
func (s *BookingStore) Save(ctx context.Context, rec *booking.PendingBooking) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode pending booking: %w", err)
	}
	if err := s.kv.Set(ctx, booking.PendingBookingKey, data); err != nil {
		return fmt.Errorf("failed to write pending booking: %w", err)
	}
	return nil
}

// Clear removes the pending booking
func (s *BookingStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, booking.PendingBookingKey); err != nil {
		return fmt.Errorf("failed to clear pending booking: %w", err)
	}
	return nil
}
