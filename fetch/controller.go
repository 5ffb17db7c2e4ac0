package fetch

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/s0up4200/epoch/api"
)

// ErrClosed is returned when waiting on a closed controller
var ErrClosed = errors.New("controller is closed")

// ErrNoResult is reported by State.Result when the last request ended
// without data or an error, i.e. it timed out or was cancelled
var ErrNoResult = errors.New("request timed out or was cancelled")

// Loader fetches the resource for a key. It must honour ctx cancellation.
type Loader[K comparable, T any] func(ctx context.Context, key K) (T, error)

// State is the observable state of a controller
type State[K comparable, T any] struct {
	Key     K
	Data    T
	Loading bool
	Err     error
	// Fetched is true once data for Key has been stored
	Fetched bool
}

// Result tells a one-shot caller how the last request for Key ended: the
// stored error, ErrNoResult when it was aborted, or nil once data arrived
func (s State[K, T]) Result() error {
	switch {
	case s.Err != nil:
		return s.Err
	case s.Loading, !s.Fetched:
		return ErrNoResult
	}
	return nil
}

// Controller owns the request lifecycle of one resource. Starting a new key
// cancels the request in flight; results of cancelled or superseded
// requests are dropped, so Data always belongs to the latest key.
type Controller[K comparable, T any] struct {
	name   string
	load   Loader[K, T]
	logger zerolog.Logger

	mu         sync.Mutex
	lifetime   context.Context
	end        context.CancelFunc
	closed     bool
	cancel     context.CancelFunc
	generation uint64
	done       chan struct{}
	state      State[K, T]

	notifyMu    sync.Mutex
	subscribers map[int]func(State[K, T])
	nextSub     int
}

// NewController creates a controller bound to ctx; cancelling ctx ends the
// controller's lifetime like Close does.
func NewController[K comparable, T any](ctx context.Context, name string, load Loader[K, T], logger zerolog.Logger) *Controller[K, T] {
	lifetime, end := context.WithCancel(ctx)
	done := make(chan struct{})
	close(done)

	return &Controller[K, T]{
		name:        name,
		load:        load,
		logger:      logger.With().Str("controller", name).Logger(),
		lifetime:    lifetime,
		end:         end,
		done:        done,
		subscribers: make(map[int]func(State[K, T])),
	}
}

// Start fetches key, cancelling whatever request is still in flight
func (c *Controller[K, T]) Start(key K) {
	c.start(key, false)
}

// StartFresh is Start but also drops the current data so nothing from the
// previous key is shown while the new one loads
func (c *Controller[K, T]) StartFresh(key K) {
	c.start(key, true)
}

func (c *Controller[K, T]) start(key K, fresh bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel()
	}

	c.generation++
	gen := c.generation
	ctx, cancel := context.WithCancel(c.lifetime)
	c.cancel = cancel
	done := make(chan struct{})
	c.done = done

	c.state.Key = key
	c.state.Loading = true
	c.state.Err = nil
	if fresh {
		var zero T
		c.state.Data = zero
		c.state.Fetched = false
	}
	c.mu.Unlock()

	c.publish()
	go c.run(ctx, cancel, gen, key, done)
}

func (c *Controller[K, T]) run(ctx context.Context, cancel context.CancelFunc, gen uint64, key K, done chan struct{}) {
	defer close(done)
	defer cancel()

	data, err := c.load(ctx, key)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.logger.Trace().Interface("key", key).Msg("Dropped superseded result")
		return
	}

	c.cancel = nil
	c.state.Loading = false
	switch {
	case ctx.Err() != nil || api.IsAborted(err):
		// cancelled: keep whatever was shown before
	case err != nil:
		c.state.Err = err
		c.logger.Debug().Err(err).Interface("key", key).Msg("Fetch failed")
	default:
		c.state.Data = data
		c.state.Fetched = true
	}
	c.mu.Unlock()

	c.publish()
}

// Reset cancels any request in flight and shows data for key without a fetch
func (c *Controller[K, T]) Reset(key K, data T) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.cancelLocked()
	c.state = State[K, T]{Key: key, Data: data}
	c.mu.Unlock()

	c.publish()
}

// Cancel aborts the request in flight, if any. Calling it again is a no-op.
func (c *Controller[K, T]) Cancel() {
	c.mu.Lock()
	changed := c.cancelLocked()
	c.mu.Unlock()

	if changed {
		c.publish()
	}
}

func (c *Controller[K, T]) cancelLocked() bool {
	if c.cancel == nil {
		return false
	}
	c.cancel()
	c.cancel = nil
	// bump the generation so a late result is dropped
	c.generation++
	c.state.Loading = false
	return true
}

// Close ends the controller's lifetime. Calling it again is a no-op.
func (c *Controller[K, T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.cancelLocked()
	c.closed = true
	c.end()
	c.mu.Unlock()

	c.notifyMu.Lock()
	clear(c.subscribers)
	c.notifyMu.Unlock()
}

// State returns a snapshot of the current state
func (c *Controller[K, T]) State() State[K, T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Wait blocks until the latest request settles or ctx is done. It returns
// ErrClosed once the controller has been closed.
func (c *Controller[K, T]) Wait(ctx context.Context) error {
	c.mu.Lock()
	done, closed := c.done, c.closed
	c.mu.Unlock()

	if closed {
		return ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers fn to receive every state change. fn runs
// synchronously and must not call back into the controller.
func (c *Controller[K, T]) Subscribe(fn func(State[K, T])) (unsubscribe func()) {
	c.notifyMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	c.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.notifyMu.Lock()
			delete(c.subscribers, id)
			c.notifyMu.Unlock()
		})
	}
}

// publish delivers the state as of delivery time, so the last notification
// a subscriber sees is always the current state
func (c *Controller[K, T]) publish() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	if len(c.subscribers) == 0 {
		return
	}
	snapshot := c.State()
	for _, fn := range c.subscribers {
		fn(snapshot)
	}
}
