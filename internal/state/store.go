// ABOUTME: Hot session state cell holding the current identity with observer fan-out
// ABOUTME: Replays the latest value to new observers and notifies synchronously on change

package state

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/idfront/internal/identity"
)

// watchBufferSize is the channel buffer for each Watch subscriber.
const watchBufferSize = 64

// Observer receives the current identity (or nil) on every change.
// Observers must not call back into the Store from within the callback.
type Observer func(*identity.Identity)

// Store is the single source of truth for "who is logged in". Set replaces
// the value and synchronously notifies every registered observer before
// returning; new observers immediately receive the latest value. Only the
// session engine writes the store, everything else reads.
type Store struct {
	emitMu sync.Mutex // serializes emissions so observers see changes in order
	mu     sync.Mutex // guards current and observers

	current   *identity.Identity
	observers map[string]Observer
	logger    *slog.Logger
}

// New creates an empty store. Pass nil logger for default.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		observers: make(map[string]Observer),
		logger:    logger.With("component", "state"),
	}
}

// Current returns the last known identity, or nil when logged out.
func (s *Store) Current() *identity.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Set replaces the current identity and notifies all observers registered at
// the time of the call. Every observer receives the new value before Set
// returns.
func (s *Store) Set(id *identity.Identity) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	s.current = id
	targets := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		targets = append(targets, fn)
	}
	s.mu.Unlock()

	for _, fn := range targets {
		fn(id)
	}
}

// Subscribe registers an observer and immediately replays the latest value to
// it. Returns an unsubscribe function. The replay and all subsequent
// notifications are delivered in emission order with no drops.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	subID := uuid.New().String()
	s.observers[subID] = fn
	cur := s.current
	s.mu.Unlock()

	s.logger.Debug("observer added", "sub_id", subID)
	fn(cur)

	return func() {
		// Take emitMu so no emission is mid-flight when we return.
		s.emitMu.Lock()
		defer s.emitMu.Unlock()
		s.mu.Lock()
		delete(s.observers, subID)
		s.mu.Unlock()
		s.logger.Debug("observer removed", "sub_id", subID)
	}
}

// Watch returns a channel that receives the latest identity immediately and
// every subsequent change until ctx is cancelled. Unlike Subscribe, Watch is
// for asynchronous consumers: updates are dropped for watchers whose channels
// are full rather than blocking the writer.
func (s *Store) Watch(ctx context.Context) <-chan *identity.Identity {
	ch := make(chan *identity.Identity, watchBufferSize)
	unsubscribe := s.Subscribe(func(id *identity.Identity) {
		select {
		case ch <- id:
		default:
			s.logger.Debug("dropped update for slow watcher")
		}
	})

	go func() {
		<-ctx.Done()
		unsubscribe()
		close(ch)
	}()

	return ch
}
