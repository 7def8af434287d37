package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"citabot/internal/models"
)

// recoveryInterval is how long to route to the fallback before probing the
// primary again.
const recoveryInterval = time.Minute

// FailoverStore routes to a primary store (Redis) and fails over to a
// fallback (memory) when the primary errors. Domain results like not-found
// or expired are answers, not failures, and never trigger failover.
type FailoverStore struct {
	primary   Store
	fallback  Store
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverStore(primary, fallback Store, logger *zerolog.Logger) *FailoverStore {
	return &FailoverStore{primary: primary, fallback: fallback, logger: logger}
}

func (f *FailoverStore) Put(ctx context.Context, s *models.ConversationSession, ttl time.Duration) error {
	if f.useFallback() {
		return f.fallback.Put(ctx, s, ttl)
	}
	if err := f.primary.Put(ctx, s, ttl); err != nil {
		f.markDown(err)
		return f.fallback.Put(ctx, s, ttl)
	}
	f.markUp()
	return nil
}

func (f *FailoverStore) Get(ctx context.Context, key string) (*models.ConversationSession, error) {
	if f.useFallback() {
		return f.fallback.Get(ctx, key)
	}
	s, err := f.primary.Get(ctx, key)
	if err != nil && !isDomainResult(err) {
		f.markDown(err)
		return f.fallback.Get(ctx, key)
	}
	f.markUp()
	return s, err
}

func (f *FailoverStore) Delete(ctx context.Context, key string) error {
	// Delete both sides so a recovered primary cannot resurrect state.
	var primaryErr error
	if !f.useFallback() {
		if primaryErr = f.primary.Delete(ctx, key); primaryErr != nil {
			f.markDown(primaryErr)
		} else {
			f.markUp()
		}
	}
	if err := f.fallback.Delete(ctx, key); err != nil {
		return err
	}
	return primaryErr
}

// useFallback reports whether the primary is considered down, allowing a
// recovery probe once per interval.
func (f *FailoverStore) useFallback() bool {
	if !f.isDown.Load() {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if time.Since(f.lastCheck) >= recoveryInterval {
		f.lastCheck = time.Now()
		return false
	}
	return true
}

func (f *FailoverStore) markDown(err error) {
	if f.isDown.CompareAndSwap(false, true) {
		f.logger.Error().Err(err).Msg("primary session store down, failing over to memory")
	}
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
}

func (f *FailoverStore) markUp() {
	if f.isDown.CompareAndSwap(true, false) {
		f.logger.Info().Msg("primary session store recovered")
	}
}

func isDomainResult(err error) bool {
	return errors.Is(err, models.ErrSessionNotFound) || errors.Is(err, models.ErrSessionExpired)
}
