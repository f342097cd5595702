package position

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"crypto-trading-bot/internal/logging"
)

const (
	stateKeyPrefix = "bot:position:"
	stateTTL       = 0 // persisted state never expires
)

// Store persists position state in Redis so a restarted bot can resume
// without replaying exchange history. When Redis is unreachable the
// store degrades to an in-memory map and periodically probes for
// recovery; reconciliation covers the restart case either way.
type Store struct {
	client    *redis.Client
	available atomic.Bool

	mu       sync.RWMutex
	fallback map[string]*State

	logger *logging.Logger
}

// NewStore connects to Redis at addr. A failed initial ping is not
// fatal: the store starts in fallback mode.
func NewStore(addr, password string, db int, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Store{
		fallback: make(map[string]*State),
		logger:   logger.WithComponent("position-store"),
	}

	if addr == "" {
		s.logger.Info("Redis not configured, position state is in-memory only")
		return s
	}

	s.client = redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.logger.Warn("Redis unavailable, using in-memory position state", "error", err)
	} else {
		s.available.Store(true)
		s.logger.Info("Position store connected to Redis", "addr", addr)
	}

	return s
}

// NewMemoryStore returns a store with no Redis backing.
func NewMemoryStore(logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		fallback: make(map[string]*State),
		logger:   logger.WithComponent("position-store"),
	}
}

// Available reports whether Redis is currently reachable.
func (s *Store) Available() bool {
	return s.available.Load()
}

// Save persists the state for its market.
func (s *Store) Save(ctx context.Context, state *State) error {
	s.mu.Lock()
	cp := *state
	s.fallback[state.Market] = &cp
	s.mu.Unlock()

	if !s.available.Load() {
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal position state: %w", err)
	}

	if err := s.client.Set(ctx, stateKeyPrefix+state.Market, data, stateTTL).Err(); err != nil {
		s.markUnavailable(err)
		return nil
	}
	return nil
}

// Load retrieves the state for a market. A nil state with nil error
// means no state has been saved.
func (s *Store) Load(ctx context.Context, market string) (*State, error) {
	if s.available.Load() {
		data, err := s.client.Get(ctx, stateKeyPrefix+market).Bytes()
		switch {
		case err == redis.Nil:
			return nil, nil
		case err != nil:
			s.markUnavailable(err)
		default:
			var state State
			if err := json.Unmarshal(data, &state); err != nil {
				return nil, fmt.Errorf("failed to unmarshal position state: %w", err)
			}
			return &state, nil
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if state, ok := s.fallback[market]; ok {
		cp := *state
		return &cp, nil
	}
	return nil, nil
}

// Delete removes the persisted state for a market.
func (s *Store) Delete(ctx context.Context, market string) error {
	s.mu.Lock()
	delete(s.fallback, market)
	s.mu.Unlock()

	if !s.available.Load() {
		return nil
	}
	if err := s.client.Del(ctx, stateKeyPrefix+market).Err(); err != nil {
		s.markUnavailable(err)
	}
	return nil
}

// Ping probes Redis and restores availability after an outage.
func (s *Store) Ping(ctx context.Context) {
	if s.client == nil {
		return
	}
	err := s.client.Ping(ctx).Err()
	if err == nil && !s.available.Load() {
		s.available.Store(true)
		s.logger.Info("Redis connection recovered")
	}
}

// Close releases the Redis connection.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Store) markUnavailable(err error) {
	if s.available.CompareAndSwap(true, false) {
		s.logger.Warn("Redis error, falling back to in-memory position state", "error", err)
	}
}
