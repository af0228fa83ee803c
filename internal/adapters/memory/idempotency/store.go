package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/directoryhub/onboarding-api/internal/ports/out/clock"
	"github.com/directoryhub/onboarding-api/internal/ports/out/idempotency"
)

type Option func(*Store)

// WithRetention expires records older than ttl, measured on clk. A zero ttl keeps records forever.
func WithRetention(ttl time.Duration, clk clock.Clock) Option {
	return func(s *Store) {
		s.ttl = ttl
		s.clock = clk
	}
}

// Store is an in-memory implementation of idempotency.Store and idempotency.Purger.
// It is safe for concurrent use.
type Store struct {
	mu sync.Mutex
	m  map[idempotency.Fingerprint]idempotency.Record

	ttl   time.Duration
	clock clock.Clock
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		m: make(map[idempotency.Fingerprint]idempotency.Record),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.m[fp]
	if ok && s.expired(rec) {
		delete(s.m, fp)
		return idempotency.Record{}, false, nil
	}
	if ok {
		rec.Body = append([]byte(nil), rec.Body...)
	}
	return rec, ok, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Body = append([]byte(nil), rec.Body...)
	s.m[fp] = rec
	return nil
}

// Purge drops every expired record and reports how many were removed.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for fp, rec := range s.m {
		if s.expired(rec) {
			delete(s.m, fp)
			n++
		}
	}
	return n, nil
}

func (s *Store) expired(rec idempotency.Record) bool {
	if s.ttl <= 0 || s.clock == nil {
		return false
	}
	return s.clock.Now().Sub(rec.CreatedAt) > s.ttl
}
