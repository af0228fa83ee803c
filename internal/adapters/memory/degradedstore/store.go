package degradedstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/directoryhub/onboarding-api/internal/domain"
	"github.com/directoryhub/onboarding-api/internal/ports/out/degradedstore"
)

// Store is an in-memory implementation of degradedstore.Store.
// It is safe for concurrent use.
type Store struct {
	mu sync.RWMutex
	m  map[domain.IdentityID]degradedstore.Record
}

func NewStore() *Store {
	return &Store{m: make(map[domain.IdentityID]degradedstore.Record)}
}

func (s *Store) Put(ctx context.Context, rec degradedstore.Record) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[rec.IdentityID] = cloneRecord(rec)
	return nil
}

func (s *Store) Get(ctx context.Context, id domain.IdentityID) (degradedstore.Record, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.m[id]
	if !ok {
		return degradedstore.Record{}, degradedstore.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *Store) ListPending(ctx context.Context, limit int) ([]degradedstore.Record, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]degradedstore.Record, 0)
	for _, rec := range s.m {
		if rec.Status == degradedstore.StatusPendingSync {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].IdentityID < out[j].IdentityID
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkAttempt(ctx context.Context, id domain.IdentityID, lastErr string, status degradedstore.Status, at time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.m[id]
	if !ok {
		return degradedstore.ErrNotFound
	}
	rec.Attempts++
	rec.LastError = lastErr
	rec.Status = status
	rec.UpdatedAt = at
	s.m[id] = rec
	return nil
}

func (s *Store) MarkReconciled(ctx context.Context, id domain.IdentityID, at time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.m[id]
	if !ok {
		return degradedstore.ErrNotFound
	}
	rec.Status = degradedstore.StatusReconciled
	rec.LastError = ""
	rec.UpdatedAt = at
	s.m[id] = rec
	return nil
}

func cloneRecord(r degradedstore.Record) degradedstore.Record {
	out := r
	out.Base = r.Base.Clone()
	out.Extension = r.Extension.Clone()
	return out
}
