package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/directoryhub/onboarding-api/internal/adapters/postgres"
	"github.com/directoryhub/onboarding-api/internal/ports/out/clock"
	"github.com/directoryhub/onboarding-api/internal/ports/out/idempotency"
)

// Options configures record retention. A zero Retention keeps records forever.
type Options struct {
	Retention time.Duration
	Clock     clock.Clock
}

// Store is a Postgres implementation of idempotency.Store and idempotency.Purger.
type Store struct {
	pool      *pgxpool.Pool
	issuer    string
	retention time.Duration
	clock     clock.Clock
}

// Keys are scoped by token issuer as well as identity.
func NewStore(pool *pgxpool.Pool, jwtIssuer string, opts ...Options) *Store {
	s := &Store{pool: pool, issuer: jwtIssuer}
	if len(opts) > 0 {
		s.retention = opts[0].Retention
		s.clock = opts[0].Clock
	}
	return s
}

// cutoff is the oldest created_at still replayable; the zero time when retention is off.
func (s *Store) cutoff() time.Time {
	if s.retention <= 0 {
		return time.Time{}
	}
	return s.now().Add(-s.retention)
}

func (s *Store) now() time.Time {
	if s.clock != nil {
		return s.clock.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	if s.pool == nil {
		return idempotency.Record{}, false, errors.New("nil postgres pool")
	}
	row := s.pool.QueryRow(ctx, `
		SELECT status_code, content_type, body, created_at
		FROM idempotency_keys
		WHERE idempotency_key = $1
		  AND identity_iss = $2
		  AND identity_id = $3
		  AND method = $4
		  AND route = $5
		  AND body_hash = $6
		  AND created_at >= $7
	`,
		string(fp.Key),
		s.issuer,
		string(fp.Identity),
		fp.Method,
		fp.Route,
		fp.BodyHash,
		s.cutoff(),
	)
	var rec idempotency.Record
	if err := row.Scan(&rec.StatusCode, &rec.ContentType, &rec.Body, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return idempotency.Record{}, false, nil
		}
		if postgres.IsUnavailable(err) {
			return idempotency.Record{}, false, fmt.Errorf("idempotency store unavailable: %w", err)
		}
		return idempotency.Record{}, false, fmt.Errorf("read idempotency record: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (
			idempotency_key,
			identity_iss,
			identity_id,
			method,
			route,
			body_hash,
			status_code,
			content_type,
			body,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (idempotency_key, identity_iss, identity_id, method, route, body_hash)
		DO UPDATE SET
			status_code = EXCLUDED.status_code,
			content_type = EXCLUDED.content_type,
			body = EXCLUDED.body,
			created_at = EXCLUDED.created_at
	`,
		string(fp.Key),
		s.issuer,
		string(fp.Identity),
		fp.Method,
		fp.Route,
		fp.BodyHash,
		rec.StatusCode,
		rec.ContentType,
		rec.Body,
		createdAt.UTC(),
	)
	if err != nil {
		if postgres.IsUnavailable(err) {
			return fmt.Errorf("idempotency store unavailable: %w", err)
		}
		return fmt.Errorf("write idempotency record: %w", err)
	}
	return nil
}

// Purge deletes this issuer's records that fell out of the retention window.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	if s.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	if s.retention <= 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM idempotency_keys
		WHERE identity_iss = $1
		  AND created_at < $2
	`, s.issuer, s.cutoff())
	if err != nil {
		return 0, fmt.Errorf("purge idempotency records: %w", err)
	}
	return tag.RowsAffected(), nil
}
