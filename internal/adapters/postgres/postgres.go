package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE codes the adapters map to port errors.
const (
	UniqueViolationCode        = "23505"
	ForeignKeyViolationCode    = "23503"
	CheckViolationCode         = "23514"
	InsufficientPrivilegeCode  = "42501"
	AdminShutdownCode          = "57P01"
	CannotConnectNowCode       = "57P03"
	ConnectionFailureCodeClass = "08"
)

// PoolOptions tunes the pgx pool. Zero values keep pgx defaults.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	// PingTimeout bounds the startup connectivity check; zero skips the ping.
	PingTimeout time.Duration
}

// NewPool parses dsn and opens a pgx pool.
func NewPool(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if opts.PingTimeout > 0 {
		pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
	}
	return pool, nil
}

// AsPgError unwraps err to a *pgconn.PgError.
func AsPgError(err error) (*pgconn.PgError, bool) {
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsInsufficientPrivilege reports an access-policy rejection, including row-level security violations.
func IsInsufficientPrivilege(err error) bool {
	pe, ok := AsPgError(err)
	return ok && pe.Code == InsufficientPrivilegeCode
}

// IsUnavailable reports connectivity failures and server shutdowns.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if pe, ok := AsPgError(err); ok {
		return pe.Code == AdminShutdownCode || pe.Code == CannotConnectNowCode ||
			(len(pe.Code) == 5 && pe.Code[:2] == ConnectionFailureCodeClass)
	}
	var ce *pgconn.ConnectError
	if errors.As(err, &ce) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded)
}
