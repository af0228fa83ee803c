package idempotency

import (
	"context"
	"time"

	"github.com/directoryhub/onboarding-api/internal/domain"
)

// Key is the caller-provided idempotency key (Idempotency-Key header).
type Key string

// Fingerprint identifies a request uniquely for idempotency purposes.
//
// A fingerprint is key + route + identity + request body hash.
// Route is the HTTP method plus the path template (e.g. "POST /onboarding/complete").
type Fingerprint struct {
	Key      Key
	Identity domain.IdentityID
	Method   string
	Route    string
	BodyHash string
}

// Record is the stored response we can replay for a duplicate request.
type Record struct {
	StatusCode  int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

// Store persists idempotency records for replaying safe responses on retries.
// Records older than the store's retention window read as absent.
type Store interface {
	Get(ctx context.Context, fp Fingerprint) (Record, bool, error)
	Put(ctx context.Context, fp Fingerprint, rec Record) error
}

// Purger is implemented by stores that can drop expired records in bulk.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}
