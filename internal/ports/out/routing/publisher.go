package routing

import (
	"context"
	"time"

	"github.com/directoryhub/onboarding-api/internal/domain"
)

// Outcome values carried on completion events.
const (
	OutcomeSuccess  = "success"
	OutcomeDegraded = "degraded"
)

// CompletionEvent tells the downstream router which role-specific screen follows onboarding.
type CompletionEvent struct {
	EventID    string            `json:"eventId"`
	IdentityID domain.IdentityID `json:"identityId"`
	Role       domain.Role       `json:"role"`
	Outcome    string            `json:"outcome"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// Publisher emits completion events.
type Publisher interface {
	PublishCompletion(ctx context.Context, evt CompletionEvent) error
}
