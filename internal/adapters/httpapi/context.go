package httpapi

import (
	"context"

	"github.com/directoryhub/onboarding-api/internal/domain"
)

type identityKey struct{}

func WithIdentity(ctx context.Context, who domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, who)
}

func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	v, ok := ctx.Value(identityKey{}).(domain.Identity)
	return v, ok && v.ID != ""
}
