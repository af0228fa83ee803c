package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// JWTConfig configures bearer token verification against the identity provider's JWKS endpoint.
// The verified token's `sub` becomes the onboarding identity and `email` its contact address.
type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string

	ClockSkew              time.Duration
	JWKSRefreshInterval    time.Duration
	JWKSMinRefreshInterval time.Duration

	HTTPTimeout time.Duration
}

func LoadJWTConfigFromEnv() (JWTConfig, error) {
	cfg := JWTConfig{
		Issuer:   strings.TrimSpace(os.Getenv("JWT_ISSUER")),
		Audience: strings.TrimSpace(os.Getenv("JWT_AUDIENCE")),
		JWKSURL:  strings.TrimSpace(os.Getenv("JWT_JWKS_URL")),
	}
	if cfg.Issuer == "" || cfg.Audience == "" || cfg.JWKSURL == "" {
		return JWTConfig{}, fmt.Errorf("missing required env vars: JWT_ISSUER, JWT_AUDIENCE, JWT_JWKS_URL")
	}
	if u, err := url.Parse(cfg.JWKSURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return JWTConfig{}, fmt.Errorf("JWT_JWKS_URL must be an absolute http(s) URL (got %q)", cfg.JWKSURL)
	}

	var err error
	if cfg.ClockSkew, err = getDuration("JWT_CLOCK_SKEW", 30*time.Second); err != nil {
		return JWTConfig{}, err
	}
	// Periodic refresh picks up key rotation even while an old key is still cached.
	if cfg.JWKSRefreshInterval, err = getDuration("JWT_JWKS_REFRESH_INTERVAL", 5*time.Minute); err != nil {
		return JWTConfig{}, err
	}
	// Bounds refreshes triggered by unknown kids.
	if cfg.JWKSMinRefreshInterval, err = getDuration("JWT_JWKS_MIN_REFRESH_INTERVAL", 10*time.Second); err != nil {
		return JWTConfig{}, err
	}
	if cfg.HTTPTimeout, err = getDuration("JWT_HTTP_TIMEOUT", 5*time.Second); err != nil {
		return JWTConfig{}, err
	}
	if cfg.ClockSkew < 0 {
		return JWTConfig{}, fmt.Errorf("JWT_CLOCK_SKEW must not be negative")
	}
	return cfg, nil
}
