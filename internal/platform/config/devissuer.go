package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
)

// DevIssuerConfig configures cmd/devjwt, the local token issuer.
type DevIssuerConfig struct {
	Port     string
	Issuer   string
	Audience string
	Kid      string
	TokenTTL time.Duration

	LogLevel string
}

func LoadDevIssuer() (DevIssuerConfig, error) {
	_ = godotenv.Load()
	return LoadDevIssuerFromEnv()
}

func LoadDevIssuerFromEnv() (DevIssuerConfig, error) {
	cfg := DevIssuerConfig{
		Port:     getEnv("PORT", "5556"),
		Issuer:   getEnv("ISSUER", "http://devjwt:5556"),
		Audience: getEnv("AUDIENCE", "onboarding-api"),
		Kid:      getEnv("KID", "dev-kid-1"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	ttl, err := getDuration("TTL", 30*time.Minute)
	if err != nil {
		return DevIssuerConfig{}, err
	}
	if ttl <= 0 {
		return DevIssuerConfig{}, fmt.Errorf("TTL must be > 0 (got %s)", ttl)
	}
	cfg.TokenTTL = ttl
	return cfg, nil
}
