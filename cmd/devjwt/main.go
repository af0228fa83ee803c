// Command devjwt serves a JWKS and mints RS256 tokens for local runs of the API
// with AUTH_MODE=jwt.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/directoryhub/onboarding-api/internal/platform/auth/devissuer"
	"github.com/directoryhub/onboarding-api/internal/platform/config"
	"github.com/directoryhub/onboarding-api/internal/platform/logger"
)

func main() {
	cfg, err := config.LoadDevIssuer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New("development", cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	key, err := devissuer.GenerateKey(cfg.Kid)
	if err != nil {
		log.Fatal("generate key", zap.Error(err))
	}
	set, err := devissuer.MarshalJWKS(key)
	if err != nil {
		log.Fatal("marshal jwks", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, key, set, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("devjwt listening",
		zap.String("addr", srv.Addr),
		zap.String("iss", cfg.Issuer),
		zap.String("aud", cfg.Audience),
		zap.String("kid", cfg.Kid),
		zap.Duration("ttl", cfg.TokenTTL))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("serve", zap.Error(err))
	}
}

func newRouter(cfg config.DevIssuerConfig, key devissuer.Key, set []byte, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/.well-known/jwks.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(set)
	})

	// GET /token?sub=dev|alice&email=alice@example.com
	r.Get("/token", func(w http.ResponseWriter, r *http.Request) {
		sub := strings.TrimSpace(r.URL.Query().Get("sub"))
		if sub == "" {
			http.Error(w, "missing sub", http.StatusBadRequest)
			return
		}
		now := time.Now().UTC()
		nbf := now.Add(-5 * time.Second)
		claims := devissuer.Claims{
			Issuer:    cfg.Issuer,
			Audience:  cfg.Audience,
			Subject:   sub,
			Email:     strings.TrimSpace(r.URL.Query().Get("email")),
			IssuedAt:  now,
			ExpiresAt: now.Add(cfg.TokenTTL),
			NotBefore: &nbf,
		}
		token, err := devissuer.Sign(key, claims)
		if err != nil {
			log.Error("mint token", zap.String("sub", sub), zap.Error(err))
			http.Error(w, "failed to mint token", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": token,
			"sub":   sub,
			"email": claims.Email,
			"iss":   claims.Issuer,
			"aud":   claims.Audience,
			"exp":   claims.ExpiresAt.Unix(),
		})
	})
	return r
}
