package jwks_testutil

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/directoryhub/onboarding-api/internal/platform/auth/devissuer"
)

type Keypair = devissuer.Key

func GenerateRSAKeypair(kid string) (Keypair, error) {
	return devissuer.GenerateKey(kid)
}

// NewRotatingJWKSServer returns a JWKS server whose key set can be swapped at runtime.
//
// Use SetKeys to rotate keys.
func NewRotatingJWKSServer() (*httptest.Server, func(keys []Keypair)) {
	var jwksJSON atomic.Value // []byte
	jwksJSON.Store([]byte(`{"keys":[]}`))

	setKeys := func(keys []Keypair) {
		b, err := devissuer.MarshalJWKS(keys...)
		if err != nil {
			panic(err)
		}
		jwksJSON.Store(b)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(jwksJSON.Load().([]byte))
	}))

	return srv, setKeys
}

// MintRS256JWT creates a signed JWT using RS256 with the given keypair.
//
// aud may be either a string or []string. An empty email omits the claim.
func MintRS256JWT(kp Keypair, iss string, aud any, sub, email string, now time.Time, expDelta time.Duration, nbfDelta *time.Duration) (string, error) {
	c := devissuer.Claims{
		Issuer:    iss,
		Audience:  aud,
		Subject:   sub,
		Email:     email,
		ExpiresAt: now.Add(expDelta),
	}
	if nbfDelta != nil {
		nbf := now.Add(*nbfDelta)
		c.NotBefore = &nbf
	}
	return devissuer.Sign(kp, c)
}
