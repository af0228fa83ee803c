// Package devissuer signs RS256 tokens and publishes the matching JWKS for local
// development and tests. It is not an OIDC provider.
package devissuer

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Key is an RSA signing key published under Kid.
type Key struct {
	Kid     string
	Private *rsa.PrivateKey
}

func GenerateKey(kid string) (Key, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return Key{}, err
	}
	return Key{Kid: kid, Private: priv}, nil
}

type jwk struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// MarshalJWKS encodes the public halves of keys as a JWK set.
func MarshalJWKS(keys ...Key) ([]byte, error) {
	set := struct {
		Keys []jwk `json:"keys"`
	}{Keys: make([]jwk, 0, len(keys))}
	for _, k := range keys {
		if k.Private == nil {
			return nil, errors.New("devissuer: key without private half")
		}
		pub := k.Private.PublicKey
		set.Keys = append(set.Keys, jwk{
			Kty: "RSA",
			Use: "sig",
			Alg: "RS256",
			Kid: k.Kid,
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}
	return json.Marshal(set)
}

// Claims describes one token. Audience may be a string or []string.
// A nil NotBefore omits nbf; an empty Email omits the email claim.
type Claims struct {
	Issuer    string
	Audience  any
	Subject   string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	NotBefore *time.Time
}

func Sign(k Key, c Claims) (string, error) {
	mc := jwt.MapClaims{
		"iss": c.Issuer,
		"aud": c.Audience,
		"sub": c.Subject,
		"exp": c.ExpiresAt.Unix(),
	}
	if !c.IssuedAt.IsZero() {
		mc["iat"] = c.IssuedAt.Unix()
	}
	if c.NotBefore != nil {
		mc["nbf"] = c.NotBefore.Unix()
	}
	if c.Email != "" {
		mc["email"] = c.Email
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, mc)
	tok.Header["kid"] = k.Kid
	return tok.SignedString(k.Private)
}
