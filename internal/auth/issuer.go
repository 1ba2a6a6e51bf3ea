package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"dialer-platform/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer mints capability tokens the client SDK presents to the voice
// platform. Tokens are RS256-signed with the application private key and
// carry the full client permission set (ACL paths) plus an optional subject.
type Issuer struct {
	applicationID string
	key           *rsa.PrivateKey
	ttl           time.Duration
	now           func() time.Time
}

func NewIssuer(cfg config.TokenConfig) (*Issuer, error) {
	if cfg.ApplicationID == "" {
		return nil, errors.New("auth: application id is required")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.PrivateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("auth: parse private key: %w", err)
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{
		applicationID: cfg.ApplicationID,
		key:           key,
		ttl:           ttl,
		now:           time.Now,
	}, nil
}

// CapabilityClaims is the only token shape this service issues.
type CapabilityClaims struct {
	jwt.RegisteredClaims

	ApplicationID string `json:"application_id"`
	ACL           ACL    `json:"acl"`
}

type ACL struct {
	Paths map[string]struct{} `json:"paths"`
}

// defaultACLPaths is the fixed permission-path set granted to every client.
func defaultACLPaths() map[string]struct{} {
	return map[string]struct{}{
		"/*/users/**":         {},
		"/*/conversations/**": {},
		"/*/sessions/**":      {},
		"/*/devices/**":       {},
		"/*/image/**":         {},
		"/*/media/**":         {},
		"/*/applications/**":  {},
		"/*/push/**":          {},
		"/*/knocking/**":      {},
		"/*/legs/**":          {},
	}
}

// Issue signs a token for userID (optional; empty means an anonymous token
// without a subject). Returns the compact token and its validity in seconds.
func (i *Issuer) Issue(userID string) (string, int64, error) {
	now := i.now().UTC()

	claims := CapabilityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
			Subject:   userID,
		},
		ApplicationID: i.applicationID,
		ACL:           ACL{Paths: defaultACLPaths()},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := t.SignedString(i.key)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(i.ttl.Seconds()), nil
}

// Verify parses and validates a token against the issuer key.
// Used by tests and diagnostics; the platform does its own verification.
func (i *Issuer) Verify(tokenString string, now time.Time) (CapabilityClaims, error) {
	var claims CapabilityClaims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30*time.Second), // clock skew tolerance
	)

	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return &i.key.PublicKey, nil
	})
	if err != nil {
		return CapabilityClaims{}, err
	}

	if claims.ApplicationID != i.applicationID {
		return CapabilityClaims{}, errors.New("auth: application_id mismatch")
	}
	if len(claims.ACL.Paths) == 0 {
		return CapabilityClaims{}, errors.New("auth: acl paths missing")
	}
	return claims, nil
}
