package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	defaultTTL       = 24 * time.Hour
	defaultClockSkew = 30 * time.Second
	devSecret        = "dev-secret"
)

var (
	errMissingSecret = errors.New("jwt secret not configured")
	ErrInvalidToken  = errors.New("invalid token")
)

// Claims identifies a wallet session. Subject holds the lowercased wallet address.
type Claims struct {
	jwt.RegisteredClaims
}

// Address returns the wallet address carried in the subject.
func (c Claims) Address() string {
	return c.Subject
}

// Verifier signs and verifies HS256 session tokens.
type Verifier struct {
	secret    []byte
	clockSkew time.Duration
	now       func() time.Time
}

// NewVerifier builds a Verifier. Production environments require a secret;
// dev-like environments fall back to a fixed development secret.
func NewVerifier(secret string, production bool) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		if production {
			return nil, fmt.Errorf("%w: JWT_SECRET required in production", errMissingSecret)
		}
		secret = devSecret
	}
	return &Verifier{secret: []byte(secret), clockSkew: defaultClockSkew, now: time.Now}, nil
}

// Sign issues a token for a wallet address.
func (v *Verifier) Sign(address string, ttl time.Duration) (string, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return "", errors.New("address is required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	now := v.now().UTC()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   address,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify parses the token and returns its claims.
func (v *Verifier) Verify(tokenString string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithLeeway(v.clockSkew), jwt.WithTimeFunc(v.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
