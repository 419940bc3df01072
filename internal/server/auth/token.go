// Package auth issues and verifies stateless session tokens and carries the
// resolved identity through request contexts.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/gideon/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is used when neither the service nor the caller supplies a
// lifetime.
const DefaultTokenTTL = 30 * time.Minute

// Claims is the token payload: the username as subject plus issue and expiry
// times.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenService signs HS256 JWTs. Tokens are not stored anywhere; a token is
// valid until it expires.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type TokenOption func(*TokenService)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService returns a service signing with secret. A non-positive ttl
// falls back to DefaultTokenTTL.
func NewTokenService(secret []byte, ttl time.Duration, opts ...TokenOption) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	s := &TokenService{secret: secret, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// TTL returns the configured default lifetime.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a token for subject. ttl <= 0 means the configured default.
func (s *TokenService) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", common.ErrInvalidToken
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	return token.SignedString(s.secret)
}

// Parse verifies signature and expiry and returns the claims. Failures map to
// common.ErrTokenMalformed, common.ErrTokenSignature, common.ErrTokenExpired
// or common.ErrInvalidToken; all of them match common.ErrorUnauthorized.
func (s *TokenService) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)

	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// Verify returns the subject of a valid token.
func (s *TokenService) Verify(tokenString string) (string, error) {
	claims, err := s.Parse(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Refresh issues a new token with the default lifetime for the subject of a
// still-valid token.
func (s *TokenService) Refresh(tokenString string) (string, error) {
	subject, err := s.Verify(tokenString)
	if err != nil {
		return "", err
	}
	return s.Issue(subject, 0)
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return common.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return common.ErrTokenSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return common.ErrTokenMalformed
	default:
		return common.ErrInvalidToken
	}
}
