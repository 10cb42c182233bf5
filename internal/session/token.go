// Package session ties browser cookies to per-user tracker controllers.
//
// The cookie holds a signed JWT whose only job is to carry the session id and
// its expiry; login state itself lives in the controller.
package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

const issuer = "expenses"

var ErrInvalidToken = errors.New("invalid session token")

type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 session tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner uses secret, or a random one when it is empty. Random secrets do
// not survive restarts, which just means everyone starts a fresh session.
func NewSigner(secret string, ttl time.Duration) (*Signer, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	return &Signer{secret: key, ttl: ttl, now: time.Now}, nil
}

// NewID returns a fresh, lexically sortable session id.
func NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.DefaultEntropy()).String()
}

func (s *Signer) Issue(sessionID string) (string, error) {
	now := s.now()
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse validates the token and returns the session id it carries.
func (s *Signer) Parse(token string) (string, error) {
	claims := new(Claims)
	parser := jwt.NewParser(
		jwt.WithIssuer(issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if _, err := ulid.ParseStrict(claims.SessionID); err != nil {
		return "", ErrInvalidToken
	}
	return claims.SessionID, nil
}
