package service

import (
	"errors"
	"time"

	"github.com/dom/lotus-draft/internal/pkg/clock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidSession = errors.New("invalid session token")

// SessionService issues signed tokens that carry an anonymous browser session
// id. All draft data is keyed by that id.
type SessionService struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewSessionService(secret string, ttl time.Duration, clk clock.Clock) *SessionService {
	if clk == nil {
		clk = clock.New()
	}
	return &SessionService{secret: []byte(secret), ttl: ttl, clock: clk}
}

func (s *SessionService) Issue() (uuid.UUID, string, error) {
	id := uuid.New()
	now := s.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   id.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, token, nil
}

func (s *SessionService) Validate(tokenString string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidSession
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidSession
	}
	return id, nil
}

func (s *SessionService) TTL() time.Duration {
	return s.ttl
}
