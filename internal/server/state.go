package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wave/molly/internal/config"
)

const (
	stateIssuer  = "molly"
	stateSubject = "bullhorn-oauth"
)

// StateClaims are carried in the OAuth state parameter.
type StateClaims struct {
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

// StateService signs and validates OAuth state tokens so that the callback
// only accepts redirects that this server started.
type StateService struct {
	config *config.StateConfig
	now    func() time.Time
}

// NewStateService creates a new state service with the given configuration.
func NewStateService(cfg *config.StateConfig) *StateService {
	return &StateService{config: cfg, now: time.Now}
}

// Generate returns a signed state token with a fresh nonce.
func (s *StateService) Generate() (string, error) {
	now := s.now()
	claims := &StateClaims{
		Nonce: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    stateIssuer,
			Subject:   stateSubject,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}
	return signed, nil
}

// Validate parses a state token and returns its claims.
func (s *StateService) Validate(tokenString string) (*StateClaims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("state is empty")
	}

	claims := &StateClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithSubject(stateSubject),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("state expired: %w", err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("invalid state signature: %w", err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("malformed state: %w", err)
		}
		return nil, fmt.Errorf("failed to parse state: %w", err)
	}

	if !token.Valid || claims.Nonce == "" {
		return nil, fmt.Errorf("state is not valid")
	}
	return claims, nil
}
