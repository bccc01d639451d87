package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/eco-queue/internal/platform/logger"
)

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 32

// DefaultTokenLifetime bounds how long a scheduled re-invocation may take to
// arrive. Continuations can be hours away, so the token is minted at call
// time rather than at schedule time.
const DefaultTokenLifetime = 5 * time.Minute

const triggerTokenType = "dispatch_trigger"

// TriggerClaims are the claims carried by a trigger token.
type TriggerClaims struct {
	// Queue is the queue the caller asks to dispatch. Empty means any.
	Queue     string `json:"queue,omitempty"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// TriggerTokens signs and verifies trigger tokens with HMAC-SHA256.
type TriggerTokens struct {
	signingKey []byte
	lifetime   time.Duration
	clockSkew  time.Duration

	// Now is injectable for tests.
	Now func() time.Time
}

// NewTriggerTokens creates a TriggerTokens for secret.
func NewTriggerTokens(secret string, lifetime time.Duration) (*TriggerTokens, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	return &TriggerTokens{
		signingKey: []byte(secret),
		lifetime:   lifetime,
		clockSkew:  30 * time.Second,
		Now:        time.Now,
	}, nil
}

// Issue returns a signed token for a trigger call on queue.
func (s *TriggerTokens) Issue(ctx context.Context, queue string) (string, error) {
	now := s.Now()
	claims := TriggerClaims{
		Queue:     queue,
		TokenType: triggerTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "dispatcher",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		logger.FromContext(ctx).Error("failed to sign trigger token",
			"error", err,
			"signing_method", jwt.SigningMethodHS256.Name)
		return "", fmt.Errorf("failed to sign trigger token: %w", err)
	}
	return signed, nil
}

// Validate parses token and checks its signature, lifetime and type.
func (s *TriggerTokens) Validate(ctx context.Context, token string) (*TriggerClaims, error) {
	log := logger.FromContext(ctx)
	now := s.Now()

	parsed, err := jwt.ParseWithClaims(
		token,
		&TriggerClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			log.Debug("trigger token expired", "error", err)
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
			log.Debug("trigger token not yet valid", "error", err)
			return nil, ErrTokenNotYetValid
		default:
			log.Debug("trigger token rejected", "error", err, "error_type", fmt.Sprintf("%T", err))
			return nil, ErrInvalidToken
		}
	}

	claims, ok := parsed.Claims.(*TriggerClaims)
	if !ok || !parsed.Valid || claims.TokenType != triggerTokenType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
