package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewTriggerTokens_RejectsShortSecret(t *testing.T) {
	_, err := NewTriggerTokens("short", time.Minute)
	assert.ErrorIs(t, err, ErrWeakSecret)
}

func TestTriggerTokens_RoundTrip(t *testing.T) {
	ctx := context.Background()
	tokens, err := NewTriggerTokens(testSecret, time.Minute)
	require.NoError(t, err)

	signed, err := tokens.Issue(ctx, "messages")
	require.NoError(t, err)

	claims, err := tokens.Validate(ctx, signed)
	require.NoError(t, err)
	assert.Equal(t, "messages", claims.Queue)
	assert.Equal(t, "dispatcher", claims.Subject)
}

func TestTriggerTokens_Expired(t *testing.T) {
	ctx := context.Background()
	tokens, err := NewTriggerTokens(testSecret, time.Minute)
	require.NoError(t, err)

	issuedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tokens.Now = func() time.Time { return issuedAt }
	signed, err := tokens.Issue(ctx, "")
	require.NoError(t, err)

	tokens.Now = func() time.Time { return issuedAt.Add(10 * time.Minute) }
	_, err = tokens.Validate(ctx, signed)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTriggerTokens_Rejects(t *testing.T) {
	ctx := context.Background()
	tokens, err := NewTriggerTokens(testSecret, time.Minute)
	require.NoError(t, err)

	other, err := NewTriggerTokens("ffffffffffffffffffffffffffffffff", time.Minute)
	require.NoError(t, err)
	foreign, err := other.Issue(ctx, "chats")
	require.NoError(t, err)

	wrongType := jwt.NewWithClaims(jwt.SigningMethodHS256, TriggerClaims{
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	wrongTypeSigned, err := wrongType.SignedString([]byte(testSecret))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":       "not-a-token",
		"other secret":  foreign,
		"wrong type":    wrongTypeSigned,
		"shared secret": testSecret,
		"empty":         "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.Validate(ctx, token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
