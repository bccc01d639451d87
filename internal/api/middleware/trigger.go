package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/eco-queue/internal/api/shared"
	"github.com/phrazzld/eco-queue/internal/auth"
	"github.com/phrazzld/eco-queue/internal/platform/logger"
)

// SecretHeader carries the shared trigger secret for callers that cannot mint
// tokens, such as an external cron.
const SecretHeader = "X-Trigger-Secret"

// TokenValidator verifies signed trigger tokens.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*auth.TriggerClaims, error)
}

// TriggerAuth guards the dispatch and admin routes.
type TriggerAuth struct {
	secret []byte
	tokens TokenValidator
}

// NewTriggerAuth creates a TriggerAuth. An empty secret disables the check;
// tokens may be nil when only the shared secret is accepted.
func NewTriggerAuth(secret string, tokens TokenValidator) *TriggerAuth {
	return &TriggerAuth{secret: []byte(secret), tokens: tokens}
}

// Require rejects requests that carry neither the shared secret nor a valid
// trigger token.
func (m *TriggerAuth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(m.secret) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		log := logger.FromContextOrDefault(r.Context(), slog.Default())

		if m.matchesSecret(r.Header.Get(SecretHeader)) {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			log.Debug("trigger request without credentials", slog.String("path", r.URL.Path))
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized: missing credentials")
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized: invalid authorization format")
			return
		}
		credential := parts[1]

		if m.matchesSecret(credential) {
			next.ServeHTTP(w, r)
			return
		}
		if m.tokens == nil {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized: invalid credentials")
			return
		}

		claims, err := m.tokens.Validate(r.Context(), credential)
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized,
				"Unauthorized: invalid credentials", err, shared.WithElevatedLogLevel())
			return
		}
		log.Debug("trigger token accepted",
			slog.String("token_id", claims.ID),
			slog.String("queue", claims.Queue))
		next.ServeHTTP(w, r)
	})
}

func (m *TriggerAuth) matchesSecret(candidate string) bool {
	if candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), m.secret) == 1
}
