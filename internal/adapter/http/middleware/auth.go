package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/iho/goexpense/internal/domain"
	"github.com/iho/goexpense/internal/infrastructure/auth"
	"github.com/iho/goexpense/internal/usecase"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// ClaimsContextKey is the context key for the verified token claims
	ClaimsContextKey ContextKey = "claims"
)

// TokenVerifier verifies bearer tokens. ExpiredClaims recovers the claims of
// a genuine token that is past its expiry.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
	ExpiredClaims(token string) (*auth.Claims, error)
}

// SessionCloser closes the ledger session of an identity.
type SessionCloser interface {
	Close(ctx context.Context, identityID string) error
}

// Authenticator rejects requests without a valid, unrevoked bearer token.
type Authenticator struct {
	verifier  TokenVerifier
	blocklist usecase.TokenBlocklist
	sessions  SessionCloser
	logger    zerolog.Logger
}

// NewAuthenticator creates an Authenticator. blocklist and sessions may be nil.
func NewAuthenticator(verifier TokenVerifier, blocklist usecase.TokenBlocklist, sessions SessionCloser, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		verifier:  verifier,
		blocklist: blocklist,
		sessions:  sessions,
		logger:    logger,
	}
}

// Wrap wraps an http.Handler with authentication.
func (a *Authenticator) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract token from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, "missing authorization header")
			return
		}

		// Parse Bearer token
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			unauthorized(w, "invalid authorization header format")
			return
		}

		token := strings.TrimSpace(parts[1])
		claims, err := a.verifier.Verify(token)
		if err != nil {
			if errors.Is(err, domain.ErrExpiredToken) {
				if expired, err := a.verifier.ExpiredClaims(token); err == nil {
					a.closeSession(r.Context(), expired.UserID, "expired")
				}
				unauthorized(w, "token has expired")
				return
			}
			unauthorized(w, "invalid token")
			return
		}

		if a.blocklist != nil {
			revoked, err := a.blocklist.IsRevoked(r.Context(), claims.TokenID())
			if err != nil {
				a.logger.Error().Err(err).Msg("token revocation check failed")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"error":"authentication unavailable"}`))
				return
			}
			if revoked {
				a.closeSession(r.Context(), claims.UserID, "revoked")
				unauthorized(w, domain.ErrTokenRevoked.Error())
				return
			}
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
			scoped := l.With().Str("identity", claims.UserID).Logger()
			ctx = scoped.WithContext(ctx)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// closeSession drops the ledger session of an identity whose token is no
// longer usable.
func (a *Authenticator) closeSession(ctx context.Context, identityID, reason string) {
	if a.sessions == nil {
		return
	}
	if err := a.sessions.Close(ctx, identityID); err != nil {
		a.logger.Warn().Err(err).Str("identity", identityID).Str("reason", reason).Msg("failed to close session")
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized", "message": message})
}

// ClaimsFromContext extracts the verified token claims from context
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*auth.Claims)
	return claims, ok
}

// IdentityFromContext returns the authenticated identity, or nil.
func IdentityFromContext(ctx context.Context) *domain.Identity {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return nil
	}
	return claims.Identity()
}
