package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/goexpense/internal/adapter/http/dto"
	"github.com/iho/goexpense/internal/adapter/http/middleware"
	"github.com/iho/goexpense/internal/domain"
	"github.com/iho/goexpense/internal/usecase"
)

// UserService is the account side of the identity provider.
type UserService interface {
	Register(ctx context.Context, input usecase.RegisterInput) (*domain.User, error)
	Authenticate(ctx context.Context, input usecase.AuthenticateInput) (*domain.User, error)
	GetProfile(ctx context.Context, id string) (*domain.User, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Generate(user *domain.User) (string, error)
}

// SessionService opens and closes per-identity ledger sessions.
type SessionService interface {
	Open(ctx context.Context, identity *domain.Identity) (*usecase.Session, error)
	Close(ctx context.Context, identityID string) error
}

// AuthObserver records sign-in outcomes.
type AuthObserver interface {
	ObserveAuth(err error)
}

// AuthHandler handles registration, sign-in, sign-out and profile requests.
type AuthHandler struct {
	users     UserService
	tokens    TokenIssuer
	sessions  SessionService
	blocklist usecase.TokenBlocklist
	observer  AuthObserver
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAuthHandler creates a new auth handler. observer may be nil.
func NewAuthHandler(
	users UserService,
	tokens TokenIssuer,
	sessions SessionService,
	blocklist usecase.TokenBlocklist,
	observer AuthObserver,
	logger zerolog.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:     users,
		tokens:    tokens,
		sessions:  sessions,
		blocklist: blocklist,
		observer:  observer,
		logger:    logger.With().Str("component", "auth_handler").Logger(),
		now:       time.Now,
	}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	user, err := h.users.Register(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.UserFromDomain(user))
}

// Login handles POST /auth/login. A successful sign-in opens the identity's
// ledger session so its records are loaded before the first request.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.ToUseCaseInput())
	h.observe(err)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	token, err := h.tokens.Generate(user)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to generate token")
		writeError(w, http.StatusInternalServerError, "failed to generate token", "")
		return
	}

	if _, err := h.sessions.Open(r.Context(), user.Identity()); err != nil {
		// The session is retried on the first ledger request.
		h.logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to open session at sign-in")
	}

	writeJSON(w, http.StatusOK, dto.LoginResponse{
		Token: token,
		User:  dto.UserFromDomain(user),
	})
}

// Logout handles POST /auth/logout: the token is revoked for the rest of its
// lifetime and the identity's session is cleared.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeDomainError(w, domain.ErrUnauthorized)
		return
	}

	if h.blocklist != nil {
		if ttl := claims.Remaining(h.now()); ttl > 0 {
			if err := h.blocklist.Revoke(r.Context(), claims.TokenID(), ttl); err != nil {
				h.logger.Error().Err(err).Str("user_id", claims.UserID).Msg("failed to revoke token")
				writeError(w, http.StatusServiceUnavailable, "sign-out unavailable", "")
				return
			}
		}
	}

	if err := h.sessions.Close(r.Context(), claims.UserID); err != nil {
		h.logger.Warn().Err(err).Str("user_id", claims.UserID).Msg("failed to close session")
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeDomainError(w, domain.ErrUnauthorized)
		return
	}

	user, err := h.users.GetProfile(r.Context(), claims.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.UserFromDomain(user))
}

func (h *AuthHandler) observe(err error) {
	if h.observer != nil {
		h.observer.ObserveAuth(err)
	}
}
