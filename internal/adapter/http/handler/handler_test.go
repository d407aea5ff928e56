package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/goexpense/internal/adapter/http/middleware"
	"github.com/iho/goexpense/internal/adapter/repository/memory"
	"github.com/iho/goexpense/internal/infrastructure/auth"
	"github.com/iho/goexpense/internal/infrastructure/idgen"
	"github.com/iho/goexpense/internal/usecase"
)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }
func (fixedClock) Today() string  { return "2024-03-10" }

type testEnv struct {
	repo     *memory.RecordRepository
	users    *usecase.UserUseCase
	sessions *usecase.SessionManager
	jwt      *auth.JWTManager
}

func newTestEnv() *testEnv {
	ids := idgen.NewULIDGenerator()
	repo := memory.NewRecordRepository(ids)

	return &testEnv{
		repo:  repo,
		users: usecase.NewUserUseCase(memory.NewUserRepository(), ids, fixedClock{}, memory.NewCache(), zerolog.Nop()),
		sessions: usecase.NewSessionManager(
			func() *usecase.LedgerStore {
				return usecase.NewLedgerStore(repo, fixedClock{}, usecase.ReloadPolicy{}, nil, nil, zerolog.Nop())
			},
			func() usecase.IdentityProvider { return auth.NewIdentityFeed() },
			zerolog.Nop(),
		),
		jwt: auth.NewJWTManager("test-secret", time.Hour),
	}
}

// withClaims authenticates the request as the holder of token.
func (e *testEnv) withClaims(t *testing.T, r *http.Request, token string) *http.Request {
	t.Helper()
	claims, err := e.jwt.Verify(token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	return r.WithContext(context.WithValue(r.Context(), middleware.ClaimsContextKey, claims))
}

func jsonRequest(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}
