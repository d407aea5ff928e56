package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/iho/goexpense/internal/domain"
)

// UserUseCase handles registration, sign-in and profile lookups.
type UserUseCase struct {
	userRepo UserRepository
	idGen    IDGenerator
	clock    Clock
	cache    Cache
	logger   zerolog.Logger
}

// NewUserUseCase creates a new user use case. cache may be nil.
func NewUserUseCase(userRepo UserRepository, idGen IDGenerator, clock Clock, cache Cache, logger zerolog.Logger) *UserUseCase {
	return &UserUseCase{
		userRepo: userRepo,
		idGen:    idGen,
		clock:    clock,
		cache:    cache,
		logger:   logger.With().Str("component", "user_usecase").Logger(),
	}
}

// RegisterInput represents input for registering a user.
type RegisterInput struct {
	Name     string
	Phone    string
	Email    string
	Password string
}

// Register validates the form and creates a user with a hashed password.
func (uc *UserUseCase) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if err := domain.ValidateRequired(domain.FieldName, input.Name); err != nil {
		return nil, err
	}
	if err := domain.ValidateRequired(domain.FieldPhone, input.Phone); err != nil {
		return nil, err
	}
	if err := domain.ValidateEmail(input.Email); err != nil {
		return nil, err
	}
	if err := domain.ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	email := normalizeEmail(input.Email)

	existing, err := uc.userRepo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrEmailTaken
	}

	hashedPassword, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	now := uc.clock.Now().UTC()
	user := &domain.User{
		ID:             uc.idGen.Generate(),
		Email:          email,
		Name:           strings.TrimSpace(input.Name),
		Phone:          strings.TrimSpace(input.Phone),
		HashedPassword: hashedPassword,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := uc.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	uc.logger.Info().Str("user_id", user.ID).Msg("user registered")

	// Don't return hashed password
	user.HashedPassword = ""
	return user, nil
}

// AuthenticateInput represents authentication input
type AuthenticateInput struct {
	Email    string
	Password string
}

// Authenticate verifies user credentials
func (uc *UserUseCase) Authenticate(ctx context.Context, input AuthenticateInput) (*domain.User, error) {
	if err := domain.ValidateEmail(input.Email); err != nil {
		return nil, err
	}
	if err := domain.ValidateRequired(domain.FieldPassword, input.Password); err != nil {
		return nil, err
	}

	user, err := uc.userRepo.GetByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			uc.logger.Error().Err(err).Msg("user lookup failed during sign-in")
		}
		return nil, domain.ErrUnauthorized
	}

	if !user.Active {
		return nil, domain.ErrUserInactive
	}

	if err := verifyPassword(user.HashedPassword, input.Password); err != nil {
		return nil, domain.ErrUnauthorized
	}

	user.HashedPassword = ""
	return user, nil
}

type cachedProfile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// GetProfile returns a user without credentials, served from cache when possible.
func (uc *UserUseCase) GetProfile(ctx context.Context, id string) (*domain.User, error) {
	key := profileCacheKey(id)

	if uc.cache != nil {
		if data, err := uc.cache.Get(ctx, key); err == nil && data != nil {
			var p cachedProfile
			if err := json.Unmarshal(data, &p); err == nil {
				return &domain.User{ID: p.ID, Email: p.Email, Name: p.Name, Phone: p.Phone, Active: true}, nil
			}
		}
	}

	user, err := uc.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.HashedPassword = ""

	if uc.cache != nil && user.Active {
		data, _ := json.Marshal(cachedProfile{ID: user.ID, Email: user.Email, Name: user.Name, Phone: user.Phone})
		if err := uc.cache.Set(ctx, key, data, ProfileCacheTTL); err != nil {
			uc.logger.Warn().Err(err).Str("user_id", id).Msg("failed to cache profile")
		}
	}

	return user, nil
}

func profileCacheKey(id string) string {
	return "profile:" + id
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// hashPassword hashes a password using bcrypt
func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// verifyPassword compares a hashed password with a plain text password
func verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
