package domain

import (
	"errors"
	"time"
)

// User is a registered account holder.
type User struct {
	ID             string
	Email          string
	Name           string
	Phone          string
	HashedPassword string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Active         bool
}

// Identity returns the principal records are scoped under.
func (u *User) Identity() *Identity {
	return &Identity{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
	}
}

// Identity is the authenticated principal. Records are owned by Identity.ID.
type Identity struct {
	ID    string
	Email string
	Name  string
}

// Initial returns the upper-cased first letter of the email, or "?".
func (i *Identity) Initial() string {
	if i == nil || i.Email == "" {
		return "?"
	}
	r := []rune(i.Email)[0]
	if r >= 'a' && r <= 'z' {
		r -= 'a' - 'A'
	}
	return string(r)
}

// User and authentication errors
var (
	ErrMissingField    = errors.New("field is required")
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrPasswordTooWeak = errors.New("password does not meet requirements")
	ErrEmailTaken      = errors.New("email is already registered")
	ErrUserNotFound    = errors.New("user not found")
	ErrUserInactive    = errors.New("user account is inactive")

	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrTokenRevoked = errors.New("token has been revoked")
)
