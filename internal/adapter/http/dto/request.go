package dto

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/iho/goexpense/internal/usecase"
)

// NumberText is a form value that clients may send either as a JSON string
// or as a JSON number. The text is kept verbatim for validation.
type NumberText string

// UnmarshalJSON accepts "12.50", 12.50 and null.
func (n *NumberText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*n = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = NumberText(s)
	default:
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return fmt.Errorf("value must be a number or a string: %w", err)
		}
		*n = NumberText(num.String())
	}
	return nil
}

// RegisterRequest represents a request to register a user.
type RegisterRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ToUseCaseInput converts to use case input.
func (r *RegisterRequest) ToUseCaseInput() usecase.RegisterInput {
	return usecase.RegisterInput{
		Name:     r.Name,
		Phone:    r.Phone,
		Email:    r.Email,
		Password: r.Password,
	}
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ToUseCaseInput converts to use case input.
func (r *LoginRequest) ToUseCaseInput() usecase.AuthenticateInput {
	return usecase.AuthenticateInput{
		Email:    r.Email,
		Password: r.Password,
	}
}

// AddRecordRequest represents a request to add an expense record.
type AddRecordRequest struct {
	Description string     `json:"description"`
	Value       NumberText `json:"value"`
}

// DraftRequest replaces the fields of the record being edited.
type DraftRequest struct {
	Description string     `json:"description"`
	Value       NumberText `json:"value"`
}
