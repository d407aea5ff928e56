package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Validation constants
const (
	MaxDescriptionLength = 255
	MaxRecordValue       = "1000000000000" // 1 trillion
	MaxValueScale        = 4               // matches NUMERIC(20, 4)
	MinPasswordLength    = 8
	MaxPasswordLength    = 128
)

// Field names reported in validation errors
const (
	FieldDescription = "description"
	FieldValue       = "value"
	FieldEmail       = "email"
	FieldPassword    = "password"
	FieldName        = "name"
	FieldPhone       = "phone"
)

var (
	emailRegex  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	amountRegex = regexp.MustCompile(`^(\d+([.,]\d+)?|[.,]\d+)$`)

	maxRecordValue = decimal.RequireFromString(MaxRecordValue)
)

// ValidateDescription trims the description and rejects empty or oversized input.
func ValidateDescription(description string) (string, error) {
	description = strings.TrimSpace(description)

	if description == "" {
		return "", NewValidationError(FieldDescription, ErrEmptyDescription)
	}

	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return "", NewValidationError(FieldDescription,
			fmt.Errorf("%w: exceeds %d characters", ErrDescriptionTooLong, MaxDescriptionLength))
	}

	return description, nil
}

// ParseValue parses user-entered amount text. A single comma is accepted as
// the decimal separator. Signs, exponents and anything non-numeric are rejected,
// so the result is always finite.
func ParseValue(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)

	if raw == "" {
		return decimal.Zero, NewValidationError(FieldValue, ErrMissingValue)
	}

	if strings.HasPrefix(raw, "-") {
		return decimal.Zero, NewValidationError(FieldValue, ErrNegativeValue)
	}

	if !amountRegex.MatchString(raw) {
		return decimal.Zero, NewValidationError(FieldValue, ErrInvalidValue)
	}

	normalized := strings.Replace(raw, ",", ".", 1)
	if strings.HasPrefix(normalized, ".") {
		normalized = "0" + normalized
	}

	value, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, NewValidationError(FieldValue, ErrInvalidValue)
	}

	if err := ValidateValue(value); err != nil {
		return decimal.Zero, err
	}

	return value, nil
}

// ValidateValue checks a parsed amount is non-negative, within bounds and
// has no more than MaxValueScale fractional digits.
func ValidateValue(value decimal.Decimal) error {
	if value.IsNegative() {
		return NewValidationError(FieldValue, ErrNegativeValue)
	}

	if value.GreaterThan(maxRecordValue) {
		return NewValidationError(FieldValue,
			fmt.Errorf("%w: maximum is %s", ErrValueTooLarge, MaxRecordValue))
	}

	if !value.Round(MaxValueScale).Equal(value) {
		return NewValidationError(FieldValue,
			fmt.Errorf("%w: at most %d are allowed", ErrValuePrecision, MaxValueScale))
	}

	return nil
}

// ValidateRecordInput validates a description/value pair as typed by the user.
func ValidateRecordInput(description, value string) (string, decimal.Decimal, error) {
	desc, err := ValidateDescription(description)
	if err != nil {
		return "", decimal.Zero, err
	}

	amount, err := ParseValue(value)
	if err != nil {
		return "", decimal.Zero, err
	}

	return desc, amount, nil
}

// ValidateEmail validates email format
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)

	if email == "" {
		return NewValidationError(FieldEmail, ErrMissingField)
	}

	if !emailRegex.MatchString(email) {
		return NewValidationError(FieldEmail, ErrInvalidEmail)
	}

	return nil
}

// ValidatePassword requires lower and upper case letters, a digit and a symbol.
func ValidatePassword(password string) error {
	if password == "" {
		return NewValidationError(FieldPassword, ErrMissingField)
	}

	if len(password) < MinPasswordLength {
		return NewValidationError(FieldPassword,
			fmt.Errorf("%w: must be at least %d characters", ErrPasswordTooWeak, MinPasswordLength))
	}

	if len(password) > MaxPasswordLength {
		return NewValidationError(FieldPassword,
			fmt.Errorf("%w: must not exceed %d characters", ErrPasswordTooWeak, MaxPasswordLength))
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case !unicode.IsSpace(r):
			hasSymbol = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit || !hasSymbol {
		return NewValidationError(FieldPassword,
			fmt.Errorf("%w: must contain uppercase, lowercase, number and symbol", ErrPasswordTooWeak))
	}

	return nil
}

// ValidateRequired rejects blank values.
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return NewValidationError(field, ErrMissingField)
	}
	return nil
}
