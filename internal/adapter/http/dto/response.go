package dto

import (
	"time"

	"github.com/iho/goexpense/internal/domain"
	"github.com/iho/goexpense/internal/usecase"
)

// RecordResponse represents an expense record in API responses.
type RecordResponse struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Value       string    `json:"value"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecordFromDomain converts a domain record to response.
func RecordFromDomain(r *domain.Record) *RecordResponse {
	return &RecordResponse{
		ID:          r.ID,
		Description: r.Description,
		Value:       r.ValueDisplay(),
		Date:        r.Date,
		CreatedAt:   r.CreatedAt,
	}
}

// RecordsFromDomain converts domain records to responses.
func RecordsFromDomain(records []*domain.Record) []*RecordResponse {
	result := make([]*RecordResponse, len(records))
	for i, r := range records {
		result[i] = RecordFromDomain(r)
	}
	return result
}

// RecordListResponse is the flat record list with its total.
type RecordListResponse struct {
	Records []*RecordResponse `json:"records"`
	Total   string            `json:"total"`
}

// DateGroupResponse is one date header and its records.
type DateGroupResponse struct {
	Date      string            `json:"date"`
	DateLabel string            `json:"date_label"`
	Subtotal  string            `json:"subtotal"`
	Records   []*RecordResponse `json:"records"`
}

// GroupedViewResponse is the records grouped by date, newest first.
type GroupedViewResponse struct {
	Groups []DateGroupResponse `json:"groups"`
	Total  string              `json:"total"`
	Count  int                 `json:"count"`
}

// GroupedViewFromDomain converts a grouped view to response.
func GroupedViewFromDomain(v domain.GroupedView) *GroupedViewResponse {
	groups := make([]DateGroupResponse, len(v.Groups))
	for i, g := range v.Groups {
		groups[i] = DateGroupResponse{
			Date:      g.Date,
			DateLabel: domain.DateLabel(g.Date),
			Subtotal:  domain.FormatAmount(g.Subtotal),
			Records:   RecordsFromDomain(g.Records),
		}
	}

	return &GroupedViewResponse{
		Groups: groups,
		Total:  v.TotalDisplay(),
		Count:  v.Count,
	}
}

// EditSessionResponse represents the record currently being edited.
type EditSessionResponse struct {
	RecordID    string `json:"record_id"`
	Description string `json:"description"`
	Value       string `json:"value"`
}

// EditSessionFromUseCase converts an edit session to response. A nil session
// yields nil.
func EditSessionFromUseCase(e *usecase.EditSession) *EditSessionResponse {
	if e == nil {
		return nil
	}
	return &EditSessionResponse{
		RecordID:    e.RecordID,
		Description: e.Description,
		Value:       e.Value,
	}
}

// EditStateResponse reports whether a record is being edited.
type EditStateResponse struct {
	Editing bool                 `json:"editing"`
	Session *EditSessionResponse `json:"session,omitempty"`
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Initial string `json:"initial"`
}

// UserFromDomain converts a domain user to response.
func UserFromDomain(u *domain.User) *UserResponse {
	return &UserResponse{
		ID:      u.ID,
		Email:   u.Email,
		Name:    u.Name,
		Phone:   u.Phone,
		Initial: u.Identity().Initial(),
	}
}

// LoginResponse represents a login response.
type LoginResponse struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}
