package domain

import "time"

// Event types
const (
	EventTypeRecordCreated = "record.created"
	EventTypeRecordUpdated = "record.updated"
	EventTypeRecordDeleted = "record.deleted"
)

// RecordEvent describes a committed change to a record.
type RecordEvent struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	RecordID    string    `json:"record_id"`
	Owner       string    `json:"owner"`
	Description string    `json:"description,omitempty"`
	Value       string    `json:"value,omitempty"`
	Date        string    `json:"date,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
