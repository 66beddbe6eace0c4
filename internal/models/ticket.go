package models

import "time"

// TicketStatus tracks a query's progress.
type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
)

// ValidTicketStatus reports whether the status is a known value.
func ValidTicketStatus(s TicketStatus) bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketResolved:
		return true
	}
	return false
}

// Ticket is a student-raised query bound to a subject.
type Ticket struct {
	ID          string       `db:"id" json:"id"`
	UserID      string       `db:"user_id" json:"userId"`
	SubjectID   string       `db:"subject_id" json:"subjectId"`
	Question    string       `db:"question" json:"question"`
	Status      TicketStatus `db:"status" json:"status"`
	ResponderID *string      `db:"responder_id" json:"responderId,omitempty"`
	Response    *string      `db:"response" json:"response,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}
