// Package tickets routes documents that require human review to a work
// queue. The store is in-process; swap the System implementation to
// integrate a real DMS or ticketing platform.
package tickets

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the review ticket lifecycle state.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusDismissed  Status = "dismissed"
)

var validStatuses = map[Status]bool{
	StatusOpen:       true,
	StatusInProgress: true,
	StatusResolved:   true,
	StatusDismissed:  true,
}

var (
	ErrNotFound      = errors.New("ticket not found")
	ErrInvalidStatus = errors.New("invalid ticket status")
	ErrInvalidTicket = errors.New("invalid ticket request")
)

// Ticket is one human-review work item.
type Ticket struct {
	ID               uuid.UUID `json:"ticket_id"`
	DocumentID       string    `json:"document_id"`
	ProcessingID     string    `json:"processing_id"`
	Status           Status    `json:"status"`
	ViolationSummary string    `json:"violation_summary"`
	Severity         string    `json:"severity"`
	Department       string    `json:"department,omitempty"`
	Assignee         string    `json:"assignee,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CreateCommand carries the fields needed to open a ticket.
type CreateCommand struct {
	DocumentID       string `json:"document_id"`
	ProcessingID     string `json:"processing_id"`
	ViolationSummary string `json:"violation_summary"`
	Severity         string `json:"severity"`
	Department       string `json:"department,omitempty"`
	Assignee         string `json:"assignee,omitempty"`
}
