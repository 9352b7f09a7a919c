package models

import "time"

// Ticket statuses. These are labels, not a strict lifecycle: any status
// is reachable from any other.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusSolved     = "solved"
	StatusClosed     = "closed"
)

// Ticket priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusSolved, StatusClosed:
		return true
	}
	return false
}

func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Ticket struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`

	// Requester fields joined from users at read time.
	MemberEmail string `json:"member_email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`

	// Relative display time ("2 hours ago"); derived, never stored.
	CreatedHuman string `json:"created_human,omitempty"`
}

// NewTicket carries the member-supplied fields of a ticket submission.
type NewTicket struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	CreatedBy   string `json:"created_by"`
}

// TicketPatch is a partial update; nil fields are left unchanged.
type TicketPatch struct {
	Status   *string `json:"status"`
	Priority *string `json:"priority"`
}
