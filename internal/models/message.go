package models

import "time"

// Message senders.
const (
	SenderCustomer = "customer"
	SenderAgent    = "agent"
)

// Message is a conversation entry in the ticket detail view. Messages
// are transient: the seed message is synthesized from the ticket and
// agent replies live only in memory for the session.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}
