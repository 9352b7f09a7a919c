package repository

import (
	"context"

	"github.com/malekai-gauntlet/gymdesk/internal/models"
)

// TicketStore wraps remote ticket CRUD plus the live change feed.
// List and Get return rows enriched with the requester's email and
// name, joined from the users table.
type TicketStore interface {
	// List returns all tickets, newest first.
	List(ctx context.Context) ([]models.Ticket, error)
	Get(ctx context.Context, id string) (models.Ticket, error)
	Create(ctx context.Context, in models.NewTicket) (models.Ticket, error)
	Update(ctx context.Context, id string, patch models.TicketPatch) (models.Ticket, error)
	// Delete removes the row. It does not announce the deletion; the
	// caller publishes through the event bus.
	Delete(ctx context.Context, id string) error

	// Subscribe opens a change feed scoped to the tickets table.
	// onInsert receives new rows, onDelete removed row ids. There is
	// no ordering guarantee relative to a concurrent List call, so
	// consumers must de-duplicate by id. The returned stop function is
	// idempotent.
	Subscribe(ctx context.Context, onInsert func(models.Ticket), onDelete func(id string)) (stop func(), err error)
}

type UserRepository interface {
	Create(ctx context.Context, email, firstName, lastName, role, passwordHash string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, string /*passwordHash*/, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}
