package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/malekai-gauntlet/gymdesk/internal/models"
	"github.com/malekai-gauntlet/gymdesk/internal/repository"
)

type TicketRepo struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

func NewTicketRepo(db *pgxpool.Pool, log zerolog.Logger) *TicketRepo {
	return &TicketRepo{db: db, log: log}
}

// placeholderEmail is shown when the requester join yields no row.
const placeholderEmail = "unknown"

const ticketColumns = `
	t.id, t.title, t.description, t.priority, t.status, t.created_by, t.created_at,
	COALESCE(u.email, '` + placeholderEmail + `'), COALESCE(u.first_name, ''), COALESCE(u.last_name, '')`

func scanTicket(row pgx.Row) (models.Ticket, error) {
	var t models.Ticket
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Priority, &t.Status, &t.CreatedBy, &t.CreatedAt,
		&t.MemberEmail, &t.FirstName, &t.LastName,
	)
	return t, err
}

// List returns every ticket, newest first, with requester fields joined.
func (r *TicketRepo) List(ctx context.Context) ([]models.Ticket, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets t
		LEFT JOIN users u ON u.id = t.created_by
		ORDER BY t.created_at DESC
	`)
	if err != nil {
		return nil, remote("list tickets", err)
	}
	defer rows.Close()

	var out []models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, remote("scan ticket", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, remote("list tickets", err)
	}
	return out, nil
}

func (r *TicketRepo) Get(ctx context.Context, id string) (models.Ticket, error) {
	t, err := scanTicket(r.db.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets t
		LEFT JOIN users u ON u.id = t.created_by
		WHERE t.id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, repository.ErrNotFound
		}
		return models.Ticket{}, remote("get ticket", err)
	}
	return t, nil
}

func (r *TicketRepo) Create(ctx context.Context, in models.NewTicket) (models.Ticket, error) {
	if strings.TrimSpace(in.CreatedBy) == "" {
		return models.Ticket{}, fmt.Errorf("%w: created_by is required", repository.ErrValidation)
	}
	priority := in.Priority
	if !models.ValidPriority(priority) {
		priority = models.PriorityMedium
	}

	var id string
	err := r.db.QueryRow(ctx, `
		INSERT INTO tickets (title, description, priority, status, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, in.Title, in.Description, priority, models.StatusOpen, in.CreatedBy).Scan(&id)
	if err != nil {
		return models.Ticket{}, remote("create ticket", err)
	}
	// Re-read so the requester fields come back joined.
	return r.Get(ctx, id)
}

func (r *TicketRepo) Update(ctx context.Context, id string, patch models.TicketPatch) (models.Ticket, error) {
	sets := []string{}
	args := []any{}
	if patch.Status != nil {
		args = append(args, *patch.Status)
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if patch.Priority != nil {
		args = append(args, *patch.Priority)
		sets = append(sets, fmt.Sprintf("priority = $%d", len(args)))
	}
	if len(sets) == 0 {
		return r.Get(ctx, id)
	}
	args = append(args, id)

	ct, err := r.db.Exec(ctx,
		"UPDATE tickets SET "+strings.Join(sets, ", ")+fmt.Sprintf(" WHERE id = $%d", len(args)),
		args...)
	if err != nil {
		return models.Ticket{}, remote("update ticket", err)
	}
	if ct.RowsAffected() == 0 {
		return models.Ticket{}, repository.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *TicketRepo) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id = $1`, id)
	if err != nil {
		return remote("delete ticket", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func remote(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", repository.ErrRemote, op, err)
}
