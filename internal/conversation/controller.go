// Package conversation owns a single ticket's detail view: the
// transient message thread, outbound replies, and status transitions.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/malekai-gauntlet/gymdesk/internal/mailer"
	"github.com/malekai-gauntlet/gymdesk/internal/models"
	"github.com/malekai-gauntlet/gymdesk/internal/repository"
)

// ErrBusy rejects a duplicate submit while the previous one is still
// in flight.
var ErrBusy = errors.New("operation in flight")

// OpState is the explicit per-operation pending state.
type OpState int

const (
	OpIdle OpState = iota
	OpPending
	OpSucceeded
	OpFailed
)

// Operation records the outcome of the most recent reply or status
// change.
type Operation struct {
	State OpState
	Err   error
}

// Controller reconciles optimistic local state against confirmed
// remote results for one selected ticket. It owns its ticket value:
// a successful status change replaces the value with the confirmed
// row rather than mutating a shared object.
type Controller struct {
	store repository.TicketStore
	mail  mailer.Sender
	log   zerolog.Logger

	mu       sync.Mutex
	ticket   models.Ticket
	messages []models.Message
	replyOp  Operation
	statusOp Operation

	// Overridable for tests.
	now   func() time.Time
	newID func() string
}

// New seeds the thread with exactly one synthetic message: the
// ticket's description as the customer, stamped with created_at.
func New(t models.Ticket, store repository.TicketStore, mail mailer.Sender, log zerolog.Logger) *Controller {
	return &Controller{
		store:  store,
		mail:   mail,
		log:    log,
		ticket: t,
		messages: []models.Message{{
			ID:        t.ID,
			Text:      t.Description,
			Sender:    models.SenderCustomer,
			Timestamp: t.CreatedAt,
		}},
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// SubmitReply emails the reply to the member and, on confirmation,
// appends it to the thread as an agent message. Blank input is a
// no-op: nothing is appended and no call is made. A failed send
// leaves the thread untouched and is not retried.
func (c *Controller) SubmitReply(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	if c.replyOp.State == OpPending {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.ticket.MemberEmail == "" {
		err := fmt.Errorf("%w: ticket has no member email", repository.ErrValidation)
		c.replyOp = Operation{State: OpFailed, Err: err}
		c.mu.Unlock()
		return err
	}
	c.replyOp = Operation{State: OpPending}
	payload := mailer.Email{
		Title:       c.ticket.Title,
		Description: c.ticket.Description,
		Priority:    c.ticket.Priority,
		Status:      c.ticket.Status,
		CreatedBy:   c.ticket.CreatedBy,
		MemberEmail: c.ticket.MemberEmail,
		Type:        mailer.TypeReply,
		ReplyText:   text,
	}
	c.mu.Unlock()

	err := c.mail.Send(ctx, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.log.Error().Err(err).Str("ticket", c.ticket.ID).Msg("reply send failed")
		c.replyOp = Operation{State: OpFailed, Err: err}
		return err
	}
	c.messages = append(c.messages, models.Message{
		ID:        c.newID(),
		Text:      text,
		Sender:    models.SenderAgent,
		Timestamp: c.now(),
	})
	c.replyOp = Operation{State: OpSucceeded}
	return nil
}

// ChangeStatus moves the ticket to the given status. Any status is
// reachable from any other. The stored ticket is re-read first so the
// update applies against current state; on success the controller
// adopts the confirmed row, on failure the local status is unchanged.
func (c *Controller) ChangeStatus(ctx context.Context, status string) error {
	if !models.ValidStatus(status) {
		return fmt.Errorf("%w: unknown status %q", repository.ErrValidation, status)
	}

	c.mu.Lock()
	if c.statusOp.State == OpPending {
		c.mu.Unlock()
		return ErrBusy
	}
	c.statusOp = Operation{State: OpPending}
	id := c.ticket.ID
	c.mu.Unlock()

	fail := func(err error) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.statusOp = Operation{State: OpFailed, Err: err}
		return err
	}

	if _, err := c.store.Get(ctx, id); err != nil {
		return fail(err)
	}
	updated, err := c.store.Update(ctx, id, models.TicketPatch{Status: &status})
	if err != nil {
		return fail(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticket = updated
	c.statusOp = Operation{State: OpSucceeded}
	return nil
}

// Ticket returns the controller's current ticket value.
func (c *Controller) Ticket() models.Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticket
}

// Messages returns a copy of the thread, oldest first.
func (c *Controller) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Controller) ReplyOp() Operation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replyOp
}

func (c *Controller) StatusOp() Operation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusOp
}
