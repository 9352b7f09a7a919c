package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/malekai-gauntlet/gymdesk/internal/models"
	"github.com/malekai-gauntlet/gymdesk/internal/repository"
)

// changeChannel is the pg_notify channel fed by the tickets trigger.
const changeChannel = "tickets_changed"

type changePayload struct {
	Op string `json:"op"` // insert | delete
	ID string `json:"id"`
}

// Subscribe opens the live change feed on a dedicated connection. The
// trigger payload only carries the row id, so inserts are re-read
// through Get before delivery; a row deleted between NOTIFY and the
// re-read is skipped (the matching delete event follows). A transient
// re-read failure drops that one event and keeps the feed alive.
func (r *TicketRepo) Subscribe(ctx context.Context, onInsert func(models.Ticket), onDelete func(id string)) (func(), error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, remote("acquire listen connection", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+changeChannel); err != nil {
		conn.Release()
		return nil, remote("listen", err)
	}

	feedCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer conn.Release()
		wait := func(ctx context.Context) (string, error) {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				return "", err
			}
			return n.Payload, nil
		}
		runFeed(feedCtx, r.log, wait, r.Get, onInsert, onDelete)
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
	return stop, nil
}

// runFeed decodes and dispatches change notifications until wait fails.
// Only a dead wait ends the feed; per-event failures are logged and
// skipped so a single dropped query cannot kill the subscription.
func runFeed(
	ctx context.Context,
	log zerolog.Logger,
	wait func(context.Context) (string, error),
	get func(context.Context, string) (models.Ticket, error),
	onInsert func(models.Ticket),
	onDelete func(id string),
) {
	for {
		payload, err := wait(ctx)
		if err != nil {
			// Cancelled on stop, or the connection died.
			if ctx.Err() == nil {
				log.Error().Err(err).Msg("ticket change feed closed")
			}
			return
		}
		var p changePayload
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			log.Warn().Str("payload", payload).Msg("unreadable change notification")
			continue
		}
		switch p.Op {
		case "insert":
			t, err := get(ctx, p.ID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					// Deleted between NOTIFY and re-read.
					continue
				}
				log.Error().Err(err).Str("ticket", p.ID).Msg("insert re-read failed, event dropped")
				continue
			}
			onInsert(t)
		case "delete":
			onDelete(p.ID)
		}
	}
}
