package postgres

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/malekai-gauntlet/gymdesk/internal/models"
	"github.com/malekai-gauntlet/gymdesk/internal/repository"
)

// feedHarness drives runFeed with scripted notifications and a
// scripted Get, recording everything delivered.
type feedHarness struct {
	payloads chan string
	getErrs  map[string]error

	inserts []string
	deletes []string
}

func newFeedHarness() *feedHarness {
	return &feedHarness{
		payloads: make(chan string),
		getErrs:  map[string]error{},
	}
}

func (h *feedHarness) wait(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case p, ok := <-h.payloads:
		if !ok {
			return "", fmt.Errorf("connection closed")
		}
		return p, nil
	}
}

func (h *feedHarness) get(ctx context.Context, id string) (models.Ticket, error) {
	if err := h.getErrs[id]; err != nil {
		delete(h.getErrs, id) // fail once, then recover
		return models.Ticket{}, err
	}
	return models.Ticket{ID: id, Title: "t-" + id}, nil
}

func (h *feedHarness) run(ctx context.Context, log zerolog.Logger) chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		runFeed(ctx, log, h.wait,
			h.get,
			func(t models.Ticket) { h.inserts = append(h.inserts, t.ID) },
			func(id string) { h.deletes = append(h.deletes, id) },
		)
	}()
	return done
}

func TestFeedSurvivesTransientReadFailure(t *testing.T) {
	h := newFeedHarness()
	h.getErrs["a"] = fmt.Errorf("%w: get ticket: connection reset", repository.ErrRemote)

	var logBuf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	done := h.run(ctx, zerolog.New(&logBuf))

	// The failing re-read drops one event but must not end the feed.
	h.payloads <- `{"op":"insert","id":"a"}`
	h.payloads <- `{"op":"insert","id":"b"}`
	h.payloads <- `{"op":"delete","id":"a"}`
	cancel()
	<-done

	if len(h.inserts) != 1 || h.inserts[0] != "b" {
		t.Errorf("expected only insert b delivered, got %v", h.inserts)
	}
	if len(h.deletes) != 1 || h.deletes[0] != "a" {
		t.Errorf("expected delete a delivered, got %v", h.deletes)
	}
	if !strings.Contains(logBuf.String(), "insert re-read failed") {
		t.Errorf("dropped event not logged: %s", logBuf.String())
	}
}

func TestFeedSkipsRowDeletedBeforeReread(t *testing.T) {
	h := newFeedHarness()
	h.getErrs["gone"] = repository.ErrNotFound

	var logBuf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	done := h.run(ctx, zerolog.New(&logBuf))

	h.payloads <- `{"op":"insert","id":"gone"}`
	h.payloads <- `{"op":"delete","id":"gone"}`
	cancel()
	<-done

	if len(h.inserts) != 0 {
		t.Errorf("vanished row must not be delivered as insert, got %v", h.inserts)
	}
	if len(h.deletes) != 1 || h.deletes[0] != "gone" {
		t.Errorf("expected delete gone delivered, got %v", h.deletes)
	}
	// Not an error: the matching delete event follows.
	if strings.Contains(logBuf.String(), "error") {
		t.Errorf("unexpected error log: %s", logBuf.String())
	}
}

func TestFeedIgnoresMalformedPayloads(t *testing.T) {
	h := newFeedHarness()

	var logBuf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	done := h.run(ctx, zerolog.New(&logBuf))

	h.payloads <- `not json`
	h.payloads <- `{"op":"insert","id":"x"}`
	cancel()
	<-done

	if len(h.inserts) != 1 || h.inserts[0] != "x" {
		t.Errorf("feed should continue past bad payload, got %v", h.inserts)
	}
	if !strings.Contains(logBuf.String(), "unreadable change notification") {
		t.Errorf("bad payload not logged: %s", logBuf.String())
	}
}

func TestFeedLogsConnectionDeath(t *testing.T) {
	h := newFeedHarness()

	var logBuf bytes.Buffer
	done := h.run(context.Background(), zerolog.New(&logBuf))

	close(h.payloads) // connection died
	<-done

	if !strings.Contains(logBuf.String(), "ticket change feed closed") {
		t.Errorf("connection death not logged: %s", logBuf.String())
	}
}

func TestFeedCancellationIsSilent(t *testing.T) {
	h := newFeedHarness()

	var logBuf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	done := h.run(ctx, zerolog.New(&logBuf))

	cancel()
	<-done

	if logBuf.Len() != 0 {
		t.Errorf("orderly stop should not log: %s", logBuf.String())
	}
}
