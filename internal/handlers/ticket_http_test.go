package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/malekai-gauntlet/gymdesk/internal/events"
	"github.com/malekai-gauntlet/gymdesk/internal/mailer"
	"github.com/malekai-gauntlet/gymdesk/internal/middleware"
	"github.com/malekai-gauntlet/gymdesk/internal/models"
	"github.com/malekai-gauntlet/gymdesk/internal/repository"
	"github.com/malekai-gauntlet/gymdesk/internal/ticketlist"
)

type fakeStore struct {
	mu      sync.Mutex
	seq     int
	tickets []models.Ticket
}

func (f *fakeStore) List(ctx context.Context) ([]models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Ticket, len(f.tickets))
	copy(out, f.tickets)
	return out, nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tickets {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Ticket{}, repository.ErrNotFound
}

func (f *fakeStore) Create(ctx context.Context, in models.NewTicket) (models.Ticket, error) {
	if in.CreatedBy == "" {
		return models.Ticket{}, fmt.Errorf("%w: created_by is required", repository.ErrValidation)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := models.Ticket{
		ID:          fmt.Sprintf("t%d", f.seq),
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Status:      models.StatusOpen,
		CreatedBy:   in.CreatedBy,
		MemberEmail: "member@example.com",
		CreatedAt:   time.Now(),
	}
	f.tickets = append([]models.Ticket{t}, f.tickets...)
	return t, nil
}

func (f *fakeStore) Update(ctx context.Context, id string, patch models.TicketPatch) (models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tickets {
		if t.ID == id {
			if patch.Status != nil {
				t.Status = *patch.Status
			}
			if patch.Priority != nil {
				t.Priority = *patch.Priority
			}
			f.tickets[i] = t
			return t, nil
		}
	}
	return models.Ticket{}, repository.ErrNotFound
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tickets {
		if t.ID == id {
			f.tickets = append(f.tickets[:i], f.tickets[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeStore) Subscribe(ctx context.Context, onInsert func(models.Ticket), onDelete func(string)) (func(), error) {
	return func() {}, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Email
	fail bool
}

func (f *fakeMailer) Send(ctx context.Context, e mailer.Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("%w: relay unavailable", repository.ErrRemote)
	}
	f.sent = append(f.sent, e)
	return nil
}

// asUser injects the session identity the auth middleware would set.
func asUser(uid, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.CtxUserID, uid)
			ctx = context.WithValue(ctx, middleware.CtxRole, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type fixture struct {
	store *fakeStore
	mail  *fakeMailer
	list  *ticketlist.Synchronizer
	h     *TicketHTTP
}

func newFixture(t *testing.T, tickets ...models.Ticket) *fixture {
	t.Helper()
	store := &fakeStore{tickets: tickets, seq: len(tickets)}
	mail := &fakeMailer{}
	list := ticketlist.New(store, events.NewBus(), zerolog.Nop())
	if err := list.Start(context.Background()); err != nil {
		t.Fatalf("synchronizer start failed: %v", err)
	}
	t.Cleanup(list.Close)
	return &fixture{
		store: store,
		mail:  mail,
		list:  list,
		h:     NewTicketHTTP(store, nil, mail, nil, list, zerolog.Nop()),
	}
}

func (f *fixture) router(uid, role string) http.Handler {
	r := chi.NewRouter()
	if uid != "" {
		r.Use(asUser(uid, role))
	}
	r.Get("/api/tickets", f.h.List())
	r.Post("/api/tickets", f.h.Create())
	r.Get("/api/tickets/{id}", f.h.Get())
	r.Patch("/api/tickets/{id}", f.h.Update())
	r.Delete("/api/tickets/{id}", f.h.Delete())
	r.Post("/api/tickets/{id}/reply", f.h.Reply())
	r.Post("/api/tickets/{id}/draft", f.h.Draft())
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func seedTickets() []models.Ticket {
	now := time.Now()
	return []models.Ticket{
		{ID: "t2", Title: "Locker stuck", Status: models.StatusOpen, Priority: models.PriorityLow, CreatedBy: "u2", MemberEmail: "b@example.com", CreatedAt: now},
		{ID: "t1", Title: "Broken treadmill", Status: models.StatusClosed, Priority: models.PriorityHigh, CreatedBy: "u1", MemberEmail: "a@example.com", CreatedAt: now.Add(-time.Hour)},
	}
}

func TestListReturnsItemsAndStats(t *testing.T) {
	f := newFixture(t, seedTickets()...)
	w := doJSON(t, f.router("agent-1", "agent"), http.MethodGet, "/api/tickets", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var out struct {
		Items []models.Ticket  `json:"items"`
		Stats ticketlist.Stats `json:"stats"`
		Total int              `json:"total"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if out.Total != 2 || len(out.Items) != 2 {
		t.Errorf("expected 2 tickets, got %+v", out)
	}
	if out.Items[0].ID != "t2" {
		t.Errorf("expected newest first, got %s", out.Items[0].ID)
	}
	if out.Items[0].CreatedHuman == "" {
		t.Error("expected relative display time on list items")
	}
	if out.Stats.Open != 1 || out.Stats.Solved != 1 || out.Stats.Good != 1 || out.Stats.Groups != 2 {
		t.Errorf("unexpected stats: %+v", out.Stats)
	}
}

func TestCreateRequiresIdentity(t *testing.T) {
	f := newFixture(t)
	w := doJSON(t, f.router("", ""), http.MethodPost, "/api/tickets",
		map[string]string{"title": "Printer jam"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if len(f.mail.sent) != 0 {
		t.Error("no email on rejected create")
	}
}

func TestCreateSendsNotification(t *testing.T) {
	f := newFixture(t)
	w := doJSON(t, f.router("u1", "member"), http.MethodPost, "/api/tickets",
		map[string]string{"title": "Printer jam", "description": "Paper everywhere", "priority": "medium"})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var out struct {
		Ticket    models.Ticket `json:"ticket"`
		EmailSent bool          `json:"emailSent"`
	}
	json.NewDecoder(w.Body).Decode(&out)
	if out.Ticket.Status != models.StatusOpen {
		t.Errorf("new ticket status = %s, want open", out.Ticket.Status)
	}
	if !out.EmailSent {
		t.Error("expected emailSent=true")
	}
	if len(f.mail.sent) != 1 || f.mail.sent[0].Type != mailer.TypeNotification {
		t.Errorf("expected one notification email, got %+v", f.mail.sent)
	}
}

func TestCreateDegradesWhenEmailFails(t *testing.T) {
	f := newFixture(t)
	f.mail.fail = true
	w := doJSON(t, f.router("u1", "member"), http.MethodPost, "/api/tickets",
		map[string]string{"title": "Printer jam"})

	if w.Code != http.StatusCreated {
		t.Fatalf("relay failure must not fail the create: %d", w.Code)
	}
	var out struct {
		EmailSent bool `json:"emailSent"`
	}
	json.NewDecoder(w.Body).Decode(&out)
	if out.EmailSent {
		t.Error("expected emailSent=false")
	}
}

func TestGetNotFound(t *testing.T) {
	f := newFixture(t)
	w := doJSON(t, f.router("agent-1", "agent"), http.MethodGet, "/api/tickets/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t, seedTickets()...)
	w := doJSON(t, f.router("agent-1", "agent"), http.MethodPatch, "/api/tickets/t1",
		map[string]string{"status": models.StatusInProgress})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var out models.Ticket
	json.NewDecoder(w.Body).Decode(&out)
	if out.Status != models.StatusInProgress {
		t.Errorf("status = %s, want in_progress", out.Status)
	}
	if stored, _ := f.store.Get(context.Background(), "t1"); stored.Status != models.StatusInProgress {
		t.Errorf("store not updated: %s", stored.Status)
	}
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t, seedTickets()...)
	w := doJSON(t, f.router("agent-1", "agent"), http.MethodPatch, "/api/tickets/t1",
		map[string]string{"status": "archived"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestDeleteRemovesFromListView(t *testing.T) {
	f := newFixture(t, seedTickets()...)
	w := doJSON(t, f.router("agent-1", "agent"), http.MethodDelete, "/api/tickets/t2", nil)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	for _, item := range f.list.Tickets() {
		if item.ID == "t2" {
			t.Error("list view still contains deleted ticket")
		}
	}
	w = doJSON(t, f.router("agent-1", "agent"), http.MethodDelete, "/api/tickets/t2", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestReplyBlankIsNoOp(t *testing.T) {
	f := newFixture(t, seedTickets()...)
	w := doJSON(t, f.router("agent-1", "agent"), http.MethodPost, "/api/tickets/t1/reply",
		map[string]string{"text": "   "})

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if len(f.mail.sent) != 0 {
		t.Error("blank reply must not send email")
	}
}

func TestReplyEmailsMember(t *testing.T) {
	f := newFixture(t, seedTickets()...)
	w := doJSON(t, f.router("agent-1", "agent"), http.MethodPost, "/api/tickets/t1/reply",
		map[string]string{"text": "On it."})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var out struct {
		Message models.Message `json:"message"`
	}
	json.NewDecoder(w.Body).Decode(&out)
	if out.Message.Sender != models.SenderAgent || out.Message.Text != "On it." {
		t.Errorf("unexpected message: %+v", out.Message)
	}
	if len(f.mail.sent) != 1 || f.mail.sent[0].MemberEmail != "a@example.com" {
		t.Errorf("expected reply email to the member, got %+v", f.mail.sent)
	}
}

func TestReplyRelayFailure(t *testing.T) {
	f := newFixture(t, seedTickets()...)
	f.mail.fail = true
	w := doJSON(t, f.router("agent-1", "agent"), http.MethodPost, "/api/tickets/t1/reply",
		map[string]string{"text": "On it."})
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestDraftUnconfigured(t *testing.T) {
	f := newFixture(t, seedTickets()...)
	w := doJSON(t, f.router("agent-1", "agent"), http.MethodPost, "/api/tickets/t1/draft", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}
