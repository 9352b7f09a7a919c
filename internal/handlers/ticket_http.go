package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/malekai-gauntlet/gymdesk/internal/assist"
	"github.com/malekai-gauntlet/gymdesk/internal/conversation"
	"github.com/malekai-gauntlet/gymdesk/internal/mailer"
	"github.com/malekai-gauntlet/gymdesk/internal/middleware"
	"github.com/malekai-gauntlet/gymdesk/internal/models"
	"github.com/malekai-gauntlet/gymdesk/internal/repository"
	"github.com/malekai-gauntlet/gymdesk/internal/ticketlist"
	"github.com/malekai-gauntlet/gymdesk/internal/utils"
)

// TicketHTTP is the dashboard and member-portal surface over the
// ticket store, the shared list synchronizer, and the outbound email
// relay.
type TicketHTTP struct {
	store  repository.TicketStore
	users  repository.UserRepository
	mail   mailer.Sender
	assist *assist.Client
	list   *ticketlist.Synchronizer
	log    zerolog.Logger
}

func NewTicketHTTP(
	store repository.TicketStore,
	users repository.UserRepository,
	mail mailer.Sender,
	draft *assist.Client,
	list *ticketlist.Synchronizer,
	log zerolog.Logger,
) *TicketHTTP {
	return &TicketHTTP{store: store, users: users, mail: mail, assist: draft, list: list, log: log}
}

// storeErr maps the error taxonomy onto HTTP statuses.
func storeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrValidation):
		utils.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		utils.Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, repository.ErrRemote):
		utils.Error(w, http.StatusBadGateway, "upstream failure")
	default:
		utils.Error(w, http.StatusInternalServerError, err.Error())
	}
}

func withHumanTimes(in []models.Ticket) []models.Ticket {
	out := make([]models.Ticket, len(in))
	for i, t := range in {
		t.CreatedHuman = humanize.Time(t.CreatedAt)
		out[i] = t
	}
	return out
}

// -----------------------------------------------------------------------------
// GET /api/tickets (list + header stats from the shared synchronizer)
// -----------------------------------------------------------------------------

// List serves the synchronized list. A failed refresh is logged only:
// the response degrades to the last known (possibly empty) list.
func (h *TicketHTTP) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.list.Refresh(r.Context()); err != nil {
			h.log.Error().Err(err).Msg("ticket list refresh failed")
		}
		items := withHumanTimes(h.list.Tickets())
		utils.JSON(w, http.StatusOK, map[string]any{
			"items": items,
			"stats": h.list.Stats(),
			"total": len(items),
		})
	}
}

// -----------------------------------------------------------------------------
// GET /api/tickets/{id}
// -----------------------------------------------------------------------------
func (h *TicketHTTP) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			utils.Error(w, http.StatusBadRequest, "missing id")
			return
		}
		t, err := h.store.Get(r.Context(), id)
		if err != nil {
			storeErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, t)
	}
}

// -----------------------------------------------------------------------------
// POST /api/tickets (member portal submission)
// -----------------------------------------------------------------------------

// Create stores the submission and sends the notification email
// best-effort: a relay failure degrades to emailSent=false instead of
// failing the create.
func (h *TicketHTTP) Create() http.HandlerFunc {
	type inDTO struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var in inDTO
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		in.Title = strings.TrimSpace(in.Title)
		if in.Title == "" {
			utils.Error(w, http.StatusBadRequest, "title is required")
			return
		}

		uid, _ := utils.GetString(r.Context(), middleware.CtxUserID)
		if uid == "" {
			utils.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		t, err := h.store.Create(r.Context(), models.NewTicket{
			Title:       in.Title,
			Description: strings.TrimSpace(in.Description),
			Priority:    strings.TrimSpace(in.Priority),
			CreatedBy:   uid,
		})
		if err != nil {
			storeErr(w, err)
			return
		}

		emailSent := true
		if err := h.mail.Send(r.Context(), mailer.Email{
			Title:       t.Title,
			Description: t.Description,
			Priority:    t.Priority,
			Status:      t.Status,
			CreatedBy:   t.CreatedBy,
			MemberEmail: t.MemberEmail,
			Type:        mailer.TypeNotification,
		}); err != nil {
			h.log.Error().Err(err).Str("ticket", t.ID).Msg("notification email failed")
			emailSent = false
		}

		utils.JSON(w, http.StatusCreated, map[string]any{
			"ticket":    t,
			"emailSent": emailSent,
		})
	}
}

// -----------------------------------------------------------------------------
// PATCH /api/tickets/{id} (status and priority changes)
// -----------------------------------------------------------------------------

// Update routes status transitions through the conversation controller
// so the stored row is re-read before the update; priority changes go
// straight to the store.
func (h *TicketHTTP) Update() http.HandlerFunc {
	type inDTO struct {
		Status   *string `json:"status"`
		Priority *string `json:"priority"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			utils.Error(w, http.StatusBadRequest, "missing id")
			return
		}
		var in inDTO
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		if in.Priority != nil && !models.ValidPriority(*in.Priority) {
			utils.Error(w, http.StatusBadRequest, "unknown priority")
			return
		}

		t, err := h.store.Get(r.Context(), id)
		if err != nil {
			storeErr(w, err)
			return
		}

		if in.Status != nil {
			ctrl := conversation.New(t, h.store, h.mail, h.log)
			if err := ctrl.ChangeStatus(r.Context(), *in.Status); err != nil {
				storeErr(w, err)
				return
			}
			t = ctrl.Ticket()
		}
		if in.Priority != nil {
			t, err = h.store.Update(r.Context(), id, models.TicketPatch{Priority: in.Priority})
			if err != nil {
				storeErr(w, err)
				return
			}
		}
		utils.JSON(w, http.StatusOK, t)
	}
}

// -----------------------------------------------------------------------------
// DELETE /api/tickets/{id} (removal + fan-out through the session bus)
// -----------------------------------------------------------------------------
func (h *TicketHTTP) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			utils.Error(w, http.StatusBadRequest, "missing id")
			return
		}
		if err := h.list.DeleteTicket(r.Context(), id); err != nil {
			storeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// -----------------------------------------------------------------------------
// POST /api/tickets/{id}/reply (agent reply, emailed to the member)
// -----------------------------------------------------------------------------

// Reply submits the agent's reply through the conversation controller.
// Blank input is a no-op.
func (h *TicketHTTP) Reply() http.HandlerFunc {
	type inDTO struct {
		Text string `json:"text"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			utils.Error(w, http.StatusBadRequest, "missing id")
			return
		}
		var in inDTO
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}

		t, err := h.store.Get(r.Context(), id)
		if err != nil {
			storeErr(w, err)
			return
		}

		ctrl := conversation.New(t, h.store, h.mail, h.log)
		if err := ctrl.SubmitReply(r.Context(), in.Text); err != nil {
			storeErr(w, err)
			return
		}
		msgs := ctrl.Messages()
		if len(msgs) < 2 {
			// Trimmed to nothing: no message appended, no email sent.
			w.WriteHeader(http.StatusNoContent)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"message": msgs[len(msgs)-1]})
	}
}

// -----------------------------------------------------------------------------
// POST /api/tickets/{id}/draft (assistant-drafted reply body)
// -----------------------------------------------------------------------------
func (h *TicketHTTP) Draft() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.assist == nil || !h.assist.Enabled() {
			utils.Error(w, http.StatusServiceUnavailable, "draft assistant not configured")
			return
		}
		id := chi.URLParam(r, "id")
		t, err := h.store.Get(r.Context(), id)
		if err != nil {
			storeErr(w, err)
			return
		}

		agentName := "the GymDesk team"
		if uid, _ := utils.GetString(r.Context(), middleware.CtxUserID); uid != "" && h.users != nil {
			if u, err := h.users.GetByID(r.Context(), uid); err == nil && u != nil && u.FirstName != "" {
				agentName = u.FirstName
			}
		}

		draft, err := h.assist.DraftReply(r.Context(), t, agentName)
		if err != nil {
			storeErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]string{"draft": draft})
	}
}
