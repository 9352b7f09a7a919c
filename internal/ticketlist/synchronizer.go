// Package ticketlist owns the in-memory ordered ticket list behind the
// dashboard: it merges the remote change feed and local deletion
// notifications into one view, keeps the header stats current, and
// tracks selection and row-menu state.
package ticketlist

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/malekai-gauntlet/gymdesk/internal/events"
	"github.com/malekai-gauntlet/gymdesk/internal/models"
	"github.com/malekai-gauntlet/gymdesk/internal/repository"
)

type State int

const (
	StateLoading State = iota
	StateReady
)

// Synchronizer keeps one view's ticket list consistent with the store
// under concurrent inserts and deletes. A live instance follows the
// store's change feed; a filtered instance is a pure function of an
// externally supplied ticket set and never subscribes. The two modes
// are mutually exclusive per instance.
type Synchronizer struct {
	store repository.TicketStore
	bus   *events.Bus
	log   zerolog.Logger

	mu         sync.Mutex
	state      State
	tickets    []models.Ticket
	stats      Stats
	filtered   bool
	selectedID string
	openMenuID string
	closed     bool

	stopFeed func()
	unsubBus func()
}

// New returns a live-mode synchronizer. Call Start to fetch and open
// the change feed.
func New(store repository.TicketStore, bus *events.Bus, log zerolog.Logger) *Synchronizer {
	return &Synchronizer{store: store, bus: bus, log: log, state: StateLoading}
}

// NewFiltered returns a filtered-mode synchronizer over the supplied
// set. No change feed is opened; local deletion notifications still
// apply.
func NewFiltered(tickets []models.Ticket, bus *events.Bus, log zerolog.Logger) *Synchronizer {
	s := &Synchronizer{bus: bus, log: log, filtered: true, state: StateReady}
	s.tickets = append(s.tickets, tickets...)
	s.stats = ComputeStats(s.tickets)
	s.subscribeBus()
	return s
}

// Start performs the initial fetch and opens the change feed. A fetch
// failure is logged and leaves the list empty; the feed still opens so
// later events are not lost. On a filtered instance Start is a no-op:
// NewFiltered already subscribed the bus, and subscribing again here
// would orphan that first registration.
func (s *Synchronizer) Start(ctx context.Context) error {
	if s.filtered {
		return nil
	}
	if err := s.Refresh(ctx); err != nil {
		s.log.Error().Err(err).Msg("initial ticket fetch failed")
	}
	s.subscribeBus()

	if s.store == nil {
		return nil
	}
	stop, err := s.store.Subscribe(ctx, s.applyInsert, s.applyDelete)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.stopFeed = stop
	s.mu.Unlock()
	return nil
}

func (s *Synchronizer) subscribeBus() {
	if s.bus == nil {
		return
	}
	unsub := s.bus.SubscribeTicketDeleted(func(e events.TicketDeleted) {
		s.applyDelete(e.ID)
	})
	s.mu.Lock()
	s.unsubBus = unsub
	s.mu.Unlock()
}

// Refresh re-reads the full list. On success the synchronizer enters
// (or re-enters) Ready with recomputed stats; on failure the previous
// list is left intact.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	tickets, err := s.store.List(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.tickets = tickets
	s.stats = ComputeStats(s.tickets)
	s.state = StateReady
	return nil
}

// applyInsert prepends a new ticket. A feed event can race a List
// response carrying the same row, so an already-present id is a no-op.
func (s *Synchronizer) applyInsert(t models.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, existing := range s.tickets {
		if existing.ID == t.ID {
			return
		}
	}
	s.tickets = append([]models.Ticket{t}, s.tickets...)
	s.stats = ComputeStats(s.tickets)
}

func (s *Synchronizer) applyDelete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for i, t := range s.tickets {
		if t.ID == id {
			s.tickets = append(s.tickets[:i], s.tickets[i+1:]...)
			break
		}
	}
	if s.selectedID == id {
		s.selectedID = ""
	}
	if s.openMenuID == id {
		s.openMenuID = ""
	}
	// The filtered branch intentionally skips the stats recompute on
	// delete, matching the dashboard's observed behavior.
	if !s.filtered {
		s.stats = ComputeStats(s.tickets)
	}
}

// DeleteTicket removes the ticket remotely, then fans the deletion out
// to every mounted list through the bus.
func (s *Synchronizer) DeleteTicket(ctx context.Context, id string) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if s.bus != nil {
		s.bus.PublishTicketDeleted(events.TicketDeleted{ID: id})
	} else {
		s.applyDelete(id)
	}
	return nil
}

// Select marks a ticket as open in the detail view. At most one ticket
// is selected; selecting an id not in the list clears the selection.
func (s *Synchronizer) Select(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedID = ""
	for _, t := range s.tickets {
		if t.ID == id {
			s.selectedID = id
			return
		}
	}
}

// ClearSelection returns control to the list. No refresh is forced, so
// the row may show stale fields until the next event or reload.
func (s *Synchronizer) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedID = ""
}

func (s *Synchronizer) Selected() (models.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tickets {
		if t.ID == s.selectedID {
			return t, true
		}
	}
	return models.Ticket{}, false
}

// OpenMenu opens the row action menu for a ticket, closing any other.
func (s *Synchronizer) OpenMenu(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openMenuID = id
}

// CloseMenus dismisses the open row menu (the outside-click path).
func (s *Synchronizer) CloseMenus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openMenuID = ""
}

func (s *Synchronizer) OpenMenuID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openMenuID
}

func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Synchronizer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Tickets returns a copy of the current list, newest first.
func (s *Synchronizer) Tickets() []models.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Ticket, len(s.tickets))
	copy(out, s.tickets)
	return out
}

// Close tears the view down: the feed and bus subscriptions are
// dropped and any response still in flight is ignored.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	s.closed = true
	stop, unsub := s.stopFeed, s.unsubBus
	s.stopFeed, s.unsubBus = nil, nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	if unsub != nil {
		unsub()
	}
}
