package ticketlist

import "github.com/malekai-gauntlet/gymdesk/internal/models"

// Stats are the dashboard header counters, recomputed from the full
// list on every fetch. The labels follow the dashboard cards: "Solved"
// counts closed tickets and "Good" counts low-priority ones.
type Stats struct {
	Open   int `json:"openTickets"`
	Solved int `json:"solved"`
	Good   int `json:"good"`
	Groups int `json:"groups"`
}

func ComputeStats(tickets []models.Ticket) Stats {
	var s Stats
	creators := make(map[string]struct{})
	for _, t := range tickets {
		if t.Status == models.StatusOpen {
			s.Open++
		}
		if t.Status == models.StatusClosed {
			s.Solved++
		}
		if t.Priority == models.PriorityLow {
			s.Good++
		}
		creators[t.CreatedBy] = struct{}{}
	}
	s.Groups = len(creators)
	return s
}
