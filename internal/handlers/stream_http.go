package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/malekai-gauntlet/gymdesk/internal/models"
	"github.com/malekai-gauntlet/gymdesk/internal/utils"
)

// Stream forwards the ticket change feed to the browser as
// server-sent events: `insert` frames carry the joined row, `delete`
// frames the removed id. The feed stops when the client disconnects.
func (h *TicketHTTP) Stream() http.HandlerFunc {
	type frame struct {
		event string
		data  any
	}
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			utils.Error(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		// Feed callbacks arrive on the listener goroutine; serialize
		// writes through a channel owned by this handler.
		frames := make(chan frame, 16)
		stop, err := h.store.Subscribe(r.Context(),
			func(t models.Ticket) {
				select {
				case frames <- frame{event: "insert", data: t}:
				case <-r.Context().Done():
				}
			},
			func(id string) {
				select {
				case frames <- frame{event: "delete", data: map[string]string{"id": id}}:
				case <-r.Context().Done():
				}
			},
		)
		if err != nil {
			storeErr(w, err)
			return
		}
		defer stop()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case f := <-frames:
				payload, err := json.Marshal(f.data)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", f.event, payload)
				flusher.Flush()
			}
		}
	}
}
