package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/noah-isme/pos-terminal/internal/events"
)

type chanSubscriber struct {
	ch chan events.Notice
}

func (c *chanSubscriber) Notify(notice events.Notice) error {
	select {
	case c.ch <- notice:
	default:
		// slow consumer, drop rather than block the checkout core
	}
	return nil
}

// Notices streams checkout notices to the front-end as server-sent events.
func (h *Handler) Notices(notices *events.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		sub := &chanSubscriber{ch: make(chan events.Notice, 32)}
		notices.Subscribe(sub)
		defer notices.Unsubscribe(sub)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case notice := <-sub.ch:
				data, err := json.Marshal(notice)
				if err != nil {
					h.Logger.Error().Err(err).Msg("encode notice")
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", notice.Code, data)
				flusher.Flush()
			}
		}
	}
}
