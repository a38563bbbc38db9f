package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// keepAliveInterval is how often an SSE comment line is written so proxies
// don't reap idle connections.
const keepAliveInterval = 30 * time.Second

// EventsHandler is the server-sent events stream. Each subscriber gets its
// own channel; closing the request tears the channel down.
func (s *Server) EventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeJSONError(w, http.StatusInternalServerError, "Streaming is not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ch := s.hub.Subscribe(userIDFromContext(r.Context()))
		defer s.hub.Unsubscribe(ch)

		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-keepAlive.C:
				fmt.Fprint(w, ": keep-alive\n\n")
				flusher.Flush()
			case event, open := <-ch.Events():
				if !open {
					return
				}
				payload, err := json.Marshal(event)
				if err != nil {
					log.Error().Err(err).Msg("event marshal failed")
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", payload)
				flusher.Flush()
			}
		}
	}
}
