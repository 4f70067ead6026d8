package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// handleChanges streams store change notifications as server-sent events.
func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	if s.notifier == nil {
		writeError(w, http.StatusNotImplemented, "change stream unavailable")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	changes, err := s.notifier.Subscribe(ctx)
	if err != nil {
		s.logger.Error("subscribe to changes failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "change stream unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case change, ok := <-changes:
			if !ok {
				return
			}
			payload, err := json.Marshal(change)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
