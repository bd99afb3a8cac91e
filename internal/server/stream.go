package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jonasehrlich/debug-tree/internal/git"
)

const statusEvent = "git-status"

// handleStatusStream sends the repository status as server-sent events: the
// current status first, then every update published by the watcher.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, fmt.Errorf("streaming is not supported by this connection"))
		return
	}

	var updates <-chan *git.RepositoryStatus
	if s.Status != nil {
		ch, cancel := s.Status.Subscribe()
		defer cancel()
		updates = ch
	}

	var first *git.RepositoryStatus
	if s.Status != nil {
		first = s.Status.Latest()
	}
	if first == nil {
		st, err := s.Session.Status(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		first = st
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	last := first
	if err := writeEvent(w, statusEvent, first); err != nil {
		return
	}
	flusher.Flush()
	if updates == nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			if st == last {
				continue
			}
			last = st
			if err := writeEvent(w, statusEvent, st); err != nil {
				s.logger.Debug("status stream closed", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
