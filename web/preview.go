// ABOUTME: HTTP handlers for live preview status, retries, the SSE status stream, and the static preview.
// ABOUTME: The event stream only carries events of the session that is live when each event is sent.
package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/2389-research/vellum/preview"
	"github.com/2389-research/vellum/render"
	"github.com/2389-research/vellum/sandbox/sse"
)

const keepAliveInterval = 15 * time.Second

func (s *Server) handlePreviewStatus(w http.ResponseWriter, r *http.Request) {
	id, st := s.studio.Previews().Status()
	writeJSON(w, http.StatusOK, newStatusView(id, st))
}

func (s *Server) handlePreviewRetry(w http.ResponseWriter, r *http.Request) {
	sess, err := s.studio.RetryPreview()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newStatusView(sess.ID(), sess.Status()))
}

func (s *Server) handlePreviewEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	sub := s.studio.Previews().Subscribe()
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	id, st := s.studio.Previews().Status()
	if err := writeStatusEvent(w, preview.Event{SessionID: id, Status: st, At: time.Now()}); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeStatusEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeStatusEvent(w http.ResponseWriter, ev preview.Event) error {
	data, err := json.Marshal(newStatusView(ev.SessionID, ev.Status))
	if err != nil {
		return err
	}
	out := sse.Event{Type: "status", Data: string(data)}
	if ev.SessionID != "" {
		out.ID = fmt.Sprintf("%s:%d", ev.SessionID, ev.Seq)
	}
	return sse.Encode(w, out)
}

func (s *Server) handleStaticPreview(w http.ResponseWriter, r *http.Request) {
	doc, err := s.studio.StaticPreview()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", render.CSPHeader)
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, doc)
}
