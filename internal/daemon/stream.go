package daemon

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"archivist/internal/api"
	"archivist/internal/jobs"
	"archivist/internal/logging"
)

const (
	streamKeepalive = 15 * time.Second

	// Progress-only updates are throttled per connection; status changes
	// always go through.
	progressEventInterval = 250 * time.Millisecond
	progressEventBurst    = 4
)

// handleEvents streams job updates as server-sent events until the client
// disconnects or the daemon shuts down.
func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ch := s.daemon.sched.Subscribe()
	defer s.daemon.sched.Unsubscribe(ch)

	throttle := newProgressThrottle()
	keepalive := time.NewTicker(streamKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case event, open := <-ch:
			if !open {
				return
			}
			if !throttle.allow(event.Job) {
				continue
			}
			payload, err := json.Marshal(api.FromEvent(event))
			if err != nil {
				s.logger.Error("failed to encode event", logging.Error(err))
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// handleWebsocket streams the same job updates over a websocket.
func (s *apiServer) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	ch := s.daemon.sched.Subscribe()
	defer s.daemon.sched.Unsubscribe(ch)

	// Read pump: the client never sends data, but reading is what surfaces
	// close frames and dead peers.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	throttle := newProgressThrottle()
	keepalive := time.NewTicker(streamKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case <-keepalive.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case event, open := <-ch:
			if !open {
				return
			}
			if !throttle.allow(event.Job) {
				continue
			}
			if err := conn.WriteJSON(api.FromEvent(event)); err != nil {
				return
			}
		}
	}
}

// progressThrottle rate-limits progress-only updates per job while letting
// every status transition through immediately.
type progressThrottle struct {
	limiter    *rate.Limiter
	lastStatus map[string]jobs.Status
}

func newProgressThrottle() *progressThrottle {
	return &progressThrottle{
		limiter:    rate.NewLimiter(rate.Every(progressEventInterval), progressEventBurst),
		lastStatus: make(map[string]jobs.Status),
	}
}

func (p *progressThrottle) allow(job *jobs.Job) bool {
	if job == nil {
		return true
	}
	last, seen := p.lastStatus[job.ID]
	if !seen || last != job.Status {
		p.lastStatus[job.ID] = job.Status
		if job.Status.IsTerminal() {
			delete(p.lastStatus, job.ID)
		}
		return true
	}
	return p.limiter.Allow()
}
