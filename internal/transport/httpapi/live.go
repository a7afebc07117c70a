package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"drone-dispatch/internal/simulation"
	"drone-dispatch/internal/transport"
)

const (
	writeWait   = 10 * time.Second
	maxInterval = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// liveMessage is one websocket frame: a snapshot per step, then a summary or an error.
type liveMessage struct {
	Type     string                     `json:"type"`
	Snapshot *simulation.Snapshot       `json:"snapshot,omitempty"`
	Summary  *transport.SummaryResponse `json:"summary,omitempty"`
	Error    *errorResponse             `json:"error,omitempty"`
}

// handleLiveSimulation runs the stepped engine over the current plan and
// streams every snapshot. Closing the socket cancels the run; the state
// reached so far is still persisted.
func (s *Server) handleLiveSimulation(w http.ResponseWriter, r *http.Request) {
	interval := s.opts.StepInterval
	if raw := r.URL.Query().Get("interval"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 || d > maxInterval {
			writeError(w, errInvalidInterval)
			return
		}
		interval = d
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// drain client frames so close and ping control messages are processed
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(msg liveMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(msg)
	}

	renderer := simulation.RendererFunc(func(snap simulation.Snapshot) {
		if ctx.Err() != nil {
			return
		}
		if err := send(liveMessage{Type: "snapshot", Snapshot: &snap}); err != nil {
			s.log.Debug().Err(err).Int("step", snap.Step).Msg("live client gone")
			cancel()
		}
	})

	summary, runErr := s.svc.RunStepped(ctx, renderer, interval)
	if ctx.Err() != nil && runErr != nil {
		return
	}
	if runErr != nil {
		_, body := errorBody(runErr)
		_ = send(liveMessage{Type: "error", Error: &body})
	} else {
		resp := transport.FromSummary(summary, false)
		_ = send(liveMessage{Type: "summary", Summary: &resp})
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
