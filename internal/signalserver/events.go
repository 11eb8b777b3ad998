package signalserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const eventBuffer = 16

// EventType names a session event.
type EventType string

const (
	EventOffer     EventType = "offer"
	EventCandidate EventType = "candidate"
	EventState     EventType = "state"
)

// Event is pushed to the WebSocket subscribers of a stream.
type Event struct {
	Type      EventType `json:"type"`
	StreamID  string    `json:"streamId"`
	SessionID string    `json:"sessionId"`
	State     string    `json:"state,omitempty"`
	Time      time.Time `json:"time"`
}

// hub fans events out to subscribers by stream.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[chan Event]struct{})}
}

func (h *hub) subscribe(streamID string) (<-chan Event, func()) {
	ch := make(chan Event, eventBuffer)
	h.mu.Lock()
	if h.subs[streamID] == nil {
		h.subs[streamID] = make(map[chan Event]struct{})
	}
	h.subs[streamID][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subs[streamID], ch)
		if len(h.subs[streamID]) == 0 {
			delete(h.subs, streamID)
		}
		h.mu.Unlock()
	}
}

// publish never blocks. Slow subscribers miss events.
func (h *hub) publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[e.StreamID] {
		select {
		case ch <- e:
		default:
		}
	}
}

// handleEvents streams the session events of a stream over WebSocket.
func (s *Server) handleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		streamID := mux.Vars(r)["id"]
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			s.logger.Err(err).Msg("could not accept websocket")
			return
		}
		defer c.Close(websocket.StatusInternalError, "")

		events, unsubscribe := s.events.subscribe(streamID)
		defer unsubscribe()
		s.logger.Debug().Str("stream_id", streamID).Msg("events subscriber connected")

		// The client only reads, CloseRead handles its control frames.
		ctx := c.CloseRead(r.Context())
		for {
			select {
			case <-ctx.Done():
				c.Close(websocket.StatusNormalClosure, "")
				return
			case e := <-events:
				if err := wsjson.Write(ctx, c, e); err != nil {
					s.logger.Debug().Err(err).Msg("could not write event")
					return
				}
			}
		}
	}
}
