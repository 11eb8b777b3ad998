package signalserver

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/atims0208/fieldhouse-beta-sub001/internal/signaling"
)

var (
	errSessionConflict = errors.New("session already negotiated with another offer")
	errUnknownSession  = errors.New("session not found")
	errServerClosed    = errors.New("signal server closed")
)

// session is the answering side of one publisher session.
type session struct {
	id        signaling.SessionIdentity
	offerSDP  string
	createdAt time.Time

	// ready is closed once answer or err is set.
	ready  chan struct{}
	answer *webrtc.SessionDescription
	err    error

	mu         sync.Mutex
	pc         *webrtc.PeerConnection
	cancel     context.CancelFunc
	closed     bool
	active     bool
	candidates map[string]bool
	state      webrtc.PeerConnectionState
}

func newSession(id signaling.SessionIdentity, offerSDP string) *session {
	return &session{
		id:         id,
		offerSDP:   offerSDP,
		createdAt:  time.Now(),
		ready:      make(chan struct{}),
		candidates: make(map[string]bool),
		state:      webrtc.PeerConnectionStateNew,
	}
}

// wait blocks until the session is answered.
func (s *session) wait(ctx context.Context) (*webrtc.SessionDescription, error) {
	select {
	case <-s.ready:
		return s.answer, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// addCandidate reports false for a candidate that was already added.
func (s *session) addCandidate(candidate webrtc.ICECandidateInit) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.candidates[candidate.Candidate] {
		return false, nil
	}
	if err := s.pc.AddICECandidate(candidate); err != nil {
		return false, err
	}
	s.candidates[candidate.Candidate] = true
	return true, nil
}

func (s *session) setState(state webrtc.PeerConnectionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// SessionInfo describes a negotiated session.
type SessionInfo struct {
	StreamID   string    `json:"streamId"`
	SessionID  string    `json:"sessionId"`
	State      string    `json:"state"`
	Candidates int       `json:"candidates"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (s *session) info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		StreamID:   s.id.StreamID,
		SessionID:  s.id.SessionID,
		State:      s.state.String(),
		Candidates: len(s.candidates),
		CreatedAt:  s.createdAt,
	}
}

// attach hands pc to s. It reports false once s is closed.
func (s *session) attach(pc *webrtc.PeerConnection, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.pc, s.cancel = pc, cancel
	return true
}

// activate marks s as a live answered session unless it was closed.
func (s *session) activate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.active = true
	return true
}

// close closes s. active reports whether s was live until this call.
func (s *session) close() (active bool, err error) {
	s.mu.Lock()
	active = s.active
	s.active = false
	s.closed = true
	pc, cancel := s.pc, s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if pc == nil {
		return active, nil
	}
	return active, pc.Close()
}

// registry holds the sessions by identity.
type registry struct {
	mu       sync.Mutex
	sessions map[signaling.SessionIdentity]*session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[signaling.SessionIdentity]*session)}
}

// claim returns the session of id, creating it when absent.
func (r *registry) claim(id signaling.SessionIdentity, offerSDP string) (s *session, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s, false
	}
	s = newSession(id, offerSDP)
	r.sessions[id] = s
	return s, true
}

func (r *registry) get(id signaling.SessionIdentity) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// remove deletes s unless id was claimed again since.
func (r *registry) remove(s *session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[s.id] != s {
		return false
	}
	delete(r.sessions, s.id)
	return true
}

func (r *registry) list(streamID string) []SessionInfo {
	r.mu.Lock()
	sessions := make([]*session, 0, len(r.sessions))
	for id, s := range r.sessions {
		if id.StreamID == streamID {
			sessions = append(sessions, s)
		}
	}
	r.mu.Unlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].SessionID < infos[j].SessionID })
	return infos
}

// drain removes and returns every session.
func (r *registry) drain() []*session {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions := make([]*session, 0, len(r.sessions))
	for id, s := range r.sessions {
		sessions = append(sessions, s)
		delete(r.sessions, id)
	}
	return sessions
}
