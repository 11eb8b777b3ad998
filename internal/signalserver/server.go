// Package signalserver is a Signaling Endpoint for publishers. It answers offers with a
// receive-only peer, applies trickled candidates and reports session events.
package signalserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/atims0208/fieldhouse-beta-sub001/internal/signaling"
	"github.com/atims0208/fieldhouse-beta-sub001/internal/signalserver/httpx"
)

var (
	errInvalidOffer     = errors.New("invalid offer")
	errInvalidCandidate = errors.New("invalid candidate")
	errRateLimited      = errors.New("rate limited")
)

// Server answers publisher sessions.
type Server struct {
	config   ConfigOptions
	api      *webrtc.API
	sessions *registry
	events   *hub
	auth     *authenticator
	limiter  *limiterStore
	metrics  *metrics
	gatherer prometheus.Gatherer
	logger   zerolog.Logger
}

// New returns a Server registering its metrics with reg.
func New(config ConfigOptions, reg *prometheus.Registry, logger *zerolog.Logger) (*Server, error) {
	if config.GatheringTimeout <= 0 {
		config.GatheringTimeout = defaultGatheringTimeout
	}
	l := logger.With().Str("component", "SignalServer").Logger()

	api, err := newAPI(&l)
	if err != nil {
		return nil, err
	}
	auth, err := newAuthenticator(config.AuthConfigOptions)
	if err != nil {
		return nil, fmt.Errorf("could not set up authentication: %w", err)
	}
	return &Server{
		config:   config,
		api:      api,
		sessions: newRegistry(),
		events:   newHub(),
		auth:     auth,
		limiter:  newLimiterStore(config.RateLimitConfigOptions),
		metrics:  newMetrics(reg),
		gatherer: reg,
		logger:   l,
	}, nil
}

// Handler routes the signaling API.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/streams/{id}/events", s.handleEvents())
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	api := r.PathPrefix("/streams/{id}").Subrouter()
	api.Use(s.auth.middleware)
	api.HandleFunc("/webrtc/offer", s.handleOffer()).Methods(http.MethodPost)
	api.HandleFunc("/webrtc/candidate", s.handleCandidate()).Methods(http.MethodPost)
	api.HandleFunc("/sessions", s.handleSessions()).Methods(http.MethodGet)

	s.logger.Debug().Msg("registered signal HTTP handlers")
	return r
}

// ListenAndServe serves Handler until ctx is done, then closes every session.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port)),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Err(err).Msg("could not shut down HTTP server")
		}
	}()

	s.logger.Info().Str("addr", srv.Addr).Msg("starting signal server")
	err := srv.ListenAndServe()
	s.Close()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close closes every session.
func (s *Server) Close() {
	for _, sess := range s.sessions.drain() {
		s.closeSession(sess)
	}
}

// closeSession closes sess and counts it out of the active sessions once.
func (s *Server) closeSession(sess *session) {
	active, err := sess.close()
	if active {
		s.metrics.sessionsActive.Dec()
	}
	s.limiter.forget(limiterKey(sess.id))
	if err != nil {
		s.logger.Err(err).Str("stream_id", sess.id.StreamID).Str("session_id", sess.id.SessionID).Msg("could not close peer connection")
	}
}

// Offer answers the offer of id. Repeating the same offer returns the same answer.
func (s *Server) Offer(ctx context.Context, id signaling.SessionIdentity, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if offer.Type != webrtc.SDPTypeOffer || offer.SDP == "" {
		return nil, fmt.Errorf("%w: want a non-empty sdp of type offer", errInvalidOffer)
	}

	sess, created := s.sessions.claim(id, offer.SDP)
	if !created {
		if sess.offerSDP != offer.SDP {
			return nil, errSessionConflict
		}
		s.logger.Debug().Str("session_id", id.SessionID).Msg("received a repeated offer")
		return sess.wait(ctx)
	}

	answer, err := s.answerSession(ctx, sess, offer)
	if err == nil && !sess.activate() {
		answer, err = nil, errServerClosed
	}
	if err == nil {
		s.metrics.sessionsActive.Inc()
	}
	sess.answer, sess.err = answer, err
	close(sess.ready)
	if err != nil {
		s.sessions.remove(sess)
		s.closeSession(sess)
		s.metrics.offers.WithLabelValues("failed").Inc()
		return nil, err
	}

	s.metrics.offers.WithLabelValues("answered").Inc()
	s.events.publish(Event{Type: EventOffer, StreamID: id.StreamID, SessionID: id.SessionID})
	s.logger.Info().Str("stream_id", id.StreamID).Str("session_id", id.SessionID).Msg("answered offer")
	return answer, nil
}

// Candidate applies a trickled candidate to the session of id. Duplicates are ignored.
func (s *Server) Candidate(ctx context.Context, id signaling.SessionIdentity, candidate webrtc.ICECandidateInit) error {
	if candidate.Candidate == "" {
		return fmt.Errorf("%w: empty candidate", errInvalidCandidate)
	}
	sess, ok := s.sessions.get(id)
	if !ok {
		s.metrics.candidates.WithLabelValues("unknown_session").Inc()
		return errUnknownSession
	}
	if !s.limiter.allow(limiterKey(id)) {
		s.metrics.candidates.WithLabelValues("rate_limited").Inc()
		return errRateLimited
	}
	if _, err := sess.wait(ctx); err != nil {
		return errUnknownSession
	}

	added, err := sess.addCandidate(candidate)
	if err != nil {
		s.metrics.candidates.WithLabelValues("invalid").Inc()
		return fmt.Errorf("%w: %v", errInvalidCandidate, err)
	}
	if !added {
		s.metrics.candidates.WithLabelValues("duplicate").Inc()
		return nil
	}
	s.metrics.candidates.WithLabelValues("added").Inc()
	s.events.publish(Event{Type: EventCandidate, StreamID: id.StreamID, SessionID: id.SessionID})
	return nil
}

func limiterKey(id signaling.SessionIdentity) string {
	return id.StreamID + "/" + id.SessionID
}

func (s *Server) handleOffer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signaling.OfferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.logger.Err(err).Msg("could not decode request json body")
			httpx.Write(w, http.StatusBadRequest, httpx.ErrUnmarshalJSON)
			return
		}
		id := signaling.SessionIdentity{StreamID: mux.Vars(r)["id"], SessionID: req.SessionID}
		if err := id.Validate(); err != nil {
			httpx.Write(w, http.StatusBadRequest, httpx.ErrInvalidSession)
			return
		}

		answer, err := s.Offer(r.Context(), id, req.Offer)
		if err != nil {
			s.logger.Err(err).Str("stream_id", id.StreamID).Str("session_id", id.SessionID).Msg("could not answer offer")
			switch {
			case errors.Is(err, errInvalidOffer):
				httpx.Write(w, http.StatusBadRequest, httpx.ErrInvalidOffer)
			case errors.Is(err, errSessionConflict):
				httpx.Write(w, http.StatusConflict, httpx.ErrSessionConflict)
			default:
				httpx.Write(w, http.StatusInternalServerError, httpx.ErrFailedToAnswer)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(signaling.OfferResponse{Answer: answer}); err != nil {
			s.logger.Err(err).Msg("could not encode json response body")
		}
	}
}

func (s *Server) handleCandidate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signaling.CandidateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.logger.Err(err).Msg("could not decode request json body")
			httpx.Write(w, http.StatusBadRequest, httpx.ErrUnmarshalJSON)
			return
		}
		id := signaling.SessionIdentity{StreamID: mux.Vars(r)["id"], SessionID: req.SessionID}
		if err := id.Validate(); err != nil {
			httpx.Write(w, http.StatusBadRequest, httpx.ErrInvalidSession)
			return
		}

		if err := s.Candidate(r.Context(), id, req.Candidate); err != nil {
			switch {
			case errors.Is(err, errUnknownSession):
				httpx.Write(w, http.StatusNotFound, httpx.ErrUnknownSession)
			case errors.Is(err, errRateLimited):
				httpx.Write(w, http.StatusTooManyRequests, httpx.ErrRateLimited)
			default:
				s.logger.Warn().Err(err).Str("session_id", id.SessionID).Msg("rejected candidate")
				httpx.Write(w, http.StatusBadRequest, httpx.ErrInvalidCandidate)
			}
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s.sessions.list(mux.Vars(r)["id"])); err != nil {
			s.logger.Err(err).Msg("could not encode json response body")
		}
	}
}
