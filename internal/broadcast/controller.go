// Package broadcast publishes a local capture to a remote media server over WebRTC.
//
// A Controller owns at most one session at a time. A session captures the selected
// devices, attaches them to a new peer connection, exchanges an offer and answer through
// a Signaler and trickles local ICE candidates until it is stopped or its connection
// drops. Every way out of a session (a failed Start, Stop, or a dropped connection)
// releases the capture and closes the peer connection.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog"

	"github.com/atims0208/fieldhouse-beta-sub001/internal/signaling"
)

const maxCandidateRetries = 3

// Callbacks notify the host about the session lifecycle. Any of them may be nil.
// OnStreamStart runs once per successful Start. OnStreamEnd runs once per session that
// reached connected, after its resources are released; OnStreamError precedes it when
// the session ended because the connection failed.
type Callbacks struct {
	OnStreamStart func()
	OnStreamEnd   func()
	OnStreamError func(reason error)
}

// PreviewSink renders the local capture. It must not call back into the Controller.
type PreviewSink interface {
	Attach(stream *CaptureStream) error
	Detach()
}

// NoopPreview discards the preview.
type NoopPreview struct{}

func (NoopPreview) Attach(*CaptureStream) error { return nil }
func (NoopPreview) Detach()                     {}

// Signaler exchanges the offer and answer of a session and trickles its local candidates.
type Signaler interface {
	SendOffer(ctx context.Context, id signaling.SessionIdentity, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error)
	SendCandidate(ctx context.Context, id signaling.SessionIdentity, candidate webrtc.ICECandidateInit) error
}

// Option customizes a Controller.
type Option func(*Controller)

// WithCallbacks sets the host callbacks.
func WithCallbacks(callbacks Callbacks) Option {
	return func(c *Controller) { c.callbacks = callbacks }
}

// WithPreview sets the preview sink.
func WithPreview(preview PreviewSink) Option {
	return func(c *Controller) { c.preview = preview }
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics Metrics) Option {
	return func(c *Controller) { c.metrics = metrics }
}

// WithPeerConnectionFunc replaces the peer connection constructor.
func WithPeerConnectionFunc(f NewPeerConnectionFunc) Option {
	return func(c *Controller) { c.newPeerConnection = f }
}

// Controller drives one outbound publishing session at a time.
// All methods are safe for concurrent use.
type Controller struct {
	config            ConfigOptions
	devices           DeviceSource
	signaler          Signaler
	preview           PreviewSink
	callbacks         Callbacks
	metrics           Metrics
	newPeerConnection NewPeerConnectionFunc
	logger            zerolog.Logger

	mu sync.Mutex
	// settled is broadcast on mu when a start or a teardown finishes.
	settled     *sync.Cond
	state       State
	generation  uint64
	starting    bool
	startGen    uint64
	cancelStart context.CancelFunc
	current     *session
	tearing     int
	selection   Constraints
	closed      bool
}

// New returns an idle Controller. Close it when done.
func New(config ConfigOptions, devices DeviceSource, signaler Signaler, logger *zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		config:   config.withDefaults(),
		devices:  devices,
		signaler: signaler,
		preview:  NoopPreview{},
		metrics:  noopMetrics{},
		logger:   logger.With().Str("component", "BroadcastController").Logger(),
	}
	c.settled = sync.NewCond(&c.mu)
	for _, opt := range opts {
		opt(c)
	}
	if c.newPeerConnection == nil {
		c.newPeerConnection = NewPeerConnection(&c.logger)
	}
	return c
}

// session is one attempt to publish, from capture to teardown.
type session struct {
	generation uint64
	identity   signaling.SessionIdentity
	logger     zerolog.Logger

	// ctx bounds trickled candidate sends and is canceled on release.
	ctx    context.Context
	cancel context.CancelFunc

	stream          *CaptureStream
	pc              PeerConnection
	previewAttached bool

	candidatesMux     sync.Mutex
	answered          bool
	pendingCandidates []webrtc.ICECandidateInit

	gathered     chan struct{}
	gatheredOnce sync.Once
	failed       chan struct{}
	failedOnce   sync.Once

	// Guarded by Controller.mu.
	live           bool
	torn           bool
	notifyingStart bool
	endPending     bool
	endReason      error
}

// ListDevices enumerates the available input devices.
func (c *Controller) ListDevices(ctx context.Context) ([]DeviceDescriptor, error) {
	devices, err := c.devices.EnumerateDevices(ctx)
	if err != nil {
		return nil, wrap(ErrDeviceEnumeration, "could not enumerate devices: %w", err)
	}
	out := make([]DeviceDescriptor, len(devices))
	copy(out, devices)
	return out, nil
}

// SelectDevices picks the devices of the next Start. It is ignored while streaming.
func (c *Controller) SelectDevices(videoDeviceID, audioDeviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.starting || c.current != nil {
		c.logger.Warn().Str("video", videoDeviceID).Str("audio", audioDeviceID).Msg("ignored device selection while streaming")
		return
	}
	c.selection = Constraints{VideoDeviceID: videoDeviceID, AudioDeviceID: audioDeviceID}
	c.logger.Debug().Str("video", videoDeviceID).Str("audio", audioDeviceID).Msg("selected devices")
}

// State returns the state of the current session.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start publishes the selected devices under identity. It returns once the answer is
// applied and local ICE gathering has produced a candidate, leaving the session
// connected. On error nothing of the attempt survives and the state is idle.
func (c *Controller) Start(ctx context.Context, identity signaling.SessionIdentity, iceServers []ICEServer) error {
	if err := identity.Validate(); err != nil {
		return wrap(ErrSignaling, "invalid session identity: %w", err)
	}

	c.mu.Lock()
	for {
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		if c.starting || c.current != nil {
			c.mu.Unlock()
			return ErrAlreadyStreaming
		}
		if c.tearing == 0 {
			break
		}
		// The previous session still holds the devices.
		c.settled.Wait()
	}
	c.generation++
	gen := c.generation
	startCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.starting = true
	c.startGen = gen
	c.cancelStart = cancel
	selection := c.selection
	c.mu.Unlock()

	s, err := c.open(startCtx, gen, identity, iceServers, selection)
	if err == nil {
		err = c.commit(s, gen)
	}
	if err != nil {
		c.mu.Lock()
		c.starting = false
		c.cancelStart = nil
		if c.generation == gen {
			c.state = StateIdle
		} else {
			c.state = StateClosed
		}
		c.settled.Broadcast()
		c.mu.Unlock()

		c.metrics.StartFailed(errorKind(err))
		c.logger.Err(err).Str("stream_id", identity.StreamID).Str("session_id", identity.SessionID).Msg("could not start stream")
		return err
	}

	c.metrics.SessionStarted()
	s.logger.Info().Msg("stream started")
	if c.callbacks.OnStreamStart != nil {
		c.callbacks.OnStreamStart()
	}

	// A teardown that finished while OnStreamStart ran left its notification to us.
	c.mu.Lock()
	s.notifyingStart = false
	pending, reason := s.endPending, s.endReason
	s.endPending = false
	c.mu.Unlock()
	if pending {
		c.notifyEnd(reason)
	}
	return nil
}

// commit makes s the live session unless it was overtaken. It releases s otherwise.
func (c *Controller) commit(s *session, gen uint64) error {
	c.mu.Lock()
	var err error
	switch {
	case c.generation != gen || c.closed:
		err = ErrStartCanceled
	case isClosed(s.failed):
		err = wrap(ErrPeerConnection, "connection failed during negotiation")
	}
	if err != nil {
		c.mu.Unlock()
		c.release(s)
		return err
	}
	c.starting = false
	c.cancelStart = nil
	c.current = s
	c.state = StateConnected
	s.live = true
	s.notifyingStart = true
	c.settled.Broadcast()
	c.mu.Unlock()
	return nil
}

// open runs the capture and negotiation steps of Start. It releases everything it
// acquired before returning an error.
func (c *Controller) open(ctx context.Context, gen uint64, identity signaling.SessionIdentity, iceServers []ICEServer, selection Constraints) (_ *session, err error) {
	sessionCtx, cancel := context.WithCancel(context.Background())
	s := &session{
		generation: gen,
		identity:   identity,
		logger: c.logger.With().
			Str("stream_id", identity.StreamID).
			Str("session_id", identity.SessionID).
			Uint64("generation", gen).
			Logger(),
		ctx:      sessionCtx,
		cancel:   cancel,
		gathered: make(chan struct{}),
		failed:   make(chan struct{}),
	}
	defer func() {
		if err != nil {
			c.release(s)
		}
	}()

	if err := c.interrupted(ctx, gen); err != nil {
		return nil, err
	}

	stream, err := c.devices.GetUserMedia(ctx, selection)
	if err != nil {
		if err := c.interrupted(ctx, gen); err != nil {
			return nil, err
		}
		return nil, wrap(ErrMediaAccess, "could not capture devices: %w", err)
	}
	s.stream = stream
	if len(stream.Tracks()) == 0 {
		return nil, wrap(ErrMediaAccess, "capture has no tracks")
	}
	if err := c.advance(gen, StateCapturing); err != nil {
		return nil, err
	}
	s.logger.Info().Int("tracks", len(stream.Tracks())).Msg("captured devices")

	if err := c.preview.Attach(stream); err != nil {
		s.logger.Warn().Err(err).Msg("could not attach preview")
	}
	s.previewAttached = true

	pc, err := c.newPeerConnection(webrtc.Configuration{ICEServers: toWebRTCICEServers(iceServers)})
	if err != nil {
		return nil, wrap(ErrPeerConnection, "could not create peer connection: %w", err)
	}
	s.pc = pc
	pc.OnICECandidate(c.handleICECandidate(s))
	pc.OnConnectionStateChange(c.handleConnectionStateChange(s))

	for _, track := range stream.Tracks() {
		sender, err := pc.AddTrack(track)
		if err != nil {
			return nil, wrap(ErrPeerConnection, "could not add track %s: %w", track.ID(), err)
		}
		go processRTCP(sender, &s.logger)
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, wrap(ErrPeerConnection, "could not create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return nil, wrap(ErrPeerConnection, "could not set local description: %w", err)
	}
	gatherDeadline := time.Now().Add(c.config.ICEGatheringTimeout)
	if err := c.advance(gen, StateNegotiating); err != nil {
		return nil, err
	}

	answer, err := c.exchange(ctx, gen, s)
	if err != nil {
		return nil, err
	}
	if err := pc.SetRemoteDescription(*answer); err != nil {
		return nil, wrap(ErrSignaling, "could not set remote description: %w", err)
	}
	s.logger.Info().Msg("set remote description")
	c.flushCandidates(s)

	if err := c.awaitGathering(ctx, gen, s, gatherDeadline); err != nil {
		return nil, err
	}
	return s, nil
}

// exchange sends the local offer and validates the answer.
func (c *Controller) exchange(ctx context.Context, gen uint64, s *session) (*webrtc.SessionDescription, error) {
	signalCtx, cancel := context.WithTimeout(ctx, c.config.SignalingTimeout)
	defer cancel()

	began := time.Now()
	answer, err := c.signaler.SendOffer(signalCtx, s.identity, *s.pc.LocalDescription())
	if stale := c.interrupted(ctx, gen); stale != nil {
		// Results of a superseded attempt are discarded.
		return nil, stale
	}
	if err != nil {
		if errors.Is(signalCtx.Err(), context.DeadlineExceeded) {
			return nil, wrap(ErrSignalingTimeout, "no answer within %s: %w", c.config.SignalingTimeout, err)
		}
		return nil, wrap(ErrSignaling, "could not send offer: %w", err)
	}
	c.metrics.ObserveNegotiation(time.Since(began))
	s.logger.Info().Dur("took", time.Since(began)).Msg("received answer")

	if answer == nil {
		return nil, wrap(ErrSignaling, "answer is missing")
	}
	if answer.Type != webrtc.SDPTypeAnswer {
		return nil, wrap(ErrSignaling, "unexpected sdp type %s", answer.Type)
	}
	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(answer.SDP)); err != nil {
		return nil, wrap(ErrSignaling, "malformed answer: %w", err)
	}
	return answer, nil
}

// awaitGathering waits until the first local candidate is known or gathering finished.
func (c *Controller) awaitGathering(ctx context.Context, gen uint64, s *session, deadline time.Time) error {
	select {
	case <-s.gathered:
		return nil
	default:
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case <-s.gathered:
		return nil
	case <-s.failed:
		return wrap(ErrPeerConnection, "connection failed during ICE gathering")
	case <-ctx.Done():
		return c.interrupted(ctx, gen)
	case <-timer.C:
		return wrap(ErrSignalingTimeout, "no local ICE candidate within %s", c.config.ICEGatheringTimeout)
	}
}

// interrupted reports ErrStartCanceled once ctx is done or a Stop overtook gen.
func (c *Controller) interrupted(ctx context.Context, gen uint64) error {
	c.mu.Lock()
	stale := c.generation != gen
	c.mu.Unlock()
	if stale {
		return ErrStartCanceled
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStartCanceled, err)
	}
	return nil
}

// advance moves an in-flight start to state unless a Stop overtook it.
func (c *Controller) advance(gen uint64, state State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return ErrStartCanceled
	}
	c.state = state
	return nil
}

func (c *Controller) handleICECandidate(s *session) func(*webrtc.ICECandidate) {
	return func(candidate *webrtc.ICECandidate) {
		s.gatheredOnce.Do(func() { close(s.gathered) })
		if candidate == nil {
			s.logger.Debug().Msg("ICE gathering complete")
			return
		}
		init := candidate.ToJSON()

		s.candidatesMux.Lock()
		if !s.answered {
			s.pendingCandidates = append(s.pendingCandidates, init)
			s.candidatesMux.Unlock()
			return
		}
		s.candidatesMux.Unlock()

		c.trickle(s, init)
	}
}

// flushCandidates sends candidates gathered before the answer arrived.
func (c *Controller) flushCandidates(s *session) {
	s.candidatesMux.Lock()
	s.answered = true
	pending := s.pendingCandidates
	s.pendingCandidates = nil
	s.candidatesMux.Unlock()

	for _, candidate := range pending {
		c.trickle(s, candidate)
	}
}

// trickle sends candidate in the background. Failures are logged and never end the session.
func (c *Controller) trickle(s *session, candidate webrtc.ICECandidateInit) {
	if s.ctx.Err() != nil {
		return
	}
	go func() {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 100 * time.Millisecond
		b.MaxInterval = time.Second
		b.MaxElapsedTime = c.config.SignalingTimeout

		err := backoff.Retry(func() error {
			ctx, cancel := context.WithTimeout(s.ctx, c.config.SignalingTimeout)
			defer cancel()
			return c.signaler.SendCandidate(ctx, s.identity, candidate)
		}, backoff.WithContext(backoff.WithMaxRetries(b, maxCandidateRetries), s.ctx))
		if s.ctx.Err() != nil {
			return
		}

		c.metrics.CandidateSent(err)
		if err != nil {
			s.logger.Err(err).Str("candidate", candidate.Candidate).Msg("could not send candidate")
			return
		}
		s.logger.Debug().Str("candidate", candidate.Candidate).Msg("sent an ICE candidate")
	}()
}

func (c *Controller) handleConnectionStateChange(s *session) func(webrtc.PeerConnectionState) {
	return func(state webrtc.PeerConnectionState) {
		s.logger.Info().Str("state", state.String()).Msg("connection state has changed")

		switch state {
		case webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed:
		default:
			return
		}

		c.mu.Lock()
		if !s.live {
			if state == webrtc.PeerConnectionStateFailed {
				s.failedOnce.Do(func() { close(s.failed) })
			}
			c.mu.Unlock()
			return
		}
		if s.torn || c.current != s {
			c.mu.Unlock()
			return
		}
		s.torn = true
		c.current = nil
		c.tearing++
		c.state = StateFailed
		c.mu.Unlock()

		c.teardown(s, wrap(ErrPeerConnection, "connection %s", state))
	}
}

// Stop ends the current session and cancels an in-flight Start. It is a no-op when
// idle and safe to call from any callback. When a Start is in flight, Stop returns
// after it has rolled back.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.generation++
	stopGen := c.generation
	if c.starting && c.cancelStart != nil {
		c.cancelStart()
	}
	s := c.current
	claimed := s != nil && !s.torn
	if claimed {
		s.torn = true
		c.current = nil
		c.tearing++
	}
	c.mu.Unlock()

	if claimed {
		c.teardown(s, nil)
	}

	c.mu.Lock()
	for c.starting && c.startGen < stopGen {
		c.settled.Wait()
	}
	c.mu.Unlock()
}

// Close stops the controller for good. Later Starts fail with ErrClosed.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.Stop()
	return nil
}

// teardown releases a claimed live session and notifies the host. The caller counted
// it in tearing when it claimed s. reason is nil for an explicit Stop.
func (c *Controller) teardown(s *session, reason error) {
	c.release(s)

	c.mu.Lock()
	c.tearing--
	if c.current == nil && !c.starting {
		c.state = StateClosed
	}
	notify := !s.notifyingStart
	if !notify {
		s.endPending = true
		s.endReason = reason
	}
	c.settled.Broadcast()
	c.mu.Unlock()

	label := "stopped"
	if reason != nil {
		label = "failed"
		s.logger.Warn().Err(reason).Msg("stream ended by connection failure")
	} else {
		s.logger.Info().Msg("stream stopped")
	}
	c.metrics.SessionEnded(label)

	if notify {
		c.notifyEnd(reason)
	}
}

func (c *Controller) notifyEnd(reason error) {
	if reason != nil && c.callbacks.OnStreamError != nil {
		c.callbacks.OnStreamError(reason)
	}
	if c.callbacks.OnStreamEnd != nil {
		c.callbacks.OnStreamEnd()
	}
}

// release frees everything s holds. Callers own s exclusively.
func (c *Controller) release(s *session) {
	s.cancel()

	if err := closePeerConnection(s.pc); err != nil {
		s.logger.Err(err).Msg("could not close peer connection")
	}
	if s.previewAttached {
		c.preview.Detach()
		s.previewAttached = false
	}
	if s.stream != nil {
		if err := s.stream.Stop(); err != nil {
			s.logger.Err(err).Msg("could not stop capture")
		}
	}

	s.candidatesMux.Lock()
	s.pendingCandidates = nil
	s.candidatesMux.Unlock()
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
