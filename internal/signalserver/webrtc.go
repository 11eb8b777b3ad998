package signalserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog"

	"github.com/atims0208/fieldhouse-beta-sub001/internal/pkg/pionlog"
)

const (
	rtcpPLIInterval         = time.Second * 3
	defaultGatheringTimeout = 5 * time.Second
)

func newAPI(logger *zerolog.Logger) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("could not register default codecs: %w", err)
	}
	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("could not register default interceptors: %w", err)
	}
	return webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(i),
		webrtc.WithSettingEngine(webrtc.SettingEngine{LoggerFactory: pionlog.New(logger)}),
	), nil
}

func (s *Server) iceServers() []webrtc.ICEServer {
	if s.config.ICEServer == "" {
		return nil
	}
	return []webrtc.ICEServer{
		{
			URLs:       []string{s.config.ICEServer},
			Username:   s.config.Username,
			Credential: s.config.Credential,
		},
	}
}

// answerSession creates the receiving peer of sess and answers offer.
// The answer carries the candidates gathered within the gathering timeout.
func (s *Server) answerSession(ctx context.Context, sess *session, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	logger := s.logger.With().Str("stream_id", sess.id.StreamID).Str("session_id", sess.id.SessionID).Logger()

	pc, err := s.api.NewPeerConnection(webrtc.Configuration{ICEServers: s.iceServers()})
	if err != nil {
		return nil, fmt.Errorf("could not create PeerConnection: %w", err)
	}
	trackCtx, cancel := context.WithCancel(context.Background())
	if !sess.attach(pc, cancel) {
		cancel()
		_ = pc.Close()
		return nil, errServerClosed
	}

	// Set a handler for when a new remote track starts, this just drains its packets
	pc.OnTrack(func(t *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		logger.Info().Str("kind", t.Kind().String()).Str("codec", t.Codec().MimeType).Msg("received remote track")
		if t.Kind() == webrtc.RTPCodecTypeVideo {
			go s.sendPLI(trackCtx, pc, t, &logger)
		}
		s.drain(t, &logger)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Info().Str("state", state.String()).Msg("connection state has changed")
		sess.setState(state)
		s.events.publish(Event{Type: EventState, StreamID: sess.id.StreamID, SessionID: sess.id.SessionID, State: state.String()})

		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			if s.sessions.remove(sess) {
				s.closeSession(sess)
				logger.Info().Msg("removed session")
			}
		}
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		return nil, fmt.Errorf("%w: could not set remote description: %v", errInvalidOffer, err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("could not create answer: %w", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("could not set local description: %w", err)
	}

	timer := time.NewTimer(s.config.GatheringTimeout)
	defer timer.Stop()
	select {
	case <-gatherComplete:
	case <-timer.C:
		logger.Warn().Dur("timeout", s.config.GatheringTimeout).Msg("answering before ICE gathering completed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return pc.LocalDescription(), nil
}

// drain reads a remote track until it ends. Interceptors only see packets that are read.
func (s *Server) drain(t *webrtc.TrackRemote, logger *zerolog.Logger) {
	counter := s.metrics.rtpPackets.WithLabelValues(t.Kind().String())
	for {
		if _, _, err := t.ReadRTP(); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				logger.Err(err).Msg("could not read RTP")
			}
			return
		}
		counter.Inc()
	}
}

// sendPLI asks the publisher for a keyframe every rtcpPLIInterval.
func (s *Server) sendPLI(ctx context.Context, pc *webrtc.PeerConnection, t *webrtc.TrackRemote, logger *zerolog.Logger) {
	ticker := time.NewTicker(rtcpPLIInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := pc.WriteRTCP([]rtcp.Packet{
			&rtcp.PictureLossIndication{MediaSSRC: uint32(t.SSRC())},
		}); err != nil {
			if !errors.Is(err, io.ErrClosedPipe) {
				logger.Err(err).Msg("could not send PLI")
			}
			return
		}
	}
}
