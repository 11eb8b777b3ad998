package broadcast

import (
	"errors"
	"fmt"
	"io"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog"

	"github.com/atims0208/fieldhouse-beta-sub001/internal/pkg/pionlog"
)

// PeerConnection is the part of *webrtc.PeerConnection the Controller drives.
type PeerConnection interface {
	AddTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error)
	CreateOffer(options *webrtc.OfferOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	LocalDescription() *webrtc.SessionDescription
	SetRemoteDescription(desc webrtc.SessionDescription) error
	OnICECandidate(f func(*webrtc.ICECandidate))
	OnConnectionStateChange(f func(webrtc.PeerConnectionState))
	ConnectionState() webrtc.PeerConnectionState
	GetSenders() []*webrtc.RTPSender
	RemoveTrack(sender *webrtc.RTPSender) error
	Close() error
}

// NewPeerConnectionFunc opens a peer connection for one session.
type NewPeerConnectionFunc func(config webrtc.Configuration) (PeerConnection, error)

// NewPeerConnection returns a NewPeerConnectionFunc backed by a pion API with the
// default codecs and interceptors. pion logs go to logger.
func NewPeerConnection(logger *zerolog.Logger) NewPeerConnectionFunc {
	return func(config webrtc.Configuration) (PeerConnection, error) {
		m := &webrtc.MediaEngine{}
		if err := m.RegisterDefaultCodecs(); err != nil {
			return nil, fmt.Errorf("could not register default codecs: %w", err)
		}

		// NACK, RTCP reports and TWCC need the interceptors and a drained RTCP reader.
		i := &interceptor.Registry{}
		if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
			return nil, fmt.Errorf("could not register default interceptors: %w", err)
		}

		s := webrtc.SettingEngine{LoggerFactory: pionlog.New(logger)}

		api := webrtc.NewAPI(
			webrtc.WithMediaEngine(m),
			webrtc.WithInterceptorRegistry(i),
			webrtc.WithSettingEngine(s),
		)
		pc, err := api.NewPeerConnection(config)
		if err != nil {
			return nil, err
		}
		return pc, nil
	}
}

// closePeerConnection stops every RTP sender, removes its track and closes the connection.
// The connection is closed even if a sender fails to stop.
func closePeerConnection(pc PeerConnection) error {
	if pc == nil {
		return nil
	}
	var errs []error
	for _, sender := range pc.GetSenders() {
		if err := sender.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("could not stop RTP sender: %w", err))
		}
		if err := pc.RemoveTrack(sender); err != nil && !errors.Is(err, webrtc.ErrConnectionClosed) {
			errs = append(errs, fmt.Errorf("could not remove track: %w", err))
		}
	}
	if err := pc.Close(); err != nil {
		errs = append(errs, fmt.Errorf("could not close peer connection: %w", err))
	}
	return errors.Join(errs...)
}

// processRTCP reads incoming RTCP packets
// Before these packets are returned they are processed by interceptors.
// For things like NACK this needs to be called.
func processRTCP(sender *webrtc.RTPSender, logger *zerolog.Logger) {
	for {
		pkts, _, err := sender.ReadRTCP()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				logger.Err(err).Msg("could not read RTCP")
			}
			return
		}
		for _, pkt := range pkts {
			switch p := pkt.(type) {
			case *rtcp.PictureLossIndication:
				logger.Debug().Uint32("media_ssrc", p.MediaSSRC).Msg("received picture loss indication")
			case *rtcp.ReceiverEstimatedMaximumBitrate:
				logger.Debug().Float32("bitrate", p.Bitrate).Msg("received bitrate estimate")
			}
		}
	}
}
