package broadcast

import (
	"time"

	"github.com/pion/webrtc/v3"
)

const (
	// DefaultSignalingTimeout bounds the offer/answer round trip.
	DefaultSignalingTimeout = 10 * time.Second
	// DefaultICEGatheringTimeout bounds the wait for the first local candidate.
	DefaultICEGatheringTimeout = 5 * time.Second
)

// ConfigOptions configures a Controller. Zero durations fall back to the defaults.
type ConfigOptions struct {
	SignalingTimeout    time.Duration
	ICEGatheringTimeout time.Duration
}

func (c ConfigOptions) withDefaults() ConfigOptions {
	if c.SignalingTimeout <= 0 {
		c.SignalingTimeout = DefaultSignalingTimeout
	}
	if c.ICEGatheringTimeout <= 0 {
		c.ICEGatheringTimeout = DefaultICEGatheringTimeout
	}
	return c
}

// ICEServer describes a STUN or TURN server. It is handed to the peer connection unmodified.
type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}

func toWebRTCICEServers(servers []ICEServer) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		out = append(out, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return out
}
