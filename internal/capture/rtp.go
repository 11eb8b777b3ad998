package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog"
)

// openRTP binds a UDP listener at address and forwards the RTP packets it receives.
func openRTP(address string, local *webrtc.TrackLocalStaticRTP, logger *zerolog.Logger) (*track, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("could not resolve address of %s into udp address: %w", address, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen UDP: %w", err)
	}
	logger.Info().Str("address", conn.LocalAddr().String()).Msg("UDP listener started")

	return startTrack(local, conn, func(context.Context) error {
		return forwardRTP(conn, local, logger)
	}, logger), nil
}

func forwardRTP(conn net.PacketConn, local *webrtc.TrackLocalStaticRTP, logger *zerolog.Logger) error {
	inboundRTPPacket := make([]byte, 1600) // UDP MTU
	for {
		n, _, err := conn.ReadFrom(inboundRTPPacket)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("error during read: %w", err)
		}

		var pkt rtp.Packet
		if err := pkt.Unmarshal(inboundRTPPacket[:n]); err != nil {
			logger.Debug().Err(err).Int("size", n).Msg("dropped a datagram that is not RTP")
			continue
		}
		if err := local.WriteRTP(&pkt); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			return fmt.Errorf("could not write RTP packet: %w", err)
		}
	}
}
