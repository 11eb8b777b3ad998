// Package turn runs a TURN relay for publishers behind NAT.
package turn

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/pion/turn/v2"
	"github.com/rs/zerolog"

	"github.com/atims0208/fieldhouse-beta-sub001/internal/pkg/pionlog"
)

var errNoPublicIP = errors.New("public ip is required")

// Relay is a running TURN server.
type Relay struct {
	server *turn.Server
	conn   net.PacketConn
}

// Addr is the UDP address the relay listens on.
func (r *Relay) Addr() net.Addr {
	return r.conn.LocalAddr()
}

// Close stops the relay.
func (r *Relay) Close() error {
	return r.server.Close()
}

// Serve starts a relay that accepts the single long-term credential of cfg.
func Serve(cfg ConfigOptions, logger *zerolog.Logger) (*Relay, error) {
	relayIP := net.ParseIP(cfg.PublicIP)
	if relayIP == nil {
		return nil, fmt.Errorf("%w: got %q", errNoPublicIP, cfg.PublicIP)
	}
	host := cfg.Host
	if host == "" {
		host = "0.0.0.0"
	}
	l := logger.With().Str("component", "TURNRelay").Logger()

	udpListener, err := net.ListenPacket("udp4", net.JoinHostPort(host, strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("could not create udp4 listener: %w", err)
	}
	l.Info().Str("addr", udpListener.LocalAddr().String()).Msg("created udp4 listener")

	authKey := turn.GenerateAuthKey(cfg.Username, cfg.Realm, cfg.Password)
	s, err := turn.NewServer(turn.ServerConfig{
		LoggerFactory: pionlog.New(&l),
		Realm:         cfg.Realm,
		AuthHandler: func(username, realm string, srcAddr net.Addr) ([]byte, bool) {
			if username != cfg.Username {
				l.Warn().Str("username", username).Str("src", srcAddr.String()).Msg("rejected unknown user")
				return nil, false
			}
			return authKey, true
		},
		PacketConnConfigs: []turn.PacketConnConfig{
			{
				PacketConn: udpListener,
				// Advertise the public ip while listening on host.
				RelayAddressGenerator: &turn.RelayAddressGeneratorPortRange{
					RelayAddress: relayIP,
					Address:      host,
					MinPort:      uint16(cfg.RelayMinPort),
					MaxPort:      uint16(cfg.RelayMaxPort),
				},
			},
		},
	})
	if err != nil {
		udpListener.Close()
		return nil, fmt.Errorf("could not create TURN server: %w", err)
	}
	l.Info().
		Uint("min_port", cfg.RelayMinPort).
		Uint("max_port", cfg.RelayMaxPort).
		Str("public_ip", cfg.PublicIP).
		Msg("started turn server")

	return &Relay{server: s, conn: udpListener}, nil
}
