package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/deepch/vdk/av"
	"github.com/deepch/vdk/codec/h264parser"
	"github.com/deepch/vdk/format/rtspv2"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/rs/zerolog"
)

const (
	rtspDialTimeout   = 3 * time.Second
	rtspRedialBackoff = time.Second
)

var errRTSPStopped = errors.New("rtsp stream stopped")

// rtspSession pulls H.264 from an RTSP server. It redials when the server stops the stream.
type rtspSession struct {
	address string
	local   *webrtc.TrackLocalStaticSample
	logger  *zerolog.Logger

	mu     sync.Mutex
	client *rtspv2.RTSPClient
}

// openRTSP dials address. The session is held until the track stops.
func openRTSP(ctx context.Context, address string, local *webrtc.TrackLocalStaticSample, logger *zerolog.Logger) (*track, error) {
	s := &rtspSession{address: address, local: local, logger: logger}
	if err := s.dial(ctx); err != nil {
		return nil, err
	}
	return startTrack(local, s, s.pump, logger), nil
}

func (s *rtspSession) dial(ctx context.Context) error {
	s.logger.Info().Str("address", s.address).Msg("dialing RTSP server")
	client, err := rtspv2.Dial(rtspv2.RTSPClientOptions{
		URL:              s.address,
		DialTimeout:      rtspDialTimeout,
		ReadWriteTimeout: rtspDialTimeout,
		DisableAudio:     true,
	})
	if err != nil {
		return fmt.Errorf("rtsp dial error: %w", err)
	}
	if err := checkRTSPCodecs(client.CodecData); err != nil {
		client.Close()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		client.Close()
		return ctx.Err()
	}
	s.client = client
	return nil
}

func checkRTSPCodecs(codecs []av.CodecData) error {
	if len(codecs) == 0 {
		return errors.New("rtsp stream has no codecs")
	}
	if codecs[0].Type() != av.H264 {
		return fmt.Errorf("wrong codec type: %s. RTSP feed must begin with a H264 codec", codecs[0].Type())
	}
	return nil
}

// Close ends the current RTSP session.
func (s *rtspSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	return nil
}

func (s *rtspSession) pump(ctx context.Context) error {
	for {
		err := s.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn().Err(err).Msg("rtsp stream interrupted, redialing")
		_ = s.Close()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(rtspRedialBackoff):
		}
		if err := s.dial(ctx); err != nil && ctx.Err() == nil {
			s.logger.Err(err).Msg("could not redial RTSP server")
		}
	}
}

// consume converts H.264 packets to Annex-B and writes them to the track.
func (s *rtspSession) consume(ctx context.Context) error {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return errors.New("no rtsp session")
	}

	codec, ok := client.CodecData[0].(h264parser.CodecData)
	if !ok {
		return errors.New("rtsp stream has no H264 codec data")
	}

	var previousTime time.Duration
	for {
		select {
		case <-ctx.Done():
			return nil
		case signal := <-client.Signals:
			switch signal {
			case rtspv2.SignalCodecUpdate:
				if c, ok := client.CodecData[0].(h264parser.CodecData); ok {
					codec = c
				}
			case rtspv2.SignalStreamRTPStop:
				return errRTSPStopped
			}
		case pkt := <-client.OutgoingPacketQueue:
			if pkt == nil || pkt.Idx != 0 || len(pkt.Data) < 4 {
				continue
			}

			data := pkt.Data[4:]
			// For every key-frame pre-pend the SPS and PPS
			if pkt.IsKeyFrame {
				data = annexB(codec.SPS(), codec.PPS(), data)
			} else {
				data = annexB(data)
			}

			duration := pkt.Time - previousTime
			previousTime = pkt.Time

			if err := s.local.WriteSample(media.Sample{Data: data, Duration: duration}); err != nil && !errors.Is(err, io.ErrClosedPipe) {
				return fmt.Errorf("could not write sample: %w", err)
			}
		}
	}
}

// annexB joins NAL units, each behind a start code.
func annexB(units ...[]byte) []byte {
	var out []byte
	for _, u := range units {
		out = append(out, annexBPrefix()...)
		out = append(out, u...)
	}
	return out
}

func annexBPrefix() []byte {
	return []byte{0x00, 0x00, 0x00, 0x01}
}
