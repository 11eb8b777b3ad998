package capture

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
	flvtag "github.com/yutopp/go-flv/tag"
	"github.com/yutopp/go-rtmp"
	rtmpmsg "github.com/yutopp/go-rtmp/message"
)

const (
	headerLengthField = 4
	spsID             = 0x67
	ppsID             = 0x68

	rtmpFrameDuration = time.Second / 30
)

var errMalformedVideo = errors.New("malformed AVC video data")

// rtmpIngest is an RTMP server accepting one publisher at a time.
type rtmpIngest struct {
	listener net.Listener
	server   *rtmp.Server

	closeOnce sync.Once
}

// openRTMP listens on address for an RTMP publisher whose video goes to local.
func openRTMP(address string, local *webrtc.TrackLocalStaticSample, logger *zerolog.Logger) (*track, error) {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen tcp at %s: %w", address, err)
	}

	var publishing sync.Mutex
	busy := false
	ingest := &rtmpIngest{listener: l}
	ingest.server = rtmp.NewServer(&rtmp.ServerConfig{
		OnConnect: func(conn net.Conn) (io.ReadWriteCloser, *rtmp.ConnConfig) {
			return conn, &rtmp.ConnConfig{
				Handler: &handler{
					sample: local.WriteSample,
					claim: func() bool {
						publishing.Lock()
						defer publishing.Unlock()
						if busy {
							return false
						}
						busy = true
						return true
					},
					release: func() {
						publishing.Lock()
						busy = false
						publishing.Unlock()
					},
					logger: logger,
				},
				ControlState: rtmp.StreamControlStateConfig{
					DefaultBandwidthWindowSize: 6 * 1024 * 1024 / 8,
				},
				Logger: logrus.StandardLogger(),
			}
		},
	})
	logger.Info().Str("address", l.Addr().String()).Msg("starting rtmp server")

	return startTrack(local, ingest, func(context.Context) error {
		return ingest.server.Serve(l)
	}, logger), nil
}

func (i *rtmpIngest) Close() error {
	var err error
	i.closeOnce.Do(func() {
		err = i.server.Close()
		if lerr := i.listener.Close(); lerr != nil && !errors.Is(lerr, net.ErrClosed) && err == nil {
			err = lerr
		}
	})
	return err
}

type handler struct {
	rtmp.DefaultHandler

	sample  func(media.Sample) error
	claim   func() bool
	release func()
	claimed bool

	sps []byte
	pps []byte

	logger *zerolog.Logger
}

func (h *handler) OnConnect(timestamp uint32, _ *rtmpmsg.NetConnectionConnect) error {
	h.logger.Info().Msg("client is connecting")
	return nil
}

func (h *handler) OnCreateStream(timestamp uint32, _ *rtmpmsg.NetConnectionCreateStream) error {
	h.logger.Info().Msg("client is creating stream")
	return nil
}

func (h *handler) OnPublish(_ *rtmp.StreamContext, timestamp uint32, cmd *rtmpmsg.NetStreamPublish) error {
	if cmd.PublishingName == "" {
		return errors.New("PublishingName is empty")
	}
	if !h.claim() {
		return errors.New("another client is already publishing")
	}
	h.claimed = true
	h.logger.Info().Str("publishing_name", cmd.PublishingName).Msg("client is publishing stream")
	return nil
}

func (h *handler) OnVideo(timestamp uint32, payload io.Reader) error {
	if !h.claimed {
		return nil
	}

	var video flvtag.VideoData
	if err := flvtag.DecodeVideoData(payload, &video); err != nil {
		return err
	}

	data := new(bytes.Buffer)
	if _, err := io.Copy(data, video.Data); err != nil {
		return err
	}

	switch video.AVCPacketType {
	case flvtag.AVCPacketTypeSequenceHeader:
		return h.parseSequenceHeader(data.Bytes())
	case flvtag.AVCPacketTypeNALU:
	default:
		h.logger.Warn().Uint8("AVCPacketType", uint8(video.AVCPacketType)).Msg("unknown type")
		return nil
	}

	frame, hasParameterSets, err := h.annexBFrame(data.Bytes())
	if err != nil {
		return err
	}
	// We have an unadorned keyframe, prepend SPS/PPS
	if video.FrameType == flvtag.FrameTypeKeyFrame && !hasParameterSets {
		frame = append(append(append([]byte{}, h.sps...), h.pps...), frame...)
	}

	if err := h.sample(media.Sample{Data: frame, Duration: rtmpFrameDuration}); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return err
	}
	return nil
}

// annexBFrame converts length-prefixed NAL units to Annex-B and remembers parameter sets.
func (h *handler) annexBFrame(buf []byte) (_ []byte, hasParameterSets bool, _ error) {
	var out []byte
	for offset := 0; offset < len(buf); {
		if offset+headerLengthField > len(buf) {
			return nil, false, errMalformedVideo
		}
		length := int(binary.BigEndian.Uint32(buf[offset : offset+headerLengthField]))
		offset += headerLengthField
		if length == 0 || offset+length > len(buf) {
			return nil, false, errMalformedVideo
		}
		unit := buf[offset : offset+length]
		offset += length

		switch unit[0] {
		case spsID:
			hasParameterSets = true
			h.sps = annexB(unit)
		case ppsID:
			hasParameterSets = true
			h.pps = annexB(unit)
		}
		out = append(out, annexB(unit)...)
	}
	return out, hasParameterSets, nil
}

// parseSequenceHeader reads the SPS and PPS of an AVCDecoderConfigurationRecord.
func (h *handler) parseSequenceHeader(buf []byte) error {
	const spsCountOffset = 5
	if len(buf) <= spsCountOffset {
		return errMalformedVideo
	}

	read := func(offset int, want byte) ([]byte, int, error) {
		if offset+2 > len(buf) {
			return nil, 0, errMalformedVideo
		}
		n := int(binary.BigEndian.Uint16(buf[offset : offset+2]))
		offset += 2
		if n == 0 || offset+n > len(buf) {
			return nil, 0, errMalformedVideo
		}
		if buf[offset] != want {
			return nil, 0, fmt.Errorf("failed to parse parameter set %#x", want)
		}
		return buf[offset : offset+n], offset + n, nil
	}

	var sps, pps []byte
	offset := spsCountOffset + 1
	for i := 0; i < int(buf[spsCountOffset]&0x1F); i++ {
		unit, next, err := read(offset, spsID)
		if err != nil {
			return err
		}
		sps = append(sps, annexB(unit)...)
		offset = next
	}
	if offset >= len(buf) {
		return errMalformedVideo
	}
	ppsCount := int(buf[offset])
	offset++
	for i := 0; i < ppsCount; i++ {
		unit, next, err := read(offset, ppsID)
		if err != nil {
			return err
		}
		pps = append(pps, annexB(unit)...)
		offset = next
	}

	h.sps, h.pps = sps, pps
	return nil
}

func (h *handler) OnClose() {
	if h.claimed {
		h.release()
		h.claimed = false
	}
	h.logger.Info().Msg("closing client connection")
}
