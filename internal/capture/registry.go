// Package capture provides the media inputs of a publisher. Each configured source is a
// device that holds an OS resource (a bound socket, a dialed RTSP session or an RTMP
// listener) for as long as it is captured.
package capture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/pion/randutil"
	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog"

	"github.com/atims0208/fieldhouse-beta-sub001/internal/broadcast"
)

const (
	SchemeRTPH264 = "rtp+h264"
	SchemeRTPOpus = "rtp+opus"
	SchemeRTSP    = "rtsp"
	SchemeRTMP    = "rtmp"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrNoDevices      = errors.New("no device matches the constraints")
)

// Source is a configured capture device.
type Source struct {
	ID     string
	Label  string
	Scheme string
	// Address is host:port for rtp and rtmp sources and the stream URL for rtsp.
	Address string
}

// Kind reports whether the source captures video or audio.
func (s Source) Kind() broadcast.DeviceKind {
	if s.Scheme == SchemeRTPOpus {
		return broadcast.AudioInput
	}
	return broadcast.VideoInput
}

func (s Source) codec() webrtc.RTPCodecCapability {
	if s.Scheme == SchemeRTPOpus {
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	}
	return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264, ClockRate: 90000}
}

// ParseSource parses a device spec of the form id=scheme://host:port[/path][?label=...].
func ParseSource(spec string) (Source, error) {
	id, raw, ok := strings.Cut(spec, "=")
	if !ok || id == "" {
		return Source{}, fmt.Errorf("device spec %q: want id=scheme://host:port", spec)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Source{}, fmt.Errorf("device spec %q: %w", spec, err)
	}
	if u.Host == "" {
		return Source{}, fmt.Errorf("device spec %q: missing host", spec)
	}

	query := u.Query()
	src := Source{ID: id, Label: query.Get("label"), Scheme: u.Scheme}
	if src.Label == "" {
		src.Label = id
	}
	query.Del("label")
	u.RawQuery = query.Encode()

	switch u.Scheme {
	case SchemeRTPH264, SchemeRTPOpus, SchemeRTMP:
		if u.Port() == "" {
			return Source{}, fmt.Errorf("device spec %q: missing port", spec)
		}
		src.Address = u.Host
	case SchemeRTSP:
		src.Address = u.String()
	default:
		return Source{}, fmt.Errorf("device spec %q: unsupported scheme %q", spec, u.Scheme)
	}
	return src, nil
}

// ParseSources parses every spec and rejects duplicate IDs.
func ParseSources(specs []string) ([]Source, error) {
	seen := make(map[string]bool, len(specs))
	sources := make([]Source, 0, len(specs))
	for _, spec := range specs {
		src, err := ParseSource(spec)
		if err != nil {
			return nil, err
		}
		if seen[src.ID] {
			return nil, fmt.Errorf("duplicate device id %q", src.ID)
		}
		seen[src.ID] = true
		sources = append(sources, src)
	}
	return sources, nil
}

// Registry implements broadcast.DeviceSource over configured sources.
type Registry struct {
	sources []Source
	rand    randutil.MathRandomGenerator
	logger  zerolog.Logger
}

func NewRegistry(sources []Source, logger *zerolog.Logger) *Registry {
	return &Registry{
		sources: sources,
		rand:    randutil.NewMathRandomGenerator(),
		logger:  logger.With().Str("component", "CaptureRegistry").Logger(),
	}
}

func (r *Registry) EnumerateDevices(context.Context) ([]broadcast.DeviceDescriptor, error) {
	devices := make([]broadcast.DeviceDescriptor, 0, len(r.sources))
	for _, src := range r.sources {
		devices = append(devices, broadcast.DeviceDescriptor{
			DeviceID: src.ID,
			Kind:     src.Kind(),
			Label:    src.Label,
		})
	}
	return devices, nil
}

// GetUserMedia opens the selected video and audio sources. An empty ID selects the first
// source of its kind. Nothing stays open when an error is returned.
func (r *Registry) GetUserMedia(ctx context.Context, constraints broadcast.Constraints) (*broadcast.CaptureStream, error) {
	var selected []Source
	for _, want := range []struct {
		kind broadcast.DeviceKind
		id   string
	}{
		{broadcast.VideoInput, constraints.VideoDeviceID},
		{broadcast.AudioInput, constraints.AudioDeviceID},
	} {
		src, ok := r.find(want.kind, want.id)
		if !ok {
			if want.id != "" {
				return nil, fmt.Errorf("%w: %s %q", ErrDeviceNotFound, want.kind, want.id)
			}
			continue
		}
		selected = append(selected, src)
	}
	if len(selected) == 0 {
		return nil, ErrNoDevices
	}

	streamID := fmt.Sprintf("fieldhouse-%d", r.rand.Uint32())
	tracks := make([]broadcast.Track, 0, len(selected))
	for _, src := range selected {
		t, err := r.open(ctx, src, streamID)
		if err != nil {
			for _, t := range tracks {
				if err := t.Stop(); err != nil {
					r.logger.Err(err).Msg("could not stop track")
				}
			}
			return nil, fmt.Errorf("could not open %s: %w", src.ID, err)
		}
		tracks = append(tracks, t)
	}
	return broadcast.NewCaptureStream(tracks...), nil
}

func (r *Registry) find(kind broadcast.DeviceKind, id string) (Source, bool) {
	for _, src := range r.sources {
		if src.Kind() != kind {
			continue
		}
		if id == "" || src.ID == id {
			return src, true
		}
	}
	return Source{}, false
}

func (r *Registry) open(ctx context.Context, src Source, streamID string) (*track, error) {
	logger := r.logger.With().Str("device_id", src.ID).Str("scheme", src.Scheme).Logger()
	trackID := fmt.Sprintf("%s-%d", src.Kind(), r.rand.Uint32())

	switch src.Scheme {
	case SchemeRTPH264, SchemeRTPOpus:
		local, err := webrtc.NewTrackLocalStaticRTP(src.codec(), trackID, streamID)
		if err != nil {
			return nil, fmt.Errorf("could not create TrackLocalStaticRTP: %w", err)
		}
		return openRTP(src.Address, local, &logger)
	case SchemeRTSP:
		local, err := webrtc.NewTrackLocalStaticSample(src.codec(), trackID, streamID)
		if err != nil {
			return nil, fmt.Errorf("could not create TrackLocalStaticSample: %w", err)
		}
		return openRTSP(ctx, src.Address, local, &logger)
	case SchemeRTMP:
		local, err := webrtc.NewTrackLocalStaticSample(src.codec(), trackID, streamID)
		if err != nil {
			return nil, fmt.Errorf("could not create TrackLocalStaticSample: %w", err)
		}
		return openRTMP(src.Address, local, &logger)
	default:
		return nil, fmt.Errorf("unsupported scheme %q", src.Scheme)
	}
}
