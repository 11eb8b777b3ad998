package broadcast

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v3"
)

// DeviceKind is the kind of a capture device.
type DeviceKind string

const (
	VideoInput DeviceKind = "videoinput"
	AudioInput DeviceKind = "audioinput"
)

// DeviceDescriptor is a snapshot of one available input device.
type DeviceDescriptor struct {
	DeviceID string     `json:"deviceId"`
	Kind     DeviceKind `json:"kind"`
	Label    string     `json:"label"`
}

// Constraints selects the devices to capture. Empty IDs mean the default device of that kind.
type Constraints struct {
	VideoDeviceID string
	AudioDeviceID string
}

// Track is a live local media track that holds a device until stopped.
type Track interface {
	webrtc.TrackLocal
	Stop() error
}

// DeviceSource enumerates and opens capture devices.
type DeviceSource interface {
	EnumerateDevices(ctx context.Context) ([]DeviceDescriptor, error)
	GetUserMedia(ctx context.Context, constraints Constraints) (*CaptureStream, error)
}

// CaptureStream owns the tracks of one capture. It must be stopped to release the devices.
type CaptureStream struct {
	tracks []Track

	once sync.Once
	err  error
}

// NewCaptureStream returns a CaptureStream owning tracks.
func NewCaptureStream(tracks ...Track) *CaptureStream {
	return &CaptureStream{tracks: tracks}
}

// Tracks returns the tracks of the stream.
func (s *CaptureStream) Tracks() []Track {
	out := make([]Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// Stop stops every track once. Later calls return the first result.
func (s *CaptureStream) Stop() error {
	s.once.Do(func() {
		var errs []error
		for _, t := range s.tracks {
			if err := t.Stop(); err != nil {
				errs = append(errs, err)
			}
		}
		s.err = errors.Join(errs...)
	})
	return s.err
}
