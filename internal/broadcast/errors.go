package broadcast

import (
	"errors"
	"fmt"
)

// Error kinds returned by the Controller. Match them with errors.Is; the underlying
// cause stays reachable through the same chain.
var (
	ErrDeviceEnumeration = errors.New("device enumeration failed")
	ErrMediaAccess       = errors.New("media access failed")
	ErrAlreadyStreaming  = errors.New("already streaming")
	ErrSignaling         = errors.New("signaling failed")
	ErrSignalingTimeout  = errors.New("signaling timed out")
	ErrPeerConnection    = errors.New("peer connection failed")
	// ErrStartCanceled is returned by a Start that was overtaken by Stop or by its own context.
	ErrStartCanceled = errors.New("start canceled")
	// ErrClosed is returned once the Controller has been closed.
	ErrClosed = errors.New("controller closed")
)

func wrap(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %w", kind, fmt.Errorf(format, args...))
}

// errorKind names the kind of err for logs and metrics.
func errorKind(err error) string {
	for _, k := range []struct {
		err  error
		name string
	}{
		{ErrDeviceEnumeration, "device_enumeration"},
		{ErrMediaAccess, "media_access"},
		{ErrAlreadyStreaming, "already_streaming"},
		{ErrSignalingTimeout, "signaling_timeout"},
		{ErrSignaling, "signaling"},
		{ErrPeerConnection, "peer_connection"},
		{ErrStartCanceled, "canceled"},
		{ErrClosed, "closed"},
	} {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "unknown"
}
