package capture

import (
	"context"
	"io"
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog"
)

// track is a local track fed by a pump goroutine that owns an OS resource.
type track struct {
	webrtc.TrackLocal

	cancel context.CancelFunc
	closer io.Closer
	done   chan struct{}

	once sync.Once
	err  error
}

// startTrack runs pump until it returns or the track is stopped. closer releases the
// resource pump reads from and must make it return.
func startTrack(local webrtc.TrackLocal, closer io.Closer, pump func(ctx context.Context) error, logger *zerolog.Logger) *track {
	ctx, cancel := context.WithCancel(context.Background())
	t := &track{
		TrackLocal: local,
		cancel:     cancel,
		closer:     closer,
		done:       make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		if err := pump(ctx); err != nil && ctx.Err() == nil {
			logger.Err(err).Msg("capture stopped")
		}
	}()
	return t
}

// Stop releases the resource and waits for the pump to exit.
func (t *track) Stop() error {
	t.once.Do(func() {
		t.cancel()
		t.err = t.closer.Close()
		<-t.done
	})
	return t.err
}
