package broadcast

import (
	"errors"
	"testing"
	"time"
)

type stubTrack struct {
	fakeTrack
	stops int
	err   error
}

func (t *stubTrack) Stop() error {
	t.stops++
	return t.err
}

func TestCaptureStreamStopsOnce(t *testing.T) {
	errBusy := errors.New("device busy")
	a, b := &stubTrack{}, &stubTrack{err: errBusy}
	s := NewCaptureStream(a, b)

	if got := len(s.Tracks()); got != 2 {
		t.Fatalf("Tracks() = %d tracks, want 2", got)
	}
	tracks := s.Tracks()
	tracks[0] = nil
	if s.Tracks()[0] == nil {
		t.Fatal("Tracks() exposes the internal slice")
	}

	for i := 0; i < 2; i++ {
		if err := s.Stop(); !errors.Is(err, errBusy) {
			t.Fatalf("Stop() = %v, want %v", err, errBusy)
		}
	}
	if a.stops != 1 || b.stops != 1 {
		t.Errorf("stops = %d, %d, want 1, 1", a.stops, b.stops)
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{wrap(ErrSignalingTimeout, "no answer"), "signaling_timeout"},
		{wrap(ErrSignaling, "status %d", 500), "signaling"},
		{wrap(ErrMediaAccess, "no camera"), "media_access"},
		{ErrStartCanceled, "canceled"},
		{errors.New("boom"), "unknown"},
	}
	for _, tt := range tests {
		if got := errorKind(tt.err); got != tt.want {
			t.Errorf("errorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := wrap(ErrSignaling, "could not send offer: %w", cause)
	if !errors.Is(err, ErrSignaling) || !errors.Is(err, cause) {
		t.Fatalf("wrap lost a link of the chain: %v", err)
	}
	if err.Error() != "signaling failed: could not send offer: connection refused" {
		t.Errorf("unexpected message %q", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	c := ConfigOptions{SignalingTimeout: time.Second}.withDefaults()
	if c.SignalingTimeout != time.Second {
		t.Errorf("SignalingTimeout = %s, want 1s", c.SignalingTimeout)
	}
	if c.ICEGatheringTimeout != DefaultICEGatheringTimeout {
		t.Errorf("ICEGatheringTimeout = %s, want %s", c.ICEGatheringTimeout, DefaultICEGatheringTimeout)
	}
	if got := (ConfigOptions{}).withDefaults().SignalingTimeout; got != DefaultSignalingTimeout {
		t.Errorf("default SignalingTimeout = %s, want %s", got, DefaultSignalingTimeout)
	}
}

func TestStateString(t *testing.T) {
	for state, want := range map[State]string{
		StateIdle:        "idle",
		StateNegotiating: "negotiating",
		StateClosed:      "closed",
		State(42):        "unknown",
	} {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
