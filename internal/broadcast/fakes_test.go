package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog"

	"github.com/atims0208/fieldhouse-beta-sub001/internal/signaling"
)

var (
	cam1 = DeviceDescriptor{DeviceID: "cam1", Kind: VideoInput, Label: "Court camera"}
	mic1 = DeviceDescriptor{DeviceID: "mic1", Kind: AudioInput, Label: "Commentary mic"}
)

// fakeDevices hands out sample tracks and counts the ones not yet stopped.
type fakeDevices struct {
	devices      []DeviceDescriptor
	enumerateErr error
	// exclusive fails captures while earlier tracks are still active, like a bound port.
	exclusive bool
	// onStop runs before a track is released.
	onStop func()

	active atomic.Int32
	opened atomic.Int32
}

func newFakeDevices() *fakeDevices {
	return &fakeDevices{devices: []DeviceDescriptor{cam1, mic1}}
}

func (d *fakeDevices) EnumerateDevices(context.Context) ([]DeviceDescriptor, error) {
	if d.enumerateErr != nil {
		return nil, d.enumerateErr
	}
	return d.devices, nil
}

func (d *fakeDevices) GetUserMedia(_ context.Context, constraints Constraints) (*CaptureStream, error) {
	if d.exclusive && d.active.Load() > 0 {
		return nil, errors.New("device busy")
	}
	var tracks []Track
	for _, want := range []struct {
		kind DeviceKind
		id   string
	}{
		{VideoInput, constraints.VideoDeviceID},
		{AudioInput, constraints.AudioDeviceID},
	} {
		device, ok := d.find(want.kind, want.id)
		if !ok {
			if want.id != "" {
				for _, t := range tracks {
					_ = t.Stop()
				}
				return nil, fmt.Errorf("device %q not found", want.id)
			}
			continue
		}

		capability := webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264, ClockRate: 90000}
		if device.Kind == AudioInput {
			capability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
		}
		local, err := webrtc.NewTrackLocalStaticSample(capability, device.DeviceID, "fieldhouse")
		if err != nil {
			return nil, err
		}
		d.active.Add(1)
		d.opened.Add(1)
		tracks = append(tracks, &fakeTrack{TrackLocalStaticSample: local, devices: d})
	}
	if len(tracks) == 0 {
		return nil, errors.New("no devices")
	}
	return NewCaptureStream(tracks...), nil
}

func (d *fakeDevices) find(kind DeviceKind, id string) (DeviceDescriptor, bool) {
	for _, device := range d.devices {
		if device.Kind == kind && (id == "" || device.DeviceID == id) {
			return device, true
		}
	}
	return DeviceDescriptor{}, false
}

type fakeTrack struct {
	*webrtc.TrackLocalStaticSample
	devices *fakeDevices
	once    sync.Once
}

func (t *fakeTrack) Stop() error {
	t.once.Do(func() {
		if t.devices.onStop != nil {
			t.devices.onStop()
		}
		t.devices.active.Add(-1)
	})
	return nil
}

// recordingPeerConnection remembers its state handler so tests can inject state changes.
type recordingPeerConnection struct {
	*webrtc.PeerConnection
	muted bool

	mu      sync.Mutex
	onState func(webrtc.PeerConnectionState)
	closed  bool
}

func (p *recordingPeerConnection) OnConnectionStateChange(f func(webrtc.PeerConnectionState)) {
	p.mu.Lock()
	p.onState = f
	p.mu.Unlock()
	p.PeerConnection.OnConnectionStateChange(f)
}

func (p *recordingPeerConnection) OnICECandidate(f func(*webrtc.ICECandidate)) {
	if p.muted {
		return
	}
	p.PeerConnection.OnICECandidate(f)
}

func (p *recordingPeerConnection) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.PeerConnection.Close()
}

func (p *recordingPeerConnection) fire(state webrtc.PeerConnectionState) {
	p.mu.Lock()
	f := p.onState
	p.mu.Unlock()
	f(state)
}

func (p *recordingPeerConnection) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type peerConnections struct {
	// muted peers never report local candidates.
	muted bool

	mu  sync.Mutex
	all []*recordingPeerConnection
}

func (f *peerConnections) new(config webrtc.Configuration) (PeerConnection, error) {
	pc, err := webrtc.NewPeerConnection(config)
	if err != nil {
		return nil, err
	}
	r := &recordingPeerConnection{PeerConnection: pc, muted: f.muted}
	f.mu.Lock()
	f.all = append(f.all, r)
	f.mu.Unlock()
	return r, nil
}

func (f *peerConnections) open() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, pc := range f.all {
		if !pc.isClosed() {
			n++
		}
	}
	return n
}

func (f *peerConnections) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.all)
}

func (f *peerConnections) last() *recordingPeerConnection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.all[len(f.all)-1]
}

// answerer is an in-process Signaler backed by a receive-only pion peer.
type answerer struct {
	t *testing.T

	// offerHook runs before the answer is produced. A non-nil error fails the offer.
	offerHook func(ctx context.Context) error

	mu         sync.Mutex
	calls      []string
	sessionIDs []string
	peers      []*webrtc.PeerConnection
}

func newAnswerer(t *testing.T) *answerer {
	a := &answerer{t: t}
	t.Cleanup(func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		for _, pc := range a.peers {
			_ = pc.Close()
		}
	})
	return a
}

func (a *answerer) SendOffer(ctx context.Context, id signaling.SessionIdentity, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	a.record("offer", id)
	if a.offerHook != nil {
		if err := a.offerHook(ctx); err != nil {
			return nil, err
		}
	}
	return answerOffer(offer, &a.mu, &a.peers)
}

func (a *answerer) SendCandidate(_ context.Context, id signaling.SessionIdentity, _ webrtc.ICECandidateInit) error {
	a.record("candidate", id)
	return nil
}

func (a *answerer) record(call string, id signaling.SessionIdentity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, call)
	a.sessionIDs = append(a.sessionIDs, id.SessionID)
}

func (a *answerer) snapshot() (calls, sessionIDs []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...), append([]string(nil), a.sessionIDs...)
}

func (a *answerer) offers() int {
	calls, _ := a.snapshot()
	n := 0
	for _, c := range calls {
		if c == "offer" {
			n++
		}
	}
	return n
}

// answerOffer answers offer with a fresh pion peer that is kept in peers for cleanup.
func answerOffer(offer webrtc.SessionDescription, mu *sync.Mutex, peers *[]*webrtc.PeerConnection) (*webrtc.SessionDescription, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, err
	}
	mu.Lock()
	*peers = append(*peers, pc)
	mu.Unlock()

	if err := pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	return pc.LocalDescription(), nil
}

// callbackRecorder counts host callbacks.
type callbackRecorder struct {
	starts atomic.Int32
	ends   atomic.Int32

	mu     sync.Mutex
	errs   []error
	events []string

	// onStart and onEnd run inside the callbacks when set.
	onStart func()
	onEnd   func()
}

func (r *callbackRecorder) callbacks() Callbacks {
	return Callbacks{
		OnStreamStart: func() {
			r.starts.Add(1)
			r.event("start")
			if r.onStart != nil {
				r.onStart()
			}
		},
		OnStreamEnd: func() {
			r.ends.Add(1)
			r.event("end")
			if r.onEnd != nil {
				r.onEnd()
			}
		},
		OnStreamError: func(reason error) {
			r.mu.Lock()
			r.errs = append(r.errs, reason)
			r.mu.Unlock()
			r.event("error")
		},
	}
}

func (r *callbackRecorder) event(name string) {
	r.mu.Lock()
	r.events = append(r.events, name)
	r.mu.Unlock()
}

func (r *callbackRecorder) snapshot() (events []string, errs []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...), append([]error(nil), r.errs...)
}

type harness struct {
	controller *Controller
	devices    *fakeDevices
	peers      *peerConnections
	callbacks  *callbackRecorder
}

func newHarness(t *testing.T, signaler Signaler, config ConfigOptions, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		devices:   newFakeDevices(),
		peers:     &peerConnections{},
		callbacks: &callbackRecorder{},
	}
	logger := zerolog.Nop()
	if config.ICEGatheringTimeout == 0 {
		config.ICEGatheringTimeout = 15 * time.Second
	}
	opts = append([]Option{
		WithCallbacks(h.callbacks.callbacks()),
		WithPeerConnectionFunc(h.peers.new),
	}, opts...)
	h.controller = New(config, h.devices, signaler, &logger, opts...)
	t.Cleanup(func() { _ = h.controller.Close() })
	return h
}
