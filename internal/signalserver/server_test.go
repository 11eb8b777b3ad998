package signalserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/atims0208/fieldhouse-beta-sub001/internal/signaling"
	"github.com/atims0208/fieldhouse-beta-sub001/internal/signalserver/httpx"
)

const testCandidate = "candidate:1 1 udp 2130706431 127.0.0.1 50000 typ host"

var testIdentity = signaling.SessionIdentity{StreamID: "s1", SessionID: "sess1"}

func newTestServer(t *testing.T, config ConfigOptions) (*Server, *httptest.Server) {
	t.Helper()
	logger := zerolog.Nop()
	if config.GatheringTimeout == 0 {
		config.GatheringTimeout = 2 * time.Second
	}
	s, err := New(config, prometheus.NewRegistry(), &logger)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		s.Close()
	})
	return s, srv
}

func newTestClient(srv *httptest.Server, token string) *signaling.HTTPClient {
	logger := zerolog.Nop()
	return signaling.NewHTTPClient(signaling.HTTPConfigOptions{BaseURL: srv.URL, Token: token}, srv.Client(), &logger)
}

// newOffer returns the offer of a publisher peer sending one video track.
func newOffer(t *testing.T) webrtc.SessionDescription {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264}, "video", "test")
	require.NoError(t, err)
	_, err = pc.AddTrack(track)
	require.NoError(t, err)

	offer, err := pc.CreateOffer(nil)
	require.NoError(t, err)
	require.NoError(t, pc.SetLocalDescription(offer))
	return *pc.LocalDescription()
}

func TestOfferAnswered(t *testing.T) {
	s, srv := newTestServer(t, ConfigOptions{})
	client := newTestClient(srv, "")
	offer := newOffer(t)

	answer, err := client.SendOffer(context.Background(), testIdentity, offer)
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeAnswer, answer.Type)
	assert.Contains(t, answer.SDP, "a=recvonly")

	// The same offer is answered again, a different one conflicts.
	again, err := client.SendOffer(context.Background(), testIdentity, offer)
	require.NoError(t, err)
	assert.Equal(t, answer.SDP, again.SDP)

	_, err = client.SendOffer(context.Background(), testIdentity, newOffer(t))
	var statusErr *signaling.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusConflict, statusErr.Code)

	infos := s.sessions.list("s1")
	require.Len(t, infos, 1)
	assert.Equal(t, "sess1", infos[0].SessionID)
}

func TestOfferRejected(t *testing.T) {
	_, srv := newTestServer(t, ConfigOptions{})

	tests := []struct {
		name   string
		body   string
		status int
		code   httpx.Code
	}{
		{"not json", "{", http.StatusBadRequest, httpx.ErrUnmarshalJSON},
		{"no session", `{"offer":{"type":"offer","sdp":"v=0"}}`, http.StatusBadRequest, httpx.ErrInvalidSession},
		{"answer type", `{"sessionId":"a","offer":{"type":"answer","sdp":"v=0"}}`, http.StatusBadRequest, httpx.ErrInvalidOffer},
		{"garbage sdp", `{"sessionId":"b","offer":{"type":"offer","sdp":"garbage"}}`, http.StatusBadRequest, httpx.ErrInvalidOffer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := srv.Client().Post(srv.URL+"/streams/s1/webrtc/offer", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			var body httpx.Error
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, httpx.Errors[tt.code], body.Message)
		})
	}
}

func TestCandidates(t *testing.T) {
	s, srv := newTestServer(t, ConfigOptions{})
	client := newTestClient(srv, "")
	ctx := context.Background()

	err := client.SendCandidate(ctx, testIdentity, webrtc.ICECandidateInit{Candidate: testCandidate})
	var statusErr *signaling.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)

	_, err = client.SendOffer(ctx, testIdentity, newOffer(t))
	require.NoError(t, err)

	// Retried submissions are accepted once.
	for i := 0; i < 3; i++ {
		require.NoError(t, client.SendCandidate(ctx, testIdentity, webrtc.ICECandidateInit{Candidate: testCandidate}))
	}
	infos := s.sessions.list("s1")
	require.Len(t, infos, 1)
	assert.Equal(t, 1, infos[0].Candidates)

	err = client.SendCandidate(ctx, testIdentity, webrtc.ICECandidateInit{Candidate: "candidate:garbage"})
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)
}

func TestCandidateRateLimit(t *testing.T) {
	_, srv := newTestServer(t, ConfigOptions{
		RateLimitConfigOptions: RateLimitConfigOptions{CandidatesPerSecond: 0.001, Burst: 1},
	})
	client := newTestClient(srv, "")
	ctx := context.Background()

	_, err := client.SendOffer(ctx, testIdentity, newOffer(t))
	require.NoError(t, err)
	require.NoError(t, client.SendCandidate(ctx, testIdentity, webrtc.ICECandidateInit{Candidate: testCandidate}))

	err = client.SendCandidate(ctx, testIdentity, webrtc.ICECandidateInit{Candidate: testCandidate})
	var statusErr *signaling.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
}

func TestAuthentication(t *testing.T) {
	secret := []byte("test-secret")
	_, srv := newTestServer(t, ConfigOptions{AuthConfigOptions: AuthConfigOptions{Secret: string(secret)}})
	ctx := context.Background()

	otherStream, err := NewToken(secret, "s2", time.Minute)
	require.NoError(t, err)
	noExpiry, err := NewToken(secret, "s1", -time.Minute)
	require.NoError(t, err)
	wrongKey, err := NewToken([]byte("other-secret"), "s1", time.Minute)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"missing":      "",
		"other stream": otherStream,
		"wrong key":    wrongKey,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := newTestClient(srv, token).SendOffer(ctx, testIdentity, newOffer(t))
			var statusErr *signaling.StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
		})
	}
	// A negative ttl leaves the token without expiry.
	_, err = newTestClient(srv, noExpiry).SendOffer(ctx, signaling.SessionIdentity{StreamID: "s1", SessionID: "sess0"}, newOffer(t))
	require.NoError(t, err)

	token, err := NewToken(secret, "s1", time.Minute)
	require.NoError(t, err)
	_, err = newTestClient(srv, token).SendOffer(ctx, testIdentity, newOffer(t))
	require.NoError(t, err)
}

func TestEvents(t *testing.T) {
	_, srv := newTestServer(t, ConfigOptions{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/streams/s1/events", nil)
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	// The subscription is registered once the handler runs.
	time.Sleep(50 * time.Millisecond)
	_, err = newTestClient(srv, "").SendOffer(ctx, testIdentity, newOffer(t))
	require.NoError(t, err)

	for {
		var e Event
		require.NoError(t, wsjson.Read(ctx, c, &e))
		assert.Equal(t, "s1", e.StreamID)
		if e.Type == EventOffer {
			assert.Equal(t, "sess1", e.SessionID)
			return
		}
	}
}

func TestHubDropsSlowSubscribers(t *testing.T) {
	h := newHub()
	events, unsubscribe := h.subscribe("s1")
	defer unsubscribe()

	for i := 0; i < eventBuffer*2; i++ {
		h.publish(Event{Type: EventCandidate, StreamID: "s1"})
	}
	h.publish(Event{Type: EventCandidate, StreamID: "s2"})
	assert.Len(t, events, eventBuffer)
}

func TestCloseDuringOffer(t *testing.T) {
	s, _ := newTestServer(t, ConfigOptions{})

	sess, created := s.sessions.claim(testIdentity, "v=0")
	require.True(t, created)
	s.Close()
	_, err := s.answerSession(context.Background(), sess, newOffer(t))
	assert.ErrorIs(t, err, errServerClosed)

	for i := 0; i < 5; i++ {
		id := signaling.SessionIdentity{StreamID: "s1", SessionID: fmt.Sprintf("close%d", i)}
		offer := newOffer(t)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Offer(context.Background(), id, offer)
		}()
		s.Close()
		wg.Wait()
		s.Close()
	}
	assert.Empty(t, s.sessions.list("s1"))
	assert.Zero(t, testutil.ToFloat64(s.metrics.sessionsActive))
}
