package hook

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atims0208/fieldhouse-beta-sub001/internal/signaling"
)

type doneToken struct {
	mqtt.Token
	err error
}

func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

type publisher struct {
	mqtt.Client

	// slow delays the first publish.
	slow  time.Duration
	calls atomic.Int32

	mu        sync.Mutex
	published map[string][][]byte
	err       error
}

func (p *publisher) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	if p.calls.Add(1) == 1 {
		time.Sleep(p.slow)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.published == nil {
		p.published = make(map[string][][]byte)
	}
	p.published[topic] = append(p.published[topic], payload.([]byte))
	return doneToken{err: p.err}
}

var testIdentity = signaling.SessionIdentity{StreamID: "s1", SessionID: "sess1"}

func TestCallbacksPublishEvents(t *testing.T) {
	p := &publisher{}
	logger := zerolog.Nop()
	h := New(p, ConfigOptions{MQTTClientConfigOptions: MQTTClientConfigOptions{HookTopicPrefix: "hooks"}}, &logger)

	callbacks := h.Callbacks(testIdentity)
	callbacks.OnStreamStart()
	h.Wait()
	callbacks.OnStreamError(errors.New("connection lost"))
	h.Wait()
	callbacks.OnStreamEnd()
	h.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	payloads := p.published["hooks/s1"]
	require.Len(t, payloads, 3)

	var types []EventType
	for _, payload := range payloads {
		var e Event
		require.NoError(t, json.Unmarshal(payload, &e))
		assert.Equal(t, "s1", e.StreamID)
		assert.Equal(t, "sess1", e.SessionID)
		assert.False(t, e.Time.IsZero())
		if e.Type == EventError {
			assert.Equal(t, "connection lost", e.Error)
		}
		types = append(types, e.Type)
	}
	assert.Equal(t, []EventType{EventStart, EventError, EventEnd}, types)
}

func TestCallbacksKeepOrder(t *testing.T) {
	p := &publisher{slow: 100 * time.Millisecond}
	logger := zerolog.Nop()
	h := New(p, ConfigOptions{MQTTClientConfigOptions: MQTTClientConfigOptions{HookTopicPrefix: "hooks"}}, &logger)

	callbacks := h.Callbacks(testIdentity)
	callbacks.OnStreamStart()
	callbacks.OnStreamError(errors.New("connection lost"))
	callbacks.OnStreamEnd()
	h.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	var types []EventType
	for _, payload := range p.published["hooks/s1"] {
		var e Event
		require.NoError(t, json.Unmarshal(payload, &e))
		types = append(types, e.Type)
	}
	assert.Equal(t, []EventType{EventStart, EventError, EventEnd}, types)
}

func TestCallbacksWithoutClient(t *testing.T) {
	logger := zerolog.Nop()
	h := New(nil, ConfigOptions{MQTTClientConfigOptions: MQTTClientConfigOptions{HookTopicPrefix: "hooks"}}, &logger)

	callbacks := h.Callbacks(testIdentity)
	callbacks.OnStreamStart()
	callbacks.OnStreamEnd()
	h.Wait()
}

func TestPublishFailureIsLogged(t *testing.T) {
	p := &publisher{err: errors.New("not connected")}
	logger := zerolog.Nop()
	h := New(p, ConfigOptions{MQTTClientConfigOptions: MQTTClientConfigOptions{HookTopicPrefix: "hooks"}}, &logger)

	assert.Error(t, h.publish(Event{Type: EventStart, StreamID: "s1"}))
}

func TestCommandReceivesEvent(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	script := filepath.Join(dir, "hook.sh")
	require.NoError(t, os.WriteFile(script, []byte(`echo "$FIELDHOUSE_EVENT $FIELDHOUSE_STREAM_ID $FIELDHOUSE_ERROR" >> `+out+"\n"), 0o600))

	logger := zerolog.Nop()
	h := New(nil, ConfigOptions{HookCommandLine: HookCommandLine{
		OnStart: "sh " + script,
		OnError: "sh " + script,
	}}, &logger)

	callbacks := h.Callbacks(testIdentity)
	callbacks.OnStreamStart()
	h.Wait()
	callbacks.OnStreamError(errors.New("lost"))
	callbacks.OnStreamEnd()
	h.Wait()

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "start s1 \nerror s1 lost\n", string(got))
}

func TestCommandFailure(t *testing.T) {
	logger := zerolog.Nop()
	h := New(nil, ConfigOptions{HookCommandLine: HookCommandLine{CommandTimeout: time.Second}}, &logger)

	assert.NoError(t, h.run(Event{Type: EventStart}, ""))
	assert.Error(t, h.run(Event{Type: EventStart}, "sh -c false"))
	assert.Error(t, h.run(Event{Type: EventStart}, filepath.Join(t.TempDir(), "missing")))
}
