// Package hook reports the broadcast lifecycle to MQTT subscribers and local commands.
package hook

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/atims0208/fieldhouse-beta-sub001/internal/broadcast"
	"github.com/atims0208/fieldhouse-beta-sub001/internal/signaling"
)

const defaultCommandTimeout = 30 * time.Second

type ConfigOptions struct {
	HookCommandLine
	MQTTClientConfigOptions
}

type MQTTClientConfigOptions struct {
	HookTopicPrefix string
	Qos             uint
	Retained        bool
}

// HookCommandLine holds the commands run on each event. Empty commands are skipped.
type HookCommandLine struct {
	OnStart        string
	OnEnd          string
	OnError        string
	CommandTimeout time.Duration
}

// EventType names a lifecycle event.
type EventType string

const (
	EventStart EventType = "start"
	EventEnd   EventType = "end"
	EventError EventType = "error"
)

// Event is the JSON payload published to {HookTopicPrefix}/{streamId}.
type Event struct {
	Type      EventType `json:"type"`
	StreamID  string    `json:"streamId"`
	SessionID string    `json:"sessionId"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

// Hooks turns lifecycle callbacks into MQTT events and command runs.
// Events are delivered one at a time in the order they were fired.
type Hooks struct {
	client mqtt.Client
	config ConfigOptions
	logger zerolog.Logger

	mu         sync.Mutex
	queue      []delivery
	delivering bool
	wg         sync.WaitGroup
}

type delivery struct {
	event   Event
	command string
}

// New returns Hooks. A nil client disables MQTT events.
func New(client mqtt.Client, config ConfigOptions, logger *zerolog.Logger) *Hooks {
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = defaultCommandTimeout
	}
	return &Hooks{
		client: client,
		config: config,
		logger: logger.With().Str("component", "Hooks").Logger(),
	}
}

// Callbacks returns the controller callbacks of session id.
// They return immediately; delivery happens in the background.
func (h *Hooks) Callbacks(id signaling.SessionIdentity) broadcast.Callbacks {
	return broadcast.Callbacks{
		OnStreamStart: func() {
			h.fire(Event{Type: EventStart, StreamID: id.StreamID, SessionID: id.SessionID}, h.config.OnStart)
		},
		OnStreamEnd: func() {
			h.fire(Event{Type: EventEnd, StreamID: id.StreamID, SessionID: id.SessionID}, h.config.OnEnd)
		},
		OnStreamError: func(reason error) {
			h.fire(Event{Type: EventError, StreamID: id.StreamID, SessionID: id.SessionID, Error: reason.Error()}, h.config.OnError)
		},
	}
}

// Wait blocks until every fired event is delivered.
func (h *Hooks) Wait() {
	h.wg.Wait()
}

func (h *Hooks) fire(e Event, command string) {
	e.Time = time.Now()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.wg.Add(1)
	h.queue = append(h.queue, delivery{event: e, command: command})
	if !h.delivering {
		h.delivering = true
		go h.deliver()
	}
}

// deliver drains the queue and exits once it is empty.
func (h *Hooks) deliver() {
	for {
		h.mu.Lock()
		if len(h.queue) == 0 {
			h.delivering = false
			h.mu.Unlock()
			return
		}
		d := h.queue[0]
		h.queue = h.queue[1:]
		h.mu.Unlock()

		if err := h.publish(d.event); err != nil {
			h.logger.Err(err).Str("event", string(d.event.Type)).Msg("could not publish hook event")
		}
		if err := h.run(d.event, d.command); err != nil {
			h.logger.Err(err).Str("event", string(d.event.Type)).Str("command", d.command).Msg("hook command failed")
		}
		h.wg.Done()
	}
}

func (h *Hooks) publish(e Event) error {
	if h.client == nil || h.config.HookTopicPrefix == "" {
		return nil
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("could not encode event: %w", err)
	}
	topic := h.config.HookTopicPrefix + "/" + e.StreamID
	t := h.client.Publish(topic, byte(h.config.Qos), h.config.Retained, payload)
	if !t.WaitTimeout(h.config.CommandTimeout) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	if err := t.Error(); err != nil {
		return fmt.Errorf("could not publish to %s: %w", topic, err)
	}
	h.logger.Debug().Str("topic", topic).Str("event", string(e.Type)).Msg("published hook event")
	return nil
}

// run executes command with the event exposed through FIELDHOUSE_* variables.
func (h *Hooks) run(e Event, command string) error {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.config.CommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec
	cmd.Env = append(os.Environ(),
		"FIELDHOUSE_EVENT="+string(e.Type),
		"FIELDHOUSE_STREAM_ID="+e.StreamID,
		"FIELDHOUSE_SESSION_ID="+e.SessionID,
		"FIELDHOUSE_ERROR="+e.Error,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	h.logger.Info().Str("command", args[0]).Str("event", string(e.Type)).Msg("ran hook command")
	return nil
}
