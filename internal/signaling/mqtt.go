package signaling

import (
	"context"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog"

	pb "github.com/atims0208/fieldhouse-beta-sub001/internal/pb/signal"
)

// MQTTConfigOptions configures the MQTT signaling bridge.
type MQTTConfigOptions struct {
	OfferTopic           string
	AnswerTopicPrefix    string
	CandidateTopicPrefix string
	Qos                  uint
	Retained             bool
}

// MQTTClient relays signaling through an MQTT broker.
// Offers go to OfferTopic, answers come back on AnswerTopicPrefix/{streamId}/{sessionId}
// and candidates are published to CandidateTopicPrefix/{streamId}/{sessionId}.
type MQTTClient struct {
	client mqtt.Client
	config MQTTConfigOptions
	logger zerolog.Logger
}

// NewMQTTClient returns an MQTTClient on top of a connected client.
func NewMQTTClient(client mqtt.Client, config MQTTConfigOptions, logger *zerolog.Logger) *MQTTClient {
	return &MQTTClient{
		client: client,
		config: config,
		logger: logger.With().Str("component", "MQTTSignaler").Logger(),
	}
}

// SendOffer publishes the offer and waits for the matching answer.
func (c *MQTTClient) SendOffer(ctx context.Context, id SessionIdentity, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	meta := &pb.Meta{StreamId: id.StreamID, SessionId: id.SessionID}
	payload, err := pb.EncodeSDP(&offer, meta)
	if err != nil {
		return nil, fmt.Errorf("could not encode sdp: %w", err)
	}

	answers := make(chan *webrtc.SessionDescription, 1)
	topic := c.topic(c.config.AnswerTopicPrefix, id)
	t := c.client.Subscribe(topic, byte(c.config.Qos), func(_ mqtt.Client, m mqtt.Message) {
		sdp, meta, err := pb.DecodeSDP(m.Payload())
		if err != nil {
			c.logger.Err(err).Str("topic", topic).Msg("could not decode sdp")
			return
		}
		if meta.GetSessionId() != "" && meta.GetSessionId() != id.SessionID {
			c.logger.Debug().Str("session_id", meta.GetSessionId()).Msg("dropped answer of another session")
			return
		}
		select {
		case answers <- sdp:
		default:
		}
	})
	if err := waitToken(ctx, t); err != nil {
		return nil, fmt.Errorf("could not subscribe to %s: %w", topic, err)
	}
	c.logger.Debug().Str("topic", topic).Msg("subscribed to answer topic")
	defer c.client.Unsubscribe(topic)

	if err := waitToken(ctx, c.client.Publish(c.config.OfferTopic, byte(c.config.Qos), c.config.Retained, payload)); err != nil {
		return nil, fmt.Errorf("could not publish to %s: %w", c.config.OfferTopic, err)
	}
	c.logger.Debug().Str("topic", c.config.OfferTopic).Msg("published offer")

	select {
	case answer := <-answers:
		if err := checkAnswer(answer); err != nil {
			return nil, err
		}
		return answer, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendCandidate publishes one trickled local candidate.
func (c *MQTTClient) SendCandidate(ctx context.Context, id SessionIdentity, candidate webrtc.ICECandidateInit) error {
	payload, err := pb.EncodeCandidate(candidate, &pb.Meta{StreamId: id.StreamID, SessionId: id.SessionID})
	if err != nil {
		return fmt.Errorf("could not encode candidate: %w", err)
	}
	topic := c.topic(c.config.CandidateTopicPrefix, id)
	if err := waitToken(ctx, c.client.Publish(topic, byte(c.config.Qos), false, payload)); err != nil {
		return fmt.Errorf("could not publish to %s: %w", topic, err)
	}
	return nil
}

func (c *MQTTClient) topic(prefix string, id SessionIdentity) string {
	return prefix + "/" + id.StreamID + "/" + id.SessionID
}

func waitToken(ctx context.Context, t mqtt.Token) error {
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
