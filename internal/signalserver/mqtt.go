package signalserver

import (
	"context"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	pb "github.com/atims0208/fieldhouse-beta-sub001/internal/pb/signal"
	"github.com/atims0208/fieldhouse-beta-sub001/internal/signaling"
)

// MQTTFrontend answers offers and accepts candidates relayed through an MQTT broker.
type MQTTFrontend struct {
	server *Server
	client mqtt.Client
	config MQTTConfigOptions
	logger zerolog.Logger
}

// NewMQTTFrontend returns an MQTTFrontend feeding server.
func NewMQTTFrontend(server *Server, client mqtt.Client, config MQTTConfigOptions) *MQTTFrontend {
	return &MQTTFrontend{
		server: server,
		client: client,
		config: config,
		logger: server.logger.With().Str("component", "MQTTFrontend").Logger(),
	}
}

// Signal subscribes to the offer and candidate topics.
func (f *MQTTFrontend) Signal(ctx context.Context) error {
	// The offer topic is shared by every publisher; the payload meta determines the answer topic.
	if err := waitToken(ctx, f.client.Subscribe(f.config.OfferTopic, byte(f.config.Qos), f.handleOffer(ctx))); err != nil {
		return fmt.Errorf("could not subscribe to %s: %w", f.config.OfferTopic, err)
	}
	f.logger.Info().Msgf("subscribed to %s", f.config.OfferTopic)

	candidateTopic := f.config.CandidateTopicPrefix + "/+/+"
	if err := waitToken(ctx, f.client.Subscribe(candidateTopic, byte(f.config.Qos), f.handleCandidate(ctx))); err != nil {
		return fmt.Errorf("could not subscribe to %s: %w", candidateTopic, err)
	}
	f.logger.Info().Msgf("subscribed to %s", candidateTopic)
	return nil
}

func (f *MQTTFrontend) handleOffer(ctx context.Context) mqtt.MessageHandler {
	return func(c mqtt.Client, m mqtt.Message) {
		offer, meta, err := pb.DecodeSDP(m.Payload())
		if err != nil {
			f.logger.Err(err).Msg("could not decode sdp")
			return
		}
		if meta == nil {
			f.logger.Warn().Msg("dropped an offer without meta")
			return
		}
		id := signaling.SessionIdentity{StreamID: meta.GetStreamId(), SessionID: meta.GetSessionId()}
		if err := id.Validate(); err != nil {
			f.logger.Warn().Err(err).Msg("dropped an offer with invalid meta")
			return
		}
		logger := f.logger.With().Str("stream_id", id.StreamID).Str("session_id", id.SessionID).Logger()
		logger.Info().Msg("received offer from publisher")

		// Answering waits for ICE gathering, which must not block the paho router.
		go func() {
			answer, err := f.server.Offer(ctx, id, *offer)
			if err != nil {
				logger.Err(err).Msg("failed to answer offer")
				return
			}

			payload, err := pb.EncodeSDP(answer, meta)
			if err != nil {
				logger.Err(err).Msg("could not encode sdp")
				return
			}
			answerTopic := f.config.AnswerTopicPrefix + "/" + id.StreamID + "/" + id.SessionID
			if err := waitToken(ctx, c.Publish(answerTopic, byte(f.config.Qos), f.config.Retained, payload)); err != nil {
				logger.Err(err).Msgf("could not publish to %s", answerTopic)
				return
			}
			logger.Info().Str("answer_topic", answerTopic).Msg("sent answer to publisher")
		}()
	}
}

func (f *MQTTFrontend) handleCandidate(ctx context.Context) mqtt.MessageHandler {
	return func(_ mqtt.Client, m mqtt.Message) {
		candidate, meta, err := pb.DecodeCandidate(m.Payload())
		if err != nil {
			f.logger.Err(err).Msg("could not decode candidate")
			return
		}
		id, ok := identityFromTopic(f.config.CandidateTopicPrefix, m.Topic())
		if !ok && meta != nil {
			id = signaling.SessionIdentity{StreamID: meta.GetStreamId(), SessionID: meta.GetSessionId()}
		}
		if err := f.server.Candidate(ctx, id, candidate); err != nil {
			f.logger.Warn().Err(err).Str("topic", m.Topic()).Msg("rejected candidate")
			return
		}
		f.logger.Debug().Str("session_id", id.SessionID).Msg("added an ICE candidate")
	}
}

// identityFromTopic parses prefix/{streamId}/{sessionId}.
func identityFromTopic(prefix, topic string) (signaling.SessionIdentity, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return signaling.SessionIdentity{}, false
	}
	streamID, sessionID, ok := strings.Cut(rest, "/")
	if !ok || streamID == "" || sessionID == "" || strings.Contains(sessionID, "/") {
		return signaling.SessionIdentity{}, false
	}
	return signaling.SessionIdentity{StreamID: streamID, SessionID: sessionID}, true
}

func waitToken(ctx context.Context, t mqtt.Token) error {
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
