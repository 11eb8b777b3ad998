package signalserver

import "time"

type ConfigOptions struct {
	ServerConfigOptions
	WebRTCConfigOptions
	AuthConfigOptions
	RateLimitConfigOptions
}

type ServerConfigOptions struct {
	Host string
	Port int
}

type WebRTCConfigOptions struct {
	ICEServer  string
	Username   string
	Credential string

	// GatheringTimeout bounds the wait for the answer's candidates. The answer is sent with
	// whatever was gathered when it expires.
	GatheringTimeout time.Duration
}

// AuthConfigOptions enables bearer token checks when Secret or PublicKeyFile is set.
type AuthConfigOptions struct {
	Secret        string
	PublicKeyFile string
}

// RateLimitConfigOptions limits trickled candidates per session. Zero disables the limit.
type RateLimitConfigOptions struct {
	CandidatesPerSecond float64
	Burst               int
}

// MQTTConfigOptions are the topics of the MQTT front end. They mirror the publisher's
// signaling.MQTTConfigOptions.
type MQTTConfigOptions struct {
	OfferTopic           string
	AnswerTopicPrefix    string
	CandidateTopicPrefix string
	Qos                  uint
	Retained             bool
}
