// Package signaling carries SDP offers and trickled ICE candidates from a publisher
// to a remote media server. Two transports are provided: the HTTP Signaling Endpoint
// and an MQTT bridge with protobuf payloads.
package signaling

import (
	"errors"
	"fmt"

	"github.com/pion/webrtc/v3"
)

// SessionIdentity names one publishing session. Both fields are opaque and passed unmodified.
type SessionIdentity struct {
	StreamID  string `json:"streamId"`
	SessionID string `json:"sessionId"`
}

// Validate reports whether identity can address the Signaling Endpoint.
func (id SessionIdentity) Validate() error {
	if id.StreamID == "" {
		return errors.New("stream id is empty")
	}
	if id.SessionID == "" {
		return errors.New("session id is empty")
	}
	return nil
}

// OfferRequest is the body of an offer submission.
type OfferRequest struct {
	SessionID string                    `json:"sessionId"`
	Offer     webrtc.SessionDescription `json:"offer"`
}

// OfferResponse is the body returned for an accepted offer.
type OfferResponse struct {
	Answer *webrtc.SessionDescription `json:"answer"`
}

// CandidateRequest is the body of a trickled candidate submission.
type CandidateRequest struct {
	SessionID string                  `json:"sessionId"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

// ErrMalformedAnswer is returned when the endpoint replies without a usable answer.
var ErrMalformedAnswer = errors.New("malformed answer")

// StatusError is returned for a non-2xx reply.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("signaling endpoint replied with status %d", e.Code)
	}
	return fmt.Sprintf("signaling endpoint replied with status %d: %s", e.Code, e.Body)
}

// checkAnswer rejects answers that cannot be applied as a remote description.
func checkAnswer(answer *webrtc.SessionDescription) error {
	if answer == nil {
		return fmt.Errorf("%w: answer is missing", ErrMalformedAnswer)
	}
	if answer.Type != webrtc.SDPTypeAnswer {
		return fmt.Errorf("%w: unexpected sdp type %s", ErrMalformedAnswer, answer.Type)
	}
	if answer.SDP == "" {
		return fmt.Errorf("%w: sdp is empty", ErrMalformedAnswer)
	}
	return nil
}
