// Package signal encodes signaling messages exchanged over MQTT.
//
// Messages are the protobuf types of signal.proto. Their sdp and candidate fields hold
// the JSON forms of webrtc.SessionDescription and webrtc.ICECandidateInit.
package signal

//go:generate protoc --go_out=. --go_opt=paths=source_relative signal.proto

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v3"
	"google.golang.org/protobuf/proto"
)

var errMissingPayload = errors.New("message has no payload")

// EncodeSDP encodes webrtc.SessionDescription with metadata to protobuf payload.
// Meta may be nil.
func EncodeSDP(sdp *webrtc.SessionDescription, meta *Meta) ([]byte, error) {
	b, err := json.Marshal(sdp)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(&SessionDescription{Meta: meta, Sdp: string(b)})
}

// DecodeSDP decodes protobuf payload SessionDescription to webrtc.SessionDescription.
func DecodeSDP(payload []byte) (*webrtc.SessionDescription, *Meta, error) {
	var msg SessionDescription
	if err := proto.Unmarshal(payload, &msg); err != nil {
		return nil, nil, err
	}
	if msg.Sdp == "" {
		return nil, nil, errMissingPayload
	}
	var sdp webrtc.SessionDescription
	if err := json.Unmarshal([]byte(msg.Sdp), &sdp); err != nil {
		return nil, nil, fmt.Errorf("could not unmarshal sdp: %w", err)
	}
	return &sdp, msg.Meta, nil
}

// EncodeCandidate encodes webrtc.ICECandidateInit with metadata to protobuf payload.
func EncodeCandidate(candidate webrtc.ICECandidateInit, meta *Meta) ([]byte, error) {
	b, err := json.Marshal(candidate)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(&ICECandidate{Meta: meta, Candidate: string(b)})
}

// DecodeCandidate decodes protobuf payload ICECandidate to webrtc.ICECandidateInit.
func DecodeCandidate(payload []byte) (webrtc.ICECandidateInit, *Meta, error) {
	var (
		msg       ICECandidate
		candidate webrtc.ICECandidateInit
	)
	if err := proto.Unmarshal(payload, &msg); err != nil {
		return candidate, nil, err
	}
	if msg.Candidate == "" {
		return candidate, nil, errMissingPayload
	}
	if err := json.Unmarshal([]byte(msg.Candidate), &candidate); err != nil {
		return candidate, nil, fmt.Errorf("could not unmarshal candidate: %w", err)
	}
	return candidate, msg.Meta, nil
}
