package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog"
)

const maxErrorBody = 512

// HTTPConfigOptions configures the HTTP Signaling Endpoint client.
type HTTPConfigOptions struct {
	// BaseURL is the endpoint root, e.g. https://fieldhouse.example/api.
	BaseURL string
	// Token is sent as a bearer token when set.
	Token string
}

// HTTPClient talks to the Signaling Endpoint over HTTP.
type HTTPClient struct {
	config HTTPConfigOptions
	client *http.Client
	logger zerolog.Logger
}

// NewHTTPClient returns an HTTPClient. A nil client falls back to http.DefaultClient.
func NewHTTPClient(config HTTPConfigOptions, client *http.Client, logger *zerolog.Logger) *HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &HTTPClient{
		config: config,
		client: client,
		logger: logger.With().Str("component", "HTTPSignaler").Logger(),
	}
}

// SendOffer posts the local offer and returns the remote answer.
func (c *HTTPClient) SendOffer(ctx context.Context, id SessionIdentity, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	body, err := c.post(ctx, id.StreamID, "offer", OfferRequest{SessionID: id.SessionID, Offer: offer})
	if err != nil {
		return nil, err
	}

	var resp OfferResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAnswer, err)
	}
	if err := checkAnswer(resp.Answer); err != nil {
		return nil, err
	}
	c.logger.Debug().Str("stream_id", id.StreamID).Str("session_id", id.SessionID).Msg("received answer")
	return resp.Answer, nil
}

// SendCandidate posts one trickled local candidate.
func (c *HTTPClient) SendCandidate(ctx context.Context, id SessionIdentity, candidate webrtc.ICECandidateInit) error {
	_, err := c.post(ctx, id.StreamID, "candidate", CandidateRequest{SessionID: id.SessionID, Candidate: candidate})
	return err
}

func (c *HTTPClient) post(ctx context.Context, streamID, kind string, v interface{}) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("could not encode %s request: %w", kind, err)
	}

	endpoint := c.config.BaseURL + "/streams/" + url.PathEscape(streamID) + "/webrtc/" + kind
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("could not create %s request: %w", kind, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not post %s: %w", kind, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read %s response: %w", kind, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
