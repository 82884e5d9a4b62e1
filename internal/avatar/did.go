package avatar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Response is a vendor answer relayed to the browser as-is.
type Response struct {
	Status int
	Body   json.RawMessage
}

// DIDClient talks to the D-ID talks/streams API. Every call returns the
// vendor's status and JSON body unchanged; only transport failures are errors.
type DIDClient struct {
	vendorClient
	voice string
}

func NewDIDClient(baseURL, apiKey, voice string) *DIDClient {
	return &DIDClient{
		vendorClient: newVendorClient(ProviderDID, baseURL, "Authorization", "Basic "+apiKey),
		voice:        voice,
	}
}

// Configured reports whether an API key was provided.
func (c *DIDClient) Configured() bool {
	return strings.TrimSpace(strings.TrimPrefix(c.authValue, "Basic ")) != ""
}

// CreatedStream holds the identifiers D-ID assigns to a new stream.
type CreatedStream struct {
	StreamID  string `json:"id"`
	SessionID string `json:"session_id"`
}

// CreateStream opens a stream for the given source image.
func (c *DIDClient) CreateStream(ctx context.Context, sourceURL string) (*Response, *CreatedStream, error) {
	resp, err := c.relay(ctx, http.MethodPost, "/talks/streams", map[string]any{"source_url": sourceURL})
	if err != nil {
		return nil, nil, err
	}
	var created CreatedStream
	if resp.Status >= 200 && resp.Status < 300 {
		_ = json.Unmarshal(resp.Body, &created)
	}
	return resp, &created, nil
}

// StartStream submits the browser's SDP answer.
func (c *DIDClient) StartStream(ctx context.Context, streamID, sessionID string, answer json.RawMessage) (*Response, error) {
	return c.relay(ctx, http.MethodPost, streamPath(streamID, "sdp"), map[string]any{
		"answer":     answer,
		"session_id": sessionID,
	})
}

// AddICECandidate forwards one browser ICE candidate.
func (c *DIDClient) AddICECandidate(ctx context.Context, streamID, sessionID string, candidate json.RawMessage) (*Response, error) {
	return c.relay(ctx, http.MethodPost, streamPath(streamID, "ice"), map[string]any{
		"candidate":  candidate,
		"session_id": sessionID,
	})
}

// SubmitTalk makes the avatar speak text that is already free of emojis.
func (c *DIDClient) SubmitTalk(ctx context.Context, streamID, sessionID, text string) (*Response, error) {
	return c.relay(ctx, http.MethodPost, streamPath(streamID, ""), map[string]any{
		"script": map[string]any{
			"type":  "text",
			"input": text,
			"voice": c.voice,
		},
		"config":     map[string]any{"stitch": true},
		"session_id": sessionID,
	})
}

// DeleteStream closes the stream at D-ID.
func (c *DIDClient) DeleteStream(ctx context.Context, streamID, sessionID string) (*Response, error) {
	return c.relay(ctx, http.MethodDelete, streamPath(streamID, ""), map[string]any{"session_id": sessionID})
}

// Close satisfies the registry's closer for idle stream reaping.
func (c *DIDClient) Close(ctx context.Context, streamID, sessionID string) error {
	resp, err := c.DeleteStream(ctx, streamID, sessionID)
	if err != nil {
		return err
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return &APIError{Vendor: ProviderDID, Status: resp.Status, Message: string(resp.Body)}
	}
	return nil
}

func (c *DIDClient) relay(ctx context.Context, method, path string, body any) (*Response, error) {
	status, b, h, err := c.call(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		b = []byte(`{}`)
	} else if !isJSON(h, b) || !json.Valid(b) {
		wrapped, _ := json.Marshal(map[string]string{"error": errorMessage(status, h, b)})
		b = wrapped
	}
	return &Response{Status: status, Body: b}, nil
}

func streamPath(streamID, suffix string) string {
	p := "/talks/streams/" + url.PathEscape(streamID)
	if suffix != "" {
		p = fmt.Sprintf("%s/%s", p, suffix)
	}
	return p
}
