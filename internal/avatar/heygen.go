package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
)

// HeyGenClient talks to the HeyGen v1 streaming API. Unlike D-ID, vendor
// errors come back as *APIError so callers can shape their own response.
type HeyGenClient struct {
	vendorClient
	quality string
}

func NewHeyGenClient(baseURL, apiKey, quality string) *HeyGenClient {
	return &HeyGenClient{
		vendorClient: newVendorClient(ProviderHeyGen, baseURL, "x-api-key", apiKey),
		quality:      quality,
	}
}

// NewSession creates a streaming session and returns the vendor's "data"
// object, which carries session_id, the SDP offer and ICE servers.
func (c *HeyGenClient) NewSession(ctx context.Context, avatarID string) (json.RawMessage, string, error) {
	body := map[string]any{"quality": c.quality}
	if avatarID != "" {
		body["avatar_id"] = avatarID
	}
	raw, err := c.post(ctx, "/v1/streaming.new", body)
	if err != nil {
		return nil, "", err
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	data := raw
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Data) > 0 && !bytes.Equal(envelope.Data, []byte("null")) {
		data = envelope.Data
	}
	var ids struct {
		SessionID string `json:"session_id"`
	}
	_ = json.Unmarshal(data, &ids)
	return data, ids.SessionID, nil
}

// StartSession submits the browser's SDP answer.
func (c *HeyGenClient) StartSession(ctx context.Context, sessionID string, sdpAnswer json.RawMessage) error {
	_, err := c.post(ctx, "/v1/streaming.start", map[string]any{
		"session_id": sessionID,
		"sdp":        sdpAnswer,
	})
	return err
}

// AddICECandidate forwards one browser ICE candidate.
func (c *HeyGenClient) AddICECandidate(ctx context.Context, sessionID string, candidate json.RawMessage) error {
	_, err := c.post(ctx, "/v1/streaming.ice", map[string]any{
		"session_id": sessionID,
		"candidate":  candidate,
	})
	return err
}

// Speak makes the avatar repeat text verbatim.
func (c *HeyGenClient) Speak(ctx context.Context, sessionID, text string) error {
	_, err := c.post(ctx, "/v1/streaming.task", map[string]any{
		"session_id": sessionID,
		"text":       text,
		"task_type":  "repeat",
	})
	return err
}

// Stop closes the session at HeyGen.
func (c *HeyGenClient) Stop(ctx context.Context, sessionID string) error {
	_, err := c.post(ctx, "/v1/streaming.stop", map[string]any{"session_id": sessionID})
	return err
}

// Close satisfies the registry's closer for idle session reaping.
func (c *HeyGenClient) Close(ctx context.Context, _ string, sessionID string) error {
	return c.Stop(ctx, sessionID)
}

// post returns the decoded body, or {"success":true} when the vendor sends none.
func (c *HeyGenClient) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	status, b, h, err := c.call(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &APIError{Vendor: ProviderHeyGen, Status: status, Message: errorMessage(status, h, b)}
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return json.RawMessage(`{"success":true}`), nil
	}
	if !json.Valid(b) {
		return nil, &APIError{Vendor: ProviderHeyGen, Status: http.StatusBadGateway, Message: "invalid JSON from HeyGen"}
	}
	return b, nil
}
