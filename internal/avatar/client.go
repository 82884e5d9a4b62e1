package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Provider names used in routes, the registry and the ledger.
const (
	ProviderDID    = "d-id"
	ProviderHeyGen = "heygen"
)

// maxVendorBody bounds how much of a vendor response is buffered.
const maxVendorBody = 4 << 20

// APIError is a non-2xx answer from an avatar vendor.
type APIError struct {
	Vendor  string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %s", e.Vendor, e.Status, e.Message)
}

// vendorClient carries what every vendor call needs: where, and which header
// holds the secret.
type vendorClient struct {
	vendor     string
	httpClient *http.Client
	baseURL    string
	authHeader string
	authValue  string
}

func newVendorClient(vendor, baseURL, authHeader, authValue string) vendorClient {
	return vendorClient{
		vendor:     vendor,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		authHeader: authHeader,
		authValue:  authValue,
	}
}

// Configured reports whether an API key was provided.
func (c vendorClient) Configured() bool {
	return strings.TrimSpace(c.authValue) != ""
}

func (c vendorClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", c.vendor, err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set(c.authHeader, c.authValue)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s %s: %w", c.vendor, method, path, err)
	}
	return resp, nil
}

// call performs a request and returns the status with the buffered body.
func (c vendorClient) call(ctx context.Context, method, path string, body any) (int, []byte, http.Header, error) {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxVendorBody))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read %s response: %w", c.vendor, err)
	}
	return resp.StatusCode, b, resp.Header, nil
}

func isJSON(h http.Header, b []byte) bool {
	if strings.Contains(h.Get("Content-Type"), "application/json") {
		return true
	}
	return json.Valid(bytes.TrimSpace(b))
}

// errorMessage extracts a human readable message from a vendor error body.
func errorMessage(status int, h http.Header, b []byte) string {
	if isJSON(h, b) {
		var body struct {
			Message     string `json:"message"`
			Description string `json:"description"`
			Error       any    `json:"error"`
			Kind        string `json:"kind"`
		}
		if err := json.Unmarshal(b, &body); err == nil {
			switch {
			case body.Message != "":
				return body.Message
			case body.Description != "":
				return body.Description
			}
			switch e := body.Error.(type) {
			case string:
				if e != "" {
					return e
				}
			case map[string]any:
				if m, ok := e["message"].(string); ok && m != "" {
					return m
				}
			}
			if body.Kind != "" {
				return body.Kind
			}
		}
		return fmt.Sprintf("API request failed with status %d", status)
	}
	return fmt.Sprintf("Received non-JSON response (e.g., HTML page). Status: %d. Body: %s", status, strings.TrimSpace(string(b)))
}
