package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-backend/internal/config"
	"companion-backend/internal/logger"
)

// vendorCall is one request seen by a fake vendor.
type vendorCall struct {
	Method string
	Path   string
	Header http.Header
	Body   map[string]any
}

// fakeVendor records calls and answers with whatever reply returns.
type fakeVendor struct {
	mu    sync.Mutex
	calls []vendorCall
	reply func(w http.ResponseWriter, r *http.Request)
	srv   *httptest.Server
}

func newFakeVendor(t *testing.T, reply func(w http.ResponseWriter, r *http.Request)) *fakeVendor {
	t.Helper()
	f := &fakeVendor{reply: reply}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		call := vendorCall{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone()}
		if len(b) > 0 {
			_ = json.Unmarshal(b, &call.Body)
		}
		f.mu.Lock()
		f.calls = append(f.calls, call)
		f.mu.Unlock()
		f.reply(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeVendor) URL() string { return f.srv.URL }

func (f *fakeVendor) Calls() []vendorCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]vendorCall(nil), f.calls...)
}

func (f *fakeVendor) Last(t *testing.T) vendorCall {
	t.Helper()
	calls := f.Calls()
	require.NotEmpty(t, calls)
	return calls[len(calls)-1]
}

func replyJSON(status int, body string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

type testEnv struct {
	srv    *Server
	http   *httptest.Server
	openai *fakeVendor
	did    *fakeVendor
	heygen *fakeVendor
}

func testConfig() config.Config {
	return config.Config{
		AllowedOrigin:    "*",
		OpenAIAPIKey:     "sk-test",
		Model:            "gpt-4o",
		TTSModel:         "tts-1",
		TTSHDModel:       "tts-1-hd",
		TTSVoice:         "nova",
		DIDAPIKey:        "did-key",
		DIDSourceURL:     "https://example.com/default.png",
		DIDVoice:         "en-US-EmmaNeural",
		HeyGenAPIKey:     "heygen-key",
		HeyGenQuality:    "high",
		SessionSecret:    "test-secret",
		SessionTTL:       time.Hour,
		AvatarSessionTTL: time.Hour,
	}
}

// newTestEnv wires a server to fake vendors. mutate may adjust the config
// before the server is built.
func newTestEnv(t *testing.T, openaiReply, didReply, heygenReply func(http.ResponseWriter, *http.Request), mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	notCalled := func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected vendor call %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusTeapot)
	}
	if openaiReply == nil {
		openaiReply = notCalled
	}
	if didReply == nil {
		didReply = notCalled
	}
	if heygenReply == nil {
		heygenReply = notCalled
	}
	env := &testEnv{
		openai: newFakeVendor(t, openaiReply),
		did:    newFakeVendor(t, didReply),
		heygen: newFakeVendor(t, heygenReply),
	}
	cfg := testConfig()
	cfg.OpenAIBaseURL = env.openai.URL() + "/v1"
	cfg.DIDBaseURL = env.did.URL()
	cfg.HeyGenBaseURL = env.heygen.URL()
	for _, m := range mutate {
		m(&cfg)
	}

	s, err := NewServer(cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	env.srv = s
	env.http = httptest.NewServer(s.Router())
	t.Cleanup(env.http.Close)
	return env
}

// newClient returns an HTTP client with its own cookie jar, i.e. one browser.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (e *testEnv) post(t *testing.T, c *http.Client, path, body string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Post(e.http.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func (e *testEnv) get(t *testing.T, c *http.Client, path string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(e.http.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func errorOf(t *testing.T, body string) string {
	t.Helper()
	var e struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &e), body)
	return e.Error
}

func TestNonPostIsRejected(t *testing.T) {
	env := newTestEnv(t, nil, nil, nil)
	c := newClient(t)

	for _, path := range []string{"/api/chat", "/api/audio", "/api/emotional-audio", "/api/d-id-stream", "/api/heygen"} {
		resp, body := env.get(t, c, path)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, path)
		assert.Equal(t, "Method Not Allowed", errorOf(t, body), path)
	}
}

func TestMalformedJSONIsServerError(t *testing.T) {
	env := newTestEnv(t, nil, nil, nil)
	c := newClient(t)

	for _, path := range []string{"/api/chat", "/api/audio", "/api/emotional-audio", "/api/d-id-stream", "/api/heygen"} {
		resp, body := env.post(t, c, path, `{"text": `)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode, path)
		assert.NotEmpty(t, errorOf(t, body), path)
	}
}

func TestHealthHelloAndPersonas(t *testing.T) {
	env := newTestEnv(t, nil, nil, nil)
	c := newClient(t)

	resp, body := env.get(t, c, "/api/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","avatarSessions":0}`, body)

	resp, body = env.get(t, c, "/api/hello")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var hello map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &hello))
	assert.Contains(t, hello["message"], "Hello")
	_, err := time.Parse(time.RFC3339, hello["timestamp"])
	assert.NoError(t, err)

	resp, body = env.get(t, c, "/api/personas")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"id":"pamela"`)
}

func TestHealthReportsLedger(t *testing.T) {
	env := newTestEnv(t, nil, nil, nil, func(cfg *config.Config) {
		cfg.DatabaseURL = "sqlite::memory:"
	})
	resp, body := env.get(t, newClient(t), "/api/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","avatarSessions":0,"database":"ok","ledgerOpenSessions":0}`, body)
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	env := newTestEnv(t, nil, nil, nil)
	resp, body := env.get(t, newClient(t), "/api/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Not Found", errorOf(t, body))
}
