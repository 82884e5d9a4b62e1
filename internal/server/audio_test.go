package server

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var fakeMP3 = []byte{0xFF, 0xFB, 0x90, 0x64, 0x00, 0x01, 0x02}

func replyMP3(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(fakeMP3)
}

func TestAudioRequiresText(t *testing.T) {
	env := newTestEnv(t, nil, nil, nil)
	c := newClient(t)

	for _, body := range []string{`{}`, `{"text": ""}`, `{"text": "   "}`} {
		resp, out := env.post(t, c, "/api/audio", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Text is required.", errorOf(t, out))
	}
}

func TestAudioReturnsMPEG(t *testing.T) {
	env := newTestEnv(t, replyMP3, nil, nil)

	resp, body := env.post(t, newClient(t), "/api/audio", `{"text": "Hello there"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, string(fakeMP3), body)

	call := env.openai.Last(t)
	assert.Equal(t, "/v1/audio/speech", call.Path)
	assert.Equal(t, "tts-1", call.Body["model"])
	assert.Equal(t, "nova", call.Body["voice"])
	assert.Equal(t, "Hello there", call.Body["input"])
}

func TestEmotionalAudioPicksVoice(t *testing.T) {
	env := newTestEnv(t, replyMP3, nil, nil)
	c := newClient(t)

	resp, _ := env.post(t, c, "/api/emotional-audio",
		`{"text": "I'm here", "preferences": {"soft": 90, "emotionalSupportive": 50, "flirt": 10, "dirty": 0}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	call := env.openai.Last(t)
	assert.Equal(t, "tts-1-hd", call.Body["model"])
	assert.Equal(t, "shimmer", call.Body["voice"])

	resp, _ = env.post(t, c, "/api/emotional-audio",
		`{"text": "Hi", "preferences": {"soft": 10, "emotionalSupportive": 10, "flirt": 10, "dirty": 80}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nova", env.openai.Last(t).Body["voice"])
}

func TestEmotionalAudioValidation(t *testing.T) {
	env := newTestEnv(t, nil, nil, nil)
	c := newClient(t)

	resp, body := env.post(t, c, "/api/emotional-audio", `{"text": "hi"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Text and preferences are required.", errorOf(t, body))

	resp, _ = env.post(t, c, "/api/emotional-audio", `{"text": "", "preferences": {"soft": 1}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.post(t, c, "/api/emotional-audio", `{"text": "hi", "preferences": {"dirty": -1}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAudioPropagatesVendorStatus(t *testing.T) {
	env := newTestEnv(t, replyJSON(http.StatusUnauthorized,
		`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`), nil, nil)

	resp, body := env.post(t, newClient(t), "/api/audio", `{"text": "hi"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Incorrect API key provided", errorOf(t, body))
}

func TestAudioVendorHTMLErrorKeepsStatus(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	}, nil, nil)

	resp, _ := env.post(t, newClient(t), "/api/audio", `{"text": "hi"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestEmotionalAudioPrefersPersonaVoice(t *testing.T) {
	env := newTestEnv(t, replyMP3, nil, nil)
	c := newClient(t)
	flirty := `{"soft": 10, "emotionalSupportive": 10, "flirt": 90, "dirty": 20}`

	// angela carries a catalog voice, which wins over the sliders
	resp, _ := env.post(t, c, "/api/emotional-audio", `{"text": "Hi", "personaId": "angela", "preferences": `+flirty+`}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "shimmer", env.openai.Last(t).Body["voice"])

	// pamela has none, so the sliders decide
	resp, _ = env.post(t, c, "/api/emotional-audio", `{"text": "Hi", "personaId": "pamela", "preferences": `+flirty+`}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nova", env.openai.Last(t).Body["voice"])

	resp, _ = env.post(t, c, "/api/emotional-audio", `{"text": "Hi", "personaId": "nobody", "preferences": `+flirty+`}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nova", env.openai.Last(t).Body["voice"])
}

func TestAudioWrongFieldTypeIsBadRequest(t *testing.T) {
	env := newTestEnv(t, nil, nil, nil)
	c := newClient(t)

	resp, body := env.post(t, c, "/api/emotional-audio", `{"text": "hi", "preferences": {"soft": 50.5}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, errorOf(t, body), "preferences.soft")

	resp, _ = env.post(t, c, "/api/audio", `{"text": 42}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
