package server

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"companion-backend/internal/persona"
	"companion-backend/internal/types"
)

const audioFailed = "An error occurred while generating the audio."

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	var req types.AudioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, http.StatusBadRequest, "Text is required.")
		return
	}
	s.speak(w, r, req.Text, s.cfg.TTSModel, s.cfg.TTSVoice)
}

func (s *Server) handleEmotionalAudio(w http.ResponseWriter, r *http.Request) {
	var req types.AudioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" || req.Preferences == nil {
		s.writeError(w, http.StatusBadRequest, "Text and preferences are required.")
		return
	}
	if err := req.Preferences.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.speak(w, r, req.Text, s.cfg.TTSHDModel, s.voiceFor(req.PersonaID, *req.Preferences))
}

// voiceFor prefers the persona's catalog voice and falls back to the sliders.
func (s *Server) voiceFor(personaID string, prefs persona.Preferences) string {
	if personaID != "" {
		if known, ok := s.catalog.Lookup(personaID); ok && known.Voice != "" {
			return known.Voice
		}
	}
	return persona.VoiceFor(prefs)
}

// speak synthesizes text and writes the whole MP3 body.
func (s *Server) speak(w http.ResponseWriter, r *http.Request, text, model, voice string) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		s.reqLog(r).Error("speech request failed", logrus.Fields{"error": err.Error(), "model": model, "voice": voice})
		s.writeVendorError(w, err, audioFailed)
		return
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		s.reqLog(r).Error("speech read failed", logrus.Fields{"error": err.Error()})
		s.writeError(w, http.StatusInternalServerError, audioFailed)
		return
	}
	s.reqLog(r).Debug("speech generated", logrus.Fields{
		"model": model,
		"voice": voice,
		"size":  humanize.Bytes(uint64(len(audio))),
	})

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}
