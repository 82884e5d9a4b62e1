package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"companion-backend/internal/persona"
	"companion-backend/internal/types"
)

const chatFailed = "An error occurred while communicating with the AI."

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	var req types.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	if len(req.Messages) == 0 {
		s.writeError(w, http.StatusBadRequest, "Messages are required.")
		return
	}
	for _, m := range req.Messages {
		if m.Role != openai.ChatMessageRoleUser && m.Role != openai.ChatMessageRoleAssistant {
			s.writeError(w, http.StatusBadRequest, "Message role must be user or assistant.")
			return
		}
	}

	system, status, msg := s.chatSystemPrompt(req)
	if status != 0 {
		s.writeError(w, status, msg)
		return
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	ctx, cancel := context.WithTimeout(r.Context(), 120*time.Second)
	defer cancel()

	stream, err := s.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    s.cfg.Model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		s.reqLog(r).Error("chat stream init failed", logrus.Fields{"error": err.Error()})
		s.writeVendorError(w, err, chatFailed)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	chunks := 0
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.reqLog(r).Error("chat stream recv failed", logrus.Fields{"error": err.Error(), "chunks": chunks})
			break
		}
		if len(response.Choices) == 0 {
			continue
		}
		chunk := response.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		if _, err := io.WriteString(w, chunk); err != nil {
			// client went away
			return
		}
		flusher.Flush()
		chunks++
	}
	s.reqLog(r).Debug("chat stream finished", logrus.Fields{"chunks": chunks})
}

// chatSystemPrompt resolves the persona name and prompt for a chat turn. A
// non-zero status means the request cannot be served.
func (s *Server) chatSystemPrompt(req types.ChatRequest) (string, int, string) {
	var known persona.Persona
	var found bool
	if req.Avatar != nil && req.Avatar.ID != "" {
		known, found = s.catalog.Lookup(req.Avatar.ID)
	}

	name := ""
	switch {
	case req.Avatar != nil && strings.TrimSpace(req.Avatar.Name) != "":
		name = strings.TrimSpace(req.Avatar.Name)
	case strings.TrimSpace(req.AvatarName) != "":
		name = strings.TrimSpace(req.AvatarName)
	case found:
		name = known.Name
	}
	if name == "" {
		return "", http.StatusBadRequest, "Avatar name is required."
	}

	switch {
	case req.Preferences != nil:
		if err := req.Preferences.Validate(); err != nil {
			return "", http.StatusBadRequest, err.Error()
		}
		return persona.SystemPrompt(name, *req.Preferences), 0, ""
	case req.Preference != "":
		prompt, err := persona.ModePrompt(name, req.Preference)
		if err != nil {
			return "", http.StatusBadRequest, err.Error()
		}
		return prompt, 0, ""
	case found && known.Preferences != nil:
		return persona.SystemPrompt(name, *known.Preferences), 0, ""
	}
	return "", http.StatusBadRequest, "Preferences are required."
}
