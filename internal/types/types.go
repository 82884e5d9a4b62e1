package types

import (
	"encoding/json"

	"companion-backend/internal/persona"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Avatar is the persona card the UI sends along with a chat turn.
type Avatar struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	AvatarID    string `json:"avatarId,omitempty"`
	Image       string `json:"image,omitempty"`
	Color       string `json:"color,omitempty"`
}

// ChatRequest accepts both the slider shape {messages, avatar, preferences}
// and the older single-mode shape {messages, preference, avatarName}.
type ChatRequest struct {
	Messages    []ChatMessage        `json:"messages"`
	Avatar      *Avatar              `json:"avatar,omitempty"`
	Preferences *persona.Preferences `json:"preferences,omitempty"`
	Preference  string               `json:"preference,omitempty"`
	AvatarName  string               `json:"avatarName,omitempty"`
}

type AudioRequest struct {
	Text        string               `json:"text"`
	Preferences *persona.Preferences `json:"preferences,omitempty"`
	// PersonaID selects a catalog voice on /api/emotional-audio.
	PersonaID string `json:"personaId,omitempty"`
}

// RelayRequest is the {type, payload} envelope of the avatar relays.
type RelayRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// D-ID payloads.

type DIDCreatePayload struct {
	AvatarImageURL string `json:"avatarImageUrl"`
	PersonaID      string `json:"personaId"`
}

type DIDStreamPayload struct {
	StreamID  string          `json:"streamId"`
	SessionID string          `json:"sessionId"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Text      string          `json:"text,omitempty"`
}

// HeyGen payloads.

type HeyGenCreatePayload struct {
	AvatarID  string `json:"avatarId"`
	PersonaID string `json:"personaId"`
}

type HeyGenSessionPayload struct {
	SessionID string          `json:"sessionId"`
	SDPAnswer json.RawMessage `json:"sdpAnswer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Text      string          `json:"text,omitempty"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
