package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"companion-backend/internal/avatar"
)

// vendorStatus extracts the HTTP status of a vendor error response. ok is
// false for transport and other local failures.
func vendorStatus(err error) (status int, msg string, ok bool) {
	var apiErr *avatar.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 {
		return apiErr.Status, apiErr.Message, true
	}
	var oaErr *openai.APIError
	if errors.As(err, &oaErr) && oaErr.HTTPStatusCode >= 400 {
		return oaErr.HTTPStatusCode, oaErr.Message, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode >= 400 {
		return reqErr.HTTPStatusCode, http.StatusText(reqErr.HTTPStatusCode), true
	}
	return 0, "", false
}

// writeVendorError propagates a vendor status, or falls back to 500 with
// fallback as the message.
func (s *Server) writeVendorError(w http.ResponseWriter, err error, fallback string) {
	if status, msg, ok := vendorStatus(err); ok {
		if msg == "" {
			msg = fallback
		}
		s.writeError(w, status, msg)
		return
	}
	s.writeError(w, http.StatusInternalServerError, fallback)
}

// writeDecodeError answers 400 for well-formed JSON carrying a value of the
// wrong type, and 500 for a body that is not JSON at all.
func (s *Server) writeDecodeError(w http.ResponseWriter, err error) {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid value for %s: expected %s.", field, typeErr.Type))
		return
	}
	s.writeError(w, http.StatusInternalServerError, "Invalid JSON body.")
}
