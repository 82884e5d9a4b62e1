package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"companion-backend/internal/avatar"
	"companion-backend/internal/store"
	"companion-backend/internal/types"
)

const heygenFailed = "Heygen API interaction failed."

func (s *Server) handleHeyGen(w http.ResponseWriter, r *http.Request) {
	if !s.heygen.Configured() {
		s.writeError(w, http.StatusInternalServerError, "Heygen API key is not configured.")
		return
	}
	req, ok := s.decodeRelay(w, r)
	if !ok {
		return
	}
	cid, err := s.clientID(w, r)
	if err != nil {
		s.reqLog(r).Error("client session failed", logrus.Fields{"error": err.Error()})
		s.writeError(w, http.StatusInternalServerError, heygenFailed)
		return
	}

	switch req.Type {
	case "CREATE_SESSION":
		var p types.HeyGenCreatePayload
		if !s.decodePayload(w, req.Payload, &p) {
			return
		}
		s.heygenCreate(w, r, cid, p)
		return
	case "START_SESSION", "ADD_ICE_CANDIDATE", "SPEAK", "CLOSE_SESSION":
	default:
		s.writeError(w, http.StatusBadRequest, "Invalid request type")
		return
	}

	var p types.HeyGenSessionPayload
	if !s.decodePayload(w, req.Payload, &p) {
		return
	}
	if p.SessionID == "" {
		s.writeError(w, http.StatusBadRequest, "sessionId is required.")
		return
	}
	if _, err := s.sessions.Touch(avatar.ProviderHeyGen, p.SessionID, cid); err != nil {
		s.writeRegistryError(w, err)
		return
	}

	ctx := r.Context()
	switch req.Type {
	case "START_SESSION":
		if len(p.SDPAnswer) == 0 {
			s.writeError(w, http.StatusBadRequest, "sdpAnswer is required.")
			return
		}
		err = s.heygen.StartSession(ctx, p.SessionID, p.SDPAnswer)
	case "ADD_ICE_CANDIDATE":
		err = s.heygen.AddICECandidate(ctx, p.SessionID, p.Candidate)
	case "SPEAK":
		if strings.TrimSpace(p.Text) == "" {
			s.writeError(w, http.StatusBadRequest, "Text is required.")
			return
		}
		err = s.heygen.Speak(ctx, p.SessionID, p.Text)
		if err == nil {
			if _, terr := s.sessions.RecordTalk(avatar.ProviderHeyGen, p.SessionID, cid); terr == nil {
				s.ledgerTalk(ctx, avatar.ProviderHeyGen, p.SessionID)
			}
		}
	case "CLOSE_SESSION":
		err = s.heygen.Stop(ctx, p.SessionID)
		// a 404 means HeyGen already dropped the session
		var apiErr *avatar.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			s.reqLog(r).Info("heygen session already closed", logrus.Fields{"session_id": p.SessionID})
			err = nil
		}
		if err == nil {
			if _, rerr := s.sessions.Remove(avatar.ProviderHeyGen, p.SessionID, cid); rerr == nil {
				s.ledgerClosed(ctx, avatar.ProviderHeyGen, p.SessionID, closedByClient)
			}
		}
	}
	if err != nil {
		s.reqLog(r).Error("heygen relay failed", logrus.Fields{"error": err.Error(), "type": req.Type, "session_id": p.SessionID})
		s.writeVendorError(w, err, heygenFailed)
		return
	}
	s.writeJSON(w, http.StatusOK, types.SuccessResponse{Success: true})
}

func (s *Server) heygenCreate(w http.ResponseWriter, r *http.Request, cid string, p types.HeyGenCreatePayload) {
	avatarID := strings.TrimSpace(p.AvatarID)
	if avatarID == "" && p.PersonaID != "" {
		if known, ok := s.catalog.Lookup(p.PersonaID); ok {
			avatarID = known.AvatarID
		}
	}

	data, sessionID, err := s.heygen.NewSession(r.Context(), avatarID)
	if err != nil {
		s.reqLog(r).Error("heygen relay failed", logrus.Fields{"error": err.Error(), "type": "CREATE_SESSION"})
		s.writeVendorError(w, err, heygenFailed)
		return
	}
	if sessionID != "" {
		sess := s.sessions.Register(store.AvatarSession{
			Provider:  avatar.ProviderHeyGen,
			ID:        sessionID,
			ClientID:  cid,
			PersonaID: p.PersonaID,
		})
		s.ledgerOpened(r.Context(), sess)
		s.reqLog(r).Info("heygen session created", logrus.Fields{"session_id": sessionID, "avatar_id": avatarID})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
