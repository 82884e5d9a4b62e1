package server

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"companion-backend/internal/avatar"
	"companion-backend/internal/persona"
	"companion-backend/internal/store"
	"companion-backend/internal/types"
)

const didFailed = "D-ID API interaction failed"

func (s *Server) handleDIDStream(w http.ResponseWriter, r *http.Request) {
	if !s.did.Configured() {
		s.writeError(w, http.StatusInternalServerError, "D-ID API key is not configured.")
		return
	}
	req, ok := s.decodeRelay(w, r)
	if !ok {
		return
	}
	cid, err := s.clientID(w, r)
	if err != nil {
		s.reqLog(r).Error("client session failed", logrus.Fields{"error": err.Error()})
		s.writeError(w, http.StatusInternalServerError, didFailed)
		return
	}

	switch req.Type {
	case "CREATE_STREAM":
		var p types.DIDCreatePayload
		if !s.decodePayload(w, req.Payload, &p) {
			return
		}
		s.didCreate(w, r, cid, p)
		return
	case "START_STREAM", "ADD_ICE_CANDIDATE", "SUBMIT_TALK", "DELETE_STREAM":
	default:
		s.writeError(w, http.StatusBadRequest, "Invalid request type")
		return
	}

	var p types.DIDStreamPayload
	if !s.decodePayload(w, req.Payload, &p) {
		return
	}
	if p.StreamID == "" {
		s.writeError(w, http.StatusBadRequest, "streamId is required.")
		return
	}
	sess, err := s.sessions.Touch(avatar.ProviderDID, p.StreamID, cid)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	vendorSession := sess.VendorSession
	if vendorSession == "" {
		vendorSession = p.SessionID
	}

	ctx := r.Context()
	var resp *avatar.Response
	switch req.Type {
	case "START_STREAM":
		if len(p.Answer) == 0 {
			s.writeError(w, http.StatusBadRequest, "answer is required.")
			return
		}
		resp, err = s.did.StartStream(ctx, p.StreamID, vendorSession, p.Answer)
	case "ADD_ICE_CANDIDATE":
		resp, err = s.did.AddICECandidate(ctx, p.StreamID, vendorSession, p.Candidate)
	case "SUBMIT_TALK":
		text := persona.StripEmojis(p.Text)
		if text == "" {
			s.writeError(w, http.StatusBadRequest, "Text is required.")
			return
		}
		resp, err = s.did.SubmitTalk(ctx, p.StreamID, vendorSession, text)
		if err == nil && resp.Status < 300 {
			if _, terr := s.sessions.RecordTalk(avatar.ProviderDID, p.StreamID, cid); terr == nil {
				s.ledgerTalk(ctx, avatar.ProviderDID, p.StreamID)
			}
		}
	case "DELETE_STREAM":
		resp, err = s.did.DeleteStream(ctx, p.StreamID, vendorSession)
		// a 404 means D-ID already dropped the stream
		if err == nil && (resp.Status < 300 || resp.Status == http.StatusNotFound) {
			if _, rerr := s.sessions.Remove(avatar.ProviderDID, p.StreamID, cid); rerr == nil {
				s.ledgerClosed(ctx, avatar.ProviderDID, p.StreamID, closedByClient)
			}
		}
	}
	if err != nil {
		s.reqLog(r).Error("d-id relay failed", logrus.Fields{"error": err.Error(), "type": req.Type, "stream_id": p.StreamID})
		s.writeError(w, http.StatusInternalServerError, didFailed)
		return
	}
	s.writeRelayed(w, resp)
}

func (s *Server) didCreate(w http.ResponseWriter, r *http.Request, cid string, p types.DIDCreatePayload) {
	source := strings.TrimSpace(p.AvatarImageURL)
	if source == "" && p.PersonaID != "" {
		if known, ok := s.catalog.Lookup(p.PersonaID); ok {
			source = known.SourceURL
		}
	}
	if source == "" {
		source = s.cfg.DIDSourceURL
	}

	resp, created, err := s.did.CreateStream(r.Context(), source)
	if err != nil {
		s.reqLog(r).Error("d-id relay failed", logrus.Fields{"error": err.Error(), "type": "CREATE_STREAM"})
		s.writeError(w, http.StatusInternalServerError, didFailed)
		return
	}
	if resp.Status < 300 && created.StreamID != "" {
		sess := s.sessions.Register(store.AvatarSession{
			Provider:      avatar.ProviderDID,
			ID:            created.StreamID,
			VendorSession: created.SessionID,
			ClientID:      cid,
			PersonaID:     p.PersonaID,
		})
		s.ledgerOpened(r.Context(), sess)
		s.reqLog(r).Info("d-id stream created", logrus.Fields{"stream_id": created.StreamID, "persona": p.PersonaID})
	}
	s.writeRelayed(w, resp)
}

// writeRelayed passes a vendor answer through with its own status.
func (s *Server) writeRelayed(w http.ResponseWriter, resp *avatar.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}
