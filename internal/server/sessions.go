package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"companion-backend/internal/store"
	"companion-backend/internal/types"
)

// Ledger close reasons.
const (
	closedByClient = "client"
	closedExpired  = "expired"
)

func (s *Server) handleAvatarSessions(w http.ResponseWriter, r *http.Request) {
	cid, err := s.clientID(w, r)
	if err != nil {
		s.reqLog(r).Error("client session failed", logrus.Fields{"error": err.Error()})
		s.writeError(w, http.StatusInternalServerError, "failed to establish session")
		return
	}
	live := s.sessions.ListByClient(cid)
	out := make([]sessionView, 0, len(live))
	for _, sess := range live {
		view := sessionView{AvatarSession: sess}
		if s.ledger != nil {
			rec, err := s.ledger.GetSession(r.Context(), sess.Provider, sess.ID)
			if err != nil {
				s.reqLog(r).Error("ledger read failed", logrus.Fields{"error": err.Error(), "provider": sess.Provider, "id": sess.ID})
			}
			view.Ledger = rec
		}
		out = append(out, view)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// sessionView is a live session plus its ledger row when a ledger is configured.
type sessionView struct {
	store.AvatarSession
	Ledger *store.SessionRecord `json:"ledger,omitempty"`
}

// decodeRelay reads the {type, payload} envelope. ok is false once a response
// has been written.
func (s *Server) decodeRelay(w http.ResponseWriter, r *http.Request) (types.RelayRequest, bool) {
	var req types.RelayRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeDecodeError(w, err)
		return req, false
	}
	return req, true
}

// decodePayload unmarshals a relay payload; a missing payload leaves v zero.
func (s *Server) decodePayload(w http.ResponseWriter, raw json.RawMessage, v any) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return true
	}
	if err := json.Unmarshal(raw, v); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid payload.")
		return false
	}
	return true
}

// writeRegistryError maps registry lookups to 404 and 403.
func (s *Server) writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		s.writeError(w, http.StatusNotFound, "Avatar session not found.")
	case errors.Is(err, store.ErrNotOwner):
		s.writeError(w, http.StatusForbidden, "Avatar session belongs to another client.")
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// The ledger is best effort: failures are logged and never fail a relay call.

func (s *Server) ledgerOpened(ctx context.Context, sess store.AvatarSession) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.RecordOpened(ctx, sess); err != nil {
		s.log.Error("ledger write failed", logrus.Fields{"error": err.Error(), "provider": sess.Provider, "id": sess.ID})
	}
}

func (s *Server) ledgerTalk(ctx context.Context, provider, id string) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.RecordTalk(ctx, provider, id); err != nil {
		s.log.Error("ledger write failed", logrus.Fields{"error": err.Error(), "provider": provider, "id": id})
	}
}

func (s *Server) ledgerClosed(ctx context.Context, provider, id, reason string) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.RecordClosed(ctx, provider, id, reason); err != nil {
		s.log.Error("ledger write failed", logrus.Fields{"error": err.Error(), "provider": provider, "id": id})
	}
}

// StartReaper closes idle avatar sessions every interval until ctx is done.
func (s *Server) StartReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.reapExpired(ctx); n > 0 {
					s.log.Info("reaped idle avatar sessions", logrus.Fields{"count": n})
				}
			}
		}
	}()
}

// reapExpired closes every expired session at its vendor and returns how many
// were dropped. A vendor failure is logged; the session is dropped regardless.
func (s *Server) reapExpired(ctx context.Context) int {
	expired := s.sessions.TakeExpired()
	for _, sess := range expired {
		closer, ok := s.closers[sess.Provider]
		if ok {
			cctx, cancel := context.WithTimeout(ctx, 20*time.Second)
			if err := closer.Close(cctx, sess.ID, sess.VendorSession); err != nil {
				s.log.Warn("failed to close idle avatar session", logrus.Fields{
					"error":    err.Error(),
					"provider": sess.Provider,
					"id":       sess.ID,
				})
			}
			cancel()
		}
		s.ledgerClosed(ctx, sess.Provider, sess.ID, closedExpired)
	}
	return len(expired)
}
