package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"companion-backend/internal/db"
)

// DatabaseStore is the avatar session ledger.
type DatabaseStore struct {
	db  *db.DB
	now func() time.Time
}

// NewDatabaseStore creates a new database store
func NewDatabaseStore(database *db.DB) *DatabaseStore {
	return &DatabaseStore{db: database, now: time.Now}
}

// SessionRecord is one ledger row.
type SessionRecord struct {
	Provider      string     `json:"provider"`
	SessionID     string     `json:"sessionId"`
	VendorSession string     `json:"-"`
	ClientID      string     `json:"-"`
	PersonaID     string     `json:"personaId,omitempty"`
	Talks         int        `json:"talks"`
	OpenedAt      time.Time  `json:"openedAt"`
	ClosedAt      *time.Time `json:"closedAt,omitempty"`
	CloseReason   string     `json:"closeReason,omitempty"`
}

// RecordOpened inserts a session, or resets it if the vendor reused the id.
func (ds *DatabaseStore) RecordOpened(ctx context.Context, s AvatarSession) error {
	if s.Provider == "" || s.ID == "" || s.ClientID == "" {
		return fmt.Errorf("provider, session_id, and client_id are required")
	}
	opened := s.CreatedAt
	if opened.IsZero() {
		opened = ds.now()
	}

	query := ds.db.Rebind(`
		INSERT INTO avatar_sessions (provider, session_id, vendor_session, client_id, persona_id, talks, opened_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT (provider, session_id)
		DO UPDATE SET
			vendor_session = EXCLUDED.vendor_session,
			client_id = EXCLUDED.client_id,
			persona_id = EXCLUDED.persona_id,
			talks = 0,
			opened_at = EXCLUDED.opened_at,
			closed_at = NULL,
			close_reason = ''
	`)
	if _, err := ds.db.ExecContext(ctx, query, s.Provider, s.ID, s.VendorSession, s.ClientID, s.PersonaID, opened.UTC()); err != nil {
		return fmt.Errorf("failed to record avatar session: %w", err)
	}
	return nil
}

// RecordTalk increments the talk counter.
func (ds *DatabaseStore) RecordTalk(ctx context.Context, provider, sessionID string) error {
	query := ds.db.Rebind(`UPDATE avatar_sessions SET talks = talks + 1 WHERE provider = ? AND session_id = ?`)
	if _, err := ds.db.ExecContext(ctx, query, provider, sessionID); err != nil {
		return fmt.Errorf("failed to record talk: %w", err)
	}
	return nil
}

// RecordClosed stamps the close time and reason ("client", "expired").
func (ds *DatabaseStore) RecordClosed(ctx context.Context, provider, sessionID, reason string) error {
	query := ds.db.Rebind(`
		UPDATE avatar_sessions SET closed_at = ?, close_reason = ?
		WHERE provider = ? AND session_id = ? AND closed_at IS NULL
	`)
	if _, err := ds.db.ExecContext(ctx, query, ds.now().UTC(), reason, provider, sessionID); err != nil {
		return fmt.Errorf("failed to close avatar session: %w", err)
	}
	return nil
}

// GetSession returns nil, nil when the session is unknown.
func (ds *DatabaseStore) GetSession(ctx context.Context, provider, sessionID string) (*SessionRecord, error) {
	if provider == "" || sessionID == "" {
		return nil, fmt.Errorf("provider and session_id are required")
	}

	var rec SessionRecord
	var closed sql.NullTime
	query := ds.db.Rebind(`
		SELECT provider, session_id, vendor_session, client_id, persona_id, talks, opened_at, closed_at, close_reason
		FROM avatar_sessions
		WHERE provider = ? AND session_id = ?
	`)
	err := ds.db.QueryRowContext(ctx, query, provider, sessionID).Scan(
		&rec.Provider,
		&rec.SessionID,
		&rec.VendorSession,
		&rec.ClientID,
		&rec.PersonaID,
		&rec.Talks,
		&rec.OpenedAt,
		&closed,
		&rec.CloseReason,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get avatar session: %w", err)
	}
	if closed.Valid {
		t := closed.Time
		rec.ClosedAt = &t
	}
	return &rec, nil
}

// CountOpen returns how many ledger sessions have not been closed.
func (ds *DatabaseStore) CountOpen(ctx context.Context) (int, error) {
	var n int
	if err := ds.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM avatar_sessions WHERE closed_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count open sessions: %w", err)
	}
	return n, nil
}
