package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"devhelper/internal/domain"
)

const sessionColumns = `id, owner_id, scope_id, channel_id, message_id, status,
	focus_minutes, break_minutes, start_time, end_time, notified, version,
	created_at, updated_at`

type sessionRow struct {
	ID           string    `db:"id"`
	OwnerID      string    `db:"owner_id"`
	ScopeID      string    `db:"scope_id"`
	ChannelID    string    `db:"channel_id"`
	MessageID    string    `db:"message_id"`
	Status       string    `db:"status"`
	FocusMinutes int       `db:"focus_minutes"`
	BreakMinutes int       `db:"break_minutes"`
	StartTime    time.Time `db:"start_time"`
	EndTime      time.Time `db:"end_time"`
	Notified     bool      `db:"notified"`
	Version      int64     `db:"version"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r sessionRow) toDomain() *domain.Session {
	return &domain.Session{
		ID:           r.ID,
		OwnerID:      r.OwnerID,
		ScopeID:      r.ScopeID,
		Destination:  domain.Destination{ChannelID: r.ChannelID, MessageID: r.MessageID},
		Status:       domain.SessionStatus(r.Status),
		FocusMinutes: r.FocusMinutes,
		BreakMinutes: r.BreakMinutes,
		StartTime:    r.StartTime.UTC(),
		EndTime:      r.EndTime.UTC(),
		Notified:     r.Notified,
		Version:      r.Version,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type SessionStore struct {
	db        *sqlx.DB
	txManager *TransactionManager
}

func NewSessionStore(db *sqlx.DB) *SessionStore {
	return &SessionStore{db: db, txManager: NewTransactionManager(db)}
}

func (s *SessionStore) Create(ctx context.Context, session *domain.Session) error {
	query := s.db.Rebind(`
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	session.Version = 1
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		session.ID,
		session.OwnerID,
		session.ScopeID,
		session.Destination.ChannelID,
		session.Destination.MessageID,
		string(session.Status),
		session.FocusMinutes,
		session.BreakMinutes,
		session.StartTime.UTC(),
		session.EndTime.UTC(),
		session.Notified,
		session.Version,
		session.CreatedAt.UTC(),
		session.UpdatedAt.UTC(),
	)
	if err != nil {
		session.Version = 0
		return mapError(fmt.Errorf("insert session: %w", err))
	}
	return nil
}

func (s *SessionStore) FindActive(ctx context.Context, ownerID, scopeID string) (*domain.Session, error) {
	query := s.db.Rebind(`
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE owner_id = ? AND scope_id = ? AND status IN (?, ?)`)

	var row sessionRow
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row, query,
		ownerID, scopeID, string(domain.SessionFocus), string(domain.SessionBreak),
	)
	if err != nil {
		return nil, mapError(fmt.Errorf("select active session: %w", err))
	}
	return row.toDomain(), nil
}

func (s *SessionStore) ListPending(ctx context.Context) ([]*domain.Session, error) {
	query := s.db.Rebind(`
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE status IN (?, ?) AND notified = ?
		ORDER BY end_time`)

	var rows []sessionRow
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows, query,
		string(domain.SessionFocus), string(domain.SessionBreak), false,
	)
	if err != nil {
		return nil, mapError(fmt.Errorf("select pending sessions: %w", err))
	}

	sessions := make([]*domain.Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, r.toDomain())
	}
	return sessions, nil
}

// Update writes session only if its stored version is still expectedVersion.
func (s *SessionStore) Update(ctx context.Context, session *domain.Session, expectedVersion int64) error {
	query := s.db.Rebind(`
		UPDATE sessions SET
			channel_id = ?,
			message_id = ?,
			status = ?,
			focus_minutes = ?,
			break_minutes = ?,
			start_time = ?,
			end_time = ?,
			notified = ?,
			updated_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?`)

	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		res, err := GetExecutor(txCtx, s.db).ExecContext(txCtx, query,
			session.Destination.ChannelID,
			session.Destination.MessageID,
			string(session.Status),
			session.FocusMinutes,
			session.BreakMinutes,
			session.StartTime.UTC(),
			session.EndTime.UTC(),
			session.Notified,
			session.UpdatedAt.UTC(),
			session.ID,
			expectedVersion,
		)
		if err != nil {
			return mapError(fmt.Errorf("update session %s: %w", session.ID, err))
		}
		if err := checkVersioned(txCtx, s.db, res, "sessions", session.ID); err != nil {
			return err
		}
		session.Version = expectedVersion + 1
		return nil
	})
}
