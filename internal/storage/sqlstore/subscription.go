package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"devhelper/internal/domain"
)

const subscriptionColumns = `id, owner_id, scope_id, channel_id, message_id, frequency,
	sources, tags, last_sent, active, version, created_at, updated_at`

type subscriptionRow struct {
	ID        string       `db:"id"`
	OwnerID   string       `db:"owner_id"`
	ScopeID   string       `db:"scope_id"`
	ChannelID string       `db:"channel_id"`
	MessageID string       `db:"message_id"`
	Frequency string       `db:"frequency"`
	Sources   stringList   `db:"sources"`
	Tags      stringList   `db:"tags"`
	LastSent  sql.NullTime `db:"last_sent"`
	Active    bool         `db:"active"`
	Version   int64        `db:"version"`
	CreatedAt time.Time    `db:"created_at"`
	UpdatedAt time.Time    `db:"updated_at"`
}

func (r subscriptionRow) toDomain() *domain.Subscription {
	sub := &domain.Subscription{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		ScopeID:     r.ScopeID,
		Destination: domain.Destination{ChannelID: r.ChannelID, MessageID: r.MessageID},
		Frequency:   domain.Frequency(r.Frequency),
		Sources:     []string(r.Sources),
		Tags:        []string(r.Tags),
		Active:      r.Active,
		Version:     r.Version,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.LastSent.Valid {
		sent := r.LastSent.Time.UTC()
		sub.LastSent = &sent
	}
	return sub
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

type SubscriptionStore struct {
	db        *sqlx.DB
	txManager *TransactionManager
}

func NewSubscriptionStore(db *sqlx.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db, txManager: NewTransactionManager(db)}
}

func (s *SubscriptionStore) Create(ctx context.Context, sub *domain.Subscription) error {
	query := s.db.Rebind(`
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	sub.Version = 1
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		sub.ID,
		sub.OwnerID,
		sub.ScopeID,
		sub.Destination.ChannelID,
		sub.Destination.MessageID,
		string(sub.Frequency),
		stringList(sub.Sources),
		stringList(sub.Tags),
		nullTime(sub.LastSent),
		sub.Active,
		sub.Version,
		sub.CreatedAt.UTC(),
		sub.UpdatedAt.UTC(),
	)
	if err != nil {
		sub.Version = 0
		return mapError(fmt.Errorf("insert subscription: %w", err))
	}
	return nil
}

func (s *SubscriptionStore) FindActive(ctx context.Context, ownerID, scopeID string) (*domain.Subscription, error) {
	query := s.db.Rebind(`
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE owner_id = ? AND scope_id = ? AND active = ?`)

	var row subscriptionRow
	if err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row, query, ownerID, scopeID, true); err != nil {
		return nil, mapError(fmt.Errorf("select active subscription: %w", err))
	}
	return row.toDomain(), nil
}

func (s *SubscriptionStore) ListActive(ctx context.Context) ([]*domain.Subscription, error) {
	query := s.db.Rebind(`
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE active = ?
		ORDER BY created_at`)

	var rows []subscriptionRow
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows, query, true); err != nil {
		return nil, mapError(fmt.Errorf("select active subscriptions: %w", err))
	}

	subs := make([]*domain.Subscription, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.toDomain())
	}
	return subs, nil
}

func (s *SubscriptionStore) Update(ctx context.Context, sub *domain.Subscription, expectedVersion int64) error {
	query := s.db.Rebind(`
		UPDATE subscriptions SET
			channel_id = ?,
			message_id = ?,
			frequency = ?,
			sources = ?,
			tags = ?,
			last_sent = ?,
			active = ?,
			updated_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?`)

	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		res, err := GetExecutor(txCtx, s.db).ExecContext(txCtx, query,
			sub.Destination.ChannelID,
			sub.Destination.MessageID,
			string(sub.Frequency),
			stringList(sub.Sources),
			stringList(sub.Tags),
			nullTime(sub.LastSent),
			sub.Active,
			sub.UpdatedAt.UTC(),
			sub.ID,
			expectedVersion,
		)
		if err != nil {
			return mapError(fmt.Errorf("update subscription %s: %w", sub.ID, err))
		}
		if err := checkVersioned(txCtx, s.db, res, "subscriptions", sub.ID); err != nil {
			return err
		}
		sub.Version = expectedVersion + 1
		return nil
	})
}
