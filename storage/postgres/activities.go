package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trialbase/trialbase/svc/activity"
)

// ActivityStore implements activity.Store on PostgreSQL.
type ActivityStore struct {
	pool *pgxpool.Pool
}

// NewActivityStore creates a PostgreSQL-backed activity store.
func NewActivityStore(pool *pgxpool.Pool) *ActivityStore {
	return &ActivityStore{pool: pool}
}

func (s *ActivityStore) Insert(ctx context.Context, entry activity.Entry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal activity metadata: %w", err)
	}

	var userID *uuid.UUID
	if entry.UserID != uuid.Nil {
		userID = &entry.UserID
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO activities (id, user_id, account_id, type, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, userID, entry.AccountID, entry.Type, entry.Description, metadata, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

func (s *ActivityStore) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]activity.Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, account_id, type, description, metadata, created_at
		FROM activities
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var out []activity.Entry
	for rows.Next() {
		var (
			entry    activity.Entry
			userID   *uuid.UUID
			metadata []byte
		)
		if err := rows.Scan(&entry.ID, &userID, &entry.AccountID, &entry.Type,
			&entry.Description, &metadata, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if userID != nil {
			entry.UserID = *userID
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal activity metadata: %w", err)
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
