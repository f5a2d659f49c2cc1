package repository

import (
	"context"

	"github.com/dualtrack/be-acq-requests/internal/apperrors"
	"github.com/dualtrack/be-acq-requests/internal/database"
)

// ActivityLogRepository appends and reads the per-request audit trail.
// Entries are immutable.
type ActivityLogRepository struct {
	db *database.DB
}

// NewActivityLogRepository creates a new ActivityLogRepository.
func NewActivityLogRepository(db *database.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

// Append writes one audit entry.
func (r *ActivityLogRepository) Append(ctx context.Context, q database.Querier, entry *ActivityLog) error {
	query := `
		INSERT INTO activity_log
		    (request_id, activity_type, description, actor, old_value, new_value)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := q.QueryRow(ctx, query,
		entry.RequestID,
		entry.ActivityType,
		entry.Description,
		entry.Actor,
		entry.OldValue,
		entry.NewValue,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to append activity log")
	}
	return nil
}

// GetByRequestID returns the audit trail, newest first.
func (r *ActivityLogRepository) GetByRequestID(ctx context.Context, requestID int64) ([]*ActivityLog, error) {
	query := `
		SELECT id, request_id, activity_type, description, actor,
		       old_value, new_value, created_at
		FROM activity_log
		WHERE request_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Query(ctx, query, requestID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list activity log")
	}
	defer rows.Close()

	var entries []*ActivityLog
	for rows.Next() {
		entry := &ActivityLog{}
		err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.ActivityType,
			&entry.Description,
			&entry.Actor,
			&entry.OldValue,
			&entry.NewValue,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan activity log entry")
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
