package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dualtrack/be-acq-requests/internal/apperrors"
	"github.com/dualtrack/be-acq-requests/internal/database"
)

// ApprovalStepRepository manages the approval steps materialized on each
// request at submission. Workflow writes run inside the caller's
// transaction so step changes commit atomically with the request status.
type ApprovalStepRepository struct {
	db *database.DB
}

// NewApprovalStepRepository creates a new ApprovalStepRepository.
func NewApprovalStepRepository(db *database.DB) *ApprovalStepRepository {
	return &ApprovalStepRepository{db: db}
}

const stepColumns = `
	id, request_id, step_number, step_name, approver_role, sla_days, status,
	activated_at, due_date, acted_on_date, action_by, comments,
	created_at, updated_at`

// ReplaceForRequest deletes any existing steps for the request and inserts
// the given set. Used on submission and re-submission after a return.
func (r *ApprovalStepRepository) ReplaceForRequest(ctx context.Context, q database.Querier, requestID int64, steps []*ApprovalStep) error {
	if _, err := q.Exec(ctx, `DELETE FROM approval_steps WHERE request_id = $1`, requestID); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to clear approval steps")
	}

	insert := `
		INSERT INTO approval_steps
		    (request_id, step_number, step_name, approver_role, sla_days, status,
		     activated_at, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	for _, s := range steps {
		s.RequestID = requestID
		err := q.QueryRow(ctx, insert,
			requestID, s.StepNumber, s.StepName, s.ApproverRole, s.SLADays, s.Status,
			s.ActivatedAt, s.DueDate,
		).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to insert approval step")
		}
	}
	return nil
}

// GetByRequestID returns the request's steps in pipeline order.
func (r *ApprovalStepRepository) GetByRequestID(ctx context.Context, q database.Querier, requestID int64) ([]*ApprovalStep, error) {
	query := `SELECT ` + stepColumns + `
		FROM approval_steps
		WHERE request_id = $1
		ORDER BY step_number`

	rows, err := q.Query(ctx, query, requestID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list approval steps")
	}
	defer rows.Close()

	var steps []*ApprovalStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan approval step")
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// GetByID returns one step.
func (r *ApprovalStepRepository) GetByID(ctx context.Context, q database.Querier, id int64) (*ApprovalStep, error) {
	query := `SELECT ` + stepColumns + ` FROM approval_steps WHERE id = $1`

	step, err := scanStep(q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("approval step", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get approval step")
	}
	return step, nil
}

// RecordAction stamps a decision on a step: new status, actor, comments and
// the action timestamp.
func (r *ApprovalStepRepository) RecordAction(ctx context.Context, q database.Querier, stepID int64, status, actionBy string, comments *string, actedOn time.Time) error {
	query := `
		UPDATE approval_steps
		SET status = $2, action_by = $3, comments = $4, acted_on_date = $5,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`

	var id int64
	err := q.QueryRow(ctx, query, stepID, status, actionBy, comments, actedOn).Scan(&id)
	if err == pgx.ErrNoRows {
		return apperrors.NotFound("approval step", stepID)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to record step action")
	}
	return nil
}

// Activate marks a pending step active and stamps its SLA due date.
func (r *ApprovalStepRepository) Activate(ctx context.Context, q database.Querier, stepID int64, activatedAt time.Time, dueDate *time.Time) error {
	query := `
		UPDATE approval_steps
		SET status = $2, activated_at = $3, due_date = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`

	var id int64
	err := q.QueryRow(ctx, query, stepID, StepActive, activatedAt, dueDate).Scan(&id)
	if err == pgx.ErrNoRows {
		return apperrors.NotFound("approval step", stepID)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to activate step")
	}
	return nil
}

func scanStep(row requestScanner) (*ApprovalStep, error) {
	step := &ApprovalStep{}
	err := row.Scan(
		&step.ID,
		&step.RequestID,
		&step.StepNumber,
		&step.StepName,
		&step.ApproverRole,
		&step.SLADays,
		&step.Status,
		&step.ActivatedAt,
		&step.DueDate,
		&step.ActedOnDate,
		&step.ActionBy,
		&step.Comments,
		&step.CreatedAt,
		&step.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return step, nil
}
