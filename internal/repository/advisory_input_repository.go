package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/dualtrack/be-acq-requests/internal/apperrors"
	"github.com/dualtrack/be-acq-requests/internal/database"
)

// AdvisoryInputRepository manages per-team advisory reviews on a request.
type AdvisoryInputRepository struct {
	db *database.DB
}

// NewAdvisoryInputRepository creates a new AdvisoryInputRepository.
func NewAdvisoryInputRepository(db *database.DB) *AdvisoryInputRepository {
	return &AdvisoryInputRepository{db: db}
}

const advisoryColumns = `
	id, request_id, team, status, blocks_gate, findings, recommendation,
	reviewer_id, reviewer_name, completed_at, created_at, updated_at`

// EnsureRequested creates the team's advisory row for the request if it does
// not already exist. Re-submission after a return re-fires triggers; an
// existing row keeps its state.
func (r *AdvisoryInputRepository) EnsureRequested(ctx context.Context, q database.Querier, requestID int64, team string, blocksGate *string) (*AdvisoryInput, bool, error) {
	existing, err := r.getByTeam(ctx, q, requestID, team)
	if err != nil && apperrors.CodeOf(err) != apperrors.CodeNotFound {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	query := `
		INSERT INTO advisory_inputs (request_id, team, status, blocks_gate)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + advisoryColumns

	input, err := scanAdvisoryInput(q.QueryRow(ctx, query, requestID, team, AdvisoryRequested, blocksGate))
	if err != nil {
		return nil, false, apperrors.Wrap(err, apperrors.CodeInternal, "failed to create advisory input")
	}
	return input, true, nil
}

// GetByRequestID returns all advisory rows for a request.
func (r *AdvisoryInputRepository) GetByRequestID(ctx context.Context, q database.Querier, requestID int64) ([]*AdvisoryInput, error) {
	query := `SELECT ` + advisoryColumns + `
		FROM advisory_inputs
		WHERE request_id = $1
		ORDER BY team`

	rows, err := q.Query(ctx, query, requestID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list advisory inputs")
	}
	defer rows.Close()

	var inputs []*AdvisoryInput
	for rows.Next() {
		input, err := scanAdvisoryInput(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan advisory input")
		}
		inputs = append(inputs, input)
	}
	return inputs, nil
}

// GetByID returns one advisory row.
func (r *AdvisoryInputRepository) GetByID(ctx context.Context, q database.Querier, id int64) (*AdvisoryInput, error) {
	query := `SELECT ` + advisoryColumns + ` FROM advisory_inputs WHERE id = $1`

	input, err := scanAdvisoryInput(q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("advisory input", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get advisory input")
	}
	return input, nil
}

func (r *AdvisoryInputRepository) getByTeam(ctx context.Context, q database.Querier, requestID int64, team string) (*AdvisoryInput, error) {
	query := `SELECT ` + advisoryColumns + `
		FROM advisory_inputs
		WHERE request_id = $1 AND team = $2`

	input, err := scanAdvisoryInput(q.QueryRow(ctx, query, requestID, team))
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("advisory input", team)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get advisory input")
	}
	return input, nil
}

// UpdateReview applies a reviewer's status change and findings.
func (r *AdvisoryInputRepository) UpdateReview(ctx context.Context, q database.Querier, input *AdvisoryInput) error {
	query := `
		UPDATE advisory_inputs
		SET status = $2, findings = $3, recommendation = $4,
		    reviewer_id = $5, reviewer_name = $6, completed_at = $7,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := q.QueryRow(ctx, query,
		input.ID,
		input.Status,
		input.Findings,
		input.Recommendation,
		input.ReviewerID,
		input.ReviewerName,
		input.CompletedAt,
	).Scan(&input.UpdatedAt)
	if err == pgx.ErrNoRows {
		return apperrors.NotFound("advisory input", input.ID)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to update advisory input")
	}
	return nil
}

// CountBlocking returns how many advisory reviews blocking the given gate
// are still open for the request.
func (r *AdvisoryInputRepository) CountBlocking(ctx context.Context, q database.Querier, requestID int64, gate string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM advisory_inputs
		WHERE request_id = $1
		  AND blocks_gate = $2
		  AND status NOT IN ($3, $4, $5)
	`

	var count int
	err := q.QueryRow(ctx, query, requestID, gate,
		AdvisoryCompleteClean, AdvisoryCompleteFound, AdvisoryWaived).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeInternal, "failed to count blocking advisories")
	}
	return count, nil
}

func scanAdvisoryInput(row requestScanner) (*AdvisoryInput, error) {
	input := &AdvisoryInput{}
	err := row.Scan(
		&input.ID,
		&input.RequestID,
		&input.Team,
		&input.Status,
		&input.BlocksGate,
		&input.Findings,
		&input.Recommendation,
		&input.ReviewerID,
		&input.ReviewerName,
		&input.CompletedAt,
		&input.CreatedAt,
		&input.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return input, nil
}
