package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dualtrack/be-acq-requests/internal/apperrors"
	"github.com/dualtrack/be-acq-requests/internal/database"
)

// RequestRepository handles CRUD for acquisition_requests.
type RequestRepository struct {
	db *database.DB
}

// NewRequestRepository creates a new RequestRepository.
func NewRequestRepository(db *database.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `
	id, request_number, title, description,
	requestor_id, requestor_name, requestor_org,
	estimated_value, fiscal_year, priority, need_by_date,
	intake_need_type, intake_situation, intake_specific_vendor,
	intake_existing_vehicle, intake_change_type,
	intake_buy_category, intake_mixed_predominant,
	derived_acquisition_type, derived_tier, derived_pipeline,
	derived_contract_character, derived_requirements_doc_type,
	derived_scls_applicable, derived_qasp_required, derived_eval_approach,
	approval_template_key, advisory_trigger_codes,
	intake_completed, intake_completed_date,
	status,
	scrm_status, sbo_status, cio_status, section508_status, fm_status,
	created_at, updated_at`

// NextRequestNumber computes the next ACQ-YYYY-NNNN number for a year:
// max existing sequence for that year plus one, starting at 1.
func (r *RequestRepository) NextRequestNumber(ctx context.Context, q database.Querier, year int) (string, error) {
	prefix := fmt.Sprintf("ACQ-%04d-", year)
	query := `
		SELECT COALESCE(MAX(NULLIF(SPLIT_PART(request_number, '-', 3), '')::INT), 0)
		FROM acquisition_requests
		WHERE request_number LIKE $1 || '%'
	`

	var maxSeq int
	if err := q.QueryRow(ctx, query, prefix).Scan(&maxSeq); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to compute next request number")
	}
	return FormatRequestNumber(year, maxSeq+1), nil
}

// FormatRequestNumber renders ACQ-YYYY-NNNN with a 4-digit zero-padded
// sequence.
func FormatRequestNumber(year, seq int) string {
	return fmt.Sprintf("ACQ-%04d-%04d", year, seq)
}

// Create inserts a new request in draft status, generating its request
// number in the same transaction so concurrent creates cannot collide.
func (r *RequestRepository) Create(ctx context.Context, req *AcquisitionRequest) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		number, err := r.NextRequestNumber(ctx, tx, time.Now().UTC().Year())
		if err != nil {
			return err
		}
		req.RequestNumber = number
		req.Status = StatusDraft

		query := `
			INSERT INTO acquisition_requests
			    (request_number, title, description,
			     requestor_id, requestor_name, requestor_org,
			     estimated_value, fiscal_year, priority, need_by_date,
			     intake_need_type, intake_situation, intake_specific_vendor,
			     intake_existing_vehicle, intake_change_type,
			     intake_buy_category, intake_mixed_predominant,
			     status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			        $11, $12, $13, $14, $15, $16, $17, $18)
			RETURNING id, created_at, updated_at
		`

		err = tx.QueryRow(ctx, query,
			req.RequestNumber,
			req.Title,
			req.Description,
			req.RequestorID,
			req.RequestorName,
			req.RequestorOrg,
			req.EstimatedValue,
			req.FiscalYear,
			req.Priority,
			req.NeedByDate,
			req.IntakeNeedType,
			req.IntakeSituation,
			req.IntakeSpecificVendor,
			req.IntakeExistingVehicle,
			req.IntakeChangeType,
			req.IntakeBuyCategory,
			req.IntakeMixedPredominant,
			req.Status,
		).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create request")
		}
		return nil
	})
}

// GetByID retrieves a request by primary key.
func (r *RequestRepository) GetByID(ctx context.Context, id int64) (*AcquisitionRequest, error) {
	return r.get(ctx, r.db, id, "")
}

// GetForUpdate retrieves a request inside the caller's transaction with a
// row lock, serializing workflow transitions per request.
func (r *RequestRepository) GetForUpdate(ctx context.Context, q database.Querier, id int64) (*AcquisitionRequest, error) {
	return r.get(ctx, q, id, " FOR UPDATE")
}

func (r *RequestRepository) get(ctx context.Context, q database.Querier, id int64, suffix string) (*AcquisitionRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM acquisition_requests WHERE id = $1` + suffix

	req, err := scanRequest(q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("request", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get request")
	}
	return req, nil
}

// RequestFilter narrows List results.
type RequestFilter struct {
	Status     string
	Type       string
	Tier       string
	Pipeline   string
	FiscalYear string
	Search     string
	Page       int
	PerPage    int
}

// List returns requests matching the filter, newest first, with the total
// unpaginated count.
func (r *RequestRepository) List(ctx context.Context, f RequestFilter) ([]*AcquisitionRequest, int, error) {
	where := " WHERE TRUE"
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Status != "" {
		where += " AND status = " + arg(f.Status)
	}
	if f.Type != "" {
		where += " AND derived_acquisition_type = " + arg(f.Type)
	}
	if f.Tier != "" {
		where += " AND derived_tier = " + arg(f.Tier)
	}
	if f.Pipeline != "" {
		where += " AND derived_pipeline = " + arg(f.Pipeline)
	}
	if f.FiscalYear != "" {
		where += " AND fiscal_year = " + arg(f.FiscalYear)
	}
	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		where += fmt.Sprintf(" AND (title ILIKE %s OR request_number ILIKE %s OR description ILIKE %s)", p, p, p)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM acquisition_requests" + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.CodeInternal, "failed to count requests")
	}

	if f.PerPage <= 0 || f.PerPage > 100 {
		f.PerPage = 50
	}
	if f.Page < 1 {
		f.Page = 1
	}
	query := "SELECT " + requestColumns + " FROM acquisition_requests" + where +
		" ORDER BY created_at DESC" +
		" LIMIT " + arg(f.PerPage) + " OFFSET " + arg((f.Page-1)*f.PerPage)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list requests")
	}
	defer rows.Close()

	var requests []*AcquisitionRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan request")
		}
		requests = append(requests, req)
	}
	return requests, total, nil
}

// UpdateIntake persists descriptive fields and raw intake answers.
func (r *RequestRepository) UpdateIntake(ctx context.Context, q database.Querier, req *AcquisitionRequest) error {
	query := `
		UPDATE acquisition_requests
		SET title                    = $2,
		    description              = $3,
		    estimated_value          = $4,
		    fiscal_year              = $5,
		    priority                 = $6,
		    need_by_date             = $7,
		    intake_need_type         = $8,
		    intake_situation         = $9,
		    intake_specific_vendor   = $10,
		    intake_existing_vehicle  = $11,
		    intake_change_type       = $12,
		    intake_buy_category      = $13,
		    intake_mixed_predominant = $14,
		    updated_at               = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := q.QueryRow(ctx, query,
		req.ID,
		req.Title,
		req.Description,
		req.EstimatedValue,
		req.FiscalYear,
		req.Priority,
		req.NeedByDate,
		req.IntakeNeedType,
		req.IntakeSituation,
		req.IntakeSpecificVendor,
		req.IntakeExistingVehicle,
		req.IntakeChangeType,
		req.IntakeBuyCategory,
		req.IntakeMixedPredominant,
	).Scan(&req.UpdatedAt)
	if err == pgx.ErrNoRows {
		return apperrors.NotFound("request", req.ID)
	}
	return err
}

// ApplyClassification writes the derived fields and intake completion
// flags. Only the classifier output ever flows through here.
func (r *RequestRepository) ApplyClassification(ctx context.Context, q database.Querier, req *AcquisitionRequest) error {
	query := `
		UPDATE acquisition_requests
		SET derived_acquisition_type      = $2,
		    derived_tier                  = $3,
		    derived_pipeline              = $4,
		    derived_contract_character    = $5,
		    derived_requirements_doc_type = $6,
		    derived_scls_applicable       = $7,
		    derived_qasp_required         = $8,
		    derived_eval_approach         = $9,
		    approval_template_key         = $10,
		    advisory_trigger_codes        = $11,
		    intake_completed              = $12,
		    intake_completed_date         = $13,
		    updated_at                    = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := q.QueryRow(ctx, query,
		req.ID,
		req.DerivedAcquisitionType,
		req.DerivedTier,
		req.DerivedPipeline,
		req.DerivedContractCharacter,
		req.DerivedRequirementsDocType,
		req.DerivedSCLSApplicable,
		req.DerivedQASPRequired,
		req.DerivedEvalApproach,
		req.ApprovalTemplateKey,
		req.AdvisoryTriggerCodes,
		req.IntakeCompleted,
		req.IntakeCompletedDate,
	).Scan(&req.UpdatedAt)
	if err == pgx.ErrNoRows {
		return apperrors.NotFound("request", req.ID)
	}
	return err
}

// UpdateStatus sets the workflow status. Only the approval state machine
// calls this.
func (r *RequestRepository) UpdateStatus(ctx context.Context, q database.Querier, id int64, status string) error {
	query := `
		UPDATE acquisition_requests
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID int64
	err := q.QueryRow(ctx, query, id, status).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return apperrors.NotFound("request", id)
	}
	return err
}

// advisoryStatusColumns maps teams to their denormalized status column.
var advisoryStatusColumns = map[string]string{
	"scrm":       "scrm_status",
	"sbo":        "sbo_status",
	"cio":        "cio_status",
	"section508": "section508_status",
	"fm":         "fm_status",
}

// SetAdvisoryStatus updates the denormalized per-team status column, when
// the team has one. Teams without a column (fedramp) are a no-op.
func (r *RequestRepository) SetAdvisoryStatus(ctx context.Context, q database.Querier, id int64, team, status string) error {
	column, ok := advisoryStatusColumns[team]
	if !ok {
		return nil
	}
	query := fmt.Sprintf(`
		UPDATE acquisition_requests
		SET %s = $2, updated_at = NOW()
		WHERE id = $1
	`, column)

	_, err := q.Exec(ctx, query, id, status)
	return err
}

// DeleteDraft removes a request that never left draft.
func (r *RequestRepository) DeleteDraft(ctx context.Context, id int64) error {
	query := `
		DELETE FROM acquisition_requests
		WHERE id = $1 AND status = $2
	`

	tag, err := r.db.Exec(ctx, query, id, StatusDraft)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to delete request")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.InvalidTransition("only draft requests can be deleted")
	}
	return nil
}

// ── scan helper ───────────────────────────────────────────────────────────────

type requestScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row requestScanner) (*AcquisitionRequest, error) {
	req := &AcquisitionRequest{}
	err := row.Scan(
		&req.ID,
		&req.RequestNumber,
		&req.Title,
		&req.Description,
		&req.RequestorID,
		&req.RequestorName,
		&req.RequestorOrg,
		&req.EstimatedValue,
		&req.FiscalYear,
		&req.Priority,
		&req.NeedByDate,
		&req.IntakeNeedType,
		&req.IntakeSituation,
		&req.IntakeSpecificVendor,
		&req.IntakeExistingVehicle,
		&req.IntakeChangeType,
		&req.IntakeBuyCategory,
		&req.IntakeMixedPredominant,
		&req.DerivedAcquisitionType,
		&req.DerivedTier,
		&req.DerivedPipeline,
		&req.DerivedContractCharacter,
		&req.DerivedRequirementsDocType,
		&req.DerivedSCLSApplicable,
		&req.DerivedQASPRequired,
		&req.DerivedEvalApproach,
		&req.ApprovalTemplateKey,
		&req.AdvisoryTriggerCodes,
		&req.IntakeCompleted,
		&req.IntakeCompletedDate,
		&req.Status,
		&req.SCRMStatus,
		&req.SBOStatus,
		&req.CIOStatus,
		&req.Section508Status,
		&req.FMStatus,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return req, nil
}
