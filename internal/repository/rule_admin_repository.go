package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/dualtrack/be-acq-requests/internal/apperrors"
	"github.com/dualtrack/be-acq-requests/internal/database"
	"github.com/dualtrack/be-acq-requests/internal/rules"
)

// RuleAdminRepository is the write side of the rule tables: thresholds,
// document rules and the advisory pipeline matrix. Reads for evaluation go
// through RuleSetRepository; this repository serves the admin surface.
type RuleAdminRepository struct {
	db *database.DB
}

// NewRuleAdminRepository creates a new RuleAdminRepository.
func NewRuleAdminRepository(db *database.DB) *RuleAdminRepository {
	return &RuleAdminRepository{db: db}
}

// ── thresholds ────────────────────────────────────────────────────────────────

// CreateThreshold inserts an effective-dated threshold row. Existing rows
// are never mutated; FAR updates are staged as new rows.
func (r *RuleAdminRepository) CreateThreshold(ctx context.Context, t *rules.ThresholdConfig) error {
	if t.Name == "" {
		return apperrors.InvalidInput("name", "is required")
	}
	if t.DollarLimit <= 0 {
		return apperrors.InvalidInput("dollar_limit", "must be positive")
	}

	query := `
		INSERT INTO threshold_configs
		    (name, dollar_limit, effective_date, end_date, far_reference, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		t.Name, t.DollarLimit, t.EffectiveDate, t.EndDate, t.FARReference, t.Description,
	).Scan(&t.ID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create threshold")
	}
	return nil
}

// EndThreshold closes a threshold row by stamping its end date.
func (r *RuleAdminRepository) EndThreshold(ctx context.Context, id int64, endDate string) error {
	query := `
		UPDATE threshold_configs
		SET end_date = $2::date
		WHERE id = $1
		RETURNING id
	`

	var returnedID int64
	err := r.db.QueryRow(ctx, query, id, endDate).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return apperrors.NotFound("threshold", id)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to end threshold")
	}
	return nil
}

// ── document templates ────────────────────────────────────────────────────────

// CreateDocumentTemplate inserts a package document type.
func (r *RuleAdminRepository) CreateDocumentTemplate(ctx context.Context, t *rules.DocumentTemplate) error {
	if t.DocTypeKey == "" {
		return apperrors.InvalidInput("doc_type_key", "is required")
	}
	if t.Name == "" {
		return apperrors.InvalidInput("name", "is required")
	}

	query := `
		INSERT INTO document_templates (doc_type_key, name, required_before_gate, sort_order)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query, t.DocTypeKey, t.Name, t.RequiredBeforeGate, t.SortOrder).Scan(&t.ID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create document template")
	}
	return nil
}

// UpdateDocumentTemplate rewrites a document type's metadata.
func (r *RuleAdminRepository) UpdateDocumentTemplate(ctx context.Context, t *rules.DocumentTemplate) error {
	query := `
		UPDATE document_templates
		SET doc_type_key = $2, name = $3, required_before_gate = $4, sort_order = $5
		WHERE id = $1
		RETURNING id
	`

	var id int64
	err := r.db.QueryRow(ctx, query, t.ID, t.DocTypeKey, t.Name, t.RequiredBeforeGate, t.SortOrder).Scan(&id)
	if err == pgx.ErrNoRows {
		return apperrors.NotFound("document template", t.ID)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to update document template")
	}
	return nil
}

// ── document rules ────────────────────────────────────────────────────────────

// CreateDocumentRule inserts a document applicability rule. The condition is
// validated here so a malformed rule never reaches evaluation.
func (r *RuleAdminRepository) CreateDocumentRule(ctx context.Context, dr *rules.DocumentRule) error {
	switch dr.Applicability {
	case rules.ApplicabilityRequired, rules.ApplicabilityOptional, rules.ApplicabilityNotRequired:
	default:
		return apperrors.InvalidInput("applicability", "must be required, optional or not_required")
	}
	if err := dr.Condition.Validate(); err != nil {
		return apperrors.Wrap(err, apperrors.CodeValidation, "invalid document rule condition")
	}

	var condJSON []byte
	if dr.Condition != nil {
		var err error
		condJSON, err = json.Marshal(dr.Condition)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to encode condition")
		}
	}

	query := `
		INSERT INTO document_rules (document_template_id, condition, applicability, priority)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query, dr.DocumentTemplateID, condJSON, dr.Applicability, dr.Priority).Scan(&dr.ID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create document rule")
	}
	return nil
}

// DeleteDocumentRule removes a rule. Already-materialized checklists keep
// their entries until the next recalculation.
func (r *RuleAdminRepository) DeleteDocumentRule(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM document_rules WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to delete document rule")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("document rule", id)
	}
	return nil
}

// ── advisory pipeline matrix ──────────────────────────────────────────────────

// UpsertPipelineConfig writes one cell of the pipeline x team matrix.
func (r *RuleAdminRepository) UpsertPipelineConfig(ctx context.Context, c *rules.AdvisoryPipelineConfig) error {
	if c.PipelineType == "" {
		return apperrors.InvalidInput("pipeline_type", "is required")
	}
	if c.Team == "" {
		return apperrors.InvalidInput("team", "is required")
	}

	query := `
		INSERT INTO advisory_pipeline_configs
		    (pipeline_type, team, is_enabled, sla_days, blocks_gate, threshold_min)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (pipeline_type, team) DO UPDATE
		SET is_enabled    = EXCLUDED.is_enabled,
		    sla_days      = EXCLUDED.sla_days,
		    blocks_gate   = EXCLUDED.blocks_gate,
		    threshold_min = EXCLUDED.threshold_min
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		c.PipelineType, c.Team, c.IsEnabled, c.SLADays, c.BlocksGate, c.ThresholdMin,
	).Scan(&c.ID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to upsert pipeline config")
	}
	return nil
}

// ── advisory trigger rules ────────────────────────────────────────────────────

// CreateTriggerRule inserts an advisory trigger rule with an optional
// structured condition.
func (r *RuleAdminRepository) CreateTriggerRule(ctx context.Context, t *rules.AdvisoryTriggerRule) error {
	if t.Team == "" {
		return apperrors.InvalidInput("team", "is required")
	}
	if err := t.Condition.Validate(); err != nil {
		return apperrors.Wrap(err, apperrors.CodeValidation, "invalid trigger rule condition")
	}

	var condJSON []byte
	if t.Condition != nil {
		var err error
		condJSON, err = json.Marshal(t.Condition)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to encode condition")
		}
	}

	query := `
		INSERT INTO advisory_trigger_rules
		    (trigger_id, team, trigger_text, condition, feeds_into_gate, blocks_gate, sla_days)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		t.TriggerID, t.Team, t.TriggerText, condJSON, t.FeedsIntoGate, t.BlocksGate, t.SLADays,
	).Scan(&t.ID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create trigger rule")
	}
	return nil
}

// DeleteTriggerRule removes a trigger rule.
func (r *RuleAdminRepository) DeleteTriggerRule(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM advisory_trigger_rules WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to delete trigger rule")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("trigger rule", id)
	}
	return nil
}
