package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dualtrack/be-acq-requests/internal/apperrors"
	"github.com/dualtrack/be-acq-requests/internal/database"
	"github.com/dualtrack/be-acq-requests/internal/rules"
)

// ApprovalTemplateRepository manages approval templates and their step
// definitions.
type ApprovalTemplateRepository struct {
	db *database.DB
}

// NewApprovalTemplateRepository creates a new ApprovalTemplateRepository.
func NewApprovalTemplateRepository(db *database.DB) *ApprovalTemplateRepository {
	return &ApprovalTemplateRepository{db: db}
}

// List returns all templates with their steps, ordered by id.
func (r *ApprovalTemplateRepository) List(ctx context.Context) ([]rules.ApprovalTemplate, error) {
	query := `
		SELECT id, template_key, name, pipeline_type, is_default
		FROM approval_templates
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list approval templates")
	}
	defer rows.Close()

	var templates []rules.ApprovalTemplate
	for rows.Next() {
		var t rules.ApprovalTemplate
		if err := rows.Scan(&t.ID, &t.TemplateKey, &t.Name, &t.PipelineType, &t.IsDefault); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan approval template")
		}
		templates = append(templates, t)
	}

	for i := range templates {
		steps, err := r.stepsForTemplate(ctx, templates[i].ID)
		if err != nil {
			return nil, err
		}
		templates[i].Steps = steps
	}
	return templates, nil
}

// GetByID returns one template with its steps.
func (r *ApprovalTemplateRepository) GetByID(ctx context.Context, id int64) (*rules.ApprovalTemplate, error) {
	query := `
		SELECT id, template_key, name, pipeline_type, is_default
		FROM approval_templates
		WHERE id = $1
	`

	var t rules.ApprovalTemplate
	err := r.db.QueryRow(ctx, query, id).Scan(&t.ID, &t.TemplateKey, &t.Name, &t.PipelineType, &t.IsDefault)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("approval template", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get approval template")
	}

	steps, err := r.stepsForTemplate(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	t.Steps = steps
	return &t, nil
}

func (r *ApprovalTemplateRepository) stepsForTemplate(ctx context.Context, templateID int64) ([]rules.ApprovalTemplateStep, error) {
	query := `
		SELECT id, template_id, step_number, step_name, approver_role,
		       sla_days, is_enabled, is_conditional, condition
		FROM approval_template_steps
		WHERE template_id = $1
		ORDER BY step_number
	`

	rows, err := r.db.Query(ctx, query, templateID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list template steps")
	}
	defer rows.Close()

	var steps []rules.ApprovalTemplateStep
	for rows.Next() {
		var s rules.ApprovalTemplateStep
		var condJSON []byte
		err := rows.Scan(&s.ID, &s.TemplateID, &s.StepNumber, &s.StepName, &s.ApproverRole,
			&s.SLADays, &s.IsEnabled, &s.IsConditional, &condJSON)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan template step")
		}
		cond, err := rules.ParseCondition(condJSON)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "stored template step condition is invalid")
		}
		s.Condition = cond
		steps = append(steps, s)
	}
	return steps, nil
}

// Create inserts a template shell without steps.
func (r *ApprovalTemplateRepository) Create(ctx context.Context, t *rules.ApprovalTemplate) error {
	query := `
		INSERT INTO approval_templates (template_key, name, pipeline_type, is_default)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query, t.TemplateKey, t.Name, t.PipelineType, t.IsDefault).Scan(&t.ID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create approval template")
	}
	return nil
}

// Update rewrites the template's metadata.
func (r *ApprovalTemplateRepository) Update(ctx context.Context, t *rules.ApprovalTemplate) error {
	query := `
		UPDATE approval_templates
		SET template_key = $2, name = $3, pipeline_type = $4, is_default = $5
		WHERE id = $1
		RETURNING id
	`

	var id int64
	err := r.db.QueryRow(ctx, query, t.ID, t.TemplateKey, t.Name, t.PipelineType, t.IsDefault).Scan(&id)
	if err == pgx.ErrNoRows {
		return apperrors.NotFound("approval template", t.ID)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to update approval template")
	}
	return nil
}

// ReplaceSteps swaps the template's step definitions atomically. Steps are
// renumbered 1..N in the order given, and conditional steps must carry a
// valid condition. Validation failures reject the whole save; existing
// materialized steps on in-flight requests are untouched.
func (r *ApprovalTemplateRepository) ReplaceSteps(ctx context.Context, templateID int64, steps []rules.ApprovalTemplateStep) error {
	for i := range steps {
		s := &steps[i]
		if s.StepName == "" {
			return apperrors.InvalidInput("step_name", "is required")
		}
		if s.IsConditional && s.Condition == nil {
			return apperrors.Newf(apperrors.CodeValidation, "conditional step %q requires a condition", s.StepName)
		}
		if err := s.Condition.Validate(); err != nil {
			return apperrors.Wrap(err, apperrors.CodeValidation, fmt.Sprintf("invalid condition on step %q", s.StepName))
		}
	}

	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, `SELECT id FROM approval_templates WHERE id = $1 FOR UPDATE`, templateID).Scan(&id)
		if err == pgx.ErrNoRows {
			return apperrors.NotFound("approval template", templateID)
		}
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to lock approval template")
		}

		if _, err := tx.Exec(ctx, `DELETE FROM approval_template_steps WHERE template_id = $1`, templateID); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to clear template steps")
		}

		insert := `
			INSERT INTO approval_template_steps
			    (template_id, step_number, step_name, approver_role,
			     sla_days, is_enabled, is_conditional, condition)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`
		for i := range steps {
			s := &steps[i]
			var condJSON []byte
			if s.Condition != nil {
				condJSON, err = json.Marshal(s.Condition)
				if err != nil {
					return apperrors.Wrap(err, apperrors.CodeInternal, "failed to encode step condition")
				}
			}
			s.TemplateID = templateID
			s.StepNumber = i + 1
			err := tx.QueryRow(ctx, insert,
				templateID, s.StepNumber, s.StepName, s.ApproverRole,
				s.SLADays, s.IsEnabled, s.IsConditional, condJSON,
			).Scan(&s.ID)
			if err != nil {
				return apperrors.Wrap(err, apperrors.CodeInternal, "failed to insert template step")
			}
		}
		return nil
	})
}

// Delete removes a template and its step definitions.
func (r *ApprovalTemplateRepository) Delete(ctx context.Context, id int64) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM approval_template_steps WHERE template_id = $1`, id); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to delete template steps")
		}
		tag, err := tx.Exec(ctx, `DELETE FROM approval_templates WHERE id = $1`, id)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to delete approval template")
		}
		if tag.RowsAffected() == 0 {
			return apperrors.NotFound("approval template", id)
		}
		return nil
	})
}
