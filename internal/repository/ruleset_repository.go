package repository

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dualtrack/be-acq-requests/internal/database"
	"github.com/dualtrack/be-acq-requests/internal/rules"
)

// RuleSetRepository loads the rule tables into an in-memory snapshot.
//
// Loading is tolerant: a failure in any one table is logged and that table
// degrades to empty, so a broken rules import never takes intake or
// submission down with it.
type RuleSetRepository struct {
	db *database.DB
}

// NewRuleSetRepository creates a new RuleSetRepository.
func NewRuleSetRepository(db *database.DB) *RuleSetRepository {
	return &RuleSetRepository{db: db}
}

// Load reads every rule table and returns the snapshot.
func (r *RuleSetRepository) Load(ctx context.Context) *rules.RuleSet {
	rs := &rules.RuleSet{}
	rs.IntakePaths = r.loadIntakePaths(ctx)
	rs.Thresholds = r.loadThresholds(ctx)
	rs.DocumentTemplates = r.loadDocumentTemplates(ctx)
	rs.DocumentRules = r.loadDocumentRules(ctx)
	rs.AdvisoryTriggers = r.loadAdvisoryTriggers(ctx)
	rs.PipelineConfigs = r.loadPipelineConfigs(ctx)
	rs.Templates = r.loadTemplates(ctx)
	return rs
}

func (r *RuleSetRepository) loadIntakePaths(ctx context.Context) []rules.IntakePath {
	query := `
		SELECT id, path_id, need_type, situation, change_type, vendor_known,
		       buy_category, mixed_predominant,
		       acquisition_type, pipeline, contract_character,
		       requirements_doc_type, scls_applicable, qasp_required,
		       eval_approach, approval_template_key, advisory_triggers
		FROM intake_paths
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		log.Warn().Err(err).Str("table", "intake_paths").Msg("Failed to load rule table, using empty set")
		return nil
	}
	defer rows.Close()

	var paths []rules.IntakePath
	for rows.Next() {
		var p rules.IntakePath
		err := rows.Scan(
			&p.ID, &p.PathID, &p.NeedType, &p.Situation, &p.ChangeType, &p.VendorKnown,
			&p.BuyCategory, &p.MixedPredominant,
			&p.AcquisitionType, &p.Pipeline, &p.ContractCharacter,
			&p.RequirementsDocType, &p.SCLSApplicable, &p.QASPRequired,
			&p.EvalApproach, &p.ApprovalTemplateKey, &p.AdvisoryTriggers,
		)
		if err != nil {
			log.Warn().Err(err).Str("table", "intake_paths").Msg("Failed to scan rule row, using empty set")
			return nil
		}
		paths = append(paths, p)
	}
	return paths
}

func (r *RuleSetRepository) loadThresholds(ctx context.Context) []rules.ThresholdConfig {
	query := `
		SELECT id, name, dollar_limit, effective_date, end_date,
		       far_reference, description
		FROM threshold_configs
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		log.Warn().Err(err).Str("table", "threshold_configs").Msg("Failed to load rule table, using empty set")
		return nil
	}
	defer rows.Close()

	var thresholds []rules.ThresholdConfig
	for rows.Next() {
		var t rules.ThresholdConfig
		err := rows.Scan(&t.ID, &t.Name, &t.DollarLimit, &t.EffectiveDate, &t.EndDate,
			&t.FARReference, &t.Description)
		if err != nil {
			log.Warn().Err(err).Str("table", "threshold_configs").Msg("Failed to scan rule row, using empty set")
			return nil
		}
		thresholds = append(thresholds, t)
	}
	return thresholds
}

func (r *RuleSetRepository) loadDocumentTemplates(ctx context.Context) []rules.DocumentTemplate {
	query := `
		SELECT id, doc_type_key, name, required_before_gate, sort_order
		FROM document_templates
		ORDER BY sort_order, id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		log.Warn().Err(err).Str("table", "document_templates").Msg("Failed to load rule table, using empty set")
		return nil
	}
	defer rows.Close()

	var templates []rules.DocumentTemplate
	for rows.Next() {
		var t rules.DocumentTemplate
		if err := rows.Scan(&t.ID, &t.DocTypeKey, &t.Name, &t.RequiredBeforeGate, &t.SortOrder); err != nil {
			log.Warn().Err(err).Str("table", "document_templates").Msg("Failed to scan rule row, using empty set")
			return nil
		}
		templates = append(templates, t)
	}
	return templates
}

func (r *RuleSetRepository) loadDocumentRules(ctx context.Context) []rules.DocumentRule {
	query := `
		SELECT id, document_template_id, condition, applicability, priority
		FROM document_rules
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		log.Warn().Err(err).Str("table", "document_rules").Msg("Failed to load rule table, using empty set")
		return nil
	}
	defer rows.Close()

	var docRules []rules.DocumentRule
	for rows.Next() {
		var dr rules.DocumentRule
		var condJSON []byte
		if err := rows.Scan(&dr.ID, &dr.DocumentTemplateID, &condJSON, &dr.Applicability, &dr.Priority); err != nil {
			log.Warn().Err(err).Str("table", "document_rules").Msg("Failed to scan rule row, using empty set")
			return nil
		}
		cond, err := rules.ParseCondition(condJSON)
		if err != nil {
			// A bad condition disables that one rule, not the table.
			log.Warn().Err(err).Int64("document_rule_id", dr.ID).Msg("Skipping document rule with invalid condition")
			continue
		}
		dr.Condition = cond
		docRules = append(docRules, dr)
	}
	return docRules
}

func (r *RuleSetRepository) loadAdvisoryTriggers(ctx context.Context) []rules.AdvisoryTriggerRule {
	query := `
		SELECT id, trigger_id, team, trigger_text, condition,
		       feeds_into_gate, blocks_gate, sla_days
		FROM advisory_trigger_rules
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		log.Warn().Err(err).Str("table", "advisory_trigger_rules").Msg("Failed to load rule table, using empty set")
		return nil
	}
	defer rows.Close()

	var triggers []rules.AdvisoryTriggerRule
	for rows.Next() {
		var t rules.AdvisoryTriggerRule
		var condJSON []byte
		err := rows.Scan(&t.ID, &t.TriggerID, &t.Team, &t.TriggerText, &condJSON,
			&t.FeedsIntoGate, &t.BlocksGate, &t.SLADays)
		if err != nil {
			log.Warn().Err(err).Str("table", "advisory_trigger_rules").Msg("Failed to scan rule row, using empty set")
			return nil
		}
		cond, err := rules.ParseCondition(condJSON)
		if err != nil {
			log.Warn().Err(err).Int64("trigger_rule_id", t.ID).Msg("Skipping trigger rule with invalid condition")
			continue
		}
		t.Condition = cond
		triggers = append(triggers, t)
	}
	return triggers
}

func (r *RuleSetRepository) loadPipelineConfigs(ctx context.Context) []rules.AdvisoryPipelineConfig {
	query := `
		SELECT id, pipeline_type, team, is_enabled, sla_days, blocks_gate, threshold_min
		FROM advisory_pipeline_configs
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		log.Warn().Err(err).Str("table", "advisory_pipeline_configs").Msg("Failed to load rule table, using empty set")
		return nil
	}
	defer rows.Close()

	var configs []rules.AdvisoryPipelineConfig
	for rows.Next() {
		var c rules.AdvisoryPipelineConfig
		err := rows.Scan(&c.ID, &c.PipelineType, &c.Team, &c.IsEnabled, &c.SLADays,
			&c.BlocksGate, &c.ThresholdMin)
		if err != nil {
			log.Warn().Err(err).Str("table", "advisory_pipeline_configs").Msg("Failed to scan rule row, using empty set")
			return nil
		}
		configs = append(configs, c)
	}
	return configs
}

func (r *RuleSetRepository) loadTemplates(ctx context.Context) []rules.ApprovalTemplate {
	query := `
		SELECT id, template_key, name, pipeline_type, is_default
		FROM approval_templates
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		log.Warn().Err(err).Str("table", "approval_templates").Msg("Failed to load rule table, using empty set")
		return nil
	}

	var templates []rules.ApprovalTemplate
	byID := make(map[int64]int)
	for rows.Next() {
		var t rules.ApprovalTemplate
		if err := rows.Scan(&t.ID, &t.TemplateKey, &t.Name, &t.PipelineType, &t.IsDefault); err != nil {
			rows.Close()
			log.Warn().Err(err).Str("table", "approval_templates").Msg("Failed to scan rule row, using empty set")
			return nil
		}
		templates = append(templates, t)
		byID[t.ID] = len(templates) - 1
	}
	rows.Close()

	stepQuery := `
		SELECT id, template_id, step_number, step_name, approver_role,
		       sla_days, is_enabled, is_conditional, condition
		FROM approval_template_steps
		ORDER BY template_id, step_number
	`

	stepRows, err := r.db.Query(ctx, stepQuery)
	if err != nil {
		log.Warn().Err(err).Str("table", "approval_template_steps").Msg("Failed to load rule table, using empty set")
		return templates
	}
	defer stepRows.Close()

	for stepRows.Next() {
		var s rules.ApprovalTemplateStep
		var condJSON []byte
		err := stepRows.Scan(&s.ID, &s.TemplateID, &s.StepNumber, &s.StepName, &s.ApproverRole,
			&s.SLADays, &s.IsEnabled, &s.IsConditional, &condJSON)
		if err != nil {
			log.Warn().Err(err).Str("table", "approval_template_steps").Msg("Failed to scan rule row, using empty set")
			return templates
		}
		cond, err := rules.ParseCondition(condJSON)
		if err != nil {
			log.Warn().Err(err).Int64("template_step_id", s.ID).Msg("Skipping template step with invalid condition")
			continue
		}
		s.Condition = cond
		idx, ok := byID[s.TemplateID]
		if !ok {
			continue
		}
		templates[idx].Steps = append(templates[idx].Steps, s)
	}
	return templates
}
