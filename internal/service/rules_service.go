package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dualtrack/be-acq-requests/internal/repository"
	"github.com/dualtrack/be-acq-requests/internal/rules"
)

// RulesService is the admin surface over the rule tables: approval
// templates, thresholds, document rules, advisory trigger rules and the
// pipeline matrix. Rule edits affect future evaluations only; materialized
// steps and checklists on in-flight requests are never touched.
type RulesService struct {
	templateRepo *repository.ApprovalTemplateRepository
	adminRepo    *repository.RuleAdminRepository
	ruleSetRepo  *repository.RuleSetRepository
	log          zerolog.Logger
}

// NewRulesService creates a new RulesService.
func NewRulesService(
	templateRepo *repository.ApprovalTemplateRepository,
	adminRepo *repository.RuleAdminRepository,
	ruleSetRepo *repository.RuleSetRepository,
	log zerolog.Logger,
) *RulesService {
	return &RulesService{
		templateRepo: templateRepo,
		adminRepo:    adminRepo,
		ruleSetRepo:  ruleSetRepo,
		log:          log,
	}
}

// Snapshot returns the full rule set as evaluation sees it.
func (s *RulesService) Snapshot(ctx context.Context) *rules.RuleSet {
	return s.ruleSetRepo.Load(ctx)
}

// ListTemplates returns all approval templates with steps.
func (s *RulesService) ListTemplates(ctx context.Context) ([]rules.ApprovalTemplate, error) {
	return s.templateRepo.List(ctx)
}

// GetTemplate returns one approval template with steps.
func (s *RulesService) GetTemplate(ctx context.Context, id int64) (*rules.ApprovalTemplate, error) {
	return s.templateRepo.GetByID(ctx, id)
}

// CreateTemplate inserts a template shell.
func (s *RulesService) CreateTemplate(ctx context.Context, t *rules.ApprovalTemplate) error {
	if err := s.templateRepo.Create(ctx, t); err != nil {
		return err
	}
	s.log.Info().Str("template_key", t.TemplateKey).Msg("Approval template created")
	return nil
}

// UpdateTemplate rewrites template metadata.
func (s *RulesService) UpdateTemplate(ctx context.Context, t *rules.ApprovalTemplate) error {
	return s.templateRepo.Update(ctx, t)
}

// ReplaceTemplateSteps swaps a template's step definitions.
func (s *RulesService) ReplaceTemplateSteps(ctx context.Context, templateID int64, steps []rules.ApprovalTemplateStep) error {
	if err := s.templateRepo.ReplaceSteps(ctx, templateID, steps); err != nil {
		return err
	}
	s.log.Info().Int64("template_id", templateID).Int("steps", len(steps)).Msg("Template steps replaced")
	return nil
}

// DeleteTemplate removes a template.
func (s *RulesService) DeleteTemplate(ctx context.Context, id int64) error {
	return s.templateRepo.Delete(ctx, id)
}

// CreateThreshold stages a new effective-dated threshold row.
func (s *RulesService) CreateThreshold(ctx context.Context, t *rules.ThresholdConfig) error {
	if err := s.adminRepo.CreateThreshold(ctx, t); err != nil {
		return err
	}
	s.log.Info().Str("name", t.Name).Int64("dollar_limit", t.DollarLimit).Msg("Threshold created")
	return nil
}

// EndThreshold closes a threshold row.
func (s *RulesService) EndThreshold(ctx context.Context, id int64, endDate string) error {
	return s.adminRepo.EndThreshold(ctx, id, endDate)
}

// Gate is one entry of the fixed gate catalog approvals and documents
// block on.
type Gate struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Gates returns the gate catalog.
func (s *RulesService) Gates() []Gate {
	return []Gate{
		{Key: "iss", Label: "ISS Review"},
		{Key: "asr", Label: "ASR Review"},
		{Key: "finance", Label: "Finance Review"},
		{Key: "ko_review", Label: "KO Review"},
	}
}

// CreateDocumentTemplate inserts a package document type.
func (s *RulesService) CreateDocumentTemplate(ctx context.Context, t *rules.DocumentTemplate) error {
	return s.adminRepo.CreateDocumentTemplate(ctx, t)
}

// UpdateDocumentTemplate rewrites a document type's metadata.
func (s *RulesService) UpdateDocumentTemplate(ctx context.Context, t *rules.DocumentTemplate) error {
	return s.adminRepo.UpdateDocumentTemplate(ctx, t)
}

// CreateDocumentRule inserts a document applicability rule.
func (s *RulesService) CreateDocumentRule(ctx context.Context, dr *rules.DocumentRule) error {
	return s.adminRepo.CreateDocumentRule(ctx, dr)
}

// DeleteDocumentRule removes a document rule.
func (s *RulesService) DeleteDocumentRule(ctx context.Context, id int64) error {
	return s.adminRepo.DeleteDocumentRule(ctx, id)
}

// UpsertPipelineConfig writes one pipeline x team matrix cell.
func (s *RulesService) UpsertPipelineConfig(ctx context.Context, c *rules.AdvisoryPipelineConfig) error {
	return s.adminRepo.UpsertPipelineConfig(ctx, c)
}

// CreateTriggerRule inserts an advisory trigger rule.
func (s *RulesService) CreateTriggerRule(ctx context.Context, t *rules.AdvisoryTriggerRule) error {
	return s.adminRepo.CreateTriggerRule(ctx, t)
}

// DeleteTriggerRule removes an advisory trigger rule.
func (s *RulesService) DeleteTriggerRule(ctx context.Context, id int64) error {
	return s.adminRepo.DeleteTriggerRule(ctx, id)
}
