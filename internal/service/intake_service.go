package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/dualtrack/be-acq-requests/internal/apperrors"
	"github.com/dualtrack/be-acq-requests/internal/client"
	"github.com/dualtrack/be-acq-requests/internal/database"
	"github.com/dualtrack/be-acq-requests/internal/repository"
	"github.com/dualtrack/be-acq-requests/internal/rules"
)

// IntakeService owns the intake wizard: draft creation, answer updates,
// live derivation previews and the completion step that locks in the
// classification, materializes the document checklist and opens advisory
// reviews.
type IntakeService struct {
	db           *database.DB
	requestRepo  *repository.RequestRepository
	documentRepo *repository.PackageDocumentRepository
	advisoryRepo *repository.AdvisoryInputRepository
	activityRepo *repository.ActivityLogRepository
	ruleSetRepo  *repository.RuleSetRepository
	notifier     *client.NotificationPublisher
	log          zerolog.Logger
}

// NewIntakeService creates a new IntakeService.
func NewIntakeService(
	db *database.DB,
	requestRepo *repository.RequestRepository,
	documentRepo *repository.PackageDocumentRepository,
	advisoryRepo *repository.AdvisoryInputRepository,
	activityRepo *repository.ActivityLogRepository,
	ruleSetRepo *repository.RuleSetRepository,
	notifier *client.NotificationPublisher,
	log zerolog.Logger,
) *IntakeService {
	return &IntakeService{
		db:           db,
		requestRepo:  requestRepo,
		documentRepo: documentRepo,
		advisoryRepo: advisoryRepo,
		activityRepo: activityRepo,
		ruleSetRepo:  ruleSetRepo,
		notifier:     notifier,
		log:          log,
	}
}

// CreateRequestInput is the payload for opening a new draft.
type CreateRequestInput struct {
	Title          string
	Description    *string
	RequestorID    *int64
	RequestorName  *string
	RequestorOrg   *string
	EstimatedValue int64
	FiscalYear     string
	Priority       string
	NeedByDate     *string
}

// CreateDraft opens a new request in draft status and assigns its number.
func (s *IntakeService) CreateDraft(ctx context.Context, input CreateRequestInput) (*repository.AcquisitionRequest, error) {
	if input.Title == "" {
		return nil, apperrors.InvalidInput("title", "is required")
	}
	if input.EstimatedValue < 0 {
		return nil, apperrors.InvalidInput("estimated_value", "cannot be negative")
	}
	if input.FiscalYear == "" {
		input.FiscalYear = fmt.Sprintf("FY%d", time.Now().UTC().Year())
	}
	if input.Priority == "" {
		input.Priority = "routine"
	}

	req := &repository.AcquisitionRequest{
		Title:          input.Title,
		Description:    input.Description,
		RequestorID:    input.RequestorID,
		RequestorName:  input.RequestorName,
		RequestorOrg:   input.RequestorOrg,
		EstimatedValue: input.EstimatedValue,
		FiscalYear:     input.FiscalYear,
		Priority:       input.Priority,
		NeedByDate:     input.NeedByDate,
	}
	if err := s.requestRepo.Create(ctx, req); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("request_id", req.ID).
		Str("request_number", req.RequestNumber).
		Msg("Draft request created")
	return req, nil
}

// IntakeAnswers is the wizard payload saved onto a draft.
type IntakeAnswers struct {
	Title            *string
	Description      *string
	EstimatedValue   *int64
	FiscalYear       *string
	Priority         *string
	NeedByDate       *string
	NeedType         *string
	Situation        *string
	SpecificVendor   *string
	ExistingVehicle  *string
	ChangeType       *string
	BuyCategory      *string
	MixedPredominant *string
}

// SaveAnswers updates a draft's descriptive fields and wizard answers.
// Completed intakes must be recalculated, not silently edited.
func (s *IntakeService) SaveAnswers(ctx context.Context, requestID int64, answers IntakeAnswers) (*repository.AcquisitionRequest, error) {
	var req *repository.AcquisitionRequest

	err := s.db.InTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		req, err = s.requestRepo.GetForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req.Status != repository.StatusDraft && req.Status != repository.StatusReturned {
			return apperrors.InvalidTransition(
				fmt.Sprintf("intake answers cannot be changed in status %q", req.Status))
		}

		applyAnswers(req, answers)
		if req.EstimatedValue < 0 {
			return apperrors.InvalidInput("estimated_value", "cannot be negative")
		}
		return s.requestRepo.UpdateIntake(ctx, tx, req)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func applyAnswers(req *repository.AcquisitionRequest, a IntakeAnswers) {
	if a.Title != nil {
		req.Title = *a.Title
	}
	if a.Description != nil {
		req.Description = a.Description
	}
	if a.EstimatedValue != nil {
		req.EstimatedValue = *a.EstimatedValue
	}
	if a.FiscalYear != nil {
		req.FiscalYear = *a.FiscalYear
	}
	if a.Priority != nil {
		req.Priority = *a.Priority
	}
	if a.NeedByDate != nil {
		req.NeedByDate = a.NeedByDate
	}
	if a.NeedType != nil {
		req.IntakeNeedType = a.NeedType
	}
	if a.Situation != nil {
		req.IntakeSituation = a.Situation
	}
	if a.SpecificVendor != nil {
		req.IntakeSpecificVendor = a.SpecificVendor
	}
	if a.ExistingVehicle != nil {
		req.IntakeExistingVehicle = a.ExistingVehicle
	}
	if a.ChangeType != nil {
		req.IntakeChangeType = a.ChangeType
	}
	if a.BuyCategory != nil {
		req.IntakeBuyCategory = a.BuyCategory
	}
	if a.MixedPredominant != nil {
		req.IntakeMixedPredominant = a.MixedPredominant
	}
}

// DerivationPreview is the live wizard preview: classification plus the
// checklist and advisory reviews it would produce.
type DerivationPreview struct {
	Classification rules.Classification    `json:"classification"`
	Checklist      []rules.DocRequirement  `json:"checklist"`
	Advisories     []rules.AdvisoryTrigger `json:"advisories"`
}

// PreviewDerive classifies a set of answers without persisting anything.
// Incomplete answers still produce a (heuristic) preview.
func (s *IntakeService) PreviewDerive(ctx context.Context, answers rules.Answers) *DerivationPreview {
	rs := s.ruleSetRepo.Load(ctx)
	now := time.Now().UTC()

	cls := rules.Derive(answers, rs, now)
	fields := fieldsForAnswers(answers, cls)

	return &DerivationPreview{
		Classification: cls,
		Checklist:      rules.GenerateChecklist(fields, rs),
		Advisories:     rules.EvaluateAdvisoryTriggers(fields, cls, answers.EstimatedValue, rs),
	}
}

// IntakeCompletion is the completion response: the updated request plus
// everything derivation produced.
type IntakeCompletion struct {
	Request          *repository.AcquisitionRequest `json:"request"`
	Classification   rules.Classification           `json:"classification"`
	Checklist        []*repository.PackageDocument  `json:"checklist"`
	Advisories       []*repository.AdvisoryInput    `json:"triggered_advisories"`
	SelectedTemplate *rules.ApprovalTemplate        `json:"selected_template,omitempty"`
}

// CompleteIntake locks in the classification, materializes the document
// checklist and opens the triggered advisory reviews. The derived fields,
// completion flag, checklist and advisory rows land in one transaction: a
// failure anywhere leaves the request untouched.
func (s *IntakeService) CompleteIntake(ctx context.Context, requestID int64, actorID string) (*IntakeCompletion, error) {
	rs := s.ruleSetRepo.Load(ctx)

	var (
		req         *repository.AcquisitionRequest
		cls         rules.Classification
		docs        []*repository.PackageDocument
		advisories  []*repository.AdvisoryInput
		newTriggers []rules.AdvisoryTrigger
	)

	err := s.db.InTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		req, err = s.requestRepo.GetForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req.Status != repository.StatusDraft && req.Status != repository.StatusReturned {
			return apperrors.InvalidTransition(
				fmt.Sprintf("intake cannot be completed in status %q", req.Status))
		}
		if derefString(req.IntakeNeedType) == "" {
			return apperrors.InvalidInput("need_type", "is required to complete intake")
		}
		if derefString(req.IntakeBuyCategory) == "" {
			return apperrors.InvalidInput("buy_category", "is required to complete intake")
		}
		if req.EstimatedValue <= 0 {
			return apperrors.InvalidInput("estimated_value", "must be positive to complete intake")
		}

		now := time.Now().UTC()
		cls = rules.Derive(answersForRequest(req), rs, now)
		setClassification(req, cls, now)
		if err := s.requestRepo.ApplyClassification(ctx, tx, req); err != nil {
			return err
		}

		fields := fieldsForRequest(req)
		checklist := rules.GenerateChecklist(fields, rs)
		plan, err := s.applyChecklist(ctx, tx, req.ID, checklist)
		if err != nil {
			return err
		}

		newTriggers, err = ensureAdvisoryInputs(ctx, tx, s.requestRepo, s.advisoryRepo, req, rs, fields)
		if err != nil {
			return err
		}

		desc := fmt.Sprintf("Intake completed: %s / %s / %s (checklist: %s; %d advisory reviews opened)",
			cls.AcquisitionType, cls.Tier, cls.Pipeline, plan.summary(), len(newTriggers))
		if err := s.activityRepo.Append(ctx, tx, &repository.ActivityLog{
			RequestID:    req.ID,
			ActivityType: "intake_completed",
			Description:  desc,
			Actor:        actorID,
		}); err != nil {
			return err
		}

		docs, err = s.documentRepo.GetByRequestID(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		advisories, err = s.advisoryRepo.GetByRequestID(ctx, tx, req.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("request_id", req.ID).
		Str("acquisition_type", derefString(req.DerivedAcquisitionType)).
		Str("tier", derefString(req.DerivedTier)).
		Str("pipeline", derefString(req.DerivedPipeline)).
		Msg("Intake completed")

	for _, t := range newTriggers {
		s.notifier.NotifyTeam("advisory_requested", req.ID, req.RequestNumber, t.Team,
			map[string]any{"blocks_gate": t.BlocksGate, "sla_days": t.SLADays})
	}

	return &IntakeCompletion{
		Request:          req,
		Classification:   cls,
		Checklist:        docs,
		Advisories:       advisories,
		SelectedTemplate: rules.SelectTemplate(rs, cls.Pipeline, cls.ApprovalTemplateKey),
	}, nil
}

// RecalculateChecklist re-derives the classification and diffs the
// checklist against the materialized documents: new requirements are added,
// changed ones updated in place. Entries no longer applicable are removed
// while untouched; once work has started the row survives as a non-required
// orphan so nothing prepared is lost.
func (s *IntakeService) RecalculateChecklist(ctx context.Context, requestID int64, actorID string) ([]*repository.PackageDocument, error) {
	rs := s.ruleSetRepo.Load(ctx)
	var docs []*repository.PackageDocument

	err := s.db.InTransaction(ctx, func(tx pgx.Tx) error {
		req, err := s.requestRepo.GetForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if !req.IntakeCompleted {
			return apperrors.InvalidTransition("intake has not been completed")
		}

		now := time.Now().UTC()
		cls := rules.Derive(answersForRequest(req), rs, now)
		setClassification(req, cls, now)
		if err := s.requestRepo.ApplyClassification(ctx, tx, req); err != nil {
			return err
		}

		checklist := rules.GenerateChecklist(fieldsForRequest(req), rs)
		plan, err := s.applyChecklist(ctx, tx, req.ID, checklist)
		if err != nil {
			return err
		}

		desc := "Checklist recalculated: " + plan.summary()
		if err := s.activityRepo.Append(ctx, tx, &repository.ActivityLog{
			RequestID:    req.ID,
			ActivityType: "checklist_recalculated",
			Description:  desc,
			Actor:        actorID,
		}); err != nil {
			return err
		}

		docs, err = s.documentRepo.GetByRequestID(ctx, tx, req.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// checklistChange is one planned requirement update to an existing entry.
type checklistChange struct {
	doc      *repository.PackageDocument
	required bool
	gate     *string
}

// checklistPlan is the reconciliation of generated requirements against the
// documents already on a request.
type checklistPlan struct {
	create []*repository.PackageDocument
	update []checklistChange
	remove []*repository.PackageDocument
	orphan []*repository.PackageDocument
}

func (p checklistPlan) summary() string {
	return fmt.Sprintf("%d added, %d updated, %d removed, %d orphaned",
		len(p.create), len(p.update), len(p.remove), len(p.orphan))
}

// planChecklist diffs the generated requirements against existing documents.
// Entries no longer applicable are removed when still untouched; required
// entries with work already done are kept and downgraded to non-required
// orphans.
func planChecklist(requestID int64, existing []*repository.PackageDocument, checklist []rules.DocRequirement) checklistPlan {
	byTemplate := make(map[int64]*repository.PackageDocument, len(existing))
	for _, doc := range existing {
		byTemplate[doc.DocumentTemplateID] = doc
	}

	var plan checklistPlan
	seen := make(map[int64]bool, len(checklist))
	for _, item := range checklist {
		seen[item.DocumentTemplateID] = true

		var gate *string
		if item.RequiredBeforeGate != "" {
			g := item.RequiredBeforeGate
			gate = &g
		}

		doc, ok := byTemplate[item.DocumentTemplateID]
		if !ok {
			plan.create = append(plan.create, &repository.PackageDocument{
				RequestID:          requestID,
				DocumentTemplateID: item.DocumentTemplateID,
				DocumentType:       item.DocTypeKey,
				Title:              item.Title,
				Status:             repository.DocNotStarted,
				IsRequired:         item.Required,
				RequiredBeforeGate: gate,
			})
			continue
		}
		if doc.IsRequired != item.Required || derefString(doc.RequiredBeforeGate) != item.RequiredBeforeGate {
			plan.update = append(plan.update, checklistChange{doc: doc, required: item.Required, gate: gate})
		}
	}

	for _, doc := range existing {
		if seen[doc.DocumentTemplateID] {
			continue
		}
		if doc.Status == repository.DocNotStarted {
			plan.remove = append(plan.remove, doc)
			continue
		}
		if doc.IsRequired {
			plan.orphan = append(plan.orphan, doc)
		}
	}
	return plan
}

// applyChecklist reconciles the generated requirements with the documents
// already on the request.
func (s *IntakeService) applyChecklist(ctx context.Context, tx pgx.Tx, requestID int64, checklist []rules.DocRequirement) (checklistPlan, error) {
	existing, err := s.documentRepo.GetByRequestID(ctx, tx, requestID)
	if err != nil {
		return checklistPlan{}, err
	}

	plan := planChecklist(requestID, existing, checklist)
	for _, doc := range plan.create {
		if err := s.documentRepo.Create(ctx, tx, doc); err != nil {
			return checklistPlan{}, err
		}
	}
	for _, change := range plan.update {
		if err := s.documentRepo.SetRequirement(ctx, tx, change.doc.ID, change.required, change.gate); err != nil {
			return checklistPlan{}, err
		}
	}
	for _, doc := range plan.remove {
		if err := s.documentRepo.Delete(ctx, tx, doc.ID); err != nil {
			return checklistPlan{}, err
		}
	}
	for _, doc := range plan.orphan {
		if err := s.documentRepo.SetRequirement(ctx, tx, doc.ID, false, doc.RequiredBeforeGate); err != nil {
			return checklistPlan{}, err
		}
	}
	return plan, nil
}

func answersForRequest(req *repository.AcquisitionRequest) rules.Answers {
	return rules.Answers{
		NeedType:         derefString(req.IntakeNeedType),
		Situation:        derefString(req.IntakeSituation),
		ChangeType:       derefString(req.IntakeChangeType),
		VendorKnown:      derefString(req.IntakeSpecificVendor),
		BuyCategory:      derefString(req.IntakeBuyCategory),
		MixedPredominant: derefString(req.IntakeMixedPredominant),
		EstimatedValue:   req.EstimatedValue,
	}
}

func setClassification(req *repository.AcquisitionRequest, cls rules.Classification, now time.Time) {
	req.DerivedAcquisitionType = &cls.AcquisitionType
	req.DerivedTier = &cls.Tier
	req.DerivedPipeline = &cls.Pipeline
	req.DerivedContractCharacter = &cls.ContractCharacter
	req.DerivedRequirementsDocType = &cls.RequirementsDocType
	req.DerivedSCLSApplicable = &cls.SCLSApplicable
	req.DerivedQASPRequired = &cls.QASPRequired
	req.DerivedEvalApproach = &cls.EvalApproach
	if cls.ApprovalTemplateKey != "" {
		req.ApprovalTemplateKey = &cls.ApprovalTemplateKey
	}
	if cls.AdvisoryTriggers != "" {
		req.AdvisoryTriggerCodes = &cls.AdvisoryTriggers
	}
	req.IntakeCompleted = true
	req.IntakeCompletedDate = &now
}
