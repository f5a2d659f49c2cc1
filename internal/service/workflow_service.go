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

// Approval actions.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionReturn  = "return"
)

// stepStatusByName maps template step names to the request status shown
// while that step is active. Names come from the approval template
// workbook; anything unmapped displays as plain submitted.
var stepStatusByName = map[string]string{
	"ISS":                       "iss_review",
	"ISS Review":                "iss_review",
	"COR Review":                "iss_review",
	"COR Confirmation":          "iss_review",
	"COR + PM Justification":    "iss_review",
	"COR Justification":         "iss_review",
	"PM Approval":               "iss_review",
	"Supervisor":                "iss_review",
	"Supervisor Approval":       "iss_review",
	"ASR":                       "asr_review",
	"ASR Review":                "asr_review",
	"Finance":                   "finance_review",
	"Finance Review":            "finance_review",
	"FM Funding Identification": "finance_review",
	"BM LOA Confirmation":       "finance_review",
	"GPC Purchase":              "finance_review",
	"GPC Holder":                "finance_review",
	"KO Review":                 "ko_review",
	"KO Action":                 "ko_review",
	"KO Execution":              "ko_review",
	"KO Determination":          "ko_review",
	"KO Contract Mod":           "ko_review",
	"COR Authorization":         "ko_review",
	"Legal Review":              "legal_review",
	"CIO Approval":              "cio_approval",
	"CTO Approval":              "cio_approval",
	"Senior Leadership":         "senior_review",
}

// StatusForStep returns the request status displayed while the named step
// is active.
func StatusForStep(stepName string) string {
	if status, ok := stepStatusByName[stepName]; ok {
		return status
	}
	return repository.StatusSubmitted
}

// gateByStatus maps gate statuses to the gate tokens advisory reviews and
// document requirements block on.
var gateByStatus = map[string]string{
	"iss_review":     "iss",
	"asr_review":     "asr",
	"finance_review": "finance",
	"ko_review":      "ko_review",
}

// GateForStep returns the advisory/document gate the named step enforces,
// or "" when the step has no gate.
func GateForStep(stepName string) string {
	return gateByStatus[StatusForStep(stepName)]
}

// WorkflowService drives the approval state machine: submission materializes
// the template into steps, decisions advance, return or terminally cancel
// the request. All transitions for one request are serialized on a row lock
// so concurrent decisions cannot both land.
type WorkflowService struct {
	db           *database.DB
	requestRepo  *repository.RequestRepository
	stepRepo     *repository.ApprovalStepRepository
	advisoryRepo *repository.AdvisoryInputRepository
	documentRepo *repository.PackageDocumentRepository
	activityRepo *repository.ActivityLogRepository
	ruleSetRepo  *repository.RuleSetRepository
	notifier     *client.NotificationPublisher
	log          zerolog.Logger
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(
	db *database.DB,
	requestRepo *repository.RequestRepository,
	stepRepo *repository.ApprovalStepRepository,
	advisoryRepo *repository.AdvisoryInputRepository,
	documentRepo *repository.PackageDocumentRepository,
	activityRepo *repository.ActivityLogRepository,
	ruleSetRepo *repository.RuleSetRepository,
	notifier *client.NotificationPublisher,
	log zerolog.Logger,
) *WorkflowService {
	return &WorkflowService{
		db:           db,
		requestRepo:  requestRepo,
		stepRepo:     stepRepo,
		advisoryRepo: advisoryRepo,
		documentRepo: documentRepo,
		activityRepo: activityRepo,
		ruleSetRepo:  ruleSetRepo,
		notifier:     notifier,
		log:          log,
	}
}

// ── Submission ────────────────────────────────────────────────────────────────

// Submit moves a draft (or returned) request into its approval pipeline:
// selects the approval template, materializes its steps, activates the first
// one and fires advisory triggers. Re-submission after a return rebuilds the
// steps; advisory reviews already underway keep their state.
func (s *WorkflowService) Submit(ctx context.Context, requestID int64, actorID string) (*repository.AcquisitionRequest, error) {
	rs := s.ruleSetRepo.Load(ctx)

	var (
		req         *repository.AcquisitionRequest
		activeStep  *repository.ApprovalStep
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
				fmt.Sprintf("request cannot be submitted from status %q", req.Status))
		}
		if !req.IntakeCompleted {
			return apperrors.New(apperrors.CodeValidation, "intake must be completed before submission")
		}

		pipeline := derefString(req.DerivedPipeline)
		templateKey := derefString(req.ApprovalTemplateKey)
		template := rules.SelectTemplate(rs, pipeline, templateKey)
		if template == nil {
			return apperrors.Newf(apperrors.CodeValidation,
				"no approval template configured for pipeline %q", pipeline)
		}

		now := time.Now().UTC()
		fields := fieldsForRequest(req)
		steps := MaterializeSteps(template, fields, now)

		if err := s.stepRepo.ReplaceForRequest(ctx, tx, req.ID, steps); err != nil {
			return err
		}

		status := repository.StatusSubmitted
		for _, step := range steps {
			if step.Status == repository.StepActive {
				activeStep = step
				status = StatusForStep(step.StepName)
				break
			}
		}
		if err := s.requestRepo.UpdateStatus(ctx, tx, req.ID, status); err != nil {
			return err
		}
		req.Status = status

		newTriggers, err = ensureAdvisoryInputs(ctx, tx, s.requestRepo, s.advisoryRepo, req, rs, fields)
		if err != nil {
			return err
		}

		oldStatus := repository.StatusDraft
		return s.activityRepo.Append(ctx, tx, &repository.ActivityLog{
			RequestID:    req.ID,
			ActivityType: "submitted",
			Description:  fmt.Sprintf("Request submitted into %s pipeline (%d steps)", pipeline, len(steps)),
			Actor:        actorID,
			OldValue:     &oldStatus,
			NewValue:     &req.Status,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("request_id", req.ID).
		Str("request_number", req.RequestNumber).
		Str("status", req.Status).
		Msg("Request submitted")

	s.notifier.NotifyRequestor("request_submitted", req.ID, req.RequestNumber, actorID, nil)
	if activeStep != nil {
		s.notifier.NotifyRole("approval_required", req.ID, req.RequestNumber,
			activeStep.ApproverRole, actorID, map[string]any{"step_name": activeStep.StepName})
	}
	for _, t := range newTriggers {
		s.notifier.NotifyTeam("advisory_requested", req.ID, req.RequestNumber, t.Team,
			map[string]any{"blocks_gate": t.BlocksGate, "sla_days": t.SLADays})
	}
	return req, nil
}

// MaterializeSteps instantiates a template into concrete approval steps.
// Disabled steps are dropped; conditional steps whose condition does not
// hold are kept as skipped for the audit trail. Surviving steps are
// renumbered 1..N and the first becomes active with its SLA due date.
func MaterializeSteps(template *rules.ApprovalTemplate, fields rules.Fields, now time.Time) []*repository.ApprovalStep {
	var steps []*repository.ApprovalStep
	number := 0
	for i := range template.Steps {
		def := &template.Steps[i]
		if !def.IsEnabled {
			continue
		}
		number++
		step := &repository.ApprovalStep{
			StepNumber:   number,
			StepName:     def.StepName,
			ApproverRole: def.ApproverRole,
			SLADays:      def.SLADays,
			Status:       repository.StepPending,
		}
		if def.IsConditional && !def.Condition.Evaluate(fields) {
			step.Status = repository.StepSkipped
		}
		steps = append(steps, step)
	}

	for _, step := range steps {
		if step.Status != repository.StepPending {
			continue
		}
		step.Status = repository.StepActive
		activated := now
		step.ActivatedAt = &activated
		if step.SLADays > 0 {
			due := now.AddDate(0, 0, step.SLADays)
			step.DueDate = &due
		}
		break
	}
	return steps
}

// ensureAdvisoryInputs evaluates the trigger rules for a request and opens
// advisory review rows for any teams not yet requested. Reviews already
// underway keep their state; only the newly opened triggers are returned.
// Fired at intake completion and again on submission, so rule changes
// between the two still land.
func ensureAdvisoryInputs(
	ctx context.Context,
	tx pgx.Tx,
	requestRepo *repository.RequestRepository,
	advisoryRepo *repository.AdvisoryInputRepository,
	req *repository.AcquisitionRequest,
	rs *rules.RuleSet,
	fields rules.Fields,
) ([]rules.AdvisoryTrigger, error) {
	cls := rules.Classification{
		Pipeline:         derefString(req.DerivedPipeline),
		AdvisoryTriggers: derefString(req.AdvisoryTriggerCodes),
	}
	triggers := rules.EvaluateAdvisoryTriggers(fields, cls, req.EstimatedValue, rs)

	var created []rules.AdvisoryTrigger
	for _, t := range triggers {
		gate := t.BlocksGate
		var gatePtr *string
		if gate != "" {
			gatePtr = &gate
		}
		_, isNew, err := advisoryRepo.EnsureRequested(ctx, tx, req.ID, t.Team, gatePtr)
		if err != nil {
			return nil, err
		}
		if !isNew {
			continue
		}
		if err := requestRepo.SetAdvisoryStatus(ctx, tx, req.ID, t.Team, repository.AdvisoryRequested); err != nil {
			return nil, err
		}
		created = append(created, t)
	}
	return created, nil
}

// ── Decisions ─────────────────────────────────────────────────────────────────

// ApprovalDecision is one approver's action on the active step.
type ApprovalDecision struct {
	RequestID int64
	StepID    int64
	Action    string // approve | reject | return
	ActorID   string
	Comments  *string
}

// DecisionOutcome is the transition one decision produces: the status
// recorded on the acted-on step, the request status after it, and the next
// pending step to activate when an approval advances the pipeline.
type DecisionOutcome struct {
	Step          *repository.ApprovalStep
	StepStatus    string
	RequestStatus string
	NextStep      *repository.ApprovalStep
}

// ApplyDecision validates an action against the request's step list and
// computes the resulting transition without persisting anything. Approve
// advances to the next pending step, or completes the request when none
// remain; return sends the request back to the requestor for rework and
// resubmission; reject is terminal and cancels the request.
func ApplyDecision(req *repository.AcquisitionRequest, steps []*repository.ApprovalStep, stepID int64, action string) (*DecisionOutcome, error) {
	switch req.Status {
	case repository.StatusDraft, repository.StatusApproved,
		repository.StatusReturned, repository.StatusCancelled:
		return nil, apperrors.InvalidTransition(
			fmt.Sprintf("request in status %q has no active approval step", req.Status))
	}

	var step *repository.ApprovalStep
	for _, candidate := range steps {
		if candidate.ID == stepID {
			step = candidate
			break
		}
	}
	if step == nil {
		return nil, apperrors.NotFound("approval step", stepID)
	}
	if step.Status != repository.StepActive {
		return nil, apperrors.InvalidTransition(
			fmt.Sprintf("step %q is %s, only the active step can be acted on", step.StepName, step.Status))
	}

	out := &DecisionOutcome{Step: step}
	switch action {
	case ActionApprove:
		out.StepStatus = repository.StepApproved
		for _, candidate := range steps {
			if candidate.StepNumber > step.StepNumber && candidate.Status == repository.StepPending {
				out.NextStep = candidate
				break
			}
		}
		if out.NextStep != nil {
			out.RequestStatus = StatusForStep(out.NextStep.StepName)
		} else {
			out.RequestStatus = repository.StatusApproved
		}
	case ActionReject:
		out.StepStatus = repository.StepRejected
		out.RequestStatus = repository.StatusCancelled
	case ActionReturn:
		out.StepStatus = repository.StepReturned
		out.RequestStatus = repository.StatusReturned
	default:
		return nil, apperrors.InvalidInput("action", "must be approve, reject or return")
	}
	return out, nil
}

// ProcessApproval applies a decision to the active step. Approve advances
// the pipeline (or completes the request on the last step); return sends the
// request back to the requestor for rework; reject cancels the request
// terminally, no resubmission is possible. The request row is locked for the
// whole transition.
func (s *WorkflowService) ProcessApproval(ctx context.Context, decision ApprovalDecision) (*repository.AcquisitionRequest, error) {
	switch decision.Action {
	case ActionApprove:
	case ActionReject, ActionReturn:
		if decision.Comments == nil || *decision.Comments == "" {
			return nil, apperrors.InvalidInput("comments", "required when rejecting or returning")
		}
	default:
		return nil, apperrors.InvalidInput("action", "must be approve, reject or return")
	}

	var (
		req     *repository.AcquisitionRequest
		outcome *DecisionOutcome
	)

	err := s.db.InTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		req, err = s.requestRepo.GetForUpdate(ctx, tx, decision.RequestID)
		if err != nil {
			return err
		}
		steps, err := s.stepRepo.GetByRequestID(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		outcome, err = ApplyDecision(req, steps, decision.StepID, decision.Action)
		if err != nil {
			return err
		}

		if decision.Action == ActionApprove {
			if err := s.checkGate(ctx, tx, req, outcome.Step); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		if err := s.stepRepo.RecordAction(ctx, tx, outcome.Step.ID, outcome.StepStatus,
			decision.ActorID, decision.Comments, now); err != nil {
			return err
		}
		if outcome.NextStep != nil {
			var due *time.Time
			if outcome.NextStep.SLADays > 0 {
				d := now.AddDate(0, 0, outcome.NextStep.SLADays)
				due = &d
			}
			if err := s.stepRepo.Activate(ctx, tx, outcome.NextStep.ID, now, due); err != nil {
				return err
			}
		}
		if err := s.requestRepo.UpdateStatus(ctx, tx, req.ID, outcome.RequestStatus); err != nil {
			return err
		}
		req.Status = outcome.RequestStatus

		return s.activityRepo.Append(ctx, tx, &repository.ActivityLog{
			RequestID:    req.ID,
			ActivityType: "approval_" + decision.Action,
			Description:  fmt.Sprintf("%s: %s by %s", outcome.Step.StepName, decision.Action, decision.ActorID),
			Actor:        decision.ActorID,
			NewValue:     &req.Status,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("request_id", req.ID).
		Str("action", decision.Action).
		Str("status", req.Status).
		Msg("Approval decision processed")

	switch {
	case decision.Action == ActionReject:
		s.notifier.NotifyRequestor("request_rejected", req.ID, req.RequestNumber, decision.ActorID,
			map[string]any{"comments": derefString(decision.Comments)})
	case decision.Action == ActionReturn:
		s.notifier.NotifyRequestor("request_returned", req.ID, req.RequestNumber, decision.ActorID,
			map[string]any{"comments": derefString(decision.Comments)})
	case req.Status == repository.StatusApproved:
		s.notifier.NotifyRequestor("request_approved", req.ID, req.RequestNumber, decision.ActorID, nil)
	case outcome.NextStep != nil:
		s.notifier.NotifyRole("approval_required", req.ID, req.RequestNumber,
			outcome.NextStep.ApproverRole, decision.ActorID, map[string]any{"step_name": outcome.NextStep.StepName})
	}
	return req, nil
}

// checkGate enforces the step's gate: open blocking advisory reviews and
// incomplete required documents both hold the approval.
func (s *WorkflowService) checkGate(ctx context.Context, tx pgx.Tx, req *repository.AcquisitionRequest, step *repository.ApprovalStep) error {
	gate := GateForStep(step.StepName)
	if gate == "" {
		return nil
	}

	blocking, err := s.advisoryRepo.CountBlocking(ctx, tx, req.ID, gate)
	if err != nil {
		return err
	}
	if blocking > 0 {
		return apperrors.Newf(apperrors.CodeConflict,
			"%d advisory review(s) blocking the %s gate are still open", blocking, gate)
	}

	incomplete, err := s.documentRepo.CountIncompleteRequired(ctx, tx, req.ID, gate)
	if err != nil {
		return err
	}
	if incomplete > 0 {
		return apperrors.Newf(apperrors.CodeConflict,
			"%d required document(s) for the %s gate are not complete", incomplete, gate)
	}
	return nil
}

// ── Status ────────────────────────────────────────────────────────────────────

// ApprovalStatus is the read model for a request's pipeline position.
type ApprovalStatus struct {
	Request         *repository.AcquisitionRequest `json:"request"`
	Steps           []*repository.ApprovalStep     `json:"steps"`
	ProgressPercent float64                        `json:"progress_percent"`
	OverdueSteps    []int                          `json:"overdue_steps,omitempty"`
}

// GetApprovalStatus returns the request, its steps and derived progress.
func (s *WorkflowService) GetApprovalStatus(ctx context.Context, requestID int64) (*ApprovalStatus, error) {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	steps, err := s.stepRepo.GetByRequestID(ctx, s.db, requestID)
	if err != nil {
		return nil, err
	}

	return &ApprovalStatus{
		Request:         req,
		Steps:           steps,
		ProgressPercent: Progress(steps),
		OverdueSteps:    OverdueSteps(steps, time.Now().UTC()),
	}, nil
}

// Progress returns percent of countable steps approved, rounded to one
// decimal. Skipped steps do not count toward the denominator.
func Progress(steps []*repository.ApprovalStep) float64 {
	total, approved := 0, 0
	for _, step := range steps {
		if step.Status == repository.StepSkipped {
			continue
		}
		total++
		if step.Status == repository.StepApproved {
			approved++
		}
	}
	if total == 0 {
		return 0
	}
	pct := float64(approved) / float64(total) * 100
	return float64(int(pct*10+0.5)) / 10
}

// OverdueSteps returns the step numbers of active steps past their due
// date.
func OverdueSteps(steps []*repository.ApprovalStep, now time.Time) []int {
	var overdue []int
	for _, step := range steps {
		if step.Status == repository.StepActive && step.DueDate != nil && step.DueDate.Before(now) {
			overdue = append(overdue, step.StepNumber)
		}
	}
	return overdue
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
