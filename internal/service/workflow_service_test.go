package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dualtrack/be-acq-requests/internal/apperrors"
	"github.com/dualtrack/be-acq-requests/internal/repository"
	"github.com/dualtrack/be-acq-requests/internal/rules"
)

func TestStatusForStep(t *testing.T) {
	tests := map[string]string{
		"ISS Review":                "iss_review",
		"COR + PM Justification":    "iss_review",
		"Supervisor Approval":       "iss_review",
		"ASR":                       "asr_review",
		"FM Funding Identification": "finance_review",
		"GPC Holder":                "finance_review",
		"KO Determination":          "ko_review",
		"COR Authorization":         "ko_review",
		"Legal Review":              "legal_review",
		"CTO Approval":              "cio_approval",
		"Senior Leadership":         "senior_review",
		"Some Custom Step":          "submitted",
		"":                          "submitted",
	}
	for name, want := range tests {
		assert.Equal(t, want, StatusForStep(name), "step %q", name)
	}
}

func TestGateForStep(t *testing.T) {
	assert.Equal(t, "iss", GateForStep("ISS Review"))
	assert.Equal(t, "asr", GateForStep("ASR"))
	assert.Equal(t, "finance", GateForStep("BM LOA Confirmation"))
	assert.Equal(t, "ko_review", GateForStep("KO Execution"))
	assert.Equal(t, "", GateForStep("Legal Review"), "legal has no advisory gate")
	assert.Equal(t, "", GateForStep("Unmapped Step"))
}

func materializeTemplate() *rules.ApprovalTemplate {
	return &rules.ApprovalTemplate{
		ID:          1,
		TemplateKey: "full_standard",
		Steps: []rules.ApprovalTemplateStep{
			{StepNumber: 1, StepName: "ISS Review", ApproverRole: "iss", SLADays: 3, IsEnabled: true},
			{StepNumber: 2, StepName: "Disabled Step", ApproverRole: "nobody", IsEnabled: false},
			{
				StepNumber: 3, StepName: "Legal Review", ApproverRole: "legal", SLADays: 5,
				IsEnabled: true, IsConditional: true,
				Condition: &rules.Condition{Field: "derived_tier", Operator: rules.OpIn, Values: []any{"above_sat", "major"}},
			},
			{StepNumber: 4, StepName: "KO Review", ApproverRole: "ko", SLADays: 4, IsEnabled: true},
		},
	}
}

func TestMaterializeSteps(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	fields := rules.Fields{"derived_tier": "above_sat"}

	steps := MaterializeSteps(materializeTemplate(), fields, now)
	require.Len(t, steps, 3, "disabled steps are dropped")

	// Renumbered 1..N in template order.
	assert.Equal(t, 1, steps[0].StepNumber)
	assert.Equal(t, 2, steps[1].StepNumber)
	assert.Equal(t, 3, steps[2].StepNumber)

	assert.Equal(t, repository.StepActive, steps[0].Status)
	require.NotNil(t, steps[0].ActivatedAt)
	require.NotNil(t, steps[0].DueDate)
	assert.Equal(t, now.AddDate(0, 0, 3), *steps[0].DueDate)

	assert.Equal(t, repository.StepPending, steps[1].Status)
	assert.Equal(t, repository.StepPending, steps[2].Status)
}

func TestMaterializeStepsConditionalSkipped(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	fields := rules.Fields{"derived_tier": "sat"}

	steps := MaterializeSteps(materializeTemplate(), fields, now)
	require.Len(t, steps, 3)

	assert.Equal(t, repository.StepActive, steps[0].Status)
	assert.Equal(t, repository.StepSkipped, steps[1].Status, "unmet condition skips the step")
	assert.Equal(t, repository.StepPending, steps[2].Status)
}

func TestMaterializeStepsAllSkipped(t *testing.T) {
	template := &rules.ApprovalTemplate{
		Steps: []rules.ApprovalTemplateStep{
			{
				StepNumber: 1, StepName: "Legal Review", IsEnabled: true, IsConditional: true,
				Condition: &rules.Condition{Field: "derived_tier", Operator: rules.OpEq, Value: "major"},
			},
		},
	}

	steps := MaterializeSteps(template, rules.Fields{"derived_tier": "micro"}, time.Now())
	require.Len(t, steps, 1)
	assert.Equal(t, repository.StepSkipped, steps[0].Status)

	// No step is activated; the caller leaves the request in submitted.
	for _, s := range steps {
		assert.NotEqual(t, repository.StepActive, s.Status)
	}
}

func decisionSteps() []*repository.ApprovalStep {
	return []*repository.ApprovalStep{
		{ID: 11, StepNumber: 1, StepName: "ISS Review", ApproverRole: "iss", Status: repository.StepApproved},
		{ID: 12, StepNumber: 2, StepName: "Legal Review", ApproverRole: "legal", Status: repository.StepSkipped},
		{ID: 13, StepNumber: 3, StepName: "Finance Review", ApproverRole: "finance", SLADays: 5, Status: repository.StepActive},
		{ID: 14, StepNumber: 4, StepName: "KO Review", ApproverRole: "ko", SLADays: 4, Status: repository.StepPending},
	}
}

func TestApplyDecisionApproveAdvances(t *testing.T) {
	req := &repository.AcquisitionRequest{ID: 1, Status: "finance_review"}
	steps := decisionSteps()

	out, err := ApplyDecision(req, steps, 13, ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, repository.StepApproved, out.StepStatus)
	require.NotNil(t, out.NextStep)
	assert.Equal(t, int64(14), out.NextStep.ID, "next pending step activates")
	assert.Equal(t, "ko_review", out.RequestStatus)
}

func TestApplyDecisionApproveLastStepCompletes(t *testing.T) {
	req := &repository.AcquisitionRequest{ID: 1, Status: "ko_review"}
	steps := decisionSteps()
	steps[2].Status = repository.StepApproved
	steps[3].Status = repository.StepActive

	out, err := ApplyDecision(req, steps, 14, ActionApprove)
	require.NoError(t, err)
	assert.Nil(t, out.NextStep)
	assert.Equal(t, repository.StatusApproved, out.RequestStatus)
}

func TestApplyDecisionRejectCancelsTerminally(t *testing.T) {
	req := &repository.AcquisitionRequest{ID: 1, Status: "ko_review"}
	steps := decisionSteps()
	steps[2].Status = repository.StepApproved
	steps[3].Status = repository.StepActive

	out, err := ApplyDecision(req, steps, 14, ActionReject)
	require.NoError(t, err)
	assert.Equal(t, repository.StepRejected, out.StepStatus)
	assert.Equal(t, repository.StatusCancelled, out.RequestStatus)
	assert.Nil(t, out.NextStep)

	// A cancelled request has no active step; nothing further can land,
	// including resubmission.
	req.Status = out.RequestStatus
	_, err = ApplyDecision(req, steps, 14, ActionApprove)
	assert.Equal(t, apperrors.CodeInvalidTransition, apperrors.CodeOf(err))
}

func TestApplyDecisionReturnSendsBackForRework(t *testing.T) {
	req := &repository.AcquisitionRequest{ID: 1, Status: "finance_review"}

	out, err := ApplyDecision(req, decisionSteps(), 13, ActionReturn)
	require.NoError(t, err)
	assert.Equal(t, repository.StepReturned, out.StepStatus)
	assert.Equal(t, repository.StatusReturned, out.RequestStatus)
}

func TestApplyDecisionSecondActionOnDecidedStep(t *testing.T) {
	req := &repository.AcquisitionRequest{ID: 1, Status: "finance_review"}

	// Step 11 was already approved earlier in the pipeline.
	out, err := ApplyDecision(req, decisionSteps(), 11, ActionApprove)
	assert.Nil(t, out)
	assert.Equal(t, apperrors.CodeInvalidTransition, apperrors.CodeOf(err))
}

func TestApplyDecisionGuards(t *testing.T) {
	steps := decisionSteps()

	for _, status := range []string{
		repository.StatusDraft, repository.StatusApproved,
		repository.StatusReturned, repository.StatusCancelled,
	} {
		_, err := ApplyDecision(&repository.AcquisitionRequest{ID: 1, Status: status}, steps, 13, ActionApprove)
		assert.Equal(t, apperrors.CodeInvalidTransition, apperrors.CodeOf(err), "status %q", status)
	}

	active := &repository.AcquisitionRequest{ID: 1, Status: "finance_review"}
	_, err := ApplyDecision(active, steps, 999, ActionApprove)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err), "step of another request is invisible")

	_, err = ApplyDecision(active, steps, 13, "escalate")
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
}

func TestProgress(t *testing.T) {
	steps := []*repository.ApprovalStep{
		{Status: repository.StepApproved},
		{Status: repository.StepApproved},
		{Status: repository.StepActive},
		{Status: repository.StepSkipped},
	}
	// 2 of 3 countable steps approved.
	assert.Equal(t, 66.7, Progress(steps))

	assert.Equal(t, 0.0, Progress(nil))
	assert.Equal(t, 0.0, Progress([]*repository.ApprovalStep{{Status: repository.StepSkipped}}))
	assert.Equal(t, 100.0, Progress([]*repository.ApprovalStep{
		{Status: repository.StepApproved},
		{Status: repository.StepSkipped},
	}))
}

func TestOverdueSteps(t *testing.T) {
	now := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 1)

	steps := []*repository.ApprovalStep{
		{StepNumber: 1, Status: repository.StepApproved, DueDate: &past},
		{StepNumber: 2, Status: repository.StepActive, DueDate: &past},
		{StepNumber: 3, Status: repository.StepActive, DueDate: &future},
		{StepNumber: 4, Status: repository.StepPending},
	}

	assert.Equal(t, []int{2}, OverdueSteps(steps, now))
}

func TestFieldsForRequest(t *testing.T) {
	tier := "above_sat"
	buyCategory := "product"
	scls := false

	req := &repository.AcquisitionRequest{
		EstimatedValue:        380_000,
		FiscalYear:            "FY2026",
		Priority:              "routine",
		DerivedTier:           &tier,
		IntakeBuyCategory:     &buyCategory,
		DerivedSCLSApplicable: &scls,
	}

	fields := fieldsForRequest(req)
	assert.Equal(t, int64(380_000), fields["estimated_value"])
	assert.Equal(t, "above_sat", fields["derived_tier"])
	assert.Equal(t, "product", fields["intake_buy_category"])
	assert.Equal(t, false, fields["derived_scls_applicable"])

	_, present := fields["intake_change_type"]
	assert.False(t, present, "nil answers are omitted so exists() behaves")
}
