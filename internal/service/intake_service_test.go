package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dualtrack/be-acq-requests/internal/repository"
	"github.com/dualtrack/be-acq-requests/internal/rules"
)

func strPtr(s string) *string { return &s }

func TestAnswersForRequest(t *testing.T) {
	req := &repository.AcquisitionRequest{
		EstimatedValue:       380_000,
		IntakeNeedType:       strPtr("new"),
		IntakeSpecificVendor: strPtr("yes_sole"),
		IntakeBuyCategory:    strPtr("product"),
	}

	answers := answersForRequest(req)
	assert.Equal(t, "new", answers.NeedType)
	assert.Equal(t, "yes_sole", answers.VendorKnown)
	assert.Equal(t, "product", answers.BuyCategory)
	assert.Equal(t, int64(380_000), answers.EstimatedValue)
	assert.Empty(t, answers.Situation)
}

func TestSetClassification(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	req := &repository.AcquisitionRequest{}

	setClassification(req, rules.Classification{
		AcquisitionType:     "brand_name_sole_source",
		Tier:                "above_sat",
		Pipeline:            "full",
		ContractCharacter:   "product",
		RequirementsDocType: "specification",
		EvalApproach:        "lpta",
		ApprovalTemplateKey: "full_sole_source",
		AdvisoryTriggers:    "SCRM, SBO",
	}, now)

	require.NotNil(t, req.DerivedAcquisitionType)
	assert.Equal(t, "brand_name_sole_source", *req.DerivedAcquisitionType)
	assert.Equal(t, "above_sat", *req.DerivedTier)
	assert.Equal(t, "full_sole_source", *req.ApprovalTemplateKey)
	assert.Equal(t, "SCRM, SBO", *req.AdvisoryTriggerCodes)
	assert.False(t, *req.DerivedSCLSApplicable)
	assert.True(t, req.IntakeCompleted)
	require.NotNil(t, req.IntakeCompletedDate)
	assert.Equal(t, now, *req.IntakeCompletedDate)
}

func TestSetClassificationKeepsTemplateKeyWhenEmpty(t *testing.T) {
	existing := "micro_gpc"
	req := &repository.AcquisitionRequest{ApprovalTemplateKey: &existing}

	setClassification(req, rules.Classification{Tier: "micro", Pipeline: "micro"}, time.Now())
	require.NotNil(t, req.ApprovalTemplateKey)
	assert.Equal(t, "micro_gpc", *req.ApprovalTemplateKey, "heuristic results never clear a key")
}

func TestPlanChecklist(t *testing.T) {
	existing := []*repository.PackageDocument{
		{ID: 1, DocumentTemplateID: 10, Status: repository.DocInProgress, IsRequired: true},
		{ID: 2, DocumentTemplateID: 20, Status: repository.DocNotStarted, IsRequired: true},
		{ID: 3, DocumentTemplateID: 30, Status: repository.DocInProgress, IsRequired: true},
		{ID: 4, DocumentTemplateID: 40, Status: repository.DocComplete, IsRequired: false},
	}
	checklist := []rules.DocRequirement{
		{DocumentTemplateID: 10, DocTypeKey: "igce", Title: "IGCE", Required: true, RequiredBeforeGate: "finance"},
		{DocumentTemplateID: 50, DocTypeKey: "qasp", Title: "QASP", Required: true},
	}

	plan := planChecklist(7, existing, checklist)

	require.Len(t, plan.create, 1, "new requirement materializes")
	assert.Equal(t, int64(50), plan.create[0].DocumentTemplateID)
	assert.Equal(t, repository.DocNotStarted, plan.create[0].Status)
	assert.Equal(t, int64(7), plan.create[0].RequestID)

	require.Len(t, plan.update, 1, "gate change updates in place")
	assert.Equal(t, int64(1), plan.update[0].doc.ID)
	assert.True(t, plan.update[0].required)
	require.NotNil(t, plan.update[0].gate)
	assert.Equal(t, "finance", *plan.update[0].gate)

	require.Len(t, plan.remove, 1, "inapplicable entry never started is removed")
	assert.Equal(t, int64(2), plan.remove[0].ID)

	require.Len(t, plan.orphan, 1, "work in progress survives as a non-required orphan")
	assert.Equal(t, int64(3), plan.orphan[0].ID)
}

func TestPlanChecklistNoChanges(t *testing.T) {
	existing := []*repository.PackageDocument{
		{ID: 1, DocumentTemplateID: 10, Status: repository.DocComplete, IsRequired: true},
	}
	checklist := []rules.DocRequirement{
		{DocumentTemplateID: 10, DocTypeKey: "igce", Title: "IGCE", Required: true},
	}

	plan := planChecklist(7, existing, checklist)
	assert.Empty(t, plan.create)
	assert.Empty(t, plan.update)
	assert.Empty(t, plan.remove)
	assert.Empty(t, plan.orphan)
	assert.Equal(t, "0 added, 0 updated, 0 removed, 0 orphaned", plan.summary())
}

func TestApplyAnswersPartialUpdate(t *testing.T) {
	req := &repository.AcquisitionRequest{
		Title:          "Old title",
		EstimatedValue: 10_000,
		IntakeNeedType: strPtr("new"),
	}

	value := int64(25_000)
	applyAnswers(req, IntakeAnswers{
		EstimatedValue: &value,
		BuyCategory:    strPtr("service"),
	})

	assert.Equal(t, "Old title", req.Title, "absent fields are untouched")
	assert.Equal(t, int64(25_000), req.EstimatedValue)
	assert.Equal(t, "new", *req.IntakeNeedType)
	assert.Equal(t, "service", *req.IntakeBuyCategory)
}
