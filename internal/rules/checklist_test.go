package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checklistRuleSet() *RuleSet {
	return &RuleSet{
		DocumentTemplates: []DocumentTemplate{
			{ID: 1, DocTypeKey: "igce", Name: "Independent Government Cost Estimate", RequiredBeforeGate: "iss", SortOrder: 10},
			{ID: 2, DocTypeKey: "pws", Name: "Performance Work Statement", RequiredBeforeGate: "asr", SortOrder: 20},
			{ID: 3, DocTypeKey: "ja", Name: "Justification and Approval", RequiredBeforeGate: "ko_review", SortOrder: 30},
			{ID: 4, DocTypeKey: "qasp", Name: "Quality Assurance Surveillance Plan", SortOrder: 40},
		},
		DocumentRules: []DocumentRule{
			// IGCE always applies.
			{ID: 1, DocumentTemplateID: 1, Applicability: ApplicabilityRequired, Priority: 0},
			// PWS for service-like requests.
			{ID: 2, DocumentTemplateID: 2, Applicability: ApplicabilityRequired, Priority: 0,
				Condition: &Condition{Field: "derived_requirements_doc_type", Operator: OpEq, Value: "pws"}},
			// J&A for sole source...
			{ID: 3, DocumentTemplateID: 3, Applicability: ApplicabilityRequired, Priority: 0,
				Condition: &Condition{Field: "derived_acquisition_type", Operator: OpEq, Value: "brand_name_sole_source"}},
			// ...but not below the micro threshold: higher priority wins.
			{ID: 4, DocumentTemplateID: 3, Applicability: ApplicabilityNotRequired, Priority: 10,
				Condition: &Condition{Field: "derived_tier", Operator: OpEq, Value: "micro"}},
			// QASP is optional for product buys.
			{ID: 5, DocumentTemplateID: 4, Applicability: ApplicabilityOptional, Priority: 0,
				Condition: &Condition{Field: "derived_contract_character", Operator: OpEq, Value: "product"}},
		},
	}
}

func TestGenerateChecklistBasic(t *testing.T) {
	rs := checklistRuleSet()
	fields := Fields{
		"derived_acquisition_type":      "brand_name_sole_source",
		"derived_tier":                  "above_sat",
		"derived_contract_character":    "product",
		"derived_requirements_doc_type": "specification",
	}

	docs := GenerateChecklist(fields, rs)
	require.Len(t, docs, 3)

	// Sorted by template sort order.
	assert.Equal(t, "igce", docs[0].DocTypeKey)
	assert.Equal(t, "ja", docs[1].DocTypeKey)
	assert.Equal(t, "qasp", docs[2].DocTypeKey)

	assert.True(t, docs[0].Required)
	assert.Equal(t, "iss", docs[0].RequiredBeforeGate)
	assert.True(t, docs[1].Required)
	assert.False(t, docs[2].Required, "optional rule yields a non-required entry")
}

func TestGenerateChecklistPriorityOverride(t *testing.T) {
	rs := checklistRuleSet()
	fields := Fields{
		"derived_acquisition_type": "brand_name_sole_source",
		"derived_tier":             "micro",
	}

	docs := GenerateChecklist(fields, rs)

	// The not_required micro rule outranks the sole-source rule, so the J&A
	// is suppressed entirely.
	for _, d := range docs {
		assert.NotEqual(t, "ja", d.DocTypeKey)
	}
}

func TestGenerateChecklistPriorityTieLowestIDWins(t *testing.T) {
	rs := &RuleSet{
		DocumentTemplates: []DocumentTemplate{
			{ID: 1, DocTypeKey: "igce", Name: "IGCE", SortOrder: 1},
		},
		DocumentRules: []DocumentRule{
			{ID: 7, DocumentTemplateID: 1, Applicability: ApplicabilityOptional, Priority: 5},
			{ID: 3, DocumentTemplateID: 1, Applicability: ApplicabilityRequired, Priority: 5},
		},
	}

	docs := GenerateChecklist(Fields{}, rs)
	require.Len(t, docs, 1)
	assert.True(t, docs[0].Required, "earliest-inserted rule wins a priority tie")
}

func TestGenerateChecklistOrphanedRule(t *testing.T) {
	rs := &RuleSet{
		DocumentRules: []DocumentRule{
			// Rule pointing at a template that no longer exists.
			{ID: 1, DocumentTemplateID: 99, Applicability: ApplicabilityRequired},
		},
	}

	docs := GenerateChecklist(Fields{}, rs)
	assert.Empty(t, docs)
}

func TestGenerateChecklistEmptyRuleSet(t *testing.T) {
	assert.Empty(t, GenerateChecklist(Fields{"derived_tier": "sat"}, &RuleSet{}))
}
