package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func testRuleSet() *RuleSet {
	return &RuleSet{
		IntakePaths: []IntakePath{
			{
				ID:                  1,
				PathID:              "P-01",
				NeedType:            "new",
				VendorKnown:         "yes_sole",
				BuyCategory:         "product",
				AcquisitionType:     "brand_name_sole_source",
				Pipeline:            "full",
				ContractCharacter:   "product",
				RequirementsDocType: "specification",
				EvalApproach:        "lpta",
				ApprovalTemplateKey: "full_standard",
				AdvisoryTriggers:    "SCRM, SBO",
			},
			{
				ID:                  2,
				PathID:              "P-02",
				NeedType:            "new",
				BuyCategory:         "product",
				AcquisitionType:     "new_competitive",
				Pipeline:            "depends_on_value",
				ContractCharacter:   "product",
				RequirementsDocType: "specification",
				EvalApproach:        "lpta",
				AdvisoryTriggers:    "None",
			},
			{
				ID:                  3,
				PathID:              "P-03",
				NeedType:            "continue_extend",
				Situation:           "option_remaining",
				AcquisitionType:     "option_exercise",
				Pipeline:            "ko_only",
				ContractCharacter:   "-",
				RequirementsDocType: "-",
				AdvisoryTriggers:    "",
			},
		},
		Thresholds: []ThresholdConfig{
			{ID: 1, Name: "micro_purchase", DollarLimit: 15_000, EffectiveDate: testNow.AddDate(-1, 0, 0)},
			{ID: 2, Name: "simplified_acquisition", DollarLimit: 350_000, EffectiveDate: testNow.AddDate(-1, 0, 0)},
			{ID: 3, Name: "above_sat", DollarLimit: 9_000_000, EffectiveDate: testNow.AddDate(-1, 0, 0)},
		},
	}
}

func TestDeriveBrandNameSoleSource(t *testing.T) {
	rs := testRuleSet()
	answers := Answers{
		NeedType:       "new",
		VendorKnown:    "yes_sole",
		BuyCategory:    "product",
		EstimatedValue: 380_000,
	}

	cls := Derive(answers, rs, testNow)

	assert.Equal(t, "brand_name_sole_source", cls.AcquisitionType)
	assert.Equal(t, TierAboveSAT, cls.Tier)
	assert.Equal(t, "full", cls.Pipeline)
	assert.Equal(t, "full_standard", cls.ApprovalTemplateKey)
	assert.Equal(t, "SCRM, SBO", cls.AdvisoryTriggers)
	assert.Equal(t, "P-01", cls.MatchedPathID)
	assert.False(t, cls.Heuristic)
}

func TestDeriveIsDeterministic(t *testing.T) {
	rs := testRuleSet()
	answers := Answers{
		NeedType:       "new",
		VendorKnown:    "yes_sole",
		BuyCategory:    "product",
		EstimatedValue: 380_000,
	}

	first := Derive(answers, rs, testNow)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Derive(answers, rs, testNow))
	}
}

func TestDeriveMostSpecificPathWins(t *testing.T) {
	rs := testRuleSet()

	// yes_sole matches both P-01 (3 keys) and P-02 (2 keys); P-01 wins.
	cls := Derive(Answers{NeedType: "new", VendorKnown: "yes_sole", BuyCategory: "product", EstimatedValue: 5_000}, rs, testNow)
	assert.Equal(t, "P-01", cls.MatchedPathID)

	// Without a vendor answer only P-02 matches.
	cls = Derive(Answers{NeedType: "new", BuyCategory: "product", EstimatedValue: 5_000}, rs, testNow)
	assert.Equal(t, "P-02", cls.MatchedPathID)
}

func TestDerivePipelineDependsOnValue(t *testing.T) {
	rs := testRuleSet()
	answers := Answers{NeedType: "new", BuyCategory: "product"}

	answers.EstimatedValue = 5_000
	assert.Equal(t, "micro", Derive(answers, rs, testNow).Pipeline)

	answers.EstimatedValue = 100_000
	assert.Equal(t, "abbreviated", Derive(answers, rs, testNow).Pipeline)

	answers.EstimatedValue = 1_000_000
	assert.Equal(t, "full", Derive(answers, rs, testNow).Pipeline)
}

func TestDeriveHeuristicFallback(t *testing.T) {
	rs := testRuleSet()

	cls := Derive(Answers{
		NeedType:       "change_existing",
		ChangeType:     "add_funding",
		BuyCategory:    "service",
		EstimatedValue: 50_000,
	}, rs, testNow)

	require.True(t, cls.Heuristic)
	assert.Equal(t, "bilateral_mod", cls.AcquisitionType)
	assert.Equal(t, TierSAT, cls.Tier)
	assert.Equal(t, "pws", cls.RequirementsDocType)
	assert.True(t, cls.SCLSApplicable)
	assert.True(t, cls.QASPRequired)
}

func TestDeriveHeuristicMicroNoQASP(t *testing.T) {
	cls := Derive(Answers{NeedType: "new", BuyCategory: "service", EstimatedValue: 4_000}, &RuleSet{}, testNow)

	require.True(t, cls.Heuristic)
	assert.True(t, cls.SCLSApplicable)
	assert.False(t, cls.QASPRequired, "micro purchases never require a QASP")
}

func TestTierForValueBoundaries(t *testing.T) {
	thresholds := testRuleSet().Thresholds

	tests := []struct {
		value int64
		tier  string
	}{
		{0, TierMicro},
		{15_000, TierMicro},
		{15_001, TierSAT},
		{350_000, TierSAT},
		{350_001, TierAboveSAT},
		{9_000_000, TierAboveSAT},
		{9_000_001, TierMajor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.tier, TierForValue(tt.value, thresholds, testNow), "value %d", tt.value)
	}
}

func TestTierForValueEffectiveDates(t *testing.T) {
	thresholds := []ThresholdConfig{
		// Old limit, superseded.
		{ID: 1, Name: "micro_purchase", DollarLimit: 10_000, EffectiveDate: testNow.AddDate(-2, 0, 0)},
		// Current limit.
		{ID: 2, Name: "micro_purchase", DollarLimit: 15_000, EffectiveDate: testNow.AddDate(0, -1, 0)},
		// Staged future increase, not yet effective.
		{ID: 3, Name: "micro_purchase", DollarLimit: 25_000, EffectiveDate: testNow.AddDate(0, 1, 0)},
	}

	assert.Equal(t, TierMicro, TierForValue(14_000, thresholds, testNow))
	assert.Equal(t, TierSAT, TierForValue(20_000, thresholds, testNow))

	// After the staged row takes effect the same value is micro.
	later := testNow.AddDate(0, 2, 0)
	assert.Equal(t, TierMicro, TierForValue(20_000, thresholds, later))
}

func TestTierForValueEmptyTableUsesDefaults(t *testing.T) {
	assert.Equal(t, TierMicro, TierForValue(15_000, nil, testNow))
	assert.Equal(t, TierSAT, TierForValue(100_000, nil, testNow))
	assert.Equal(t, TierAboveSAT, TierForValue(1_000_000, nil, testNow))
	assert.Equal(t, TierMajor, TierForValue(10_000_000, nil, testNow))
}

func TestTierForValueEndDatedRowIgnored(t *testing.T) {
	ended := testNow.AddDate(0, -1, 0)
	thresholds := []ThresholdConfig{
		{ID: 1, Name: "micro_purchase", DollarLimit: 25_000, EffectiveDate: testNow.AddDate(-1, 0, 0), EndDate: &ended},
	}

	// The ended row no longer applies; the default limit does.
	assert.Equal(t, TierSAT, TierForValue(20_000, thresholds, testNow))
}
