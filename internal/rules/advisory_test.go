package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTriggerCodes(t *testing.T) {
	assert.Nil(t, ParseTriggerCodes(""))
	assert.Nil(t, ParseTriggerCodes("None"))
	assert.Nil(t, ParseTriggerCodes("none"))
	assert.Equal(t, []string{"SCRM"}, ParseTriggerCodes("SCRM"))
	assert.Equal(t, []string{"SCRM", "SBO", "508"}, ParseTriggerCodes("scrm, SBO ,508"))
}

func TestNormalizeTeam(t *testing.T) {
	tests := map[string]string{
		"SCRM Team":               "scrm",
		"Small Business Office":   "sbo",
		"Section 508 Coordinator": "section508",
		"CIO / IT Governance":     "cio",
		"FedRAMP PMO":             "fedramp",
		"Business Manager (FM)":   "fm",
		"Financial Management":    "fm",
	}
	for input, want := range tests {
		assert.Equal(t, want, NormalizeTeam(input), "input %q", input)
	}
}

func TestNormalizeGate(t *testing.T) {
	assert.Equal(t, "iss", NormalizeGate("ISS Review"))
	assert.Equal(t, "asr", NormalizeGate("ASR"))
	assert.Equal(t, "ko_review", NormalizeGate("KO Action"))
	assert.Equal(t, "finance", NormalizeGate("Finance Review"))
	assert.Equal(t, "iss", NormalizeGate("PM Approval"))
	assert.Equal(t, "", NormalizeGate(""))
}

func TestEvaluateAdvisoryTriggersFromCodes(t *testing.T) {
	rs := &RuleSet{}
	cls := Classification{Pipeline: "full", AdvisoryTriggers: "SCRM, SBO"}

	triggers := EvaluateAdvisoryTriggers(Fields{}, cls, 500_000, rs)
	require.Len(t, triggers, 2)

	byTeam := map[string]AdvisoryTrigger{}
	for _, tr := range triggers {
		byTeam[tr.Team] = tr
	}
	assert.Equal(t, "iss", byTeam[TeamSCRM].BlocksGate)
	assert.Equal(t, "asr", byTeam[TeamSBO].BlocksGate)
	assert.Equal(t, defaultAdvisorySLADays, byTeam[TeamSCRM].SLADays)
}

func TestEvaluateAdvisoryTriggersRuleOverridesDefaults(t *testing.T) {
	rs := &RuleSet{
		AdvisoryTriggers: []AdvisoryTriggerRule{
			{ID: 1, Team: "SCRM Team", FeedsIntoGate: "KO Action", SLADays: 10},
		},
	}
	cls := Classification{Pipeline: "full", AdvisoryTriggers: "SCRM"}

	triggers := EvaluateAdvisoryTriggers(Fields{}, cls, 500_000, rs)
	require.Len(t, triggers, 1)
	assert.Equal(t, TeamSCRM, triggers[0].Team)
	assert.Equal(t, "ko_review", triggers[0].BlocksGate)
	assert.Equal(t, 10, triggers[0].SLADays)
}

func TestEvaluateAdvisoryTriggersDedupeAcrossSources(t *testing.T) {
	rs := &RuleSet{
		AdvisoryTriggers: []AdvisoryTriggerRule{
			{
				ID: 1, Team: "SCRM Team", FeedsIntoGate: "ISS",
				Condition: &Condition{Field: "intake_buy_category", Operator: OpEq, Value: "product"},
			},
		},
	}
	cls := Classification{Pipeline: "full", AdvisoryTriggers: "SCRM"}
	fields := Fields{"intake_buy_category": "product"}

	// Fired by code AND by condition; the team appears once.
	triggers := EvaluateAdvisoryTriggers(fields, cls, 500_000, rs)
	assert.Len(t, triggers, 1)
}

func TestEvaluateAdvisoryTriggersNilConditionNeverFiresAlone(t *testing.T) {
	rs := &RuleSet{
		AdvisoryTriggers: []AdvisoryTriggerRule{
			// No condition and no code referencing it: stays dormant.
			{ID: 1, Team: "CIO", FeedsIntoGate: "ISS"},
		},
	}
	cls := Classification{Pipeline: "full", AdvisoryTriggers: "None"}

	assert.Empty(t, EvaluateAdvisoryTriggers(Fields{}, cls, 500_000, rs))
}

func TestEvaluateAdvisoryTriggersConditionSource(t *testing.T) {
	rs := &RuleSet{
		AdvisoryTriggers: []AdvisoryTriggerRule{
			{
				ID: 1, Team: "Section 508", FeedsIntoGate: "ASR", SLADays: 7,
				Condition: &Condition{Field: "intake_buy_category", Operator: OpIn, Values: []any{"software_license", "mixed"}},
			},
		},
	}
	cls := Classification{Pipeline: "full"}

	triggers := EvaluateAdvisoryTriggers(Fields{"intake_buy_category": "software_license"}, cls, 10_000, rs)
	require.Len(t, triggers, 1)
	assert.Equal(t, TeamSection508, triggers[0].Team)
	assert.Equal(t, "asr", triggers[0].BlocksGate)
	assert.Equal(t, 7, triggers[0].SLADays)

	assert.Empty(t, EvaluateAdvisoryTriggers(Fields{"intake_buy_category": "service"}, cls, 10_000, rs))
}

func TestEvaluateAdvisoryTriggersPipelineOverlay(t *testing.T) {
	rs := &RuleSet{
		PipelineConfigs: []AdvisoryPipelineConfig{
			// SCRM disabled for micro purchases.
			{ID: 1, PipelineType: "micro", Team: TeamSCRM, IsEnabled: false},
			// SBO only above $250k on the full pipeline, with a tighter gate and SLA.
			{ID: 2, PipelineType: "full", Team: TeamSBO, IsEnabled: true, ThresholdMin: 250_000, BlocksGate: "ko_review", SLADays: 3},
		},
	}

	micro := Classification{Pipeline: "micro", AdvisoryTriggers: "SCRM"}
	assert.Empty(t, EvaluateAdvisoryTriggers(Fields{}, micro, 5_000, rs),
		"disabled matrix cell suppresses the team")

	full := Classification{Pipeline: "full", AdvisoryTriggers: "SBO"}
	assert.Empty(t, EvaluateAdvisoryTriggers(Fields{}, full, 100_000, rs),
		"below the matrix minimum the team does not fire")

	triggers := EvaluateAdvisoryTriggers(Fields{}, full, 500_000, rs)
	require.Len(t, triggers, 1)
	assert.Equal(t, "ko_review", triggers[0].BlocksGate, "matrix gate overrides the default")
	assert.Equal(t, 3, triggers[0].SLADays)
}

func TestEvaluateAdvisoryTriggersUnknownCodeIgnored(t *testing.T) {
	cls := Classification{Pipeline: "full", AdvisoryTriggers: "SCRM, BOGUS"}

	triggers := EvaluateAdvisoryTriggers(Fields{}, cls, 500_000, &RuleSet{})
	assert.Len(t, triggers, 1)
}
