package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func templateRuleSet() *RuleSet {
	return &RuleSet{
		Templates: []ApprovalTemplate{
			{ID: 1, TemplateKey: "full_standard", PipelineType: "full"},
			{ID: 2, TemplateKey: "full_sole_source", PipelineType: "full"},
			{ID: 3, TemplateKey: "micro_gpc", PipelineType: "micro"},
		},
	}
}

func TestSelectTemplateExplicitKeyWins(t *testing.T) {
	rs := templateRuleSet()

	tmpl := SelectTemplate(rs, "full", "full_sole_source")
	require.NotNil(t, tmpl)
	assert.Equal(t, "full_sole_source", tmpl.TemplateKey)
}

func TestSelectTemplatePipelineFallback(t *testing.T) {
	rs := templateRuleSet()

	tmpl := SelectTemplate(rs, "full", "")
	require.NotNil(t, tmpl)
	assert.Equal(t, "full_standard", tmpl.TemplateKey, "first template for the pipeline wins")

	tmpl = SelectTemplate(rs, "micro", "")
	require.NotNil(t, tmpl)
	assert.Equal(t, "micro_gpc", tmpl.TemplateKey)
}

func TestSelectTemplateUnknownKeyFallsBackToPipeline(t *testing.T) {
	rs := templateRuleSet()

	tmpl := SelectTemplate(rs, "micro", "no_such_key")
	require.NotNil(t, tmpl)
	assert.Equal(t, "micro_gpc", tmpl.TemplateKey)
}

func TestSelectTemplateNoMatch(t *testing.T) {
	rs := templateRuleSet()

	assert.Nil(t, SelectTemplate(rs, "clin_execution", ""))
	assert.Nil(t, SelectTemplate(rs, "", ""))
	assert.Nil(t, SelectTemplate(&RuleSet{}, "full", "full_standard"))
}
