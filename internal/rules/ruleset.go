package rules

import "time"

// RuleSet is an immutable snapshot of all rule tables. It is loaded once per
// operation and passed into the classifier, checklist generator, advisory
// evaluator and template selector, so those stay pure and unit-testable
// against synthetic rule data.
type RuleSet struct {
	IntakePaths       []IntakePath             `json:"intake_paths"`
	Thresholds        []ThresholdConfig        `json:"thresholds"`
	DocumentTemplates []DocumentTemplate       `json:"document_templates"`
	DocumentRules     []DocumentRule           `json:"document_rules"`
	AdvisoryTriggers  []AdvisoryTriggerRule    `json:"advisory_triggers"`
	PipelineConfigs   []AdvisoryPipelineConfig `json:"pipeline_configs"`
	Templates         []ApprovalTemplate       `json:"templates"`
}

// IntakePath is one row of the intake decision table: a combination of
// wizard answers mapped to a derived classification. Rows come from the
// rules workbook import and are reference data at request time.
type IntakePath struct {
	ID                  int64  `json:"id"`
	PathID              string `json:"path_id"`
	NeedType            string `json:"need_type"`         // new | continue_extend | change_existing
	Situation           string `json:"situation"`         // q2, set for continue_extend paths
	ChangeType          string `json:"change_type"`       // q5, set for change_existing paths
	VendorKnown         string `json:"vendor_known"`      // q3, set for new paths (no | yes_sole)
	BuyCategory         string `json:"buy_category"`      // product | service | software_license | mixed
	MixedPredominant    string `json:"mixed_predominant"` // set when buy_category is mixed
	AcquisitionType     string `json:"acquisition_type"`
	Pipeline            string `json:"pipeline"`
	ContractCharacter   string `json:"contract_character"`
	RequirementsDocType string `json:"requirements_doc_type"`
	SCLSApplicable      bool   `json:"scls_applicable"`
	QASPRequired        bool   `json:"qasp_required"`
	EvalApproach        string `json:"eval_approach"`
	ApprovalTemplateKey string `json:"approval_template_key"`
	AdvisoryTriggers    string `json:"advisory_triggers"` // comma-separated codes, "" or "None"
}

// ThresholdConfig is a dollar threshold row, effective-dated so FAR updates
// can be staged ahead of time.
type ThresholdConfig struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"` // micro_purchase | simplified_acquisition | above_sat | ja_threshold
	DollarLimit   int64      `json:"dollar_limit"`
	EffectiveDate time.Time  `json:"effective_date"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	FARReference  string     `json:"far_reference"`
	Description   string     `json:"description,omitempty"`
}

// DocumentTemplate describes one package document type.
type DocumentTemplate struct {
	ID                 int64  `json:"id"`
	DocTypeKey         string `json:"doc_type_key"`
	Name               string `json:"name"`
	RequiredBeforeGate string `json:"required_before_gate,omitempty"`
	SortOrder          int    `json:"sort_order"`
}

// DocumentRule decides whether a document type applies to a request.
// Multiple rules for the same template are resolved by priority (highest
// wins, ties broken by lowest id).
type DocumentRule struct {
	ID                 int64      `json:"id"`
	DocumentTemplateID int64      `json:"document_template_id"`
	Condition          *Condition `json:"condition,omitempty"`
	Applicability      string     `json:"applicability"` // required | optional | not_required
	Priority           int        `json:"priority"`
}

// Document applicability values.
const (
	ApplicabilityRequired    = "required"
	ApplicabilityOptional    = "optional"
	ApplicabilityNotRequired = "not_required"
)

// AdvisoryTriggerRule fires an advisory team review when its condition
// matches. Condition is the structured replacement for the workbook's
// free-text trigger description (kept in TriggerText for display); rules
// with a nil condition only fire via intake-path trigger codes.
type AdvisoryTriggerRule struct {
	ID            int64      `json:"id"`
	TriggerID     string     `json:"trigger_id"`
	Team          string     `json:"team"` // free-text team name from the workbook
	TriggerText   string     `json:"trigger_text"`
	Condition     *Condition `json:"condition,omitempty"`
	FeedsIntoGate string     `json:"feeds_into_gate"`
	BlocksGate    bool       `json:"blocks_gate"`
	SLADays       int        `json:"sla_days"`
}

// AdvisoryPipelineConfig is one cell of the admin-configurable
// pipeline x team matrix, layered over the rule-table defaults.
type AdvisoryPipelineConfig struct {
	ID           int64  `json:"id"`
	PipelineType string `json:"pipeline_type"`
	Team         string `json:"team"`
	IsEnabled    bool   `json:"is_enabled"`
	SLADays      int    `json:"sla_days"`
	BlocksGate   string `json:"blocks_gate,omitempty"`
	ThresholdMin int64  `json:"threshold_min,omitempty"`
}

// ApprovalTemplate is a named, keyed recipe of approval steps.
type ApprovalTemplate struct {
	ID           int64                  `json:"id"`
	TemplateKey  string                 `json:"template_key"`
	Name         string                 `json:"name"`
	PipelineType string                 `json:"pipeline_type"`
	IsDefault    bool                   `json:"is_default"`
	Steps        []ApprovalTemplateStep `json:"steps"`
}

// ApprovalTemplateStep is one ordered step definition within a template.
type ApprovalTemplateStep struct {
	ID            int64      `json:"id"`
	TemplateID    int64      `json:"template_id"`
	StepNumber    int        `json:"step_number"`
	StepName      string     `json:"step_name"`
	ApproverRole  string     `json:"approver_role"`
	SLADays       int        `json:"sla_days"`
	IsEnabled     bool       `json:"is_enabled"`
	IsConditional bool       `json:"is_conditional"`
	Condition     *Condition `json:"condition,omitempty"`
}

// PipelineConfig returns the matrix cell for a pipeline/team pair, or nil.
func (rs *RuleSet) PipelineConfig(pipeline, team string) *AdvisoryPipelineConfig {
	for i := range rs.PipelineConfigs {
		c := &rs.PipelineConfigs[i]
		if c.PipelineType == pipeline && c.Team == team {
			return c
		}
	}
	return nil
}
