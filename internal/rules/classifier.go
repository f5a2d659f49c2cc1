package rules

import (
	"sort"
	"time"
)

// Answers holds the intake wizard responses that drive classification.
type Answers struct {
	NeedType         string
	Situation        string
	ChangeType       string
	VendorKnown      string
	BuyCategory      string
	MixedPredominant string
	EstimatedValue   int64 // whole dollars
}

// Classification is the derived result of intake: what kind of acquisition
// this is and which process applies. Only the classifier writes these
// values.
type Classification struct {
	AcquisitionType     string `json:"derived_acquisition_type"`
	Tier                string `json:"derived_tier"`
	Pipeline            string `json:"derived_pipeline"`
	ContractCharacter   string `json:"derived_contract_character"`
	RequirementsDocType string `json:"derived_requirements_doc_type"`
	SCLSApplicable      bool   `json:"derived_scls_applicable"`
	QASPRequired        bool   `json:"derived_qasp_required"`
	EvalApproach        string `json:"derived_eval_approach"`
	ApprovalTemplateKey string `json:"approval_template_key,omitempty"`
	AdvisoryTriggers    string `json:"advisory_triggers,omitempty"`
	MatchedPathID       string `json:"matched_path_id,omitempty"`
	Heuristic           bool   `json:"heuristic"`
}

// Dollar tiers.
const (
	TierMicro    = "micro"
	TierSAT      = "sat"
	TierAboveSAT = "above_sat"
	TierMajor    = "major"
)

// Fallback dollar limits (FAR 2.101) used when the threshold table is not
// provisioned. Classification must never fail on missing rule data.
const (
	defaultMicroLimit    = 15_000
	defaultSATLimit      = 350_000
	defaultAboveSATLimit = 9_000_000
)

// Derive classifies intake answers against the rule set. It is a pure
// function: identical inputs produce identical outputs and nothing is
// mutated. When no intake path matches, a deterministic heuristic
// classification is returned instead of an error so the wizard preview
// keeps working on incomplete data.
func Derive(answers Answers, rs *RuleSet, now time.Time) Classification {
	tier := TierForValue(answers.EstimatedValue, rs.Thresholds, now)

	if path := matchIntakePath(answers, rs.IntakePaths); path != nil {
		return Classification{
			AcquisitionType:     path.AcquisitionType,
			Tier:                tier,
			Pipeline:            resolvePipeline(path.Pipeline, tier),
			ContractCharacter:   path.ContractCharacter,
			RequirementsDocType: path.RequirementsDocType,
			SCLSApplicable:      path.SCLSApplicable,
			QASPRequired:        path.QASPRequired,
			EvalApproach:        path.EvalApproach,
			ApprovalTemplateKey: path.ApprovalTemplateKey,
			AdvisoryTriggers:    path.AdvisoryTriggers,
			MatchedPathID:       path.PathID,
		}
	}

	return heuristicClassification(answers, tier)
}

// TierForValue computes the dollar tier from the effective-dated threshold
// table. For each threshold name the most recently effective row covering
// now is used; missing rows fall back to the FAR defaults.
func TierForValue(value int64, thresholds []ThresholdConfig, now time.Time) string {
	micro := effectiveLimit(thresholds, "micro_purchase", now, defaultMicroLimit)
	sat := effectiveLimit(thresholds, "simplified_acquisition", now, defaultSATLimit)
	aboveSAT := effectiveLimit(thresholds, "above_sat", now, defaultAboveSATLimit)

	switch {
	case value <= micro:
		return TierMicro
	case value <= sat:
		return TierSAT
	case value <= aboveSAT:
		return TierAboveSAT
	default:
		return TierMajor
	}
}

func effectiveLimit(thresholds []ThresholdConfig, name string, now time.Time, fallback int64) int64 {
	var best *ThresholdConfig
	for i := range thresholds {
		t := &thresholds[i]
		if t.Name != name {
			continue
		}
		if t.EffectiveDate.After(now) {
			continue
		}
		if t.EndDate != nil && t.EndDate.Before(now) {
			continue
		}
		if best == nil || t.EffectiveDate.After(best.EffectiveDate) {
			best = t
		}
	}
	if best == nil {
		return fallback
	}
	return best.DollarLimit
}

// matchIntakePath finds the best-matching decision-table row: every
// populated key field on the row must equal the answer, and among matches
// the row constraining the most fields wins (lowest id breaks ties).
func matchIntakePath(answers Answers, paths []IntakePath) *IntakePath {
	type scored struct {
		path  *IntakePath
		score int
	}
	var matches []scored

	for i := range paths {
		p := &paths[i]
		score, ok := scorePath(answers, p)
		if ok {
			matches = append(matches, scored{path: p, score: score})
		}
	}
	if len(matches) == 0 {
		return nil
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].path.ID < matches[j].path.ID
	})
	return matches[0].path
}

func scorePath(answers Answers, p *IntakePath) (int, bool) {
	score := 0

	keys := []struct {
		rowValue string
		answer   string
	}{
		{p.NeedType, answers.NeedType},
		{p.Situation, answers.Situation},
		{p.ChangeType, answers.ChangeType},
		{p.VendorKnown, answers.VendorKnown},
		{p.BuyCategory, answers.BuyCategory},
		{p.MixedPredominant, answers.MixedPredominant},
	}
	for _, k := range keys {
		if !keySet(k.rowValue) {
			continue
		}
		if k.rowValue != k.answer {
			return 0, false
		}
		score++
	}
	if score == 0 {
		return 0, false
	}
	return score, true
}

// keySet reports whether a decision-table cell constrains its input.
// The workbook uses "-" for don't-care cells.
func keySet(v string) bool {
	return v != "" && v != "-"
}

// resolvePipeline maps the workbook's value-dependent pipeline marker to a
// concrete pipeline by tier.
func resolvePipeline(pipeline, tier string) string {
	if pipeline != "depends_on_value" {
		return pipeline
	}
	switch tier {
	case TierMicro:
		return "micro"
	case TierSAT:
		return "abbreviated"
	default:
		return "full"
	}
}

// heuristicClassification is the minimal fallback when no intake path
// matches: need type drives the acquisition type, tier drives the pipeline.
func heuristicClassification(answers Answers, tier string) Classification {
	acqType := "new_competitive"
	switch answers.NeedType {
	case "new":
		if answers.VendorKnown == "yes_sole" {
			acqType = "brand_name_sole_source"
		}
	case "continue_extend":
		acqType = "option_exercise"
	case "change_existing":
		acqType = "bilateral_mod"
	}

	character := answers.BuyCategory
	switch answers.BuyCategory {
	case "software_license":
		character = "product"
	case "mixed":
		if answers.MixedPredominant == "predominantly_product" {
			character = "mixed_product"
		} else {
			character = "mixed_service"
		}
	case "":
		character = "service"
	}

	serviceLike := character == "service" || character == "mixed_service"

	docType := "specification"
	evalApproach := "lpta"
	if serviceLike {
		docType = "pws"
		evalApproach = "best_value"
	} else if answers.BuyCategory == "software_license" {
		docType = "description"
	}

	pipeline := "full"
	switch tier {
	case TierMicro:
		pipeline = "micro"
	case TierSAT:
		pipeline = "abbreviated"
	}

	return Classification{
		AcquisitionType:     acqType,
		Tier:                tier,
		Pipeline:            pipeline,
		ContractCharacter:   character,
		RequirementsDocType: docType,
		SCLSApplicable:      serviceLike,
		QASPRequired:        serviceLike && tier != TierMicro,
		EvalApproach:        evalApproach,
		Heuristic:           true,
	}
}
