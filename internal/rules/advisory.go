package rules

import "strings"

// AdvisoryTrigger is one fired advisory review: which team must review and
// which gate their review feeds into.
type AdvisoryTrigger struct {
	Team       string `json:"team"`
	BlocksGate string `json:"blocks_gate"`
	SLADays    int    `json:"sla_days"`
}

// Advisory teams.
const (
	TeamSCRM       = "scrm"
	TeamSBO        = "sbo"
	TeamCIO        = "cio"
	TeamSection508 = "section508"
	TeamFM         = "fm"
	TeamFedRAMP    = "fedramp"
)

// codeTeams maps workbook trigger codes to team keys.
var codeTeams = map[string]string{
	"SCRM":    TeamSCRM,
	"SBO":     TeamSBO,
	"CIO":     TeamCIO,
	"508":     TeamSection508,
	"FM":      TeamFM,
	"FEDRAMP": TeamFedRAMP,
}

// defaultGates is the fallback feeds-into gate per team when no trigger
// rule configures one.
var defaultGates = map[string]string{
	TeamSCRM:       "iss",
	TeamSBO:        "asr",
	TeamCIO:        "iss",
	TeamSection508: "asr",
	TeamFM:         "finance",
	TeamFedRAMP:    "iss",
}

const defaultAdvisorySLADays = 5

// EvaluateAdvisoryTriggers combines the two trigger sources — the matched
// intake path's code list and the structured conditions on advisory trigger
// rules — firing each team at most once. The admin pipeline/team matrix is
// layered on top: a disabled cell or an unmet minimum value suppresses the
// team, and a configured gate overrides the rule's gate. Missing rule
// tables simply contribute nothing; triggering never fails outright.
func EvaluateAdvisoryTriggers(fields Fields, cls Classification, value int64, rs *RuleSet) []AdvisoryTrigger {
	var triggers []AdvisoryTrigger
	fired := make(map[string]bool)

	add := func(team, gate string, sla int) {
		if team == "" || fired[team] {
			return
		}
		if cfg := rs.PipelineConfig(cls.Pipeline, team); cfg != nil {
			if !cfg.IsEnabled {
				return
			}
			if cfg.ThresholdMin > 0 && value < cfg.ThresholdMin {
				return
			}
			if cfg.BlocksGate != "" {
				gate = cfg.BlocksGate
			}
			if cfg.SLADays > 0 {
				sla = cfg.SLADays
			}
		}
		fired[team] = true
		triggers = append(triggers, AdvisoryTrigger{Team: team, BlocksGate: gate, SLADays: sla})
	}

	// Source 1: trigger codes from the matched intake path.
	for _, code := range ParseTriggerCodes(cls.AdvisoryTriggers) {
		team, ok := codeTeams[code]
		if !ok {
			continue
		}
		gate := defaultGates[team]
		sla := defaultAdvisorySLADays
		if rule := findTriggerRule(rs.AdvisoryTriggers, team); rule != nil {
			if g := NormalizeGate(rule.FeedsIntoGate); g != "" {
				gate = g
			}
			if rule.SLADays > 0 {
				sla = rule.SLADays
			}
		}
		add(team, gate, sla)
	}

	// Source 2: structured conditions on trigger rules. Rules without a
	// condition only fire via trigger codes.
	for i := range rs.AdvisoryTriggers {
		rule := &rs.AdvisoryTriggers[i]
		if rule.Condition == nil {
			continue
		}
		team := NormalizeTeam(rule.Team)
		if team == "" || fired[team] {
			continue
		}
		if !rule.Condition.Evaluate(fields) {
			continue
		}
		gate := NormalizeGate(rule.FeedsIntoGate)
		if gate == "" {
			gate = "asr"
		}
		sla := rule.SLADays
		if sla <= 0 {
			sla = defaultAdvisorySLADays
		}
		add(team, gate, sla)
	}

	return triggers
}

// ParseTriggerCodes splits the workbook's comma-separated code list.
// "None" (any case) and blank cells yield no codes.
func ParseTriggerCodes(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "none") {
		return nil
	}
	var codes []string
	for _, c := range strings.Split(raw, ",") {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}

// findTriggerRule locates the trigger rule for a team by fuzzy name match
// on the workbook's free-text team column.
func findTriggerRule(triggerRules []AdvisoryTriggerRule, team string) *AdvisoryTriggerRule {
	for i := range triggerRules {
		if NormalizeTeam(triggerRules[i].Team) == team {
			return &triggerRules[i]
		}
	}
	return nil
}

// NormalizeTeam maps the workbook's free-text team names to team keys.
func NormalizeTeam(name string) string {
	if name == "" {
		return ""
	}
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "scrm"):
		return TeamSCRM
	case strings.Contains(lower, "small business"), strings.Contains(lower, "sbo"):
		return TeamSBO
	case strings.Contains(lower, "508"):
		return TeamSection508
	case strings.Contains(lower, "fedramp"):
		return TeamFedRAMP
	case strings.Contains(lower, "cio"), strings.Contains(lower, "it governance"):
		return TeamCIO
	case strings.Contains(lower, "business manager"), strings.Contains(lower, "financial"), strings.Contains(lower, "fm"):
		return TeamFM
	}
	return strings.ReplaceAll(lower, " ", "_")
}

// NormalizeGate maps free-text gate names into the fixed gate vocabulary.
func NormalizeGate(gate string) string {
	if gate == "" {
		return ""
	}
	lower := strings.ToLower(strings.TrimSpace(gate))
	switch {
	case strings.Contains(lower, "iss"):
		return "iss"
	case strings.Contains(lower, "asr"):
		return "asr"
	case strings.Contains(lower, "ko"):
		return "ko_review"
	case strings.Contains(lower, "finance"):
		return "finance"
	case strings.Contains(lower, "pm"):
		return "iss"
	case strings.Contains(lower, "cor"):
		return "ko_review"
	}
	return strings.ReplaceAll(lower, " ", "_")
}
