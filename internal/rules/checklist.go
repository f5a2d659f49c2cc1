package rules

import "sort"

// DocRequirement is one entry of the generated document checklist.
type DocRequirement struct {
	DocumentTemplateID int64  `json:"document_template_id"`
	DocTypeKey         string `json:"doc_type_key"`
	Title              string `json:"title"`
	Required           bool   `json:"required"`
	RequiredBeforeGate string `json:"required_before_gate,omitempty"`
	sortOrder          int
}

// GenerateChecklist evaluates every document rule against the request's
// field view and returns the applicable documents. When several rules match
// the same document template, the highest-priority rule decides (ties go to
// the earliest-inserted rule); a winning not_required rule suppresses the
// document entirely.
func GenerateChecklist(fields Fields, rs *RuleSet) []DocRequirement {
	templates := make(map[int64]*DocumentTemplate, len(rs.DocumentTemplates))
	for i := range rs.DocumentTemplates {
		templates[rs.DocumentTemplates[i].ID] = &rs.DocumentTemplates[i]
	}

	// Winning rule per document template.
	winners := make(map[int64]*DocumentRule)
	for i := range rs.DocumentRules {
		rule := &rs.DocumentRules[i]
		if !rule.Condition.Evaluate(fields) {
			continue
		}
		current, ok := winners[rule.DocumentTemplateID]
		if !ok || rule.Priority > current.Priority ||
			(rule.Priority == current.Priority && rule.ID < current.ID) {
			winners[rule.DocumentTemplateID] = rule
		}
	}

	var docs []DocRequirement
	for templateID, rule := range winners {
		if rule.Applicability == ApplicabilityNotRequired {
			continue
		}
		tmpl, ok := templates[templateID]
		if !ok {
			continue
		}
		docs = append(docs, DocRequirement{
			DocumentTemplateID: tmpl.ID,
			DocTypeKey:         tmpl.DocTypeKey,
			Title:              tmpl.Name,
			Required:           rule.Applicability == ApplicabilityRequired,
			RequiredBeforeGate: tmpl.RequiredBeforeGate,
			sortOrder:          tmpl.SortOrder,
		})
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].sortOrder != docs[j].sortOrder {
			return docs[i].sortOrder < docs[j].sortOrder
		}
		return docs[i].DocTypeKey < docs[j].DocTypeKey
	})
	return docs
}
