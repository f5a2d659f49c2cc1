package rules

// SelectTemplate finds the approval template for a request. An explicit
// template key (from the intake-path derivation or a per-request override)
// wins over pipeline-type lookup. Returns nil when neither matches — the
// caller reports that as a clean submission failure.
func SelectTemplate(rs *RuleSet, pipeline, templateKey string) *ApprovalTemplate {
	if templateKey != "" {
		for i := range rs.Templates {
			if rs.Templates[i].TemplateKey == templateKey {
				return &rs.Templates[i]
			}
		}
	}
	if pipeline == "" {
		return nil
	}
	for i := range rs.Templates {
		if rs.Templates[i].PipelineType == pipeline {
			return &rs.Templates[i]
		}
	}
	return nil
}
