package prompts

// Analysis asks for a scored review of a CV with concrete, section-scoped
// rewrite suggestions. jobDescription is optional; when present the review is
// a job match.
func Analysis(cv, jobDescription, lang, schema string) string {
	rules := []string{
		languageRule(lang),
		jsonOnly,
		"- summary: two or three sentences on overall quality.",
		"- score: 0-100, how ready the CV is to send.",
		"- suggestions: each one a single replaceable change. 'section' names the CV section, " +
			"'original' quotes the exact text being replaced (empty when adding), 'proposed' is the full replacement text, " +
			"'confidence' is low, medium or high.",
		"- Never invent employers, dates, degrees or figures that are not in the CV.",
	}
	task := "Analyze CV"
	userCtx := map[string]interface{}{"cv": cv}
	if jobDescription != "" {
		task = "Match CV against job description"
		rules = append(rules, "- Focus suggestions on the requirements of the job description; "+
			"list missing requirements under weaknesses.")
		userCtx["job_description"] = jobDescription
	}
	userCtx["instructions"] = withSchema(joinLines(rules), schema)
	return build(task, userCtx)
}
