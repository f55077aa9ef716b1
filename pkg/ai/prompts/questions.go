package prompts

// Questions asks for likely interview questions for the candidate, optionally
// tailored to a job description.
func Questions(cv, jobDescription, lang, schema string) string {
	rules := []string{
		languageRule(lang),
		jsonOnly,
		"- questions: 5 to 10 items mixing technical, behavioral and motivation categories.",
		"- hint: one sentence on what a strong answer covers, grounded in the CV.",
	}
	userCtx := map[string]interface{}{"cv": cv}
	if jobDescription != "" {
		userCtx["job_description"] = jobDescription
	}
	userCtx["instructions"] = withSchema(joinLines(rules), schema)
	return build("Generate interview questions", userCtx)
}
