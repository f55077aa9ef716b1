package prompts

func Letter(cv, jobDescription, lang, schema string) string {
	rules := []string{
		languageRule(lang),
		jsonOnly,
		"- body: three or four short paragraphs, 250-400 words, connecting CV evidence to the job requirements.",
		"- greeting and closing: plain, without placeholders such as [Name].",
		"- Use only facts present in the CV.",
	}
	userCtx := map[string]interface{}{
		"cv":              cv,
		"job_description": jobDescription,
		"instructions":    withSchema(joinLines(rules), schema),
	}
	return build("Write cover letter", userCtx)
}
