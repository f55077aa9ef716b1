package prompts

// Change is one approved edit passed to the merge prompt.
type Change struct {
	Kind     string `json:"kind"`
	Original string `json:"original,omitempty"`
	Proposed string `json:"proposed"`
}

// Artifact asks for the complete source document with every change applied.
// Unlike the other builders the expected output is markdown, not JSON.
func Artifact(source string, changes []Change, lang string) string {
	rules := []string{
		languageRule(lang),
		"Apply EVERY change in 'changes' to 'document' and return the COMPLETE updated document as markdown.",
		"- Where 'original' is set, replace that text with 'proposed'. Otherwise add 'proposed' to the section named by 'kind'.",
		"- Keep all other content unchanged. Do not add content that is not in 'document' or 'changes'.",
		"- Return only the document: no commentary, no code fences.",
	}
	userCtx := map[string]interface{}{
		"document":     source,
		"changes":      changes,
		"instructions": joinLines(rules),
	}
	return build("Merge approved changes", userCtx)
}
