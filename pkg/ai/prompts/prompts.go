// Package prompts builds the instructions sent to the generation service.
// Each builder returns a single prompt string: an instruction header followed
// by a JSON context object carrying the user's material.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
)

const defaultLanguage = "English"

const jsonOnly = "Return ONLY a single JSON object that conforms to the JSON-SCHEMA below. " +
	"Do NOT include any explanatory text, backticks, or code fences."

func language(lang string) string {
	if strings.TrimSpace(lang) == "" {
		return defaultLanguage
	}
	return lang
}

func languageRule(lang string) string {
	return fmt.Sprintf("LANGUAGE: write every string value in %s.", language(lang))
}

func withSchema(instr, schema string) string {
	if schema == "" {
		return instr
	}
	return instr + "\n\nJSON-SCHEMA:\n" + schema
}

func mustMarshal(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

func build(task string, userCtx map[string]interface{}) string {
	return task + ":\n" + mustMarshal(userCtx)
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
