package model

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"resume-copilot/internal/domain"
)

const analysisSchema = `{
  "type": "object",
  "required": ["summary", "suggestions"],
  "properties": {
    "summary": {"type": "string", "minLength": 1},
    "score": {"type": "number", "minimum": 0, "maximum": 100},
    "strengths": {"type": "array", "items": {"type": "string"}},
    "weaknesses": {"type": "array", "items": {"type": "string"}},
    "suggestions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["section", "proposed"],
        "properties": {
          "section": {"type": "string"},
          "change_kind": {"type": "string"},
          "original": {"type": "string"},
          "proposed": {"type": "string", "minLength": 1},
          "rationale": {"type": "string"},
          "confidence": {"enum": ["low", "medium", "high"]}
        }
      }
    }
  }
}`

const questionsSchema = `{
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["question"],
        "properties": {
          "question": {"type": "string", "minLength": 1},
          "category": {"type": "string"},
          "hint": {"type": "string"}
        }
      }
    }
  }
}`

const letterSchema = `{
  "type": "object",
  "required": ["body"],
  "properties": {
    "greeting": {"type": "string"},
    "body": {"type": "string", "minLength": 1},
    "closing": {"type": "string"}
  }
}`

var (
	analysisLoader  = gojsonschema.NewStringLoader(analysisSchema)
	questionsLoader = gojsonschema.NewStringLoader(questionsSchema)
	letterLoader    = gojsonschema.NewStringLoader(letterSchema)
)

// validateJSON validates a raw JSON document against one of the schemas above.
func validateJSON(schema gojsonschema.JSONLoader, raw []byte) error {
	res, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return err
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("schema validation failed: %s", strings.Join(msgs, "; "))
}

// Schema returns the JSON schema the response for kind must satisfy, or ""
// for kinds whose output is free text.
func Schema(kind domain.TaskKind) string {
	switch kind {
	case domain.TaskAnalysis, domain.TaskJobMatch:
		return analysisSchema
	case domain.TaskQuestionGeneration:
		return questionsSchema
	case domain.TaskLetterGeneration:
		return letterSchema
	}
	return ""
}
