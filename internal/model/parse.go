package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/xeipuuv/gojsonschema"
)

// ErrMalformed marks a model response that could not be parsed into the
// expected shape. Callers substitute a fallback payload.
var ErrMalformed = errors.New("malformed model output")

// StripCodeFences removes a surrounding markdown code fence (with or without a
// language tag) from s.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && strings.IndexFunc(s[:i], unicode.IsSpace) < 0 && !strings.ContainsAny(s[:i], "{[") {
		s = s[i+1:]
	} else {
		s = strings.TrimLeftFunc(s, unicode.IsLetter)
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractJSONObject returns the outermost {...} span of s, for responses that
// wrap the object in prose.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// decode runs the untrusted-text pipeline: fences, object extraction, schema
// validation, typed decode.
func decode(raw string, schema gojsonschema.JSONLoader, dst interface{}) error {
	body := StripCodeFences(raw)
	if !json.Valid([]byte(body)) {
		sub, ok := extractJSONObject(body)
		if !ok || !json.Valid([]byte(sub)) {
			return fmt.Errorf("%w: response is not a JSON object", ErrMalformed)
		}
		body = sub
	}
	if err := validateJSON(schema, []byte(body)); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func ParseAnalysis(raw string) (*AnalysisResult, error) {
	var out AnalysisResult
	if err := decode(raw, analysisLoader, &out); err != nil {
		return nil, err
	}
	for i := range out.Suggestions {
		if out.Suggestions[i].Confidence == "" {
			out.Suggestions[i].Confidence = ConfidenceMedium
		}
	}
	return &out, nil
}

func ParseQuestions(raw string) (*QuestionSet, error) {
	var out QuestionSet
	if err := decode(raw, questionsLoader, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func ParseLetter(raw string) (*LetterText, error) {
	var out LetterText
	if err := decode(raw, letterLoader, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FallbackAnalysis is the deterministic low-confidence payload used when the
// analysis response is unusable.
func FallbackAnalysis() *AnalysisResult {
	return &AnalysisResult{
		Summary: "Automated analysis unavailable: the model response could not be parsed.",
		Suggestions: []Suggestion{{
			Section:    "general",
			ChangeKind: "general",
			Proposed:   "Review the document manually; automated suggestions could not be generated this time.",
			Rationale:  "fallback: model output failed validation",
			Confidence: ConfidenceLow,
		}},
		Fallback: true,
	}
}

func FallbackQuestions() *QuestionSet {
	return &QuestionSet{
		Questions: []Question{
			{Question: "Walk me through the experience on your CV that is most relevant to this role.", Category: "general"},
			{Question: "Describe a difficult problem you solved recently and how you approached it.", Category: "behavioral"},
			{Question: "Why are you interested in this position?", Category: "motivation"},
		},
		Fallback: true,
	}
}

func FallbackLetter() *LetterText {
	return &LetterText{
		Body:     "A cover letter could not be generated automatically. Please try again or write the letter manually.",
		Fallback: true,
	}
}
