package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"resume-copilot/internal/domain"
	"resume-copilot/internal/model"
	"resume-copilot/pkg/ai/prompts"
)

// Stage names as they appear in failure messages and degraded_stages.
const (
	stageParse       = "parse"
	stageAnalyze     = "analyze"
	stageExtract     = "extract-suggestions"
	stageQuestions   = "generate-questions"
	stageLetter      = "generate-letter"
	coverLetterKind  = "cover_letter"
	modelCachePrefix = "ai"
)

// defaultStages returns the ordered stages per kind. The persist step runs
// after every sequence, including a failed one.
func (e *Executor) defaultStages() map[domain.TaskKind][]Stage {
	parse := Stage{Name: stageParse, Run: e.parseStage}
	analyze := Stage{Name: stageAnalyze, Run: e.analyzeStage}
	extract := Stage{Name: stageExtract, Run: e.extractStage}
	return map[domain.TaskKind][]Stage{
		domain.TaskAnalysis:           {parse, analyze, extract},
		domain.TaskJobMatch:           {parse, analyze, extract},
		domain.TaskQuestionGeneration: {parse, {Name: stageQuestions, Run: e.questionsStage}},
		domain.TaskLetterGeneration:   {parse, {Name: stageLetter, Run: e.letterStage}, extract},
	}
}

func (e *Executor) parseStage(ctx context.Context, st *PipelineState) error {
	text := strings.TrimSpace(st.Inputs.SourceText)
	if text == "" && st.Inputs.DocumentID != nil {
		if e.documents == nil {
			return fmt.Errorf("no document store configured")
		}
		doc, err := e.documents.GetParsedText(ctx, *st.Inputs.DocumentID, st.Inputs.OwnerID)
		if err != nil {
			return fmt.Errorf("load document %s: %w", st.Inputs.DocumentID, err)
		}
		text = strings.TrimSpace(doc.Text)
	}
	if text == "" {
		return fmt.Errorf("%w: source document is empty", domain.ErrInvalidInput)
	}
	if e.maxChars > 0 && len(text) > e.maxChars {
		text = truncateRunes(text, e.maxChars)
	}
	st.Source = text
	st.JobDescription = strings.TrimSpace(st.Inputs.SecondaryText)
	st.Result.Meta.SourceChars = len(text)
	return nil
}

func (e *Executor) analyzeStage(ctx context.Context, st *PipelineState) error {
	prompt := prompts.Analysis(st.Source, st.JobDescription, st.Inputs.Language, model.Schema(st.Inputs.Kind))
	var parsed *model.AnalysisResult
	ok, err := e.generate(ctx, st, prompt, func(raw string) error {
		var perr error
		parsed, perr = model.ParseAnalysis(raw)
		return perr
	})
	if err != nil {
		return err
	}
	if !ok {
		parsed = model.FallbackAnalysis()
		st.degrade(stageAnalyze)
	}
	st.Result.Analysis = parsed
	return nil
}

func (e *Executor) questionsStage(ctx context.Context, st *PipelineState) error {
	prompt := prompts.Questions(st.Source, st.JobDescription, st.Inputs.Language, model.Schema(st.Inputs.Kind))
	var parsed *model.QuestionSet
	ok, err := e.generate(ctx, st, prompt, func(raw string) error {
		var perr error
		parsed, perr = model.ParseQuestions(raw)
		return perr
	})
	if err != nil {
		return err
	}
	if !ok {
		parsed = model.FallbackQuestions()
		st.degrade(stageQuestions)
	}
	st.Result.Questions = parsed
	return nil
}

func (e *Executor) letterStage(ctx context.Context, st *PipelineState) error {
	prompt := prompts.Letter(st.Source, st.JobDescription, st.Inputs.Language, model.Schema(st.Inputs.Kind))
	var parsed *model.LetterText
	ok, err := e.generate(ctx, st, prompt, func(raw string) error {
		var perr error
		parsed, perr = model.ParseLetter(raw)
		return perr
	})
	if err != nil {
		return err
	}
	if !ok {
		parsed = model.FallbackLetter()
		st.degrade(stageLetter)
	}
	st.Result.Letter = parsed
	return nil
}

// extractStage turns the stage outputs into one approval item per proposed
// change.
func (e *Executor) extractStage(ctx context.Context, st *PipelineState) error {
	docID := st.Inputs.DocumentID
	taskID := st.TaskID
	switch {
	case st.Result.Analysis != nil:
		for _, s := range st.Result.Analysis.Suggestions {
			raw, err := json.Marshal(s)
			if err != nil {
				return fmt.Errorf("encode suggestion: %w", err)
			}
			st.Items = append(st.Items, domain.ApprovalItem{
				DocumentID:      docID,
				TaskID:          &taskID,
				ChangeKind:      s.Kind(),
				OriginalContent: s.Original,
				ProposedContent: raw,
			})
		}
	case st.Result.Letter != nil:
		s := model.Suggestion{
			Section:    coverLetterKind,
			ChangeKind: coverLetterKind,
			Proposed:   st.Result.Letter.Text(),
			Confidence: model.ConfidenceMedium,
		}
		if st.Result.Letter.Fallback {
			s.Confidence = model.ConfidenceLow
		}
		raw, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode letter: %w", err)
		}
		st.Items = append(st.Items, domain.ApprovalItem{
			DocumentID:      docID,
			TaskID:          &taskID,
			ChangeKind:      coverLetterKind,
			ProposedContent: raw,
		})
	}
	return nil
}

// generate calls the model through the cache. It returns ok=false when the
// response could not be parsed (the caller substitutes a fallback) and a
// non-nil error only for upstream failures.
func (e *Executor) generate(ctx context.Context, st *PipelineState, prompt string, parse func(raw string) error) (bool, error) {
	key := modelCacheKey(st.Inputs.Kind, prompt)
	owner := st.Inputs.OwnerID

	if e.cache != nil {
		if cached, hit := e.cache.Get(ctx, key, owner); hit {
			var raw string
			if err := json.Unmarshal(cached, &raw); err == nil && parse(raw) == nil {
				st.Result.Meta.CacheHits++
				return true, nil
			}
			_ = e.cache.Delete(ctx, key, owner)
		}
	}

	raw, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		if !errors.Is(err, domain.ErrUpstream) {
			err = fmt.Errorf("%w: %v", domain.ErrUpstream, err)
		}
		return false, err
	}
	if err := parse(raw); err != nil {
		e.logger.Warn("model output rejected, using fallback",
			zap.String("task_id", st.TaskID.String()),
			zap.Int("response_len", len(raw)),
			zap.Error(err))
		return false, nil
	}
	if e.cache != nil {
		if b, err := json.Marshal(raw); err == nil {
			_ = e.cache.Set(ctx, key, owner, b, e.modelTTL)
		}
	}
	return true, nil
}

func modelCacheKey(kind domain.TaskKind, prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return modelCachePrefix + ":" + string(kind) + ":" + hex.EncodeToString(sum[:])
}

func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
