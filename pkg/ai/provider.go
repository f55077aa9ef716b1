package ai

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"strings"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"
	"go.uber.org/zap"

	"resume-copilot/internal/config"
	"resume-copilot/internal/domain"
)

const (
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-haiku-4-5-20251001"

	systemPrompt = "You are a career assistant reviewing CVs and job descriptions. Follow the output format instructions in each request exactly."
)

var errEmptyResponse = errors.New("empty response from model")

// Completer turns a prompt into raw model output.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ProviderCompleter talks to a hosted model through the jetify ai client.
type ProviderCompleter struct {
	model     jetapi.LanguageModel
	maxTokens int
	logger    *zap.Logger
}

// NewProviderCompleter builds the language model for cfg.Provider. Only the
// openai and anthropic providers are handled here.
func NewProviderCompleter(cfg config.AIConfig, logger *zap.Logger) (*ProviderCompleter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	model, err := buildLanguageModel(cfg)
	if err != nil {
		return nil, err
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &ProviderCompleter{model: model, maxTokens: maxTokens, logger: logger}, nil
}

func (p *ProviderCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := jetai.GenerateText(
		ctx,
		buildPromptMessages(systemPrompt, prompt),
		jetai.WithModel(p.model),
		jetai.WithMaxOutputTokens(p.maxTokens),
	)
	if err != nil {
		p.logger.Warn("model request failed", zap.Error(err))
		return "", fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}
	text, err := extractText(resp)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}
	return text, nil
}

// CompatibleCompleter speaks the plain chat completions protocol, which is
// what self-hosted openai-compatible servers implement.
type CompatibleCompleter struct {
	client    openaiclient.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

func NewCompatibleCompleter(cfg config.AIConfig, logger *zap.Logger) (*CompatibleCompleter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := normalizeOpenAIBaseURL(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("ai base url is empty")
	}
	opts := []openaioption.RequestOption{
		openaioption.WithBaseURL(base),
		openaioption.WithMaxRetries(0),
	}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		opts = append(opts, openaioption.WithAPIKey(key))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, openaioption.WithRequestTimeout(cfg.Timeout))
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &CompatibleCompleter{
		client:    openaiclient.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
	}, nil
}

func (c *CompatibleCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openaiclient.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openaiclient.ChatCompletionMessageParamUnion{
			openaiclient.SystemMessage(systemPrompt),
			openaiclient.UserMessage(prompt),
		},
		MaxTokens: openaiclient.Int(int64(c.maxTokens)),
	})
	if err != nil {
		c.logger.Warn("chat completion failed", zap.String("model", c.model), zap.Error(err))
		return "", fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: %w", domain.ErrUpstream, errEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// NewCompleter selects the generation backend named by cfg.Provider.
func NewCompleter(cfg config.AIConfig, logger *zap.Logger) (Completer, error) {
	switch config.NormalizeProvider(cfg.Provider) {
	case config.ProviderAIService, "":
		return NewClient(cfg.ServiceURL, cfg.Timeout, cfg.Attempts, logger), nil
	case config.ProviderOpenAICompatible:
		return NewCompatibleCompleter(cfg, logger)
	case config.ProviderOpenAI, config.ProviderAnthropic:
		p, err := NewProviderCompleter(cfg, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}

func buildPromptMessages(system, prompt string) []jetapi.Message {
	messages := make([]jetapi.Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, &jetapi.SystemMessage{Content: system})
	}
	messages = append(messages, &jetapi.UserMessage{Content: jetapi.ContentFromText(prompt)})
	return messages
}

func extractText(resp *jetapi.Response) (string, error) {
	if resp == nil {
		return "", errEmptyResponse
	}
	var full strings.Builder
	for _, block := range resp.Content {
		textBlock, ok := block.(*jetapi.TextBlock)
		if !ok || textBlock.Text == "" {
			continue
		}
		full.WriteString(textBlock.Text)
	}
	text := full.String()
	if strings.TrimSpace(text) == "" {
		return "", errEmptyResponse
	}
	return text, nil
}

func buildLanguageModel(cfg config.AIConfig) (jetapi.LanguageModel, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("ai api key is empty")
	}
	modelID := strings.TrimSpace(cfg.Model)
	endpoint := strings.TrimSpace(cfg.BaseURL)

	switch config.NormalizeProvider(cfg.Provider) {
	case config.ProviderAnthropic:
		if modelID == "" {
			modelID = defaultAnthropicModel
		}
		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(apiKey),
			anthropicoption.WithMaxRetries(0),
		}
		if endpoint != "" {
			opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(endpoint, "/")))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, anthropicoption.WithRequestTimeout(cfg.Timeout))
		}
		client := anthropicclient.NewClient(opts...)
		return jetanthropic.NewLanguageModel(modelID, jetanthropic.WithClient(client)), nil

	case config.ProviderOpenAI:
		if modelID == "" {
			modelID = defaultOpenAIModel
		}
		opts := []openaioption.RequestOption{
			openaioption.WithAPIKey(apiKey),
			openaioption.WithMaxRetries(0),
		}
		if normalized := normalizeOpenAIBaseURL(endpoint); normalized != "" {
			opts = append(opts, openaioption.WithBaseURL(normalized))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, openaioption.WithRequestTimeout(cfg.Timeout))
		}
		client := openaiclient.NewClient(opts...)
		return jetopenai.NewLanguageModel(modelID, jetopenai.WithClient(client)), nil
	}
	return nil, fmt.Errorf("provider %q has no hosted language model", cfg.Provider)
}

// normalizeOpenAIBaseURL makes sure the base URL ends in /v1, which the
// openai client expects.
func normalizeOpenAIBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return ""
	}
	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(base, "/")
	}
	path := strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(path, "/v1") {
		path += "/v1"
	}
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}
