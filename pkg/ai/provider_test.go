package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jetapi "go.jetify.com/ai/api"

	"resume-copilot/internal/config"
	"resume-copilot/internal/domain"
)

func TestNewCompleterSelectsBackend(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.AIConfig
		want string
	}{
		{"ai service", config.AIConfig{Provider: config.ProviderAIService, ServiceURL: "http://x"}, "*ai.Client"},
		{"openai", config.AIConfig{Provider: config.ProviderOpenAI, APIKey: "k"}, "*ai.ProviderCompleter"},
		{"anthropic", config.AIConfig{Provider: "Anthropic", APIKey: "k"}, "*ai.ProviderCompleter"},
		{"compatible", config.AIConfig{Provider: "openai_compatible", BaseURL: "http://local:11434"}, "*ai.CompatibleCompleter"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewCompleter(tc.cfg, nil)
			if err != nil {
				t.Fatalf("NewCompleter: %v", err)
			}
			if got := typeName(c); got != tc.want {
				t.Errorf("type = %s, want %s", got, tc.want)
			}
		})
	}
}

func typeName(c Completer) string {
	switch c.(type) {
	case *Client:
		return "*ai.Client"
	case *ProviderCompleter:
		return "*ai.ProviderCompleter"
	case *CompatibleCompleter:
		return "*ai.CompatibleCompleter"
	}
	return "unknown"
}

func TestNewCompleterErrors(t *testing.T) {
	if _, err := NewCompleter(config.AIConfig{Provider: "mystery"}, nil); err == nil {
		t.Error("unknown provider accepted")
	}
	c, err := NewCompleter(config.AIConfig{Provider: config.ProviderOpenAI}, nil)
	if err == nil {
		t.Error("missing key accepted")
	}
	if c != nil {
		t.Error("failed construction returned a non-nil completer")
	}
	if _, err := NewCompleter(config.AIConfig{Provider: config.ProviderOpenAICompatible}, nil); err == nil {
		t.Error("missing base url accepted")
	}
}

func TestNormalizeOpenAIBaseURL(t *testing.T) {
	cases := map[string]string{
		"":                          "",
		"http://localhost:11434":    "http://localhost:11434/v1",
		"http://localhost:11434/":   "http://localhost:11434/v1",
		"https://proxy.example/v1/": "https://proxy.example/v1",
		"https://proxy.example/api": "https://proxy.example/api/v1",
		"not a url/":                "not a url",
	}
	for in, want := range cases {
		if got := normalizeOpenAIBaseURL(in); got != want {
			t.Errorf("normalizeOpenAIBaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractTextEmpty(t *testing.T) {
	if _, err := extractText(&jetapi.Response{}); !errors.Is(err, errEmptyResponse) {
		t.Errorf("empty response err = %v", err)
	}
	if _, err := extractText(nil); !errors.Is(err, errEmptyResponse) {
		t.Errorf("nil response err = %v", err)
	}
}

func TestCompatibleCompleter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["model"] != "local-model" {
			t.Errorf("model = %v", body["model"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":0,"model":"local-model",` +
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"questions\":[]}"}}]}`))
	}))
	defer srv.Close()

	c, err := NewCompatibleCompleter(config.AIConfig{
		Provider: config.ProviderOpenAICompatible,
		BaseURL:  srv.URL,
		Model:    "local-model",
		Timeout:  5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewCompatibleCompleter: %v", err)
	}
	out, err := c.Complete(context.Background(), "Generate interview questions")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"questions":[]}` {
		t.Errorf("output = %q", out)
	}
}

func TestCompatibleCompleterUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"down"}}`))
	}))
	defer srv.Close()

	c, err := NewCompatibleCompleter(config.AIConfig{BaseURL: srv.URL}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Complete(context.Background(), "p"); !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
}
