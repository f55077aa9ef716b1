package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv       = "COPILOT_CONFIG"
	databaseURLEnv      = "DATABASE_URL"
	redisURLEnv         = "REDIS_URL"
	aiProviderEnv       = "AI_PROVIDER"
	aiServiceURLEnv     = "AI_SERVICE_URL"
	aiAPIKeyEnv         = "AI_API_KEY"
	aiModelEnv          = "AI_MODEL"
	jwtSecretEnv        = "JWT_SECRET"
	portEnv             = "PORT"
	logLevelEnv         = "LOG_LEVEL"
	chromePathEnv       = "CHROME_PATH"
	rateLimitBackendEnv = "RATELIMIT_BACKEND"
)

const (
	ProviderAIService        = "aiservice"
	ProviderOpenAI           = "openai"
	ProviderOpenAICompatible = "openai-compatible"
	ProviderAnthropic        = "anthropic"

	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AI        AIConfig        `yaml:"ai"`
	Auth      AuthConfig      `yaml:"auth"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Render    RenderConfig    `yaml:"render"`
	LogLevel  string          `yaml:"logLevel"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	// MaintenanceInterval is how often expired cache rows and stale rate
	// limit hits are swept. Zero disables the loop.
	MaintenanceInterval time.Duration `yaml:"maintenanceInterval"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

// AIConfig selects and configures the generation backend.
type AIConfig struct {
	Provider   string        `yaml:"provider"`
	ServiceURL string        `yaml:"serviceUrl"`
	BaseURL    string        `yaml:"baseUrl"`
	APIKey     string        `yaml:"apiKey"`
	Model      string        `yaml:"model"`
	MaxTokens  int           `yaml:"maxTokens"`
	Timeout    time.Duration `yaml:"timeout"`
	Attempts   int           `yaml:"attempts"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
}

type CacheConfig struct {
	ModelTTL time.Duration `yaml:"modelTtl"`
}

type RateLimitConfig struct {
	Backend        string        `yaml:"backend"`
	PipelineLimit  int           `yaml:"pipelineLimit"`
	PipelineWindow time.Duration `yaml:"pipelineWindow"`
	HTTPLimit      int           `yaml:"httpLimit"`
	HTTPWindow     time.Duration `yaml:"httpWindow"`
}

type PipelineConfig struct {
	MaxSourceChars int `yaml:"maxSourceChars"`
	// PollMaxAttempts caps the wait parameter of task lookups.
	PollMaxAttempts int           `yaml:"pollMaxAttempts"`
	PollInterval    time.Duration `yaml:"pollInterval"`
}

type RenderConfig struct {
	ChromePath string `yaml:"chromePath"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:                "8080",
			MaintenanceInterval: 10 * time.Minute,
		},
		AI: AIConfig{
			Provider:   ProviderAIService,
			ServiceURL: "http://localhost:8000",
			MaxTokens:  4096,
			Timeout:    120 * time.Second,
			Attempts:   1,
		},
		Cache: CacheConfig{ModelTTL: 24 * time.Hour},
		RateLimit: RateLimitConfig{
			Backend:        BackendPostgres,
			PipelineLimit:  20,
			PipelineWindow: time.Hour,
			HTTPLimit:      120,
			HTTPWindow:     time.Minute,
		},
		Pipeline: PipelineConfig{
			MaxSourceChars:  60000,
			PollMaxAttempts: 30,
			PollInterval:    time.Second,
		},
		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, the YAML file named by
// COPILOT_CONFIG (if any) and environment overrides, in that order.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv(configPathEnv); path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnvOverrides()
	cfg.AI.Provider = NormalizeProvider(cfg.AI.Provider)
	return cfg, cfg.Validate()
}

// LoadFile decodes path over the defaults. Keys missing from the file keep
// their default values.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.AI.Provider = NormalizeProvider(cfg.AI.Provider)
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	setString := func(dst *string, env string) {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*dst = v
		}
	}
	setString(&c.Database.URL, databaseURLEnv)
	setString(&c.Redis.URL, redisURLEnv)
	setString(&c.AI.Provider, aiProviderEnv)
	setString(&c.AI.ServiceURL, aiServiceURLEnv)
	setString(&c.AI.APIKey, aiAPIKeyEnv)
	setString(&c.AI.Model, aiModelEnv)
	setString(&c.Auth.JWTSecret, jwtSecretEnv)
	setString(&c.Server.Port, portEnv)
	setString(&c.LogLevel, logLevelEnv)
	setString(&c.Render.ChromePath, chromePathEnv)
	setString(&c.RateLimit.Backend, rateLimitBackendEnv)
}

// NormalizeProvider folds spelling variants of a provider name onto the
// Provider constants: "OpenAI_Compatible" and "openai compatible" both become
// ProviderOpenAICompatible.
func NormalizeProvider(raw string) string {
	p := strings.ToLower(strings.TrimSpace(raw))
	p = strings.ReplaceAll(p, "_", "-")
	p = strings.ReplaceAll(p, " ", "-")
	if p == "openaicompatible" {
		return ProviderOpenAICompatible
	}
	return p
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	switch NormalizeProvider(c.AI.Provider) {
	case ProviderAIService:
		if c.AI.ServiceURL == "" {
			return fmt.Errorf("config: ai.serviceUrl is required for provider %q", c.AI.Provider)
		}
	case ProviderOpenAI, ProviderAnthropic:
		if c.AI.APIKey == "" {
			return fmt.Errorf("config: ai.apiKey is required for provider %q", c.AI.Provider)
		}
	case ProviderOpenAICompatible:
		if c.AI.BaseURL == "" {
			return fmt.Errorf("config: ai.baseUrl is required for provider %q", c.AI.Provider)
		}
	default:
		return fmt.Errorf("config: unknown ai.provider %q", c.AI.Provider)
	}
	switch c.RateLimit.Backend {
	case BackendPostgres:
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("config: redis.url is required for the redis rate limit backend")
		}
	default:
		return fmt.Errorf("config: unknown ratelimit.backend %q", c.RateLimit.Backend)
	}
	if c.RateLimit.PipelineLimit <= 0 || c.RateLimit.HTTPLimit <= 0 {
		return fmt.Errorf("config: rate limits must be positive")
	}
	if c.RateLimit.PipelineWindow <= 0 || c.RateLimit.HTTPWindow <= 0 {
		return fmt.Errorf("config: rate limit windows must be positive")
	}
	return nil
}
