package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"

	"github.com/yungbote/storygen-backend/internal/pkg/logger"
	"github.com/yungbote/storygen-backend/internal/utils"
)

// Config carries every tunable the generation pipeline consumes. It is built
// once at process start and passed by reference; nothing reads the environment
// after Load returns.
type Config struct {
	ProjectName string
	Environment string
	Port        string

	OpenAIAPIKey  string
	OpenAIBaseURL string

	QueryModel            string
	QueryMaxTokens        int
	QueryTemperature      float64
	QueryFrequencyPenalty float64
	MaxRetries            int
	SysPromptPrefix       string

	// Skips the paragraph-expansion outlining step, trading outline depth for
	// roughly a third of the per-outline token spend.
	SkipParagraphStep bool

	// USD per 1K tokens.
	PromptTokenPrice     float64
	CompletionTokenPrice float64
}

func Load(log *logger.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, relying on process environment", "error", err)
	}

	cfg := &Config{
		ProjectName: utils.GetEnv("PROJECT_NAME", "Story Generator", log),
		Environment: utils.GetEnv("ENVIRONMENT", "development", log),
		Port:        utils.GetEnv("PORT", "8080", log),

		OpenAIAPIKey:  utils.GetEnv("OPENAI_API_KEY", "", log),
		OpenAIBaseURL: strings.TrimRight(utils.GetEnv("OPENAI_BASE_URL", "https://api.openai.com", log), "/"),

		QueryModel:            utils.GetEnv("QUERY_MODEL", "gpt-4-1106-preview", log),
		QueryMaxTokens:        utils.GetEnvAsInt("QUERY_MAX_TOKENS", 4096, log),
		QueryTemperature:      utils.GetEnvAsFloat("QUERY_TEMPERATURE", 1.0, log),
		QueryFrequencyPenalty: utils.GetEnvAsFloat("QUERY_FREQUENCY_PENALTY", 0.0, log),
		MaxRetries:            utils.GetEnvAsInt("MAX_RETRIES", 3, log),
		SysPromptPrefix:       utils.GetEnv("SYS_PROMPT_PREFIX", "", log),

		SkipParagraphStep: utils.GetEnvAsBool("SKIP_PARAGRAPH_STEP", true, log),

		PromptTokenPrice:     utils.GetEnvAsFloat("PROMPT_TOKEN_PRICE", 0.01, log),
		CompletionTokenPrice: utils.GetEnvAsFloat("COMPLETION_TOKEN_PRICE", 0.03, log),
	}

	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("MAX_RETRIES must be >= 0, got %d", cfg.MaxRetries)
	}
	return cfg, nil
}
