package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/qaloop-dev/qaloop/api/schemas"
	"github.com/qaloop-dev/qaloop/internal/config"
)

// NewClient constructs the reasoning model client for the configured provider.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGoogleClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}
