// internal/llmclient/factory.go

// Package llmclient provides model provider clients behind the
// schemas.LLMClient interface.
package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/pilotweb/pilot-cli/api/schemas"
	"github.com/pilotweb/pilot-cli/internal/config"
)

// NewClient creates an LLMClient for the configured provider.
func NewClient(cfg config.ModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGoogleClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported model provider %q (supported: %s)", cfg.Provider, config.ProviderGemini)
	}
}
