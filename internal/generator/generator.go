// internal/generator/generator.go

// Package generator turns natural-language instructions into executable
// action snippets via a model provider. Generated snippets are cached, so a
// repeated instruction with an identical prior error never costs a second
// provider call.
package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/pilotweb/pilot-cli/api/schemas"
	"github.com/pilotweb/pilot-cli/internal/config"
)

// GenerationError means no usable snippet could be produced after all
// attempts. The orchestrator treats it as non-retryable for the instruction.
type GenerationError struct {
	Instruction string
	Attempts    int
	Err         error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("could not generate snippet for %q after %d attempt(s): %v", e.Instruction, e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Config tunes the generator.
type Config struct {
	// Retries is the number of provider attempts per generation.
	Retries int
	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration
	// Temperature passed through to the provider.
	Temperature float32
	// MaxTokens caps each completion.
	MaxTokens int
	// CacheSize is the snippet cache capacity. Zero disables caching.
	CacheSize int
}

// FromModelConfig derives generator settings from the model section.
func FromModelConfig(mc config.ModelConfig, ac config.AutomationConfig) Config {
	cfg := Config{
		Retries:     mc.Retries,
		RetryDelay:  mc.RetryDelay,
		Temperature: mc.Temperature,
		MaxTokens:   mc.MaxTokens,
	}
	if ac.CacheSnippets {
		cfg.CacheSize = ac.CacheSize
	}
	return cfg
}

// Generator produces snippets. Not safe for concurrent use.
type Generator struct {
	client schemas.LLMClient
	cfg    Config
	logger *zap.Logger
	cache  *lru.Cache[string, string]
}

// New creates a Generator. A nil cache means caching is off.
func New(client schemas.LLMClient, cfg Config, logger *zap.Logger) (*Generator, error) {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	g := &Generator{
		client: client,
		cfg:    cfg,
		logger: logger.Named("generator"),
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, string](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create snippet cache: %w", err)
		}
		g.cache = cache
	}
	return g, nil
}

// Generate produces a snippet for one instruction. priorError carries the
// failure text of the previous attempt, empty on the first try. The cache key
// covers both inputs: a retry with a fresh error is a different generation,
// never a cache hit of the snippet that just failed.
func (g *Generator) Generate(ctx context.Context, instruction, priorError string) (string, error) {
	key := cacheKey(instruction, priorError)
	if g.cache != nil {
		if snippet, ok := g.cache.Get(key); ok {
			g.logger.Debug("Snippet cache hit", zap.String("instruction", instruction))
			return snippet, nil
		}
	}

	snippet, err := g.generateWithRetry(ctx, instruction, priorError)
	if err != nil {
		return "", err
	}

	if g.cache != nil {
		g.cache.Add(key, snippet)
	}
	return snippet, nil
}

// ClearCache drops all cached snippets.
func (g *Generator) ClearCache() {
	if g.cache != nil {
		g.cache.Purge()
	}
}

// generateWithRetry runs bounded fixed-delay attempts against the provider.
func (g *Generator) generateWithRetry(ctx context.Context, instruction, priorError string) (string, error) {
	req := schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildPrompt(instruction, priorError),
		Options: schemas.GenerationOptions{
			Temperature:     g.cfg.Temperature,
			MaxOutputTokens: g.cfg.MaxTokens,
		},
	}

	var lastErr error
	for attempt := 1; attempt <= g.cfg.Retries; attempt++ {
		raw, err := g.client.Generate(ctx, req)
		if err == nil {
			snippet := Postprocess(raw)
			if strings.TrimSpace(snippet) != "" {
				g.logger.Debug("Generated snippet",
					zap.String("instruction", instruction),
					zap.Int("attempt", attempt))
				return snippet, nil
			}
			err = fmt.Errorf("provider returned an empty snippet")
		}
		lastErr = err
		g.logger.Warn("Snippet generation attempt failed",
			zap.String("instruction", instruction),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < g.cfg.Retries {
			select {
			case <-ctx.Done():
				return "", &GenerationError{Instruction: instruction, Attempts: attempt, Err: ctx.Err()}
			case <-time.After(g.cfg.RetryDelay):
			}
		}
	}

	return "", &GenerationError{Instruction: instruction, Attempts: g.cfg.Retries, Err: lastErr}
}

// cacheKey joins the generation inputs with a separator that cannot appear in
// instruction text.
func cacheKey(instruction, priorError string) string {
	return instruction + "\x1f" + priorError
}
