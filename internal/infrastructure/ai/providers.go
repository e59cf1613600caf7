package ai

import (
	"log/slog"

	"NewsIngest/internal/config"
	"NewsIngest/internal/enrich"
)

// BuildProviders constructs the provider slice in the configured priority
// order. Unknown names are skipped with a warning; availability is decided
// later by the chain, so unconfigured providers are still registered.
func BuildProviders(cfg config.ProvidersConfig, logger *slog.Logger) []enrich.Provider {
	if logger == nil {
		logger = slog.Default()
	}

	providers := make([]enrich.Provider, 0, len(cfg.Priority))
	for _, name := range cfg.Priority {
		switch name {
		case "deepseek":
			providers = append(providers, NewDeepSeek(cfg.DeepSeek))
		case "openai":
			providers = append(providers, NewOpenAI(cfg.OpenAI))
		case "claude":
			providers = append(providers, NewClaude(cfg.Claude))
		case "gigachat":
			providers = append(providers, NewGigaChat(cfg.GigaChat))
		default:
			logger.Warn("unknown enrichment provider in priority list", "provider", name)
		}
	}
	return providers
}
