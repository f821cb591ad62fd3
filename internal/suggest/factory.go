package suggest

import (
	"fmt"
	"net/http"

	"github.com/icewall905/tuneforge/internal/config"
	"github.com/icewall905/tuneforge/internal/constants"
	"github.com/icewall905/tuneforge/internal/httpclient"
	"github.com/icewall905/tuneforge/internal/logger"
)

// FromConfig builds the configured source wrapped in a circuit breaker.
func FromConfig(cfg config.SuggestConfig, log *logger.Logger, onBreakerState func(source, state string)) (Source, error) {
	var src Source
	switch cfg.Provider {
	case constants.ProviderOllama:
		// Per-call deadlines come from the caller's context.
		client := httpclient.NewClient(&http.Client{}, constants.DefaultRequestGap)
		src = NewOllamaSource(client, OllamaConfig{
			URL:           cfg.Ollama.URL,
			Model:         cfg.Ollama.Model,
			ContextWindow: cfg.Ollama.ContextWindow,
		}, log)
	case constants.ProviderOpenAI:
		src = NewOpenAISource(OpenAIConfig{
			BaseURL: cfg.OpenAI.BaseURL,
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
		})
	default:
		return nil, fmt.Errorf("unknown suggestion provider %q", cfg.Provider)
	}

	return NewBreakerSource(src, BreakerConfig{
		MaxFailures:   cfg.Breaker.MaxFailures,
		Timeout:       cfg.Breaker.Timeout.Std(),
		OnStateChange: onBreakerState,
	}, log), nil
}
