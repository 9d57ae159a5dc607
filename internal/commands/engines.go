package commands

import (
	"fmt"
	"log/slog"

	"github.com/diogo/llamigo/internal/config"
	"github.com/diogo/llamigo/internal/engine"
	"github.com/diogo/llamigo/internal/engine/gemini"
	"github.com/diogo/llamigo/internal/engine/llamacpp"
)

// newEngine is the production EngineFactory
func newEngine(cfg config.Config, systemPrompt string, logger *slog.Logger) (engine.Engine, error) {
	switch cfg.Engine {
	case config.EngineLlamaCpp:
		opts := []llamacpp.Option{
			llamacpp.WithSystemPrompt(systemPrompt),
			llamacpp.WithMaxTurns(cfg.MaxTurns),
			llamacpp.WithLogger(logger.With("engine", cfg.Engine)),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, llamacpp.WithBaseURL(cfg.BaseURL))
		}
		if cfg.APIKey != "" {
			opts = append(opts, llamacpp.WithAPIKey(cfg.APIKey))
		}
		return llamacpp.New(opts...), nil

	case config.EngineGemini:
		opts := []gemini.Option{
			gemini.WithAPIKey(cfg.APIKey),
			gemini.WithSystemPrompt(systemPrompt),
			gemini.WithMaxTurns(cfg.MaxTurns),
			gemini.WithLogger(logger.With("engine", cfg.Engine)),
		}
		// The llama.cpp default address means no override was configured
		if cfg.BaseURL != "" && cfg.BaseURL != llamacpp.DefaultBaseURL {
			opts = append(opts, gemini.WithBaseURL(cfg.BaseURL))
		}
		return gemini.New(opts...), nil

	case config.EngineMock:
		return &engine.Mock{}, nil

	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}

// modelPath returns the model to load, or an error when the engine needs
// one and none is configured.
func modelPath(cfg config.Config) (string, error) {
	if cfg.Model != "" {
		return cfg.Model, nil
	}
	switch cfg.Engine {
	case config.EngineGemini:
		return gemini.DefaultModel, nil
	case config.EngineMock:
		return "mock", nil
	default:
		return "", fmt.Errorf("no model configured: pass --model or set \"model\" in the config file")
	}
}
