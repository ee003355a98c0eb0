package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/antoniostano/guesser/internal/config"
	"github.com/antoniostano/guesser/internal/game"
	"github.com/antoniostano/guesser/internal/gateway"
	"github.com/antoniostano/guesser/internal/httpapi"
	"github.com/antoniostano/guesser/internal/memory"
	"github.com/antoniostano/guesser/internal/observability"
	"github.com/antoniostano/guesser/internal/session"
)

type BuildResult struct {
	Config   config.Config
	Logger   zerolog.Logger
	API      *httpapi.Server
	Sessions *session.Manager
	Metrics  *observability.Metrics
	Archive  memory.Store
	Gateway  *gateway.Instrumented

	// Cleanup should be called on shutdown to release the gateway and archive.
	Cleanup func() error
}

// Build wires the archive, completion gateway, session store and HTTP API.
// metrics may be nil, in which case a registry-backed set is created.
func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger, metrics *observability.Metrics) (*BuildResult, error) {
	if metrics == nil {
		metrics = observability.NewMetrics(cfg.MetricsNamespace)
	}

	archive, err := memory.NewStore(ctx, cfg.DatabaseURL, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("transcript archive init failed: %w", err)
	}

	next, err := gateway.New(ctx, GatewayConfig(cfg))
	if err != nil {
		_ = archive.Close()
		return nil, fmt.Errorf("completion gateway init failed: %w", err)
	}
	gw := gateway.NewInstrumented(next, cfg.CompletionProvider, cfg.CompletionTimeout, metrics, logger)

	res := &BuildResult{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		Archive: archive,
		Gateway: gw,
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout, res.NewGame)
	sessions.SetExpireHook(func(s *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
		logger.Info().Str("session_id", s.ID).Msg("session expired")
	})
	if purger, ok := archive.(memory.SessionPurger); ok {
		sessions.SetReleaseHook(func(s *session.Session) {
			if err := purger.DeleteSession(context.WithoutCancel(ctx), s.ID); err != nil {
				logger.Warn().Err(err).Str("session_id", s.ID).Msg("archive purge failed")
			}
		})
	}
	res.Sessions = sessions
	res.API = httpapi.New(cfg, sessions, metrics, logger, archive)

	res.Cleanup = func() error {
		var errs []string
		if err := gw.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := archive.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	logger.Info().
		Str("provider", cfg.CompletionProvider).
		Str("archive", memory.Mode(archive)).
		Str("locale", cfg.GameLocale).
		Int("turn_limit", cfg.GameTurnLimit).
		Msg("guesser configured")

	return res, nil
}

// NewGame builds a game wired to the shared gateway and archive.
func (b *BuildResult) NewGame(id string) *game.Game {
	return game.New(id, b.Gateway, game.Options{
		TurnLimit:      b.Config.GameTurnLimit,
		Prompts:        game.PromptsFor(b.Config.GameLocale),
		Archive:        b.Archive,
		Logger:         b.Logger,
		OnLimitReached: b.Metrics.ObserveLimitReached,
	})
}

// GatewayConfig selects the credential and model of the configured provider.
func GatewayConfig(cfg config.Config) gateway.Config {
	gc := gateway.Config{
		Provider: cfg.CompletionProvider,
		HTTPURL:  cfg.CompletionHTTPURL,
		Region:   cfg.BedrockRegion,
		Timeout:  cfg.CompletionTimeout,
	}
	switch cfg.CompletionProvider {
	case "openai":
		gc.APIKey, gc.Model, gc.BaseURL = cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL
	case "gemini":
		gc.APIKey, gc.Model = cfg.GeminiAPIKey, cfg.GeminiModel
	case "bedrock":
		gc.Model = cfg.BedrockModelID
	}
	return gc
}
