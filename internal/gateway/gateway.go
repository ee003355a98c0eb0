package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/antoniostano/guesser/internal/protocol"
	"github.com/antoniostano/guesser/internal/reliability"
)

// Gateway sends an ordered transcript to a completion service and returns
// its single textual reply. Implementations never retry.
type Gateway interface {
	Complete(ctx context.Context, transcript []protocol.Turn) (string, error)
}

// UpstreamError reports a failed completion call.
type UpstreamError struct {
	Provider string
	Kind     reliability.Kind
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s completion failed (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// upstream wraps err as an *UpstreamError unless it already is one.
func upstream(provider string, kind reliability.Kind, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	if kind == "" {
		kind = reliability.Classify(err)
	}
	return &UpstreamError{Provider: provider, Kind: kind, Err: err}
}

var errEmptyTranscript = errors.New("transcript is empty")

// Config controls gateway construction.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	HTTPURL  string
	Region   string
	Timeout  time.Duration
}

// New builds the gateway for cfg.Provider. The returned value may also
// implement io.Closer.
func New(ctx context.Context, cfg Config) (Gateway, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "openai"
	}

	switch provider {
	case "openai":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("openai api key is required")
		}
		return NewOpenAIGateway(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	case "gemini":
		return NewGeminiGateway(ctx, cfg.APIKey, cfg.Model)
	case "bedrock":
		return NewBedrockGatewayFromEnv(ctx, cfg.Region, cfg.Model)
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("completion HTTP url is required for http mode")
		}
		return NewHTTPGateway(cfg.HTTPURL, cfg.Timeout), nil
	case "mock":
		return NewMockGateway(), nil
	default:
		return nil, fmt.Errorf("unsupported completion provider %q", cfg.Provider)
	}
}

func lastTurn(transcript []protocol.Turn) (protocol.Turn, error) {
	if len(transcript) == 0 {
		return protocol.Turn{}, errEmptyTranscript
	}
	return transcript[len(transcript)-1], nil
}
