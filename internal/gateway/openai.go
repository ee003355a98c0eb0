package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/antoniostano/guesser/internal/protocol"
	"github.com/antoniostano/guesser/internal/reliability"
)

const defaultOpenAIModel = "gpt-4o"

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIGateway sends transcripts to the OpenAI chat completions API.
type OpenAIGateway struct {
	client chatClient
	model  string
}

func NewOpenAIGateway(apiKey, model, baseURL string) *OpenAIGateway {
	cfg := openai.DefaultConfig(strings.TrimSpace(apiKey))
	if u := strings.TrimSpace(baseURL); u != "" {
		cfg.BaseURL = u
	}
	return newOpenAIGateway(openai.NewClientWithConfig(cfg), model)
}

func newOpenAIGateway(client chatClient, model string) *OpenAIGateway {
	if strings.TrimSpace(model) == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIGateway{client: client, model: model}
}

func (g *OpenAIGateway) Complete(ctx context.Context, transcript []protocol.Turn) (string, error) {
	if len(transcript) == 0 {
		return "", upstream("openai", reliability.KindMalformed, errEmptyTranscript)
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(transcript))
	for _, t := range transcript {
		role, err := openAIRole(t.Role)
		if err != nil {
			return "", upstream("openai", reliability.KindMalformed, err)
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: messages,
	})
	if err != nil {
		return "", upstream("openai", classifyOpenAI(err), err)
	}
	if len(resp.Choices) == 0 {
		return "", upstream("openai", reliability.KindMalformed, fmt.Errorf("no choices: %w", reliability.ErrMalformedResponse))
	}
	return resp.Choices[0].Message.Content, nil
}

func openAIRole(r protocol.Role) (string, error) {
	switch r {
	case protocol.RoleSystem:
		return openai.ChatMessageRoleSystem, nil
	case protocol.RoleUser:
		return openai.ChatMessageRoleUser, nil
	case protocol.RoleAssistant:
		return openai.ChatMessageRoleAssistant, nil
	default:
		return "", fmt.Errorf("unsupported role %q", r)
	}
}

func classifyOpenAI(err error) reliability.Kind {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return reliability.KindForHTTPStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return reliability.KindForHTTPStatus(reqErr.HTTPStatusCode)
	}
	return reliability.Classify(err)
}
