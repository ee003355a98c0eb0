package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/antoniostano/guesser/internal/protocol"
	"github.com/antoniostano/guesser/internal/reliability"
)

const defaultGeminiModel = "gemini-2.5-flash"

type geminiSendFunc func(ctx context.Context, system string, history []*genai.Content, last []genai.Part) (*genai.GenerateContentResponse, error)

// GeminiGateway sends transcripts to Google's Gemini API. System turns become
// the model's system instruction; assistant turns are replayed as role "model".
type GeminiGateway struct {
	client *genai.Client
	model  string
	send   geminiSendFunc
}

func NewGeminiGateway(ctx context.Context, apiKey, model string) (*GeminiGateway, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g := &GeminiGateway{client: client, model: model}
	if strings.TrimSpace(g.model) == "" {
		g.model = defaultGeminiModel
	}
	g.send = g.sendChat
	return g, nil
}

func (g *GeminiGateway) Complete(ctx context.Context, transcript []protocol.Turn) (string, error) {
	system, history, last, err := geminiConversation(transcript)
	if err != nil {
		return "", upstream("gemini", reliability.KindMalformed, err)
	}

	resp, err := g.send(ctx, system, history, last)
	if err != nil {
		return "", upstream("gemini", classifyByStatusMethod(err), err)
	}
	text, err := geminiText(resp)
	if err != nil {
		return "", upstream("gemini", reliability.KindMalformed, err)
	}
	return text, nil
}

func (g *GeminiGateway) sendChat(ctx context.Context, system string, history []*genai.Content, last []genai.Part) (*genai.GenerateContentResponse, error) {
	model := g.client.GenerativeModel(g.model)
	if system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}
	cs := model.StartChat()
	cs.History = history
	return cs.SendMessage(ctx, last...)
}

// Close releases resources held by the Gemini client.
func (g *GeminiGateway) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// geminiConversation splits a transcript into the system instruction, the
// replayed history and the parts of the final user message. Consecutive turns
// of the same role are merged into one content so roles alternate.
func geminiConversation(transcript []protocol.Turn) (string, []*genai.Content, []genai.Part, error) {
	last, err := lastTurn(transcript)
	if err != nil {
		return "", nil, nil, err
	}
	if last.Role != protocol.RoleUser {
		return "", nil, nil, fmt.Errorf("last turn must be a user turn, got %q", last.Role)
	}

	var system []string
	contents := make([]*genai.Content, 0, len(transcript))
	for _, t := range transcript {
		var role string
		switch t.Role {
		case protocol.RoleSystem:
			system = append(system, t.Content)
			continue
		case protocol.RoleUser:
			role = "user"
		case protocol.RoleAssistant:
			role = "model"
		default:
			return "", nil, nil, fmt.Errorf("unsupported role %q", t.Role)
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, genai.Text(t.Content))
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(t.Content)}})
	}

	final := contents[len(contents)-1]
	return strings.Join(system, "\n\n"), contents[:len(contents)-1], final.Parts, nil
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates: %w", reliability.ErrMalformedResponse)
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty content: %w", reliability.ErrMalformedResponse)
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

// classifyByStatusMethod handles SDK errors that expose their HTTP status
// through a method rather than a concrete type.
func classifyByStatusMethod(err error) reliability.Kind {
	var httpCoder interface{ HTTPCode() int }
	if errors.As(err, &httpCoder) && httpCoder.HTTPCode() > 0 {
		return reliability.KindForHTTPStatus(httpCoder.HTTPCode())
	}
	var statusCoder interface{ HTTPStatusCode() int }
	if errors.As(err, &statusCoder) && statusCoder.HTTPStatusCode() > 0 {
		return reliability.KindForHTTPStatus(statusCoder.HTTPStatusCode())
	}
	return reliability.Classify(err)
}
