package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/guesser/internal/protocol"
	"github.com/antoniostano/guesser/internal/reliability"
)

// HTTPGateway forwards transcripts to a JSON completion endpoint.
type HTTPGateway struct {
	url    string
	client *http.Client
}

type httpCompletionRequest struct {
	Messages []protocol.Turn `json:"messages"`
}

func NewHTTPGateway(url string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPGateway{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGateway) Complete(ctx context.Context, transcript []protocol.Turn) (string, error) {
	if len(transcript) == 0 {
		return "", upstream("http", reliability.KindMalformed, errEmptyTranscript)
	}
	payload, err := json.Marshal(httpCompletionRequest{Messages: transcript})
	if err != nil {
		return "", upstream("http", reliability.KindMalformed, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return "", upstream("http", reliability.KindMalformed, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := g.client.Do(req)
	if err != nil {
		return "", upstream("http", "", fmt.Errorf("send request: %w", err))
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", upstream("http", "", &reliability.StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(body))})
	}

	ct := strings.ToLower(res.Header.Get("Content-Type"))
	if strings.Contains(ct, "text/event-stream") || strings.Contains(ct, "application/x-ndjson") {
		text, err := consumeStreaming(res.Body)
		if err != nil {
			return "", upstream("http", "", err)
		}
		return text, nil
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", upstream("http", reliability.KindNetwork, fmt.Errorf("read response: %w", err))
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		text := strings.TrimSpace(string(body))
		if text == "" {
			return "", upstream("http", reliability.KindMalformed, fmt.Errorf("empty body: %w", reliability.ErrMalformedResponse))
		}
		return text, nil
	}

	var text string
	switch v := decoded.(type) {
	case string:
		text = v
	case map[string]any:
		text = extractText(v)
	default:
		return "", upstream("http", reliability.KindMalformed, fmt.Errorf("unexpected %T body: %w", decoded, reliability.ErrMalformedResponse))
	}
	if text == "" {
		return "", upstream("http", reliability.KindMalformed, fmt.Errorf("no text field: %w", reliability.ErrMalformedResponse))
	}
	return text, nil
}

// consumeStreaming concatenates the deltas of an SSE or NDJSON body.
func consumeStreaming(body io.Reader) (string, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
		if line == "[DONE]" {
			break
		}

		delta := line
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err == nil {
			delta = extractText(obj)
		}
		out.WriteString(delta)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("stream read: %w", err)
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("empty stream: %w", reliability.ErrMalformedResponse)
	}
	return out.String(), nil
}

func extractText(obj map[string]any) string {
	for _, k := range []string{"response", "text", "delta", "output", "message", "content"} {
		if v, ok := obj[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	// OpenAI-compatible bodies: choices[0].message.content or choices[0].delta.content.
	choices, ok := obj["choices"].([]any)
	if !ok || len(choices) == 0 {
		return ""
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return ""
	}
	for _, k := range []string{"message", "delta"} {
		if inner, ok := first[k].(map[string]any); ok {
			if s, ok := inner["content"].(string); ok {
				return s
			}
		}
	}
	return ""
}
