package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/antoniostano/guesser/internal/protocol"
)

// MockGateway provides deterministic local replies when no provider is configured.
type MockGateway struct{}

func NewMockGateway() *MockGateway { return &MockGateway{} }

func (g *MockGateway) Complete(ctx context.Context, transcript []protocol.Turn) (string, error) {
	select {
	case <-ctx.Done():
		return "", upstream("mock", "", ctx.Err())
	default:
	}
	last, err := lastTurn(transcript)
	if err != nil {
		return "", upstream("mock", "", err)
	}
	return buildMockReply(transcript, last), nil
}

func buildMockReply(transcript []protocol.Turn, last protocol.Turn) string {
	questions := 0
	for _, t := range transcript {
		if t.Role == protocol.RoleUser {
			questions++
		}
	}
	// The opening exchange is system + topic request, so real questions start at 2.
	if questions <= 1 {
		return "I have picked something. Ask me your first question!"
	}
	base := strings.TrimSpace(last.Content)
	if base == "" {
		base = "(nothing)"
	}
	return fmt.Sprintf("Question %d: %q. I don't know.", questions-1, base)
}
