package gateway

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniostano/guesser/internal/protocol"
	"github.com/antoniostano/guesser/internal/reliability"
)

type statusErr struct{ code int }

func (e statusErr) Error() string  { return "status" }
func (e statusErr) HTTPCode() int { return e.code }

func TestGeminiConversationMapping(t *testing.T) {
	system, history, last, err := geminiConversation([]protocol.Turn{
		protocol.SystemTurn("rules"),
		protocol.UserTurn("pick"),
		protocol.AssistantTurn("picked"),
		protocol.UserTurn("is it alive?"),
	})
	require.NoError(t, err)
	assert.Equal(t, "rules", system)
	assert.Equal(t, []genai.Part{genai.Text("is it alive?")}, last)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, genai.Text("pick"), history[0].Parts[0])
	assert.Equal(t, "model", history[1].Role)
}

func TestGeminiConversationMergesRepeatedUserTurns(t *testing.T) {
	_, history, last, err := geminiConversation([]protocol.Turn{
		protocol.SystemTurn("rules"),
		protocol.UserTurn("pick"),
		protocol.AssistantTurn("picked"),
		protocol.UserTurn("is it red?"),
		protocol.UserTurn("is it big?"),
	})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, []genai.Part{genai.Text("is it red?"), genai.Text("is it big?")}, last)
}

func TestGeminiConversationRequiresTrailingUserTurn(t *testing.T) {
	_, _, _, err := geminiConversation([]protocol.Turn{protocol.UserTurn("a"), protocol.AssistantTurn("b")})
	require.Error(t, err)
	_, _, _, err = geminiConversation(nil)
	require.Error(t, err)
}

func TestGeminiGatewayComplete(t *testing.T) {
	var gotLast []genai.Part
	g := &GeminiGateway{send: func(_ context.Context, _ string, _ []*genai.Content, last []genai.Part) (*genai.GenerateContentResponse, error) {
		gotLast = last
		return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Par"), genai.Text("tly")}},
		}}}, nil
	}}

	reply, err := g.Complete(context.Background(), []protocol.Turn{protocol.SystemTurn("r"), protocol.UserTurn("q")})
	require.NoError(t, err)
	assert.Equal(t, "Partly", reply)
	assert.Equal(t, []genai.Part{genai.Text("q")}, gotLast)
}

func TestGeminiGatewayFailures(t *testing.T) {
	g := &GeminiGateway{send: func(context.Context, string, []*genai.Content, []genai.Part) (*genai.GenerateContentResponse, error) {
		return nil, statusErr{code: 403}
	}}
	_, err := g.Complete(context.Background(), []protocol.Turn{protocol.UserTurn("q")})
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, reliability.KindAuth, ue.Kind)

	g.send = func(context.Context, string, []*genai.Content, []genai.Part) (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{}, nil
	}
	_, err = g.Complete(context.Background(), []protocol.Turn{protocol.UserTurn("q")})
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, reliability.KindMalformed, ue.Kind)
}
