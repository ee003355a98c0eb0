package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniostano/guesser/internal/gateway"
	"github.com/antoniostano/guesser/internal/memory"
	"github.com/antoniostano/guesser/internal/protocol"
	"github.com/antoniostano/guesser/internal/reliability"
)

// recordingGateway remembers every transcript it was sent.
type recordingGateway struct {
	mu    sync.Mutex
	calls [][]protocol.Turn
	err   error
}

func (r *recordingGateway) Complete(_ context.Context, transcript []protocol.Turn) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]protocol.Turn, len(transcript))
	copy(cp, transcript)
	r.calls = append(r.calls, cp)
	if r.err != nil {
		return "", r.err
	}
	return fmt.Sprintf("reply %d", len(r.calls)), nil
}

func (r *recordingGateway) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func newTestGame(gw Gateway) *Game {
	return New("s1", gw, Options{Logger: zerolog.Nop()})
}

func TestStartSeedsTwoTurnsAndResetsCount(t *testing.T) {
	gw := &recordingGateway{}
	g := newTestGame(gw)

	reply, err := g.Start(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
	assert.Equal(t, 0, g.TurnCount())

	require.Len(t, gw.calls, 1)
	sent := gw.calls[0]
	require.Len(t, sent, 2)
	assert.Equal(t, protocol.RoleSystem, sent[0].Role)
	assert.Equal(t, english.System, sent[0].Content)
	assert.Equal(t, protocol.UserTurn(english.TopicRequest), sent[1])

	transcript := g.Transcript()
	require.Len(t, transcript, 3)
	assert.Equal(t, protocol.AssistantTurn(reply), transcript[2])
}

func TestStartResetsAfterPlay(t *testing.T) {
	gw := &recordingGateway{}
	g := newTestGame(gw)
	ctx := context.Background()

	_, err := g.Start(ctx)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := g.Submit(ctx, "question")
		require.NoError(t, err)
	}
	require.Equal(t, 3, g.TurnCount())

	_, err = g.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, g.TurnCount())
	assert.Len(t, gw.calls[len(gw.calls)-1], 2)
	assert.Len(t, g.Transcript(), 3)
}

func TestSubmitIncrementsAndReplies(t *testing.T) {
	g := newTestGame(&recordingGateway{})
	ctx := context.Background()
	_, err := g.Start(ctx)
	require.NoError(t, err)

	reply, err := g.Submit(ctx, "is it alive?")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
	assert.Equal(t, 1, g.TurnCount())

	transcript := g.Transcript()
	require.Len(t, transcript, 5)
	assert.Equal(t, protocol.UserTurn("is it alive?"), transcript[3])
	assert.Equal(t, protocol.AssistantTurn(reply), transcript[4])
}

func TestTurnLimitStopsForwarding(t *testing.T) {
	gw := &recordingGateway{}
	g := newTestGame(gw)
	ctx := context.Background()
	_, err := g.Start(ctx)
	require.NoError(t, err)

	for i := 0; i < DefaultTurnLimit; i++ {
		reply, err := g.Submit(ctx, fmt.Sprintf("question %d", i+1))
		require.NoError(t, err)
		require.NotEqual(t, english.LimitReached, reply)
	}
	assert.Equal(t, DefaultTurnLimit, g.TurnCount())
	assert.True(t, g.LimitReached())
	callsBefore := gw.callCount()
	lenBefore := len(g.Transcript())

	reply, err := g.Submit(ctx, "one more?")
	require.NoError(t, err)
	assert.Equal(t, english.LimitReached, reply)
	assert.Equal(t, callsBefore, gw.callCount())
	assert.Len(t, g.Transcript(), lenBefore)
	assert.Equal(t, DefaultTurnLimit, g.TurnCount())
	assert.Equal(t, 0, g.State().Remaining())
	assert.Equal(t, 0, g.Remaining())
}

func TestTranscriptOrderIsReplayed(t *testing.T) {
	gw := &recordingGateway{}
	g := newTestGame(gw)
	ctx := context.Background()
	_, err := g.Start(ctx)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := g.Submit(ctx, fmt.Sprintf("q%d", i))
		require.NoError(t, err)
	}

	// Every call must start with the exact transcript sent by the previous call.
	for i := 1; i < len(gw.calls); i++ {
		prev, cur := gw.calls[i-1], gw.calls[i]
		require.Greater(t, len(cur), len(prev))
		assert.Equal(t, prev, cur[:len(prev)], "call %d reordered earlier turns", i)
	}
	final := g.Transcript()
	last := gw.calls[len(gw.calls)-1]
	assert.Equal(t, last, final[:len(last)])
}

func TestStartGatewayFailureReturnsMessage(t *testing.T) {
	g := newTestGame(&recordingGateway{err: errors.New("dial tcp: connection refused")})

	reply, err := g.Start(context.Background())
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(reply, english.ErrorPrefix), "reply = %q", reply)
	assert.Contains(t, reply, "connection refused")

	var ue *gateway.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, reliability.KindUpstream, ue.Kind)
	assert.Equal(t, 0, g.TurnCount())
	assert.Len(t, g.Transcript(), 2)
}

func TestSubmitGatewayFailureKeepsForwardedTurn(t *testing.T) {
	gw := &recordingGateway{}
	g := newTestGame(gw)
	ctx := context.Background()
	_, err := g.Start(ctx)
	require.NoError(t, err)

	gw.err = &gateway.UpstreamError{Provider: "openai", Kind: reliability.KindAuth, Err: errors.New("bad key")}
	reply, err := g.Submit(ctx, "is it big?")
	require.Error(t, err)
	assert.Contains(t, reply, english.ErrorPrefix)
	assert.Equal(t, 1, g.TurnCount())

	transcript := g.Transcript()
	assert.Equal(t, protocol.UserTurn("is it big?"), transcript[len(transcript)-1])
}

func TestLimitHookAndCustomLimit(t *testing.T) {
	hits := 0
	g := New("s2", &recordingGateway{}, Options{
		TurnLimit:      1,
		Prompts:        PromptsFor("ja"),
		Logger:         zerolog.Nop(),
		OnLimitReached: func() { hits++ },
	})
	ctx := context.Background()
	_, err := g.Start(ctx)
	require.NoError(t, err)
	_, err = g.Submit(ctx, "生き物ですか？")
	require.NoError(t, err)

	reply, err := g.Submit(ctx, "大きいですか？")
	require.NoError(t, err)
	assert.Equal(t, japanese.LimitReached, reply)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, g.TurnLimit())
}

func TestArchiveReceivesRedactedTurns(t *testing.T) {
	archive := memory.NewInMemoryStore()
	g := New("s3", &recordingGateway{}, Options{Archive: archive, Logger: zerolog.Nop()})
	ctx := context.Background()
	_, err := g.Start(ctx)
	require.NoError(t, err)
	_, err = g.Submit(ctx, "my email is sam@example.com, is it a cat?")
	require.NoError(t, err)

	records, err := archive.SessionTurns(ctx, "s3", 0)
	require.NoError(t, err)
	require.Len(t, records, 5)
	for i, r := range records {
		assert.Equal(t, i+1, r.Position)
		assert.Equal(t, "s3", r.SessionID)
	}
	assert.True(t, records[3].PIIRedacted)
	assert.NotContains(t, records[3].Content, "sam@example.com")

	// The live transcript is untouched by redaction.
	assert.Contains(t, g.Transcript()[3].Content, "sam@example.com")
}

func TestConcurrentSubmitsAreSerialized(t *testing.T) {
	gw := &recordingGateway{}
	g := newTestGame(gw)
	ctx := context.Background()
	_, err := g.Start(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = g.Submit(ctx, fmt.Sprintf("q%d", i))
		}(i)
	}
	wg.Wait()

	state := g.State()
	assert.Equal(t, 10, state.TurnCount)
	require.Len(t, state.Transcript, 3+20)
	for i := 3; i < len(state.Transcript); i += 2 {
		assert.Equal(t, protocol.RoleUser, state.Transcript[i].Role)
		assert.Equal(t, protocol.RoleAssistant, state.Transcript[i+1].Role)
	}
}

func TestPromptsIsQuit(t *testing.T) {
	p := PromptsFor("en")
	for _, in := range []string{"exit", " QUIT ", "終了"} {
		assert.True(t, p.IsQuit(in), in)
	}
	assert.False(t, p.IsQuit("is it a quitter?"))
	assert.Equal(t, japanese.System, PromptsFor(" JA ").System)
	assert.Equal(t, english.System, PromptsFor("fr").System)
}
