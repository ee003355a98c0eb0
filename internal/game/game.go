// Package game holds the per-session state of one guessing game: the ordered
// transcript replayed to the completion gateway and the bounded question counter.
package game

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/antoniostano/guesser/internal/gateway"
	"github.com/antoniostano/guesser/internal/memory"
	"github.com/antoniostano/guesser/internal/policy"
	"github.com/antoniostano/guesser/internal/protocol"
	"github.com/antoniostano/guesser/internal/reliability"
)

// DefaultTurnLimit is the number of questions a player may ask per game.
const DefaultTurnLimit = 25

// Gateway is the completion call the game depends on.
type Gateway interface {
	Complete(ctx context.Context, transcript []protocol.Turn) (string, error)
}

type Options struct {
	TurnLimit int
	Prompts   Prompts
	// Archive receives every appended turn with PII redacted. Optional.
	Archive memory.Store
	Logger  zerolog.Logger
	// OnLimitReached runs each time a submission is refused by the limit.
	OnLimitReached func()
}

// Game is safe for concurrent use; every operation holds the game's lock for
// its full duration, including the gateway call.
type Game struct {
	mu         sync.Mutex
	id         string
	gateway    Gateway
	prompts    Prompts
	limit      int
	archive    memory.Store
	logger     zerolog.Logger
	onLimit    func()
	transcript []protocol.Turn
	turnCount  int
}

// State is a consistent copy of a game's counters and transcript.
type State struct {
	TurnCount  int
	TurnLimit  int
	Transcript []protocol.Turn
}

func (s State) Remaining() int {
	if r := s.TurnLimit - s.TurnCount; r > 0 {
		return r
	}
	return 0
}

func (s State) LimitReached() bool { return s.TurnCount >= s.TurnLimit }

func New(id string, gw Gateway, opts Options) *Game {
	if opts.TurnLimit <= 0 {
		opts.TurnLimit = DefaultTurnLimit
	}
	if opts.Prompts.System == "" {
		opts.Prompts = english
	}
	return &Game{
		id:      id,
		gateway: gw,
		prompts: opts.Prompts,
		limit:   opts.TurnLimit,
		archive: opts.Archive,
		logger:  opts.Logger.With().Str("session_id", id).Logger(),
		onLimit: opts.OnLimitReached,
	}
}

func (g *Game) ID() string { return g.id }

func (g *Game) Prompts() Prompts { return g.prompts }

// Start discards any previous transcript, seeds the rule prompt and topic
// request, and returns the model's opening message. On gateway failure the
// returned text is a user-facing error message and err is an
// *gateway.UpstreamError.
func (g *Game) Start(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.transcript = make([]protocol.Turn, 0, 2*g.limit+3)
	g.turnCount = 0
	g.append(ctx, protocol.SystemTurn(g.prompts.System))
	g.append(ctx, protocol.UserTurn(g.prompts.TopicRequest))
	g.logger.Info().Msg("game started")

	return g.exchange(ctx)
}

// Submit forwards one player message. Once the turn limit is spent it returns
// the fixed limit message without touching the transcript or the gateway.
func (g *Game) Submit(ctx context.Context, text string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.turnCount >= g.limit {
		if g.onLimit != nil {
			g.onLimit()
		}
		g.logger.Debug().Int("turn_count", g.turnCount).Msg("turn limit reached")
		return g.prompts.LimitReached, nil
	}

	g.turnCount++
	g.append(ctx, protocol.UserTurn(text))
	return g.exchange(ctx)
}

func (g *Game) TurnCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.turnCount
}

func (g *Game) TurnLimit() int { return g.limit }

// Remaining reports how many submissions will still be forwarded.
func (g *Game) Remaining() int {
	return g.State().Remaining()
}

func (g *Game) LimitReached() bool {
	return g.State().LimitReached()
}

// Transcript returns a copy of the current transcript.
func (g *Game) Transcript() []protocol.Turn {
	return g.State().Transcript
}

func (g *Game) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]protocol.Turn, len(g.transcript))
	copy(out, g.transcript)
	return State{TurnCount: g.turnCount, TurnLimit: g.limit, Transcript: out}
}

// exchange sends the whole transcript and appends the reply. Must hold g.mu.
func (g *Game) exchange(ctx context.Context) (string, error) {
	snapshot := make([]protocol.Turn, len(g.transcript))
	copy(snapshot, g.transcript)

	reply, err := g.gateway.Complete(ctx, snapshot)
	if err != nil {
		err = asUpstream(err)
		g.logger.Warn().Err(err).Int("turn_count", g.turnCount).Msg("completion failed")
		return g.prompts.ErrorPrefix + err.Error(), err
	}

	g.append(ctx, protocol.AssistantTurn(reply))
	return reply, nil
}

// append adds t to the transcript and archives a redacted copy. Must hold g.mu.
func (g *Game) append(ctx context.Context, t protocol.Turn) {
	g.transcript = append(g.transcript, t)
	if g.archive == nil {
		return
	}

	redacted, changed := policy.RedactTurn(t)
	err := g.archive.SaveTurn(context.WithoutCancel(ctx), memory.TurnRecord{
		SessionID:   g.id,
		Position:    len(g.transcript),
		Role:        string(redacted.Role),
		Content:     redacted.Content,
		PIIRedacted: changed,
	})
	if err != nil {
		g.logger.Warn().Err(err).Msg("archive turn failed")
	}
}

func asUpstream(err error) error {
	var ue *gateway.UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &gateway.UpstreamError{Provider: "unknown", Kind: reliability.Classify(err), Err: err}
}
