package gateway

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/antoniostano/guesser/internal/observability"
	"github.com/antoniostano/guesser/internal/protocol"
	"github.com/antoniostano/guesser/internal/reliability"
)

// Instrumented decorates a Gateway with a per-call timeout, a trace span,
// metrics and a log line for every failure. It never retries.
type Instrumented struct {
	next     Gateway
	provider string
	timeout  time.Duration
	metrics  *observability.Metrics
	logger   zerolog.Logger
	tracer   trace.Tracer
}

func NewInstrumented(next Gateway, provider string, timeout time.Duration, metrics *observability.Metrics, logger zerolog.Logger) *Instrumented {
	return &Instrumented{
		next:     next,
		provider: provider,
		timeout:  timeout,
		metrics:  metrics,
		logger:   logger.With().Str("component", "gateway").Str("provider", provider).Logger(),
		tracer:   otel.Tracer("guesser.internal.gateway"),
	}
}

func (g *Instrumented) Complete(ctx context.Context, transcript []protocol.Turn) (string, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.complete", trace.WithAttributes(
		attribute.String("guesser.provider", g.provider),
		attribute.Int("guesser.transcript_len", len(transcript)),
	))
	defer span.End()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := g.next.Complete(ctx, transcript)
	elapsed := time.Since(start)
	if err != nil {
		err = upstream(g.provider, "", err)
		kind := reliability.Classify(err)
		if ue, ok := err.(*UpstreamError); ok {
			kind = ue.Kind
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		g.metrics.ObserveCompletion(g.provider, string(kind), elapsed)
		g.logger.Error().Err(err).Str("kind", string(kind)).Dur("elapsed", elapsed).Msg("completion failed")
		return "", err
	}

	g.metrics.ObserveCompletion(g.provider, "ok", elapsed)
	g.logger.Debug().Int("transcript_len", len(transcript)).Dur("elapsed", elapsed).Msg("completion ok")
	return reply, nil
}

// Close forwards to the wrapped gateway when it holds resources.
func (g *Instrumented) Close() error {
	if c, ok := g.next.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
