package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antoniostano/guesser/internal/observability"
	"github.com/antoniostano/guesser/internal/protocol"
	"github.com/antoniostano/guesser/internal/session"
)

const (
	wsReadTimeout  = 120 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// handleSessionWS streams a chat over a websocket. Each chat_message frame is
// answered by one assistant_reply; restart starts a new game in the session.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	s.observeSessionEvent("ws_connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-outbound:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.countWS("outbound", t)
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for ctx.Err() == nil {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.enqueue(ctx, outbound, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sess.ID,
				Code:      "invalid_client_message",
				Detail:    err.Error(),
			})
			continue
		}
		if t, ok := messageTypeOf(parsed); ok {
			s.countWS("inbound", t)
		}
		s.enqueue(ctx, outbound, s.handleClientMessage(ctx, sess, parsed))
	}

	cancel()
	<-writerDone
	s.observeSessionEvent("ws_disconnected")
}

func (s *Server) handleClientMessage(ctx context.Context, sess *session.Session, msg any) any {
	var (
		reply string
		err   error
		stage string
	)
	start := time.Now()
	switch m := msg.(type) {
	case protocol.ClientRestart:
		stage = observability.StageInitialize
		reply, err = sess.Game.Start(ctx)
	case protocol.ClientChatMessage:
		stage = observability.StageChat
		reply, err = sess.Game.Submit(ctx, m.Message)
	default:
		return protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: sess.ID,
			Code:      "unsupported_message",
			Detail:    protocol.ErrUnsupportedType.Error(),
		}
	}
	s.metrics.ObserveRequest(stage, time.Since(start))
	_ = s.sessions.Touch(sess.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("websocket completion failed")
	}

	state := sess.Game.State()
	return protocol.AssistantReply{
		Type:           protocol.TypeAssistantReply,
		SessionID:      sess.ID,
		Response:       reply,
		TurnCount:      state.TurnCount,
		TurnsRemaining: state.Remaining(),
		LimitReached:   state.LimitReached(),
	}
}

func (s *Server) enqueue(ctx context.Context, outbound chan<- any, msg any) {
	select {
	case <-ctx.Done():
	case outbound <- msg:
	}
}

func (s *Server) countWS(direction string, t protocol.MessageType) {
	if s.metrics == nil {
		return
	}
	s.metrics.WSMessages.WithLabelValues(direction, string(t)).Inc()
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.ClientChatMessage:
		return m.Type, true
	case protocol.ClientRestart:
		return m.Type, true
	case protocol.AssistantReply:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
