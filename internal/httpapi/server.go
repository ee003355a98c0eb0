package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/antoniostano/guesser/internal/config"
	"github.com/antoniostano/guesser/internal/game"
	"github.com/antoniostano/guesser/internal/memory"
	"github.com/antoniostano/guesser/internal/observability"
	"github.com/antoniostano/guesser/internal/protocol"
	"github.com/antoniostano/guesser/internal/session"
)

const (
	sessionHeader  = "X-Session-ID"
	statusArchived = "archived"
)

type Server struct {
	cfg      config.Config
	sessions *session.Manager
	metrics  *observability.Metrics
	logger   zerolog.Logger
	archive  memory.Store
	upgrader websocket.Upgrader
}

// New builds the HTTP surface. archive may be nil; when set it serves the
// transcripts of sessions that are no longer live.
func New(cfg config.Config, sessions *session.Manager, metrics *observability.Metrics, logger zerolog.Logger, archive memory.Store) *Server {
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
		archive:  archive,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(s.logger))
	r.Use(cors(s.cfg.CORSOrigins, s.cfg.AllowAnyOrigin))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/initialize", s.handleInitialize)
	r.Post("/chat", s.handleChat)
	r.Options("/chat", s.handlePreflight)
	r.Options("/initialize", s.handlePreflight)

	r.Get("/v1/sessions/ws", s.handleSessionWS)
	r.Get("/v1/sessions/{id}", s.handleGetSession)
	r.Post("/v1/sessions/{id}/end", s.handleEndSession)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_sessions": s.sessions.ActiveCount(),
		"archive_mode":    s.archiveMode(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":              "ready",
		"completion_provider": s.cfg.CompletionProvider,
		"archive_mode":        s.archiveMode(),
	})
}

func (s *Server) handlePreflight(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req protocol.InitializeRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	id := requestSessionID(r, req.SessionID)

	sess, created := s.sessions.GetOrCreate(id)
	if created {
		s.observeSessionEvent("created")
	}

	start := time.Now()
	reply, err := sess.Game.Start(r.Context())
	s.metrics.ObserveRequest(observability.StageInitialize, time.Since(start))
	_ = s.sessions.Touch(sess.ID)

	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sess.ID).Msg("initialize failed")
		respondJSON(w, http.StatusInternalServerError, protocol.InitializeResponse{
			Error:     reply,
			SessionID: sess.ID,
		})
		return
	}
	respondJSON(w, http.StatusOK, protocol.InitializeResponse{
		Message:   reply,
		SessionID: sess.ID,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req protocol.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}

	sess, err := s.sessions.Get(requestSessionID(r, req.SessionID))
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	start := time.Now()
	reply, err := sess.Game.Submit(r.Context(), req.Message)
	s.metrics.ObserveRequest(observability.StageChat, time.Since(start))
	_ = s.sessions.Touch(sess.ID)
	if err != nil {
		// The reply already carries the user-facing error text.
		s.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("chat completion failed")
	}

	state := sess.Game.State()
	respondJSON(w, http.StatusOK, protocol.ChatResponse{
		Response:       reply,
		SessionID:      sess.ID,
		TurnCount:      state.TurnCount,
		TurnsRemaining: state.Remaining(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.Get(id)
	if err == nil {
		respondJSON(w, http.StatusOK, snapshotOf(sess))
		return
	}
	if s.archive != nil {
		records, archiveErr := s.archive.SessionTurns(r.Context(), session.ResolveID(id), 0)
		if archiveErr != nil {
			s.logger.Warn().Err(archiveErr).Str("session_id", id).Msg("archive lookup failed")
		} else if len(records) > 0 {
			respondJSON(w, http.StatusOK, s.archivedSnapshot(session.ResolveID(id), records))
			return
		}
	}
	respondError(w, http.StatusNotFound, "session_not_found", err.Error())
}

// archivedSnapshot rebuilds the most recent game of a session from its
// archived turns. A restart begins again at position 1.
func (s *Server) archivedSnapshot(id string, records []memory.TurnRecord) protocol.SessionSnapshot {
	start := 0
	for i, rec := range records {
		if rec.Position == 1 {
			start = i
		}
	}

	transcript := make([]protocol.Turn, 0, len(records)-start)
	userTurns := 0
	for _, rec := range records[start:] {
		role := protocol.Role(rec.Role)
		if role == protocol.RoleUser {
			userTurns++
		}
		transcript = append(transcript, protocol.Turn{Role: role, Content: rec.Content})
	}

	limit := s.cfg.GameTurnLimit
	if limit <= 0 {
		limit = game.DefaultTurnLimit
	}
	// The topic request is a user turn but not a submission.
	state := game.State{TurnCount: max(userTurns-1, 0), TurnLimit: limit, Transcript: transcript}
	return protocol.SessionSnapshot{
		SessionID:      id,
		Status:         statusArchived,
		TurnCount:      state.TurnCount,
		TurnLimit:      state.TurnLimit,
		TurnsRemaining: state.Remaining(),
		Transcript:     state.Transcript,
	}
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.observeSessionEvent("ended")
	respondJSON(w, http.StatusOK, snapshotOf(sess))
}

func (s *Server) observeSessionEvent(event string) {
	if s.metrics == nil {
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues(event).Inc()
}

func (s *Server) archiveMode() string {
	return memory.Mode(s.archive)
}

// checkOrigin accepts same-origin browsers, allowlisted origins and
// non-browser clients that omit Origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	if s.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.CORSOrigins {
		if strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func requestSessionID(r *http.Request, bodyID string) string {
	if id := strings.TrimSpace(bodyID); id != "" {
		return id
	}
	return session.ResolveID(r.Header.Get(sessionHeader))
}

func snapshotOf(sess *session.Session) protocol.SessionSnapshot {
	state := sess.Game.State()
	return protocol.SessionSnapshot{
		SessionID:      sess.ID,
		Status:         string(sess.Status),
		TurnCount:      state.TurnCount,
		TurnLimit:      state.TurnLimit,
		TurnsRemaining: state.Remaining(),
		Transcript:     state.Transcript,
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
