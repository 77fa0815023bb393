// Package httpapi exposes the turn and transcript operations over HTTP.
// Turn execution streams server-sent events on the response; transcript
// reads are plain JSON.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"panel-lab/domain"
	apperrors "panel-lab/errors"
	"panel-lab/observability"
	"panel-lab/repositories"
	"panel-lab/runtime"
	"panel-lab/stream"
)

type Server struct {
	log          *slog.Logger
	orchestrator *runtime.Orchestrator
	roster       *runtime.Roster
	transcripts  repositories.IndexedTranscriptRepository
	search       *repositories.SearchRepository
	monitoring   *observability.Manager

	heartbeatEvery time.Duration
	emitTimeout    time.Duration
}

func NewServer(log *slog.Logger, orchestrator *runtime.Orchestrator, roster *runtime.Roster,
	transcripts repositories.IndexedTranscriptRepository, search *repositories.SearchRepository,
	monitoring *observability.Manager, heartbeatEvery, emitTimeout time.Duration) *Server {
	return &Server{
		log:            log,
		orchestrator:   orchestrator,
		roster:         roster,
		transcripts:    transcripts,
		search:         search,
		monitoring:     monitoring,
		heartbeatEvery: heartbeatEvery,
		emitTimeout:    emitTimeout,
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /turns", s.handlePostTurn)
	mux.HandleFunc("GET /transcripts/{session}", s.handleGetTranscript)
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("GET /participants", s.handleGetParticipants)
	return mux
}

// handlePostTurn runs one turn and streams its events on the response.
// The connection stays open until the turn settles; a consumer that
// disconnects mid-turn reads the rest from the transcript afterwards.
func (s *Server) handlePostTurn(w http.ResponseWriter, r *http.Request) {
	var cmd domain.PostTurnCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(cmd.Content) == "" {
		s.writeError(w, http.StatusBadRequest, apperrors.ErrEmptyContent.Error())
		return
	}
	if strings.TrimSpace(cmd.SessionID) == "" {
		s.writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	participants, err := s.roster.Select(cmd)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnknownParticipant) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.monitoring.StreamOpened()
	defer s.monitoring.StreamClosed()

	sink := newSSESink(w)
	mux := stream.NewMultiplexer(s.log, sink, s.heartbeatEvery, s.emitTimeout)

	// The turn must outlive the consumer. net/http cancels r.Context()
	// on disconnect, which would abort the generations mid-flight;
	// WithoutCancel detaches the tasks from the connection's lifetime
	// so a dropped consumer only kills the sink. The transcript entry,
	// not the live stream, is the durable contract.
	turnCtx := context.WithoutCancel(r.Context())
	if _, err := s.orchestrator.RunTurn(turnCtx, cmd.SessionID, cmd.Content, participants, mux); err != nil {
		// Only pre-stream failures land here; once events flow the
		// stream itself carries the errors.
		s.log.Error("Turn rejected", "session", cmd.SessionID, "error", err)
		if !mux.Closed() {
			s.writeError(w, http.StatusInternalServerError, "turn failed")
		}
	}
}

func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")
	if sessionID == "" {
		s.writeError(w, http.StatusBadRequest, "session is required")
		return
	}

	entries, err := s.transcripts.Fetch(sessionID)
	if err != nil {
		s.log.Error("Transcript fetch failed", "session", sessionID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "transcript fetch failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"entries":   entries,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	sessionID := r.URL.Query().Get("session")

	hits, total, err := s.search.Search(r.Context(), query, sessionID)
	if err != nil {
		s.log.Error("Search failed", "query", query, "error", err)
		s.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"total": total,
		"hits":  hits,
	})
}

func (s *Server) handleGetParticipants(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.roster.All())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Debug("Response encoding failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
