package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"openhistoria/internal/store"
)

var errNoStorage = errors.New("saving is not configured")

type createSaveRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

func (s *Server) requireGames(rw http.ResponseWriter) bool {
	if s.games == nil {
		writeJSON(rw, http.StatusServiceUnavailable, errorBody{Error: errNoStorage.Error()})
		return false
	}
	return true
}

func (s *Server) handleListSaves(rw http.ResponseWriter, r *http.Request) {
	if !s.requireGames(rw) {
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query != "" {
		results, err := s.games.SearchGames(r.Context(), query)
		if err != nil {
			s.writeError(rw, err)
			return
		}
		writeJSON(rw, http.StatusOK, results)
		return
	}
	games, err := s.games.ListGames(r.Context())
	if err != nil {
		s.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, games)
}

func (s *Server) handleCreateSave(rw http.ResponseWriter, r *http.Request) {
	if !s.requireGames(rw) {
		return
	}
	var req createSaveRequest
	if err := decodeBody(rw, r, &req); err != nil {
		s.writeError(rw, err)
		return
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeJSON(rw, http.StatusBadRequest, errorBody{Error: "name is required"})
		return
	}

	game := store.Capture(s.session, id, name, s.session.Settings().Scenario)
	if err := s.games.SaveGame(r.Context(), game); err != nil {
		s.log.Printf("saving %s failed: %v", id, err)
		s.writeError(rw, err)
		return
	}
	saved, err := s.games.LoadGame(r.Context(), id)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusCreated, saved.Summary())
}

func (s *Server) handleLoadSave(rw http.ResponseWriter, r *http.Request) {
	if !s.requireGames(rw) {
		return
	}
	game, err := s.games.LoadGame(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(rw, err)
		return
	}
	if err := s.session.Load(game.State, game.Timeline, game.CurrentSnapshot); err != nil {
		s.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, s.position())
}

func (s *Server) handleDeleteSave(rw http.ResponseWriter, r *http.Request) {
	if !s.requireGames(rw) {
		return
	}
	if err := s.games.DeleteGame(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(rw, err)
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}
