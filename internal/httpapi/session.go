package httpapi

import (
	"context"
	"net/http"

	"openhistoria/internal/timeline"
)

type commandRequest struct {
	Command string `json:"command"`
}

type advanceRequest struct {
	Years int `json:"years"`
}

type advanceResponse struct {
	Turn int `json:"turn"`
}

type timelineResponse struct {
	Current   string              `json:"current,omitempty"`
	Snapshots []timeline.Snapshot `json:"snapshots"`
}

type positionResponse struct {
	Turn    int    `json:"turn"`
	Current string `json:"current"`
}

func (s *Server) handleCommand(rw http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := decodeBody(rw, r, &req); err != nil {
		s.writeError(rw, err)
		return
	}
	res, err := s.session.Submit(context.WithoutCancel(r.Context()), req.Command)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, res)
}

func (s *Server) handleState(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, s.session.World().State())
}

func (s *Server) handleAdvance(rw http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if err := decodeBody(rw, r, &req); err != nil {
		s.writeError(rw, err)
		return
	}
	turn, err := s.session.AdvanceTime(req.Years)
	if err != nil {
		s.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, advanceResponse{Turn: turn})
}

func (s *Server) handleTimeline(rw http.ResponseWriter, r *http.Request) {
	tl := s.session.Timeline()
	writeJSON(rw, http.StatusOK, timelineResponse{Current: tl.Current(), Snapshots: tl.List()})
}

func (s *Server) handleRewind(rw http.ResponseWriter, r *http.Request) {
	if err := s.session.Rewind(r.PathValue("id")); err != nil {
		s.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, s.position())
}

func (s *Server) handleBranch(rw http.ResponseWriter, r *http.Request) {
	if err := s.session.Branch(r.PathValue("id")); err != nil {
		s.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, s.position())
}

func (s *Server) position() positionResponse {
	return positionResponse{Turn: s.session.World().Turn(), Current: s.session.Timeline().Current()}
}
