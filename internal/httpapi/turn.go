package httpapi

import (
	"net/http"

	"openhistoria/internal/apperr"
	"openhistoria/internal/sanitize"
	"openhistoria/internal/turn"
)

// handleTurn is the stateless boundary: the client sends its whole context
// and gets back the sanitized payload. Failures keep the same shape with an
// empty update list.
func (s *Server) handleTurn(rw http.ResponseWriter, r *http.Request) {
	var req turn.Request
	if err := decodeBody(rw, r, &req); err != nil {
		writeJSON(rw, http.StatusBadRequest, sanitize.Payload{Message: apperr.Narrative(err)})
		return
	}

	payload, err := s.adjudicator.Adjudicate(r.Context(), req)
	if err != nil {
		s.log.Printf("turn %q via %s failed: %v", req.Command, req.Config.Provider, err)
		writeJSON(rw, apperr.HTTPStatus(err), sanitize.Payload{Message: apperr.Narrative(err)})
		return
	}
	writeJSON(rw, http.StatusOK, payload)
}
