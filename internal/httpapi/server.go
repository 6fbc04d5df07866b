// Package httpapi serves the turn boundary, the stateful session endpoints
// and a WebSocket command channel.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"openhistoria/internal/apperr"
	"openhistoria/internal/store"
	"openhistoria/internal/timeline"
	"openhistoria/internal/turn"
)

const maxBodyBytes = 1 << 20

type Options struct {
	Session     *turn.Coordinator
	Adjudicator *turn.Adjudicator
	// Games is optional; save endpoints answer 503 without it.
	Games  store.Store
	Logger *log.Logger
}

type Server struct {
	session     *turn.Coordinator
	adjudicator *turn.Adjudicator
	games       store.Store
	log         *log.Logger
	tracer      trace.Tracer

	upgrader websocket.Upgrader
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		session:     opts.Session,
		adjudicator: opts.Adjudicator,
		games:       opts.Games,
		log:         logger,
		tracer:      otel.Tracer("openhistoria/httpapi"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /api/turn", s.handleTurn)

	mux.HandleFunc("POST /api/session/command", s.handleCommand)
	mux.HandleFunc("GET /api/session/state", s.handleState)
	mux.HandleFunc("POST /api/session/advance", s.handleAdvance)

	mux.HandleFunc("GET /api/timeline", s.handleTimeline)
	mux.HandleFunc("POST /api/timeline/{id}/rewind", s.handleRewind)
	mux.HandleFunc("POST /api/timeline/{id}/branch", s.handleBranch)

	mux.HandleFunc("GET /api/saves", s.handleListSaves)
	mux.HandleFunc("POST /api/saves", s.handleCreateSave)
	mux.HandleFunc("POST /api/saves/{id}/load", s.handleLoadSave)
	mux.HandleFunc("DELETE /api/saves/{id}", s.handleDeleteSave)

	mux.HandleFunc("GET /ws", s.handleWS)

	return s.traced(mux)
}

func (s *Server) traced(next http.Handler) http.Handler {
	propagator := otel.GetTextMapPropagator()
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := s.tracer.Start(ctx, r.Method+" "+r.URL.Path)
		defer span.End()
		span.SetAttributes(attribute.String("http.method", r.Method))
		next.ServeHTTP(rw, r.WithContext(ctx))
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func (s *Server) writeError(rw http.ResponseWriter, err error) {
	writeJSON(rw, statusOf(err), errorBody{Error: errorMessage(err)})
}

func errorMessage(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		return apperr.Narrative(err)
	}
	return err.Error()
}

// statusOf maps session errors onto HTTP codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, turn.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, timeline.ErrSnapshotNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	}
	return apperr.HTTPStatus(err)
}

func decodeBody(rw http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(rw, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.CodeValidation, "malformed request body", err)
	}
	return nil
}
