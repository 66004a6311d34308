package mock

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Routes mounts the socket endpoint and the control API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Handle("/socket.io/*", s.handler)
	r.Route("/api", func(r chi.Router) {
		r.Get("/responses", s.handleResponses)
		r.Get("/clients", s.handleClients)
		r.Get("/status", s.handleStatus)
		r.Post("/push/{kind}", s.handlePush)
		r.Post("/disconnect", s.handleDisconnect)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleResponses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Responses())
}

func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"clients": s.ClientCount()})
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	kind := Kind(chi.URLParam(r, "kind"))
	sent, err := s.Push(kind)
	switch {
	case errors.Is(err, ErrNoClients):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "sent": sent})
	}
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"disconnected": s.DisconnectAll()})
}
