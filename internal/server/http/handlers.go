package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/guardvision/guardvision/internal/export"
	"github.com/guardvision/guardvision/internal/monitor/core"
	"github.com/guardvision/guardvision/internal/monitor/eventloop"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (s *Server) getFrame(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.nav.Frame())
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid login request: " + err.Error()})
		return
	}
	if err := s.nav.Login(r.Context(), req.Identifier, req.Secret); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.nav.Frame())
}

func (s *Server) selectCamera(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.action(func(ctx context.Context) error {
		return s.nav.SelectCamera(ctx, id)
	})(w, r)
}

// action adapts a navigator operation that takes no arguments.
func (s *Server) action(op func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := op(r.Context()); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.nav.Frame())
	}
}

func (s *Server) exportRecord(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "evidence export is disabled"})
		return
	}
	res, err := s.exporter.ExportFromFrame(r.Context(), s.nav.Frame(), mux.Vars(r)["pushKey"])
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// fail writes err with its status and the operator message of the current frame.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error(err, "request failed", "status", status)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Message: s.nav.Frame().Message})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrAuthenticationRejected):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrInvalidTransition),
		errors.Is(err, core.ErrNoActiveFeed),
		errors.Is(err, export.ErrNotViewingCamera):
		return http.StatusConflict
	case errors.Is(err, export.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, export.ErrNoImage):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, eventloop.ErrStopped):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
