package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/conneroisu/roster/internal/appstate"
	apperrors "github.com/conneroisu/roster/internal/errors"
	"github.com/conneroisu/roster/internal/monitoring"
	"github.com/conneroisu/roster/internal/state"
	"github.com/conneroisu/roster/internal/version"
	"github.com/conneroisu/roster/internal/views"
)

// statusClientClosedRequest is the de facto code for a request abandoned by
// its client. Nothing is written with it; it only reaches logs and metrics.
const statusClientClosedRequest = 499

const maxTeacherBody = 1 << 10

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, views.Home())
}

func (s *Server) handleTeacher(w http.ResponseWriter, r *http.Request) {
	name, err := state.MustGet[appstate.Teacher](s.store).Load(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, views.Teacher(string(name)))
}

type setTeacherRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleSetTeacher(w http.ResponseWriter, r *http.Request) {
	var req setTeacherRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTeacherBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, apperrors.NewHTTPError("ERR_INVALID_BODY", "request body must be {\"name\": string}", err))
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		s.writeError(w, r, apperrors.NewValidationError("ERR_TEACHER", "teacher name cannot be empty"))
		return
	}

	if err := appstate.SetTeacher(r.Context(), s.store, name); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "teacher updated", "teacher", name)
	writeJSON(w, http.StatusOK, map[string]string{"teacher": name})
}

func (s *Server) handleStudents(w http.ResponseWriter, r *http.Request) {
	var names []string
	err := state.MustGet[appstate.Roster](s.store).Read(r.Context(), func(roster appstate.Roster) error {
		names = append(names, roster...)
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, views.Students(names))
}

func (s *Server) handleCounter(w http.ResponseWriter, r *http.Request) {
	n, err := appstate.IncrementCounter(r.Context(), s.store)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"counter": n})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := appstate.Snapshot(r.Context(), s.store)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type healthResponse struct {
	monitoring.HealthResponse
	Version string           `json:"version"`
	Slots   []state.SlotInfo `json:"slots"`
}

// handleHealth answers 200 while the store is healthy or degraded and 503
// once a critical check fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.health.Evaluate(r.Context())

	status := http.StatusOK
	if health.Status == monitoring.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{
		HealthResponse: health,
		Version:        version.GetShortVersion(),
		Slots:          s.store.Describe(),
	})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		s.logger.Warn(r.Context(), err, "render failed", "path", r.URL.Path)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError maps store and validation failures onto HTTP:
//
//	lock timeout    -> 503 with Retry-After
//	lock cancelled  -> nothing written, the client is gone
//	validation/http -> 400
//	anything else   -> 500
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	code := apperrors.GetErrorCode(err)

	switch {
	case errors.Is(err, state.ErrLockCancelled):
		s.logger.Debug(ctx, "request abandoned while waiting for state", "path", r.URL.Path, "error", err.Error())
		w.WriteHeader(statusClientClosedRequest)

	case errors.Is(err, state.ErrLockTimeout):
		s.logger.Warn(ctx, err, "state lock timed out", "path", r.URL.Path)
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "shared state is busy, retry later", Code: code})

	case apperrors.IsValidationError(err), apperrors.IsHTTPError(err):
		var ae *apperrors.AppError
		errors.As(err, &ae)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ae.Message, Code: code})

	case apperrors.IsStateError(err):
		s.logger.Error(ctx, err, "shared state failure", "path", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: code})

	default:
		s.logger.Error(ctx, err, "request failed", "path", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
