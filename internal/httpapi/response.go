package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"devhelper/internal/domain"
)

type errorMapping struct {
	err     error
	status  int
	message string
}

var errorMappings = []errorMapping{
	{err: domain.ErrAlreadyActive, status: http.StatusConflict},
	{err: domain.ErrConflict, status: http.StatusConflict, message: "resource was modified concurrently, retry"},
	{err: domain.ErrNotFound, status: http.StatusNotFound},
	{err: domain.ErrInvalidArgument, status: http.StatusBadRequest},
	{err: domain.ErrInvalidTransition, status: http.StatusConflict},
	{err: domain.ErrStoreUnavailable, status: http.StatusServiceUnavailable, message: "storage unavailable"},
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func success(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"message": message},
	})
}

func validationError(w http.ResponseWriter, err error) {
	var details any = err.Error()
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]map[string]string, 0, len(verrs))
		for _, e := range verrs {
			fields = append(fields, map[string]string{"field": e.Field(), "message": e.Tag()})
		}
		details = fields
	}
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": map[string]any{"message": "validation error", "details": details},
	})
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			writeError(w, m.status, msg)
			return
		}
	}
	s.logger.Error("internal error", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
