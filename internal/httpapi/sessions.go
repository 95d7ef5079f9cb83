package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"devhelper/internal/domain"
	"devhelper/internal/service"
)

type destinationRequest struct {
	ChannelID string `json:"channel_id" validate:"required"`
	MessageID string `json:"message_id"`
}

func (d destinationRequest) toDomain() domain.Destination {
	return domain.Destination{ChannelID: d.ChannelID, MessageID: d.MessageID}
}

type startSessionRequest struct {
	OwnerID      string             `json:"owner_id" validate:"required"`
	ScopeID      string             `json:"scope_id" validate:"required"`
	Destination  destinationRequest `json:"destination"`
	FocusMinutes int                `json:"focus_minutes" validate:"gte=0,lte=120"`
	BreakMinutes int                `json:"break_minutes" validate:"gte=0,lte=60"`
}

type sessionResponse struct {
	ID           string               `json:"id"`
	OwnerID      string               `json:"owner_id"`
	ScopeID      string               `json:"scope_id"`
	Status       domain.SessionStatus `json:"status"`
	FocusMinutes int                  `json:"focus_minutes"`
	BreakMinutes int                  `json:"break_minutes"`
	StartTime    time.Time            `json:"start_time"`
	EndTime      time.Time            `json:"end_time"`
	Notified     bool                 `json:"notified"`
}

func toSessionResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		ID:           s.ID,
		OwnerID:      s.OwnerID,
		ScopeID:      s.ScopeID,
		Status:       s.Status,
		FocusMinutes: s.FocusMinutes,
		BreakMinutes: s.BreakMinutes,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		Notified:     s.Notified,
	}
}

type statusResponse struct {
	Status           domain.SessionStatus `json:"status"`
	RemainingSeconds int64                `json:"remaining_seconds"`
	EndTime          time.Time            `json:"end_time"`
	Notified         bool                 `json:"notified"`
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.validator.Struct(req); err != nil {
		validationError(w, err)
		return
	}

	session, err := s.sessions.Start(r.Context(), service.StartSessionInput{
		OwnerID:      req.OwnerID,
		ScopeID:      req.ScopeID,
		Destination:  req.Destination.toDomain(),
		FocusMinutes: req.FocusMinutes,
		BreakMinutes: req.BreakMinutes,
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	success(w, http.StatusCreated, toSessionResponse(session))
}

func (s *Server) takeBreak(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.TakeBreak(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "scope"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	success(w, http.StatusOK, toSessionResponse(session))
}

func (s *Server) cancelSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Cancel(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "scope"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	success(w, http.StatusOK, toSessionResponse(session))
}

func (s *Server) sessionStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.sessions.Status(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "scope"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	success(w, http.StatusOK, statusResponse{
		Status:           st.Status,
		RemainingSeconds: int64(st.Remaining / time.Second),
		EndTime:          st.EndTime,
		Notified:         st.Notified,
	})
}
