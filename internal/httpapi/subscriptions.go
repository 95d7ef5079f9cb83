package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"devhelper/internal/domain"
	"devhelper/internal/service"
)

type subscribeRequest struct {
	Destination destinationRequest `json:"destination"`
	Frequency   string             `json:"frequency" validate:"required,oneof=daily weekly"`
	Sources     []string           `json:"sources" validate:"dive,oneof=devto hackernews reddit"`
	Tags        []string           `json:"tags" validate:"dive,required,max=64"`
}

type subscriptionResponse struct {
	ID        string           `json:"id"`
	OwnerID   string           `json:"owner_id"`
	ScopeID   string           `json:"scope_id"`
	Frequency domain.Frequency `json:"frequency"`
	Sources   []string         `json:"sources"`
	Tags      []string         `json:"tags"`
	LastSent  *time.Time       `json:"last_sent,omitempty"`
	NextDue   time.Time        `json:"next_due"`
	Active    bool             `json:"active"`
}

func (s *Server) toSubscriptionResponse(sub *domain.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:        sub.ID,
		OwnerID:   sub.OwnerID,
		ScopeID:   sub.ScopeID,
		Frequency: sub.Frequency,
		Sources:   sub.Sources,
		Tags:      sub.Tags,
		LastSent:  sub.LastSent,
		NextDue:   sub.NextDue(s.now()),
		Active:    sub.Active,
	}
}

func (s *Server) subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.validator.Struct(req); err != nil {
		validationError(w, err)
		return
	}

	sub, err := s.subscriptions.Subscribe(r.Context(), service.SubscribeInput{
		OwnerID:     chi.URLParam(r, "owner"),
		ScopeID:     chi.URLParam(r, "scope"),
		Destination: req.Destination.toDomain(),
		Frequency:   domain.Frequency(req.Frequency),
		Sources:     req.Sources,
		Tags:        req.Tags,
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	success(w, http.StatusOK, s.toSubscriptionResponse(sub))
}

func (s *Server) unsubscribe(w http.ResponseWriter, r *http.Request) {
	removed, err := s.subscriptions.Unsubscribe(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "scope"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "no active subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subscriptions.Get(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "scope"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	success(w, http.StatusOK, s.toSubscriptionResponse(sub))
}
