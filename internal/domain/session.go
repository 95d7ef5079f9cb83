package domain

import (
	"fmt"
	"time"
)

type SessionStatus string

const (
	SessionFocus     SessionStatus = "focus"
	SessionBreak     SessionStatus = "break"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

const (
	DefaultFocusMinutes = 25
	DefaultBreakMinutes = 5
	MaxFocusMinutes     = 120
	MaxBreakMinutes     = 60
)

// ActiveSessionStatuses are the statuses a Session can be polled in.
var ActiveSessionStatuses = []SessionStatus{SessionFocus, SessionBreak}

func (s SessionStatus) IsActive() bool {
	return s == SessionFocus || s == SessionBreak
}

func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

func (s SessionStatus) Valid() bool {
	return s.IsActive() || s.IsTerminal()
}

// Session is a focus/break timer owned by a user within a scope.
type Session struct {
	ID           string
	OwnerID      string
	ScopeID      string
	Destination  Destination
	Status       SessionStatus
	FocusMinutes int
	BreakMinutes int
	StartTime    time.Time
	EndTime      time.Time
	Notified     bool
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewSession builds a Session in Focus. Zero durations fall back to the defaults.
func NewSession(id, ownerID, scopeID string, dest Destination, focusMinutes, breakMinutes int, now time.Time) (*Session, error) {
	if focusMinutes == 0 {
		focusMinutes = DefaultFocusMinutes
	}
	if breakMinutes == 0 {
		breakMinutes = DefaultBreakMinutes
	}
	if err := ValidateDurations(focusMinutes, breakMinutes); err != nil {
		return nil, err
	}
	if ownerID == "" || scopeID == "" {
		return nil, fmt.Errorf("%w: owner and scope are required", ErrInvalidArgument)
	}
	if dest.IsZero() {
		return nil, fmt.Errorf("%w: destination is required", ErrInvalidArgument)
	}

	return &Session{
		ID:           id,
		OwnerID:      ownerID,
		ScopeID:      scopeID,
		Destination:  dest,
		Status:       SessionFocus,
		FocusMinutes: focusMinutes,
		BreakMinutes: breakMinutes,
		StartTime:    now,
		EndTime:      now.Add(minutes(focusMinutes)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func ValidateDurations(focusMinutes, breakMinutes int) error {
	if focusMinutes < 1 || focusMinutes > MaxFocusMinutes {
		return fmt.Errorf("%w: focus duration must be between 1 and %d minutes", ErrInvalidArgument, MaxFocusMinutes)
	}
	if breakMinutes < 1 || breakMinutes > MaxBreakMinutes {
		return fmt.Errorf("%w: break duration must be between 1 and %d minutes", ErrInvalidArgument, MaxBreakMinutes)
	}
	return nil
}

func (s *Session) IsActive() bool {
	return s.Status.IsActive()
}

// TakeBreak moves a Focus session into Break and restarts the clock.
func (s *Session) TakeBreak(now time.Time) error {
	if s.Status != SessionFocus {
		return fmt.Errorf("%w: cannot take a break from %s", ErrInvalidTransition, s.Status)
	}
	s.Status = SessionBreak
	s.StartTime = now
	s.EndTime = now.Add(minutes(s.BreakMinutes))
	s.Notified = false
	s.UpdatedAt = now
	return nil
}

func (s *Session) Cancel(now time.Time) error {
	if !s.IsActive() {
		return fmt.Errorf("%w: cannot cancel a %s session", ErrInvalidTransition, s.Status)
	}
	s.Status = SessionCancelled
	s.UpdatedAt = now
	return nil
}

// MarkNotified records the expiry notice for the current phase. A finished
// break closes the session out as Completed; a finished focus phase stays in
// Focus until the owner takes a break.
func (s *Session) MarkNotified(now time.Time) error {
	if !s.IsActive() || s.Notified {
		return fmt.Errorf("%w: nothing to notify for %s session", ErrInvalidTransition, s.Status)
	}
	if s.Status == SessionBreak {
		s.Status = SessionCompleted
	}
	s.Notified = true
	s.UpdatedAt = now
	return nil
}

// IsDue reports whether the current phase has ended and no notice was recorded yet.
func (s *Session) IsDue(now time.Time) bool {
	return s.IsActive() && !s.Notified && !now.Before(s.EndTime)
}

// Remaining returns the time left in the current phase, never negative.
func (s *Session) Remaining(now time.Time) time.Duration {
	left := s.EndTime.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// PhaseMinutes is the configured length of the current phase.
func (s *Session) PhaseMinutes() int {
	if s.Status == SessionBreak || s.Status == SessionCompleted {
		return s.BreakMinutes
	}
	return s.FocusMinutes
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
