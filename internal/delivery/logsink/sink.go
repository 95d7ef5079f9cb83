// Package logsink is a Gateway that writes deliveries to the log instead of
// a chat platform. It backs local runs and demos.
package logsink

import (
	"context"
	"fmt"
	"log/slog"

	"devhelper/internal/domain"
)

// Sink keeps no state; every delivery goes straight to the logger.
type Sink struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Sink {
	return &Sink{logger: logger.With("gateway", "log")}
}

func (s *Sink) Resolve(_ context.Context, dest domain.Destination) error {
	if dest.IsZero() {
		return fmt.Errorf("%w: empty channel", domain.ErrDestinationUnreachable)
	}
	return nil
}

func (s *Sink) Deliver(_ context.Context, dest domain.Destination, payload domain.Payload) error {
	s.logger.Info("delivery",
		"channel_id", dest.ChannelID,
		"message_id", dest.MessageID,
		"text", payload.Text,
		"edit", payload.Edit,
	)
	return nil
}
