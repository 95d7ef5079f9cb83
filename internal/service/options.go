package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"devhelper/internal/domain"
)

// conflictAttempts bounds how many times a command re-reads and re-applies
// after losing a conditional update.
const conflictAttempts = 3

type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

func defaultOptions() options {
	return options{
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides the UUIDv4 generator used for new entities.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func retryOnConflict(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for range conflictAttempts {
		if err = fn(ctx); !errors.Is(err, domain.ErrConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}
