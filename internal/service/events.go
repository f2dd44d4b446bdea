package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/groupbuy-api/internal/models"
	"github.com/noah-isme/groupbuy-api/internal/observability"
)

// EventType names a committed change to a listing.
type EventType string

const (
	EventParticipantJoined    EventType = "participant_joined"
	EventParticipantLeft      EventType = "participant_left"
	EventListingStatusChanged EventType = "listing_status_changed"
	EventListingDeleted       EventType = "listing_deleted"
	EventListingDeadlineSoon  EventType = "listing_deadline_soon"
)

// Event is emitted once the primary mutation has committed. Listing is a snapshot taken
// after the change (before it, for deletes).
type Event struct {
	Type       EventType
	Listing    models.Listing
	UserID     string
	From       models.ListingStatus
	To         models.ListingStatus
	OccurredAt time.Time
}

// SideEffect is a single unit of secondary work planned by a handler. Each one is retried and
// recorded on its own so a failure never repeats effects that already succeeded.
type SideEffect struct {
	Name string
	Run  func(ctx context.Context) error
}

// EventHandler turns events into side effects. Plan may return effects together with an error
// when only part of the recipients could be resolved; the returned effects still run.
type EventHandler interface {
	Name() string
	Plan(ctx context.Context, event Event) ([]SideEffect, error)
}

// EventDispatcher delivers events to handlers synchronously. Handler errors and panics are
// logged and counted, never returned.
type EventDispatcher struct {
	handlers []EventHandler
	attempts int
	logger   zerolog.Logger
}

// NewEventDispatcher builds a dispatcher; attempts below one are treated as one.
func NewEventDispatcher(logger zerolog.Logger, attempts int, handlers ...EventHandler) *EventDispatcher {
	if attempts < 1 {
		attempts = 1
	}
	return &EventDispatcher{
		handlers: handlers,
		attempts: attempts,
		logger:   logger.With().Str("component", "event_dispatcher").Logger(),
	}
}

// Register appends a handler.
func (d *EventDispatcher) Register(handler EventHandler) {
	d.handlers = append(d.handlers, handler)
}

// Dispatch runs every handler for the event.
func (d *EventDispatcher) Dispatch(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	observability.ListingEvents().WithLabelValues(string(event.Type)).Inc()

	for _, handler := range d.handlers {
		var effects []SideEffect
		err := d.attempt(ctx, func(ctx context.Context) error {
			effects = nil
			planned, err := handler.Plan(ctx, event)
			effects = planned
			return err
		})
		if err != nil {
			d.fail(handler.Name(), "plan", event, err)
		}

		for _, effect := range effects {
			if err := d.attempt(ctx, effect.Run); err != nil {
				d.fail(handler.Name(), effect.Name, event, err)
			}
		}
	}
}

func (d *EventDispatcher) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for i := 0; i < d.attempts; i++ {
		if err = safeRun(ctx, fn); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

func safeRun(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("side effect panicked: %v", recovered)
		}
	}()
	return fn(ctx)
}

func (d *EventDispatcher) fail(handler, effect string, event Event, err error) {
	observability.SideEffectFailures().WithLabelValues(handler, string(event.Type)).Inc()
	d.logger.Warn().
		Err(err).
		Str("handler", handler).
		Str("effect", effect).
		Str("event", string(event.Type)).
		Str("listing_id", event.Listing.ID).
		Str("user_id", event.UserID).
		Msg("side effect failed")
}
