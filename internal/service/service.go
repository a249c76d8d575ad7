// Package service holds the business rules. Handlers call into it with the
// authenticated caller; it talks to storage, the checkout provider and the
// event bus through the small interfaces declared next to each service.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/ticket-marketplace/internal/apperr"
	"github.com/iliyamo/ticket-marketplace/internal/logging"
	"github.com/iliyamo/ticket-marketplace/internal/metrics"
	"github.com/iliyamo/ticket-marketplace/internal/queue"
	"github.com/iliyamo/ticket-marketplace/internal/repository"
)

// EventPublisher delivers domain events. *queue.Publisher implements it.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// Clock returns the current time. Tests pin it.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// publish emits an event without failing the caller: the write it describes
// has already committed.
func publish(ctx context.Context, events EventPublisher, eventType string, payload any, now time.Time) {
	if events == nil {
		return
	}
	log := logging.FromContext(ctx)
	ev, err := queue.NewEvent(eventType, logging.CorrelationIDFromContext(ctx), payload, now)
	if err != nil {
		log.WithError(err).WithField("event_type", eventType).Error("build event")
		return
	}
	if err := events.Publish(ctx, ev); err != nil {
		metrics.EventsPublishFailed.WithLabelValues(eventType).Inc()
		log.WithError(err).WithField("event_type", eventType).Warn("publish event failed")
	}
}

// translate maps storage sentinels onto the application error taxonomy.
// Errors that already carry a kind pass through unchanged.
func translate(err error, action string) error {
	var ae *apperr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ae):
		return err
	case errors.Is(err, repository.ErrTicketNotFound):
		return apperr.NotFound("ticket not found")
	case errors.Is(err, repository.ErrBookingNotFound):
		return apperr.NotFound("booking not found")
	case errors.Is(err, repository.ErrUserNotFound):
		return apperr.NotFound("user not found")
	case errors.Is(err, repository.ErrRequestNotFound):
		return apperr.NotFound("vendor request not found")
	case errors.Is(err, repository.ErrInsufficientStock):
		return apperr.InsufficientStock("not enough tickets left")
	case errors.Is(err, repository.ErrTicketLocked):
		return apperr.Conflict("rejected tickets cannot be modified")
	case errors.Is(err, repository.ErrEmailExists):
		return apperr.Conflict("email already registered")
	case errors.Is(err, repository.ErrPendingRequest):
		return apperr.Conflict("a vendor request is already pending for this account")
	case errors.Is(err, repository.ErrAdvertiseLimit):
		return apperr.Conflict("advertise limit reached")
	case errors.Is(err, repository.ErrNotAdvertisable):
		return apperr.Conflict("only approved, active tickets can be advertised")
	case errors.Is(err, repository.ErrSerialization):
		return apperr.Conflict("concurrent update, retry the request")
	case errors.Is(err, repository.ErrConflict):
		return apperr.Conflict(action + " conflicts with the current state")
	}
	return apperr.Unexpected(action+" failed", err)
}
