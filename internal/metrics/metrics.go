// Package metrics exposes Prometheus collectors for the booking and payment
// flows plus HTTP request instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketplace"

var (
	// BookingsTotal counts booking attempts by outcome (created, expired,
	// out_of_stock, insufficient_stock, not_found, invalid, error).
	BookingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bookings_total",
		Help:      "Booking attempts by result.",
	}, []string{"result"})

	// PaymentsTotal counts payment confirmations by outcome (recorded,
	// already_processed, lookup_failed, invalid, error).
	PaymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payments_total",
		Help:      "Payment confirmations by result.",
	}, []string{"result"})

	// TicketsSold counts seats taken by successful bookings.
	TicketsSold = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tickets_sold_total",
		Help:      "Seats decremented by successful bookings.",
	})

	// EventsPublishFailed counts domain events that could not be published.
	EventsPublishFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_publish_failed_total",
		Help:      "Domain events dropped because the broker was unavailable.",
	}, []string{"type"})

	// HTTPRequestDuration observes request latency by route and status.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
