package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func newTestStripe(t *testing.T, h http.HandlerFunc) *Stripe {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return NewStripe("sk_test_123", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
}

func TestStripeCreateSession(t *testing.T) {
	s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "12", r.PostForm.Get("metadata[bookingId]"))
		assert.Equal(t, "1500", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "3", r.PostForm.Get("line_items[0][quantity]"))
		assert.Equal(t, "payment", r.PostForm.Get("mode"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "cs_123", "object": "checkout.session", "url": "https://checkout.example/cs_123",
		})
	})

	sess, err := s.CreateSession(context.Background(), SessionRequest{
		Item:       LineItem{Name: "Dhaka to Sylhet", UnitAmountCents: 1500, Quantity: 3, Currency: "USD"},
		PayerEmail: "user@example.com",
		Metadata:   map[string]string{MetaBookingID: "12"},
		SuccessURL: "http://localhost/ok",
		CancelURL:  "http://localhost/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, Session{ID: "cs_123", URL: "https://checkout.example/cs_123"}, sess)
}

func TestStripeRetrieveSession(t *testing.T) {
	s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/checkout/sessions/cs_123", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":             "cs_123",
			"object":         "checkout.session",
			"payment_status": "paid",
			"amount_total":   4500,
			"currency":       "usd",
			"customer_details": map[string]any{
				"email": "user@example.com",
			},
			"metadata":       map[string]string{"bookingId": "12", "ticketTitle": "Dhaka to Sylhet"},
			"payment_intent": map[string]any{"id": "pi_1", "object": "payment_intent"},
		})
	})

	got, err := s.RetrieveSession(context.Background(), "cs_123")
	require.NoError(t, err)
	assert.True(t, got.Paid)
	assert.Equal(t, "pi_1", got.TransactionID)
	assert.Equal(t, int64(4500), got.AmountCents)
	assert.Equal(t, "usd", got.Currency)
	assert.Equal(t, "user@example.com", got.PayerEmail)
	assert.Equal(t, "12", got.Metadata[MetaBookingID])
}

func TestStripeRetrieveSessionNotFound(t *testing.T) {
	s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"type": "invalid_request_error", "message": "No such checkout.session"},
		})
	})

	_, err := s.RetrieveSession(context.Background(), "cs_missing")
	require.Error(t, err)
	var se *stripe.Error
	assert.ErrorAs(t, err, &se)
}

func TestStripeNotConfigured(t *testing.T) {
	s := NewStripe("", nil)
	_, err := s.CreateSession(context.Background(), SessionRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = s.RetrieveSession(context.Background(), "cs_1")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
