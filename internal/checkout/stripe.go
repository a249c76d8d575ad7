package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Stripe implements Provider with Stripe Checkout.
type Stripe struct {
	api *client.API
}

// NewStripe builds a client for key. backends may be nil to use Stripe's
// production endpoints.
func NewStripe(key string, backends *stripe.Backends) *Stripe {
	if key == "" {
		return &Stripe{}
	}
	api := &client.API{}
	api.Init(key, backends)
	return &Stripe{api: api}
}

func (s *Stripe) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	if s.api == nil {
		return Session{}, ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(strings.ToLower(req.Item.Currency)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Item.Name),
				},
				UnitAmount: stripe.Int64(req.Item.UnitAmountCents),
			},
			Quantity: stripe.Int64(req.Item.Quantity),
		}},
	}
	if req.PayerEmail != "" {
		params.CustomerEmail = stripe.String(req.PayerEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("stripe create session: %w", err)
	}
	return Session{ID: sess.ID, URL: sess.URL}, nil
}

func (s *Stripe) RetrieveSession(ctx context.Context, sessionID string) (CompletedSession, error) {
	if s.api == nil {
		return CompletedSession{}, ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")

	sess, err := s.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return CompletedSession{}, fmt.Errorf("stripe retrieve session %s: %w", sessionID, err)
	}

	out := CompletedSession{
		ID:          sess.ID,
		AmountCents: sess.AmountTotal,
		Currency:    string(sess.Currency),
		PayerEmail:  sess.CustomerEmail,
		Metadata:    sess.Metadata,
		Paid:        sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
	if out.PayerEmail == "" && sess.CustomerDetails != nil {
		out.PayerEmail = sess.CustomerDetails.Email
	}
	if sess.PaymentIntent != nil {
		out.TransactionID = sess.PaymentIntent.ID
	}
	return out, nil
}
