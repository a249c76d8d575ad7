package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/ticket-marketplace/internal/apperr"
	"github.com/iliyamo/ticket-marketplace/internal/checkout"
	"github.com/iliyamo/ticket-marketplace/internal/logging"
	"github.com/iliyamo/ticket-marketplace/internal/metrics"
	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/policy"
	"github.com/iliyamo/ticket-marketplace/internal/queue"
	"github.com/iliyamo/ticket-marketplace/internal/repository"
)

// PaymentStore records payments idempotently by transaction id.
type PaymentStore interface {
	RecordPaid(ctx context.Context, p *model.Payment) (alreadyProcessed bool, err error)
	GetByTransactionID(ctx context.Context, transactionID string) (*model.Payment, error)
	ListByPayer(ctx context.Context, email string) ([]model.Payment, error)
}

// PaymentConfig holds the checkout settings.
type PaymentConfig struct {
	Currency  string
	ClientURL string
}

// ConfirmResult is the outcome of ConfirmPayment. AlreadyProcessed means the
// transaction was recorded by an earlier call and nothing was written.
type ConfirmResult struct {
	Payment          *model.Payment `json:"payment"`
	AlreadyProcessed bool           `json:"already_processed"`
}

// PaymentService reconciles provider checkouts with bookings.
type PaymentService struct {
	bookings BookingReader
	payments PaymentStore
	provider checkout.Provider
	events   EventPublisher
	cfg      PaymentConfig
	now      Clock
}

func NewPaymentService(bookings BookingReader, payments PaymentStore, provider checkout.Provider, events EventPublisher, cfg PaymentConfig) *PaymentService {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &PaymentService{bookings: bookings, payments: payments, provider: provider, events: events, cfg: cfg, now: systemClock}
}

// WithClock replaces the time source.
func (s *PaymentService) WithClock(c Clock) *PaymentService { s.now = c; return s }

// CreateCheckoutSession opens a hosted checkout for an accepted booking the
// caller owns. The session carries the booking id so ConfirmPayment can find
// its way back.
func (s *PaymentService) CreateCheckoutSession(ctx context.Context, caller *policy.Caller, bookingID uint64) (checkout.Session, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return checkout.Session{}, translate(err, "load booking")
	}
	if err := policy.Evaluate(caller, policy.Resource{OwnerEmail: b.UserEmail}, policy.ActPayBooking); err != nil {
		return checkout.Session{}, err
	}
	switch b.Status {
	case model.BookingAccepted:
	case model.BookingPaid:
		return checkout.Session{}, apperr.Conflict("booking is already paid")
	default:
		return checkout.Session{}, apperr.Conflict("booking must be accepted by the vendor before payment")
	}
	if !b.DepartureAt.After(s.now()) {
		return checkout.Session{}, apperr.Expired("departure time has passed")
	}

	sess, err := s.provider.CreateSession(ctx, checkout.SessionRequest{
		Item: checkout.LineItem{
			Name:            b.TicketTitle,
			UnitAmountCents: b.UnitPriceCents,
			Quantity:        int64(b.Quantity),
			Currency:        s.cfg.Currency,
		},
		PayerEmail: b.UserEmail,
		Metadata: map[string]string{
			checkout.MetaBookingID:   strconv.FormatUint(b.ID, 10),
			checkout.MetaTicketTitle: b.TicketTitle,
		},
		SuccessURL: s.cfg.ClientURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.cfg.ClientURL + "/dashboard/bookings",
	})
	if err != nil {
		return checkout.Session{}, apperr.ExternalLookupFailed("could not open checkout session", err)
	}
	return sess, nil
}

// ConfirmPayment looks the session up at the provider, marks its booking
// paid and records the payment. Calling it again for the same transaction
// reports AlreadyProcessed and writes nothing.
func (s *PaymentService) ConfirmPayment(ctx context.Context, caller *policy.Caller, sessionID string) (ConfirmResult, error) {
	res, err := s.confirm(ctx, caller, sessionID)
	metrics.PaymentsTotal.WithLabelValues(paymentResult(res, err)).Inc()
	return res, err
}

func (s *PaymentService) confirm(ctx context.Context, caller *policy.Caller, sessionID string) (ConfirmResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ConfirmResult{}, apperr.Validation("session id is required")
	}
	if caller == nil || caller.Email == "" {
		return ConfirmResult{}, apperr.Unauthorized("authentication required")
	}

	sess, err := s.provider.RetrieveSession(ctx, sessionID)
	if err != nil {
		return ConfirmResult{}, apperr.ExternalLookupFailed("could not verify checkout session", err)
	}
	if !sess.Paid {
		return ConfirmResult{}, apperr.Validation("checkout session is not paid")
	}
	if sess.TransactionID == "" {
		return ConfirmResult{}, apperr.Validation("checkout session has no transaction")
	}
	bookingID, err := strconv.ParseUint(sess.Metadata[checkout.MetaBookingID], 10, 64)
	if err != nil || bookingID == 0 {
		return ConfirmResult{}, apperr.Validation("checkout session is not linked to a booking")
	}

	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return ConfirmResult{}, translate(err, "load booking")
	}
	if err := policy.Evaluate(caller, policy.Resource{OwnerEmail: b.UserEmail}, policy.ActPayBooking); err != nil {
		return ConfirmResult{}, err
	}

	title := sess.Metadata[checkout.MetaTicketTitle]
	if title == "" {
		title = b.TicketTitle
	}
	payer := strings.ToLower(strings.TrimSpace(sess.PayerEmail))
	if payer == "" {
		payer = b.UserEmail
	}
	p := &model.Payment{
		TransactionID: sess.TransactionID,
		BookingID:     bookingID,
		AmountCents:   sess.AmountCents,
		Currency:      strings.ToLower(sess.Currency),
		PayerEmail:    payer,
		TicketTitle:   title,
		PaidAt:        s.now(),
	}

	already, err := s.payments.RecordPaid(ctx, p)
	if err != nil {
		return ConfirmResult{}, translate(err, "record payment")
	}
	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		"booking_id":     bookingID,
		"transaction_id": p.TransactionID,
	})
	if already {
		log.Info("payment already recorded")
		existing, err := s.payments.GetByTransactionID(ctx, p.TransactionID)
		if err != nil {
			return ConfirmResult{}, translate(err, "load payment")
		}
		return ConfirmResult{Payment: existing, AlreadyProcessed: true}, nil
	}

	log.WithField("amount_cents", p.AmountCents).Info("payment recorded")
	publish(ctx, s.events, queue.TypePaymentRecorded, queue.PaymentRecorded{
		PaymentID:     p.ID,
		TransactionID: p.TransactionID,
		BookingID:     p.BookingID,
		AmountCents:   p.AmountCents,
		Currency:      p.Currency,
		PayerEmail:    p.PayerEmail,
	}, p.PaidAt)
	return ConfirmResult{Payment: p}, nil
}

func paymentResult(res ConfirmResult, err error) string {
	var ae *apperr.Error
	switch {
	case err == nil && res.AlreadyProcessed:
		return "already_processed"
	case err == nil:
		return "recorded"
	case errors.As(err, &ae) && ae.Kind == apperr.KindExternalLookupFailed:
		return "lookup_failed"
	case errors.As(err, &ae) && ae.Kind == apperr.KindUnexpected:
		return "error"
	default:
		return "invalid"
	}
}

// ListForUser returns the payment history of email, which must be the
// caller. An empty email means the caller's own.
func (s *PaymentService) ListForUser(ctx context.Context, caller *policy.Caller, email string) ([]model.Payment, error) {
	owner := repository.NormalizeEmail(email)
	if owner == "" && caller != nil {
		owner = caller.Email
	}
	if err := policy.Evaluate(caller, policy.Resource{OwnerEmail: owner}, policy.ActViewOwnPayments); err != nil {
		return nil, err
	}
	out, err := s.payments.ListByPayer(ctx, owner)
	return out, translate(err, "list payments")
}
