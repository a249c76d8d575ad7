package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-marketplace/internal/checkout"
	"github.com/iliyamo/ticket-marketplace/internal/middleware"
	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/policy"
	"github.com/iliyamo/ticket-marketplace/internal/service"
)

// Payments covers checkout and payment reconciliation.
type Payments interface {
	CreateCheckoutSession(ctx context.Context, caller *policy.Caller, bookingID uint64) (checkout.Session, error)
	ConfirmPayment(ctx context.Context, caller *policy.Caller, sessionID string) (service.ConfirmResult, error)
	ListForUser(ctx context.Context, caller *policy.Caller, email string) ([]model.Payment, error)
}

type PaymentHandler struct {
	payments Payments
}

func NewPaymentHandler(p Payments) *PaymentHandler { return &PaymentHandler{payments: p} }

type checkoutReq struct {
	BookingID uint64 `json:"booking_id"`
}

type checkoutResp struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type confirmReq struct {
	SessionID string `json:"session_id"`
	// sessionId is what the hosted checkout redirect hands the client.
	SessionIDAlt string `json:"sessionId"`
}

// CreateCheckout opens a hosted checkout session for an accepted booking.
func (h *PaymentHandler) CreateCheckout(c echo.Context) error {
	var req checkoutReq
	if err := bind(c, &req); err != nil {
		return err
	}
	s, err := h.payments.CreateCheckoutSession(c.Request().Context(), middleware.CallerFrom(c), req.BookingID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "", checkoutResp{SessionID: s.ID, URL: s.URL})
}

// Confirm reconciles a completed session. Repeats answer 200 with
// already_processed set.
func (h *PaymentHandler) Confirm(c echo.Context) error {
	var req confirmReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.SessionID == "" {
		req.SessionID = req.SessionIDAlt
	}
	if req.SessionID == "" {
		req.SessionID = c.QueryParam("session_id")
	}
	res, err := h.payments.ConfirmPayment(c.Request().Context(), middleware.CallerFrom(c), req.SessionID)
	if err != nil {
		return err
	}
	if res.AlreadyProcessed {
		return respond(c, http.StatusOK, "payment already processed", res)
	}
	return respond(c, http.StatusCreated, "payment recorded", res)
}

// ListMine returns the caller's payment history.
func (h *PaymentHandler) ListMine(c echo.Context) error {
	list, err := h.payments.ListForUser(c.Request().Context(), middleware.CallerFrom(c), c.QueryParam("email"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", list)
}
