package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-marketplace/internal/apperr"
	"github.com/iliyamo/ticket-marketplace/internal/middleware"
	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/policy"
	"github.com/iliyamo/ticket-marketplace/internal/service"
)

// Tickets is the ticket inventory as seen by vendors, admins and the public.
type Tickets interface {
	Create(ctx context.Context, caller *policy.Caller, in service.TicketInput) (*model.Ticket, error)
	Update(ctx context.Context, caller *policy.Caller, id uint64, in service.TicketInput) (*model.Ticket, error)
	Delete(ctx context.Context, caller *policy.Caller, id uint64) error
	Get(ctx context.Context, id uint64) (*model.Ticket, error)
	ListVisible(ctx context.Context, f model.TicketFilter) (model.TicketPage, error)
	ListAdvertised(ctx context.Context) ([]model.Ticket, error)
	ListLatest(ctx context.Context) ([]model.Ticket, error)
	ListByVendor(ctx context.Context, caller *policy.Caller) ([]model.Ticket, error)
	ListAll(ctx context.Context, caller *policy.Caller) ([]model.Ticket, error)
	SetVerification(ctx context.Context, caller *policy.Caller, id uint64, status string) error
	SetAdvertised(ctx context.Context, caller *policy.Caller, id uint64, advertise bool) error
	VendorOverview(ctx context.Context, caller *policy.Caller) (model.VendorOverview, error)
}

type TicketHandler struct {
	tickets Tickets
}

func NewTicketHandler(t Tickets) *TicketHandler { return &TicketHandler{tickets: t} }

// ----- public -----

// Search lists approved, active tickets. Query: from, to, transport,
// sort (asc|desc by price), page, limit.
func (h *TicketHandler) Search(c echo.Context) error {
	f := model.TicketFilter{
		From:      c.QueryParam("from"),
		To:        c.QueryParam("to"),
		Transport: c.QueryParam("transport"),
		SortPrice: c.QueryParam("sort"),
	}
	var err error
	if f.Page, err = intQuery(c, "page"); err != nil {
		return err
	}
	if f.PageSize, err = intQuery(c, "limit"); err != nil {
		return err
	}
	page, err := h.tickets.ListVisible(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", page)
}

func (h *TicketHandler) Advertised(c echo.Context) error {
	list, err := h.tickets.ListAdvertised(c.Request().Context())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", list)
}

func (h *TicketHandler) Latest(c echo.Context) error {
	list, err := h.tickets.ListLatest(c.Request().Context())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", list)
}

func (h *TicketHandler) Get(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	t, err := h.tickets.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", t)
}

// ----- vendor -----

func (h *TicketHandler) Create(c echo.Context) error {
	var in service.TicketInput
	if err := bind(c, &in); err != nil {
		return err
	}
	t, err := h.tickets.Create(c.Request().Context(), middleware.CallerFrom(c), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "ticket submitted for review", t)
}

func (h *TicketHandler) Update(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in service.TicketInput
	if err := bind(c, &in); err != nil {
		return err
	}
	t, err := h.tickets.Update(c.Request().Context(), middleware.CallerFrom(c), id, in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "ticket updated and sent for review", t)
}

func (h *TicketHandler) Delete(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.tickets.Delete(c.Request().Context(), middleware.CallerFrom(c), id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "ticket deleted", nil)
}

func (h *TicketHandler) ListMine(c echo.Context) error {
	list, err := h.tickets.ListByVendor(c.Request().Context(), middleware.CallerFrom(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", list)
}

func (h *TicketHandler) Overview(c echo.Context) error {
	ov, err := h.tickets.VendorOverview(c.Request().Context(), middleware.CallerFrom(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", ov)
}

// ----- admin -----

func (h *TicketHandler) ListAll(c echo.Context) error {
	list, err := h.tickets.ListAll(c.Request().Context(), middleware.CallerFrom(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", list)
}

func (h *TicketHandler) Approve(c echo.Context) error {
	return h.verify(c, model.VerificationApproved)
}

func (h *TicketHandler) RejectTicket(c echo.Context) error {
	return h.verify(c, model.VerificationRejected)
}

func (h *TicketHandler) verify(c echo.Context, status string) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.tickets.SetVerification(c.Request().Context(), middleware.CallerFrom(c), id, status); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "ticket "+status, nil)
}

type advertiseReq struct {
	Advertise *bool `json:"advertise"`
}

// Advertise toggles the home page flag. The body defaults to advertise=true.
func (h *TicketHandler) Advertise(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req advertiseReq
	if err := bind(c, &req); err != nil {
		return err
	}
	on := req.Advertise == nil || *req.Advertise
	if err := h.tickets.SetAdvertised(c.Request().Context(), middleware.CallerFrom(c), id, on); err != nil {
		return err
	}
	msg := "ticket advertised"
	if !on {
		msg = "ticket no longer advertised"
	}
	return respond(c, http.StatusOK, msg, nil)
}

func intQuery(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation(name + " must be a number")
	}
	return n, nil
}
