package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-marketplace/internal/apperr"
	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/policy"
	"github.com/iliyamo/ticket-marketplace/internal/service"
)

var (
	vendor = &policy.Caller{UserID: 2, Email: "vendor@example.com", Name: "Green Line", Role: model.RoleVendor}
	admin  = &policy.Caller{UserID: 3, Email: "admin@example.com", Role: model.RoleAdmin}
)

// stubTickets implements only what each test calls.
type stubTickets struct {
	Tickets
	filter    model.TicketFilter
	input     service.TicketInput
	advertise *bool
	verified  string
	err       error
}

func (s *stubTickets) ListVisible(_ context.Context, f model.TicketFilter) (model.TicketPage, error) {
	s.filter = f
	return model.TicketPage{Items: []model.Ticket{{ID: 1}}, Total: 1, Page: 1, PageSize: 9}, s.err
}

func (s *stubTickets) Get(_ context.Context, id uint64) (*model.Ticket, error) {
	if id != 1 {
		return nil, apperr.NotFound("ticket not found")
	}
	return &model.Ticket{ID: 1, Title: "Dhaka to Sylhet"}, nil
}

func (s *stubTickets) Create(_ context.Context, caller *policy.Caller, in service.TicketInput) (*model.Ticket, error) {
	s.input = in
	if s.err != nil {
		return nil, s.err
	}
	return &model.Ticket{ID: 5, Title: in.Title, VendorEmail: caller.Email, VerificationStatus: model.VerificationPending}, nil
}

func (s *stubTickets) Update(_ context.Context, _ *policy.Caller, id uint64, in service.TicketInput) (*model.Ticket, error) {
	s.input = in
	return nil, s.err
}

func (s *stubTickets) SetAdvertised(_ context.Context, _ *policy.Caller, _ uint64, on bool) error {
	s.advertise = &on
	return s.err
}

func (s *stubTickets) SetVerification(_ context.Context, _ *policy.Caller, _ uint64, status string) error {
	s.verified = status
	return s.err
}

func (s *stubTickets) VendorOverview(context.Context, *policy.Caller) (model.VendorOverview, error) {
	return model.VendorOverview{TicketsAdded: 3, TicketsSold: 4, RevenueCents: 5000}, nil
}

func TestSearchParsesQuery(t *testing.T) {
	stub := &stubTickets{}
	e := newEcho()
	e.GET("/tickets", NewTicketHandler(stub).Search)

	rec, body := do(t, e, http.MethodGet, "/tickets?from=Dhaka&to=Sylhet&transport=bus&sort=asc&page=2&limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.TicketFilter{From: "Dhaka", To: "Sylhet", Transport: "bus", SortPrice: "asc", Page: 2, PageSize: 5}, stub.filter)

	var page model.TicketPage
	require.NoError(t, json.Unmarshal(body.Data, &page))
	assert.Equal(t, int64(1), page.Total)

	rec, _ = do(t, e, http.MethodGet, "/tickets?page=two", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTicket(t *testing.T) {
	e := newEcho()
	e.GET("/tickets/:id", NewTicketHandler(&stubTickets{}).Get)

	rec, _ := do(t, e, http.MethodGet, "/tickets/1", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, e, http.MethodGet, "/tickets/2", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = do(t, e, http.MethodGet, "/tickets/0", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVendorTicketEndpoints(t *testing.T) {
	stub := &stubTickets{}
	h := NewTicketHandler(stub)
	e := newEcho()
	e.POST("/vendor/tickets", h.Create, asCaller(vendor))
	e.PATCH("/vendor/tickets/:id", h.Update, asCaller(vendor))
	e.GET("/vendor/overview", h.Overview, asCaller(vendor))

	rec, body := do(t, e, http.MethodPost, "/vendor/tickets",
		`{"title":"Night coach","from":"Dhaka","to":"Sylhet","transport":"bus","departure_date":"2026-11-02","departure_time":"22:00","price_cents":1500,"quantity":40,"perks":["AC"]}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "ticket submitted for review", body.Message)
	assert.Equal(t, 40, stub.input.Quantity)
	assert.Equal(t, []string{"AC"}, stub.input.Perks)

	stub.err = apperr.Conflict("rejected tickets cannot be changed")
	rec, _ = do(t, e, http.MethodPatch, "/vendor/tickets/5", `{"title":"x"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, body = do(t, e, http.MethodGet, "/vendor/overview", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tickets_added":3,"tickets_sold":4,"revenue_cents":5000}`, string(body.Data))
}

func TestAdminTicketModeration(t *testing.T) {
	stub := &stubTickets{}
	h := NewTicketHandler(stub)
	e := newEcho()
	e.PATCH("/admin/tickets/:id/approve", h.Approve, asCaller(admin))
	e.PATCH("/admin/tickets/:id/reject", h.RejectTicket, asCaller(admin))
	e.PATCH("/admin/tickets/:id/advertise", h.Advertise, asCaller(admin))

	rec, _ := do(t, e, http.MethodPatch, "/admin/tickets/1/approve", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.VerificationApproved, stub.verified)

	rec, _ = do(t, e, http.MethodPatch, "/admin/tickets/1/reject", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.VerificationRejected, stub.verified)

	rec, _ = do(t, e, http.MethodPatch, "/admin/tickets/1/advertise", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, stub.advertise)
	assert.True(t, *stub.advertise)

	rec, body := do(t, e, http.MethodPatch, "/admin/tickets/1/advertise", `{"advertise":false}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, *stub.advertise)
	assert.Equal(t, "ticket no longer advertised", body.Message)

	stub.err = apperr.Conflict("at most 6 tickets can be advertised")
	rec, _ = do(t, e, http.MethodPatch, "/admin/tickets/1/advertise", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
