package service

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/ticket-marketplace/internal/apperr"
	"github.com/iliyamo/ticket-marketplace/internal/logging"
	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/policy"
)

// Listing sizes for the home page sections and the public search.
const (
	LatestLimit     = 8
	DefaultPageSize = 9
	MaxPageSize     = 50
)

// TicketStore is the ticket inventory's storage.
type TicketStore interface {
	TicketReader
	Create(ctx context.Context, t *model.Ticket) error
	Update(ctx context.Context, t *model.Ticket) error
	Delete(ctx context.Context, id uint64) error
	ListByVendor(ctx context.Context, vendorEmail string) ([]model.Ticket, error)
	ListAll(ctx context.Context) ([]model.Ticket, error)
	ListAdvertised(ctx context.Context, limit int) ([]model.Ticket, error)
	ListLatest(ctx context.Context, limit int) ([]model.Ticket, error)
	SearchVisible(ctx context.Context, f model.TicketFilter) (model.TicketPage, error)
	SetVerification(ctx context.Context, id uint64, status string) error
	SetAdvertised(ctx context.Context, id uint64, advertise bool, limit int) error
	VendorOverview(ctx context.Context, vendorEmail string) (model.VendorOverview, error)
}

// TicketInput is the vendor-editable part of a ticket.
type TicketInput struct {
	Title         string   `json:"title"`
	From          string   `json:"from"`
	To            string   `json:"to"`
	Transport     string   `json:"transport"`
	DepartureDate string   `json:"departure_date"`
	DepartureTime string   `json:"departure_time"`
	PriceCents    int64    `json:"price_cents"`
	Quantity      int      `json:"quantity"`
	Perks         []string `json:"perks"`
	ImageURL      string   `json:"image_url"`
}

// TicketService manages listings and their moderation.
type TicketService struct {
	tickets        TicketStore
	loc            *time.Location
	advertiseLimit int
	now            Clock
}

func NewTicketService(tickets TicketStore, loc *time.Location, advertiseLimit int) *TicketService {
	if loc == nil {
		loc = time.UTC
	}
	if advertiseLimit <= 0 {
		advertiseLimit = 6
	}
	return &TicketService{tickets: tickets, loc: loc, advertiseLimit: advertiseLimit, now: systemClock}
}

// WithClock replaces the time source.
func (s *TicketService) WithClock(c Clock) *TicketService { s.now = c; return s }

// apply validates in and copies it onto t, recomputing DepartureAt.
func (s *TicketService) apply(t *model.Ticket, in TicketInput, minQuantity int) error {
	in.Title = strings.TrimSpace(in.Title)
	in.From = strings.TrimSpace(in.From)
	in.To = strings.TrimSpace(in.To)
	in.Transport = strings.ToLower(strings.TrimSpace(in.Transport))

	switch {
	case in.Title == "":
		return apperr.Validation("title is required")
	case in.From == "" || in.To == "":
		return apperr.Validation("from and to are required")
	case strings.EqualFold(in.From, in.To):
		return apperr.Validation("from and to must differ")
	case !lo.Contains(model.TransportModes, in.Transport):
		return apperr.Validation("transport must be one of " + strings.Join(model.TransportModes, ", "))
	case in.PriceCents <= 0:
		return apperr.Validation("price must be greater than zero")
	case in.Quantity < minQuantity:
		return apperr.Validation("quantity is too low")
	}
	departure, err := model.DepartureDateTime(in.DepartureDate, in.DepartureTime, s.loc)
	if err != nil {
		return apperr.Validation(err.Error())
	}
	if !departure.After(s.now()) {
		return apperr.Validation("departure must be in the future")
	}

	perks := lo.Uniq(lo.Without(lo.Map(in.Perks, func(p string, _ int) string { return strings.TrimSpace(p) }), ""))

	t.Title = in.Title
	t.From = in.From
	t.To = in.To
	t.Transport = in.Transport
	t.DepartureDate = strings.TrimSpace(in.DepartureDate)
	t.DepartureTime = strings.TrimSpace(in.DepartureTime)
	t.DepartureAt = departure
	t.PriceCents = in.PriceCents
	t.Quantity = in.Quantity
	t.Perks = perks
	t.ImageURL = strings.TrimSpace(in.ImageURL)
	return nil
}

// Create adds a pending listing owned by the calling vendor.
func (s *TicketService) Create(ctx context.Context, caller *policy.Caller, in TicketInput) (*model.Ticket, error) {
	if err := policy.Evaluate(caller, policy.Resource{}, policy.ActCreateTicket); err != nil {
		return nil, err
	}
	t := &model.Ticket{
		VendorEmail:        caller.Email,
		VendorName:         caller.Name,
		VerificationStatus: model.VerificationPending,
		Status:             model.TicketActive,
	}
	if err := s.apply(t, in, 1); err != nil {
		return nil, err
	}
	if err := s.tickets.Create(ctx, t); err != nil {
		return nil, translate(err, "create ticket")
	}
	logging.FromContext(ctx).WithFields(logrus.Fields{"ticket_id": t.ID, "vendor": t.VendorEmail}).Info("ticket created")
	return t, nil
}

// loadMutable returns a ticket the caller may edit or delete. Rejected
// tickets are frozen for everyone, owner included.
func (s *TicketService) loadMutable(ctx context.Context, caller *policy.Caller, id uint64) (*model.Ticket, error) {
	t, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "load ticket")
	}
	if t.IsRejected() {
		return nil, apperr.Conflict("rejected tickets cannot be modified")
	}
	if err := policy.Evaluate(caller, policy.Resource{OwnerEmail: t.VendorEmail}, policy.ActManageTicket); err != nil {
		return nil, err
	}
	return t, nil
}

// Update edits a listing and sends it back to moderation.
func (s *TicketService) Update(ctx context.Context, caller *policy.Caller, id uint64, in TicketInput) (*model.Ticket, error) {
	t, err := s.loadMutable(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(t, in, 0); err != nil {
		return nil, err
	}
	if err := s.tickets.Update(ctx, t); err != nil {
		return nil, translate(err, "update ticket")
	}
	t.VerificationStatus = model.VerificationPending
	t.IsAdvertised = false
	return t, nil
}

// Delete removes a listing.
func (s *TicketService) Delete(ctx context.Context, caller *policy.Caller, id uint64) error {
	if _, err := s.loadMutable(ctx, caller, id); err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, id); err != nil {
		return translate(err, "delete ticket")
	}
	logging.FromContext(ctx).WithField("ticket_id", id).Info("ticket deleted")
	return nil
}

// Get returns a publicly visible ticket.
func (s *TicketService) Get(ctx context.Context, id uint64) (*model.Ticket, error) {
	t, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "load ticket")
	}
	if !t.IsBookable() {
		return nil, apperr.NotFound("ticket not found")
	}
	return t, nil
}

// ListVisible searches public tickets. Paging defaults to page 1 of
// DefaultPageSize and is capped at MaxPageSize.
func (s *TicketService) ListVisible(ctx context.Context, f model.TicketFilter) (model.TicketPage, error) {
	f.Transport = strings.ToLower(strings.TrimSpace(f.Transport))
	if f.Transport != "" && !lo.Contains(model.TransportModes, f.Transport) {
		return model.TicketPage{}, apperr.Validation("unknown transport")
	}
	f.SortPrice = strings.ToLower(strings.TrimSpace(f.SortPrice))
	if f.SortPrice != "" && f.SortPrice != "asc" && f.SortPrice != "desc" {
		return model.TicketPage{}, apperr.Validation("sort must be asc or desc")
	}
	f.From = strings.TrimSpace(f.From)
	f.To = strings.TrimSpace(f.To)
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	page, err := s.tickets.SearchVisible(ctx, f)
	return page, translate(err, "search tickets")
}

// ListAdvertised returns the home page's advertised tickets.
func (s *TicketService) ListAdvertised(ctx context.Context) ([]model.Ticket, error) {
	out, err := s.tickets.ListAdvertised(ctx, s.advertiseLimit)
	return out, translate(err, "list advertised tickets")
}

// ListLatest returns the newest public tickets.
func (s *TicketService) ListLatest(ctx context.Context) ([]model.Ticket, error) {
	out, err := s.tickets.ListLatest(ctx, LatestLimit)
	return out, translate(err, "list latest tickets")
}

// ListByVendor returns the caller's own listings in every state.
func (s *TicketService) ListByVendor(ctx context.Context, caller *policy.Caller) ([]model.Ticket, error) {
	if err := policy.Evaluate(caller, policy.Resource{}, policy.ActViewVendorData); err != nil {
		return nil, err
	}
	out, err := s.tickets.ListByVendor(ctx, caller.Email)
	return out, translate(err, "list tickets")
}

// ListAll returns every listing for moderation.
func (s *TicketService) ListAll(ctx context.Context, caller *policy.Caller) ([]model.Ticket, error) {
	if err := policy.Evaluate(caller, policy.Resource{}, policy.ActModerateTickets); err != nil {
		return nil, err
	}
	out, err := s.tickets.ListAll(ctx)
	return out, translate(err, "list tickets")
}

// SetVerification approves or rejects a listing.
func (s *TicketService) SetVerification(ctx context.Context, caller *policy.Caller, id uint64, status string) error {
	if err := policy.Evaluate(caller, policy.Resource{}, policy.ActModerateTickets); err != nil {
		return err
	}
	if status != model.VerificationApproved && status != model.VerificationRejected {
		return apperr.Validation("status must be approved or rejected")
	}
	if err := s.tickets.SetVerification(ctx, id, status); err != nil {
		return translate(err, "moderate ticket")
	}
	logging.FromContext(ctx).WithFields(logrus.Fields{"ticket_id": id, "verification_status": status}).Info("ticket moderated")
	return nil
}

// SetAdvertised toggles the advertised flag within the global cap.
func (s *TicketService) SetAdvertised(ctx context.Context, caller *policy.Caller, id uint64, advertise bool) error {
	if err := policy.Evaluate(caller, policy.Resource{}, policy.ActModerateTickets); err != nil {
		return err
	}
	if err := s.tickets.SetAdvertised(ctx, id, advertise, s.advertiseLimit); err != nil {
		return translate(err, "advertise ticket")
	}
	return nil
}

// VendorOverview summarises the caller's sales.
func (s *TicketService) VendorOverview(ctx context.Context, caller *policy.Caller) (model.VendorOverview, error) {
	if err := policy.Evaluate(caller, policy.Resource{}, policy.ActViewVendorData); err != nil {
		return model.VendorOverview{}, err
	}
	ov, err := s.tickets.VendorOverview(ctx, caller.Email)
	return ov, translate(err, "vendor overview")
}
