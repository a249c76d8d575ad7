package service

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/ticket-marketplace/internal/checkout"
	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/queue"
	"github.com/iliyamo/ticket-marketplace/internal/repository"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// memStore is an in-memory stand-in for the MySQL repositories. The booking
// decrement holds the lock across check and write, matching the conditional
// UPDATE.
type memStore struct {
	mu       sync.Mutex
	tickets  map[uint64]*model.Ticket
	bookings map[uint64]*model.Booking
	payments map[string]*model.Payment
	nextID   uint64

	// staleReads makes GetByID return the quantity seen at seeding time.
	staleReads map[uint64]int
}

func newMemStore() *memStore {
	return &memStore{
		tickets:  map[uint64]*model.Ticket{},
		bookings: map[uint64]*model.Booking{},
		payments: map[string]*model.Payment{},
	}
}

func (m *memStore) id() uint64 { m.nextID++; return m.nextID }

func (m *memStore) addTicket(t model.Ticket) *model.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == 0 {
		t.ID = m.id()
	}
	m.tickets[t.ID] = &t
	return &t
}

func (m *memStore) quantity(id uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tickets[id].Quantity
}

// TicketStore

func (m *memStore) GetByID(ctx context.Context, id uint64) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, repository.ErrTicketNotFound
	}
	cp := *t
	if q, ok := m.staleReads[id]; ok {
		cp.Quantity = q
	}
	return &cp, nil
}

func (m *memStore) Create(ctx context.Context, t *model.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.id()
	cp := *t
	m.tickets[t.ID] = &cp
	return nil
}

func (m *memStore) Update(ctx context.Context, t *model.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.tickets[t.ID]
	if !ok || cur.IsRejected() {
		return repository.ErrTicketLocked
	}
	cp := *t
	cp.VerificationStatus = model.VerificationPending
	cp.IsAdvertised = false
	m.tickets[t.ID] = &cp
	return nil
}

func (m *memStore) Delete(ctx context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.tickets[id]
	if !ok || cur.IsRejected() {
		return repository.ErrTicketLocked
	}
	delete(m.tickets, id)
	return nil
}

func (m *memStore) filterTickets(keep func(*model.Ticket) bool) []model.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Ticket{}
	for _, t := range m.tickets {
		if keep(t) {
			out = append(out, *t)
		}
	}
	return out
}

func (m *memStore) ListByVendor(ctx context.Context, email string) ([]model.Ticket, error) {
	return m.filterTickets(func(t *model.Ticket) bool { return t.VendorEmail == email }), nil
}

func (m *memStore) ListAll(ctx context.Context) ([]model.Ticket, error) {
	return m.filterTickets(func(*model.Ticket) bool { return true }), nil
}

func (m *memStore) ListAdvertised(ctx context.Context, limit int) ([]model.Ticket, error) {
	return m.filterTickets(func(t *model.Ticket) bool { return t.IsAdvertised && t.IsBookable() }), nil
}

func (m *memStore) ListLatest(ctx context.Context, limit int) ([]model.Ticket, error) {
	return m.filterTickets(func(t *model.Ticket) bool { return t.IsBookable() }), nil
}

func (m *memStore) SearchVisible(ctx context.Context, f model.TicketFilter) (model.TicketPage, error) {
	items := m.filterTickets(func(t *model.Ticket) bool { return t.IsBookable() })
	return model.TicketPage{Items: items, Total: int64(len(items)), Page: f.Page, PageSize: f.PageSize}, nil
}

func (m *memStore) SetVerification(ctx context.Context, id uint64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return repository.ErrTicketNotFound
	}
	t.VerificationStatus = status
	return nil
}

func (m *memStore) SetAdvertised(ctx context.Context, id uint64, advertise bool, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return repository.ErrTicketNotFound
	}
	if advertise && !t.IsAdvertised {
		if !t.IsBookable() {
			return repository.ErrNotAdvertisable
		}
		n := 0
		for _, o := range m.tickets {
			if o.IsAdvertised {
				n++
			}
		}
		if n >= limit {
			return repository.ErrAdvertiseLimit
		}
	}
	t.IsAdvertised = advertise
	return nil
}

func (m *memStore) VendorOverview(ctx context.Context, email string) (model.VendorOverview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ov model.VendorOverview
	for _, t := range m.tickets {
		if t.VendorEmail == email {
			ov.TicketsAdded++
		}
	}
	for _, b := range m.bookings {
		if b.VendorEmail == email && b.Status == model.BookingPaid {
			ov.TicketsSold += b.Quantity
			ov.RevenueCents += b.TotalPriceCents
		}
	}
	return ov, nil
}

// bookingStore views memStore as a BookingStore; its GetByID loads bookings.
type bookingStore struct{ *memStore }

func (b bookingStore) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bk, ok := b.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	cp := *bk
	return &cp, nil
}

func (b bookingStore) CreateWithDecrement(ctx context.Context, bk *model.Booking) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tickets[bk.TicketID]
	if !ok || t.Quantity < bk.Quantity {
		return repository.ErrInsufficientStock
	}
	t.Quantity -= bk.Quantity
	bk.ID = b.id()
	cp := *bk
	b.bookings[bk.ID] = &cp
	return nil
}

func (b bookingStore) listBookings(keep func(*model.Booking) bool) []model.Booking {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []model.Booking{}
	for _, bk := range b.bookings {
		if keep(bk) {
			out = append(out, *bk)
		}
	}
	return out
}

func (b bookingStore) ListByUser(ctx context.Context, email string) ([]model.Booking, error) {
	return b.listBookings(func(bk *model.Booking) bool { return bk.UserEmail == email }), nil
}

func (b bookingStore) ListByVendor(ctx context.Context, email string) ([]model.Booking, error) {
	return b.listBookings(func(bk *model.Booking) bool { return bk.VendorEmail == email }), nil
}

func (b bookingStore) UpdateStatus(ctx context.Context, id uint64, status string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	bk, ok := b.bookings[id]
	if !ok || (bk.Status != model.BookingPending && bk.Status != status) {
		return repository.ErrConflict
	}
	bk.Status = status
	return nil
}

func (b bookingStore) addBooking(bk model.Booking) *model.Booking {
	b.mu.Lock()
	defer b.mu.Unlock()
	bk.ID = b.id()
	b.bookings[bk.ID] = &bk
	return &bk
}

func (b bookingStore) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.bookings)
}

// paymentStore views memStore as a PaymentStore.
type paymentStore struct{ *memStore }

func (p paymentStore) RecordPaid(ctx context.Context, pay *model.Payment) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bk, ok := p.bookings[pay.BookingID]
	if !ok {
		return false, repository.ErrBookingNotFound
	}
	if _, dup := p.payments[pay.TransactionID]; dup {
		return true, nil
	}
	bk.Status = model.BookingPaid
	pay.ID = p.id()
	cp := *pay
	p.payments[pay.TransactionID] = &cp
	return false, nil
}

func (p paymentStore) GetByTransactionID(ctx context.Context, txID string) (*model.Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pay, ok := p.payments[txID]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	cp := *pay
	return &cp, nil
}

func (p paymentStore) ListByPayer(ctx context.Context, email string) ([]model.Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []model.Payment{}
	for _, pay := range p.payments {
		if pay.PayerEmail == email {
			out = append(out, *pay)
		}
	}
	return out, nil
}

func (p paymentStore) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payments)
}

type fakeProvider struct {
	sessions map[string]checkout.CompletedSession
	created  []checkout.SessionRequest
	err      error
}

func (f *fakeProvider) CreateSession(ctx context.Context, req checkout.SessionRequest) (checkout.Session, error) {
	if f.err != nil {
		return checkout.Session{}, f.err
	}
	f.created = append(f.created, req)
	return checkout.Session{ID: "cs_new", URL: "https://checkout.example/cs_new"}, nil
}

func (f *fakeProvider) RetrieveSession(ctx context.Context, id string) (checkout.CompletedSession, error) {
	if f.err != nil {
		return checkout.CompletedSession{}, f.err
	}
	s, ok := f.sessions[id]
	if !ok {
		return checkout.CompletedSession{}, checkout.ErrNotConfigured
	}
	return s, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.Event
	err    error
}

func (r *recordingPublisher) Publish(ctx context.Context, ev queue.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}
