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
	"github.com/iliyamo/ticket-marketplace/internal/queue"
	"github.com/iliyamo/ticket-marketplace/internal/repository"
)

// UserStore covers account administration.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	SetRole(ctx context.Context, email, role string) error
	MarkFraud(ctx context.Context, email string) (int64, error)
}

// VendorRequestStore holds applications to become a vendor.
type VendorRequestStore interface {
	Create(ctx context.Context, vr *model.VendorRequest) error
	List(ctx context.Context, status string) ([]model.VendorRequest, error)
	Approve(ctx context.Context, id uint64, now time.Time) (*model.VendorRequest, error)
	Reject(ctx context.Context, id uint64, now time.Time) error
}

// UserService handles roles, fraud marking and vendor onboarding.
type UserService struct {
	users    UserStore
	requests VendorRequestStore
	events   EventPublisher
	now      Clock
}

func NewUserService(users UserStore, requests VendorRequestStore, events EventPublisher) *UserService {
	return &UserService{users: users, requests: requests, events: events, now: systemClock}
}

// WithClock replaces the time source.
func (s *UserService) WithClock(c Clock) *UserService { s.now = c; return s }

// SubmitVendorRequest files the caller's application. Only one may be
// pending per account.
func (s *UserService) SubmitVendorRequest(ctx context.Context, caller *policy.Caller) (*model.VendorRequest, error) {
	if err := policy.Evaluate(caller, policy.Resource{}, policy.ActRequestVendor); err != nil {
		return nil, err
	}
	vr := &model.VendorRequest{Email: caller.Email, Name: caller.Name}
	if err := s.requests.Create(ctx, vr); err != nil {
		return nil, translate(err, "submit vendor request")
	}
	vr.CreatedAt = s.now()
	return vr, nil
}

// ListVendorRequests lists applications, optionally by status.
func (s *UserService) ListVendorRequests(ctx context.Context, caller *policy.Caller, status string) ([]model.VendorRequest, error) {
	if err := policy.Evaluate(caller, policy.Resource{}, policy.ActReviewVendorAsks); err != nil {
		return nil, err
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if status != "" && !lo.Contains([]string{model.RequestPending, model.RequestApproved, model.RequestRejected}, status) {
		return nil, apperr.Validation("unknown request status")
	}
	out, err := s.requests.List(ctx, status)
	return out, translate(err, "list vendor requests")
}

// ApproveVendorRequest approves the request and promotes its user to vendor
// atomically.
func (s *UserService) ApproveVendorRequest(ctx context.Context, caller *policy.Caller, id uint64) (*model.VendorRequest, error) {
	if err := policy.Evaluate(caller, policy.Resource{}, policy.ActReviewVendorAsks); err != nil {
		return nil, err
	}
	vr, err := s.requests.Approve(ctx, id, s.now())
	if err != nil {
		return nil, translate(err, "approve vendor request")
	}
	logging.FromContext(ctx).WithField("email", vr.Email).Info("vendor request approved")
	return vr, nil
}

// RejectVendorRequest closes a pending request.
func (s *UserService) RejectVendorRequest(ctx context.Context, caller *policy.Caller, id uint64) error {
	if err := policy.Evaluate(caller, policy.Resource{}, policy.ActReviewVendorAsks); err != nil {
		return err
	}
	return translate(s.requests.Reject(ctx, id, s.now()), "reject vendor request")
}

// ListUsers returns every account.
func (s *UserService) ListUsers(ctx context.Context, caller *policy.Caller) ([]model.User, error) {
	if err := policy.Evaluate(caller, policy.Resource{}, policy.ActManageUsers); err != nil {
		return nil, err
	}
	out, err := s.users.List(ctx)
	return out, translate(err, "list users")
}

// SetRole changes an account's role. Setting fraud goes through MarkFraud
// so the account's tickets are hidden too.
func (s *UserService) SetRole(ctx context.Context, caller *policy.Caller, email, role string) error {
	if err := policy.Evaluate(caller, policy.Resource{}, policy.ActManageUsers); err != nil {
		return err
	}
	email = repository.NormalizeEmail(email)
	role = strings.ToLower(strings.TrimSpace(role))
	if !lo.Contains(model.Roles, role) {
		return apperr.Validation("role must be one of " + strings.Join(model.Roles, ", "))
	}
	if email == caller.Email {
		return apperr.Conflict("admins cannot change their own role")
	}
	if role == model.RoleFraud {
		_, err := s.MarkFraud(ctx, caller, email)
		return err
	}
	if err := s.users.SetRole(ctx, email, role); err != nil {
		return translate(err, "set role")
	}
	logging.FromContext(ctx).WithFields(logrus.Fields{"email": email, "role": role}).Info("role changed")
	return nil
}

// MarkFraud flags a vendor and hides all of their tickets in one
// transaction. It returns the number of tickets hidden.
func (s *UserService) MarkFraud(ctx context.Context, caller *policy.Caller, email string) (int64, error) {
	if err := policy.Evaluate(caller, policy.Resource{}, policy.ActManageUsers); err != nil {
		return 0, err
	}
	email = repository.NormalizeEmail(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return 0, translate(err, "load user")
	}
	if u.Role != model.RoleVendor {
		return 0, apperr.Validation("only vendors can be marked as fraud")
	}
	hidden, err := s.users.MarkFraud(ctx, email)
	if err != nil {
		return 0, translate(err, "mark fraud")
	}
	logging.FromContext(ctx).WithFields(logrus.Fields{"email": email, "tickets_hidden": hidden}).Warn("vendor marked as fraud")
	publish(ctx, s.events, queue.TypeVendorFlagged, queue.VendorFlagged{Email: email, TicketsHidden: hidden}, s.now())
	return hidden, nil
}
