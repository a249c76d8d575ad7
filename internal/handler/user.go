package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/iliyamo/ticket-marketplace/internal/middleware"
	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/policy"
)

// Users covers vendor requests and account administration.
type Users interface {
	SubmitVendorRequest(ctx context.Context, caller *policy.Caller) (*model.VendorRequest, error)
	ListVendorRequests(ctx context.Context, caller *policy.Caller, status string) ([]model.VendorRequest, error)
	ApproveVendorRequest(ctx context.Context, caller *policy.Caller, id uint64) (*model.VendorRequest, error)
	RejectVendorRequest(ctx context.Context, caller *policy.Caller, id uint64) error
	ListUsers(ctx context.Context, caller *policy.Caller) ([]model.User, error)
	SetRole(ctx context.Context, caller *policy.Caller, email, role string) error
	MarkFraud(ctx context.Context, caller *policy.Caller, email string) (int64, error)
}

type UserHandler struct {
	users Users
}

func NewUserHandler(u Users) *UserHandler { return &UserHandler{users: u} }

// userSummary is the admin listing row.
type userSummary struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// RequestVendor files the caller's application to become a vendor.
func (h *UserHandler) RequestVendor(c echo.Context) error {
	r, err := h.users.SubmitVendorRequest(c.Request().Context(), middleware.CallerFrom(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "vendor request submitted", r)
}

// ListVendorRequests lists applications, optionally filtered by ?status=.
func (h *UserHandler) ListVendorRequests(c echo.Context) error {
	list, err := h.users.ListVendorRequests(c.Request().Context(), middleware.CallerFrom(c), c.QueryParam("status"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", list)
}

func (h *UserHandler) ApproveVendorRequest(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	r, err := h.users.ApproveVendorRequest(c.Request().Context(), middleware.CallerFrom(c), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "vendor request approved", r)
}

func (h *UserHandler) RejectVendorRequest(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.users.RejectVendorRequest(c.Request().Context(), middleware.CallerFrom(c), id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "vendor request rejected", nil)
}

func (h *UserHandler) List(c echo.Context) error {
	list, err := h.users.ListUsers(c.Request().Context(), middleware.CallerFrom(c))
	if err != nil {
		return err
	}
	out := lo.Map(list, func(u model.User, _ int) userSummary {
		return userSummary{ID: u.ID, Email: u.Email, Name: u.Name, PhotoURL: u.PhotoURL, Role: u.Role, CreatedAt: u.CreatedAt}
	})
	return respond(c, http.StatusOK, "", out)
}

type roleReq struct {
	Role string `json:"role"`
}

// SetRole changes the role of the user named in the path.
func (h *UserHandler) SetRole(c echo.Context) error {
	var req roleReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.users.SetRole(c.Request().Context(), middleware.CallerFrom(c), emailParam(c), req.Role); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "role updated", nil)
}

// MarkFraud flags a vendor and hides all of their tickets.
func (h *UserHandler) MarkFraud(c echo.Context) error {
	hidden, err := h.users.MarkFraud(c.Request().Context(), middleware.CallerFrom(c), emailParam(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "vendor marked as fraud", map[string]int64{"hidden_tickets": hidden})
}
