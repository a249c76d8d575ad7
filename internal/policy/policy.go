// Package policy decides who may do what. Middleware gates routes by role
// through it and services check resource ownership through it, so every
// authorization rule lives here.
package policy

import (
	"github.com/samber/lo"

	"github.com/iliyamo/ticket-marketplace/internal/apperr"
	"github.com/iliyamo/ticket-marketplace/internal/model"
)

// Caller is the authenticated principal. Role always comes from storage.
type Caller struct {
	UserID uint64
	Email  string
	Name   string
	Role   string
}

// Resource identifies what an action targets. OwnerEmail is the vendor for
// tickets and vendor-side booking actions, or the user for bookings and
// payments. Empty means the action is not owner-scoped.
type Resource struct {
	OwnerEmail string
}

// Action names an operation subject to authorization.
type Action string

const (
	ActBookTicket       Action = "ticket:book"
	ActViewOwnBookings  Action = "booking:list-own"
	ActPayBooking       Action = "booking:pay"
	ActViewOwnPayments  Action = "payment:list-own"
	ActRequestVendor    Action = "vendor-request:create"
	ActCreateTicket     Action = "ticket:create"
	ActManageTicket     Action = "ticket:manage"
	ActViewVendorData   Action = "vendor:view"
	ActDecideBooking    Action = "booking:decide"
	ActModerateTickets  Action = "admin:tickets"
	ActManageUsers      Action = "admin:users"
	ActReviewVendorAsks Action = "admin:vendor-requests"
	ActViewSelf         Action = "self:view"
)

type rule struct {
	roles []string
	// owned actions additionally require the caller to own the resource.
	owned bool
}

var rules = map[Action]rule{
	ActViewSelf:         {roles: model.Roles},
	ActBookTicket:       {roles: []string{model.RoleUser}},
	ActViewOwnBookings:  {roles: []string{model.RoleUser}, owned: true},
	ActPayBooking:       {roles: []string{model.RoleUser}, owned: true},
	ActViewOwnPayments:  {roles: []string{model.RoleUser}, owned: true},
	ActRequestVendor:    {roles: []string{model.RoleUser}},
	ActCreateTicket:     {roles: []string{model.RoleVendor}},
	ActManageTicket:     {roles: []string{model.RoleVendor}, owned: true},
	ActViewVendorData:   {roles: []string{model.RoleVendor, model.RoleFraud}},
	ActDecideBooking:    {roles: []string{model.RoleVendor}, owned: true},
	ActModerateTickets:  {roles: []string{model.RoleAdmin}},
	ActManageUsers:      {roles: []string{model.RoleAdmin}},
	ActReviewVendorAsks: {roles: []string{model.RoleAdmin}},
}

// Evaluate returns nil when caller may perform action on res and an
// *apperr.Error otherwise: Unauthorized without an identity, Forbidden for
// everything else. Unknown actions are denied.
func Evaluate(caller *Caller, res Resource, action Action) error {
	if caller == nil || caller.Email == "" {
		return apperr.Unauthorized("authentication required")
	}
	r, ok := rules[action]
	if !ok {
		return apperr.Forbidden("action not permitted")
	}
	if caller.Role == model.RoleFraud && action == ActCreateTicket {
		return apperr.Forbidden("account is flagged as fraud and cannot add tickets")
	}
	if !lo.Contains(r.roles, caller.Role) {
		return apperr.Forbidden("insufficient role")
	}
	if r.owned && res.OwnerEmail != caller.Email {
		return apperr.Forbidden("not the owner of this resource")
	}
	return nil
}

// RolesFor lists the roles an action admits. Route guards use it to reject
// early before any resource is loaded.
func RolesFor(action Action) []string {
	return append([]string(nil), rules[action].roles...)
}
