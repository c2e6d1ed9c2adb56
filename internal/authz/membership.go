package authz

import (
	"context"
	"errors"
)

// ErrUnknownUser is returned by a MembershipStore when the user record no
// longer exists.
var ErrUnknownUser = errors.New("authz: unknown user")

// Membership is a point-in-time read of a user's organization and role.
type Membership struct {
	UserID         string
	OrganizationID string
	Role           Role
}

// HasOrganization reports whether the user belongs to an organization.
func (m Membership) HasOrganization() bool {
	return m.OrganizationID != ""
}

// MembershipStore is the authoritative User -> Organization mapping.
// Implementations must read current state on every call.
type MembershipStore interface {
	GetMembership(ctx context.Context, userID string) (Membership, error)
}

// MembershipAuthority decides whether the acting user belongs to the
// resolved tenant.
type MembershipAuthority struct {
	store MembershipStore
}

func NewMembershipAuthority(store MembershipStore) *MembershipAuthority {
	return &MembershipAuthority{store: store}
}

// Check returns the membership snapshot it read, or nil when the path
// bypasses membership entirely. The snapshot is threaded into the
// privilege evaluator so both stages judge the same read.
func (a *MembershipAuthority) Check(ctx context.Context, rc RequestContext, p string) (*Membership, error) {
	if BypassesMembership(p) {
		return nil, nil
	}
	if !rc.Authenticated() {
		return nil, ErrNoUser
	}

	m, err := a.store.GetMembership(ctx, rc.UserID())
	if err != nil {
		if errors.Is(err, ErrUnknownUser) {
			return nil, ErrNoUser
		}
		return nil, lookupFailed(err)
	}

	tenantID, ok := rc.TenantID()
	if !ok {
		if !m.HasOrganization() {
			return &m, nil
		}
		return nil, ErrTenantRequired
	}

	if !m.HasOrganization() {
		return nil, ErrNoOrganization
	}
	if m.OrganizationID != tenantID {
		return nil, ErrTenantMismatch
	}
	return &m, nil
}
