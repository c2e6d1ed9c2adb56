package authz

import (
	"context"
	"errors"
	"net/http"
)

// Grant is what the privilege evaluator admitted the request with.
type Grant struct {
	TenantID string
	Role     Role
}

// PrivilegeEvaluator compares the acting user's role against the roles an
// operation declares.
type PrivilegeEvaluator struct {
	store MembershipStore
}

func NewPrivilegeEvaluator(store MembershipStore) *PrivilegeEvaluator {
	return &PrivilegeEvaluator{store: store}
}

// Check admits the request when the user's role dominates at least one of
// required. snapshot is the membership read by the previous stage; when it
// is nil (invitation paths skip the membership stage) the evaluator reads
// the store itself.
func (e *PrivilegeEvaluator) Check(ctx context.Context, required []Role, rc RequestContext, snapshot *Membership, p string, header http.Header) (Grant, error) {
	if len(required) == 0 {
		tenantID, _ := rc.TenantID()
		role, _ := rc.Role()
		return Grant{TenantID: tenantID, Role: role}, nil
	}

	tenantID, ok := rc.TenantID()
	if !ok && IsInvitationPath(p) && header != nil {
		tenantID = header.Get(TenantHeader)
		ok = tenantID != ""
	}
	if !ok || !rc.Authenticated() {
		return Grant{}, ErrScopeUnspecified
	}

	m := snapshot
	if m == nil {
		read, err := e.store.GetMembership(ctx, rc.UserID())
		if err != nil {
			if errors.Is(err, ErrUnknownUser) {
				return Grant{}, ErrScopeUnspecified
			}
			return Grant{}, lookupFailed(err)
		}
		m = &read
	}

	// the user holds no role in a tenant they are not part of
	if m.OrganizationID != tenantID {
		return Grant{}, ErrInsufficientPrivilege
	}
	if !Satisfies(m.Role, required) {
		return Grant{}, ErrInsufficientPrivilege
	}
	return Grant{TenantID: tenantID, Role: m.Role}, nil
}
