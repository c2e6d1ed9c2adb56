package authz

import "context"

// Stage is a state of the authorization pipeline.
type Stage int

const (
	StageStart Stage = iota
	StageAuthenticated
	StageTenantResolved
	StageMembershipChecked
	StagePrivilegeChecked
	StageDispatched
	StageRejected
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageAuthenticated:
		return "authenticated"
	case StageTenantResolved:
		return "tenant_resolved"
	case StageMembershipChecked:
		return "membership_checked"
	case StagePrivilegeChecked:
		return "privilege_checked"
	case StageDispatched:
		return "dispatched"
	case StageRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Principal is the identity asserted by a verified session credential.
// Role is the coarse claim baked into the credential at issue time; the
// pipeline never authorizes against it.
type Principal struct {
	UserID string
	Email  string
	Role   Role
}

// RequestContext is the per-request authorization state handed to business
// handlers. It is a value type: each pipeline stage returns a new copy and
// nothing mutates a context after it has been built.
type RequestContext struct {
	stage    Stage
	userID   string
	email    string
	tenantID string
	role     Role
}

// NewRequestContext builds a dispatched context directly. Handlers and
// tests use it when no pipeline run is involved.
func NewRequestContext(userID, tenantID string, role Role) RequestContext {
	return RequestContext{
		stage:    StageDispatched,
		userID:   userID,
		tenantID: tenantID,
		role:     role,
	}
}

func (rc RequestContext) Stage() Stage {
	return rc.stage
}

func (rc RequestContext) UserID() string {
	return rc.userID
}

func (rc RequestContext) Email() string {
	return rc.email
}

// Authenticated reports whether a user identity is attached.
func (rc RequestContext) Authenticated() bool {
	return rc.userID != ""
}

// TenantID returns the resolved organization, if any.
func (rc RequestContext) TenantID() (string, bool) {
	return rc.tenantID, rc.tenantID != ""
}

// Role returns the user's role inside the resolved tenant, if any.
func (rc RequestContext) Role() (Role, bool) {
	return rc.role, rc.role != ""
}

func (rc RequestContext) authenticate(p Principal) RequestContext {
	rc.userID = p.UserID
	rc.email = p.Email
	rc.stage = StageAuthenticated
	return rc
}

func (rc RequestContext) withTenant(tenantID string) RequestContext {
	rc.tenantID = tenantID
	return rc
}

func (rc RequestContext) withRole(role Role) RequestContext {
	rc.role = role
	return rc
}

func (rc RequestContext) advance(stage Stage) RequestContext {
	rc.stage = stage
	return rc
}

type requestContextKey struct{}

// WithRequestContext stores rc in ctx.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// FromContext returns the RequestContext stored by WithRequestContext.
func FromContext(ctx context.Context) (RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey{}).(RequestContext)
	return rc, ok
}
