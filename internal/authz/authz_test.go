package authz

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	members map[string]Membership
	err     error
	reads   int
}

func newFakeStore(members ...Membership) *fakeStore {
	s := &fakeStore{members: map[string]Membership{}}
	for _, m := range members {
		s.members[m.UserID] = m
	}
	return s
}

func (s *fakeStore) GetMembership(_ context.Context, userID string) (Membership, error) {
	s.reads++
	if s.err != nil {
		return Membership{}, s.err
	}
	m, ok := s.members[userID]
	if !ok {
		return Membership{}, ErrUnknownUser
	}
	return m, nil
}

func headerWithTenant(tenantID string) http.Header {
	h := http.Header{}
	if tenantID != "" {
		h.Set(TenantHeader, tenantID)
	}
	return h
}

func principal(userID string) *Principal {
	return &Principal{UserID: userID, Email: userID + "@example.com"}
}

var writerRoles = []Role{RoleMember, RoleAdmin, RoleOwner}

func TestRoleRank(t *testing.T) {
	assert.Equal(t, 4, RoleOwner.Rank())
	assert.Equal(t, 3, RoleAdmin.Rank())
	assert.Equal(t, 2, RoleMember.Rank())
	assert.Equal(t, 1, RoleGuest.Rank())
	assert.Equal(t, 0, Role("SUPERUSER").Rank())

	assert.True(t, RoleOwner.AtLeast(RoleGuest))
	assert.True(t, RoleMember.AtLeast(RoleMember))
	assert.False(t, RoleGuest.AtLeast(RoleMember))
	assert.False(t, Role("").AtLeast(RoleGuest))
	assert.False(t, RoleOwner.AtLeast(Role("bogus")))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	_, err = ParseRole("root")
	assert.Error(t, err)
}

func TestSatisfies_UsesOrSemantics(t *testing.T) {
	assert.True(t, Satisfies(RoleAdmin, []Role{RoleOwner, RoleAdmin}))
	assert.True(t, Satisfies(RoleMember, []Role{RoleOwner, RoleGuest}))
	assert.False(t, Satisfies(RoleGuest, writerRoles))
	assert.False(t, Satisfies(RoleOwner, nil))
}

func TestSatisfies_RankMonotonic(t *testing.T) {
	requiredSets := [][]Role{
		{RoleGuest}, {RoleMember}, {RoleAdmin}, {RoleOwner},
		writerRoles, {RoleAdmin, RoleOwner},
	}
	for _, required := range requiredSets {
		for _, lower := range Roles {
			if !Satisfies(lower, required) {
				continue
			}
			for _, higher := range Roles {
				if higher.Rank() > lower.Rank() {
					assert.True(t, Satisfies(higher, required), "%s admitted for %v but %s was not", lower, required, higher)
				}
			}
		}
	}
}

func TestTenantResolver_ExemptPaths(t *testing.T) {
	cases := []struct {
		path   string
		method string
		exempt bool
	}{
		{"/auth/login", http.MethodPost, true},
		{"/auth", http.MethodGet, true},
		{"/auth/organizations", http.MethodGet, true},
		{"/invitations", http.MethodPost, true},
		{"/invitations/token/abc/accept", http.MethodPost, true},
		{"/organizations", http.MethodGet, true},
		{"/organizations", http.MethodPost, true},
		{"/organizations", http.MethodDelete, false},
		{"/organizations/current", http.MethodGet, false},
		{"/uploads/logo.png", http.MethodGet, true},
		{"/uploads", http.MethodGet, false},
		{"/projects", http.MethodGet, false},
		{"/authors", http.MethodGet, false},
		{"/auth/../projects", http.MethodGet, false},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			assert.Equal(t, tc.exempt, IsTenantExempt(tc.path, tc.method))
		})
	}
}

func TestTenantResolver_Resolve(t *testing.T) {
	var r TenantResolver

	_, err := r.Resolve("/projects", http.MethodGet, http.Header{})
	require.ErrorIs(t, err, ErrTenantMissing)
	assert.Equal(t, "Organization ID missing", AsError(err).Reason)
	assert.Equal(t, KindBadRequest, AsError(err).Kind)

	res, err := r.Resolve("/projects", http.MethodGet, headerWithTenant("not even a ulid"))
	require.NoError(t, err)
	assert.Equal(t, "not even a ulid", res.TenantID)
	assert.False(t, res.Exempt)

	res, err = r.Resolve("/auth/me", http.MethodGet, headerWithTenant("org1"))
	require.NoError(t, err)
	assert.True(t, res.Exempt)
	assert.Empty(t, res.TenantID, "auth paths never read the tenant header")

	res, err = r.Resolve("/invitations", http.MethodPost, headerWithTenant("org1"))
	require.NoError(t, err)
	assert.Empty(t, res.TenantID)

	for _, path := range []string{"/organizations", "/uploads/logo.png"} {
		res, err = r.Resolve(path, http.MethodGet, headerWithTenant("org1"))
		require.NoError(t, err, path)
		assert.True(t, res.Exempt, path)
		assert.Empty(t, res.TenantID, "exempt paths ignore the tenant header: %s", path)
	}

	res, err = r.Resolve("/organizations", http.MethodGet, http.Header{})
	require.NoError(t, err)
	assert.Empty(t, res.TenantID)
}

func TestMembershipAuthority(t *testing.T) {
	store := newFakeStore(
		Membership{UserID: "member", OrganizationID: "org1", Role: RoleMember},
		Membership{UserID: "loner"},
	)
	authority := NewMembershipAuthority(store)
	ctx := context.Background()

	authenticated := func(userID, tenantID string) RequestContext {
		return RequestContext{}.authenticate(Principal{UserID: userID}).withTenant(tenantID)
	}

	t.Run("bypassed paths skip the store", func(t *testing.T) {
		before := store.reads
		m, err := authority.Check(ctx, RequestContext{}, "/invitations/token/x")
		require.NoError(t, err)
		assert.Nil(t, m)
		assert.Equal(t, before, store.reads)
	})

	t.Run("no user", func(t *testing.T) {
		_, err := authority.Check(ctx, RequestContext{}, "/projects")
		assert.ErrorIs(t, err, ErrNoUser)
	})

	t.Run("deleted user", func(t *testing.T) {
		_, err := authority.Check(ctx, authenticated("ghost", "org1"), "/projects")
		assert.ErrorIs(t, err, ErrNoUser)
	})

	t.Run("no tenant and no organization", func(t *testing.T) {
		m, err := authority.Check(ctx, authenticated("loner", ""), "/organizations")
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.False(t, m.HasOrganization())
	})

	t.Run("no tenant but has organization", func(t *testing.T) {
		_, err := authority.Check(ctx, authenticated("member", ""), "/organizations")
		assert.ErrorIs(t, err, ErrTenantRequired)
	})

	t.Run("tenant but no organization", func(t *testing.T) {
		_, err := authority.Check(ctx, authenticated("loner", "org1"), "/projects")
		assert.ErrorIs(t, err, ErrNoOrganization)
	})

	t.Run("tenant mismatch", func(t *testing.T) {
		_, err := authority.Check(ctx, authenticated("member", "org2"), "/projects")
		assert.ErrorIs(t, err, ErrTenantMismatch)
	})

	t.Run("member of tenant", func(t *testing.T) {
		m, err := authority.Check(ctx, authenticated("member", "org1"), "/projects")
		require.NoError(t, err)
		assert.Equal(t, RoleMember, m.Role)
	})

	t.Run("store failure", func(t *testing.T) {
		failing := NewMembershipAuthority(&fakeStore{err: errors.New("connection reset")})
		_, err := failing.Check(ctx, authenticated("member", "org1"), "/projects")
		require.ErrorIs(t, err, ErrLookupFailed)
		assert.Equal(t, KindInternal, AsError(err).Kind)
	})
}

func TestPrivilegeEvaluator(t *testing.T) {
	store := newFakeStore(
		Membership{UserID: "admin", OrganizationID: "org1", Role: RoleAdmin},
		Membership{UserID: "guest", OrganizationID: "org1", Role: RoleGuest},
	)
	evaluator := NewPrivilegeEvaluator(store)
	ctx := context.Background()
	admins := []Role{RoleAdmin, RoleOwner}

	rc := func(userID, tenantID string) RequestContext {
		return RequestContext{}.authenticate(Principal{UserID: userID}).withTenant(tenantID)
	}

	t.Run("no required roles", func(t *testing.T) {
		_, err := evaluator.Check(ctx, nil, RequestContext{}, nil, "/projects", nil)
		assert.NoError(t, err)
	})

	t.Run("missing tenant", func(t *testing.T) {
		_, err := evaluator.Check(ctx, admins, rc("admin", ""), nil, "/projects", nil)
		assert.ErrorIs(t, err, ErrScopeUnspecified)
	})

	t.Run("invitation path falls back to header", func(t *testing.T) {
		grant, err := evaluator.Check(ctx, admins, rc("admin", ""), nil, "/invitations", headerWithTenant("org1"))
		require.NoError(t, err)
		assert.Equal(t, "org1", grant.TenantID)
		assert.Equal(t, RoleAdmin, grant.Role)
	})

	t.Run("header fallback only on invitation paths", func(t *testing.T) {
		_, err := evaluator.Check(ctx, admins, rc("admin", ""), nil, "/projects", headerWithTenant("org1"))
		assert.ErrorIs(t, err, ErrScopeUnspecified)
	})

	t.Run("fresh read for a foreign tenant", func(t *testing.T) {
		_, err := evaluator.Check(ctx, admins, rc("admin", ""), nil, "/invitations", headerWithTenant("org2"))
		assert.ErrorIs(t, err, ErrInsufficientPrivilege)
	})

	t.Run("insufficient role", func(t *testing.T) {
		_, err := evaluator.Check(ctx, admins, rc("guest", "org1"), nil, "/projects", nil)
		assert.ErrorIs(t, err, ErrInsufficientPrivilege)
	})

	t.Run("snapshot wins over the store", func(t *testing.T) {
		before := store.reads
		snapshot := &Membership{UserID: "guest", OrganizationID: "org1", Role: RoleOwner}
		grant, err := evaluator.Check(ctx, admins, rc("guest", "org1"), snapshot, "/projects", nil)
		require.NoError(t, err)
		assert.Equal(t, RoleOwner, grant.Role)
		assert.Equal(t, before, store.reads)
	})
}

func TestPipeline_Scenarios(t *testing.T) {
	store := newFakeStore(
		Membership{UserID: "u-member", OrganizationID: "org1", Role: RoleMember},
		Membership{UserID: "u-guest", OrganizationID: "org1", Role: RoleGuest},
		Membership{UserID: "u-loner"},
	)
	p := NewPipeline(store)
	ctx := context.Background()

	t.Run("member admitted on own tenant", func(t *testing.T) {
		rc, err := p.Authorize(ctx, Request{
			Path: "/projects", Method: http.MethodPost,
			Header: headerWithTenant("org1"), Principal: principal("u-member"),
			RequiredRoles: writerRoles,
		})
		require.NoError(t, err)
		assert.Equal(t, StageDispatched, rc.Stage())
		assert.Equal(t, "u-member", rc.UserID())
		assert.Equal(t, "u-member@example.com", rc.Email())
		tenantID, ok := rc.TenantID()
		assert.True(t, ok)
		assert.Equal(t, "org1", tenantID)
		role, ok := rc.Role()
		assert.True(t, ok)
		assert.Equal(t, RoleMember, role)
	})

	t.Run("member rejected on foreign tenant", func(t *testing.T) {
		rc, err := p.Authorize(ctx, Request{
			Path: "/projects", Method: http.MethodPost,
			Header: headerWithTenant("org2"), Principal: principal("u-member"),
			RequiredRoles: writerRoles,
		})
		require.ErrorIs(t, err, ErrTenantMismatch)
		assert.Equal(t, StageRejected, rc.Stage())
		authErr := AsError(err)
		assert.Equal(t, KindForbidden, authErr.Kind)
		assert.Contains(t, authErr.Reason, "user does not belong to this organization")
	})

	t.Run("user without organization on exempt path", func(t *testing.T) {
		rc, err := p.Authorize(ctx, Request{
			Path: "/organizations", Method: http.MethodGet,
			Header: http.Header{}, Principal: principal("u-loner"),
		})
		require.NoError(t, err)
		_, ok := rc.TenantID()
		assert.False(t, ok)
		_, ok = rc.Role()
		assert.False(t, ok)
	})

	t.Run("member on exempt path is not scoped by the header", func(t *testing.T) {
		for _, path := range []string{"/organizations", "/uploads/a.png"} {
			rc, err := p.Authorize(ctx, Request{
				Path: path, Method: http.MethodGet,
				Header: headerWithTenant("org1"), Principal: principal("u-member"),
			})
			require.ErrorIs(t, err, ErrTenantRequired, path)
			assert.Equal(t, StageRejected, rc.Stage(), path)
			_, ok := rc.TenantID()
			assert.False(t, ok, path)
			assert.Equal(t, "Organization ID required for this operation", AsError(err).Reason)
		}
	})

	t.Run("missing header on tenant scoped path", func(t *testing.T) {
		before := store.reads
		_, err := p.Authorize(ctx, Request{
			Path: "/projects", Method: http.MethodGet,
			Header: http.Header{}, Principal: principal("u-loner"),
		})
		require.ErrorIs(t, err, ErrTenantMissing)
		assert.Equal(t, KindBadRequest, AsError(err).Kind)
		assert.Equal(t, "Organization ID missing", AsError(err).Reason)
		assert.Equal(t, before, store.reads, "no membership check may run")
	})

	t.Run("guest lacks privilege", func(t *testing.T) {
		_, err := p.Authorize(ctx, Request{
			Path: "/projects", Method: http.MethodPost,
			Header: headerWithTenant("org1"), Principal: principal("u-guest"),
			RequiredRoles: writerRoles,
		})
		require.ErrorIs(t, err, ErrInsufficientPrivilege)
		assert.Equal(t, KindForbidden, AsError(err).Kind)
		assert.Contains(t, AsError(err).Reason, "insufficient privileges")
	})
}

func TestPipeline_Rules(t *testing.T) {
	store := newFakeStore(
		Membership{UserID: "u-owner", OrganizationID: "org1", Role: RoleOwner},
		Membership{UserID: "u-loner"},
	)
	p := NewPipeline(store)
	ctx := context.Background()

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := p.Authorize(ctx, Request{Path: "/projects", Method: http.MethodGet, Header: headerWithTenant("org1")})
		require.ErrorIs(t, err, ErrUnauthenticated)
		assert.Equal(t, KindUnauthorized, AsError(err).Kind)
	})

	t.Run("auth and invitation paths bypass tenant and membership", func(t *testing.T) {
		for _, path := range []string{"/auth/me", "/invitations/token/abc"} {
			before := store.reads
			rc, err := p.Authorize(ctx, Request{
				Path: path, Method: http.MethodGet,
				Header: headerWithTenant("org-someone-else"), Principal: principal("u-owner"),
			})
			require.NoError(t, err, path)
			_, ok := rc.TenantID()
			assert.False(t, ok, path)
			assert.Equal(t, before, store.reads, path)
		}
	})

	t.Run("no organization yet cannot pass a role check", func(t *testing.T) {
		_, err := p.Authorize(ctx, Request{
			Path: "/organizations", Method: http.MethodPost,
			Header: http.Header{}, Principal: principal("u-loner"),
			RequiredRoles: []Role{RoleGuest},
		})
		assert.ErrorIs(t, err, ErrScopeUnspecified)
	})

	t.Run("invitation creation resolves tenant from header", func(t *testing.T) {
		rc, err := p.Authorize(ctx, Request{
			Path: "/invitations", Method: http.MethodPost,
			Header: headerWithTenant("org1"), Principal: principal("u-owner"),
			RequiredRoles: []Role{RoleAdmin, RoleOwner},
		})
		require.NoError(t, err)
		tenantID, _ := rc.TenantID()
		role, _ := rc.Role()
		assert.Equal(t, "org1", tenantID)
		assert.Equal(t, RoleOwner, role)
		assert.Equal(t, StageDispatched, rc.Stage())
	})

	t.Run("single membership read per request", func(t *testing.T) {
		before := store.reads
		_, err := p.Authorize(ctx, Request{
			Path: "/projects", Method: http.MethodDelete,
			Header: headerWithTenant("org1"), Principal: principal("u-owner"),
			RequiredRoles: []Role{RoleAdmin, RoleOwner},
		})
		require.NoError(t, err)
		assert.Equal(t, before+1, store.reads)
	})

	t.Run("repeated reads yield the same decision", func(t *testing.T) {
		req := Request{
			Path: "/projects", Method: http.MethodGet,
			Header: headerWithTenant("org1"), Principal: principal("u-owner"),
			RequiredRoles: []Role{RoleGuest},
		}
		first, err := p.Authorize(ctx, req)
		require.NoError(t, err)
		second, err := p.Authorize(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("latest membership state is honoured", func(t *testing.T) {
		req := Request{
			Path: "/projects", Method: http.MethodGet,
			Header: headerWithTenant("org1"), Principal: principal("u-mover"),
		}
		store.members["u-mover"] = Membership{UserID: "u-mover", OrganizationID: "org1", Role: RoleMember}
		_, err := p.Authorize(ctx, req)
		require.NoError(t, err)

		store.members["u-mover"] = Membership{UserID: "u-mover", OrganizationID: "org2", Role: RoleMember}
		_, err = p.Authorize(ctx, req)
		assert.ErrorIs(t, err, ErrTenantMismatch)
	})
}

type recordedDecision struct {
	stage    Stage
	admitted bool
	code     string
}

type sliceRecorder struct {
	decisions []recordedDecision
}

func (r *sliceRecorder) RecordDecision(stage Stage, admitted bool, code string) {
	r.decisions = append(r.decisions, recordedDecision{stage, admitted, code})
}

func TestPipeline_RecordsDecisions(t *testing.T) {
	rec := &sliceRecorder{}
	p := NewPipeline(newFakeStore(Membership{UserID: "u1", OrganizationID: "org1", Role: RoleGuest}), WithRecorder(rec))
	ctx := context.Background()

	_, err := p.Authorize(ctx, Request{Path: "/projects", Method: http.MethodGet, Header: headerWithTenant("org1"), Principal: principal("u1")})
	require.NoError(t, err)
	_, err = p.Authorize(ctx, Request{Path: "/projects", Method: http.MethodGet, Header: http.Header{}, Principal: principal("u1")})
	require.Error(t, err)

	require.Len(t, rec.decisions, 2)
	assert.Equal(t, recordedDecision{StageDispatched, true, ""}, rec.decisions[0])
	assert.Equal(t, recordedDecision{StageAuthenticated, false, "TENANT_MISSING"}, rec.decisions[1])
}

func TestRequestContext_RoundTrip(t *testing.T) {
	rc := NewRequestContext("u1", "org1", RoleAdmin)
	ctx := WithRequestContext(context.Background(), rc)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, rc, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}
