package authz

import (
	"net/http"
	"path"
	"strings"
)

// TenantHeader carries the organization a request operates on.
const TenantHeader = "x-org-id"

// TenantResolution is the outcome of resolving a request's tenant.
type TenantResolution struct {
	TenantID string
	Exempt   bool
}

// TenantResolver extracts the tenant identifier from inbound requests.
type TenantResolver struct{}

// Resolve returns the tenant for a request. Paths are relative to the API
// base path. Exempt paths never fail and never carry a tenant, even when
// the client sends the header.
func (TenantResolver) Resolve(p, method string, header http.Header) (TenantResolution, error) {
	if IsTenantExempt(p, method) {
		return TenantResolution{Exempt: true}, nil
	}

	tenantID := header.Get(TenantHeader)
	if tenantID == "" {
		return TenantResolution{}, ErrTenantMissing
	}
	return TenantResolution{TenantID: tenantID}, nil
}

// IsTenantExempt reports whether the path skips mandatory tenant resolution.
func IsTenantExempt(p, method string) bool {
	p = cleanPath(p)
	switch {
	case hasSegmentPrefix(p, "/auth"):
		return true
	case hasSegmentPrefix(p, "/invitations"):
		return true
	case p == "/organizations" && (method == http.MethodGet || method == http.MethodPost):
		return true
	case p == "/auth/organizations" && method == http.MethodGet:
		return true
	case strings.HasPrefix(p, "/uploads/"):
		return true
	}
	return false
}

// BypassesMembership reports whether the membership check is skipped
// outright for the path.
func BypassesMembership(p string) bool {
	p = cleanPath(p)
	return hasSegmentPrefix(p, "/auth") || IsInvitationPath(p)
}

// IsInvitationPath reports whether p is under /invitations.
func IsInvitationPath(p string) bool {
	return hasSegmentPrefix(cleanPath(p), "/invitations")
}

func hasSegmentPrefix(p, prefix string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	cleaned := path.Clean(p)
	// keep the trailing slash so "/uploads/" still matches its prefix
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}
