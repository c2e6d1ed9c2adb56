package constants

import "time"

// Context keys
const (
	ContextKeyRequestContext = "request_context"
	ContextKeyPrincipal      = "principal"
	ContextKeyRequestID      = "request_id"
)

// Session
const (
	SessionCookieName     = "pm_session"
	SessionKeyAccessToken = "access_token"
	SessionKeyOAuthState  = "oauth_state"
	SessionMaxAge         = 86400 * 7
)

// Headers
const (
	HeaderRequestID = "X-Request-ID"
)

// Validation
const (
	MinPasswordLength = 8
	MaxNameLength     = 255
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Invitations
const (
	// InvitationTokenBytes is 256 bits of randomness.
	InvitationTokenBytes = 32
	InvitationTTL        = 24 * time.Hour
)
