package middleware

import (
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/constants"
)

// TokenVerifier validates an access credential.
type TokenVerifier interface {
	Verify(accessToken string) (*authz.Principal, error)
}

// Authenticate attaches the principal asserted by a Bearer credential, or
// by the access credential stored in the session at login. It never
// aborts: rejecting anonymous requests is the authorizer's job.
func Authenticate(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			if v, ok := sessions.Default(c).Get(constants.SessionKeyAccessToken).(string); ok {
				raw = v
			}
		}

		if raw != "" {
			if principal, err := verifier.Verify(raw); err == nil {
				c.Set(constants.ContextKeyPrincipal, principal)
			}
		}

		c.Next()
	}
}

// GetPrincipal retrieves the authenticated principal from context
func GetPrincipal(c *gin.Context) (*authz.Principal, bool) {
	v, exists := c.Get(constants.ContextKeyPrincipal)
	if !exists {
		return nil, false
	}
	principal, ok := v.(*authz.Principal)
	return principal, ok && principal != nil
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (string, bool) {
	principal, ok := GetPrincipal(c)
	if !ok || principal.UserID == "" {
		return "", false
	}
	return principal.UserID, true
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
