package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/constants"
	apierrors "github.com/yukikurage/project-management-api/internal/errors"
)

// Authorizer runs the authorization pipeline in front of business handlers.
type Authorizer struct {
	pipeline *authz.Pipeline
	basePath string
}

// NewAuthorizer creates an Authorizer. basePath is stripped from request
// paths before tenant resolution, so the pipeline sees e.g. /projects.
func NewAuthorizer(pipeline *authz.Pipeline, basePath string) *Authorizer {
	return &Authorizer{
		pipeline: pipeline,
		basePath: strings.TrimSuffix(basePath, "/"),
	}
}

// Require authorizes the request for an operation that declares roles.
// With no roles only authentication, tenant and membership are checked.
func (a *Authorizer) Require(roles ...authz.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := authz.Request{
			Path:          a.relativePath(c.Request.URL.Path),
			Method:        c.Request.Method,
			Header:        c.Request.Header,
			RequiredRoles: roles,
		}
		if principal, ok := GetPrincipal(c); ok {
			req.Principal = principal
		}

		rc, err := a.pipeline.Authorize(c.Request.Context(), req)
		if err != nil {
			apierrors.FromAuthz(c, err)
			c.Abort()
			return
		}

		// Store the immutable context for handlers and downstream services
		c.Set(constants.ContextKeyRequestContext, rc)
		c.Request = c.Request.WithContext(authz.WithRequestContext(c.Request.Context(), rc))
		c.Next()
	}
}

func (a *Authorizer) relativePath(p string) string {
	if a.basePath == "" {
		return p
	}
	rel := strings.TrimPrefix(p, a.basePath)
	if rel == "" {
		return "/"
	}
	return rel
}

// GetRequestContext retrieves the authorization context built for the
// request.
func GetRequestContext(c *gin.Context) (authz.RequestContext, bool) {
	v, exists := c.Get(constants.ContextKeyRequestContext)
	if !exists {
		return authz.RequestContext{}, false
	}
	rc, ok := v.(authz.RequestContext)
	return rc, ok
}
