package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/constants"
	apierrors "github.com/yukikurage/project-management-api/internal/errors"
	"github.com/yukikurage/project-management-api/internal/middleware"
	"github.com/yukikurage/project-management-api/internal/services"
)

// requestContext returns the authorization context built by the
// authorizer. Routes without one are misconfigured, so this answers 401.
func requestContext(c *gin.Context) (authz.RequestContext, bool) {
	rc, ok := middleware.GetRequestContext(c)
	if !ok || !rc.Authenticated() {
		apierrors.Unauthorized(c, "")
		return authz.RequestContext{}, false
	}
	return rc, true
}

// bindJSON decodes the request body into req and answers 400 on failure.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		apierrors.BadRequestWithDetails(c, "Invalid request body", err.Error())
		return false
	}
	return true
}

func invalidFormat(c *gin.Context, message string) {
	apierrors.RespondWithError(c, http.StatusBadRequest, apierrors.NewAPIError(apierrors.ErrCodeInvalidFormat, message))
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// serviceErrors maps service sentinels onto HTTP statuses and API codes.
// First match wins.
var serviceErrors = []errorMapping{
	// 400
	{services.ErrInvalidEmail, http.StatusBadRequest, apierrors.ErrCodeInvalidFormat},
	{services.ErrInvalidOrganizationName, http.StatusBadRequest, apierrors.ErrCodeInvalidInput},
	{services.ErrInvalidProjectName, http.StatusBadRequest, apierrors.ErrCodeInvalidInput},
	{services.ErrInvalidRole, http.StatusBadRequest, apierrors.ErrCodeInvalidInput},
	{services.ErrInvalidStatus, http.StatusBadRequest, apierrors.ErrCodeInvalidInput},
	{services.ErrTitleRequired, http.StatusBadRequest, apierrors.ErrCodeMissingField},
	{services.ErrTitleEmpty, http.StatusBadRequest, apierrors.ErrCodeInvalidInput},
	{services.ErrNoUserIDsProvided, http.StatusBadRequest, apierrors.ErrCodeMissingField},
	{services.ErrInvalidTaskAssignee, http.StatusBadRequest, apierrors.ErrCodeInvalidInput},
	{services.ErrNestedSubtask, http.StatusBadRequest, apierrors.ErrCodeInvalidOperation},
	{services.ErrCannotRemoveYourself, http.StatusBadRequest, apierrors.ErrCodeInvalidOperation},
	{services.ErrCannotChangeOwnRole, http.StatusBadRequest, apierrors.ErrCodeInvalidOperation},
	{services.ErrLastOwner, http.StatusBadRequest, apierrors.ErrCodeInvalidOperation},

	// 401
	{services.ErrInvalidCredentials, http.StatusUnauthorized, apierrors.ErrCodeInvalidCredentials},
	{services.ErrInvalidRefreshToken, http.StatusUnauthorized, apierrors.ErrCodeInvalidToken},
	{services.ErrFederatedExchange, http.StatusUnauthorized, apierrors.ErrCodeInvalidCredentials},

	// 403
	{services.ErrRoleAboveOwn, http.StatusForbidden, apierrors.ErrCodeInsufficientPermissions},
	{services.ErrOwnerProtected, http.StatusForbidden, apierrors.ErrCodeInsufficientPermissions},
	{services.ErrInvitationEmailMismatch, http.StatusForbidden, apierrors.ErrCodeForbidden},

	// 404
	{services.ErrUserNotFound, http.StatusNotFound, apierrors.ErrCodeNotFound},
	{services.ErrOrganizationNotFound, http.StatusNotFound, apierrors.ErrCodeNotFound},
	{services.ErrMemberNotFound, http.StatusNotFound, apierrors.ErrCodeNotFound},
	{services.ErrInvitationNotFound, http.StatusNotFound, apierrors.ErrCodeNotFound},
	{services.ErrProjectNotFound, http.StatusNotFound, apierrors.ErrCodeNotFound},
	{services.ErrTaskNotFound, http.StatusNotFound, apierrors.ErrCodeNotFound},

	// 409
	{services.ErrEmailTaken, http.StatusConflict, apierrors.ErrCodeAlreadyExists},
	{services.ErrAlreadyInOrganization, http.StatusConflict, apierrors.ErrCodeConflict},
	{services.ErrAlreadyMember, http.StatusConflict, apierrors.ErrCodeAlreadyExists},

	// 410
	{services.ErrInvitationExpired, http.StatusGone, apierrors.ErrCodeGone},

	// 503
	{services.ErrFederatedLoginDisabled, http.StatusServiceUnavailable, apierrors.ErrCodeServiceUnavailable},
}

// respondServiceError maps service sentinel errors onto API errors.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrPasswordTooShort):
		apierrors.BadRequest(c, fmt.Sprintf("Password must be at least %d characters", constants.MinPasswordLength))
		return
	case errors.Is(err, services.ErrNoTenant):
		apierrors.BadRequest(c, "Organization ID missing")
		return
	}

	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			apierrors.RespondWithError(c, m.status, apierrors.NewAPIError(m.code, m.err.Error()))
			return
		}
	}

	_ = c.Error(err)
	apierrors.InternalError(c, "Internal server error")
}
