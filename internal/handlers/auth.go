package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yukikurage/project-management-api/internal/constants"
	"github.com/yukikurage/project-management-api/internal/dto"
	apierrors "github.com/yukikurage/project-management-api/internal/errors"
	"github.com/yukikurage/project-management-api/internal/services"
)

// AuthHandler coordinates authentication-related HTTP handlers.
type AuthHandler struct {
	authService *services.AuthService
	orgService  *services.OrganizationService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, orgService *services.OrganizationService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		orgService:  orgService,
	}
}

// Signup registers a new user without an organization.
func (h *AuthHandler) Signup(c *gin.Context) {
	type SignupRequest struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		Name     string `json:"name" binding:"max=255"`
	}

	var req SignupRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.authService.Signup(c.Request.Context(), services.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.respondWithSession(c, http.StatusCreated, session)
}

// Login authenticates a user and initializes the session.
func (h *AuthHandler) Login(c *gin.Context) {
	type LoginRequest struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.authService.Login(c.Request.Context(), services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.respondWithSession(c, http.StatusOK, session)
}

// Refresh exchanges a refresh credential for a new pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	type RefreshRequest struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	var req RefreshRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.respondWithSession(c, http.StatusOK, session)
}

// GoogleAuthURL starts a federated login. The state is kept in the
// session and must come back with the authorization code.
func (h *AuthHandler) GoogleAuthURL(c *gin.Context) {
	state := uuid.NewString()
	url, err := h.authService.GoogleAuthURL(state)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(constants.SessionKeyOAuthState, state)
	if err := session.Save(); err != nil {
		apierrors.InternalError(c, "Failed to save session")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":   url,
		"state": state,
	})
}

// GoogleLogin signs a user in with an OAuth2 authorization code.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	type GoogleLoginRequest struct {
		Code  string `json:"code" binding:"required"`
		State string `json:"state"`
	}

	var req GoogleLoginRequest
	if !bindJSON(c, &req) {
		return
	}

	// Clients that went through GoogleAuthURL must echo its state
	session := sessions.Default(c)
	if expected, ok := session.Get(constants.SessionKeyOAuthState).(string); ok {
		session.Delete(constants.SessionKeyOAuthState)
		if req.State != expected {
			_ = session.Save()
			apierrors.RespondWithError(c, http.StatusUnauthorized, apierrors.NewAPIError(apierrors.ErrCodeInvalidToken, "Invalid OAuth state"))
			return
		}
	}

	result, err := h.authService.LoginWithGoogle(c.Request.Context(), req.Code)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.respondWithSession(c, http.StatusOK, result)
}

// Logout removes the authentication session.
func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		apierrors.InternalError(c, "Failed to logout")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}

// GetCurrentUser returns the authenticated user.
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), rc.UserID())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToCurrentUserDTO(*user))
}

// ListMyOrganizations returns the organizations of the authenticated user.
func (h *AuthHandler) ListMyOrganizations(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}

	orgs, err := h.orgService.ListOrganizationsForUser(c.Request.Context(), rc.UserID())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	result := make([]dto.OrganizationDTO, len(orgs))
	for i, org := range orgs {
		result[i] = dto.ToOrganizationDTO(org)
	}
	c.JSON(http.StatusOK, result)
}

func (h *AuthHandler) respondWithSession(c *gin.Context, status int, s *services.Session) {
	session := sessions.Default(c)
	session.Set(constants.SessionKeyAccessToken, s.Tokens.AccessToken)
	if err := session.Save(); err != nil {
		apierrors.InternalError(c, "Failed to save session")
		return
	}

	c.JSON(status, dto.ToAuthResponse(*s.User, s.Tokens))
}
