package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/constants"
	"github.com/yukikurage/project-management-api/internal/dto"
	apierrors "github.com/yukikurage/project-management-api/internal/errors"
	"github.com/yukikurage/project-management-api/internal/middleware"
	"github.com/yukikurage/project-management-api/internal/models"
	"github.com/yukikurage/project-management-api/internal/repository"
	"github.com/yukikurage/project-management-api/internal/services"
	"github.com/yukikurage/project-management-api/internal/testutil"
	"github.com/yukikurage/project-management-api/internal/token"
	"gorm.io/gorm"
)

type handlerTestEnv struct {
	db     *gorm.DB
	fx     *testutil.Fixtures
	issuer *token.Issuer
	router *gin.Engine

	org    models.Organization
	owner  models.User
	member models.User
}

func setupHandlerTestEnv(t *testing.T) handlerTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)

	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	activity := services.NewActivityService(repository.NewActivityRepository(db), nil)
	issuer := token.NewIssuer("handler-secret", time.Hour, 24*time.Hour)

	authService := services.NewAuthService(userRepo, issuer, nil)
	orgService := services.NewOrganizationService(repository.NewOrganizationRepository(db), userRepo, activity)
	memberService := services.NewMemberService(userRepo, activity)
	invitationService := services.NewInvitationService(repository.NewInvitationRepository(db), userRepo, activity)
	taskService := services.NewTaskService(repository.NewTaskRepository(db), projectRepo, userRepo, activity)

	authHandler := NewAuthHandler(authService, orgService)
	memberHandler := NewMemberHandler(memberService)
	invitationHandler := NewInvitationHandler(invitationService)
	taskHandler := NewTaskHandler(taskService)

	authorizer := middleware.NewAuthorizer(authz.NewPipeline(userRepo), "/api")

	r := gin.New()
	store := cookie.NewStore([]byte("secret"))
	r.Use(sessions.Sessions(constants.SessionCookieName, store))
	api := r.Group("/api", middleware.Authenticate(authService))
	api.POST("/auth/signup", authHandler.Signup)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.GET("/auth/google/url", authHandler.GoogleAuthURL)
	api.POST("/auth/google", authHandler.GoogleLogin)
	api.POST("/auth/logout", authorizer.Require(), authHandler.Logout)
	api.GET("/auth/me", authorizer.Require(), authHandler.GetCurrentUser)
	api.PATCH("/members/:id", authorizer.Require(authz.RoleAdmin, authz.RoleOwner), memberHandler.UpdateMemberRole)
	api.POST("/invitations", authorizer.Require(authz.RoleAdmin, authz.RoleOwner), invitationHandler.CreateInvitation)
	api.GET("/invitations/token/:token", authorizer.Require(), invitationHandler.GetInvitationByToken)
	api.POST("/invitations/token/:token/accept", authorizer.Require(), invitationHandler.AcceptInvitation)
	api.POST("/projects/:id/tasks", authorizer.Require(authz.RoleMember, authz.RoleAdmin, authz.RoleOwner), taskHandler.CreateTask)
	api.PATCH("/tasks/:id", authorizer.Require(authz.RoleMember, authz.RoleAdmin, authz.RoleOwner), taskHandler.UpdateTask)

	org := fx.CreateOrganization("Acme")
	return handlerTestEnv{
		db:     db,
		fx:     fx,
		issuer: issuer,
		router: r,
		org:    org,
		owner:  fx.CreateMember("owner@acme.test", org, authz.RoleOwner),
		member: fx.CreateMember("member@acme.test", org, authz.RoleMember),
	}
}

func (env handlerTestEnv) bearer(t *testing.T, user models.User) string {
	t.Helper()
	pair, err := env.issuer.Issue(user.ID, user.Email, user.Role)
	require.NoError(t, err)
	return "Bearer " + pair.AccessToken
}

func (env handlerTestEnv) do(t *testing.T, method, path string, payload any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func (env handlerTestEnv) as(t *testing.T, user models.User) map[string]string {
	headers := map[string]string{"Authorization": env.bearer(t, user)}
	if user.OrganizationID != nil {
		headers[authz.TenantHeader] = *user.OrganizationID
	}
	return headers
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apierrors.APIError {
	t.Helper()
	var body apierrors.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAuthHandler_Signup(t *testing.T) {
	env := setupHandlerTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"email":    "New@Example.test",
		"password": "supersecret",
		"name":     "New User",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var response dto.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "new@example.test", response.User.Email)
	assert.Equal(t, authz.RoleGuest, response.User.Role)
	assert.Nil(t, response.User.OrganizationID)
	assert.NotEmpty(t, response.Tokens.AccessToken)
	assert.NotEmpty(t, w.Result().Cookies(), "login state is kept in the session cookie")

	t.Run("duplicate email", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
			"email":    "new@example.test",
			"password": "supersecret",
		}, nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("short password", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
			"email":    "short@example.test",
			"password": "short",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthHandler_LoginAndSessionCookie(t *testing.T) {
	env := setupHandlerTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "member@acme.test",
		"password": testutil.TestPassword,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	// The session cookie alone authenticates follow-up requests
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	me := httptest.NewRecorder()
	env.router.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)

	var current dto.CurrentUserDTO
	require.NoError(t, json.Unmarshal(me.Body.Bytes(), &current))
	assert.Equal(t, env.member.ID, current.ID)
	assert.Equal(t, authz.RoleMember, current.Role)

	t.Run("wrong password", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
			"email":    "member@acme.test",
			"password": "not-the-password",
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthHandler_GoogleLoginDisabled(t *testing.T) {
	env := setupHandlerTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/google", map[string]string{"code": "abc"}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = env.do(t, http.MethodGet, "/api/auth/google/url", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAuthHandler_Refresh(t *testing.T) {
	env := setupHandlerTestEnv(t)

	pair, err := env.issuer.Issue(env.member.ID, env.member.Email, env.member.Role)
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": pair.RefreshToken}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// An access credential is not accepted as a refresh credential
	w = env.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": pair.AccessToken}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_MeRequiresAuthentication(t *testing.T) {
	env := setupHandlerTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHENTICATED", decodeError(t, w).Code)
}

func TestMemberHandler_UpdateRole(t *testing.T) {
	env := setupHandlerTestEnv(t)
	admin := env.fx.CreateMember("admin@acme.test", env.org, authz.RoleAdmin)

	t.Run("admin promotes member", func(t *testing.T) {
		w := env.do(t, http.MethodPatch, "/api/members/"+env.member.ID, map[string]string{"role": "ADMIN"}, env.as(t, admin))
		require.Equal(t, http.StatusOK, w.Code)

		var member dto.MemberDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &member))
		assert.Equal(t, authz.RoleAdmin, member.Role)
	})

	t.Run("admin cannot grant owner", func(t *testing.T) {
		w := env.do(t, http.MethodPatch, "/api/members/"+env.member.ID, map[string]string{"role": "OWNER"}, env.as(t, admin))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unknown role", func(t *testing.T) {
		w := env.do(t, http.MethodPatch, "/api/members/"+env.member.ID, map[string]string{"role": "EMPEROR"}, env.as(t, env.owner))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("member lacks privilege", func(t *testing.T) {
		w := env.do(t, http.MethodPatch, "/api/members/"+admin.ID, map[string]string{"role": "MEMBER"}, env.as(t, env.fx.CreateMember("plain@acme.test", env.org, authz.RoleMember)))
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "INSUFFICIENT_PRIVILEGE", decodeError(t, w).Code)
	})
}

func TestInvitationHandler_Flow(t *testing.T) {
	env := setupHandlerTestEnv(t)
	invitee := env.fx.CreateUser("invitee@example.test")

	w := env.do(t, http.MethodPost, "/api/invitations", map[string]string{
		"email": "invitee@example.test",
		"role":  "MEMBER",
	}, env.as(t, env.owner))
	require.Equal(t, http.StatusCreated, w.Code)

	var created dto.InvitationDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Len(t, created.Token, 2*constants.InvitationTokenBytes)

	// The invitee has no organization and sends no tenant header
	inviteeHeaders := env.as(t, invitee)

	w = env.do(t, http.MethodGet, "/api/invitations/token/"+created.Token, nil, inviteeHeaders)
	require.Equal(t, http.StatusOK, w.Code)
	var shown dto.InvitationDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &shown))
	assert.Empty(t, shown.Token)
	assert.False(t, shown.Expired)
	require.NotNil(t, shown.Organization)
	assert.Equal(t, "Acme", shown.Organization.Name)

	w = env.do(t, http.MethodPost, "/api/invitations/token/"+created.Token+"/accept", nil, inviteeHeaders)
	require.Equal(t, http.StatusOK, w.Code)

	var joined models.User
	require.NoError(t, env.db.First(&joined, "id = ?", invitee.ID).Error)
	require.NotNil(t, joined.OrganizationID)
	assert.Equal(t, env.org.ID, *joined.OrganizationID)
	assert.Equal(t, authz.RoleMember, joined.Role)

	// Single use
	w = env.do(t, http.MethodPost, "/api/invitations/token/"+created.Token+"/accept", nil, inviteeHeaders)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvitationHandler_AcceptRejections(t *testing.T) {
	env := setupHandlerTestEnv(t)
	stranger := env.fx.CreateUser("stranger@example.test")

	env.fx.CreateInvitation(env.org, env.owner, "someone@example.test", authz.RoleMember, "tok-mismatch")
	w := env.do(t, http.MethodPost, "/api/invitations/token/tok-mismatch/accept", nil, env.as(t, stranger))
	assert.Equal(t, http.StatusForbidden, w.Code)

	old := env.fx.CreateInvitation(env.org, env.owner, "stranger@example.test", authz.RoleMember, "tok-old")
	require.NoError(t, env.db.Model(&old).Update("created_at", time.Now().Add(-25*time.Hour)).Error)
	w = env.do(t, http.MethodPost, "/api/invitations/token/tok-old/accept", nil, env.as(t, stranger))
	assert.Equal(t, http.StatusGone, w.Code)

	w = env.do(t, http.MethodGet, "/api/invitations/token/tok-old", nil, env.as(t, stranger))
	require.Equal(t, http.StatusOK, w.Code)
	var shown dto.InvitationDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &shown))
	assert.True(t, shown.Expired)
}

func TestTaskHandler_CreateAndUpdateDueDate(t *testing.T) {
	env := setupHandlerTestEnv(t)
	project := env.fx.CreateProject(env.org, env.owner, "Launch")
	headers := env.as(t, env.member)

	w := env.do(t, http.MethodPost, "/api/projects/"+project.ID+"/tasks", map[string]any{
		"title":    "Write <b>docs</b>",
		"due_date": "2030-01-02T15:04:05Z",
	}, headers)
	require.Equal(t, http.StatusCreated, w.Code)

	var task dto.TaskDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))
	assert.Equal(t, "Write docs", task.Title)
	assert.Equal(t, models.TaskStatusTodo, task.Status)
	require.NotNil(t, task.DueDate)
	require.Len(t, task.Assignments, 1)
	assert.Equal(t, env.member.ID, task.Assignments[0].User.ID)

	t.Run("explicit null clears due date", func(t *testing.T) {
		w := env.do(t, http.MethodPatch, "/api/tasks/"+task.ID, map[string]any{"due_date": nil, "status": "DONE"}, headers)
		require.Equal(t, http.StatusOK, w.Code)

		var updated dto.TaskDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
		assert.Nil(t, updated.DueDate)
		assert.Equal(t, models.TaskStatusDone, updated.Status)
	})

	t.Run("invalid due date", func(t *testing.T) {
		w := env.do(t, http.MethodPatch, "/api/tasks/"+task.ID, map[string]any{"due_date": "tomorrow"}, headers)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid status", func(t *testing.T) {
		w := env.do(t, http.MethodPatch, "/api/tasks/"+task.ID, map[string]any{"status": "SOMEDAY"}, headers)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("other tenant reads as not found", func(t *testing.T) {
		other := env.fx.CreateOrganization("Other")
		outsider := env.fx.CreateMember("outsider@other.test", other, authz.RoleOwner)
		w := env.do(t, http.MethodPatch, "/api/tasks/"+task.ID, map[string]any{"title": "x"}, env.as(t, outsider))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRespondServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"expired invitation", services.ErrInvitationExpired, http.StatusGone, apierrors.ErrCodeGone},
		{"wrapped not found", fmt.Errorf("loading: %w", services.ErrTaskNotFound), http.StatusNotFound, apierrors.ErrCodeNotFound},
		{"owner protected", services.ErrOwnerProtected, http.StatusForbidden, apierrors.ErrCodeInsufficientPermissions},
		{"email taken", services.ErrEmailTaken, http.StatusConflict, apierrors.ErrCodeAlreadyExists},
		{"no tenant", services.ErrNoTenant, http.StatusBadRequest, apierrors.ErrCodeInvalidInput},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, apierrors.ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			respondServiceError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, w).Code)
			assert.NotContains(t, w.Body.String(), "disk on fire")
		})
	}
}

type stubProvider struct{}

func (stubProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.test/o/oauth2/auth?state=" + state
}

func (stubProvider) Exchange(_ context.Context, code string) (*services.FederatedIdentity, error) {
	return &services.FederatedIdentity{
		Subject:       "sub-" + code,
		Email:         code + "@example.test",
		EmailVerified: true,
		Name:          code,
	}, nil
}

func TestAuthHandler_GoogleStateCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	authService := services.NewAuthService(repository.NewUserRepository(db), token.NewIssuer("s", 0, 0), stubProvider{})
	handler := NewAuthHandler(authService, nil)

	r := gin.New()
	r.Use(sessions.Sessions(constants.SessionCookieName, cookie.NewStore([]byte("secret"))))
	r.GET("/google/url", handler.GoogleAuthURL)
	r.POST("/google", handler.GoogleLogin)

	start := httptest.NewRecorder()
	r.ServeHTTP(start, httptest.NewRequest(http.MethodGet, "/google/url", nil))
	require.Equal(t, http.StatusOK, start.Code)

	var issued struct {
		URL   string `json:"url"`
		State string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(start.Body.Bytes(), &issued))
	require.NotEmpty(t, issued.State)
	assert.Contains(t, issued.URL, issued.State)

	login := func(state string) *httptest.ResponseRecorder {
		raw, _ := json.Marshal(map[string]string{"code": "alice", "state": state})
		req := httptest.NewRequest(http.MethodPost, "/google", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		for _, c := range start.Result().Cookies() {
			req.AddCookie(c)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := login("forged")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apierrors.ErrCodeInvalidToken, decodeError(t, w).Code)

	w = login(issued.State)
	require.Equal(t, http.StatusOK, w.Code)
	var response dto.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "alice@example.test", response.User.Email)
}
