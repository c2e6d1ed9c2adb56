// Package router assembles the HTTP surface: repositories, services, the
// authorization pipeline and every route.
package router

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/config"
	"github.com/yukikurage/project-management-api/internal/constants"
	"github.com/yukikurage/project-management-api/internal/handlers"
	"github.com/yukikurage/project-management-api/internal/metrics"
	"github.com/yukikurage/project-management-api/internal/middleware"
	"github.com/yukikurage/project-management-api/internal/repository"
	"github.com/yukikurage/project-management-api/internal/services"
	"github.com/yukikurage/project-management-api/internal/token"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the long-lived resources the router is built from.
type Deps struct {
	Config       *config.Config
	Logger       *zap.Logger
	DB           *gorm.DB
	SessionStore sessions.Store
	// Federated is nil when Google login is not configured.
	Federated services.FederatedProvider
}

var (
	writers = []authz.Role{authz.RoleMember, authz.RoleAdmin, authz.RoleOwner}
	admins  = []authz.Role{authz.RoleAdmin, authz.RoleOwner}
	owners  = []authz.Role{authz.RoleOwner}
)

// Setup builds the gin engine.
func Setup(d Deps) *gin.Engine {
	cfg := d.Config
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	// Repositories
	userRepo := repository.NewUserRepository(d.DB)
	orgRepo := repository.NewOrganizationRepository(d.DB)
	invRepo := repository.NewInvitationRepository(d.DB)
	projectRepo := repository.NewProjectRepository(d.DB)
	taskRepo := repository.NewTaskRepository(d.DB)
	activityRepo := repository.NewActivityRepository(d.DB)

	// Services
	issuer := token.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	activityService := services.NewActivityService(activityRepo, log)
	authService := services.NewAuthService(userRepo, issuer, d.Federated)
	orgService := services.NewOrganizationService(orgRepo, userRepo, activityService)
	memberService := services.NewMemberService(userRepo, activityService)
	invitationService := services.NewInvitationService(invRepo, userRepo, activityService)
	projectService := services.NewProjectService(projectRepo, activityService)
	taskService := services.NewTaskService(taskRepo, projectRepo, userRepo, activityService)

	pipeline := authz.NewPipeline(userRepo,
		authz.WithLogger(log.Named("authz")),
		authz.WithRecorder(metrics.AuthzRecorder{}),
	)
	authorizer := middleware.NewAuthorizer(pipeline, cfg.APIBasePath)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, orgService)
	orgHandler := handlers.NewOrganizationHandler(orgService)
	memberHandler := handlers.NewMemberHandler(memberService)
	invitationHandler := handlers.NewInvitationHandler(invitationService)
	projectHandler := handlers.NewProjectHandler(projectService)
	taskHandler := handlers.NewTaskHandler(taskService)
	activityHandler := handlers.NewActivityHandler(activityService)

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(log.Named("http")),
		middleware.Metrics(),
		sessions.Sessions(constants.SessionCookieName, d.SessionStore),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Project Management API is running",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	basePath := "/" + strings.Trim(cfg.APIBasePath, "/")
	api := r.Group(basePath)
	api.Use(middleware.Authenticate(authService))
	{
		auth := api.Group("/auth")
		{
			// Public endpoints are the only ones reachable without a credential
			public := auth.Group("", middleware.RateLimit(cfg.AuthRateLimit, cfg.AuthRateBurst, log))
			public.POST("/signup", authHandler.Signup)
			public.POST("/login", authHandler.Login)
			public.POST("/refresh", authHandler.Refresh)
			public.GET("/google/url", authHandler.GoogleAuthURL)
			public.POST("/google", authHandler.GoogleLogin)

			auth.POST("/logout", authorizer.Require(), authHandler.Logout)
			auth.GET("/me", authorizer.Require(), authHandler.GetCurrentUser)
			auth.GET("/organizations", authorizer.Require(), authHandler.ListMyOrganizations)
		}

		orgs := api.Group("/organizations")
		{
			orgs.GET("", authorizer.Require(), orgHandler.ListOrganizations)
			orgs.POST("", authorizer.Require(), orgHandler.CreateOrganization)
			orgs.GET("/current", authorizer.Require(), orgHandler.GetCurrentOrganization)
			orgs.PUT("/current", authorizer.Require(owners...), orgHandler.UpdateCurrentOrganization)
			orgs.DELETE("/current", authorizer.Require(owners...), orgHandler.DeleteCurrentOrganization)
		}

		members := api.Group("/members")
		{
			members.GET("", authorizer.Require(), memberHandler.ListMembers)
			members.POST("/leave", authorizer.Require(), memberHandler.LeaveOrganization)
			members.PATCH("/:id", authorizer.Require(admins...), memberHandler.UpdateMemberRole)
			members.DELETE("/:id", authorizer.Require(admins...), memberHandler.RemoveMember)
		}

		invitations := api.Group("/invitations")
		{
			invitations.POST("", authorizer.Require(admins...), invitationHandler.CreateInvitation)
			invitations.GET("", authorizer.Require(admins...), invitationHandler.ListInvitations)
			invitations.DELETE("/:id", authorizer.Require(admins...), invitationHandler.DeleteInvitation)
			invitations.GET("/token/:token", authorizer.Require(), invitationHandler.GetInvitationByToken)
			invitations.POST("/token/:token/accept", authorizer.Require(), invitationHandler.AcceptInvitation)
		}

		projects := api.Group("/projects")
		{
			projects.GET("", authorizer.Require(), projectHandler.ListProjects)
			projects.POST("", authorizer.Require(writers...), projectHandler.CreateProject)
			projects.GET("/:id", authorizer.Require(), projectHandler.GetProject)
			projects.PUT("/:id", authorizer.Require(writers...), projectHandler.UpdateProject)
			projects.DELETE("/:id", authorizer.Require(admins...), projectHandler.DeleteProject)
			projects.GET("/:id/tasks", authorizer.Require(), taskHandler.ListProjectTasks)
			projects.POST("/:id/tasks", authorizer.Require(writers...), taskHandler.CreateTask)
		}

		tasks := api.Group("/tasks")
		{
			tasks.GET("/:id", authorizer.Require(), taskHandler.GetTask)
			tasks.PATCH("/:id", authorizer.Require(writers...), taskHandler.UpdateTask)
			tasks.DELETE("/:id", authorizer.Require(writers...), taskHandler.DeleteTask)
			tasks.POST("/:id/subtasks", authorizer.Require(writers...), taskHandler.CreateSubtask)
			tasks.POST("/:id/assign", authorizer.Require(writers...), taskHandler.AssignTask)
			tasks.POST("/:id/unassign", authorizer.Require(writers...), taskHandler.UnassignTask)
		}

		api.GET("/activity", authorizer.Require(admins...), activityHandler.ListActivity)

		uploads := http.StripPrefix(strings.TrimSuffix(basePath, "/")+"/uploads", http.FileServer(http.Dir(cfg.UploadDir)))
		api.GET("/uploads/*filepath", authorizer.Require(), gin.WrapH(uploads))
	}

	return r
}
