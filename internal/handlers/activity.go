package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/project-management-api/internal/dto"
	apierrors "github.com/yukikurage/project-management-api/internal/errors"
	"github.com/yukikurage/project-management-api/internal/services"
	"github.com/yukikurage/project-management-api/internal/utils"
)

type ActivityHandler struct {
	activityService *services.ActivityService
}

func NewActivityHandler(activityService *services.ActivityService) *ActivityHandler {
	return &ActivityHandler{
		activityService: activityService,
	}
}

// ListActivity returns the tenant's audit trail, newest first.
func (h *ActivityHandler) ListActivity(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}

	orgID, hasTenant := rc.TenantID()
	if !hasTenant {
		apierrors.BadRequest(c, "Organization ID missing")
		return
	}

	params := utils.GetPaginationParams(c)
	entries, total, err := h.activityService.List(c.Request.Context(), orgID, params.Page, params.Limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToActivityListResponse(entries, params.Page, params.Limit, total))
}
