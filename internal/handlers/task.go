package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/dto"
	"github.com/yukikurage/project-management-api/internal/models"
	"github.com/yukikurage/project-management-api/internal/services"
	"github.com/yukikurage/project-management-api/internal/utils"
)

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

type createTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"due_date"`
}

func (r createTaskRequest) input() services.CreateTaskInput {
	return services.CreateTaskInput{
		Title:       r.Title,
		Description: r.Description,
		Status:      models.TaskStatus(r.Status),
		DueDate:     r.DueDate,
	}
}

type assignmentRequest struct {
	UserIDs []string `json:"user_ids" binding:"required"`
}

// ListProjectTasks returns the top-level tasks of a project.
// Supports ?status=, ?assigned_to_me=true, ?due_today=true and
// ?sort=due_date alongside page/limit.
func (h *TaskHandler) ListProjectTasks(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	input := services.ListTasksInput{
		ProjectID:     c.Param("id"),
		AssignedToMe:  c.Query("assigned_to_me") == "true",
		DueToday:      c.Query("due_today") == "true",
		SortByDueDate: c.Query("sort") == "due_date",
		Page:          params.Page,
		PageSize:      params.Limit,
	}
	if status := c.Query("status"); status != "" {
		s := models.TaskStatus(status)
		input.Status = &s
	}

	tasks, total, err := h.taskService.ListTasks(c.Request.Context(), rc, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskListResponse(tasks, params.Page, params.Limit, total))
}

// GetTask returns a task with subtasks and assignees
func (h *TaskHandler) GetTask(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(c.Request.Context(), rc, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// CreateTask creates a task in a project; the creator is assigned to it.
func (h *TaskHandler) CreateTask(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}

	var req createTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), rc, c.Param("id"), req.input())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task))
}

func (h *TaskHandler) CreateSubtask(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}

	var req createTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.taskService.CreateSubtask(c.Request.Context(), rc, c.Param("id"), req.input())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task))
}

// UpdateTask applies a partial update. An explicit "due_date": null clears
// the due date, so the body is read as a raw map first.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}

	var rawReq map[string]any
	if !bindJSON(c, &rawReq) {
		return
	}

	var input services.UpdateTaskInput
	if v, ok := rawReq["title"]; ok {
		title, isString := v.(string)
		if !isString {
			invalidFormat(c, "title must be a string")
			return
		}
		input.Title = &title
	}
	if v, ok := rawReq["description"]; ok {
		description, isString := v.(string)
		if !isString {
			invalidFormat(c, "description must be a string")
			return
		}
		input.Description = &description
	}
	if v, ok := rawReq["status"]; ok {
		status, isString := v.(string)
		if !isString {
			invalidFormat(c, "status must be a string")
			return
		}
		s := models.TaskStatus(status)
		input.Status = &s
	}
	if v, ok := rawReq["due_date"]; ok {
		// due_date was provided (might be null)
		if v == nil {
			input.ClearDueDate = true
		} else {
			dueDateStr, isString := v.(string)
			if !isString {
				invalidFormat(c, "due_date must be an RFC3339 string or null")
				return
			}
			parsedTime, err := time.Parse(time.RFC3339, dueDateStr)
			if err != nil {
				invalidFormat(c, "due_date must be an RFC3339 string or null")
				return
			}
			input.DueDate = &parsedTime
		}
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), rc, c.Param("id"), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), rc, c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

// AssignTask assigns tenant members to a task
func (h *TaskHandler) AssignTask(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}

	var req assignmentRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.taskService.AssignUsers(c.Request.Context(), rc, c.Param("id"), req.UserIDs); err != nil {
		respondServiceError(c, err)
		return
	}

	h.respondWithTask(c, rc, "Users assigned successfully")
}

func (h *TaskHandler) UnassignTask(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}

	var req assignmentRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.taskService.UnassignUsers(c.Request.Context(), rc, c.Param("id"), req.UserIDs); err != nil {
		respondServiceError(c, err)
		return
	}

	h.respondWithTask(c, rc, "Users unassigned successfully")
}

func (h *TaskHandler) respondWithTask(c *gin.Context, rc authz.RequestContext, message string) {
	task, err := h.taskService.GetTask(c.Request.Context(), rc, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"task":    dto.ToTaskDTO(*task),
	})
}
