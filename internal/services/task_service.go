package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/models"
	"github.com/yukikurage/project-management-api/internal/repository"
	"github.com/yukikurage/project-management-api/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound        = errors.New("task not found")
	ErrNoUserIDsProvided   = errors.New("at least one user ID is required")
	ErrTitleRequired       = errors.New("title is required")
	ErrTitleEmpty          = errors.New("title cannot be empty")
	ErrInvalidStatus       = errors.New("invalid task status")
	ErrNestedSubtask       = errors.New("subtasks cannot have subtasks")
	ErrInvalidTaskAssignee = errors.New("one or more users do not exist or are not members of the organization")
)

var taskDetailPreloads = []string{"Creator", "Subtasks", "Assignments", "Assignments.User"}

// TaskService handles task business logic
type TaskService struct {
	taskRepo    repository.TaskRepository
	projectRepo repository.ProjectRepository
	userRepo    repository.UserRepository
	activity    *ActivityService
	now         func() time.Time
}

// NewTaskService creates a new TaskService
func NewTaskService(taskRepo repository.TaskRepository, projectRepo repository.ProjectRepository, userRepo repository.UserRepository, activity *ActivityService) *TaskService {
	return &TaskService{
		taskRepo:    taskRepo,
		projectRepo: projectRepo,
		userRepo:    userRepo,
		activity:    activity,
		now:         time.Now,
	}
}

// ListTasksInput represents filters for listing tasks
type ListTasksInput struct {
	ProjectID     string
	AssignedToMe  bool
	DueToday      bool
	Status        *models.TaskStatus
	SortByDueDate bool
	Page          int
	PageSize      int
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	Title       string
	Description string
	Status      models.TaskStatus
	DueDate     *time.Time
}

// UpdateTaskInput represents input for updating a task
type UpdateTaskInput struct {
	Title        *string
	Description  *string
	Status       *models.TaskStatus
	DueDate      *time.Time
	ClearDueDate bool
}

// ListTasks returns the top-level tasks of a project
func (s *TaskService) ListTasks(ctx context.Context, rc authz.RequestContext, input ListTasksInput) ([]models.Task, int64, error) {
	orgID, err := tenantOf(rc)
	if err != nil {
		return nil, 0, err
	}

	if _, err := s.findProject(ctx, orgID, input.ProjectID); err != nil {
		return nil, 0, err
	}

	filter := repository.TaskFilter{
		OrganizationID: orgID,
		ProjectID:      input.ProjectID,
		Page:           input.Page,
		PageSize:       input.PageSize,
		SortByDueDate:  input.SortByDueDate,
	}

	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, 0, ErrInvalidStatus
		}
		filter.Status = input.Status
	}
	if input.AssignedToMe {
		userID := rc.UserID()
		filter.AssignedUserID = &userID
	}
	if input.DueToday {
		now := s.now()
		startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		endOfDay := startOfDay.Add(24 * time.Hour)
		filter.DueDateFrom = &startOfDay
		filter.DueDateTo = &endOfDay
	}

	tasks, total, err := s.taskRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, total, nil
}

// GetTask returns a task with its subtasks and assignees
func (s *TaskService) GetTask(ctx context.Context, rc authz.RequestContext, taskID string) (*models.Task, error) {
	orgID, err := tenantOf(rc)
	if err != nil {
		return nil, err
	}
	return s.findTask(ctx, orgID, taskID, taskDetailPreloads...)
}

// CreateTask creates a top-level task in a project and assigns the creator
func (s *TaskService) CreateTask(ctx context.Context, rc authz.RequestContext, projectID string, input CreateTaskInput) (*models.Task, error) {
	orgID, err := tenantOf(rc)
	if err != nil {
		return nil, err
	}

	project, err := s.findProject(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}

	return s.create(ctx, rc, project.ID, orgID, nil, input)
}

// CreateSubtask creates a task under parentID. Subtasks are one level deep.
func (s *TaskService) CreateSubtask(ctx context.Context, rc authz.RequestContext, parentID string, input CreateTaskInput) (*models.Task, error) {
	orgID, err := tenantOf(rc)
	if err != nil {
		return nil, err
	}

	parent, err := s.findTask(ctx, orgID, parentID)
	if err != nil {
		return nil, err
	}
	if parent.ParentID != nil {
		return nil, ErrNestedSubtask
	}

	return s.create(ctx, rc, parent.ProjectID, orgID, &parent.ID, input)
}

// UpdateTask updates an existing task
func (s *TaskService) UpdateTask(ctx context.Context, rc authz.RequestContext, taskID string, input UpdateTaskInput) (*models.Task, error) {
	orgID, err := tenantOf(rc)
	if err != nil {
		return nil, err
	}

	task, err := s.findTask(ctx, orgID, taskID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := utils.SanitizeText(*input.Title)
		if title == "" {
			return nil, ErrTitleEmpty
		}
		task.Title = title
	}
	if input.Description != nil {
		task.Description = utils.SanitizeText(*input.Description)
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, ErrInvalidStatus
		}
		task.Status = *input.Status
	}
	if input.ClearDueDate {
		task.DueDate = nil
	} else if input.DueDate != nil {
		task.DueDate = input.DueDate
	}

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	s.activity.Record(ctx, ActivityEntry{
		OrganizationID: orgID,
		ActorID:        rc.UserID(),
		Action:         ActionTaskUpdated,
		ResourceType:   "task",
		ResourceID:     task.ID,
		Metadata:       map[string]string{"status": string(task.Status)},
	})

	return s.findTask(ctx, orgID, task.ID, taskDetailPreloads...)
}

// DeleteTask deletes a task together with its subtasks
func (s *TaskService) DeleteTask(ctx context.Context, rc authz.RequestContext, taskID string) error {
	orgID, err := tenantOf(rc)
	if err != nil {
		return err
	}

	task, err := s.findTask(ctx, orgID, taskID)
	if err != nil {
		return err
	}

	if err := s.taskRepo.Delete(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.activity.Record(ctx, ActivityEntry{
		OrganizationID: orgID,
		ActorID:        rc.UserID(),
		Action:         ActionTaskDeleted,
		ResourceType:   "task",
		ResourceID:     task.ID,
		Metadata:       map[string]string{"title": task.Title},
	})

	return nil
}

// AssignUsers assigns multiple users to a task. Every assignee must be a
// member of the request's organization.
func (s *TaskService) AssignUsers(ctx context.Context, rc authz.RequestContext, taskID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return ErrNoUserIDsProvided
	}

	orgID, err := tenantOf(rc)
	if err != nil {
		return err
	}

	task, err := s.findTask(ctx, orgID, taskID)
	if err != nil {
		return err
	}

	userIDs = uniqueStrings(userIDs)

	count, err := s.userRepo.CountInOrganization(ctx, userIDs, orgID)
	if err != nil {
		return fmt.Errorf("failed to verify users: %w", err)
	}
	if int(count) != len(userIDs) {
		return ErrInvalidTaskAssignee
	}

	if err := s.taskRepo.AssignUsers(ctx, task.ID, userIDs); err != nil {
		return fmt.Errorf("failed to assign users: %w", err)
	}

	s.activity.Record(ctx, ActivityEntry{
		OrganizationID: orgID,
		ActorID:        rc.UserID(),
		Action:         ActionTaskAssigned,
		ResourceType:   "task",
		ResourceID:     task.ID,
	})

	return nil
}

// UnassignUsers removes user assignments from a task
func (s *TaskService) UnassignUsers(ctx context.Context, rc authz.RequestContext, taskID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return ErrNoUserIDsProvided
	}

	orgID, err := tenantOf(rc)
	if err != nil {
		return err
	}

	task, err := s.findTask(ctx, orgID, taskID)
	if err != nil {
		return err
	}

	if err := s.taskRepo.UnassignUsers(ctx, task.ID, uniqueStrings(userIDs)); err != nil {
		return fmt.Errorf("failed to unassign users: %w", err)
	}

	s.activity.Record(ctx, ActivityEntry{
		OrganizationID: orgID,
		ActorID:        rc.UserID(),
		Action:         ActionTaskUnassigned,
		ResourceType:   "task",
		ResourceID:     task.ID,
	})

	return nil
}

func (s *TaskService) create(ctx context.Context, rc authz.RequestContext, projectID, orgID string, parentID *string, input CreateTaskInput) (*models.Task, error) {
	title := utils.SanitizeText(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	if input.Status == "" {
		input.Status = models.TaskStatusTodo
	}
	if !input.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	task := &models.Task{
		Title:          title,
		Description:    utils.SanitizeText(input.Description),
		Status:         input.Status,
		DueDate:        input.DueDate,
		ProjectID:      projectID,
		OrganizationID: orgID,
		ParentID:       parentID,
		CreatorID:      rc.UserID(),
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if err := s.taskRepo.AssignUsers(ctx, task.ID, []string{rc.UserID()}); err != nil {
		return nil, fmt.Errorf("failed to assign creator to task: %w", err)
	}

	s.activity.Record(ctx, ActivityEntry{
		OrganizationID: orgID,
		ActorID:        rc.UserID(),
		Action:         ActionTaskCreated,
		ResourceType:   "task",
		ResourceID:     task.ID,
		Metadata:       map[string]string{"title": task.Title, "project_id": projectID},
	})

	return s.findTask(ctx, orgID, task.ID, taskDetailPreloads...)
}

func (s *TaskService) findProject(ctx context.Context, orgID, projectID string) (*models.Project, error) {
	project, err := s.projectRepo.FindByID(ctx, orgID, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	return project, nil
}

func (s *TaskService) findTask(ctx context.Context, orgID, taskID string, preload ...string) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, orgID, taskID, preload...)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

// uniqueStrings removes duplicate values from a slice of strings
func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		if _, exists := seen[v]; exists {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}

	return result
}
